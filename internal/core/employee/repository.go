package employee

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RecordSet は検証エンジンが参照する既存レコードへの読み取り専用ビューです。
type RecordSet interface {
	// RoleTaken は excludeID 以外の社員が role を保持しているかを返します。
	RoleTaken(ctx context.Context, role string, excludeID int64) (bool, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// Repository は社員永続化の抽象です。
type Repository interface {
	RecordSet

	// Create は ID を採番 (現在の最大値 + 1) して保存します。
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) error
	UpdateSalary(ctx context.Context, id int64, salary decimal.Decimal) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Employee, error)
	List(ctx context.Context, filter ListEmployeesFilter) ([]*Employee, error)
	Count(ctx context.Context, role *string) (int64, error)
	// AverageSalary は平均給与と対象件数を返します。件数 0 の場合の平均は未定義です。
	AverageSalary(ctx context.Context, role *string) (decimal.Decimal, int64, error)
}

// ListEmployeesFilter は一覧取得用フィルタです。nil / 空値は無条件を表します。
type ListEmployeesFilter struct {
	Name          string
	BirthDateFrom *time.Time
	BirthDateTo   *time.Time
	ManagerID     *int64
}
