package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoleCEO は組織に一人だけ存在できるルートの役職です。
const RoleCEO = "CEO"

// Employee は社員エンティティです。
// 上長は ManagerID としてフラットに保持し、参照解決は RecordSet 経由で明示的に行います。
type Employee struct {
	ID             int64
	FirstName      string
	LastName       string
	BirthDate      time.Time
	EmploymentDate time.Time
	ManagerID      *int64
	HomeAddress    string
	CurrentSalary  decimal.Decimal
	Role           string
}

// IsCEO は CEO 役職かどうかを返します。
func (e *Employee) IsCEO() bool {
	return e != nil && e.Role == RoleCEO
}

// Clone は参照を共有しないコピーを返します。
func (e *Employee) Clone() *Employee {
	if e == nil {
		return nil
	}
	c := *e
	if e.ManagerID != nil {
		id := *e.ManagerID
		c.ManagerID = &id
	}
	return &c
}
