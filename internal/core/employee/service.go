package employee

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
// WithinReadWrite は検証から書き込みまでを他の書き込みと直列化する必要があります。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo      Repository
	clock     Clock
	tx        TransactionManager
	validator *Validator
	logger    logrus.FieldLogger
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
	SearchEmployees(ctx context.Context, in SearchEmployeesInput) ([]*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	ListSubordinates(ctx context.Context, managerID int64) ([]*Employee, error)
	CountEmployees(ctx context.Context, role *string) (int64, error)
	AverageSalary(ctx context.Context, role *string) (decimal.Decimal, error)
	CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error)
	ReplaceEmployee(ctx context.Context, id int64, in EmployeeInput) error
	UpdateSalary(ctx context.Context, id int64, salary decimal.Decimal) error
	DeleteEmployee(ctx context.Context, id int64) error
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithLogger はサービスが使うロガーを指定します。
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithValidator は既定のルール列を差し替えます。
func WithValidator(v *Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:   repo,
		clock:  clock,
		tx:     tx,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = NewValidator(clock)
	}
	return s
}

// EmployeeInput は作成・置換時の入力です。ID は含みません。
type EmployeeInput struct {
	FirstName      string
	LastName       string
	BirthDate      time.Time
	EmploymentDate time.Time
	ManagerID      *int64
	HomeAddress    string
	CurrentSalary  decimal.Decimal
	Role           string
}

// SearchEmployeesInput は名前・生年月日による検索条件です。
type SearchEmployeesInput struct {
	Name          string
	BirthDateFrom *time.Time
	BirthDateTo   *time.Time
}

// GetEmployee は社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// SearchEmployees は名前の部分一致と生年月日の範囲で社員を検索します。
func (s *Service) SearchEmployees(ctx context.Context, in SearchEmployeesInput) ([]*Employee, error) {
	return s.list(ctx, ListEmployeesFilter{
		Name:          strings.TrimSpace(in.Name),
		BirthDateFrom: in.BirthDateFrom,
		BirthDateTo:   in.BirthDateTo,
	})
}

// ListEmployees は全社員を ID 順で返します。
func (s *Service) ListEmployees(ctx context.Context) ([]*Employee, error) {
	return s.list(ctx, ListEmployeesFilter{})
}

// ListSubordinates は指定した上長の直属の部下を返します。
func (s *Service) ListSubordinates(ctx context.Context, managerID int64) ([]*Employee, error) {
	return s.list(ctx, ListEmployeesFilter{ManagerID: &managerID})
}

func (s *Service) list(ctx context.Context, filter ListEmployeesFilter) ([]*Employee, error) {
	var employees []*Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.List(txCtx, filter)
		if err != nil {
			return err
		}
		employees = result
		return nil
	}); err != nil {
		return nil, err
	}
	if employees == nil {
		employees = []*Employee{}
	}
	return employees, nil
}

// CountEmployees は社員数を返します。role を指定した場合はその役職の人数です。
func (s *Service) CountEmployees(ctx context.Context, role *string) (int64, error) {
	var count int64
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		n, err := s.repo.Count(txCtx, role)
		if err != nil {
			return err
		}
		count = n
		return nil
	}); err != nil {
		return 0, err
	}
	return count, nil
}

// AverageSalary は平均給与を返します。対象がいない場合は ErrNoEmployees です。
func (s *Service) AverageSalary(ctx context.Context, role *string) (decimal.Decimal, error) {
	var avg decimal.Decimal
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		value, count, err := s.repo.AverageSalary(txCtx, role)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoEmployees
		}
		avg = value
		return nil
	}); err != nil {
		return decimal.Zero, err
	}
	return avg, nil
}

// CreateEmployee は検証後に新しい社員を登録します。
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	candidate := in.toEmployee(0)

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.validator.Validate(txCtx, s.repo, Candidate{Employee: candidate}); err != nil {
			return err
		}
		candidate.CurrentSalary = NormalizeSalary(candidate.CurrentSalary)
		result, err := s.repo.Create(txCtx, candidate)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}
	return created, nil
}

// ReplaceEmployee は既存社員の全項目を置き換えます。
func (s *Service) ReplaceEmployee(ctx context.Context, id int64, in EmployeeInput) error {
	if id <= 0 {
		return ErrEmployeeNotFound
	}
	candidate := in.toEmployee(id)

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureExists(txCtx, id); err != nil {
			return err
		}
		if err := s.validator.Validate(txCtx, s.repo, Candidate{Employee: candidate, ExcludeID: id}); err != nil {
			return err
		}
		candidate.CurrentSalary = NormalizeSalary(candidate.CurrentSalary)
		return s.repo.Update(txCtx, candidate)
	})
}

// UpdateSalary は給与のみを更新します。評価するのは給与のルールだけです。
func (s *Service) UpdateSalary(ctx context.Context, id int64, salary decimal.Decimal) error {
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureExists(txCtx, id); err != nil {
			return err
		}
		candidate := Candidate{Employee: &Employee{ID: id, CurrentSalary: salary}, ExcludeID: id}
		if err := s.validator.Validate(txCtx, s.repo, candidate, RuleSalary); err != nil {
			return err
		}
		return s.repo.UpdateSalary(txCtx, id, NormalizeSalary(salary))
	})
}

// DeleteEmployee は社員を削除します。部下がいても削除は拒否しません。
func (s *Service) DeleteEmployee(ctx context.Context, id int64) error {
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureExists(txCtx, id); err != nil {
			return err
		}
		subordinates, err := s.repo.List(txCtx, ListEmployeesFilter{ManagerID: &id})
		if err != nil {
			return err
		}
		if len(subordinates) > 0 {
			s.logger.WithFields(logrus.Fields{
				"employee_id":  id,
				"subordinates": len(subordinates),
			}).Warn("deleting employee who still manages others")
		}
		return s.repo.Delete(txCtx, id)
	})
}

func (s *Service) ensureExists(ctx context.Context, id int64) error {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check employee %d: %w", id, err)
	}
	if !exists {
		return ErrEmployeeNotFound
	}
	return nil
}

// toEmployee は入力をそのまま保持します。給与の丸めは検証後に行います。
func (in EmployeeInput) toEmployee(id int64) *Employee {
	e := &Employee{
		ID:             id,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		BirthDate:      normalizeDate(in.BirthDate),
		EmploymentDate: normalizeDate(in.EmploymentDate),
		HomeAddress:    in.HomeAddress,
		CurrentSalary:  in.CurrentSalary,
		Role:           in.Role,
	}
	if in.ManagerID != nil {
		managerID := *in.ManagerID
		e.ManagerID = &managerID
	}
	return e
}

// normalizeDate は日付部分だけを UTC で保持します。
func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
