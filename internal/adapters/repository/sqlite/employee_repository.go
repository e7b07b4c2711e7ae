package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/ogurasousui/employee-registry/internal/core/employee"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	dateLayout      = "2006-01-02"
	employeeColumns = `id, first_name, last_name, birth_date, employment_date, boss_id, home_address, current_salary, role`

	insertEmployeeSQL = `
        INSERT INTO employees (id, first_name, last_name, birth_date, employment_date, boss_id, home_address, current_salary, role)
        VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM employees), ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING ` + employeeColumns

	importEmployeeSQL = `
        INSERT INTO employees (id, first_name, last_name, birth_date, employment_date, boss_id, home_address, current_salary, role)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO NOTHING`

	updateEmployeeSQL = `
        UPDATE employees
           SET first_name = ?, last_name = ?, birth_date = ?, employment_date = ?,
               boss_id = ?, home_address = ?, current_salary = ?, role = ?
         WHERE id = ?`
)

type employeeRow struct {
	ID             int64         `db:"id"`
	FirstName      string        `db:"first_name"`
	LastName       string        `db:"last_name"`
	BirthDate      string        `db:"birth_date"`
	EmploymentDate string        `db:"employment_date"`
	BossID         sql.NullInt64 `db:"boss_id"`
	HomeAddress    string        `db:"home_address"`
	CurrentSalary  string        `db:"current_salary"`
	Role           string        `db:"role"`
}

// EmployeeRepository は SQLite を利用した社員永続化の実装です。
// 日付は YYYY-MM-DD、給与は 10 進文字列で保存し、集計は decimal で行います。
type EmployeeRepository struct {
	db *DB
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(db *DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create は ID を採番して社員を登録します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	var row employeeRow
	if err := r.db.executor(ctx).GetContext(ctx, &row, insertEmployeeSQL, employeeArgs(e)...); err != nil {
		return nil, translateError(err)
	}
	return row.toDomain()
}

// Import は ID を指定して社員を登録します。既に同じ ID があれば何もせず false を返します。
func (r *EmployeeRepository) Import(ctx context.Context, e *employee.Employee) (bool, error) {
	args := append([]any{e.ID}, employeeArgs(e)...)
	res, err := r.db.executor(ctx).ExecContext(ctx, importEmployeeSQL, args...)
	if err != nil {
		return false, translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n == 1, nil
}

// Update は社員の全項目を置き換えます。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) error {
	args := append(employeeArgs(e), e.ID)
	res, err := r.db.executor(ctx).ExecContext(ctx, updateEmployeeSQL, args...)
	return affectedOne(res, err)
}

// UpdateSalary は給与のみを更新します。
func (r *EmployeeRepository) UpdateSalary(ctx context.Context, id int64, salary decimal.Decimal) error {
	res, err := r.db.executor(ctx).ExecContext(ctx, `UPDATE employees SET current_salary = ? WHERE id = ?`, salary.StringFixed(2), id)
	return affectedOne(res, err)
}

// Delete は社員を削除します。部下の boss_id は外部キーにより NULL になります。
func (r *EmployeeRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.executor(ctx).ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	return affectedOne(res, err)
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id int64) (*employee.Employee, error) {
	var row employeeRow
	if err := r.db.executor(ctx).GetContext(ctx, &row, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id); err != nil {
		return nil, translateError(err)
	}
	return row.toDomain()
}

// Exists は社員が存在するかを返します。
func (r *EmployeeRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.executor(ctx).GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM employees WHERE id = ?)`, id); err != nil {
		return false, translateError(err)
	}
	return exists, nil
}

// RoleTaken は excludeID 以外の社員が role を保持しているかを返します。
func (r *EmployeeRepository) RoleTaken(ctx context.Context, role string, excludeID int64) (bool, error) {
	var taken bool
	if err := r.db.executor(ctx).GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM employees WHERE role = ? AND id <> ?)`, role, excludeID); err != nil {
		return false, translateError(err)
	}
	return taken, nil
}

// List はフィルタに一致する社員を ID 順で返します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.Name != "" {
		conditions = append(conditions, "(instr(first_name || ' ' || last_name, ?) > 0 OR instr(last_name || ' ' || first_name, ?) > 0)")
		args = append(args, filter.Name, filter.Name)
	}
	if filter.BirthDateFrom != nil {
		conditions = append(conditions, "birth_date >= ?")
		args = append(args, formatDate(*filter.BirthDateFrom))
	}
	if filter.BirthDateTo != nil {
		conditions = append(conditions, "birth_date <= ?")
		args = append(args, formatDate(*filter.BirthDateTo))
	}
	if filter.ManagerID != nil {
		conditions = append(conditions, "boss_id = ?")
		args = append(args, *filter.ManagerID)
	}

	query := `SELECT ` + employeeColumns + ` FROM employees`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	var rows []employeeRow
	if err := r.db.executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translateError(err)
	}

	employees := make([]*employee.Employee, 0, len(rows))
	for i := range rows {
		emp, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, nil
}

// Count は社員数を返します。
func (r *EmployeeRepository) Count(ctx context.Context, role *string) (int64, error) {
	query, args := withRole(`SELECT COUNT(*) FROM employees`, role)
	var count int64
	if err := r.db.executor(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// AverageSalary は平均給与と対象件数を返します。
func (r *EmployeeRepository) AverageSalary(ctx context.Context, role *string) (decimal.Decimal, int64, error) {
	query, args := withRole(`SELECT current_salary FROM employees`, role)
	var salaries []string
	if err := r.db.executor(ctx).SelectContext(ctx, &salaries, query, args...); err != nil {
		return decimal.Zero, 0, translateError(err)
	}
	if len(salaries) == 0 {
		return decimal.Zero, 0, nil
	}

	sum := decimal.Zero
	for _, raw := range salaries {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, 0, errors.Wrapf(err, "sqlite: parse salary %q", raw)
		}
		sum = sum.Add(v)
	}
	count := int64(len(salaries))
	return sum.Div(decimal.NewFromInt(count)), count, nil
}

func withRole(base string, role *string) (string, []any) {
	if role == nil {
		return base, nil
	}
	return base + ` WHERE role = ?`, []any{*role}
}

func employeeArgs(e *employee.Employee) []any {
	var boss any
	if e.ManagerID != nil {
		boss = *e.ManagerID
	}
	return []any{
		e.FirstName,
		e.LastName,
		formatDate(e.BirthDate),
		formatDate(e.EmploymentDate),
		boss,
		e.HomeAddress,
		e.CurrentSalary.StringFixed(2),
		e.Role,
	}
}

func (row employeeRow) toDomain() (*employee.Employee, error) {
	birth, err := time.Parse(dateLayout, row.BirthDate)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: parse birth_date of employee %d", row.ID)
	}
	employed, err := time.Parse(dateLayout, row.EmploymentDate)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: parse employment_date of employee %d", row.ID)
	}
	salary, err := decimal.NewFromString(row.CurrentSalary)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: parse current_salary of employee %d", row.ID)
	}

	var managerID *int64
	if row.BossID.Valid {
		v := row.BossID.Int64
		managerID = &v
	}

	return &employee.Employee{
		ID:             row.ID,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		BirthDate:      birth,
		EmploymentDate: employed,
		ManagerID:      managerID,
		HomeAddress:    row.HomeAddress,
		CurrentSalary:  salary,
		Role:           row.Role,
	}, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			if strings.Contains(sqliteErr.Error(), "employees.role") {
				return employee.NewValidationError(employee.RuleSingleCEO, employee.MsgDuplicateCEO)
			}
		case sqlite3.ErrConstraintForeignKey:
			return employee.ErrManagerNotFound
		}
	}

	return errors.WithStack(err)
}
