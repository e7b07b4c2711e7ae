package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/employee-registry/internal/core/employee"
	pgdb "github.com/ogurasousui/employee-registry/internal/platform/db/postgres"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	employeeUniqueViolationCode     = "23505"
	employeeForeignKeyViolationCode = "23503"
	employeeCheckViolationCode      = "23514"

	singleCEOIndexName   = "employees_single_ceo_idx"
	bossForeignKeyName   = "employees_boss_id_fkey"
	salaryCheckName      = "employees_current_salary_check"
	employeeColumns      = `id, first_name, last_name, birth_date, employment_date, boss_id, home_address, current_salary, role`
	employeeSelectPrefix = `SELECT ` + employeeColumns + ` FROM employees`
)

const (
	insertEmployeeSQL = `
        INSERT INTO employees (id, first_name, last_name, birth_date, employment_date, boss_id, home_address, current_salary, role)
        VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM employees), $1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + employeeColumns

	importEmployeeSQL = `
        INSERT INTO employees (id, first_name, last_name, birth_date, employment_date, boss_id, home_address, current_salary, role)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING`

	updateEmployeeSQL = `
        UPDATE employees
           SET first_name = $1,
               last_name = $2,
               birth_date = $3,
               employment_date = $4,
               boss_id = $5,
               home_address = $6,
               current_salary = $7,
               role = $8
         WHERE id = $9`

	updateSalarySQL    = `UPDATE employees SET current_salary = $1 WHERE id = $2`
	deleteEmployeeSQL  = `DELETE FROM employees WHERE id = $1`
	findEmployeeSQL    = employeeSelectPrefix + ` WHERE id = $1`
	employeeExistsSQL  = `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`
	roleTakenSQL       = `SELECT EXISTS (SELECT 1 FROM employees WHERE role = $1 AND id <> $2)`
	countEmployeesSQL  = `SELECT COUNT(*) FROM employees`
	averageSalarySQL   = `SELECT COUNT(*), AVG(current_salary) FROM employees`
	roleConditionSQL   = ` WHERE role = $1`
	listOrderClauseSQL = ` ORDER BY id`
)

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は ID を採番して社員を登録します。採番は同一トランザクション内の書き込みロックで直列化されます。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, insertEmployeeSQL,
		e.FirstName,
		e.LastName,
		dateOnly(e.BirthDate),
		dateOnly(e.EmploymentDate),
		nullableID(e.ManagerID),
		e.HomeAddress,
		e.CurrentSalary,
		e.Role,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// Import は ID を指定して社員を登録します。既に同じ ID があれば何もせず false を返します。
func (r *EmployeeRepository) Import(ctx context.Context, e *employee.Employee) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, importEmployeeSQL,
		e.ID,
		e.FirstName,
		e.LastName,
		dateOnly(e.BirthDate),
		dateOnly(e.EmploymentDate),
		nullableID(e.ManagerID),
		e.HomeAddress,
		e.CurrentSalary,
		e.Role,
	)
	if err != nil {
		return false, translateEmployeePgError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Update は社員の全項目を置き換えます。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, updateEmployeeSQL,
		e.FirstName,
		e.LastName,
		dateOnly(e.BirthDate),
		dateOnly(e.EmploymentDate),
		nullableID(e.ManagerID),
		e.HomeAddress,
		e.CurrentSalary,
		e.Role,
		e.ID,
	)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// UpdateSalary は給与のみを更新します。
func (r *EmployeeRepository) UpdateSalary(ctx context.Context, id int64, salary decimal.Decimal) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, updateSalarySQL, salary, id)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// Delete は社員を削除します。部下の boss_id は外部キーにより NULL になります。
func (r *EmployeeRepository) Delete(ctx context.Context, id int64) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, deleteEmployeeSQL, id)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id int64) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	found, err := scanEmployee(exec.QueryRow(ctx, findEmployeeSQL, id))
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// Exists は社員が存在するかを返します。
func (r *EmployeeRepository) Exists(ctx context.Context, id int64) (bool, error) {
	return r.queryBool(ctx, employeeExistsSQL, id)
}

// RoleTaken は excludeID 以外の社員が role を保持しているかを返します。
func (r *EmployeeRepository) RoleTaken(ctx context.Context, role string, excludeID int64) (bool, error) {
	return r.queryBool(ctx, roleTakenSQL, role, excludeID)
}

func (r *EmployeeRepository) queryBool(ctx context.Context, query string, args ...any) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var result bool
	if err := exec.QueryRow(ctx, query, args...).Scan(&result); err != nil {
		return false, translateEmployeePgError(err)
	}
	return result, nil
}

// List はフィルタに一致する社員を ID 順で返します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, error) {
	query, args := buildListQuery(filter)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}

	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}

	return employees, nil
}

// Count は社員数を返します。
func (r *EmployeeRepository) Count(ctx context.Context, role *string) (int64, error) {
	query, args := withRoleCondition(countEmployeesSQL, role)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var count int64
	if err := exec.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, translateEmployeePgError(err)
	}
	return count, nil
}

// AverageSalary は平均給与と対象件数を返します。
func (r *EmployeeRepository) AverageSalary(ctx context.Context, role *string) (decimal.Decimal, int64, error) {
	query, args := withRoleCondition(averageSalarySQL, role)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var (
		count int64
		avg   decimal.NullDecimal
	)
	if err := exec.QueryRow(ctx, query, args...).Scan(&count, &avg); err != nil {
		return decimal.Zero, 0, translateEmployeePgError(err)
	}
	if !avg.Valid {
		return decimal.Zero, count, nil
	}
	return avg.Decimal, count, nil
}

func withRoleCondition(base string, role *string) (string, []any) {
	if role == nil {
		return base, nil
	}
	return base + roleConditionSQL, []any{*role}
}

func buildListQuery(filter employee.ListEmployeesFilter) (string, []any) {
	args := make([]any, 0, 4)
	conditions := make([]string, 0, 3)

	if filter.Name != "" {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "(strpos(first_name || ' ' || last_name, "+placeholder+") > 0 OR strpos(last_name || ' ' || first_name, "+placeholder+") > 0)")
		args = append(args, filter.Name)
	}

	if filter.BirthDateFrom != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "birth_date >= "+placeholder)
		args = append(args, dateOnly(*filter.BirthDateFrom))
	}

	if filter.BirthDateTo != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "birth_date <= "+placeholder)
		args = append(args, dateOnly(*filter.BirthDateTo))
	}

	if filter.ManagerID != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "boss_id = "+placeholder)
		args = append(args, *filter.ManagerID)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return employeeSelectPrefix + whereClause + listOrderClauseSQL, args
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		id             int64
		firstName      string
		lastName       string
		birthDate      time.Time
		employmentDate time.Time
		bossID         sql.NullInt64
		homeAddress    string
		salary         decimal.Decimal
		role           string
	)

	if err := row.Scan(
		&id,
		&firstName,
		&lastName,
		&birthDate,
		&employmentDate,
		&bossID,
		&homeAddress,
		&salary,
		&role,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	var managerID *int64
	if bossID.Valid {
		v := bossID.Int64
		managerID = &v
	}

	return &employee.Employee{
		ID:             id,
		FirstName:      firstName,
		LastName:       lastName,
		BirthDate:      dateOnly(birthDate),
		EmploymentDate: dateOnly(employmentDate),
		ManagerID:      managerID,
		HomeAddress:    homeAddress,
		CurrentSalary:  salary,
		Role:           role,
	}, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, employee.ErrEmployeeNotFound) {
		return employee.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case employeeUniqueViolationCode:
			if pgErr.ConstraintName == singleCEOIndexName {
				return employee.NewValidationError(employee.RuleSingleCEO, employee.MsgDuplicateCEO)
			}
		case employeeForeignKeyViolationCode:
			if pgErr.ConstraintName == bossForeignKeyName || pgErr.ConstraintName == "" {
				return employee.ErrManagerNotFound
			}
		case employeeCheckViolationCode:
			if pgErr.ConstraintName == salaryCheckName || pgErr.ConstraintName == "" {
				return employee.NewValidationError(employee.RuleSalary, employee.MsgNegativeSalary)
			}
		}
	}

	return errors.WithStack(err)
}

func nullableID(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
