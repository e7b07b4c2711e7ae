package employee

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// 検証ルールのメッセージです。HTTP 層ではこの文字列がそのままレスポンス本文になります。
const (
	MsgAgeOutOfRange         = "Employee must be at least 18 years old and not older than 70 years"
	MsgNegativeSalary        = "Salary must be non-negative"
	MsgFutureEmploymentDate  = "EmploymentDate cannot be a future date"
	MsgEmploymentBeforeFloor = "EmploymentDate cannot be earlier than 2000-01-01"
	MsgFirstNameTooLong      = "FirstName cannot be longer than 50 characters"
	MsgLastNameTooLong       = "LastName cannot be longer than 50 characters"
	MsgSameFirstAndLastName  = "FirstName cannot be the same as LastName"
	MsgDuplicateCEO          = "There can be only 1 employee with CEO role"
	MsgMissingManager        = "Only CEO role has no boss"
)

// ルール名です。
const (
	RuleAge               = "age_range"
	RuleSalary            = "salary_non_negative"
	RuleEmploymentFuture  = "employment_not_future"
	RuleEmploymentFloor   = "employment_after_floor"
	RuleFirstNameLength   = "first_name_length"
	RuleLastNameLength    = "last_name_length"
	RuleDistinctNames     = "distinct_names"
	RuleSingleCEO         = "single_ceo"
	RuleManagerRequired   = "manager_required"
	RuleManagerExists     = "manager_exists"
	minAge                = 18
	maxAge                = 70
	maxNameLength         = 50
	defaultSalaryDecimals = 2
)

// EmploymentDateFloor は入社日として受け付ける最も古い日付です。
var EmploymentDateFloor = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Candidate は検証対象のレコードです。
// ExcludeID は更新対象自身の ID で、作成時は 0 を指定します。
type Candidate struct {
	Employee  *Employee
	ExcludeID int64
}

// RuleInput は各ルールに渡される評価時点の情報です。
type RuleInput struct {
	Candidate Candidate
	Now       time.Time
	Records   RecordSet
}

// Rule は独立してテスト可能な検証ルールです。
// Check が false を返すと Message を持つ ValidationError で拒否されます。
// Err が設定されている場合は検証エラーではなくその値が返却されます。
type Rule struct {
	Name    string
	Message string
	Err     error
	Check   func(ctx context.Context, in RuleInput) (bool, error)
}

// Validator は順序付きルールを先頭から評価し、最初の違反だけを返します。
type Validator struct {
	clock Clock
	rules []Rule
}

// NewValidator は Validator を生成します。rules を省略すると DefaultRules が使われます。
func NewValidator(clock Clock, rules ...Rule) *Validator {
	if clock == nil {
		clock = realClock{}
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Validator{clock: clock, rules: rules}
}

// Rules は評価順のルール一覧を返します。
func (v *Validator) Rules() []Rule {
	out := make([]Rule, len(v.rules))
	copy(out, v.rules)
	return out
}

// Validate は候補レコードを評価します。only を指定した場合はその名前のルールだけを評価します。
func (v *Validator) Validate(ctx context.Context, records RecordSet, c Candidate, only ...string) error {
	in := RuleInput{Candidate: c, Now: v.clock.Now(), Records: records}

	for _, rule := range v.rules {
		if len(only) > 0 && !contains(only, rule.Name) {
			continue
		}
		ok, err := rule.Check(ctx, in)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if rule.Err != nil {
			return rule.Err
		}
		return NewValidationError(rule.Name, rule.Message)
	}
	return nil
}

// DefaultRules は社員レコードの標準ルールを評価順に返します。
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    RuleAge,
			Message: MsgAgeOutOfRange,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				age := Age(in.Candidate.Employee.BirthDate, in.Now)
				return age >= minAge && age <= maxAge, nil
			},
		},
		{
			Name:    RuleSalary,
			Message: MsgNegativeSalary,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				return !in.Candidate.Employee.CurrentSalary.IsNegative(), nil
			},
		},
		{
			Name:    RuleEmploymentFuture,
			Message: MsgFutureEmploymentDate,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				return !in.Candidate.Employee.EmploymentDate.After(in.Now), nil
			},
		},
		{
			Name:    RuleEmploymentFloor,
			Message: MsgEmploymentBeforeFloor,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				return !in.Candidate.Employee.EmploymentDate.Before(EmploymentDateFloor), nil
			},
		},
		{
			Name:    RuleFirstNameLength,
			Message: MsgFirstNameTooLong,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				return utf8.RuneCountInString(in.Candidate.Employee.FirstName) <= maxNameLength, nil
			},
		},
		{
			Name:    RuleLastNameLength,
			Message: MsgLastNameTooLong,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				return utf8.RuneCountInString(in.Candidate.Employee.LastName) <= maxNameLength, nil
			},
		},
		{
			Name:    RuleDistinctNames,
			Message: MsgSameFirstAndLastName,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				e := in.Candidate.Employee
				return e.FirstName != e.LastName, nil
			},
		},
		{
			Name:    RuleSingleCEO,
			Message: MsgDuplicateCEO,
			Check: func(ctx context.Context, in RuleInput) (bool, error) {
				if !in.Candidate.Employee.IsCEO() {
					return true, nil
				}
				taken, err := in.Records.RoleTaken(ctx, RoleCEO, in.Candidate.ExcludeID)
				if err != nil {
					return false, err
				}
				return !taken, nil
			},
		},
		{
			Name:    RuleManagerRequired,
			Message: MsgMissingManager,
			Check: func(_ context.Context, in RuleInput) (bool, error) {
				e := in.Candidate.Employee
				return e.ManagerID != nil || e.IsCEO(), nil
			},
		},
		{
			Name: RuleManagerExists,
			Err:  ErrManagerNotFound,
			Check: func(ctx context.Context, in RuleInput) (bool, error) {
				managerID := in.Candidate.Employee.ManagerID
				if managerID == nil {
					return true, nil
				}
				return in.Records.Exists(ctx, *managerID)
			},
		},
	}
}

// Age は now 時点の満年齢を返します。
// 誕生日がまだ来ていなければ 1 減らし、2/29 生まれは平年では 2/28 を基準にします。
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if birth.After(addYears(now, -age)) {
		age--
	}
	return age
}

func addYears(t time.Time, years int) time.Time {
	year := t.Year() + years
	day := t.Day()
	if t.Month() == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// NormalizeSalary は保存精度 (小数 2 桁) に丸めます。
func NormalizeSalary(salary decimal.Decimal) decimal.Decimal {
	return salary.Round(defaultSalaryDecimals)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
