package employee

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type stubRecordSet struct {
	ceoID    int64
	existing map[int64]bool
	err      error
}

func (s *stubRecordSet) RoleTaken(_ context.Context, role string, excludeID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if role != RoleCEO || s.ceoID == 0 {
		return false, nil
	}
	return s.ceoID != excludeID, nil
}

func (s *stubRecordSet) Exists(_ context.Context, id int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.existing[id], nil
}

var validationNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validCandidate() *Employee {
	boss := int64(1)
	return &Employee{
		FirstName:      "Ashton",
		LastName:       "Early",
		BirthDate:      date(1990, time.September, 26),
		EmploymentDate: date(2022, time.April, 8),
		ManagerID:      &boss,
		HomeAddress:    "115 Heath Place",
		CurrentSalary:  decimal.RequireFromString("2006.67"),
		Role:           "Legal",
	}
}

func newTestValidator() *Validator {
	return NewValidator(&stubClock{now: validationNow})
}

func seededRecords() *stubRecordSet {
	return &stubRecordSet{ceoID: 1, existing: map[int64]bool{1: true, 2: true}}
}

func TestValidator_AcceptsValidCandidate(t *testing.T) {
	t.Parallel()

	err := newTestValidator().Validate(context.Background(), seededRecords(), Candidate{Employee: validCandidate()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidator_RuleBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(e *Employee)
		wantMsg string
	}{
		{name: "exactly 18", mutate: func(e *Employee) { e.BirthDate = date(2007, time.June, 15) }},
		{name: "one day short of 18", mutate: func(e *Employee) { e.BirthDate = date(2007, time.June, 16) }, wantMsg: MsgAgeOutOfRange},
		{name: "exactly 70", mutate: func(e *Employee) { e.BirthDate = date(1955, time.June, 15) }},
		{name: "71", mutate: func(e *Employee) { e.BirthDate = date(1954, time.June, 15) }, wantMsg: MsgAgeOutOfRange},
		{name: "zero salary", mutate: func(e *Employee) { e.CurrentSalary = decimal.Zero }},
		{name: "negative salary", mutate: func(e *Employee) { e.CurrentSalary = decimal.RequireFromString("-0.01") }, wantMsg: MsgNegativeSalary},
		{name: "employment on floor", mutate: func(e *Employee) { e.EmploymentDate = EmploymentDateFloor }},
		{name: "employment before floor", mutate: func(e *Employee) { e.EmploymentDate = date(1999, time.December, 31) }, wantMsg: MsgEmploymentBeforeFloor},
		{name: "employment today", mutate: func(e *Employee) { e.EmploymentDate = date(2025, time.June, 15) }},
		{name: "employment tomorrow", mutate: func(e *Employee) { e.EmploymentDate = date(2025, time.June, 16) }, wantMsg: MsgFutureEmploymentDate},
		{name: "first name 50 runes", mutate: func(e *Employee) { e.FirstName = strings.Repeat("é", 50) }},
		{name: "first name 51", mutate: func(e *Employee) { e.FirstName = strings.Repeat("a", 51) }, wantMsg: MsgFirstNameTooLong},
		{name: "last name 51", mutate: func(e *Employee) { e.LastName = strings.Repeat("b", 51) }, wantMsg: MsgLastNameTooLong},
		{name: "same names", mutate: func(e *Employee) { e.LastName = e.FirstName }, wantMsg: MsgSameFirstAndLastName},
		{name: "names differ by case", mutate: func(e *Employee) { e.LastName = strings.ToUpper(e.FirstName) }},
		{name: "second CEO", mutate: func(e *Employee) { e.Role = RoleCEO }, wantMsg: MsgDuplicateCEO},
		{name: "no boss", mutate: func(e *Employee) { e.ManagerID = nil }, wantMsg: MsgMissingManager},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			candidate := validCandidate()
			tc.mutate(candidate)

			err := newTestValidator().Validate(context.Background(), seededRecords(), Candidate{Employee: candidate})
			if tc.wantMsg == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Message != tc.wantMsg {
				t.Fatalf("expected %q, got %q", tc.wantMsg, vErr.Message)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected error to match ErrValidation")
			}
		})
	}
}

func TestValidator_ReportsFirstViolationOnly(t *testing.T) {
	t.Parallel()

	candidate := validCandidate()
	candidate.EmploymentDate = date(2030, time.January, 1)
	candidate.FirstName = strings.Repeat("x", 60)
	candidate.LastName = candidate.FirstName

	err := newTestValidator().Validate(context.Background(), seededRecords(), Candidate{Employee: candidate})
	if err == nil || err.Error() != MsgFutureEmploymentDate {
		t.Fatalf("expected future date message, got %v", err)
	}
}

func TestValidator_CEOMayKeepOwnRole(t *testing.T) {
	t.Parallel()

	candidate := validCandidate()
	candidate.Role = RoleCEO
	candidate.ManagerID = nil

	err := newTestValidator().Validate(context.Background(), seededRecords(), Candidate{Employee: candidate, ExcludeID: 1})
	if err != nil {
		t.Fatalf("expected CEO update of self to pass, got %v", err)
	}

	err = newTestValidator().Validate(context.Background(), &stubRecordSet{existing: map[int64]bool{}}, Candidate{Employee: candidate})
	if err != nil {
		t.Fatalf("expected first CEO to pass, got %v", err)
	}
}

func TestValidator_MissingManager(t *testing.T) {
	t.Parallel()

	candidate := validCandidate()
	missing := int64(99)
	candidate.ManagerID = &missing

	err := newTestValidator().Validate(context.Background(), seededRecords(), Candidate{Employee: candidate})
	if !errors.Is(err, ErrManagerNotFound) {
		t.Fatalf("expected ErrManagerNotFound, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("missing manager must not be reported as a validation error")
	}
}

func TestValidator_PropagatesLookupErrors(t *testing.T) {
	t.Parallel()

	lookupErr := errors.New("connection reset")
	candidate := validCandidate()

	err := newTestValidator().Validate(context.Background(), &stubRecordSet{err: lookupErr}, Candidate{Employee: candidate})
	if !errors.Is(err, lookupErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestValidator_OnlySelectedRules(t *testing.T) {
	t.Parallel()

	candidate := &Employee{ID: 5, CurrentSalary: decimal.RequireFromString("-1")}
	err := newTestValidator().Validate(context.Background(), seededRecords(), Candidate{Employee: candidate, ExcludeID: 5}, RuleSalary)
	if err == nil || err.Error() != MsgNegativeSalary {
		t.Fatalf("expected salary message, got %v", err)
	}

	candidate.CurrentSalary = decimal.Zero
	if err := newTestValidator().Validate(context.Background(), seededRecords(), Candidate{Employee: candidate, ExcludeID: 5}, RuleSalary); err != nil {
		t.Fatalf("expected other rules to be skipped, got %v", err)
	}
}

func TestAge(t *testing.T) {
	t.Parallel()

	cases := []struct {
		birth time.Time
		now   time.Time
		want  int
	}{
		{birth: date(2000, time.March, 1), now: date(2025, time.February, 28), want: 24},
		{birth: date(2000, time.March, 1), now: date(2025, time.March, 1), want: 25},
		{birth: date(2004, time.February, 29), now: date(2022, time.February, 28), want: 17},
		{birth: date(2004, time.February, 29), now: date(2022, time.March, 1), want: 18},
		{birth: date(2004, time.February, 29), now: date(2024, time.February, 29), want: 20},
		{birth: date(2003, time.March, 1), now: date(2024, time.February, 29), want: 20},
	}

	for _, tc := range cases {
		if got := Age(tc.birth, tc.now); got != tc.want {
			t.Fatalf("Age(%s, %s) = %d, want %d", tc.birth.Format(time.DateOnly), tc.now.Format(time.DateOnly), got, tc.want)
		}
	}
}

func TestDefaultRules_Order(t *testing.T) {
	t.Parallel()

	want := []string{
		RuleAge, RuleSalary, RuleEmploymentFuture, RuleEmploymentFloor,
		RuleFirstNameLength, RuleLastNameLength, RuleDistinctNames,
		RuleSingleCEO, RuleManagerRequired, RuleManagerExists,
	}
	rules := newTestValidator().Rules()
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, name := range want {
		if rules[i].Name != name {
			t.Fatalf("rule %d: expected %s, got %s", i, name, rules[i].Name)
		}
	}
}
