package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/employee-registry/internal/core/employee"
	"github.com/shopspring/decimal"
)

const dateOutputLayout = "2006-01-02T00:00:00"

var dateInputLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Date は時刻を持たない暦日です。書かれた日付をそのまま UTC の 0 時として扱います。
type Date struct {
	time.Time
}

// UnmarshalJSON は 3 種類の書式を受け付けます。
func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := parseDate(raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MarshalJSON は 2006-01-02T00:00:00 形式で出力します。
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.UTC().Format(dateOutputLayout) + `"`), nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateInputLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// money は小数 2 桁の数値として出力される金額です。
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

type employeeRequest struct {
	EmployeeID     int64            `json:"employeeID"`
	FirstName      string           `json:"firstName" validate:"required"`
	LastName       string           `json:"lastName" validate:"required"`
	BirthDate      *Date            `json:"birthDate" validate:"required"`
	EmploymentDate *Date            `json:"employmentDate" validate:"required"`
	BossID         *int64           `json:"bossID"`
	HomeAddress    string           `json:"homeAddress" validate:"required,max=200"`
	CurrentSalary  *decimal.Decimal `json:"currentSalary" validate:"required"`
	Role           string           `json:"role" validate:"required,max=100"`
}

func (r employeeRequest) toInput() employee.EmployeeInput {
	return employee.EmployeeInput{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		BirthDate:      r.BirthDate.Time,
		EmploymentDate: r.EmploymentDate.Time,
		ManagerID:      r.BossID,
		HomeAddress:    r.HomeAddress,
		CurrentSalary:  *r.CurrentSalary,
		Role:           r.Role,
	}
}

type employeeResponse struct {
	EmployeeID     int64  `json:"employeeID"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	BirthDate      Date   `json:"birthDate"`
	EmploymentDate Date   `json:"employmentDate"`
	BossID         *int64 `json:"bossID"`
	HomeAddress    string `json:"homeAddress"`
	CurrentSalary  money  `json:"currentSalary"`
	Role           string `json:"role"`
}

func toEmployeeResponse(e *employee.Employee) employeeResponse {
	return employeeResponse{
		EmployeeID:     e.ID,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		BirthDate:      Date{Time: e.BirthDate},
		EmploymentDate: Date{Time: e.EmploymentDate},
		BossID:         e.ManagerID,
		HomeAddress:    e.HomeAddress,
		CurrentSalary:  money(e.CurrentSalary),
		Role:           e.Role,
	}
}

func toEmployeeResponses(employees []*employee.Employee) []employeeResponse {
	out := make([]employeeResponse, 0, len(employees))
	for _, e := range employees {
		out = append(out, toEmployeeResponse(e))
	}
	return out
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}
