package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/ogurasousui/employee-registry/internal/core/employee"
	"github.com/shopspring/decimal"
)

// 検索 API は末尾のセグメントから順に省略できます。
var searchPatterns = []string{
	"/name",
	"/name/{name}",
	"/name/{name}/birthdateFrom",
	"/name/{name}/birthdateFrom/{from}",
	"/name/{name}/birthdateFrom/{from}/birthdateTo",
	"/name/{name}/birthdateFrom/{from}/birthdateTo/{to}",
}

// EmployeeHandler は社員 API の HTTP 実装です。
type EmployeeHandler struct {
	svc      employee.UseCase
	recorder ErrorRecorder
	validate *validator.Validate
}

// NewEmployeeHandler は EmployeeHandler を生成します。
func NewEmployeeHandler(svc employee.UseCase, recorder ErrorRecorder) *EmployeeHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &EmployeeHandler{svc: svc, recorder: recorder, validate: validate}
}

// Register は /employees 配下のルートを登録します。
func (h *EmployeeHandler) Register(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.listEmployees)
		r.Post("/", h.createEmployee)
		r.Put("/", h.replaceEmployee)

		r.Get("/bossID/{bossID}", h.listSubordinates)
		r.Get("/count", h.countEmployees)
		r.Get("/count/{role}", h.countEmployees)
		r.Get("/averageSalary", h.averageSalary)
		r.Get("/averageSalary/{role}", h.averageSalary)
		for _, pattern := range searchPatterns {
			r.Get(pattern, h.searchEmployees)
		}

		r.Get("/{id}", h.getEmployee)
		r.Delete("/{id}", h.deleteEmployee)
		r.Patch("/{id}/{salary}", h.updateSalary)
	})
}

func (h *EmployeeHandler) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	found, err := h.svc.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeResponse(found))
}

func (h *EmployeeHandler) searchEmployees(w http.ResponseWriter, r *http.Request) {
	in := employee.SearchEmployeesInput{Name: strings.TrimSpace(pathParam(r, "name"))}

	from, err := optionalDate(pathParam(r, "from"))
	if err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("birthdateFrom: %v", err))
		return
	}
	to, err := optionalDate(pathParam(r, "to"))
	if err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("birthdateTo: %v", err))
		return
	}
	in.BirthDateFrom = from
	in.BirthDateTo = to

	found, err := h.svc.SearchEmployees(r.Context(), in)
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeResponses(found))
}

func (h *EmployeeHandler) listEmployees(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.ListEmployees(r.Context())
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponses(found))
}

func (h *EmployeeHandler) listSubordinates(w http.ResponseWriter, r *http.Request) {
	bossID, err := parseID(pathParam(r, "bossID"))
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	found, err := h.svc.ListSubordinates(r.Context(), bossID)
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponses(found))
}

func (h *EmployeeHandler) countEmployees(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.CountEmployees(r.Context(), optionalRole(r))
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}
	writeJSON(w, http.StatusOK, count)
}

func (h *EmployeeHandler) averageSalary(w http.ResponseWriter, r *http.Request) {
	avg, err := h.svc.AverageSalary(r.Context(), optionalRole(r))
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}
	writeJSON(w, http.StatusOK, json.Number(avg.String()))
}

func (h *EmployeeHandler) createEmployee(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEmployee(w, r)
	if !ok {
		return
	}

	created, err := h.svc.CreateEmployee(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeResponse(created))
}

func (h *EmployeeHandler) replaceEmployee(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEmployee(w, r)
	if !ok {
		return
	}

	if err := h.svc.ReplaceEmployee(r.Context(), req.EmployeeID, req.toInput()); err != nil {
		writeError(w, r, h.recorder, err, employee.ErrEmployeeNotFound.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *EmployeeHandler) updateSalary(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	salary, err := decimal.NewFromString(pathParam(r, "salary"))
	if err != nil {
		writeText(w, http.StatusBadRequest, "salary must be a decimal number")
		return
	}

	if err := h.svc.UpdateSalary(r.Context(), id, salary); err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *EmployeeHandler) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	if err := h.svc.DeleteEmployee(r.Context(), id); err != nil {
		writeError(w, r, h.recorder, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *EmployeeHandler) decodeEmployee(w http.ResponseWriter, r *http.Request) (employeeRequest, bool) {
	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return req, false
	}

	if err := h.validate.Struct(req); err != nil {
		writeText(w, http.StatusBadRequest, describeValidationError(err))
		return req, false
	}

	return req, true
}

func describeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s cannot be longer than %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// pathParam は URL パラメータを返します。RawPath で照合された場合はデコードします。
func pathParam(r *http.Request, key string) string {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value
	}
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, employee.ErrInvalidID
	}
	return id, nil
}

func optionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalRole(r *http.Request) *string {
	role := pathParam(r, "role")
	if role == "" {
		return nil
	}
	return &role
}
