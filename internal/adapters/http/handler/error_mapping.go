package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ogurasousui/employee-registry/internal/core/employee"
	"github.com/ogurasousui/employee-registry/internal/core/exceptionlog"
	"github.com/ogurasousui/employee-registry/internal/platform/logging"
)

const internalErrorMessage = "Internal server error"

// ErrorRecorder は想定外の障害を記録します。
type ErrorRecorder interface {
	Record(ctx context.Context, err error) *exceptionlog.Entry
	RecordPanic(ctx context.Context, recovered any) *exceptionlog.Entry
}

// writeError はドメインエラーを HTTP レスポンスに変換します。
// notFoundMessage は対象社員が無い場合の本文で、空なら本文なしの 404 です。
func writeError(w http.ResponseWriter, r *http.Request, recorder ErrorRecorder, err error, notFoundMessage string) {
	var validationErr *employee.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeText(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, employee.ErrInvalidID):
		writeText(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, employee.ErrManagerNotFound):
		writeText(w, http.StatusNotFound, employee.ErrManagerNotFound.Error())
	case errors.Is(err, employee.ErrNoEmployees):
		writeText(w, http.StatusNotFound, employee.ErrNoEmployees.Error())
	case errors.Is(err, employee.ErrEmployeeNotFound):
		if notFoundMessage == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeText(w, http.StatusNotFound, notFoundMessage)
	default:
		writeInternalError(w, r, recorder, err)
	}
}

func writeInternalError(w http.ResponseWriter, r *http.Request, recorder ErrorRecorder, err error) {
	logger := logging.FromContext(r.Context()).WithError(err)
	if recorder != nil {
		if entry := recorder.Record(r.Context(), err); entry != nil {
			logger = logger.WithField("exception-id", entry.ID)
		}
	}
	logger.Error("unhandled error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		StatusCode: http.StatusInternalServerError,
		Message:    internalErrorMessage,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
