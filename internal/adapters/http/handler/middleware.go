package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ogurasousui/employee-registry/internal/platform/logging"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

// RequestLogger はリクエスト単位のロガーをコンテキストに格納し、開始と完了を記録します。
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			entry := logger.WithFields(logrus.Fields{
				"request-id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			entry.WithField("ip", r.RemoteAddr).Info("request started")

			w.Header().Set(requestIDHeader, requestID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), entry)))

			entry.WithFields(logrus.Fields{
				"status-code": statusOf(ww),
				"duration":    time.Since(start),
			}).Info("request completed")
		})
	}
}

// Recoverer は panic を障害記録に残し、500 を返します。
func Recoverer(recorder ErrorRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				logger := logging.FromContext(r.Context()).WithField("panic", recovered)
				if recorder != nil {
					if entry := recorder.RecordPanic(r.Context(), recovered); entry != nil {
						logger = logger.WithField("exception-id", entry.ID)
					}
				}
				logger.Error("panic recovered in request handler")

				writeJSON(w, http.StatusInternalServerError, errorResponse{
					StatusCode: http.StatusInternalServerError,
					Message:    internalErrorMessage,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
