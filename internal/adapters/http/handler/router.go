package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const healthTimeout = 2 * time.Second

// Pinger はストレージの疎通確認です。
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions はルーター構築時の依存です。Metrics が nil の場合は計測しません。
type RouterOptions struct {
	APIPrefix   string
	Logger      logrus.FieldLogger
	Recorder    ErrorRecorder
	Health      Pinger
	Metrics     *Metrics
	MetricsPath string
}

// NewRouter は社員 API とヘルスチェック、メトリクスを束ねたルーターを構築します。
func NewRouter(employees *EmployeeHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(Recoverer(opts.Recorder))

	r.Get("/healthz", healthHandler(opts.Health))
	if opts.Metrics != nil && opts.MetricsPath != "" {
		r.Method(http.MethodGet, opts.MetricsPath, opts.Metrics.Handler())
	}

	if opts.APIPrefix == "" || opts.APIPrefix == "/" {
		employees.Register(r)
	} else {
		r.Route(opts.APIPrefix, employees.Register)
	}

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
