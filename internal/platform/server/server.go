package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ogurasousui/employee-registry/internal/platform/config"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Server は HTTP サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr      string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	logger          logrus.FieldLogger
}

// New は設定に従って CORS とタイムアウトを適用した HTTP サーバーを構築します。
func New(cfg config.ServerConfig, handler http.Handler, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodPatch,
				http.MethodDelete,
			},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
		}).Handler(handler)
	}

	return &Server{
		listenAddr:      cfg.ListenAddr,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler はミドルウェア適用後のハンドラを返します。
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run はサーバーを起動し、コンテキストがキャンセルされると Shutdown します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は与えられたリスナーで待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	done := make(chan struct{})
	defer close(done)

	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
			shutdownErr <- s.Shutdown()
		case <-done:
		}
	}()

	s.logger.WithField("addr", lis.Addr().String()).Info("http server listening")

	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}
	if ctx.Err() == nil {
		return nil
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("shutdown HTTP: %w", err)
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってから停止します。
func (s *Server) Shutdown() error {
	ctx := context.Background()
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
