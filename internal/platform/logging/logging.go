package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ogurasousui/employee-registry/internal/platform/config"
	"github.com/sirupsen/logrus"
)

type loggerContextKey struct{}

// New は設定からロガーを構築します。出力先は標準エラーです。
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter は出力先を指定してロガーを構築します。
func NewWithWriter(cfg config.LogConfig, w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)

	switch cfg.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger, nil
}

// WithLogger はリクエスト単位のロガーをコンテキストに格納します。
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, entry)
}

// FromContext はコンテキストのロガーを返します。無ければ標準ロガーです。
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(loggerContextKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
