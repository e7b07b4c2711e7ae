package exceptionlog

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultAppendTimeout = 3 * time.Second

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Recorder は障害をリクエストとは独立に記録します。
// 記録自体の失敗はログに残すだけで呼び出し元には返しません。
type Recorder struct {
	repo    Repository
	clock   Clock
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewRecorder は Recorder を生成します。
func NewRecorder(repo Repository, clock Clock, logger logrus.FieldLogger) *Recorder {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{repo: repo, clock: clock, logger: logger, timeout: defaultAppendTimeout}
}

// Record はエラーを 1 件記録します。
func (r *Recorder) Record(ctx context.Context, err error) *Entry {
	if err == nil {
		return nil
	}
	return r.append(ctx, &Entry{
		Kind:    fmt.Sprintf("%T", errors.Cause(err)),
		Message: err.Error(),
		Trace:   fmt.Sprintf("%+v", err),
	})
}

// RecordPanic は recover した値を記録します。
func (r *Recorder) RecordPanic(ctx context.Context, recovered any) *Entry {
	kind := fmt.Sprintf("%T", recovered)
	message := fmt.Sprint(recovered)
	if err, ok := recovered.(error); ok {
		kind = fmt.Sprintf("%T", errors.Cause(err))
		message = err.Error()
	}
	return r.append(ctx, &Entry{
		Kind:    kind,
		Message: message,
		Trace:   string(debug.Stack()),
	})
}

func (r *Recorder) append(ctx context.Context, entry *Entry) *Entry {
	entry.OccurredAt = r.clock.Now()

	if r.repo == nil {
		r.logger.WithField("kind", entry.Kind).Error(entry.Message)
		return entry
	}

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	stored, err := r.repo.Append(appendCtx, entry)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"kind":    entry.Kind,
			"message": entry.Message,
		}).Error("failed to append exception log")
		return entry
	}
	return stored
}
