package exceptionlog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeRepo struct {
	entries []*Entry
	err     error
	ctxErr  error
}

func (r *fakeRepo) Append(ctx context.Context, entry *Entry) (*Entry, error) {
	r.ctxErr = ctx.Err()
	if r.err != nil {
		return nil, r.err
	}
	clone := *entry
	clone.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, &clone)
	return &clone, nil
}

type customError struct{}

func (customError) Error() string { return "disk full" }

func TestRecorder_Record(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	rec := NewRecorder(repo, &stubClock{now: now}, nil)

	entry := rec.Record(context.Background(), errors.WithStack(customError{}))
	if entry == nil || entry.ID != 1 {
		t.Fatalf("expected stored entry, got %+v", entry)
	}
	if entry.Kind != "exceptionlog.customError" {
		t.Fatalf("expected kind of root cause, got %s", entry.Kind)
	}
	if entry.Message != "disk full" {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if !strings.Contains(entry.Trace, "TestRecorder_Record") {
		t.Fatalf("expected trace to carry the stack, got %q", entry.Trace)
	}
	if !entry.OccurredAt.Equal(now) {
		t.Fatalf("expected clock time, got %s", entry.OccurredAt)
	}
}

func TestRecorder_DetachesFromCanceledRequest(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	rec := NewRecorder(repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Record(ctx, errors.New("boom"))
	if repo.ctxErr != nil {
		t.Fatalf("expected append context to outlive the request, got %v", repo.ctxErr)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
}

func TestRecorder_AppendFailureIsOnlyLogged(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	repo := &fakeRepo{err: errors.New("connection refused")}
	rec := NewRecorder(repo, nil, logger)

	entry := rec.Record(context.Background(), errors.New("boom"))
	if entry == nil || entry.Message != "boom" {
		t.Fatalf("expected unsaved entry to be returned, got %+v", entry)
	}
	last := hook.LastEntry()
	if last == nil || last.Level != logrus.ErrorLevel {
		t.Fatalf("expected error log, got %+v", last)
	}
}

func TestRecorder_RecordPanic(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	rec := NewRecorder(repo, nil, nil)

	entry := rec.RecordPanic(context.Background(), "nil map write")
	if entry.Kind != "string" || entry.Message != "nil map write" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Trace == "" {
		t.Fatalf("expected goroutine stack")
	}
}

func TestRecorder_IgnoresNil(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	rec := NewRecorder(repo, nil, nil)
	if entry := rec.Record(context.Background(), nil); entry != nil {
		t.Fatalf("expected nil entry, got %+v", entry)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected nothing stored")
	}
}
