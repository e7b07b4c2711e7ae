package sqlite

import (
	"context"
	"time"

	"github.com/ogurasousui/employee-registry/internal/core/exceptionlog"
	"github.com/pkg/errors"
)

// ExceptionLogRepository は障害記録を SQLite に追記します。
// リクエストのトランザクションとは独立して DB へ直接書き込みます。
type ExceptionLogRepository struct {
	db *DB
}

// NewExceptionLogRepository は ExceptionLogRepository を生成します。
func NewExceptionLogRepository(db *DB) *ExceptionLogRepository {
	return &ExceptionLogRepository{db: db}
}

// Append は障害記録を 1 件追加します。
func (r *ExceptionLogRepository) Append(ctx context.Context, entry *exceptionlog.Entry) (*exceptionlog.Entry, error) {
	res, err := r.db.db.ExecContext(ctx,
		`INSERT INTO exception_log (kind, message, trace, occurred_at) VALUES (?, ?, ?, ?)`,
		entry.Kind,
		entry.Message,
		entry.Trace,
		entry.OccurredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: append exception log")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: read exception log id")
	}

	stored := *entry
	stored.ID = id
	return &stored, nil
}
