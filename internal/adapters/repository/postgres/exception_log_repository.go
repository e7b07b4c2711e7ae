package postgres

import (
	"context"

	"github.com/ogurasousui/employee-registry/internal/core/exceptionlog"
	pgdb "github.com/ogurasousui/employee-registry/internal/platform/db/postgres"
	"github.com/pkg/errors"
)

const insertExceptionLogSQL = `
        INSERT INTO exception_log (kind, message, trace, occurred_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id`

// ExceptionLogRepository は障害記録を PostgreSQL に追記します。
// リクエストのトランザクションがロールバックされても残るよう、常にプールを直接使います。
type ExceptionLogRepository struct {
	pool pgdb.Queryer
}

// NewExceptionLogRepository は ExceptionLogRepository を生成します。
func NewExceptionLogRepository(pool pgdb.Queryer) *ExceptionLogRepository {
	return &ExceptionLogRepository{pool: pool}
}

// Append は障害記録を 1 件追加します。
func (r *ExceptionLogRepository) Append(ctx context.Context, entry *exceptionlog.Entry) (*exceptionlog.Entry, error) {
	stored := *entry
	if err := r.pool.QueryRow(ctx, insertExceptionLogSQL,
		entry.Kind,
		entry.Message,
		entry.Trace,
		entry.OccurredAt,
	).Scan(&stored.ID); err != nil {
		return nil, errors.Wrap(err, "postgres: append exception log")
	}
	return &stored, nil
}
