package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ogurasousui/employee-registry/internal/core/exceptionlog"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestExceptionLogRepository_Append(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewExceptionLogRepository(mock)
	occurred := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(insertExceptionLogSQL)).
		WithArgs("*errors.errorString", "boom", "boom\nstack", occurred).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))

	stored, err := repo.Append(context.Background(), &exceptionlog.Entry{
		Kind:       "*errors.errorString",
		Message:    "boom",
		Trace:      "boom\nstack",
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if stored.ID != 12 || stored.Message != "boom" {
		t.Fatalf("unexpected stored entry: %+v", stored)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExceptionLogRepository_AppendFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewExceptionLogRepository(mock)
	dbErr := errors.New("relation \"exception_log\" does not exist")

	mock.ExpectQuery(regexp.QuoteMeta(insertExceptionLogSQL)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(dbErr)

	if _, err := repo.Append(context.Background(), &exceptionlog.Entry{Message: "boom"}); !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
