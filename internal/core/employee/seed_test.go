package employee

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeImporter struct {
	stored map[int64]*Employee
	order  []int64
	err    error
}

func (f *fakeImporter) Import(ctx context.Context, e *Employee) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.stored == nil {
		f.stored = make(map[int64]*Employee)
	}
	if _, ok := f.stored[e.ID]; ok {
		return false, nil
	}
	f.stored[e.ID] = e
	f.order = append(f.order, e.ID)
	return true, nil
}

func TestSeed_KeepsIDsAndSkipsExisting(t *testing.T) {
	t.Parallel()

	boss := int64(1)
	records := []*Employee{
		{ID: 1, FirstName: "Culver", LastName: "Carde", BirthDate: time.Date(1991, 11, 5, 13, 0, 0, 0, time.UTC), CurrentSalary: decimal.RequireFromString("1486.664"), Role: RoleCEO},
		{ID: 9, FirstName: "Papagena", LastName: "Masding", ManagerID: &boss, CurrentSalary: decimal.RequireFromString("2824.65"), Role: "Business Development"},
	}

	importer := &fakeImporter{}
	tx := &recordingTxManager{}

	n, err := Seed(context.Background(), importer, tx, records)
	if err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}
	if tx.readWrite != 1 {
		t.Fatalf("expected one read-write transaction, got %d", tx.readWrite)
	}
	if importer.order[0] != 1 || importer.order[1] != 9 {
		t.Fatalf("unexpected import order: %v", importer.order)
	}
	ceo := importer.stored[1]
	if !ceo.BirthDate.Equal(time.Date(1991, 11, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected normalized birth date, got %v", ceo.BirthDate)
	}
	if !ceo.CurrentSalary.Equal(decimal.RequireFromString("1486.66")) {
		t.Fatalf("expected rounded salary, got %s", ceo.CurrentSalary)
	}

	n, err = Seed(context.Background(), importer, tx, records)
	if err != nil {
		t.Fatalf("second Seed returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing inserted on rerun, got %d", n)
	}
}

func TestSeed_RejectsMissingID(t *testing.T) {
	t.Parallel()

	_, err := Seed(context.Background(), &fakeImporter{}, nil, []*Employee{{FirstName: "No", LastName: "ID"}})
	if !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestSeed_PropagatesImportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := Seed(context.Background(), &fakeImporter{err: boom}, nil, []*Employee{{ID: 1}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected import error, got %v", err)
	}
}
