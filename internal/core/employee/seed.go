package employee

import (
	"context"
	"fmt"
)

// Importer は ID を保ったまま社員を取り込みます。既に同じ ID があれば false を返します。
type Importer interface {
	Import(ctx context.Context, employee *Employee) (bool, error)
}

// Seed は初期データを順に取り込み、新たに追加した件数を返します。
// 上長は部下より先に並んでいる必要があります。検証ルールは適用しません。
func Seed(ctx context.Context, importer Importer, tx TransactionManager, records []*Employee) (int, error) {
	if tx == nil {
		tx = noopTransactionManager{}
	}

	inserted := 0
	err := tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		for _, record := range records {
			if record == nil || record.ID <= 0 {
				return fmt.Errorf("seed: %w", ErrInvalidID)
			}
			e := record.Clone()
			e.BirthDate = normalizeDate(e.BirthDate)
			e.EmploymentDate = normalizeDate(e.EmploymentDate)
			e.CurrentSalary = NormalizeSalary(e.CurrentSalary)

			added, err := importer.Import(ctx, e)
			if err != nil {
				return fmt.Errorf("seed employee %d: %w", record.ID, err)
			}
			if added {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
