package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ogurasousui/employee-registry/internal/adapters/repository/postgres"
	"github.com/ogurasousui/employee-registry/internal/adapters/repository/sqlite"
	"github.com/ogurasousui/employee-registry/internal/core/employee"
	"github.com/ogurasousui/employee-registry/internal/platform/config"
	pgdb "github.com/ogurasousui/employee-registry/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const seedDateLayout = "2006-01-02T15:04:05"

type seedRecord struct {
	EmployeeID     int64           `json:"employeeID"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	BirthDate      string          `json:"birthDate"`
	EmploymentDate string          `json:"employmentDate"`
	BossID         *int64          `json:"bossID"`
	HomeAddress    string          `json:"homeAddress"`
	CurrentSalary  decimal.Decimal `json:"currentSalary"`
	Role           string          `json:"role"`
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the initial employee hierarchy, keeping existing rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			records, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			inserted, err := seedDatabase(cmd.Context(), cfg.Database, records)
			if err != nil {
				return err
			}

			logger.WithField("inserted", inserted).WithField("total", len(records)).Info("seed completed")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", defaultSeedFile, "JSON file with employee records")
	return cmd
}

func loadSeedFile(path string) ([]*employee.Employee, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}

	var raw []seedRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	records := make([]*employee.Employee, 0, len(raw))
	for _, r := range raw {
		birth, err := time.Parse(seedDateLayout, r.BirthDate)
		if err != nil {
			return nil, fmt.Errorf("employee %d birthDate: %w", r.EmployeeID, err)
		}
		employed, err := time.Parse(seedDateLayout, r.EmploymentDate)
		if err != nil {
			return nil, fmt.Errorf("employee %d employmentDate: %w", r.EmployeeID, err)
		}
		records = append(records, &employee.Employee{
			ID:             r.EmployeeID,
			FirstName:      r.FirstName,
			LastName:       r.LastName,
			BirthDate:      birth,
			EmploymentDate: employed,
			ManagerID:      r.BossID,
			HomeAddress:    r.HomeAddress,
			CurrentSalary:  r.CurrentSalary,
			Role:           r.Role,
		})
	}
	return records, nil
}

func seedDatabase(ctx context.Context, cfg config.DatabaseConfig, records []*employee.Employee) (int, error) {
	if cfg.Driver == config.DriverSQLite {
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return 0, err
		}
		defer db.Close()
		return employee.Seed(ctx, sqlite.NewEmployeeRepository(db), sqlite.NewTransactionManager(db), records)
	}

	pool, err := pgdb.NewPool(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer pool.Close()
	return employee.Seed(ctx, postgres.NewEmployeeRepository(pool), pgdb.NewTransactionManager(pool, pgdb.WithWriteLock(cfg.WriteLockKey)), records)
}
