package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/employee-registry/internal/adapters/http/handler"
	"github.com/ogurasousui/employee-registry/internal/adapters/repository/postgres"
	"github.com/ogurasousui/employee-registry/internal/adapters/repository/sqlite"
	"github.com/ogurasousui/employee-registry/internal/core/employee"
	"github.com/ogurasousui/employee-registry/internal/core/exceptionlog"
	"github.com/ogurasousui/employee-registry/internal/platform/config"
	pg "github.com/ogurasousui/employee-registry/internal/platform/db/postgres"
	"github.com/ogurasousui/employee-registry/internal/platform/logging"
	"github.com/ogurasousui/employee-registry/internal/platform/server"
	"github.com/sirupsen/logrus"
)

// storage はドライバごとに組み立てた永続化層です。
type storage struct {
	employees employee.Repository
	exception exceptionlog.Repository
	tx        employee.TransactionManager
	health    handler.Pinger
	close     func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize logger")
	}

	store, err := openStorage(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).WithField("driver", cfg.Database.Driver).Fatal("failed to initialize storage")
	}
	defer store.close()

	employeeSvc := employee.NewService(store.employees, nil, store.tx, employee.WithLogger(logger))
	recorder := exceptionlog.NewRecorder(store.exception, nil, logger)

	var metrics *handler.Metrics
	if cfg.Metrics.Enabled {
		metrics = handler.NewMetrics()
	}

	router := handler.NewRouter(handler.NewEmployeeHandler(employeeSvc, recorder), handler.RouterOptions{
		APIPrefix:   cfg.Server.APIPrefix,
		Logger:      logger,
		Recorder:    recorder,
		Health:      store.health,
		Metrics:     metrics,
		MetricsPath: cfg.Metrics.Path,
	})

	httpServer := server.New(cfg.Server, router, logger)

	logger.WithFields(logrus.Fields{
		"addr":   cfg.Server.ListenAddr,
		"driver": cfg.Database.Driver,
		"prefix": cfg.Server.APIPrefix,
	}).Info("employee registry starting")

	if err := httpServer.Run(ctx); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}

	logger.Info("employee registry stopped")
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig) (*storage, error) {
	if cfg.Driver == config.DriverSQLite {
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storage{
			employees: sqlite.NewEmployeeRepository(db),
			exception: sqlite.NewExceptionLogRepository(db),
			tx:        sqlite.NewTransactionManager(db),
			health:    db,
			close:     func() { _ = db.Close() },
		}, nil
	}

	pool, err := pg.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &storage{
		employees: postgres.NewEmployeeRepository(pool),
		exception: postgres.NewExceptionLogRepository(pool),
		tx:        pg.NewTransactionManager(pool, pg.WithWriteLock(cfg.WriteLockKey)),
		health:    pool,
		close:     pool.Close,
	}, nil
}
