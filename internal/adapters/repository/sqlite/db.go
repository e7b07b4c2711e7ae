package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// executor は *sqlx.DB と *sqlx.Tx の共通操作です。
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type txContextKey struct{}

// DB は組み込み SQLite ストアです。接続は 1 本に制限されます。
type DB struct {
	db *sqlx.DB
}

// Open は SQLite ファイルを開き、埋め込みマイグレーション (シードを含む) を適用します。
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite: create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("sqlite: create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: run migrations: %w", err)
	}

	return nil
}

// Ping は疎通確認を行います。
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close は接続を閉じます。
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) executor(ctx context.Context) executor {
	if tx, ok := ctx.Value(txContextKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return d.db
}

// TransactionManager は SQLite 用のトランザクション制御です。
// 書き込みはミューテックスで直列化し、検証から書き込みまでを他の書き込みと重ねません。
type TransactionManager struct {
	db      *DB
	writeMu sync.Mutex
}

// NewTransactionManager は TransactionManager を生成します。
func NewTransactionManager(db *DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithinReadOnly は読み取り専用トランザクションで fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return m.within(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

// WithinReadWrite は書き込みロックを取得したうえで読み書きトランザクションを実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.within(ctx, nil, fn)
}

func (m *TransactionManager) within(ctx context.Context, opts *sql.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("sqlite: transaction function is required")
	}

	if _, ok := ctx.Value(txContextKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	committed = true
	return nil
}
