package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrateOption configures Migrate.
type MigrateOption func(*migrateOptions)

type migrateOptions struct {
	fsys fs.FS
}

// WithMigrationsFS reads migrations from fsys instead of the local disk.
// Config.MigrationsPath is resolved inside fsys.
func WithMigrationsFS(fsys fs.FS) MigrateOption {
	return func(o *migrateOptions) {
		o.fsys = fsys
	}
}

// Migrate applies all pending goose migrations found at cfg.MigrationsPath.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log *slog.Logger, opts ...MigrateOption) error {
	if cfg.MigrationsPath == "" {
		return ErrMigrationPathNotProvided
	}
	o := &migrateOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.fsys == nil {
		o.fsys = os.DirFS(".")
	}
	if _, err := fs.Stat(o.fsys, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrMigrationsDirNotFound, err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(o.fsys)
	goose.SetLogger(&gooseLogger{log: log})
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// gooseLogger adapts slog to goose.Logger.
type gooseLogger struct {
	log *slog.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}
