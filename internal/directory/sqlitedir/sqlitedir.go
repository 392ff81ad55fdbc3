// Package sqlitedir stores tag bindings in a single-file SQLite database.
// It suits single-node deployments and tests that need a real SQL backend
// without a server.
package sqlitedir

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sundayezeilo/shorttag/internal/directory"
	"github.com/sundayezeilo/shorttag/internal/errx"
	"github.com/sundayezeilo/shorttag/internal/migrations"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const table = "tags"

type Directory struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

var _ directory.Backend = (*Directory)(nil)

// DSN turns a sqlite:// URL into a driver data source name.
// "sqlite:///var/lib/tags.db" opens an absolute path, "sqlite://tags.db" a
// relative one and "sqlite://:memory:" a private in-memory database.
// file: URIs pass through unchanged.
func DSN(url string) (string, error) {
	switch {
	case strings.HasPrefix(url, "file:"):
		return url, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", errors.New("sqlite url has no path")
		}
		return path, nil
	default:
		return "", fmt.Errorf("unsupported sqlite url %q", url)
	}
}

// Open opens the database at dsn and, when migrate is set, applies the
// embedded schema. The pool is limited to one connection so that an
// in-memory database is shared by every query.
func Open(ctx context.Context, dsn string, migrate bool, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	logger.Info("opened sqlite directory", "dsn", dsn)

	if migrate {
		if err := Migrate(db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return New(db), nil
}

// New wraps an open database that already carries the tags schema.
func New(db *sql.DB) *Directory {
	return &Directory{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

// Migrate applies the embedded schema over db without taking ownership of it.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrations.NewWithDatabase(migrationFiles, "migrations", "sqlite", driver, logger)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (d *Directory) Name() string { return "sqlite" }

func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Directory) Close() error {
	return d.db.Close()
}

func (d *Directory) Exists(ctx context.Context, tag string) (bool, error) {
	const op = "sqlitedir.Exists"
	if err := directory.CheckTag(op, tag); err != nil {
		return false, err
	}

	query, args, err := d.qb.Select("1").From(table).Where(sq.Eq{"tag": tag}).
		Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, errx.E(op, errx.Internal, err)
	}

	var exists bool
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, mapError(op, err)
	}
	return exists, nil
}

func (d *Directory) Get(ctx context.Context, tag string) (string, error) {
	const op = "sqlitedir.Get"
	if err := directory.CheckTag(op, tag); err != nil {
		return "", err
	}

	query, args, err := d.qb.Select("url").From(table).Where(sq.Eq{"tag": tag}).ToSql()
	if err != nil {
		return "", errx.E(op, errx.Internal, err)
	}

	var url string
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&url); err != nil {
		return "", mapError(op, err)
	}
	return url, nil
}

func (d *Directory) Set(ctx context.Context, tag, url string) error {
	const op = "sqlitedir.Set"
	if err := directory.CheckTag(op, tag); err != nil {
		return err
	}

	query, args, err := d.qb.Insert(table).Columns("tag", "url").Values(tag, url).
		Suffix("ON CONFLICT (tag) DO UPDATE SET url = excluded.url, updated_at = CURRENT_TIMESTAMP").ToSql()
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(op, err)
	}
	return nil
}

func (d *Directory) SetIfAbsent(ctx context.Context, tag, url string) (bool, error) {
	const op = "sqlitedir.SetIfAbsent"
	if err := directory.CheckTag(op, tag); err != nil {
		return false, err
	}

	query, args, err := d.qb.Insert(table).Options("OR IGNORE").
		Columns("tag", "url").Values(tag, url).ToSql()
	if err != nil {
		return false, errx.E(op, errx.Internal, err)
	}

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errx.E(op, errx.Unavailable, err)
	}
	return n == 1, nil
}

func mapError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errx.E(op, errx.NotFound, err)
	}
	var sqlErr *sqlitedrv.Error
	if errors.As(err, &sqlErr) && sqlErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return errx.E(op, errx.Invalid, err)
	}
	return errx.E(op, errx.Unavailable, err)
}
