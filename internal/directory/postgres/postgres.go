// Package postgres stores tag bindings in a PostgreSQL table through pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/shorttag/internal/directory"
	"github.com/sundayezeilo/shorttag/internal/errx"
	"github.com/sundayezeilo/shorttag/internal/migrations"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const table = "tags"

// querier is the subset of *pgxpool.Pool the directory needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds connection settings.
type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
	Migrate  bool
	Logger   *slog.Logger
}

type Directory struct {
	q    querier
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

var _ directory.Backend = (*Directory)(nil)

// New wraps an existing querier. Ping and Close are no-ops unless the
// directory was created by Open.
func New(q querier) *Directory {
	return &Directory{
		q:  q,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects a pool, verifies it and, when cfg.Migrate is set, applies
// the embedded schema migrations.
func Open(ctx context.Context, cfg Config) (*Directory, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	logger.Info("connecting to postgres",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Migrate {
		if err := Migrate(cfg.URL, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	d := New(pool)
	d.pool = pool
	return d, nil
}

// Migrate applies the embedded schema to the database at url.
func Migrate(url string, logger *slog.Logger) error {
	m, err := migrations.New(migrationFiles, "migrations", url, logger)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (d *Directory) Name() string { return "postgres" }

func (d *Directory) Ping(ctx context.Context) error {
	if d.pool == nil {
		return nil
	}
	return d.pool.Ping(ctx)
}

func (d *Directory) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

func (d *Directory) Exists(ctx context.Context, tag string) (bool, error) {
	const op = "postgres.Exists"
	if err := directory.CheckTag(op, tag); err != nil {
		return false, err
	}

	query, args, err := d.qb.Select("1").From(table).Where(sq.Eq{"tag": tag}).
		Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, errx.E(op, errx.Internal, err)
	}

	var exists bool
	if err := d.q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, mapError(op, err)
	}
	return exists, nil
}

func (d *Directory) Get(ctx context.Context, tag string) (string, error) {
	const op = "postgres.Get"
	if err := directory.CheckTag(op, tag); err != nil {
		return "", err
	}

	query, args, err := d.qb.Select("url").From(table).Where(sq.Eq{"tag": tag}).ToSql()
	if err != nil {
		return "", errx.E(op, errx.Internal, err)
	}

	var url string
	if err := d.q.QueryRow(ctx, query, args...).Scan(&url); err != nil {
		return "", mapError(op, err)
	}
	return url, nil
}

// Set binds tag to url, replacing an existing binding.
func (d *Directory) Set(ctx context.Context, tag, url string) error {
	const op = "postgres.Set"
	if err := directory.CheckTag(op, tag); err != nil {
		return err
	}

	query, args, err := d.qb.Insert(table).Columns("tag", "url").Values(tag, url).
		Suffix("ON CONFLICT (tag) DO UPDATE SET url = EXCLUDED.url, updated_at = now()").ToSql()
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}

	if _, err := d.q.Exec(ctx, query, args...); err != nil {
		return mapError(op, err)
	}
	return nil
}

func (d *Directory) SetIfAbsent(ctx context.Context, tag, url string) (bool, error) {
	const op = "postgres.SetIfAbsent"
	if err := directory.CheckTag(op, tag); err != nil {
		return false, err
	}

	query, args, err := d.qb.Insert(table).Columns("tag", "url").Values(tag, url).
		Suffix("ON CONFLICT (tag) DO NOTHING").ToSql()
	if err != nil {
		return false, errx.E(op, errx.Internal, err)
	}

	res, err := d.q.Exec(ctx, query, args...)
	if err != nil {
		return false, mapError(op, err)
	}
	return res.RowsAffected() == 1, nil
}

func mapError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	case isUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)
	case isCheckViolation(err):
		return errx.E(op, errx.Invalid, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
