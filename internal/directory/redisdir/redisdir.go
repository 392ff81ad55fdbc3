// Package redisdir stores tag bindings as Redis string keys laid out under a
// hierarchical prefix, e.g. "urls/abc12".
package redisdir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shorttag/internal/directory"
	"github.com/sundayezeilo/shorttag/internal/errx"
)

type Directory struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ directory.Backend = (*Directory)(nil)

// New wraps an existing client. An empty prefix stores tags at the top level.
func New(rdb redis.UniversalClient, prefix string) *Directory {
	return &Directory{rdb: rdb, prefix: prefix}
}

// Open parses a redis:// or rediss:// URL, connects and pings the server.
func Open(ctx context.Context, url, prefix string, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	logger.Info("connecting to redis", "addr", opts.Addr, "db", opts.DB, "prefix", prefix)

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return New(rdb, prefix), nil
}

func (d *Directory) Name() string { return "redis" }

func (d *Directory) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}

func (d *Directory) Close() error {
	return d.rdb.Close()
}

func (d *Directory) key(tag string) string {
	return directory.KeyPath(d.prefix, tag)
}

func (d *Directory) Exists(ctx context.Context, tag string) (bool, error) {
	const op = "redisdir.Exists"
	if err := directory.CheckTag(op, tag); err != nil {
		return false, err
	}

	n, err := d.rdb.Exists(ctx, d.key(tag)).Result()
	if err != nil {
		return false, errx.E(op, errx.Unavailable, err)
	}
	return n > 0, nil
}

func (d *Directory) Get(ctx context.Context, tag string) (string, error) {
	const op = "redisdir.Get"
	if err := directory.CheckTag(op, tag); err != nil {
		return "", err
	}

	url, err := d.rdb.Get(ctx, d.key(tag)).Result()
	if errors.Is(err, redis.Nil) {
		return "", errx.E(op, errx.NotFound, err)
	}
	if err != nil {
		return "", errx.E(op, errx.Unavailable, err)
	}
	return url, nil
}

// Set binds tag to url with no expiry, replacing an existing binding.
func (d *Directory) Set(ctx context.Context, tag, url string) error {
	const op = "redisdir.Set"
	if err := directory.CheckTag(op, tag); err != nil {
		return err
	}

	if err := d.rdb.Set(ctx, d.key(tag), url, 0).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (d *Directory) SetIfAbsent(ctx context.Context, tag, url string) (bool, error) {
	const op = "redisdir.SetIfAbsent"
	if err := directory.CheckTag(op, tag); err != nil {
		return false, err
	}

	ok, err := d.rdb.SetNX(ctx, d.key(tag), url, 0).Result()
	if err != nil {
		return false, errx.E(op, errx.Unavailable, err)
	}
	return ok, nil
}
