// Package directory defines the durable tag→URL store that backs the tag
// cache. The directory is the source of truth: bindings written here outlive
// the cache and the process.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/sundayezeilo/shorttag/internal/errx"
)

// DefaultKeyPrefix is the parent path under which key-value backends store tags.
const DefaultKeyPrefix = "urls"

// reservedChars would corrupt hierarchical key paths.
const reservedChars = ".#$[]"

// Directory is the durable tag→URL store.
//
// Get returns an errx.NotFound error for unknown tags. Backend failures are
// reported as errx.Unavailable. No method retries.
type Directory interface {
	Exists(ctx context.Context, tag string) (bool, error)
	Get(ctx context.Context, tag string) (string, error)
	Set(ctx context.Context, tag, url string) error
}

// ConditionalSetter is implemented by directories that can insert a binding
// only when the tag is unbound, atomically. It reports false when the tag
// was already taken.
type ConditionalSetter interface {
	SetIfAbsent(ctx context.Context, tag, url string) (bool, error)
}

// Backend is a Directory with a connection lifecycle.
type Backend interface {
	Directory
	ConditionalSetter
	// Name identifies the backend kind in logs and health checks.
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// ErrReservedTag is returned when a tag would produce a malformed key path.
var ErrReservedTag = errors.New("tag contains reserved path characters")

// CheckTag rejects tags that cannot be used as a key path segment.
func CheckTag(op, tag string) error {
	if tag == "" {
		return errx.E(op, errx.Invalid, errors.New("tag cannot be empty"))
	}
	if strings.ContainsAny(tag, reservedChars) {
		return errx.E(op, errx.Invalid, ErrReservedTag)
	}
	return nil
}

// KeyPath joins prefix and tag into the hierarchical key "prefix/tag".
func KeyPath(prefix, tag string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return tag
	}
	return prefix + "/" + tag
}
