// Package tagcache keeps recently written or resolved tag→URL bindings in
// process memory in front of the directory.
//
// Entries expire a fixed TTL after insertion; reads never extend it. Expiry
// is enforced at read time, and a background sweep periodically drops
// expired entries so memory does not grow with tags that are never read again.
// Everything held here can be rebuilt from the directory.
package tagcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultTTL           = 7 * 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

// Config holds cache settings. Zero values select the defaults.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// Cache is safe for concurrent use. Concurrent Set calls for one tag are
// last-writer-wins.
type Cache struct {
	items    *gocache.Cache
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// New creates a cache. The sweep does not run until Start is called.
func New(cfg Config) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		// A zero cleanup interval disables go-cache's own janitor; Start owns the sweep.
		items:    gocache.New(ttl, 0),
		ttl:      ttl,
		interval: interval,
		logger:   logger,
	}
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the URL bound to tag if an unexpired entry exists.
func (c *Cache) Get(tag string) (string, bool) {
	v, ok := c.items.Get(tag)
	if !ok {
		return "", false
	}
	url, ok := v.(string)
	return url, ok
}

// Set stores tag→url, replacing any existing entry. A non-positive ttl uses
// the cache default.
func (c *Cache) Set(tag, url string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.items.Set(tag, url, ttl)
}

// Len reports the number of stored entries, including expired ones the
// sweep has not removed yet.
func (c *Cache) Len() int { return c.items.ItemCount() }

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	before := c.items.ItemCount()
	c.items.DeleteExpired()
	removed := before - c.items.ItemCount()
	if removed < 0 {
		removed = 0
	}
	return removed
}

// Start runs Sweep every sweep interval until ctx is cancelled or Close is
// called. Calling Start on a running cache is a no-op.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})

	go c.run(ctx, c.stop, c.stopped)
}

func (c *Cache) run(ctx context.Context, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("tag cache swept", "removed", n, "remaining", c.Len())
			}
		}
	}
}

// Close stops the sweep and waits for it to exit. Entries stay readable.
func (c *Cache) Close() {
	c.mu.Lock()
	stop, stopped := c.stop, c.stopped
	c.stop, c.stopped = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}
