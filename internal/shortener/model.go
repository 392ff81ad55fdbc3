package shortener

import (
	"context"
	"time"
)

// Result is a successfully bound tag.
type Result struct {
	Tag      string
	URL      string
	ShortURL string
}

// Cache holds recently used bindings in front of the directory.
type Cache interface {
	Get(tag string) (string, bool)
	// Set stores a binding; a non-positive ttl selects the cache default.
	Set(tag, url string, ttl time.Duration)
}

// UsageEmitter records that a tag was resolved. Implementations must not block.
type UsageEmitter interface {
	Emit(ctx context.Context, clientID, url string)
}

// ClientIdentifier derives the pseudo client id reported with usage events.
type ClientIdentifier interface {
	Derive(addr string) string
}
