// Package analytics delivers anonymous tag-usage events to an outbound sink.
// Delivery is best-effort: failures are logged and dropped, never retried.
package analytics

import (
	"context"

	"github.com/google/uuid"
)

// EventLinkUsed is recorded each time a tag resolves to its URL.
const EventLinkUsed = "link_used"

// Event is a single usage record. ClientID is a pseudo-identifier and never
// the client's network address.
type Event struct {
	ID       uuid.UUID         `json:"id"`
	ClientID string            `json:"client_id"`
	Name     string            `json:"name"`
	Params   map[string]string `json:"params"`
}

// LinkUsed builds the event for a resolved link.
func LinkUsed(id uuid.UUID, clientID, url string) Event {
	return Event{
		ID:       id,
		ClientID: clientID,
		Name:     EventLinkUsed,
		Params:   map[string]string{"link": url},
	}
}

// Sink delivers one event.
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Send(context.Context, Event) error { return nil }
func (Noop) Close() error                      { return nil }
