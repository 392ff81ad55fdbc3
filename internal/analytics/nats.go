package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sundayezeilo/shorttag/internal/errx"
)

// DefaultSubject is the NATS subject usage events are published on.
const DefaultSubject = "tags.usage"

// publisher is the subset of *nats.Conn the sink needs.
type publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSSink publishes each event as JSON. The event ID travels in the
// Nats-Msg-Id header so a JetStream stream on the subject can de-duplicate.
type NATSSink struct {
	conn    publisher
	subject string
}

// NewNATS wraps an existing connection.
func NewNATS(conn publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{conn: conn, subject: subject}
}

// DialNATS connects to url and returns a sink that owns the connection.
func DialNATS(url, subject string, logger *slog.Logger) (*NATSSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("shorttag"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info("connected to nats", "url", conn.ConnectedUrl(), "subject", subject)
	return NewNATS(conn, subject), nil
}

func (s *NATSSink) Send(ctx context.Context, ev Event) error {
	const op = "analytics.NATSSink.Send"

	data, err := json.Marshal(ev)
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}

	msg := nats.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.ID.String())

	if err := s.conn.PublishMsg(msg); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
