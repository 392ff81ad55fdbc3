package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sundayezeilo/shorttag/internal/idgen"
)

// Emitter sends usage events in the background. Emit never blocks on the
// sink and never reports its failures to the caller.
type Emitter struct {
	sink    Sink
	ids     idgen.Generator
	logger  *slog.Logger
	timeout time.Duration

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type EmitterConfig struct {
	Sink   Sink
	IDs    idgen.Generator
	Logger *slog.Logger
	// Timeout bounds each delivery. Zero means no bound beyond the sink's own.
	Timeout time.Duration
}

func NewEmitter(cfg EmitterConfig) *Emitter {
	e := &Emitter{
		sink:    cfg.Sink,
		ids:     cfg.IDs,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
	}
	if e.sink == nil {
		e.sink = Noop{}
	}
	if e.ids == nil {
		e.ids = idgen.NewV7()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Emit records a link_used event for url. ctx values are kept but its
// cancellation is not: the request that triggered the event is usually
// finished before delivery.
func (e *Emitter) Emit(ctx context.Context, clientID, url string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	id, err := e.ids.Generate()
	if err != nil {
		e.logger.Warn("usage event dropped", "reason", "id generation failed", "error", err)
		return
	}
	ev := LinkUsed(id, clientID, url)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		sendCtx := context.WithoutCancel(ctx)
		if e.timeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(sendCtx, e.timeout)
			defer cancel()
		}

		if err := e.sink.Send(sendCtx, ev); err != nil {
			e.logger.Warn("usage event delivery failed", "event_id", ev.ID, "error", err)
			return
		}
		e.logger.Debug("usage event delivered", "event_id", ev.ID)
	}()
}

// Close stops accepting events, waits for in-flight deliveries until ctx is
// done and then closes the sink.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("usage events still in flight at shutdown")
	}
	return e.sink.Close()
}
