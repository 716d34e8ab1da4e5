// Package transport defines the async transport contract the rpc
// engine consumes, per spec.md §4.11. The engine never implements a
// transport itself; internal/pipetransport and internal/logtransport
// provide the two transports used by this repo's tests and demo.
package transport

import (
	"context"
	"sync"
	"time"
)

// OnData is invoked on the event-loop thread with each slice of bytes
// read from the wire. The slice's lifetime ends when the callback
// returns; implementations must copy it if they need to retain it.
type OnData func(data []byte)

// OnDone is invoked when a queued write completes or fails.
type OnDone func(err error)

// OnClose is invoked exactly once when the transport has finished
// closing, successfully or not.
type OnClose func(err error)

// Transport is the core's async transport contract (spec.md §4.11).
// Implementations must deliver StartRead's callback, and each
// QueueWrite's on_done, on the same event-loop thread the engine
// drives from, and must fire OnClose at most once.
type Transport interface {
	// StartRead arranges for onData to be called with each slice of
	// incoming bytes. It returns an error if reading could not start.
	StartRead(ctx context.Context, onData OnData) error
	// QueueWrite copies data and arranges for onDone to be called when
	// the write completes or fails.
	QueueWrite(ctx context.Context, data []byte, onDone OnDone)
	// Close is idempotent; it eventually fires the close handler
	// registered via SetCloseHandler exactly once.
	Close() error
	// IsClosing reports whether Close has been called (or the
	// transport has otherwise begun shutting down).
	IsClosing() bool
	// ClearHandlers detaches onData/onDone/onClose so that any
	// in-flight callbacks become no-ops.
	ClearHandlers()
	// AbandonPendingWrites fails all writes queued but not yet
	// completed, without blocking.
	AbandonPendingWrites()
	// SetCloseHandler registers the handler invoked by signalClose.
	SetCloseHandler(onClose OnClose)
}

// WriteDrainBudget is the only bounded wait in the core: on shutdown,
// pending writes get this long to complete before being abandoned
// (spec.md §5, "Timeouts").
const WriteDrainBudget = 200 * time.Millisecond

// CloseState centralizes the close-sequencing state machine described
// in spec.md §4.11: EOF, a read/write error, and an explicit Close
// call must all funnel through signalClose exactly once, and pending
// writes get a bounded drain before remaining callbacks are
// neutered. Transport implementations embed CloseState rather than
// reimplementing this bookkeeping.
type CloseState struct {
	mu             sync.Mutex
	closeRequested bool
	shuttingDown   bool
	closeSignaled  bool
	onClose        OnClose

	pending sync.WaitGroup
}

// SetCloseHandler registers the handler invoked (at most once) by
// SignalClose.
func (c *CloseState) SetCloseHandler(onClose OnClose) {
	c.mu.Lock()
	c.onClose = onClose
	c.mu.Unlock()
}

// RequestClose marks the state as closing. It returns true the first
// time it's called, false on subsequent calls (Close is idempotent).
func (c *CloseState) RequestClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeRequested {
		return false
	}
	c.closeRequested = true
	return true
}

// IsClosing reports whether RequestClose or SignalClose has been
// called.
func (c *CloseState) IsClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeRequested || c.shuttingDown
}

// TrackWrite records a write as pending; call the returned func when
// it completes (successfully or not) so Drain can bound its wait.
func (c *CloseState) TrackWrite() func() {
	c.pending.Add(1)
	var once sync.Once
	return func() { once.Do(c.pending.Done) }
}

// Drain waits up to WriteDrainBudget for all tracked writes to
// complete, then returns regardless. Callers that still hold pending
// writes after Drain returns must neuter their callbacks (see
// AbandonPendingWrites) so latent completions are safe no-ops.
func (c *CloseState) Drain() {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(WriteDrainBudget):
	}
}

// SignalClose funnels EOF, I/O errors, and explicit Close calls
// through a single path that fires the close handler exactly once.
func (c *CloseState) SignalClose(err error) {
	c.mu.Lock()
	if c.closeSignaled {
		c.mu.Unlock()
		return
	}
	c.closeSignaled = true
	c.shuttingDown = true
	handler := c.onClose
	c.mu.Unlock()

	c.Drain()
	if handler != nil {
		handler(err)
	}
}
