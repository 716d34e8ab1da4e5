package rpc

import (
	"context"
	"sync"
)

// manager coordinates the goroutines backing a Conn (the receive
// loop, the send loop, and the shutdown waiter) so that any one of
// them failing tears down the rest via a single shared context and a
// single recorded error, the way the teacher's Conn drives
// dispatchRecv/dispatchSend/Wait/Close off conn.manager.
type manager struct {
	ctx    context.Context
	cancel context.CancelFunc

	finish chan struct{}

	mu       sync.Mutex
	wg       sync.WaitGroup
	shutErr  error
	shutOnce sync.Once
}

func (m *manager) init() {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.finish = make(chan struct{})
}

// context returns a Context that is canceled once the manager shuts
// down, for use as the parent of any per-call context.
func (m *manager) context() context.Context { return m.ctx }

// do runs fn in its own goroutine, tracked by wait.
func (m *manager) do(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// shutdown records err as the manager's terminal error (first call
// wins) and cancels its context, waking every goroutine started via
// do. It reports whether this call initiated the shutdown.
func (m *manager) shutdown(err error) bool {
	initiated := false
	m.shutOnce.Do(func() {
		initiated = true
		m.mu.Lock()
		m.shutErr = err
		m.mu.Unlock()
		close(m.finish)
		m.cancel()
	})
	return initiated
}

// wait blocks until every goroutine started via do has returned.
func (m *manager) wait() { m.wg.Wait() }

// err returns the error passed to the shutdown call that actually
// initiated shutdown, or nil if the manager hasn't shut down yet or
// shut down cleanly.
func (m *manager) err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutErr
}
