// Package pipetransport provides an in-memory transport.Transport
// pair, for tests that need two ends of a connection without a real
// socket — the same role zombiezen.com/go/capnproto2/rpc/transport's
// pipe helper plays in the teacher's test suite.
package pipetransport

import (
	"context"
	"errors"
	"sync"

	"github.com/kasvtv/capnp-rpc-engine/transport"
)

// ErrClosed is returned by QueueWrite once the transport has closed.
var ErrClosed = errors.New("pipetransport: closed")

// New returns two Transports, each of which reads what the other
// writes.
func New() (a, b transport.Transport) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	abClosed := make(chan struct{})
	baClosed := make(chan struct{})
	p1 := &pipeHalf{out: ab, outClosed: abClosed, in: ba, inClosed: baClosed}
	p2 := &pipeHalf{out: ba, outClosed: baClosed, in: ab, inClosed: abClosed}
	return p1, p2
}

type pipeHalf struct {
	transport.CloseState

	out       chan<- []byte
	outClosed chan struct{} // closed by this half's Close; the peer's EOF signal
	in        <-chan []byte
	inClosed  <-chan struct{}

	mu      sync.Mutex
	onData  transport.OnData
	readCtx context.Context
	stopCh  chan struct{}
}

func (p *pipeHalf) StartRead(ctx context.Context, onData transport.OnData) error {
	p.mu.Lock()
	p.onData = onData
	p.readCtx = ctx
	stop := make(chan struct{})
	p.stopCh = stop
	p.mu.Unlock()

	go p.readLoop(stop)
	return nil
}

func (p *pipeHalf) readLoop(stop chan struct{}) {
	for {
		select {
		case b := <-p.in:
			p.mu.Lock()
			cb := p.onData
			p.mu.Unlock()
			if cb != nil {
				cb(b)
			}
		case <-p.inClosed:
			// Deliver anything the peer wrote before closing, then EOF.
			for {
				select {
				case b := <-p.in:
					p.mu.Lock()
					cb := p.onData
					p.mu.Unlock()
					if cb != nil {
						cb(b)
					}
				default:
					p.SignalClose(nil)
					return
				}
			}
		case <-stop:
			return
		}
	}
}

func (p *pipeHalf) QueueWrite(ctx context.Context, data []byte, onDone transport.OnDone) {
	done := p.TrackWrite()
	cp := make([]byte, len(data))
	copy(cp, data)
	go func() {
		defer done()
		if p.IsClosing() {
			if onDone != nil {
				onDone(ErrClosed)
			}
			return
		}
		select {
		case p.out <- cp:
			if onDone != nil {
				onDone(nil)
			}
		case <-p.outClosed:
			if onDone != nil {
				onDone(ErrClosed)
			}
		case <-ctx.Done():
			if onDone != nil {
				onDone(ctx.Err())
			}
		}
	}()
}

func (p *pipeHalf) Close() error {
	if !p.RequestClose() {
		return nil
	}
	p.mu.Lock()
	stop := p.stopCh
	p.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	// The out channel itself is never closed (a racing QueueWrite could
	// panic sending on it); outClosed is the peer's EOF signal instead.
	close(p.outClosed)
	p.SignalClose(nil)
	return nil
}

func (p *pipeHalf) ClearHandlers() {
	p.mu.Lock()
	p.onData = nil
	p.mu.Unlock()
}

func (p *pipeHalf) AbandonPendingWrites() {
	// Writes are tracked via CloseState.TrackWrite; Drain (invoked by
	// SignalClose) already bounds how long we wait for them, and
	// outClosed fails any write still blocked in its select.
}
