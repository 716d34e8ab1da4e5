// Package refcount provides a reference-counted wrapper around a
// capnp.Client, so that a capability handed out to multiple owners
// (e.g. a connection's bootstrap interface plus the Conn's own
// shutdown path) is only closed once every owner has released it.
package refcount

import (
	"context"
	"sync"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
)

// RefCount is the shared state behind a family of Ref clients.
type RefCount struct {
	mu     sync.Mutex
	client capnp.Client
	n      int
}

// New wraps client in a RefCount and returns the RefCount plus the
// first Ref (reference count 1).
func New(client capnp.Client) (rc *RefCount, ref capnp.Client) {
	rc = &RefCount{client: client, n: 1}
	return rc, ref1{rc}
}

// Ref returns a new reference to the wrapped client, incrementing the
// count.
func (rc *RefCount) Ref() capnp.Client {
	rc.mu.Lock()
	rc.n++
	rc.mu.Unlock()
	return ref1{rc}
}

func (rc *RefCount) call(ctx context.Context, call *capnp.Call) capnp.Answer {
	rc.mu.Lock()
	c := rc.client
	closed := c == nil
	rc.mu.Unlock()
	if closed {
		return capnp.ErrorAnswer(capnp.ErrNullClient)
	}
	return c.Call(ctx, call)
}

func (rc *RefCount) release() error {
	rc.mu.Lock()
	rc.n--
	n := rc.n
	c := rc.client
	if n == 0 {
		rc.client = nil
	}
	rc.mu.Unlock()
	if n > 0 || c == nil {
		return nil
	}
	return c.Close()
}

type ref1 struct{ rc *RefCount }

func (r ref1) Call(ctx context.Context, call *capnp.Call) capnp.Answer { return r.rc.call(ctx, call) }
func (r ref1) Close() error                                            { return r.rc.release() }
