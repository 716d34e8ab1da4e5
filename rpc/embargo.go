package rpc

import (
	"context"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
)

type embargoID uint32

// queueDisembargo implements the senderLoopback half of spec.md
// §4.7's Disembargo row: the peer inserted an embargo between this
// answer's resolution path and its own subsequent calls, and expects
// the receiverLoopback echo only once every call already pipelined
// against the answer has been delivered. The echo message is built
// immediately (target still references the inbound message) and
// either sent right away, when the answer has resolved and its queue
// already drained, or parked on the answer for flushQueue to send
// after the queued calls go out. The caller holds a.conn.mu.
func (a *answer) queueDisembargo(id embargoID, target rpccapnp.MessageTarget) error {
	resp := a.conn.newMessage()
	rd, err := resp.NewDisembargo()
	if err != nil {
		return err
	}
	rd.Context().SetReceiverLoopback(uint32(id))
	if err := rd.SetTarget(target); err != nil {
		return err
	}
	if _, _, done := a.peek(); !done {
		a.echoes = append(a.echoes, resp)
		return nil
	}
	return a.conn.sendMessage(resp)
}

func (c *Conn) addEmbargo(id embargoID, ch chan<- struct{}) {
	for int(id) >= len(c.embargoes) {
		c.embargoes = append(c.embargoes, nil)
	}
	c.embargoes[id] = ch
}

// disembargo implements the receiverLoopback half: it releases the
// embargo registered under id, letting queued calls through.
func (c *Conn) disembargo(id embargoID) {
	if int(id) >= len(c.embargoes) || c.embargoes[id] == nil {
		return
	}
	ch := c.embargoes[id]
	c.embargoes[id] = nil
	c.embargoID.release(uint32(id))
	close(ch)
}

// embargoClient wraps a resolved client so that calls issued against
// it block until the matching Disembargo round-trip completes,
// preserving E-order across promise resolution (spec.md §4.7's
// Resolve row). This mirrors the queueing embargoClient found in the
// wider Cap'n Proto Go ecosystem.
type embargoClient struct {
	inner capnp.Client
	ready <-chan struct{}
}

func newEmbargoClient(inner capnp.Client, ready <-chan struct{}) capnp.Client {
	return embargoClient{inner: inner, ready: ready}
}

func (e embargoClient) Call(ctx context.Context, call *capnp.Call) capnp.Answer {
	select {
	case <-e.ready:
		return e.inner.Call(ctx, call)
	case <-ctx.Done():
		return capnp.ErrorAnswer(ctx.Err())
	}
}

func (e embargoClient) Close() error { return e.inner.Close() }
