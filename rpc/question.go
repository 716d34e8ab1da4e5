package rpc

import (
	"context"
	"sync"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
)

type questionID uint32

type questionState int

const (
	questionActive questionState = iota
	questionResolved
	questionCanceled
)

// question is the caller-side record for an outstanding Call or
// Bootstrap: it implements capnp.PipelineCaller so that pipelined
// calls against its eventual result can be issued (as new promised-
// answer Calls to the remote vat) before the Return arrives.
type question struct {
	conn      *Conn
	id        questionID
	method    *capnp.Method
	paramCaps []exportID

	mu    sync.RWMutex
	state questionState
	obj   capnp.Ptr
	err   error
	done  chan struct{}
}

func (c *Conn) newQuestion(method *capnp.Method) *question {
	id := questionID(c.questionID.next32())
	q := &question{conn: c, id: id, method: method, done: make(chan struct{})}
	for int(id) >= len(c.questions) {
		c.questions = append(c.questions, nil)
	}
	c.questions[id] = q
	return q
}

// start is a no-op hook, kept so call sites read the same way as the
// teacher's (q.start() marks the point after which the question is
// visible to the receive goroutine).
func (q *question) start() {}

func (c *Conn) popQuestion(id questionID) *question {
	if int(id) >= len(c.questions) {
		return nil
	}
	q := c.questions[id]
	c.questions[id] = nil
	if q != nil {
		c.questionID.release(uint32(id))
	}
	return q
}

func (q *question) fulfill(obj capnp.Ptr) {
	q.mu.Lock()
	if q.state != questionActive {
		q.mu.Unlock()
		return
	}
	q.obj, q.state = obj, questionResolved
	q.mu.Unlock()
	close(q.done)
}

func (q *question) reject(state questionState, err error) {
	q.mu.Lock()
	if q.state != questionActive {
		q.mu.Unlock()
		return
	}
	q.err, q.state = err, state
	q.mu.Unlock()
	close(q.done)
}

// cancel marks the question canceled without blocking; used when a
// local Finish races the Return (spec.md §5, "Cancellation").
func (q *question) cancel() {
	q.mu.Lock()
	if q.state == questionActive {
		q.state = questionCanceled
	}
	q.mu.Unlock()
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

func (q *question) Struct() (capnp.Struct, error) {
	<-q.done
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.err != nil {
		return capnp.Struct{}, q.err
	}
	return q.obj.Struct(), nil
}

func (q *question) PipelineCall(ctx context.Context, transform []capnp.PipelineOp, call *capnp.Call) capnp.Answer {
	select {
	case <-q.done:
		q.mu.RLock()
		obj, err := q.obj, q.err
		q.mu.RUnlock()
		return clientFromResolution(transform, obj, err).Call(ctx, call)
	default:
	}
	return q.conn.callPromisedAnswer(q.id, transform, call)
}

func (q *question) PipelineClose(transform []capnp.PipelineOp) error { return nil }
