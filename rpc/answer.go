package rpc

import (
	"context"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
)

type answerID uint32

// isAdopted reports whether id carries the "third-party-adopted"
// marker bit (spec.md §3, §9's Open Question 2): bit 30 set, bit 31
// clear. handleThirdPartyAnswer rejects an inbound ThirdPartyAnswer
// whose answer id fails this check; no local id allocation uses it.
func (id answerID) isAdopted() bool {
	return id&0x40000000 != 0 && id&0x80000000 == 0
}

// pcall is a call queued against an answer that hasn't resolved yet
// (spec.md §4.8's queue_promise_export plan, and the receiver-answer
// pipelining path of §4.6). deliver is invoked with the eventual
// Answer once the owning answer resolves.
type pcall struct {
	transform []capnp.PipelineOp
	call      *capnp.Call
	deliver   func(capnp.Answer)
}

// answer is the callee-side record for an inbound Call or Bootstrap:
// it buffers pipelined calls that arrive before the underlying host
// call resolves, the same role bobg's answer.go and iguazio's
// fulfiller.go play in their respective repos.
type answer struct {
	conn   *Conn
	id     answerID
	cancel context.CancelFunc

	resolved   bool
	obj        capnp.Ptr
	err        error
	resultCaps []exportID
	queue      []pcall

	// done closes once the answer settles (fulfill, reject, or a
	// forwarded resolution), so other parts of the engine — a
	// takeFromOtherQuestion stitch, most notably — can wait on it the
	// way they wait on a question's done channel.
	done chan struct{}

	// echoes holds receiverLoopback Disembargo replies deferred until
	// this answer resolves and its queued calls have been delivered
	// (spec.md §4.7's Disembargo row); flushQueue sends them last.
	echoes []rpccapnp.Message
}

func (c *Conn) insertAnswer(id answerID, cancel context.CancelFunc) *answer {
	if c.answers == nil {
		c.answers = make(map[answerID]*answer)
	}
	if _, ok := c.answers[id]; ok {
		return nil
	}
	a := &answer{conn: c, id: id, cancel: cancel, done: make(chan struct{})}
	c.answers[id] = a
	return a
}

// signalDone closes a.done exactly once. The caller holds a.conn.mu,
// and a's obj/err must already hold their final values.
func (a *answer) signalDone() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

func (c *Conn) popAnswer(id answerID) *answer {
	a := c.answers[id]
	delete(c.answers, id)
	return a
}

// peek reports whether the answer has resolved, returning its result
// or error in that case.
func (a *answer) peek() (obj capnp.Ptr, err error, done bool) {
	if !a.resolved {
		return capnp.Ptr{}, nil, false
	}
	return a.obj, a.err, true
}

// queueCall buffers pc against a, to be delivered once a resolves.
func (a *answer) queueCall(pc pcall) error {
	if a.resolved {
		client := clientFromResolution(pc.transform, a.obj, a.err)
		pc.deliver(client.Call(pc.call.Ctx, pc.call))
		return nil
	}
	a.queue = append(a.queue, pc)
	return nil
}

// pipelineCall dispatches call, descending transform into a's
// eventual result. Used both for receiver-answer capabilities handed
// to the remote vat and for locally queued calls against answers
// this peer hasn't finished computing yet.
func (a *answer) pipelineCall(ctx context.Context, transform []capnp.PipelineOp, call *capnp.Call) capnp.Answer {
	if a.resolved {
		return clientFromResolution(transform, a.obj, a.err).Call(ctx, call)
	}
	da := newDeferredAnswer()
	a.queueCall(pcall{
		transform: transform,
		call:      call,
		deliver: func(ans capnp.Answer) {
			s, err := ans.Struct()
			da.resolve(s, err)
		},
	})
	return da
}

func (a *answer) pipelineClient(transform []capnp.PipelineOp) capnp.Client {
	return answerPipelineClient{conn: a.conn, id: a.id, transform: transform}
}

// fulfill resolves a with obj, sends the corresponding Return, and
// flushes any queued pipelined calls. The caller holds a.conn.mu.
func (a *answer) fulfill(obj capnp.Ptr) error {
	a.resolved = true
	a.obj = obj
	defer a.signalDone()

	ret := a.conn.newReturnMessage(a.id)
	r, _ := ret.Return()
	results, err := r.NewResults()
	if err != nil {
		return err
	}
	embedded, err := embedResult(results.Segment(), obj)
	if err != nil {
		return err
	}
	if err := results.SetContent(embedded); err != nil {
		return err
	}
	// Re-read the content pointer rather than keeping the pre-embed
	// obj: a.obj must reference results' own segment so that future
	// pipelined calls resolve against the message we actually sent.
	resolvedObj, err := results.ContentPtr()
	if err != nil {
		return err
	}
	a.obj = resolvedObj
	ctab, resultCaps, err := a.conn.makeCapTable(results.Segment())
	if err != nil {
		return err
	}
	if err := results.SetCapTable(ctab); err != nil {
		return err
	}
	a.resultCaps = resultCaps
	sendErr := a.conn.sendMessage(ret)
	a.flushQueue()
	return sendErr
}

// fulfillForwarded resolves a by forwarding to q, an outbound
// question this connection has already issued on a's behalf (spec.md
// §4.9's yourself-tail forwarding): instead of marshaling a's result
// itself, it sends an immediate Return{takeFromOtherQuestion: q.id}
// and waits for q to settle before flushing any pipelined calls
// queued against a in the meantime. The caller holds a.conn.mu.
func (a *answer) fulfillForwarded(q *question) error {
	ret := a.conn.newReturnMessage(a.id)
	r, _ := ret.Return()
	r.SetTakeFromOtherQuestion(uint32(q.id))
	sendErr := a.conn.sendMessage(ret)

	go func() {
		<-q.done
		q.mu.RLock()
		obj, err, state := q.obj, q.err, q.state
		q.mu.RUnlock()
		obj, err = translateForwardedReturn(obj, err, state)

		a.conn.mu.Lock()
		defer a.conn.mu.Unlock()
		a.resolved = true
		a.obj, a.err = obj, err
		a.signalDone()
		a.flushQueue()
	}()
	return sendErr
}

// fulfillClient resolves a directly to a bare capnp.Client — used for
// Bootstrap, whose result is never decoded off any wire message. The
// client is added straight to the Return's own capability table, so
// no cross-message embedding is needed.
func (a *answer) fulfillClient(client capnp.Client) error {
	defer a.signalDone()
	ret := a.conn.newReturnMessage(a.id)
	r, _ := ret.Return()
	results, err := r.NewResults()
	if err != nil {
		return err
	}
	seg := results.Segment()
	idx := seg.Message().AddCap(client)
	p, err := capnp.NewCapabilityPtr(idx)
	if err != nil {
		return err
	}
	if err := results.SetContent(p); err != nil {
		return err
	}
	resolvedObj, err := results.ContentPtr()
	if err != nil {
		return err
	}
	a.resolved = true
	a.obj = resolvedObj
	ctab, resultCaps, err := a.conn.makeCapTable(seg)
	if err != nil {
		return err
	}
	if err := results.SetCapTable(ctab); err != nil {
		return err
	}
	a.resultCaps = resultCaps
	sendErr := a.conn.sendMessage(ret)
	a.flushQueue()
	return sendErr
}

// reject resolves a with err, sending an exception Return.
func (a *answer) reject(err error) error {
	a.resolved = true
	a.err = err
	defer a.signalDone()

	ret := a.conn.newReturnMessage(a.id)
	r, _ := ret.Return()
	setReturnException(r, err)
	sendErr := a.conn.sendMessage(ret)
	a.flushQueue()
	delete(a.conn.answers, a.id)
	return sendErr
}

func (a *answer) flushQueue() {
	queue := a.queue
	a.queue = nil
	for _, pc := range queue {
		client := clientFromResolution(pc.transform, a.obj, a.err)
		pc.deliver(client.Call(pc.call.Ctx, pc.call))
	}
	// Deferred Disembargo echoes go out only after every queued call
	// above has been delivered, preserving E-order across the loopback.
	echoes := a.echoes
	a.echoes = nil
	for _, m := range echoes {
		a.conn.sendMessage(m)
	}
}

// joinAnswer waits for ans to resolve (off the connection's lock) and
// then fulfills or rejects result under the lock, the way the
// teacher's routeCallMessage dispatches local host calls.
func joinAnswer(result *answer, ans capnp.Answer) {
	s, err := ans.Struct()
	result.conn.mu.Lock()
	defer result.conn.mu.Unlock()
	if err != nil {
		result.reject(err)
		return
	}
	result.fulfill(s.ToPtr())
}

// deferredAnswer is a capnp.Answer that blocks until resolve is
// called, used to represent the result of a pipelined call issued
// against an unresolved local answer.
type deferredAnswer struct {
	done chan struct{}
	s    capnp.Struct
	err  error
}

func newDeferredAnswer() *deferredAnswer { return &deferredAnswer{done: make(chan struct{})} }

func (d *deferredAnswer) resolve(s capnp.Struct, err error) {
	d.s, d.err = s, err
	close(d.done)
}

func (d *deferredAnswer) Struct() (capnp.Struct, error) {
	<-d.done
	return d.s, d.err
}

func (d *deferredAnswer) PipelineCall(ctx context.Context, transform []capnp.PipelineOp, call *capnp.Call) capnp.Answer {
	<-d.done
	if d.err != nil {
		return capnp.ErrorAnswer(d.err)
	}
	p, err := capnp.TransformPtr(d.s.ToPtr(), transform)
	if err != nil {
		return capnp.ErrorAnswer(err)
	}
	cl := p.Client(d.s.Segment().Message())
	if cl == nil {
		return capnp.ErrorAnswer(capnp.ErrNullClient)
	}
	return cl.Call(ctx, call)
}

func (d *deferredAnswer) PipelineClose(transform []capnp.PipelineOp) error { return nil }
