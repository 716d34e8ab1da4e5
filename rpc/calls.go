package rpc

import (
	"github.com/kasvtv/capnp-rpc-engine/capnp"
)

// callImportedCap issues an outbound Call targeting a capability the
// remote vat exported to us (spec.md §4.6's direct-call path),
// returning the question as a capnp.Answer so the caller can pipeline
// against it immediately.
func (c *Conn) callImportedCap(id importID, call *capnp.Call) capnp.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.manager.finish:
		return capnp.ErrorAnswer(c.manager.err())
	default:
	}
	var stream *streamState
	if call.Streaming {
		stream = c.streamFor(id)
		if err := stream.streamError(); err != nil {
			return capnp.ErrorAnswer(err)
		}
	}

	q := c.newQuestion(&call.Method)
	m := c.newMessage()
	mcall, _ := m.NewCall()
	mcall.SetQuestionId(uint32(q.id))
	mcall.SetInterfaceId(call.Method.InterfaceID)
	mcall.SetMethodId(call.Method.MethodID)
	target, err := mcall.NewTarget()
	if err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	target.SetImportedCap(uint32(id))
	payload, err := mcall.NewParams()
	if err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	paramCaps, err := c.fillParams(payload, call)
	if err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	q.paramCaps = paramCaps
	if err := c.sendMessage(m); err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	q.start()
	if stream != nil {
		stream.noteCallSent()
		go func() { <-q.done; q.mu.RLock(); err := q.err; q.mu.RUnlock(); stream.noteReturned(err) }()
	}
	return q
}

// callPromisedAnswer issues an outbound Call targeting a promised
// answer not yet resolved by the remote vat (the pipelined-call half
// of spec.md §4.6), descending transform into the eventual result.
func (c *Conn) callPromisedAnswer(parent questionID, transform []capnp.PipelineOp, call *capnp.Call) capnp.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.manager.finish:
		return capnp.ErrorAnswer(c.manager.err())
	default:
	}
	var stream *streamState
	if call.Streaming {
		stream = c.streamFor(parent)
		if err := stream.streamError(); err != nil {
			return capnp.ErrorAnswer(err)
		}
	}

	q := c.newQuestion(&call.Method)
	m := c.newMessage()
	mcall, _ := m.NewCall()
	mcall.SetQuestionId(uint32(q.id))
	mcall.SetInterfaceId(call.Method.InterfaceID)
	mcall.SetMethodId(call.Method.MethodID)
	target, err := mcall.NewTarget()
	if err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	pa, err := target.NewPromisedAnswer()
	if err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	pa.SetQuestionId(uint32(parent))
	if err := transformToPromisedAnswer(m.Segment(), pa, transform); err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	payload, err := mcall.NewParams()
	if err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	paramCaps, err := c.fillParams(payload, call)
	if err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	q.paramCaps = paramCaps
	if err := c.sendMessage(m); err != nil {
		c.popQuestion(q.id)
		return capnp.ErrorAnswer(err)
	}
	q.start()
	if stream != nil {
		stream.noteCallSent()
		go func() { <-q.done; q.mu.RLock(); err := q.err; q.mu.RUnlock(); stream.noteReturned(err) }()
	}
	return q
}
