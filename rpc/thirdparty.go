package rpc

import (
	"github.com/kasvtv/capnp-rpc-engine/capnp"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
)

// Provide/Accept/Join/ThirdPartyAnswer model third-party handoff
// (spec.md §4.7's vat-introduction rows) as a purely local loopback:
// this engine has no multi-vat network, so a Provide simply parks the
// named capability under the protocol's own opaque recipient key, and
// the matching Accept looks it up by that same key. This keeps the
// wire grammar fully implemented without fabricating a third vat.

// handleProvide implements the Provide row: export target under the
// key the recipient descriptor carries, for a later local Accept to
// retrieve.
func (c *Conn) handleProvide(m rpccapnp.Message) error {
	p, err := m.Provide()
	if err != nil {
		return err
	}
	mt, err := p.Target()
	if err != nil {
		return err
	}
	key, err := p.Recipient()
	if err != nil {
		return err
	}
	client, err := c.resolveMessageTarget(mt)
	if err != nil {
		return c.sendExceptionReturn(answerID(p.QuestionId()), err)
	}
	qid := answerID(p.QuestionId())
	if _, dup := c.providesByQuestion[qid]; dup {
		return c.sendExceptionReturn(qid, ErrDuplicateProvision)
	}
	if _, dup := c.provides[key]; dup {
		return c.sendExceptionReturn(qid, ErrDuplicateProvision)
	}
	if c.provides == nil {
		c.provides = make(map[string]capnp.Client)
	}
	if c.providesByQuestion == nil {
		c.providesByQuestion = make(map[answerID]string)
	}
	c.provides[key] = client
	c.providesByQuestion[qid] = key
	ret := c.newReturnMessage(answerID(p.QuestionId()))
	r, _ := ret.Return()
	if _, err := r.NewResults(); err != nil {
		return err
	}
	return c.sendMessage(ret)
}

// handleAccept implements the Accept row: resolve provision to the
// capability a prior local Provide registered, and return it as a
// capability-only payload. An Accept carrying an embargo has its reply
// withheld until the matching Disembargo accept arrives.
func (c *Conn) handleAccept(m rpccapnp.Message) error {
	a, err := m.Accept()
	if err != nil {
		return err
	}
	key, err := a.Provision()
	if err != nil {
		return err
	}
	qid := answerID(a.QuestionId())
	client, ok := c.provides[key]
	if !ok {
		return c.sendExceptionReturn(qid, ErrUnknownProvision)
	}
	delete(c.provides, key)
	for pq, k := range c.providesByQuestion {
		if k == key {
			delete(c.providesByQuestion, pq)
			break
		}
	}
	if a.Embargo() {
		if c.embargoedAccepts == nil {
			c.embargoedAccepts = make(map[answerID]capnp.Client)
		}
		c.embargoedAccepts[qid] = client
		return nil
	}
	return c.sendCapReturn(qid, client)
}

// sendCapReturn sends a Return for id whose payload is a single
// capability pointer to client, the reply shape shared by Accept,
// Join, and a released embargoed Accept.
func (c *Conn) sendCapReturn(id answerID, client capnp.Client) error {
	ret := c.newReturnMessage(id)
	r, _ := ret.Return()
	results, err := r.NewResults()
	if err != nil {
		return err
	}
	seg := results.Segment()
	idx := seg.Message().AddCap(client)
	ptr, err := capnp.NewCapabilityPtr(idx)
	if err != nil {
		return err
	}
	if err := results.SetContent(ptr); err != nil {
		return err
	}
	ctab, _, err := c.makeCapTable(seg)
	if err != nil {
		return err
	}
	if err := results.SetCapTable(ctab); err != nil {
		return err
	}
	return c.sendMessage(ret)
}

// handleJoin implements the Join row, restricted to single-part joins
// (spec.md §4.7's Open Question decision, recorded in DESIGN.md):
// without a real multi-vat network there is nothing to rendezvous
// with a second part on, so only PartCount()==1 is answered, by
// resolving Target directly.
func (c *Conn) handleJoin(m rpccapnp.Message) error {
	j, err := m.Join()
	if err != nil {
		return err
	}
	kp, err := j.KeyPart()
	if err != nil {
		return err
	}
	id := answerID(j.QuestionId())
	if kp.PartCount() != 1 {
		return c.sendExceptionReturn(id, ErrUnsupportedJoin)
	}
	mt, err := j.Target()
	if err != nil {
		return err
	}
	client, err := c.resolveMessageTarget(mt)
	if err != nil {
		return c.sendExceptionReturn(id, err)
	}
	return c.sendCapReturn(id, client)
}

// handleThirdPartyAnswer implements the ThirdPartyAnswer row
// (spec.md §4.7's bookkeeping table, Testable Property S6): a
// ThirdPartyAnswer names the answer id the sender has assigned for a
// capability being handed off via a completion token. This engine has
// no separate third vat to actually fetch Completion's results from
// (see DESIGN.md), but the adoption bookkeeping itself — matching a
// parked await against a parked answer, or parking whichever side
// arrives first — is pure local state and is implemented fully.
func (c *Conn) handleThirdPartyAnswer(m rpccapnp.Message) error {
	t, err := m.ThirdPartyAnswer()
	if err != nil {
		return err
	}
	id := answerID(t.AnswerId())
	if !id.isAdopted() {
		return ErrInvalidThirdPartyAnswerId
	}
	key, err := t.Completion()
	if err != nil {
		return err
	}
	if q, ok := c.pendingAwaits[key]; ok {
		delete(c.pendingAwaits, key)
		c.adopt(q.id, id, q)
		// The Return that parked q under pendingAwaits deferred its
		// Finish until adoption settled; send it now.
		c.sendMessage(c.newFinishMessage(q.id, true))
		return nil
	}
	if existing, ok := c.pendingAnswers[key]; ok {
		if existing != id {
			return ErrConflictingThirdPartyAnswer
		}
		return nil
	}
	if c.pendingAnswers == nil {
		c.pendingAnswers = make(map[string]answerID)
	}
	c.pendingAnswers[key] = id
	return nil
}

// adopt completes a third-party handoff: localID's question is taken
// over by thirdPartyID, the answer id the peer announced via
// ThirdPartyAnswer. Recorded in adoptedAnswers per spec.md §3
// (adopted_answer_id → original_answer_id). This engine cannot dial
// the actual third vat to retrieve thirdPartyID's results, so the
// question settles with ErrUnsupportedJoin once the handoff itself is
// recorded — the part Testable Property S6 exercises.
func (c *Conn) adopt(localID questionID, thirdPartyID answerID, q *question) {
	if c.adoptedAnswers == nil {
		c.adoptedAnswers = make(map[answerID]answerID)
	}
	c.adoptedAnswers[thirdPartyID] = answerID(localID)
	q.reject(questionResolved, ErrUnsupportedJoin)
}

// thirdPartyCompletionKey extracts the opaque completion token a
// Return's accept_from_third_party pointer carries. This hand-written
// codec represents it as a plain text list rather than a nested
// ThirdPartyCapDescriptor, since the only information this engine's
// local loopback needs is the token string itself.
func thirdPartyCompletionKey(p capnp.Ptr) (string, error) {
	if !p.IsValid() {
		return "", errBadTarget
	}
	return capnp.ListText(p.List())
}

// resolveMessageTarget resolves mt (an importedCap or promisedAnswer
// target) to a concrete client, for the handlers above that need one
// synchronously rather than queuing against a pending answer.
func (c *Conn) resolveMessageTarget(mt rpccapnp.MessageTarget) (capnp.Client, error) {
	switch mt.Which() {
	case rpccapnp.MessageTarget_Which_importedCap:
		id := exportID(mt.ImportedCap())
		e := c.findExport(id)
		if e == nil {
			return nil, errBadTarget
		}
		return e.client, nil
	case rpccapnp.MessageTarget_Which_promisedAnswer:
		pa, err := mt.PromisedAnswer()
		if err != nil {
			return nil, err
		}
		id := answerID(pa.QuestionId())
		a := c.answers[id]
		if a == nil {
			return nil, errBadTarget
		}
		mtrans, err := pa.Transform()
		if err != nil {
			return nil, err
		}
		transform := promisedAnswerOpsToTransform(mtrans)
		obj, resErr, done := a.peek()
		if !done {
			return nil, errBadTarget
		}
		return clientFromResolution(transform, obj, resErr), nil
	default:
		return nil, errBadTarget
	}
}
