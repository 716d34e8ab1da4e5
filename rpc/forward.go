package rpc

import "github.com/kasvtv/capnp-rpc-engine/capnp"

// translateForwardedReturn implements the common translate_to_caller
// step of spec.md §4.9's forwarded-return matrix: given the outcome of
// the question actually carrying the result, decide what the question
// or answer standing in for it should see. A results tag that carries
// no content is rejected with ErrForwardedReturnMissingPayload rather
// than silently forwarded as a null struct (Testable Property S7).
func translateForwardedReturn(obj capnp.Ptr, err error, state questionState) (capnp.Ptr, error) {
	if state == questionCanceled {
		return capnp.Ptr{}, errQuestionCanceled
	}
	if err != nil {
		return capnp.Ptr{}, err
	}
	if !obj.IsValid() {
		return capnp.Ptr{}, ErrForwardedReturnMissingPayload
	}
	return obj, nil
}

// resolveTakeFromOtherQuestion implements the takeFromOtherQuestion
// forwarded-return row (spec.md §4.9): the Return names a tail call
// the peer has already issued back to this Conn with the results
// redirected, so the id is one of this Conn's own answers — inserted
// by the ordinary inbound-Call path — not one of its outbound
// questions. The tail Call precedes the Return on the wire, so the
// answer is present by the time the Return is handled; q adopts that
// answer's outcome once it settles. No extra wire round-trip is
// needed, unlike a true third-party tail call. The caller holds c.mu.
//
// resultsSentElsewhere and acceptFromThirdParty aren't implemented
// here (see handleReturnMessage): they presuppose a second vat this
// engine never talks to directly.
func (c *Conn) resolveTakeFromOtherQuestion(q *question, other answerID) {
	src := c.answers[other]
	if src == nil {
		q.reject(questionResolved, errBadTarget)
		return
	}
	go func() {
		select {
		case <-src.done:
		case <-c.manager.finish:
			q.reject(questionResolved, ErrConnClosed)
			return
		}
		// src's obj/err are final before done closes; no lock needed.
		obj, err := translateForwardedReturn(src.obj, src.err, questionResolved)
		if err != nil {
			q.reject(questionResolved, err)
			return
		}
		q.fulfill(obj)
	}()
}

// handleResolvedCall implements the "yourself"-tail half of spec.md
// §4.9's propagate_results_sent_elsewhere row: result's target has
// resolved to a capability hosted by the very peer that sent us the
// call. Rather than double-hop (issue the call back to that peer,
// wait for the full Struct, then re-marshal it into a Return{results}
// for the same peer), this engine issues the call and immediately
// tells the peer the answer to result is the same as the answer to
// the new outbound question — no result content ever needs to cross
// the wire twice.
func (c *Conn) handleResolvedCall(result *answer, ic importClient, cl *capnp.Call) error {
	ans := c.lockedCall(ic, cl)
	q, ok := ans.(*question)
	if !ok {
		// The call failed before a question was ever created (e.g. the
		// connection is shutting down); fall back to the ordinary path.
		go joinAnswer(result, ans)
		return nil
	}
	if c.forwardedQuestions == nil {
		c.forwardedQuestions = make(map[answerID]questionID)
	}
	c.forwardedQuestions[result.id] = q.id
	return result.fulfillForwarded(q)
}
