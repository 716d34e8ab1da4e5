package rpc

import (
	"context"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
)

type importID uint32

// impent is the local record of a capability the remote vat has
// exported to us: note_import get-or-puts one of these and
// increments its count (spec.md §4.3), and release_import decrements
// it, removing the entry at zero.
type impent struct {
	id     importID
	count  uint32
	client capnp.Client // the importClient handed out to local callers
}

// addImport implements note_import: get-or-put the entry for id,
// incrementing its reference count, and returns a Client local code
// can call through. A brand-new entry counts against the connection's
// table bound.
func (c *Conn) addImport(id importID) (capnp.Client, error) {
	if c.imports == nil {
		c.imports = make(map[importID]*impent)
	}
	e, ok := c.imports[id]
	if !ok {
		if err := c.tableHasRoom(); err != nil {
			return nil, err
		}
		e = &impent{id: id, client: importClient{conn: c, id: id}}
		c.imports[id] = e
	}
	e.count++
	return e.client, nil
}

// releaseImport implements release_import: decrement id's count,
// removing the entry when it reaches zero. It reports whether the
// entry was removed.
func (c *Conn) releaseImport(id importID, refs uint32) bool {
	e, ok := c.imports[id]
	if !ok {
		return false
	}
	if refs >= e.count {
		delete(c.imports, id)
		return true
	}
	e.count -= refs
	return false
}

// importClient is a Client backed by a capability the remote vat
// exported to us. Calling it sends an outbound Call targeting
// MessageTarget.importedCap == id.
type importClient struct {
	conn *Conn
	id   importID
}

func (ic importClient) Call(ctx context.Context, call *capnp.Call) capnp.Answer {
	return ic.conn.callImportedCap(ic.id, call)
}

func (ic importClient) Close() error {
	ic.conn.mu.Lock()
	defer ic.conn.mu.Unlock()
	if ic.conn.releaseImport(ic.id, 1) {
		rel := ic.conn.newMessage()
		r, _ := rel.NewRelease()
		r.SetId(uint32(ic.id))
		r.SetReferenceCount(1)
		ic.conn.sendMessage(rel)
	}
	return nil
}

// answerPipelineClient is a Client representing a not-yet-finished
// local answer, reached through transform. Sending it out as a
// capability is encoded as a receiver_answer descriptor (spec.md
// §4.5); calling it locally pipelines through the answer directly.
type answerPipelineClient struct {
	conn      *Conn
	id        answerID
	transform []capnp.PipelineOp
}

func (pc answerPipelineClient) Call(ctx context.Context, call *capnp.Call) capnp.Answer {
	pc.conn.mu.Lock()
	a := pc.conn.answers[pc.id]
	pc.conn.mu.Unlock()
	if a == nil {
		return capnp.ErrorAnswer(errBadTarget)
	}
	return a.pipelineCall(ctx, pc.transform, call)
}

func (pc answerPipelineClient) Close() error { return nil }
