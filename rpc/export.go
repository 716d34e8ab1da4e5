package rpc

import "github.com/kasvtv/capnp-rpc-engine/capnp"

type exportID uint32

// export is a capability this peer has handed out to the remote
// vat. wireRefs is the number of references the remote side holds
// across every CapDescriptor it has received naming this id (spec.md
// §4.3/§4.7's Release handler).
//
// isPromise/resolved/queue implement spec.md §4.8's call-routing
// classification for promise-exports: a promise export is created for
// a capability that is itself a not-yet-settled local pipeline (see
// addPromiseExport); until it resolves, calls against it are buffered
// in queue rather than dispatched, and once it settles it either gets
// a concrete client (handle_resolved) or none (promise_broken, client
// stays nil). A plain export (isPromise false) always has client set
// from creation, so it is never queued.
type export struct {
	id        exportID
	client    capnp.Client
	wireRefs  uint32
	isPromise bool
	resolved  bool
	pinned    bool // bootstrap export: Release floors the count at zero
	queue     []pcall
}

// tableHasRoom reports whether one more entry fits under the
// connection's table bound (spec.md §4.3), logging as the table nears
// it.
func (c *Conn) tableHasRoom() error {
	if c.maxTableSize <= 0 {
		return nil
	}
	total := c.numExports + len(c.imports)
	if total >= c.maxTableSize {
		return ErrCapTableFull
	}
	if total >= c.maxTableSize*9/10 {
		c.logger.Infof("rpc: capability table at %d of %d entries", total, c.maxTableSize)
	}
	return nil
}

// addExport interns client into the export table, reusing a free slot
// when available, and returns its id with an initial wire refcount of
// 1. If client is already exported, its existing id is reused and its
// refcount incremented instead (so the same capability always gets
// the same export id, per spec.md §4.5's interning requirement).
func (c *Conn) addExport(client capnp.Client) (exportID, error) {
	for _, e := range c.exports {
		if e != nil && e.client == client {
			e.wireRefs++
			return e.id, nil
		}
	}
	if err := c.tableHasRoom(); err != nil {
		return 0, err
	}
	id := exportID(c.exportID.next32())
	e := &export{id: id, client: client, wireRefs: 1}
	for int(id) >= len(c.exports) {
		c.exports = append(c.exports, nil)
	}
	c.exports[id] = e
	c.numExports++
	return id, nil
}

// findExport returns the export registered under id, or nil.
func (c *Conn) findExport(id exportID) *export {
	if int(id) >= len(c.exports) {
		return nil
	}
	return c.exports[id]
}

// addPromiseExport interns a capability that is itself an
// unresolved local pipeline (q) into the export table as a
// promise-export: the queue_promise_export/handle_resolved/
// promise_broken plans of spec.md §4.8 apply to calls against it
// until awaitPromiseExport settles it.
func (c *Conn) addPromiseExport(q *question) (exportID, error) {
	if err := c.tableHasRoom(); err != nil {
		return 0, err
	}
	id := exportID(c.exportID.next32())
	e := &export{id: id, wireRefs: 1, isPromise: true}
	for int(id) >= len(c.exports) {
		c.exports = append(c.exports, nil)
	}
	c.exports[id] = e
	c.numExports++
	go c.awaitPromiseExport(e, q)
	return id, nil
}

// awaitPromiseExport blocks (off c.mu) until q settles, then records
// e's resolution, flushes any calls queued against it while it was
// still a promise, and tells the peer how the sender_promise
// descriptor it received resolved. The caller does not hold c.mu.
func (c *Conn) awaitPromiseExport(e *export, q *question) {
	<-q.done
	q.mu.RLock()
	obj, qerr, state := q.obj, q.err, q.state
	q.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findExport(e.id) != e {
		// Released before it resolved.
		return
	}
	e.resolved = true
	if state != questionCanceled && qerr == nil {
		if out, err := capnp.TransformPtr(obj, nil); err == nil && out.InterfaceValid() {
			if seg := out.Segment(); seg != nil {
				e.client = out.Client(seg.Message())
			}
		}
	}
	c.flushExportQueue(e)
	c.sendPromiseResolution(e, qerr)
}

// sendPromiseResolution emits the Resolve for a settled promise
// export (spec.md §4.7's Resolve row, outbound half): a promise that
// settled to a capability the peer itself hosts resolves to
// receiver_hosted (the peer then embargoes its loopback), anything
// else concrete is exported fresh as sender_hosted, and a broken
// promise resolves to an exception. The caller holds c.mu.
func (c *Conn) sendPromiseResolution(e *export, qerr error) {
	m := c.newMessage()
	res, err := m.NewResolve()
	if err != nil {
		return
	}
	res.SetPromiseId(uint32(e.id))
	if e.client == nil {
		if qerr == nil {
			qerr = ErrPromiseBroken
		}
		exc, err := res.NewException()
		if err != nil {
			return
		}
		toException(exc, qerr)
		c.sendMessage(m)
		return
	}
	desc, err := res.NewCap()
	if err != nil {
		return
	}
	switch cl := e.client.(type) {
	case importClient:
		desc.SetReceiverHosted(uint32(cl.id))
	default:
		id, err := c.addExport(cl)
		if err != nil {
			exc, excErr := res.NewException()
			if excErr != nil {
				return
			}
			toException(exc, err)
			c.sendMessage(m)
			return
		}
		desc.SetSenderHosted(uint32(id))
	}
	c.sendMessage(m)
}

// queueCall buffers pc against a promise export not yet resolved.
func (e *export) queueCall(pc pcall) {
	e.queue = append(e.queue, pc)
}

// flushExportQueue delivers every call queued against e once it has
// settled, dispatching to e.client if resolved or failing with
// ErrPromiseBroken if it resolved to no capability. The caller holds
// c.mu.
func (c *Conn) flushExportQueue(e *export) {
	queue := e.queue
	e.queue = nil
	for _, pc := range queue {
		if e.client == nil {
			pc.deliver(capnp.ErrorAnswer(ErrPromiseBroken))
			continue
		}
		pc.deliver(c.lockedCall(e.client, pc.call))
	}
}

// releaseExport decrements the export's wire refcount by refs; at
// zero it is removed (per spec.md §4.7's Release handler). The
// bootstrap export is pinned: its count floors at zero and the entry
// is never removed, so a pipelined Bootstrap reply always has a live
// target.
func (c *Conn) releaseExport(id exportID, refs int) {
	e := c.findExport(id)
	if e == nil {
		return
	}
	if refs >= int(e.wireRefs) {
		if e.pinned {
			e.wireRefs = 0
			return
		}
		c.exports[id] = nil
		c.exportID.release(uint32(id))
		c.numExports--
		return
	}
	e.wireRefs -= uint32(refs)
}

// releaseAllExports drops every export, without notifying the remote
// vat (used only when tearing down the connection).
func (c *Conn) releaseAllExports() {
	for i, e := range c.exports {
		if e == nil {
			continue
		}
		if e.client != nil {
			e.client.Close()
		}
		c.exports[i] = nil
	}
	c.numExports = 0
}
