package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	"github.com/kasvtv/capnp-rpc-engine/internal/pipetransport"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
)

// echoClient answers every call with its own parameters.
type echoClient struct{}

func (echoClient) Call(ctx context.Context, call *capnp.Call) capnp.Answer {
	return capnp.ImmediateAnswer(call.Params)
}

func (echoClient) Close() error { return nil }

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// mustExport adds client to c's export table; the caller holds c.mu.
func mustExport(t *testing.T, c *Conn, client capnp.Client) exportID {
	t.Helper()
	id, err := c.addExport(client)
	if err != nil {
		t.Fatalf("addExport: %v", err)
	}
	return id
}

// TestBootstrapCallRoundTrip drives two connected peers end to end:
// bootstrap the main interface, call it, and read the echoed result
// back (spec.md Testable Property S1 plus the call path).
func TestBootstrapCallRoundTrip(t *testing.T) {
	st, ct := pipetransport.New()
	server := NewConn(st, MainInterface(echoClient{}))
	defer server.Close()
	client := NewConn(ct)
	defer client.Close()

	ctx := testContext(t)
	root := client.Bootstrap(ctx)
	defer root.Close()

	_, seg, err := capnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	params, err := capnp.NewStruct(seg, capnp.ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	params.SetUint64(0, 0xfeed)

	ans := root.Call(ctx, &capnp.Call{Ctx: ctx, Method: capnp.Method{InterfaceID: 1, MethodID: 2}, Params: params})
	result, err := ans.Struct()
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := result.Uint64(0); got != 0xfeed {
		t.Fatalf("echoed value = %#x, want 0xfeed", got)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	var boot *export
	for _, e := range server.exports {
		if e != nil {
			boot = e
			break
		}
	}
	if boot == nil {
		t.Fatal("no export registered on the server after Bootstrap")
	}
	if boot.wireRefs == 0 {
		t.Fatalf("bootstrap export wireRefs = 0, want >= 1")
	}
	if !boot.pinned {
		t.Fatal("bootstrap export not pinned")
	}
}

// TestReleaseFloorsPinnedExport is the bootstrap half of Testable
// Property 6: Release on the bootstrap export floors its count at
// zero without removing the entry.
func TestReleaseFloorsPinnedExport(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	id := mustExport(t, c, echoClient{})
	e := c.findExport(id)
	e.pinned = true

	c.releaseExport(id, 5)
	if got := c.findExport(id); got == nil {
		t.Fatal("pinned export removed by Release")
	} else if got.wireRefs != 0 {
		t.Fatalf("pinned export wireRefs = %d after over-release, want 0", got.wireRefs)
	}
}

// TestReleaseRemovesOrdinaryExport is the ordinary half of Testable
// Property 6: the count decreases by exactly the released amount and
// the entry drops at zero.
func TestReleaseRemovesOrdinaryExport(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	id := mustExport(t, c, echoClient{})
	if again := mustExport(t, c, echoClient{}); again != id {
		t.Fatalf("re-exporting the same client allocated id %d, want %d", again, id)
	}
	c.releaseExport(id, 1)
	if e := c.findExport(id); e == nil || e.wireRefs != 1 {
		t.Fatalf("export after partial release = %+v, want wireRefs 1", e)
	}
	c.releaseExport(id, 3)
	if e := c.findExport(id); e != nil {
		t.Fatalf("export still present after releasing all refs: %+v", e)
	}
}

// TestResolveToReceiverHostedEmbargoes is Testable Property 5: a
// Resolve naming a capability this peer itself hosts must install an
// embargo on the import and only clear it on the matching
// receiver_loopback Disembargo.
func TestResolveToReceiverHostedEmbargoes(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	if _, err := c.addImport(9); err != nil {
		c.mu.Unlock()
		t.Fatalf("addImport: %v", err)
	}
	eid := mustExport(t, c, echoClient{})
	c.mu.Unlock()

	m, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	res, err := m.NewResolve()
	if err != nil {
		t.Fatalf("NewResolve: %v", err)
	}
	res.SetPromiseId(9)
	desc, err := res.NewCap()
	if err != nil {
		t.Fatalf("NewCap: %v", err)
	}
	desc.SetReceiverHosted(uint32(eid))

	c.mu.Lock()
	err = c.handleResolveMessage(m)
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("handleResolveMessage: %v", err)
	}

	c.mu.Lock()
	imp := c.imports[9]
	if imp == nil {
		c.mu.Unlock()
		t.Fatal("import 9 dropped by Resolve")
	}
	if _, ok := imp.client.(embargoClient); !ok {
		c.mu.Unlock()
		t.Fatalf("resolved import client is %T, want embargoClient", imp.client)
	}
	if len(c.embargoes) == 0 || c.embargoes[0] == nil {
		c.mu.Unlock()
		t.Fatal("no embargo registered by Resolve")
	}
	c.mu.Unlock()

	dm, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	d, err := dm.NewDisembargo()
	if err != nil {
		t.Fatalf("NewDisembargo: %v", err)
	}
	d.Context().SetReceiverLoopback(0)
	target, err := d.NewTarget()
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	target.SetImportedCap(9)

	c.mu.Lock()
	err = c.handleDisembargoMessage(dm)
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("handleDisembargoMessage: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.embargoes[0] != nil {
		t.Fatal("embargo not cleared by receiver_loopback Disembargo")
	}
}

// TestUnimplementedEchoFailsQuestion covers the Unimplemented row: a
// peer echoing back one of our Bootstrap messages means its Return is
// never coming, so the question must fail locally.
func TestUnimplementedEchoFailsQuestion(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	q := c.newQuestion(nil)
	q.start()
	c.mu.Unlock()

	inner, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	boot, err := inner.NewBootstrap()
	if err != nil {
		t.Fatalf("NewBootstrap: %v", err)
	}
	boot.SetQuestionId(uint32(q.id))

	outer, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := outer.SetUnimplemented(inner); err != nil {
		t.Fatalf("SetUnimplemented: %v", err)
	}

	c.handleMessage(outer)

	select {
	case <-q.done:
	case <-time.After(time.Second):
		t.Fatal("question not settled by the echoed Unimplemented")
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.err != errUnimplemented {
		t.Fatalf("question error = %v, want %v", q.err, errUnimplemented)
	}
}

// TestEmbargoedAcceptDefersReturn covers the Accept row's embargo
// branch: the reply to an embargoed Accept is withheld until the
// matching Disembargo accept releases it.
func TestEmbargoedAcceptDefersReturn(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	eid := mustExport(t, c, echoClient{})
	const key = "handoff"
	if err := c.handleProvide(provideMessage(t, 1, uint32(eid), key)); err != nil {
		t.Fatalf("handleProvide: %v", err)
	}

	am, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	acc, err := am.NewAccept()
	if err != nil {
		t.Fatalf("NewAccept: %v", err)
	}
	acc.SetQuestionId(2)
	acc.SetEmbargo(true)
	if err := acc.SetProvision(key); err != nil {
		t.Fatalf("SetProvision: %v", err)
	}
	if err := c.handleAccept(am); err != nil {
		t.Fatalf("handleAccept: %v", err)
	}
	if _, ok := c.embargoedAccepts[2]; !ok {
		t.Fatal("embargoed Accept reply not parked")
	}
	if _, ok := c.provides[key]; ok {
		t.Fatalf("provides[%q] not consumed by the embargoed Accept", key)
	}

	dm, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	d, err := dm.NewDisembargo()
	if err != nil {
		t.Fatalf("NewDisembargo: %v", err)
	}
	d.Context().SetAccept()
	target, err := d.NewTarget()
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	pa, err := target.NewPromisedAnswer()
	if err != nil {
		t.Fatalf("NewPromisedAnswer: %v", err)
	}
	pa.SetQuestionId(2)
	if err := c.handleDisembargoMessage(dm); err != nil {
		t.Fatalf("handleDisembargoMessage: %v", err)
	}
	if _, ok := c.embargoedAccepts[2]; ok {
		t.Fatal("embargoed Accept reply not released by Disembargo accept")
	}
}

// TestMaxTableSizeBoundsExports covers spec.md §4.3's CapTableFull
// contract via the MaxTableSize option.
func TestMaxTableSizeBoundsExports(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr, MaxTableSize(2))
	defer c.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.addExport(capnp.ErrorClient(errors.New("a"))); err != nil {
		t.Fatalf("first addExport: %v", err)
	}
	if _, err := c.addExport(capnp.ErrorClient(errors.New("b"))); err != nil {
		t.Fatalf("second addExport: %v", err)
	}
	if _, err := c.addExport(capnp.ErrorClient(errors.New("c"))); err != ErrCapTableFull {
		t.Fatalf("third addExport error = %v, want ErrCapTableFull", err)
	}
	if _, err := c.addImport(3); err != ErrCapTableFull {
		t.Fatalf("addImport over the bound error = %v, want ErrCapTableFull", err)
	}
}

// TestSenderLoopbackDeferredUntilAnswerResolves covers the Disembargo
// row for a senderLoopback naming an answer still being computed: the
// receiverLoopback echo must be withheld until the answer resolves and
// its queued calls have been delivered, then sent by flushQueue.
func TestSenderLoopbackDeferredUntilAnswerResolves(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	a := c.insertAnswer(6, nil)
	c.mu.Unlock()
	if a == nil {
		t.Fatal("insertAnswer returned nil")
	}

	dm, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	d, err := dm.NewDisembargo()
	if err != nil {
		t.Fatalf("NewDisembargo: %v", err)
	}
	d.Context().SetSenderLoopback(4)
	target, err := d.NewTarget()
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	pa, err := target.NewPromisedAnswer()
	if err != nil {
		t.Fatalf("NewPromisedAnswer: %v", err)
	}
	pa.SetQuestionId(6)

	c.mu.Lock()
	err = c.handleDisembargoMessage(dm)
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("handleDisembargoMessage: %v", err)
	}

	c.mu.Lock()
	if len(a.echoes) != 1 {
		c.mu.Unlock()
		t.Fatalf("parked %d echoes for an unresolved answer, want 1", len(a.echoes))
	}
	echo, err := a.echoes[0].Disembargo()
	if err != nil {
		c.mu.Unlock()
		t.Fatalf("decode parked echo: %v", err)
	}
	if echo.Context().Which() != rpccapnp.Disembargo_context_Which_receiverLoopback {
		c.mu.Unlock()
		t.Fatalf("parked echo context = %v, want receiverLoopback", echo.Context().Which())
	}
	if echo.Context().ReceiverLoopback() != 4 {
		c.mu.Unlock()
		t.Fatalf("parked echo embargo id = %d, want 4", echo.Context().ReceiverLoopback())
	}
	c.mu.Unlock()

	_, seg, err := capnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	s, err := capnp.NewStruct(seg, capnp.ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	c.mu.Lock()
	err = a.fulfill(s.ToPtr())
	echoesLeft := len(a.echoes)
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if echoesLeft != 0 {
		t.Fatalf("%d echoes still parked after the answer resolved, want 0", echoesLeft)
	}
}

// TestSenderLoopbackEchoesImmediatelyWhenResolved covers the other
// half of the same row: an already-resolved answer echoes the
// receiverLoopback right away and parks nothing.
func TestSenderLoopbackEchoesImmediatelyWhenResolved(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	a := c.insertAnswer(8, nil)
	c.mu.Unlock()

	_, seg, err := capnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	s, err := capnp.NewStruct(seg, capnp.ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	c.mu.Lock()
	err = a.fulfill(s.ToPtr())
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	dm, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	d, err := dm.NewDisembargo()
	if err != nil {
		t.Fatalf("NewDisembargo: %v", err)
	}
	d.Context().SetSenderLoopback(5)
	target, err := d.NewTarget()
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	pa, err := target.NewPromisedAnswer()
	if err != nil {
		t.Fatalf("NewPromisedAnswer: %v", err)
	}
	pa.SetQuestionId(8)

	c.mu.Lock()
	err = c.handleDisembargoMessage(dm)
	parked := len(a.echoes)
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("handleDisembargoMessage: %v", err)
	}
	if parked != 0 {
		t.Fatalf("resolved answer parked %d echoes, want 0", parked)
	}
}
