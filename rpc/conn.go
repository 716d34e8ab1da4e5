// Package rpc implements the Cap'n Proto RPC protocol: a level-3 peer
// speaking Unimplemented, Abort, Bootstrap, Call, Return, Finish,
// Release, Resolve, Disembargo, Provide, Accept, Join and
// ThirdPartyAnswer over the async transport.Transport contract.
package rpc

import (
	"context"
	"io"
	"time"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	"github.com/kasvtv/capnp-rpc-engine/internal/framer"
	"github.com/kasvtv/capnp-rpc-engine/internal/refcount"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
	"github.com/kasvtv/capnp-rpc-engine/transport"
)

// A Conn is a connection to another Cap'n Proto vat. It is safe to
// use from multiple goroutines.
type Conn struct {
	transport  transport.Transport
	framer     framer.Framer
	mainFunc   func(context.Context) (capnp.Client, error)
	mainCloser io.Closer

	logger       Logger
	maxTableSize int
	drainTimeout time.Duration

	manager manager
	out     chan rpccapnp.Message

	// Mutable state protected by mu.
	mu         chanMutex
	questions  []*question
	questionID idgen
	exports    []*export
	exportID   idgen
	numExports int
	embargoes  []chan<- struct{}
	embargoID  idgen
	answers    map[answerID]*answer
	imports    map[importID]*impent
	streams    map[interface{}]*streamState

	// Provide bookkeeping (spec.md §4.7's Provide row): provides
	// indexes a handed-off capability by its recipient descriptor, and
	// providesByQuestion indexes the same entry by the Provide's own
	// question id, so a duplicate of either is rejected instead of
	// silently overwriting a prior registration.
	provides           map[string]capnp.Client
	providesByQuestion map[answerID]string

	// Third-party handoff bookkeeping (spec.md §3): pendingAwaits
	// holds local questions parked on an accept_from_third_party
	// Return awaiting the matching ThirdPartyAnswer; pendingAnswers
	// holds the reverse — a ThirdPartyAnswer that arrived before its
	// awaiter. Both are keyed by the protocol's own opaque completion
	// token. adoptedAnswers records completed adoptions, mapping the
	// adopted third-party answer id to the local question id.
	pendingAwaits  map[string]*question
	pendingAnswers map[string]answerID
	adoptedAnswers map[answerID]answerID

	// embargoedAccepts holds Accept replies withheld because the Accept
	// carried an embargo, keyed by the Accept's question id, until the
	// matching Disembargo accept releases them.
	embargoedAccepts map[answerID]capnp.Client

	// forwardedQuestions maps an inbound answer whose result was
	// forwarded via fulfillForwarded to the outbound question carrying
	// the real result (spec.md §4.9's yourself-tail forwarding): if the
	// peer finishes the original answer before that question's own
	// Return arrives, its Finish is forwarded along too.
	forwardedQuestions map[answerID]questionID

	localAddr string
}

type connParams struct {
	mainFunc       func(context.Context) (capnp.Client, error)
	mainCloser     io.Closer
	sendBufferSize int
	localAddr      string
	logger         Logger
	maxTableSize   int
	drainTimeout   time.Duration
}

// A ConnOption is an option for opening a connection.
type ConnOption struct {
	f func(*connParams)
}

// MainInterface specifies that the connection should use client when
// receiving bootstrap messages. By default, all bootstrap messages
// will fail. The client will be closed when the connection is closed.
func MainInterface(client capnp.Client) ConnOption {
	rc, ref1 := refcount.New(client)
	ref2 := rc.Ref()
	return ConnOption{func(c *connParams) {
		c.mainFunc = func(ctx context.Context) (capnp.Client, error) {
			return ref1, nil
		}
		c.mainCloser = ref2
	}}
}

// BootstrapFunc specifies the function to call to create a capability
// for handling bootstrap messages. This function should not make any
// RPCs or block.
func BootstrapFunc(f func(context.Context) (capnp.Client, error)) ConnOption {
	return ConnOption{func(c *connParams) { c.mainFunc = f }}
}

// SendBufferSize sets the number of outgoing messages to buffer on
// the connection, in addition to whatever buffering the transport
// itself performs.
func SendBufferSize(numMsgs int) ConnOption {
	return ConnOption{func(c *connParams) { c.sendBufferSize = numMsgs }}
}

// LocalAddr records a human-readable address for this end of the
// connection, surfaced later through Snapshot. It has no effect on
// the protocol.
func LocalAddr(addr string) ConnOption {
	return ConnOption{func(c *connParams) { c.localAddr = addr }}
}

// ConnLog sets the logger that receives the connection's diagnostic
// output. By default it goes to the standard log package.
func ConnLog(l Logger) ConnOption {
	return ConnOption{func(c *connParams) { c.logger = l }}
}

// MaxTableSize bounds the combined size of the connection's import
// and export tables; growing past it fails with ErrCapTableFull. The
// default is 10000.
func MaxTableSize(n int) ConnOption {
	return ConnOption{func(c *connParams) { c.maxTableSize = n }}
}

// WriteDrainTimeout overrides how long Close waits for the final
// Abort frame to flush before abandoning pending writes.
func WriteDrainTimeout(d time.Duration) ConnOption {
	return ConnOption{func(c *connParams) { c.drainTimeout = d }}
}

// NewConn creates a new connection that communicates over t. Closing
// the connection closes t.
func NewConn(t transport.Transport, options ...ConnOption) *Conn {
	p := &connParams{
		sendBufferSize: 4,
		logger:         stdLogger{},
		maxTableSize:   10000,
		drainTimeout:   transport.WriteDrainBudget,
	}
	for _, o := range options {
		o.f(p)
	}

	conn := &Conn{
		transport:    t,
		out:          make(chan rpccapnp.Message, p.sendBufferSize),
		mainFunc:     p.mainFunc,
		mainCloser:   p.mainCloser,
		mu:           newChanMutex(),
		localAddr:    p.localAddr,
		logger:       p.logger,
		maxTableSize: p.maxTableSize,
		drainTimeout: p.drainTimeout,
	}
	conn.manager.init()
	conn.transport.SetCloseHandler(func(err error) {
		if err == nil {
			err = ErrConnClosed
		}
		conn.manager.shutdown(err)
	})
	conn.manager.do(conn.dispatchRecv)
	conn.manager.do(conn.dispatchSend)
	conn.manager.do(func() {
		<-conn.manager.finish
		conn.mu.Lock()
		conn.releaseAllExports()
		if conn.mainCloser != nil {
			if err := conn.mainCloser.Close(); err != nil {
				conn.logger.Errorf("rpc: closing main interface: %v", err)
			}
		}
		conn.mu.Unlock()
	})
	return conn
}

// Wait waits until the connection is closed or aborted by the remote
// vat. Wait always returns an error, usually ErrConnClosed or of type
// Exception.
func (c *Conn) Wait() error {
	c.manager.wait()
	return c.manager.err()
}

// Close closes the connection.
func (c *Conn) Close() error {
	if !c.manager.shutdown(ErrConnClosed) {
		return ErrConnClosed
	}

	am := c.newMessage()
	e, _ := am.NewAbort()
	toException(e, errShutdown)
	data := framer.Encode([][]byte{am.Segment().Data()})
	sent := make(chan struct{})
	c.transport.QueueWrite(context.Background(), data, func(error) { close(sent) })
	select {
	case <-sent:
	case <-time.After(c.drainTimeout):
	}

	c.manager.wait()
	c.transport.AbandonPendingWrites()
	return c.transport.Close()
}

// Bootstrap returns the receiver's main interface.
func (c *Conn) Bootstrap(ctx context.Context) capnp.Client {
	select {
	case <-c.mu:
		defer c.mu.Unlock()
	case <-ctx.Done():
		return capnp.ErrorClient(ctx.Err())
	case <-c.manager.finish:
		return capnp.ErrorClient(c.manager.err())
	}

	q := c.newQuestion(nil)
	m := c.newMessage()
	boot, _ := m.NewBootstrap()
	boot.SetQuestionId(uint32(q.id))
	select {
	case c.out <- m:
		q.start()
		return capnp.NewPipeline(q).Client()
	case <-ctx.Done():
		c.popQuestion(q.id)
		return capnp.ErrorClient(ctx.Err())
	case <-c.manager.finish:
		c.popQuestion(q.id)
		return capnp.ErrorClient(c.manager.err())
	}
}

// Flush blocks until every streaming call (spec.md §4.10) issued
// against client's target has returned, then reports the first error
// observed on that stream, if any. Clients never used for a streaming
// call return nil immediately.
func (c *Conn) Flush(client capnp.Client) error {
	var key interface{}
	switch cl := client.(type) {
	case importClient:
		key = cl.id
	case answerPipelineClient:
		key = cl.id
	case capnp.PipelineClientCaller:
		q, ok := cl.PipelineCaller().(*question)
		if !ok {
			return nil
		}
		key = q.id
	default:
		return nil
	}
	c.mu.Lock()
	s, ok := c.streams[key]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	done := make(chan struct{})
	s.onDrained(func() { close(done) })
	<-done
	return s.streamError()
}

// dispatchRecv drives the transport's read side until the connection
// shuts down.
func (c *Conn) dispatchRecv() {
	if err := c.transport.StartRead(c.manager.context(), c.onData); err != nil {
		c.manager.shutdown(err)
		return
	}
	<-c.manager.finish
}

// onData is the transport.OnData callback: it feeds bytes into the
// framer and hands each complete frame to handleMessage in order.
func (c *Conn) onData(data []byte) {
	c.framer.Push(data)
	for {
		frame, err := c.framer.PopFrame()
		if err != nil {
			c.manager.shutdown(err)
			return
		}
		if frame == nil {
			return
		}
		msg, err := capnp.NewDecodedMessage(frame.Segments)
		if err != nil {
			c.logger.Errorf("rpc: decode frame: %v", err)
			continue
		}
		rm, err := rpccapnp.ReadRootMessage(msg)
		if err != nil {
			c.logger.Errorf("rpc: decode message: %v", err)
			continue
		}
		c.handleMessage(rm)
	}
}

// dispatchSend drains c.out onto the transport until the connection
// shuts down, preserving send order.
func (c *Conn) dispatchSend() {
	for {
		select {
		case m, ok := <-c.out:
			if !ok {
				return
			}
			data := framer.Encode([][]byte{m.Segment().Data()})
			done := make(chan struct{})
			c.transport.QueueWrite(c.manager.context(), data, func(err error) {
				if err != nil {
					c.manager.shutdown(err)
				}
				close(done)
			})
			select {
			case <-done:
			case <-c.manager.finish:
				return
			}
		case <-c.manager.finish:
			return
		}
	}
}

// sendMessage queues m for transmission, preserving order relative to
// every earlier sendMessage/Bootstrap call.
func (c *Conn) sendMessage(m rpccapnp.Message) error {
	select {
	case c.out <- m:
		return nil
	case <-c.manager.finish:
		return c.manager.err()
	}
}

func (c *Conn) newMessage() rpccapnp.Message {
	m, _, err := rpccapnp.NewMessage()
	if err != nil {
		panic(err)
	}
	return m
}

func (c *Conn) newReturnMessage(id answerID) rpccapnp.Message {
	m := c.newMessage()
	ret, _ := m.NewReturn()
	ret.SetAnswerId(uint32(id))
	ret.SetReleaseParamCaps(false)
	return m
}

func (c *Conn) sendExceptionReturn(id answerID, err error) error {
	ret := c.newReturnMessage(id)
	r, _ := ret.Return()
	setReturnException(r, err)
	return c.sendMessage(ret)
}

func newUnimplementedMessage(c *Conn, m rpccapnp.Message) rpccapnp.Message {
	n := c.newMessage()
	n.SetUnimplemented(m)
	return n
}

// newContext creates a context for a locally-dispatched call, a
// child of the connection's lifetime.
func (c *Conn) newContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(c.manager.context())
}

func (c *Conn) abort(err error) {
	am := c.newMessage()
	e, _ := am.NewAbort()
	toException(e, err)
	c.sendMessage(am)
	c.manager.shutdown(err)
}

// handleMessage processes one decoded inbound message. It is run from
// the receive goroutine; c.mu is not held at the start of
// handleMessage, and m cannot be retained past its return.
func (c *Conn) handleMessage(m rpccapnp.Message) {
	switch m.Which() {
	case rpccapnp.Message_Which_unimplemented:
		// The peer didn't understand a message we sent. If that message
		// was a Bootstrap or Call, its Return is never coming, so the
		// question it opened must be failed locally; every other echoed
		// kind is dropped (spec.md §4.7's Unimplemented row).
		inner, err := m.Unimplemented()
		if err != nil {
			c.logger.Errorf("rpc: decode unimplemented: %v", err)
			return
		}
		var qid questionID
		switch inner.Which() {
		case rpccapnp.Message_Which_bootstrap:
			boot, err := inner.Bootstrap()
			if err != nil {
				return
			}
			qid = questionID(boot.QuestionId())
		case rpccapnp.Message_Which_call:
			call, err := inner.Call()
			if err != nil {
				return
			}
			qid = questionID(call.QuestionId())
		default:
			return
		}
		c.mu.Lock()
		q := c.popQuestion(qid)
		c.mu.Unlock()
		if q != nil {
			q.reject(questionResolved, errUnimplemented)
		}
	case rpccapnp.Message_Which_abort:
		a, err := m.Abort()
		if err != nil {
			c.logger.Errorf("rpc: decode abort: %v", err)
		}
		c.logger.Errorf("%v", Exception{a})
		c.manager.shutdown(Exception{a})
	case rpccapnp.Message_Which_return:
		c.mu.Lock()
		err := c.handleReturnMessage(m)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle return: %v", err)
		}
	case rpccapnp.Message_Which_finish:
		mfin, err := m.Finish()
		if err != nil {
			c.logger.Errorf("rpc: decode finish: %v", err)
			return
		}
		id := answerID(mfin.QuestionId())
		c.mu.Lock()
		a := c.popAnswer(id)
		if a != nil {
			if a.cancel != nil {
				a.cancel()
			}
			if mfin.ReleaseResultCaps() {
				for _, rid := range a.resultCaps {
					c.releaseExport(rid, 1)
				}
			}
		}
		delete(c.embargoedAccepts, id)
		if key, ok := c.providesByQuestion[id]; ok {
			delete(c.providesByQuestion, id)
			delete(c.provides, key)
		}
		if fq, ok := c.forwardedQuestions[id]; ok {
			// Suppress the eventual automatic Finish that
			// handleReturnMessage would otherwise send for fq once its
			// Return arrives: the peer is abandoning the tail call now,
			// so finish fq right away instead of waiting for it.
			delete(c.forwardedQuestions, id)
			if q := c.popQuestion(fq); q != nil {
				q.cancel()
				c.sendMessage(c.newFinishMessage(fq, true))
			}
		}
		c.mu.Unlock()
	case rpccapnp.Message_Which_bootstrap:
		boot, err := m.Bootstrap()
		if err != nil {
			c.logger.Errorf("rpc: decode bootstrap: %v", err)
			return
		}
		id := answerID(boot.QuestionId())
		c.mu.Lock()
		err = c.handleBootstrapMessage(id)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle bootstrap: %v", err)
		}
	case rpccapnp.Message_Which_call:
		c.mu.Lock()
		err := c.handleCallMessage(m)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle call: %v", err)
		}
	case rpccapnp.Message_Which_release:
		rel, err := m.Release()
		if err != nil {
			c.logger.Errorf("rpc: decode release: %v", err)
			return
		}
		id := exportID(rel.Id())
		refs := int(rel.ReferenceCount())
		c.mu.Lock()
		c.releaseExport(id, refs)
		c.mu.Unlock()
	case rpccapnp.Message_Which_disembargo:
		c.mu.Lock()
		err := c.handleDisembargoMessage(m)
		c.mu.Unlock()
		if err != nil {
			// Per spec.md §7, a malformed disembargo is a protocol
			// violation: abort the connection rather than limp on.
			c.abort(err)
		}
	case rpccapnp.Message_Which_resolve:
		c.mu.Lock()
		err := c.handleResolveMessage(m)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle resolve: %v", err)
		}
	case rpccapnp.Message_Which_provide:
		c.mu.Lock()
		err := c.handleProvide(m)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle provide: %v", err)
		}
	case rpccapnp.Message_Which_accept:
		c.mu.Lock()
		err := c.handleAccept(m)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle accept: %v", err)
		}
	case rpccapnp.Message_Which_join:
		c.mu.Lock()
		err := c.handleJoin(m)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle join: %v", err)
		}
	case rpccapnp.Message_Which_thirdPartyAnswer:
		c.mu.Lock()
		err := c.handleThirdPartyAnswer(m)
		c.mu.Unlock()
		if err != nil {
			c.logger.Errorf("rpc: handle third party answer: %v", err)
		}
	default:
		c.logger.Infof("rpc: received unimplemented message, which = %v", m.Which())
		c.sendMessage(newUnimplementedMessage(c, m))
	}
}

// fillParams embeds call's parameters (and any capabilities they
// reference) into payload, returning the export ids it created so the
// caller can remember them as paramCaps.
func (c *Conn) fillParams(payload rpccapnp.Payload, call *capnp.Call) ([]exportID, error) {
	embedded, err := embedResult(payload.Segment(), call.Params.ToPtr())
	if err != nil {
		return nil, err
	}
	if err := payload.SetContent(embedded); err != nil {
		return nil, err
	}
	ctab, exported, err := c.makeCapTable(payload.Segment())
	if err != nil {
		return nil, err
	}
	if err := payload.SetCapTable(ctab); err != nil {
		return nil, err
	}
	return exported, nil
}

// handleReturnMessage handles a received return message. The caller
// holds c.mu.
func (c *Conn) handleReturnMessage(m rpccapnp.Message) error {
	ret, err := m.Return()
	if err != nil {
		return err
	}
	id := questionID(ret.AnswerId())
	q := c.popQuestion(id)
	if q == nil {
		return errBadTarget
	}
	if ret.ReleaseParamCaps() {
		for _, pid := range q.paramCaps {
			c.releaseExport(pid, 1)
		}
	}
	q.mu.RLock()
	qstate := q.state
	q.mu.RUnlock()
	if qstate == questionCanceled {
		// We already sent the Finish; nothing more to do.
		return nil
	}
	switch ret.Which() {
	case rpccapnp.Return_Which_results:
		results, err := ret.Results()
		if err != nil {
			return err
		}
		if err := c.populateMessageCapTable(results); err == errUnimplemented {
			c.sendMessage(newUnimplementedMessage(c, m))
			return errUnimplemented
		} else if err != nil {
			c.abort(err)
			return err
		}
		content, err := results.ContentPtr()
		if err != nil {
			return err
		}
		q.fulfill(content)
	case rpccapnp.Return_Which_exception:
		exc, err := ret.Exception()
		if err != nil {
			return err
		}
		e := error(Exception{exc})
		if q.method != nil {
			e = &capnp.MethodError{Method: q.method, Err: e}
		} else {
			e = bootstrapError{e}
		}
		q.reject(questionResolved, e)
	case rpccapnp.Return_Which_canceled:
		qerr := &questionError{id: id, method: q.method, err: errQuestionCanceled}
		c.logger.Errorf("%v", qerr)
		q.reject(questionResolved, qerr)
		return nil
	case rpccapnp.Return_Which_takeFromOtherQuestion:
		c.resolveTakeFromOtherQuestion(q, answerID(ret.TakeFromOtherQuestion()))
	case rpccapnp.Return_Which_resultsSentElsewhere:
		// This engine has no multi-vat network to fetch the results
		// from; see DESIGN.md for the Provide/Accept simplification.
		q.reject(questionResolved, ErrUnsupportedJoin)
	case rpccapnp.Return_Which_acceptFromThirdParty:
		ptr, err := ret.AcceptFromThirdParty()
		if err != nil {
			return err
		}
		key, keyErr := thirdPartyCompletionKey(ptr)
		if keyErr != nil {
			q.reject(questionResolved, ErrUnsupportedJoin)
			break
		}
		if aid, ok := c.pendingAnswers[key]; ok {
			delete(c.pendingAnswers, key)
			c.adopt(id, aid, q)
		} else {
			if c.pendingAwaits == nil {
				c.pendingAwaits = make(map[string]*question)
			}
			c.pendingAwaits[key] = q
			// q is not resolved yet, and no Finish is due until the
			// matching ThirdPartyAnswer arrives and adopt() settles
			// it (see handleThirdPartyAnswer). Its question id was
			// already released by popQuestion above and may be
			// reused by a new outbound question in the meantime;
			// that's fine, since q itself (not c.questions[id]) is
			// what pendingAwaits tracks from here on.
			return nil
		}
	default:
		c.sendMessage(newUnimplementedMessage(c, m))
		return errUnimplemented
	}
	fin := c.newFinishMessage(id, true)
	c.sendMessage(fin)
	return nil
}

func (c *Conn) newFinishMessage(qid questionID, release bool) rpccapnp.Message {
	m := c.newMessage()
	f, _ := m.NewFinish()
	f.SetQuestionId(uint32(qid))
	f.SetReleaseResultCaps(release)
	return m
}

// handleBootstrapMessage handles a received bootstrap message. The
// caller holds c.mu.
func (c *Conn) handleBootstrapMessage(id answerID) error {
	ctx, cancel := c.newContext()
	a := c.insertAnswer(id, cancel)
	if a == nil {
		cancel()
		return c.sendExceptionReturn(id, errQuestionReused)
	}
	if c.mainFunc == nil {
		return a.reject(errNoMainInterface)
	}
	main, err := c.mainFunc(ctx)
	if err != nil {
		return a.reject(bootstrapError{err})
	}
	err = a.fulfillClient(main)
	for _, id := range a.resultCaps {
		if e := c.findExport(id); e != nil {
			e.pinned = true
		}
	}
	return err
}

// handleCallMessage handles a received call message. The caller holds
// c.mu.
func (c *Conn) handleCallMessage(m rpccapnp.Message) error {
	mcall, err := m.Call()
	if err != nil {
		return err
	}
	mt, err := mcall.Target()
	if err != nil {
		return ErrMissingCallTarget
	}
	if mt.Which() != rpccapnp.MessageTarget_Which_importedCap && mt.Which() != rpccapnp.MessageTarget_Which_promisedAnswer {
		return c.sendMessage(newUnimplementedMessage(c, m))
	}
	mparams, err := mcall.Params()
	if err != nil {
		return err
	}
	if err := c.populateMessageCapTable(mparams); err == errUnimplemented {
		return c.sendMessage(newUnimplementedMessage(c, m))
	} else if err != nil {
		c.abort(err)
		return err
	}
	ctx, cancel := c.newContext()
	id := answerID(mcall.QuestionId())
	a := c.insertAnswer(id, cancel)
	if a == nil {
		c.abort(errQuestionReused)
		return errQuestionReused
	}
	meth := capnp.Method{InterfaceID: mcall.InterfaceId(), MethodID: mcall.MethodId()}
	paramContent, err := mparams.ContentPtr()
	if err != nil {
		return err
	}
	cl := &capnp.Call{Ctx: ctx, Method: meth, Params: paramContent.Struct()}
	if err := c.routeCallMessage(a, mt, cl); err != nil {
		return a.reject(err)
	}
	return nil
}

func (c *Conn) routeCallMessage(result *answer, mt rpccapnp.MessageTarget, cl *capnp.Call) error {
	switch mt.Which() {
	case rpccapnp.MessageTarget_Which_importedCap:
		id := exportID(mt.ImportedCap())
		e := c.findExport(id)
		switch {
		case e == nil:
			// unknown_capability: no export was ever registered under
			// this id.
			return ErrUnknownPromisedCapability
		case e.isPromise && !e.resolved:
			// queue_promise_export: buffer against the pipeline until
			// awaitPromiseExport settles it.
			e.queueCall(pcall{
				call:    cl,
				deliver: func(ans capnp.Answer) { go joinAnswer(result, ans) },
			})
		case e.isPromise && e.resolved && e.client == nil:
			// promise_broken: the pipeline settled to no capability.
			return ErrPromiseBroken
		case e.client == nil:
			// missing_export_handler: a plain export with no backing
			// client (shouldn't arise from addExport, but guarded per
			// the classification matrix).
			return ErrMissingExportHandler
		default:
			// handle_resolved / call_handler: dispatch directly, unless
			// the resolved target is itself hosted by the peer that sent
			// us this call, in which case forward the tail rather than
			// double-hopping the result.
			if ic, ok := e.client.(importClient); ok {
				return c.handleResolvedCall(result, ic, cl)
			}
			ans := c.lockedCall(e.client, cl)
			go joinAnswer(result, ans)
		}
	case rpccapnp.MessageTarget_Which_promisedAnswer:
		mpromise, err := mt.PromisedAnswer()
		if err != nil {
			return err
		}
		id := answerID(mpromise.QuestionId())
		if id == result.id {
			return errBadTarget
		}
		pa := c.answers[id]
		if pa == nil {
			return errBadTarget
		}
		mtrans, err := mpromise.Transform()
		if err != nil {
			return err
		}
		transform := promisedAnswerOpsToTransform(mtrans)
		if obj, perr, done := pa.peek(); done {
			if perr == nil && !obj.IsValid() {
				// promise_broken: the answer settled to no capability.
				return ErrPromiseBroken
			}
			client := clientFromResolution(transform, obj, perr)
			if ic, ok := client.(importClient); ok {
				return c.handleResolvedCall(result, ic, cl)
			}
			ans := c.lockedCall(client, cl)
			go joinAnswer(result, ans)
			return nil
		}
		return pa.queueCall(pcall{
			transform: transform,
			call:      cl,
			deliver:   func(ans capnp.Answer) { go joinAnswer(result, ans) },
		})
	default:
		panic("unreachable")
	}
	return nil
}

// lockedCall invokes client.Call while c.mu is unlocked, so that a
// host capability calling back into the connection doesn't deadlock,
// then reacquires the lock before returning.
func (c *Conn) lockedCall(client capnp.Client, cl *capnp.Call) capnp.Answer {
	c.mu.Unlock()
	ans := client.Call(cl.Ctx, cl)
	c.mu.Lock()
	return ans
}

func (c *Conn) handleDisembargoMessage(msg rpccapnp.Message) error {
	d, err := msg.Disembargo()
	if err != nil {
		return err
	}
	dtarget, err := d.Target()
	if err != nil {
		return err
	}
	switch d.Context().Which() {
	case rpccapnp.Disembargo_context_Which_senderLoopback:
		id := embargoID(d.Context().SenderLoopback())
		if dtarget.Which() != rpccapnp.MessageTarget_Which_promisedAnswer {
			return errDisembargoNonImport
		}
		dpa, err := dtarget.PromisedAnswer()
		if err != nil {
			return err
		}
		aid := answerID(dpa.QuestionId())
		a := c.answers[aid]
		if a == nil {
			return errDisembargoMissingAnswer
		}
		return a.queueDisembargo(id, dtarget)
	case rpccapnp.Disembargo_context_Which_receiverLoopback:
		id := embargoID(d.Context().ReceiverLoopback())
		c.disembargo(id)
	case rpccapnp.Disembargo_context_Which_accept:
		// Release the Accept reply queued under the named question
		// (spec.md §4.7's Disembargo accept row). The target names the
		// embargoed Accept by its own question id.
		if dtarget.Which() != rpccapnp.MessageTarget_Which_promisedAnswer {
			return errBadTarget
		}
		dpa, err := dtarget.PromisedAnswer()
		if err != nil {
			return err
		}
		aid := answerID(dpa.QuestionId())
		client, ok := c.embargoedAccepts[aid]
		if !ok {
			return errBadTarget
		}
		delete(c.embargoedAccepts, aid)
		return c.sendCapReturn(aid, client)
	default:
		c.sendMessage(newUnimplementedMessage(c, msg))
	}
	return nil
}

// handleResolveMessage implements the inbound half of the Resolve row
// (spec.md §4.7): the peer is telling us one of our senderPromise
// imports has resolved. The outbound half, for promise exports this
// peer announced via sender_promise descriptors, is
// sendPromiseResolution in export.go.
func (c *Conn) handleResolveMessage(m rpccapnp.Message) error {
	res, err := m.Resolve()
	if err != nil {
		return err
	}
	id := importID(res.PromiseId())
	e, ok := c.imports[id]
	if !ok {
		// Not a promise we're tracking: release the resolution's cap
		// right away so the peer doesn't hold a ref on our behalf
		// (spec.md §4.7's Resolve row).
		if res.Which() == rpccapnp.Resolve_Which_cap {
			desc, err := res.Cap()
			if err != nil {
				return err
			}
			switch desc.Which() {
			case rpccapnp.CapDescriptor_Which_senderHosted, rpccapnp.CapDescriptor_Which_senderPromise:
				rel := c.newMessage()
				r, _ := rel.NewRelease()
				r.SetId(desc.SenderHosted())
				r.SetReferenceCount(1)
				return c.sendMessage(rel)
			}
		}
		return nil
	}
	switch res.Which() {
	case rpccapnp.Resolve_Which_cap:
		desc, err := res.Cap()
		if err != nil {
			return err
		}
		switch desc.Which() {
		case rpccapnp.CapDescriptor_Which_receiverHosted:
			// The promise resolved to a capability we ourselves
			// export: calls no longer need to cross the wire at all.
			// Testable Property 5 requires an embargo before routing
			// any call through this shortcut.
			rid := exportID(desc.ReceiverHosted())
			exp := c.findExport(rid)
			if exp == nil || exp.client == nil {
				return ErrUnknownExport
			}
			return c.embargoResolvedImport(id, exp.client)
		case rpccapnp.CapDescriptor_Which_receiverAnswer:
			// The promise resolved to one of our own pending answers
			// — also a loopback shortcut, and also embargoed.
			recvAns, err := desc.ReceiverAnswer()
			if err != nil {
				return ErrMissingPromisedAnswer
			}
			aid := answerID(recvAns.QuestionId())
			a := c.answers[aid]
			if a == nil {
				return ErrUnknownReceiverAnswerCap
			}
			recvTransform, err := recvAns.Transform()
			if err != nil {
				return err
			}
			client := a.pipelineClient(promisedAnswerOpsToTransform(recvTransform))
			return c.embargoResolvedImport(id, client)
		default:
			// senderHosted/senderPromise/thirdPartyHosted: the
			// resolution still names a capability hosted by the
			// remote peer, so keep routing through the existing
			// import id, which this engine already treats as live.
		}
	case rpccapnp.Resolve_Which_exception:
		exc, err := res.Exception()
		if err != nil {
			return err
		}
		e.client = capnp.ErrorClient(Exception{exc})
	}
	return nil
}

// embargoResolvedImport implements the Resolve row's embargo
// requirement (spec.md §4.7, Testable Property 5): id's promise
// resolved to a capability now reachable directly through this
// peer's own tables (an export or a pending answer) instead of over
// the wire. Any call sent against the old promise path before this
// Resolve arrived may still be in flight, so client is wrapped to
// block further calls until the matching Disembargo receiver_loopback
// confirms those earlier calls have drained, and a Disembargo
// sender_loopback is sent immediately, before client is exposed to
// any caller.
func (c *Conn) embargoResolvedImport(id importID, client capnp.Client) error {
	e, ok := c.imports[id]
	if !ok {
		return nil
	}
	eid := embargoID(c.embargoID.next32())
	ch := make(chan struct{})
	c.addEmbargo(eid, ch)
	e.client = newEmbargoClient(client, ch)

	m := c.newMessage()
	d, err := m.NewDisembargo()
	if err != nil {
		return err
	}
	d.Context().SetSenderLoopback(uint32(eid))
	target, err := d.NewTarget()
	if err != nil {
		return err
	}
	target.SetImportedCap(uint32(id))
	return c.sendMessage(m)
}
