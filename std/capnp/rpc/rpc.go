// Package rpc implements the wire codec for the Cap'n Proto RPC
// protocol: the 15 top-level message variants, capability
// descriptors, promised-answer transforms, and exceptions. Field
// offsets, bit positions, and pointer-slot indices follow spec.md
// §4.2/§6 and are normative for wire compatibility.
//
// This is the protocol-codec layer named in spec.md's system
// overview: it is deliberately independent from the rpc engine
// itself (package rpc at the module root), the way the teacher splits
// its schema-generated std/capnp/rpc package from its hand-written
// rpc package.
package rpc

import "github.com/kasvtv/capnp-rpc-engine/capnp"

// Which identifies the variant of a Message.
type Which uint16

const (
	Message_Which_unimplemented Which = 0
	Message_Which_abort         Which = 1
	Message_Which_call          Which = 2
	Message_Which_return        Which = 3
	Message_Which_finish        Which = 4
	Message_Which_resolve       Which = 5
	Message_Which_release       Which = 6
	Message_Which_obsoleteSave  Which = 7
	Message_Which_bootstrap     Which = 8
	Message_Which_obsoleteDelete Which = 9
	Message_Which_provide        Which = 10
	Message_Which_accept         Which = 11
	Message_Which_join           Which = 12
	Message_Which_disembargo      Which = 13
	Message_Which_thirdPartyAnswer Which = 14
)

func (w Which) String() string {
	switch w {
	case Message_Which_unimplemented:
		return "unimplemented"
	case Message_Which_abort:
		return "abort"
	case Message_Which_call:
		return "call"
	case Message_Which_return:
		return "return"
	case Message_Which_finish:
		return "finish"
	case Message_Which_resolve:
		return "resolve"
	case Message_Which_release:
		return "release"
	case Message_Which_bootstrap:
		return "bootstrap"
	case Message_Which_provide:
		return "provide"
	case Message_Which_accept:
		return "accept"
	case Message_Which_join:
		return "join"
	case Message_Which_disembargo:
		return "disembargo"
	case Message_Which_thirdPartyAnswer:
		return "thirdPartyAnswer"
	default:
		return "unknown"
	}
}

// messageObjSize is the root struct's fixed shape: 1 data word
// (discriminant at byte 0) + 1 pointer word to the variant body.
var messageObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

// Message is the root RPC struct.
type Message struct{ s capnp.Struct }

// NewRootMessage allocates a new root Message in seg.
func NewRootMessage(seg *capnp.Segment) (Message, error) {
	s, err := capnp.NewRootStruct(seg, messageObjSize)
	if err != nil {
		return Message{}, err
	}
	return Message{s}, nil
}

// NewMessage allocates a single-segment message and returns its root
// RPC Message struct plus the underlying segment (for building
// variant bodies).
func NewMessage() (Message, *capnp.Segment, error) {
	_, seg, err := capnp.NewMessage()
	if err != nil {
		return Message{}, nil, err
	}
	m, err := NewRootMessage(seg)
	return m, seg, err
}

// ReadRootMessage reads msg's root pointer as a Message.
func ReadRootMessage(msg *capnp.Message) (Message, error) {
	p, err := msg.Root()
	if err != nil {
		return Message{}, err
	}
	if !p.StructValid() {
		return Message{}, errMissing("root message")
	}
	return Message{p.Struct()}, nil
}

func (m Message) Segment() *capnp.Segment { return m.s.Segment() }
func (m Message) Which() Which            { return Which(m.s.Uint16(0)) }
func (m Message) setWhich(w Which)        { m.s.SetUint16(0, uint16(w)) }

func (m Message) body() (capnp.Ptr, error) { return m.s.Ptr(0) }

type wireError struct{ msg string }

func (e wireError) Error() string { return e.msg }

func errMissing(what string) error { return wireError{"rpc: missing " + what} }

// ---- Unimplemented ----

func (m Message) SetUnimplemented(inner Message) error {
	m.setWhich(Message_Which_unimplemented)
	p := inner.s.ToPtr()
	// inner is usually a decoded inbound message being echoed back, so
	// its body lives in another message's segments and must be copied
	// rather than pointed at.
	if inner.Segment() != nil && inner.Segment() != m.Segment() {
		var err error
		p, err = capnp.Copy(m.Segment(), p)
		if err != nil {
			return err
		}
	}
	return m.s.SetPtr(0, p)
}

func (m Message) Unimplemented() (Message, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Message{}, err
	}
	return Message{p.Struct()}, nil
}

// ---- Abort ----

func (m Message) NewAbort() (Exception, error) {
	m.setWhich(Message_Which_abort)
	s, err := capnp.NewStruct(m.Segment(), exceptionObjSize)
	if err != nil {
		return Exception{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Exception{}, err
	}
	return Exception{s}, nil
}

func (m Message) Abort() (Exception, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Exception{}, err
	}
	return Exception{p.Struct()}, nil
}

// ---- Bootstrap ----

var bootstrapObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 0}

type Bootstrap struct{ s capnp.Struct }

func (m Message) NewBootstrap() (Bootstrap, error) {
	m.setWhich(Message_Which_bootstrap)
	s, err := capnp.NewStruct(m.Segment(), bootstrapObjSize)
	if err != nil {
		return Bootstrap{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Bootstrap{}, err
	}
	return Bootstrap{s}, nil
}

func (m Message) Bootstrap() (Bootstrap, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Bootstrap{}, errMissing("bootstrap")
	}
	return Bootstrap{p.Struct()}, nil
}

func (b Bootstrap) QuestionId() uint32     { return b.s.Uint32(0) }
func (b Bootstrap) SetQuestionId(id uint32) { b.s.SetUint32(0, id) }

// ---- Call ----

var callObjSize = capnp.ObjectSize{DataSize: 24, PointerCount: 3}

type Call struct{ s capnp.Struct }

type SendResultsTo uint16

const (
	SendResultsTo_caller     SendResultsTo = 0
	SendResultsTo_yourself   SendResultsTo = 1
	SendResultsTo_thirdParty SendResultsTo = 2
)

func (m Message) NewCall() (Call, error) {
	m.setWhich(Message_Which_call)
	s, err := capnp.NewStruct(m.Segment(), callObjSize)
	if err != nil {
		return Call{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Call{}, err
	}
	return Call{s}, nil
}

func (m Message) Call() (Call, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Call{}, errMissing("call")
	}
	return Call{p.Struct()}, nil
}

func (c Call) QuestionId() uint32      { return c.s.Uint32(0) }
func (c Call) SetQuestionId(id uint32)  { c.s.SetUint32(0, id) }
func (c Call) InterfaceId() uint64      { return c.s.Uint64(8) }
func (c Call) SetInterfaceId(id uint64) { c.s.SetUint64(8, id) }
func (c Call) MethodId() uint16         { return c.s.Uint16(16) }
func (c Call) SetMethodId(id uint16)    { c.s.SetUint16(16, id) }
func (c Call) SendResultsTo() SendResultsTo {
	return SendResultsTo(c.s.Uint16(18))
}
func (c Call) SetSendResultsTo(v SendResultsTo) { c.s.SetUint16(18, uint16(v)) }
func (c Call) AllowThirdPartyTailCall() bool     { return c.s.Bit(160) }
func (c Call) SetAllowThirdPartyTailCall(v bool) { c.s.SetBit(160, v) }

func (c Call) Target() (MessageTarget, error) {
	p, err := c.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return MessageTarget{}, errMissing("call target")
	}
	return MessageTarget{p.Struct()}, nil
}

func (c Call) NewTarget() (MessageTarget, error) {
	s, err := capnp.NewStruct(c.s.Segment(), messageTargetObjSize)
	if err != nil {
		return MessageTarget{}, err
	}
	if err := c.s.SetPtr(0, s.ToPtr()); err != nil {
		return MessageTarget{}, err
	}
	return MessageTarget{s}, nil
}

func (c Call) Params() (Payload, error) {
	p, err := c.s.Ptr(1)
	if err != nil || !p.StructValid() {
		return Payload{}, errMissing("call params")
	}
	return Payload{p.Struct()}, nil
}

func (c Call) NewParams() (Payload, error) {
	s, err := capnp.NewStruct(c.s.Segment(), payloadObjSize)
	if err != nil {
		return Payload{}, err
	}
	if err := c.s.SetPtr(1, s.ToPtr()); err != nil {
		return Payload{}, err
	}
	return Payload{s}, nil
}

func (c Call) ThirdPartyRecipient() (capnp.Ptr, error) { return c.s.Ptr(2) }
func (c Call) SetThirdPartyRecipient(p capnp.Ptr) error { return c.s.SetPtr(2, p) }

// ---- MessageTarget ----

var messageTargetObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

type MessageTarget struct{ s capnp.Struct }

type MessageTargetWhich uint16

const (
	MessageTarget_Which_importedCap    MessageTargetWhich = 0
	MessageTarget_Which_promisedAnswer MessageTargetWhich = 1
)

func (t MessageTarget) Which() MessageTargetWhich { return MessageTargetWhich(t.s.Uint16(0)) }

func (t MessageTarget) ImportedCap() uint32 { return t.s.Uint32(4) }
func (t MessageTarget) SetImportedCap(id uint32) {
	t.s.SetUint16(0, uint16(MessageTarget_Which_importedCap))
	t.s.SetUint32(4, id)
}

func (t MessageTarget) PromisedAnswer() (PromisedAnswer, error) {
	p, err := t.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return PromisedAnswer{}, errMissing("promised answer target")
	}
	return PromisedAnswer{p.Struct()}, nil
}

func (t MessageTarget) NewPromisedAnswer() (PromisedAnswer, error) {
	t.s.SetUint16(0, uint16(MessageTarget_Which_promisedAnswer))
	s, err := capnp.NewStruct(t.s.Segment(), promisedAnswerObjSize)
	if err != nil {
		return PromisedAnswer{}, err
	}
	if err := t.s.SetPtr(0, s.ToPtr()); err != nil {
		return PromisedAnswer{}, err
	}
	return PromisedAnswer{s}, nil
}

// ---- PromisedAnswer ----

var promisedAnswerObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}
var promisedAnswerOpObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 0}

type PromisedAnswer struct{ s capnp.Struct }

type PromisedAnswerOpWhich uint16

const (
	PromisedAnswer_Op_Which_noop           PromisedAnswerOpWhich = 0
	PromisedAnswer_Op_Which_getPointerField PromisedAnswerOpWhich = 1
)

type PromisedAnswerOp struct{ s capnp.Struct }
type PromisedAnswerOpList struct{ l capnp.List }

func (a PromisedAnswer) QuestionId() uint32      { return a.s.Uint32(0) }
func (a PromisedAnswer) SetQuestionId(id uint32) { a.s.SetUint32(0, id) }

func (a PromisedAnswer) Transform() (PromisedAnswerOpList, error) {
	p, err := a.s.Ptr(0)
	if err != nil || !p.ListValid() {
		return PromisedAnswerOpList{}, nil
	}
	return PromisedAnswerOpList{p.List()}, nil
}

func NewPromisedAnswer_Op_List(seg *capnp.Segment, n int) (PromisedAnswerOpList, error) {
	l, err := capnp.NewCompositeList(seg, promisedAnswerOpObjSize, n)
	if err != nil {
		return PromisedAnswerOpList{}, err
	}
	return PromisedAnswerOpList{l}, nil
}

func (a PromisedAnswer) SetTransform(ops PromisedAnswerOpList) error {
	return a.s.SetPtr(0, ops.l.ToPtr())
}

func (l PromisedAnswerOpList) Len() int { return l.l.Len() }
func (l PromisedAnswerOpList) At(i int) PromisedAnswerOp {
	return PromisedAnswerOp{l.l.Struct(i)}
}

func (op PromisedAnswerOp) Which() PromisedAnswerOpWhich {
	return PromisedAnswerOpWhich(op.s.Uint16(0))
}
func (op PromisedAnswerOp) SetNoop() { op.s.SetUint16(0, uint16(PromisedAnswer_Op_Which_noop)) }
func (op PromisedAnswerOp) GetPointerField() uint16 { return op.s.Uint16(2) }
func (op PromisedAnswerOp) SetGetPointerField(i uint16) {
	op.s.SetUint16(0, uint16(PromisedAnswer_Op_Which_getPointerField))
	op.s.SetUint16(2, i)
}

// ---- Payload ----

var payloadObjSize = capnp.ObjectSize{DataSize: 0, PointerCount: 2}

type Payload struct{ s capnp.Struct }

func (p Payload) Segment() *capnp.Segment { return p.s.Segment() }

func (p Payload) ContentPtr() (capnp.Ptr, error) { return p.s.Ptr(0) }
func (p Payload) SetContent(ptr capnp.Ptr) error { return p.s.SetPtr(0, ptr) }

func (p Payload) CapTable() (CapDescriptorList, error) {
	ptr, err := p.s.Ptr(1)
	if err != nil || !ptr.ListValid() {
		return CapDescriptorList{}, nil
	}
	return CapDescriptorList{ptr.List()}, nil
}

func (p Payload) SetCapTable(l CapDescriptorList) error { return p.s.SetPtr(1, l.l.ToPtr()) }

// ---- CapDescriptor ----

var capDescriptorObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

type CapDescriptor struct{ s capnp.Struct }
type CapDescriptorList struct{ l capnp.List }

type CapDescriptorWhich uint16

const (
	CapDescriptor_Which_none            CapDescriptorWhich = 0
	CapDescriptor_Which_senderHosted    CapDescriptorWhich = 1
	CapDescriptor_Which_senderPromise   CapDescriptorWhich = 2
	CapDescriptor_Which_receiverHosted  CapDescriptorWhich = 3
	CapDescriptor_Which_receiverAnswer  CapDescriptorWhich = 4
	CapDescriptor_Which_thirdPartyHosted CapDescriptorWhich = 5
)

func NewCapDescriptor_List(seg *capnp.Segment, n int) (CapDescriptorList, error) {
	l, err := capnp.NewCompositeList(seg, capDescriptorObjSize, n)
	if err != nil {
		return CapDescriptorList{}, err
	}
	return CapDescriptorList{l}, nil
}

func (l CapDescriptorList) Len() int              { return l.l.Len() }
func (l CapDescriptorList) At(i int) CapDescriptor { return CapDescriptor{l.l.Struct(i)} }

func (d CapDescriptor) Which() CapDescriptorWhich { return CapDescriptorWhich(d.s.Uint16(0)) }
func (d CapDescriptor) SetNone()                  { d.s.SetUint16(0, uint16(CapDescriptor_Which_none)) }

func (d CapDescriptor) SenderHosted() uint32 { return d.s.Uint32(4) }
func (d CapDescriptor) SetSenderHosted(id uint32) {
	d.s.SetUint16(0, uint16(CapDescriptor_Which_senderHosted))
	d.s.SetUint32(4, id)
}

func (d CapDescriptor) SenderPromise() uint32 { return d.s.Uint32(4) }
func (d CapDescriptor) SetSenderPromise(id uint32) {
	d.s.SetUint16(0, uint16(CapDescriptor_Which_senderPromise))
	d.s.SetUint32(4, id)
}

func (d CapDescriptor) ReceiverHosted() uint32 { return d.s.Uint32(4) }
func (d CapDescriptor) SetReceiverHosted(id uint32) {
	d.s.SetUint16(0, uint16(CapDescriptor_Which_receiverHosted))
	d.s.SetUint32(4, id)
}

func (d CapDescriptor) ReceiverAnswer() (PromisedAnswer, error) {
	p, err := d.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return PromisedAnswer{}, errMissing("receiver answer")
	}
	return PromisedAnswer{p.Struct()}, nil
}

func (d CapDescriptor) NewReceiverAnswer() (PromisedAnswer, error) {
	d.s.SetUint16(0, uint16(CapDescriptor_Which_receiverAnswer))
	s, err := capnp.NewStruct(d.s.Segment(), promisedAnswerObjSize)
	if err != nil {
		return PromisedAnswer{}, err
	}
	if err := d.s.SetPtr(0, s.ToPtr()); err != nil {
		return PromisedAnswer{}, err
	}
	return PromisedAnswer{s}, nil
}

func (d CapDescriptor) ThirdPartyHosted() (ThirdPartyCapDescriptor, error) {
	p, err := d.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return ThirdPartyCapDescriptor{}, errMissing("third party cap descriptor")
	}
	return ThirdPartyCapDescriptor{p.Struct()}, nil
}

func (d CapDescriptor) NewThirdPartyHosted() (ThirdPartyCapDescriptor, error) {
	d.s.SetUint16(0, uint16(CapDescriptor_Which_thirdPartyHosted))
	s, err := capnp.NewStruct(d.s.Segment(), thirdPartyCapDescriptorObjSize)
	if err != nil {
		return ThirdPartyCapDescriptor{}, err
	}
	if err := d.s.SetPtr(0, s.ToPtr()); err != nil {
		return ThirdPartyCapDescriptor{}, err
	}
	return ThirdPartyCapDescriptor{s}, nil
}

// ---- ThirdPartyCapDescriptor ----

var thirdPartyCapDescriptorObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

type ThirdPartyCapDescriptor struct{ s capnp.Struct }

func (d ThirdPartyCapDescriptor) VineId() uint32      { return d.s.Uint32(0) }
func (d ThirdPartyCapDescriptor) SetVineId(id uint32) { d.s.SetUint32(0, id) }
func (d ThirdPartyCapDescriptor) Id() (capnp.Ptr, error) { return d.s.Ptr(0) }
func (d ThirdPartyCapDescriptor) SetId(p capnp.Ptr) error { return d.s.SetPtr(0, p) }

// ---- Return ----

var returnObjSize = capnp.ObjectSize{DataSize: 16, PointerCount: 3}

type Return struct{ s capnp.Struct }

type ReturnWhich uint16

const (
	Return_Which_results                ReturnWhich = 0
	Return_Which_exception               ReturnWhich = 1
	Return_Which_canceled                ReturnWhich = 2
	Return_Which_resultsSentElsewhere    ReturnWhich = 3
	Return_Which_takeFromOtherQuestion   ReturnWhich = 4
	Return_Which_acceptFromThirdParty    ReturnWhich = 5
)

func (m Message) NewReturn() (Return, error) {
	m.setWhich(Message_Which_return)
	s, err := capnp.NewStruct(m.Segment(), returnObjSize)
	if err != nil {
		return Return{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Return{}, err
	}
	return Return{s}, nil
}

func (m Message) Return() (Return, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Return{}, errMissing("return")
	}
	return Return{p.Struct()}, nil
}

func (r Return) AnswerId() uint32      { return r.s.Uint32(0) }
func (r Return) SetAnswerId(id uint32) { r.s.SetUint32(0, id) }

// ReleaseParamCaps's wire bit is stored inverted: zeroed (default)
// means "release". See spec.md §9 and SPEC_FULL.md Open Question 1.
func (r Return) ReleaseParamCaps() bool     { return !r.s.Bit(32) }
func (r Return) SetReleaseParamCaps(v bool) { r.s.SetBit(32, !v) }

// NoFinishNeeded is stored at its literal meaning: the default zeroed
// bit means a Finish is still required.
func (r Return) NoFinishNeeded() bool     { return r.s.Bit(33) }
func (r Return) SetNoFinishNeeded(v bool) { r.s.SetBit(33, v) }

func (r Return) Which() ReturnWhich { return ReturnWhich(r.s.Uint16(6)) }

func (r Return) Results() (Payload, error) {
	p, err := r.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return Payload{}, errMissing("return results")
	}
	return Payload{p.Struct()}, nil
}

func (r Return) NewResults() (Payload, error) {
	r.s.SetUint16(6, uint16(Return_Which_results))
	s, err := capnp.NewStruct(r.s.Segment(), payloadObjSize)
	if err != nil {
		return Payload{}, err
	}
	if err := r.s.SetPtr(0, s.ToPtr()); err != nil {
		return Payload{}, err
	}
	return Payload{s}, nil
}

func (r Return) Exception() (Exception, error) {
	p, err := r.s.Ptr(1)
	if err != nil || !p.StructValid() {
		return Exception{}, errMissing("return exception")
	}
	return Exception{p.Struct()}, nil
}

func (r Return) NewException() (Exception, error) {
	r.s.SetUint16(6, uint16(Return_Which_exception))
	s, err := capnp.NewStruct(r.s.Segment(), exceptionObjSize)
	if err != nil {
		return Exception{}, err
	}
	if err := r.s.SetPtr(1, s.ToPtr()); err != nil {
		return Exception{}, err
	}
	return Exception{s}, nil
}

func (r Return) SetException(e Exception) error {
	r.s.SetUint16(6, uint16(Return_Which_exception))
	return r.s.SetPtr(1, e.s.ToPtr())
}

func (r Return) SetCanceled() { r.s.SetUint16(6, uint16(Return_Which_canceled)) }

func (r Return) SetResultsSentElsewhere() {
	r.s.SetUint16(6, uint16(Return_Which_resultsSentElsewhere))
}

func (r Return) TakeFromOtherQuestion() uint32 { return r.s.Uint32(8) }
func (r Return) SetTakeFromOtherQuestion(id uint32) {
	r.s.SetUint16(6, uint16(Return_Which_takeFromOtherQuestion))
	r.s.SetUint32(8, id)
}

func (r Return) AcceptFromThirdParty() (capnp.Ptr, error) { return r.s.Ptr(2) }
func (r Return) SetAcceptFromThirdParty(p capnp.Ptr) error {
	r.s.SetUint16(6, uint16(Return_Which_acceptFromThirdParty))
	return r.s.SetPtr(2, p)
}

// ---- Finish ----

var finishObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 0}

type Finish struct{ s capnp.Struct }

func (m Message) NewFinish() (Finish, error) {
	m.setWhich(Message_Which_finish)
	s, err := capnp.NewStruct(m.Segment(), finishObjSize)
	if err != nil {
		return Finish{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Finish{}, err
	}
	return Finish{s}, nil
}

func (m Message) Finish() (Finish, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Finish{}, errMissing("finish")
	}
	return Finish{p.Struct()}, nil
}

func (f Finish) QuestionId() uint32      { return f.s.Uint32(0) }
func (f Finish) SetQuestionId(id uint32) { f.s.SetUint32(0, id) }

// ReleaseResultCaps is stored inverted: zeroed (default) means
// "release". See spec.md §9.
func (f Finish) ReleaseResultCaps() bool     { return !f.s.Bit(32) }
func (f Finish) SetReleaseResultCaps(v bool) { f.s.SetBit(32, !v) }

// ---- Release ----

var releaseObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 0}

type Release struct{ s capnp.Struct }

func (m Message) NewRelease() (Release, error) {
	m.setWhich(Message_Which_release)
	s, err := capnp.NewStruct(m.Segment(), releaseObjSize)
	if err != nil {
		return Release{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Release{}, err
	}
	return Release{s}, nil
}

func (m Message) Release() (Release, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Release{}, errMissing("release")
	}
	return Release{p.Struct()}, nil
}

func (r Release) Id() uint32                  { return r.s.Uint32(0) }
func (r Release) SetId(id uint32)             { r.s.SetUint32(0, id) }
func (r Release) ReferenceCount() uint32      { return r.s.Uint32(4) }
func (r Release) SetReferenceCount(n uint32)  { r.s.SetUint32(4, n) }

// ---- Resolve ----

var resolveObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 2}

type Resolve struct{ s capnp.Struct }

type ResolveWhich uint16

const (
	Resolve_Which_cap       ResolveWhich = 0
	Resolve_Which_exception ResolveWhich = 1
)

func (m Message) NewResolve() (Resolve, error) {
	m.setWhich(Message_Which_resolve)
	s, err := capnp.NewStruct(m.Segment(), resolveObjSize)
	if err != nil {
		return Resolve{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Resolve{}, err
	}
	return Resolve{s}, nil
}

func (m Message) Resolve() (Resolve, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Resolve{}, errMissing("resolve")
	}
	return Resolve{p.Struct()}, nil
}

func (r Resolve) PromiseId() uint32      { return r.s.Uint32(0) }
func (r Resolve) SetPromiseId(id uint32) { r.s.SetUint32(0, id) }
func (r Resolve) Which() ResolveWhich    { return ResolveWhich(r.s.Uint16(4)) }

func (r Resolve) Cap() (CapDescriptor, error) {
	p, err := r.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return CapDescriptor{}, errMissing("resolve cap")
	}
	return CapDescriptor{p.Struct()}, nil
}

func (r Resolve) NewCap() (CapDescriptor, error) {
	r.s.SetUint16(4, uint16(Resolve_Which_cap))
	s, err := capnp.NewStruct(r.s.Segment(), capDescriptorObjSize)
	if err != nil {
		return CapDescriptor{}, err
	}
	if err := r.s.SetPtr(0, s.ToPtr()); err != nil {
		return CapDescriptor{}, err
	}
	return CapDescriptor{s}, nil
}

func (r Resolve) Exception() (Exception, error) {
	p, err := r.s.Ptr(1)
	if err != nil || !p.StructValid() {
		return Exception{}, errMissing("resolve exception")
	}
	return Exception{p.Struct()}, nil
}

func (r Resolve) NewException() (Exception, error) {
	r.s.SetUint16(4, uint16(Resolve_Which_exception))
	s, err := capnp.NewStruct(r.s.Segment(), exceptionObjSize)
	if err != nil {
		return Exception{}, err
	}
	if err := r.s.SetPtr(1, s.ToPtr()); err != nil {
		return Exception{}, err
	}
	return Exception{s}, nil
}

// ---- Disembargo ----

var disembargoObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

type Disembargo struct{ s capnp.Struct }

type DisembargoContextWhich uint16

const (
	Disembargo_context_Which_senderLoopback   DisembargoContextWhich = 0
	Disembargo_context_Which_receiverLoopback DisembargoContextWhich = 1
	Disembargo_context_Which_accept           DisembargoContextWhich = 2
)

type disembargoContext struct{ s capnp.Struct }

func (m Message) NewDisembargo() (Disembargo, error) {
	m.setWhich(Message_Which_disembargo)
	s, err := capnp.NewStruct(m.Segment(), disembargoObjSize)
	if err != nil {
		return Disembargo{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Disembargo{}, err
	}
	return Disembargo{s}, nil
}

func (m Message) Disembargo() (Disembargo, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Disembargo{}, errMissing("disembargo")
	}
	return Disembargo{p.Struct()}, nil
}

func (d Disembargo) Target() (MessageTarget, error) {
	p, err := d.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return MessageTarget{}, errMissing("disembargo target")
	}
	return MessageTarget{p.Struct()}, nil
}

func (d Disembargo) NewTarget() (MessageTarget, error) {
	s, err := capnp.NewStruct(d.s.Segment(), messageTargetObjSize)
	if err != nil {
		return MessageTarget{}, err
	}
	if err := d.s.SetPtr(0, s.ToPtr()); err != nil {
		return MessageTarget{}, err
	}
	return MessageTarget{s}, nil
}

func (d Disembargo) SetTarget(t MessageTarget) error {
	p := t.s.ToPtr()
	// The target usually comes from a decoded inbound message (the
	// senderLoopback being echoed), so it must be copied into this
	// message rather than pointed at.
	if t.s.Segment() != nil && t.s.Segment() != d.s.Segment() {
		var err error
		p, err = capnp.Copy(d.s.Segment(), p)
		if err != nil {
			return err
		}
	}
	return d.s.SetPtr(0, p)
}

func (d Disembargo) Context() disembargoContext { return disembargoContext{d.s} }

func (c disembargoContext) Which() DisembargoContextWhich {
	return DisembargoContextWhich(c.s.Uint16(0))
}
func (c disembargoContext) SenderLoopback() uint32 { return c.s.Uint32(4) }
func (c disembargoContext) SetSenderLoopback(id uint32) {
	c.s.SetUint16(0, uint16(Disembargo_context_Which_senderLoopback))
	c.s.SetUint32(4, id)
}
func (c disembargoContext) ReceiverLoopback() uint32 { return c.s.Uint32(4) }
func (c disembargoContext) SetReceiverLoopback(id uint32) {
	c.s.SetUint16(0, uint16(Disembargo_context_Which_receiverLoopback))
	c.s.SetUint32(4, id)
}
func (c disembargoContext) SetAccept() {
	c.s.SetUint16(0, uint16(Disembargo_context_Which_accept))
}

// ---- Provide ----

var provideObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 2}

type Provide struct{ s capnp.Struct }

func (m Message) NewProvide() (Provide, error) {
	m.setWhich(Message_Which_provide)
	s, err := capnp.NewStruct(m.Segment(), provideObjSize)
	if err != nil {
		return Provide{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Provide{}, err
	}
	return Provide{s}, nil
}

func (m Message) Provide() (Provide, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Provide{}, errMissing("provide")
	}
	return Provide{p.Struct()}, nil
}

func (p Provide) QuestionId() uint32      { return p.s.Uint32(0) }
func (p Provide) SetQuestionId(id uint32) { p.s.SetUint32(0, id) }

func (p Provide) Target() (MessageTarget, error) {
	ptr, err := p.s.Ptr(0)
	if err != nil || !ptr.StructValid() {
		return MessageTarget{}, errMissing("provide target")
	}
	return MessageTarget{ptr.Struct()}, nil
}

func (p Provide) NewTarget() (MessageTarget, error) {
	s, err := capnp.NewStruct(p.s.Segment(), messageTargetObjSize)
	if err != nil {
		return MessageTarget{}, err
	}
	if err := p.s.SetPtr(0, s.ToPtr()); err != nil {
		return MessageTarget{}, err
	}
	return MessageTarget{s}, nil
}

func (p Provide) Recipient() (string, error) { return p.s.TextField(1) }
func (p Provide) SetRecipient(key string) error { return p.s.SetTextField(1, key) }

// ---- Accept ----

var acceptObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

type Accept struct{ s capnp.Struct }

func (m Message) NewAccept() (Accept, error) {
	m.setWhich(Message_Which_accept)
	s, err := capnp.NewStruct(m.Segment(), acceptObjSize)
	if err != nil {
		return Accept{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Accept{}, err
	}
	return Accept{s}, nil
}

func (m Message) Accept() (Accept, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Accept{}, errMissing("accept")
	}
	return Accept{p.Struct()}, nil
}

func (a Accept) QuestionId() uint32      { return a.s.Uint32(0) }
func (a Accept) SetQuestionId(id uint32) { a.s.SetUint32(0, id) }
func (a Accept) Embargo() bool           { return a.s.Bit(32) }
func (a Accept) SetEmbargo(v bool)       { a.s.SetBit(32, v) }
func (a Accept) Provision() (string, error)   { return a.s.TextField(0) }
func (a Accept) SetProvision(key string) error { return a.s.SetTextField(0, key) }

// ---- Join ----

var joinObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 2}
var joinKeyPartObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 0}

type Join struct{ s capnp.Struct }
type JoinKeyPart struct{ s capnp.Struct }

func (m Message) NewJoin() (Join, error) {
	m.setWhich(Message_Which_join)
	s, err := capnp.NewStruct(m.Segment(), joinObjSize)
	if err != nil {
		return Join{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return Join{}, err
	}
	return Join{s}, nil
}

func (m Message) Join() (Join, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return Join{}, errMissing("join")
	}
	return Join{p.Struct()}, nil
}

func (j Join) QuestionId() uint32      { return j.s.Uint32(0) }
func (j Join) SetQuestionId(id uint32) { j.s.SetUint32(0, id) }

func (j Join) Target() (MessageTarget, error) {
	p, err := j.s.Ptr(0)
	if err != nil || !p.StructValid() {
		return MessageTarget{}, errMissing("join target")
	}
	return MessageTarget{p.Struct()}, nil
}

func (j Join) NewTarget() (MessageTarget, error) {
	s, err := capnp.NewStruct(j.s.Segment(), messageTargetObjSize)
	if err != nil {
		return MessageTarget{}, err
	}
	if err := j.s.SetPtr(0, s.ToPtr()); err != nil {
		return MessageTarget{}, err
	}
	return MessageTarget{s}, nil
}

func (j Join) KeyPart() (JoinKeyPart, error) {
	p, err := j.s.Ptr(1)
	if err != nil || !p.StructValid() {
		return JoinKeyPart{}, errMissing("join key part")
	}
	return JoinKeyPart{p.Struct()}, nil
}

func (j Join) NewKeyPart() (JoinKeyPart, error) {
	s, err := capnp.NewStruct(j.s.Segment(), joinKeyPartObjSize)
	if err != nil {
		return JoinKeyPart{}, err
	}
	if err := j.s.SetPtr(1, s.ToPtr()); err != nil {
		return JoinKeyPart{}, err
	}
	return JoinKeyPart{s}, nil
}

func (k JoinKeyPart) JoinId() uint32       { return k.s.Uint32(0) }
func (k JoinKeyPart) SetJoinId(id uint32)  { k.s.SetUint32(0, id) }
func (k JoinKeyPart) PartCount() uint16    { return k.s.Uint16(4) }
func (k JoinKeyPart) SetPartCount(n uint16) { k.s.SetUint16(4, n) }
func (k JoinKeyPart) PartNum() uint16      { return k.s.Uint16(6) }
func (k JoinKeyPart) SetPartNum(n uint16)  { k.s.SetUint16(6, n) }

// ---- ThirdPartyAnswer ----

var thirdPartyAnswerObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

type ThirdPartyAnswer struct{ s capnp.Struct }

func (m Message) NewThirdPartyAnswer() (ThirdPartyAnswer, error) {
	m.setWhich(Message_Which_thirdPartyAnswer)
	s, err := capnp.NewStruct(m.Segment(), thirdPartyAnswerObjSize)
	if err != nil {
		return ThirdPartyAnswer{}, err
	}
	if err := m.s.SetPtr(0, s.ToPtr()); err != nil {
		return ThirdPartyAnswer{}, err
	}
	return ThirdPartyAnswer{s}, nil
}

func (m Message) ThirdPartyAnswer() (ThirdPartyAnswer, error) {
	p, err := m.body()
	if err != nil || !p.StructValid() {
		return ThirdPartyAnswer{}, errMissing("thirdPartyAnswer")
	}
	return ThirdPartyAnswer{p.Struct()}, nil
}

func (t ThirdPartyAnswer) AnswerId() uint32      { return t.s.Uint32(0) }
func (t ThirdPartyAnswer) SetAnswerId(id uint32) { t.s.SetUint32(0, id) }
func (t ThirdPartyAnswer) Completion() (string, error)   { return t.s.TextField(0) }
func (t ThirdPartyAnswer) SetCompletion(key string) error { return t.s.SetTextField(0, key) }

// ---- Exception ----

var exceptionObjSize = capnp.ObjectSize{DataSize: 8, PointerCount: 2}

// Exception_Type mirrors the standard Cap'n Proto exception
// classification, used to pick a Type value when translating a Go
// error into a wire Exception.
type Exception_Type uint16

const (
	Exception_Type_failed        Exception_Type = 0
	Exception_Type_overloaded    Exception_Type = 1
	Exception_Type_disconnected  Exception_Type = 2
	Exception_Type_unimplemented Exception_Type = 3
)

type Exception struct{ s capnp.Struct }

func NewException(seg *capnp.Segment) (Exception, error) {
	s, err := capnp.NewStruct(seg, exceptionObjSize)
	if err != nil {
		return Exception{}, err
	}
	return Exception{s}, nil
}

func (e Exception) Segment() *capnp.Segment { return e.s.Segment() }
func (e Exception) Type() Exception_Type     { return Exception_Type(e.s.Uint16(0)) }
func (e Exception) SetType(t Exception_Type) { e.s.SetUint16(0, uint16(t)) }
func (e Exception) Reason() (string, error)  { return e.s.TextField(0) }
func (e Exception) SetReason(r string) error  { return e.s.SetTextField(0, r) }
func (e Exception) Trace() (string, error)   { return e.s.TextField(1) }
func (e Exception) SetTrace(r string) error  { return e.s.SetTextField(1, r) }
