package rpc

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

// decodedCall is a plain-Go summary of a decoded Call, for diffable
// comparisons against an expected value.
type decodedCall struct {
	QuestionID    uint32
	InterfaceID   uint64
	MethodID      uint16
	TargetKind    MessageTargetWhich
	TargetAnswer  uint32
	TransformOps  []uint16
	SendResultsTo SendResultsTo
}

func TestCallRoundTrip(t *testing.T) {
	m, seg, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	call, err := m.NewCall()
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	call.SetQuestionId(77)
	call.SetInterfaceId(0xdeadbeefcafe)
	call.SetMethodId(3)
	call.SetSendResultsTo(SendResultsTo_yourself)

	target, err := call.NewTarget()
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	pa, err := target.NewPromisedAnswer()
	if err != nil {
		t.Fatalf("NewPromisedAnswer: %v", err)
	}
	pa.SetQuestionId(11)
	ops, err := NewPromisedAnswer_Op_List(seg, 2)
	if err != nil {
		t.Fatalf("NewPromisedAnswer_Op_List: %v", err)
	}
	ops.At(0).SetGetPointerField(1)
	ops.At(1).SetGetPointerField(4)
	if err := pa.SetTransform(ops); err != nil {
		t.Fatalf("SetTransform: %v", err)
	}
	if _, err := call.NewParams(); err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	reread, err := ReadRootMessage(seg.Message())
	if err != nil {
		t.Fatalf("ReadRootMessage: %v", err)
	}
	if reread.Which() != Message_Which_call {
		t.Fatalf("Which() = %v, want call", reread.Which())
	}
	dcall, err := reread.Call()
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	dtarget, err := dcall.Target()
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	dpa, err := dtarget.PromisedAnswer()
	if err != nil {
		t.Fatalf("PromisedAnswer: %v", err)
	}
	dops, err := dpa.Transform()
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	got := decodedCall{
		QuestionID:    dcall.QuestionId(),
		InterfaceID:   dcall.InterfaceId(),
		MethodID:      dcall.MethodId(),
		TargetKind:    dtarget.Which(),
		TargetAnswer:  dpa.QuestionId(),
		SendResultsTo: dcall.SendResultsTo(),
	}
	for i := 0; i < dops.Len(); i++ {
		op := dops.At(i)
		if op.Which() != PromisedAnswer_Op_Which_getPointerField {
			t.Fatalf("op %d kind = %v, want getPointerField", i, op.Which())
		}
		got.TransformOps = append(got.TransformOps, op.GetPointerField())
	}

	want := decodedCall{
		QuestionID:    77,
		InterfaceID:   0xdeadbeefcafe,
		MethodID:      3,
		TargetKind:    MessageTarget_Which_promisedAnswer,
		TargetAnswer:  11,
		TransformOps:  []uint16{1, 4},
		SendResultsTo: SendResultsTo_yourself,
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("decoded Call differs (-want +got):\n%s", diff)
	}
}

// TestInvertedReleaseFlags pins the inverted bit storage called out in
// the protocol: a zeroed Return/Finish reads as "release caps", and
// setting the flag false sets the underlying bit.
func TestInvertedReleaseFlags(t *testing.T) {
	m, _, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	ret, err := m.NewReturn()
	if err != nil {
		t.Fatalf("NewReturn: %v", err)
	}
	if !ret.ReleaseParamCaps() {
		t.Fatal("zeroed Return.ReleaseParamCaps() = false, want true")
	}
	ret.SetReleaseParamCaps(false)
	if ret.ReleaseParamCaps() {
		t.Fatal("ReleaseParamCaps() = true after SetReleaseParamCaps(false)")
	}
	if !ret.s.Bit(32) {
		t.Fatal("underlying bit 32 clear; the flag must be stored inverted")
	}

	fm, _, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	fin, err := fm.NewFinish()
	if err != nil {
		t.Fatalf("NewFinish: %v", err)
	}
	if !fin.ReleaseResultCaps() {
		t.Fatal("zeroed Finish.ReleaseResultCaps() = false, want true")
	}
	fin.SetReleaseResultCaps(false)
	if fin.ReleaseResultCaps() {
		t.Fatal("ReleaseResultCaps() = true after SetReleaseResultCaps(false)")
	}
}

func TestCapDescriptorVariants(t *testing.T) {
	_, seg, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	list, err := NewCapDescriptor_List(seg, 4)
	if err != nil {
		t.Fatalf("NewCapDescriptor_List: %v", err)
	}

	list.At(0).SetNone()
	list.At(1).SetSenderHosted(17)
	list.At(2).SetReceiverHosted(42)
	tp, err := list.At(3).NewThirdPartyHosted()
	if err != nil {
		t.Fatalf("NewThirdPartyHosted: %v", err)
	}
	tp.SetVineId(5)

	if got := list.At(0).Which(); got != CapDescriptor_Which_none {
		t.Errorf("descriptor 0 = %v, want none", got)
	}
	if got := list.At(1).Which(); got != CapDescriptor_Which_senderHosted {
		t.Errorf("descriptor 1 = %v, want senderHosted", got)
	}
	if got := list.At(1).SenderHosted(); got != 17 {
		t.Errorf("SenderHosted() = %d, want 17", got)
	}
	if got := list.At(2).ReceiverHosted(); got != 42 {
		t.Errorf("ReceiverHosted() = %d, want 42", got)
	}
	dtp, err := list.At(3).ThirdPartyHosted()
	if err != nil {
		t.Fatalf("ThirdPartyHosted: %v", err)
	}
	if got := dtp.VineId(); got != 5 {
		t.Errorf("VineId() = %d, want 5", got)
	}
}

func TestDisembargoContextVariants(t *testing.T) {
	m, _, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	d, err := m.NewDisembargo()
	if err != nil {
		t.Fatalf("NewDisembargo: %v", err)
	}

	d.Context().SetSenderLoopback(8)
	if d.Context().Which() != Disembargo_context_Which_senderLoopback {
		t.Fatal("context not senderLoopback after SetSenderLoopback")
	}
	if got := d.Context().SenderLoopback(); got != 8 {
		t.Fatalf("SenderLoopback() = %d, want 8", got)
	}

	d.Context().SetReceiverLoopback(9)
	if d.Context().Which() != Disembargo_context_Which_receiverLoopback {
		t.Fatal("context not receiverLoopback after SetReceiverLoopback")
	}
	if got := d.Context().ReceiverLoopback(); got != 9 {
		t.Fatalf("ReceiverLoopback() = %d, want 9", got)
	}

	d.Context().SetAccept()
	if d.Context().Which() != Disembargo_context_Which_accept {
		t.Fatal("context not accept after SetAccept")
	}
}

func TestExceptionRoundTrip(t *testing.T) {
	m, _, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	e, err := m.NewAbort()
	if err != nil {
		t.Fatalf("NewAbort: %v", err)
	}
	e.SetType(Exception_Type_disconnected)
	if err := e.SetReason("peer went away"); err != nil {
		t.Fatalf("SetReason: %v", err)
	}

	if m.Which() != Message_Which_abort {
		t.Fatalf("Which() = %v, want abort", m.Which())
	}
	de, err := m.Abort()
	if err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if de.Type() != Exception_Type_disconnected {
		t.Fatalf("Type() = %v, want disconnected", de.Type())
	}
	reason, err := de.Reason()
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if reason != "peer went away" {
		t.Fatalf("Reason() = %q, want %q", reason, "peer went away")
	}
}

func TestResolveRoundTrip(t *testing.T) {
	m, _, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	r, err := m.NewResolve()
	if err != nil {
		t.Fatalf("NewResolve: %v", err)
	}
	r.SetPromiseId(33)
	desc, err := r.NewCap()
	if err != nil {
		t.Fatalf("NewCap: %v", err)
	}
	desc.SetSenderHosted(12)

	dr, err := m.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dr.PromiseId() != 33 {
		t.Fatalf("PromiseId() = %d, want 33", dr.PromiseId())
	}
	if dr.Which() != Resolve_Which_cap {
		t.Fatalf("Which() = %v, want cap", dr.Which())
	}
	ddesc, err := dr.Cap()
	if err != nil {
		t.Fatalf("Cap: %v", err)
	}
	if ddesc.SenderHosted() != 12 {
		t.Fatalf("SenderHosted() = %d, want 12", ddesc.SenderHosted())
	}
}
