package rpc

import (
	"errors"
	"testing"
	"time"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	"github.com/kasvtv/capnp-rpc-engine/internal/pipetransport"
)

func validResultPtr(t *testing.T) capnp.Ptr {
	t.Helper()
	_, seg, err := capnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	s, err := capnp.NewStruct(seg, capnp.ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	s.SetUint64(0, 7)
	return s.ToPtr()
}

func TestTranslateForwardedReturnPassesResults(t *testing.T) {
	obj := validResultPtr(t)
	got, err := translateForwardedReturn(obj, nil, questionResolved)
	if err != nil {
		t.Fatalf("translateForwardedReturn: %v", err)
	}
	if got.Struct().Uint64(0) != 7 {
		t.Fatal("translated result does not reference the source payload")
	}
}

func TestTranslateForwardedReturnPassesError(t *testing.T) {
	srcErr := errors.New("upstream failure")
	if _, err := translateForwardedReturn(capnp.Ptr{}, srcErr, questionResolved); err != srcErr {
		t.Fatalf("translated error = %v, want %v", err, srcErr)
	}
}

func TestTranslateForwardedReturnCanceled(t *testing.T) {
	if _, err := translateForwardedReturn(capnp.Ptr{}, nil, questionCanceled); err != errQuestionCanceled {
		t.Fatalf("translated canceled = %v, want %v", err, errQuestionCanceled)
	}
}

// TestTranslateForwardedReturnMissingPayload is Testable Property S7:
// a results tag with no content translates to the exact reason string
// "forwarded return missing payload".
func TestTranslateForwardedReturnMissingPayload(t *testing.T) {
	_, err := translateForwardedReturn(capnp.Ptr{}, nil, questionResolved)
	if err != ErrForwardedReturnMissingPayload {
		t.Fatalf("translated missing payload = %v, want %v", err, ErrForwardedReturnMissingPayload)
	}
	if err.Error() != "forwarded return missing payload" {
		t.Fatalf("reason = %q, want the literal wire string", err.Error())
	}
}

func TestResolveTakeFromOtherQuestionMissingSource(t *testing.T) {
	c := &Conn{}
	q := &question{done: make(chan struct{})}
	c.resolveTakeFromOtherQuestion(q, 99)
	select {
	case <-q.done:
	case <-time.After(time.Second):
		t.Fatal("question not settled for a missing takeFromOtherQuestion source")
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.err != errBadTarget {
		t.Fatalf("question error = %v, want %v", q.err, errBadTarget)
	}
}

// TestResolveTakeFromOtherQuestionAdoptsAnswer covers the
// takeFromOtherQuestion row's table choice: the id names one of this
// Conn's own answers (the peer's tail call back to us), and the
// stitched question adopts that answer's outcome once it settles.
func TestResolveTakeFromOtherQuestionAdoptsAnswer(t *testing.T) {
	tr, _ := pipetransport.New()
	c := NewConn(tr)
	defer c.Close()

	c.mu.Lock()
	src := c.insertAnswer(12, nil)
	q := &question{done: make(chan struct{})}
	c.resolveTakeFromOtherQuestion(q, 12)
	c.mu.Unlock()

	select {
	case <-q.done:
		t.Fatal("question settled before the source answer resolved")
	default:
	}

	obj := validResultPtr(t)
	c.mu.Lock()
	err := src.fulfill(obj)
	c.mu.Unlock()
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	select {
	case <-q.done:
	case <-time.After(time.Second):
		t.Fatal("question not settled after its source answer resolved")
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.err != nil {
		t.Fatalf("question error = %v, want nil", q.err)
	}
	if q.obj.Struct().Uint64(0) != 7 {
		t.Fatal("question did not adopt the source answer's result")
	}
}
