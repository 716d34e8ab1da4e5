package rpc

import (
	"errors"
	"testing"
)

// TestStreamStateDrainsAndReportsFirstError is spec.md §4.10's
// contract for a single stream target: onDrained fires only once every
// in-flight call has returned, and streamError sticks to whichever
// error arrived first.
func TestStreamStateDrainsAndReportsFirstError(t *testing.T) {
	s := &streamState{}

	done := make(chan struct{})
	s.onDrained(func() { close(done) })
	select {
	case <-done:
	default:
		t.Fatalf("onDrained did not fire immediately on an empty stream")
	}

	s.noteCallSent()
	s.noteCallSent()

	drained := make(chan struct{})
	s.onDrained(func() { close(drained) })
	select {
	case <-drained:
		t.Fatalf("onDrained fired before all in-flight calls returned")
	default:
	}

	errFirst := errors.New("first failure")
	errSecond := errors.New("second failure")
	s.noteReturned(errFirst)
	select {
	case <-drained:
		t.Fatalf("onDrained fired with one call still in flight")
	default:
	}
	s.noteReturned(errSecond)
	select {
	case <-drained:
	default:
		t.Fatalf("onDrained did not fire once the stream drained")
	}

	if got := s.streamError(); got != errFirst {
		t.Fatalf("streamError() = %v, want first error %v", got, errFirst)
	}
}

// TestConnStreamForReusesStateByKey covers streamFor's per-target
// identity: the same key always returns the same streamState, and
// distinct keys never share one.
func TestConnStreamForReusesStateByKey(t *testing.T) {
	c := &Conn{}
	a := c.streamFor(importID(1))
	b := c.streamFor(importID(1))
	if a != b {
		t.Fatalf("streamFor(1) returned distinct states across calls")
	}
	other := c.streamFor(importID(2))
	if other == a {
		t.Fatalf("streamFor(2) aliased streamFor(1)'s state")
	}
}
