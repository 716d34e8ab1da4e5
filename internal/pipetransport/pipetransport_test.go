package pipetransport

import (
	"context"
	"testing"
	"time"
)

func TestPipeDeliversWrites(t *testing.T) {
	a, b := New()
	defer a.Close()
	defer b.Close()

	received := make(chan []byte, 1)
	if err := b.StartRead(context.Background(), func(data []byte) {
		received <- data
	}); err != nil {
		t.Fatalf("StartRead: %v", err)
	}

	done := make(chan error, 1)
	a.QueueWrite(context.Background(), []byte("hello"), func(err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("QueueWrite onDone: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write completion")
	}

	select {
	case got := <-received:
		if string(got) != "hello" {
			t.Fatalf("received %q, want %q", got, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for b to receive a's write")
	}
}

func TestPipeCloseUnblocksQueueWrite(t *testing.T) {
	a, b := New()
	defer b.Close()

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.IsClosing() {
		t.Fatal("IsClosing() = false after Close")
	}

	done := make(chan error, 1)
	a.QueueWrite(context.Background(), []byte("x"), func(err error) { done <- err })

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("QueueWrite after Close returned %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for QueueWrite to fail after Close")
	}
}

func TestPipeCloseIsIdempotent(t *testing.T) {
	a, b := New()
	defer b.Close()

	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
