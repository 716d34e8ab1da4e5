package refcount

import (
	"context"
	"errors"
	"testing"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
)

type countingClient struct {
	closed *bool
}

func (c countingClient) Call(ctx context.Context, call *capnp.Call) capnp.Answer {
	return capnp.ImmediateAnswer(call.Params)
}

func (c countingClient) Close() error {
	*c.closed = true
	return nil
}

func TestRefCountClosesOnlyAfterEveryRefReleased(t *testing.T) {
	closed := false
	rc, ref1 := New(countingClient{&closed})
	ref2 := rc.Ref()

	if err := ref1.Close(); err != nil {
		t.Fatalf("ref1.Close: %v", err)
	}
	if closed {
		t.Fatal("underlying client closed after releasing only one of two refs")
	}

	if err := ref2.Close(); err != nil {
		t.Fatalf("ref2.Close: %v", err)
	}
	if !closed {
		t.Fatal("underlying client not closed after releasing the last ref")
	}
}

func TestRefCountCallAfterCloseIsError(t *testing.T) {
	closed := false
	rc, ref := New(countingClient{&closed})
	if err := ref.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := rc.call(context.Background(), &capnp.Call{}).Struct(); !errors.Is(err, capnp.ErrNullClient) {
		t.Fatalf("call after the last ref released returned %v, want ErrNullClient", err)
	}
}
