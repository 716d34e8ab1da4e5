package rpc

import (
	"errors"
	"testing"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	"github.com/kasvtv/capnp-rpc-engine/internal/pipetransport"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
)

// provideMessage builds a Provide message targeting exportID,
// recipient-keyed by key.
func provideMessage(t *testing.T, qid, exportID uint32, key string) rpccapnp.Message {
	t.Helper()
	m, _, err := rpccapnp.NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	p, err := m.NewProvide()
	if err != nil {
		t.Fatalf("NewProvide: %v", err)
	}
	p.SetQuestionId(qid)
	target, err := p.NewTarget()
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	target.SetImportedCap(exportID)
	if err := p.SetRecipient(key); err != nil {
		t.Fatalf("SetRecipient: %v", err)
	}
	return m
}

// TestHandleProvideRejectsDuplicateRecipient covers spec.md §4.7's
// Provide row: a second Provide naming a recipient key already parked
// is rejected rather than silently overwriting the first registration.
func TestHandleProvideRejectsDuplicateRecipient(t *testing.T) {
	a, _ := pipetransport.New()
	c := NewConn(a)
	defer c.Close()

	c.mu.Lock()
	eid := mustExport(t, c, capnp.ErrorClient(errors.New("unused")))
	const key = "dup-recipient"
	m1 := provideMessage(t, 1, uint32(eid), key)
	if err := c.handleProvide(m1); err != nil {
		c.mu.Unlock()
		t.Fatalf("first handleProvide: %v", err)
	}
	if _, ok := c.provides[key]; !ok {
		c.mu.Unlock()
		t.Fatalf("provides[%q] not recorded after first Provide", key)
	}
	first := c.provides[key]
	m2 := provideMessage(t, 2, uint32(eid), key)
	err := c.handleProvide(m2)
	if err != nil {
		c.mu.Unlock()
		t.Fatalf("second handleProvide transport error: %v", err)
	}
	if c.provides[key] != first {
		c.mu.Unlock()
		t.Fatalf("provides[%q] overwritten by duplicate Provide", key)
	}
	if _, ok := c.providesByQuestion[2]; ok {
		c.mu.Unlock()
		t.Fatalf("providesByQuestion[2] recorded despite duplicate recipient key")
	}
	c.mu.Unlock()
}

// TestHandleProvideRejectsDuplicateQuestionID covers the other half of
// the duplicate check: the same question id reused for a second
// Provide, even with a distinct recipient key.
func TestHandleProvideRejectsDuplicateQuestionID(t *testing.T) {
	a, _ := pipetransport.New()
	c := NewConn(a)
	defer c.Close()

	c.mu.Lock()
	eid := mustExport(t, c, capnp.ErrorClient(errors.New("unused")))
	m1 := provideMessage(t, 7, uint32(eid), "key-a")
	if err := c.handleProvide(m1); err != nil {
		c.mu.Unlock()
		t.Fatalf("first handleProvide: %v", err)
	}
	m2 := provideMessage(t, 7, uint32(eid), "key-b")
	err := c.handleProvide(m2)
	if err != nil {
		c.mu.Unlock()
		t.Fatalf("second handleProvide transport error: %v", err)
	}
	if _, ok := c.provides["key-b"]; ok {
		c.mu.Unlock()
		t.Fatalf("provides[%q] recorded despite duplicate question id", "key-b")
	}
	c.mu.Unlock()
}
