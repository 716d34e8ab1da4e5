package capnp

import "context"

// CapabilityID is an index into a Message's capability table.
type CapabilityID uint32

// A Client is a reference to a capability: a local object supplied by
// user code, a capability imported over an rpc connection, or a
// placeholder for a resolved/erroring promise. User code plugs in by
// implementing this interface.
type Client interface {
	// Call dispatches a method call to the capability and returns its
	// eventual answer.
	Call(ctx context.Context, call *Call) Answer
	// Close releases any resources held by the client.
	Close() error
}

// ErrorClient returns a Client whose every call resolves to err.
func ErrorClient(err error) Client { return errorClient{err} }

type errorClient struct{ err error }

func (e errorClient) Call(ctx context.Context, call *Call) Answer { return ErrorAnswer(e.err) }
func (e errorClient) Close() error                                { return nil }

// CapTable is the ordered list of capabilities referenced by a
// Message, indexed by CapabilityID. It is populated by the rpc
// package when decoding inbound cap descriptors, and read by it when
// encoding outbound ones.
type CapTable struct {
	clients []Client
}

// Add appends c to the table and returns its new index.
func (t *CapTable) Add(c Client) CapabilityID {
	t.clients = append(t.clients, c)
	return CapabilityID(len(t.clients) - 1)
}

// At returns the client at index i, or nil if out of range.
func (t *CapTable) At(i CapabilityID) Client {
	if int(i) >= len(t.clients) {
		return nil
	}
	return t.clients[i]
}

// Len returns the number of entries in the table.
func (t *CapTable) Len() int { return len(t.clients) }

// Reset empties the table, closing none of the clients (the caller
// owns their lifetime).
func (t *CapTable) Reset() { t.clients = nil }

// Interface is a Ptr variant referencing a capability by its
// message-local table index.
type Interface struct{ ptr Ptr }

// NewInterface returns an Interface referencing capability index
// capID within seg's message.
func NewInterface(seg *Segment, capID CapabilityID) Interface {
	_ = seg
	p, err := NewCapabilityPtr(capID)
	if err != nil {
		return Interface{}
	}
	return Interface{ptr: p}
}

// ToPtr returns the Interface as a Ptr.
func (i Interface) ToPtr() Ptr { return i.ptr }

// Capability returns the referenced capability-table index.
func (p Ptr) Capability() CapabilityID {
	if !p.InterfaceValid() {
		return 0
	}
	return p.CapabilityIndex()
}

// Interface returns p as an Interface value.
func (p Ptr) Interface() Interface { return Interface{ptr: p} }

// Client resolves p (which must be an interface pointer read from a
// decoded message) against msg's capability table.
func (p Ptr) Client(msg *Message) Client {
	if !p.InterfaceValid() {
		return nil
	}
	return msg.CapTable.At(p.CapabilityIndex())
}
