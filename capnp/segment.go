package capnp

import "errors"

// A Segment is a contiguous slice of a Message's memory.
type Segment struct {
	msg  *Message
	id   SegmentID
	data []byte
}

// SegmentID identifies a segment within a message.
type SegmentID uint32

// ID returns the segment's index within its message.
func (s *Segment) ID() SegmentID { return s.id }

// Data returns the raw bytes of the segment.
func (s *Segment) Data() []byte { return s.data }

// Message returns the segment's owning message.
func (s *Segment) Message() *Message { return s.msg }

func (s *Segment) length() address { return address(len(s.data)) }

func (s *Segment) regionInBounds(off address, sz Size) bool {
	end, err := off.addSize(sz)
	if err != nil {
		return false
	}
	return address(end) <= s.length()
}

func (s *Segment) slice(off address, sz Size) []byte {
	return s.data[off : off+address(sz)]
}

// alloc appends sz zero bytes (padded to a word) to the segment and
// returns the address of the new region.
func (s *Segment) alloc(sz Size) (address, error) {
	sz = sz.padToWord()
	off := address(len(s.data))
	if uint64(off)+uint64(sz) > uint64(^uint32(0)) {
		return 0, errors.New("capnp: segment overflow")
	}
	s.data = append(s.data, make([]byte, sz)...)
	return off, nil
}

// A Message is a tree of Cap'n Proto objects split across one or more
// segments. Messages built by this library (for outbound frames) are
// always single-segment; messages decoded from an inbound Frame may
// have multiple segments, but pointers that would cross a segment
// (far pointers) are not dereferenced — see Ptr.Struct/Ptr.List.
type Message struct {
	segments []*Segment
	CapTable CapTable
}

// NewMessage creates an empty, single-segment message with a root
// struct pointer slot already allocated.
func NewMessage() (*Message, *Segment, error) {
	m := &Message{}
	seg := &Segment{msg: m, id: 0}
	m.segments = []*Segment{seg}
	if _, err := seg.alloc(wordSize); err != nil {
		return nil, nil, err
	}
	return m, seg, nil
}

// NewDecodedMessage wraps already-framed segment byte slices (as
// produced by the framer) into a read-only Message. Ownership of the
// segs slices transfers to the Message.
func NewDecodedMessage(segs [][]byte) (*Message, error) {
	m := &Message{segments: make([]*Segment, len(segs))}
	for i, b := range segs {
		m.segments[i] = &Segment{msg: m, id: SegmentID(i), data: b}
	}
	return m, nil
}

// NumSegments returns the number of segments in the message.
func (m *Message) NumSegments() int { return len(m.segments) }

// Segment returns the segment with the given ID, or nil if out of range.
func (m *Message) Segment(id SegmentID) *Segment {
	if int(id) >= len(m.segments) {
		return nil
	}
	return m.segments[id]
}

// Root returns the pointer stored at word 0 of segment 0.
func (m *Message) Root() (Ptr, error) {
	s := m.Segment(0)
	if s == nil || !s.regionInBounds(0, wordSize) {
		return Ptr{}, ErrOutOfBounds
	}
	return s.readPtr(0)
}

// SetRoot stores p as the message's root pointer.
func (m *Message) SetRoot(p Ptr) error {
	s := m.Segment(0)
	if s == nil || !s.regionInBounds(0, wordSize) {
		return ErrOutOfBounds
	}
	return s.writePtr(0, p)
}

// AddCap appends a client to the message's capability table and
// returns its index.
func (m *Message) AddCap(c Client) CapabilityID {
	return m.CapTable.Add(c)
}

// SingleSegmentBytes returns the segment data of a single-segment
// message, for embedding into frames by the caller.
func (m *Message) SingleSegmentBytes() []byte {
	if len(m.segments) == 0 {
		return nil
	}
	return m.segments[0].data
}
