package capnp

import "testing"

func newTestSegment(t *testing.T) *Segment {
	t.Helper()
	_, seg, err := NewMessage()
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return seg
}

func TestStructIntegerRoundTrip(t *testing.T) {
	seg := newTestSegment(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 16})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	s.SetUint8(0, 0x12)
	s.SetUint16(2, 0x3456)
	s.SetUint32(4, 0x789abcde)
	s.SetUint64(8, 0x0102030405060708)

	if got := s.Uint8(0); got != 0x12 {
		t.Errorf("Uint8(0) = %#x, want 0x12", got)
	}
	if got := s.Uint16(2); got != 0x3456 {
		t.Errorf("Uint16(2) = %#x, want 0x3456", got)
	}
	if got := s.Uint32(4); got != 0x789abcde {
		t.Errorf("Uint32(4) = %#x, want 0x789abcde", got)
	}
	if got := s.Uint64(8); got != 0x0102030405060708 {
		t.Errorf("Uint64(8) = %#x, want 0x0102030405060708", got)
	}
}

func TestStructBitRoundTrip(t *testing.T) {
	seg := newTestSegment(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	s.SetBit(3, true)
	s.SetBit(9, true)
	if !s.Bit(3) {
		t.Error("Bit(3) = false, want true")
	}
	if !s.Bit(9) {
		t.Error("Bit(9) = false, want true")
	}
	if s.Bit(4) {
		t.Error("Bit(4) = true, want false (untouched)")
	}

	s.SetBit(3, false)
	if s.Bit(3) {
		t.Error("Bit(3) = true after clearing, want false")
	}
}

func TestStructReadOutOfRangeIsZero(t *testing.T) {
	seg := newTestSegment(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 0})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	if got := s.Uint64(0); got != 0 {
		t.Errorf("Uint64(0) on a zero-size struct = %d, want 0", got)
	}
	if s.Bit(0) {
		t.Error("Bit(0) on a zero-size struct = true, want false")
	}
}

func TestZeroStructIsInvalid(t *testing.T) {
	var z Struct
	if z.IsValid() {
		t.Error("zero Struct reports IsValid() == true")
	}
	if z.Uint32(0) != 0 {
		t.Error("zero Struct.Uint32 should read as 0")
	}
}

func TestCapabilityPointerRoundTrip(t *testing.T) {
	// NewCapabilityPtr builds a Ptr meant to be written into a struct's
	// pointer slot (it carries no Segment of its own, so IsValid/
	// InterfaceValid are false until it's read back off a struct);
	// CapabilityIndex decodes the raw word directly either way.
	seg := newTestSegment(t)
	s, err := NewStruct(seg, ObjectSize{DataSize: 0, PointerCount: 1})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	p, err := NewCapabilityPtr(7)
	if err != nil {
		t.Fatalf("NewCapabilityPtr: %v", err)
	}
	if got := p.CapabilityIndex(); got != 7 {
		t.Errorf("CapabilityIndex() = %d, want 7", got)
	}
	if err := s.SetPtr(0, p); err != nil {
		t.Fatalf("SetPtr: %v", err)
	}
	readBack, err := s.Ptr(0)
	if err != nil {
		t.Fatalf("Ptr(0): %v", err)
	}
	if !readBack.InterfaceValid() {
		t.Fatal("InterfaceValid() = false after reading the pointer back off its struct")
	}
	if got := readBack.CapabilityIndex(); got != 7 {
		t.Errorf("round-tripped CapabilityIndex() = %d, want 7", got)
	}
	if readBack.StructValid() || readBack.ListValid() {
		t.Error("a capability pointer reports as struct- or list-valid")
	}
}

func TestCapabilityPointerOverflow(t *testing.T) {
	if _, err := NewCapabilityPtr(MaxCapabilityID + 1); err == nil {
		t.Fatal("NewCapabilityPtr(MaxCapabilityID+1) succeeded, want an error")
	}
}

func TestCompositeListLength(t *testing.T) {
	seg := newTestSegment(t)
	l, err := NewCompositeList(seg, ObjectSize{DataSize: 8}, 3)
	if err != nil {
		t.Fatalf("NewCompositeList: %v", err)
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	el := l.Struct(1)
	el.SetUint64(0, 99)
	if got := l.Struct(1).Uint64(0); got != 99 {
		t.Errorf("re-fetched element read back %d, want 99", got)
	}
}
