package capnp

import "encoding/binary"

// Struct is a pointer to a struct's data and pointer sections.
type Struct struct {
	seg  *Segment
	off  address
	size ObjectSize
}

// IsValid reports whether s references memory (as opposed to being
// the zero Struct, which reads as all-default values).
func (s Struct) IsValid() bool { return s.seg != nil }

// ToPtr returns s as a Ptr.
func (s Struct) ToPtr() Ptr { return structPtr(s) }

// Segment returns the segment s is stored in.
func (s Struct) Segment() *Segment { return s.seg }

// NewStruct allocates a new struct of the given size in seg.
func NewStruct(seg *Segment, sz ObjectSize) (Struct, error) {
	off, err := seg.alloc(sz.totalSize())
	if err != nil {
		return Struct{}, err
	}
	return Struct{seg: seg, off: off, size: sz}, nil
}

// NewRootStruct allocates a new struct in seg and sets it as the
// message's root object.
func NewRootStruct(seg *Segment, sz ObjectSize) (Struct, error) {
	s, err := NewStruct(seg, sz)
	if err != nil {
		return Struct{}, err
	}
	if err := seg.msg.SetRoot(s.ToPtr()); err != nil {
		return Struct{}, err
	}
	return s, nil
}

func (s Struct) pointerAddress(i uint16) address {
	return s.off + address(s.size.DataSize) + address(i)*address(wordSize)
}

// Uint8/16/32/64 read little-endian integers from the data section at
// the given byte offset, returning the zero value if out of range
// (matching Cap'n Proto's "default is absent data reads as zero").
func (s Struct) Uint8(off Size) uint8 {
	if !s.IsValid() || off >= s.size.DataSize {
		return 0
	}
	return s.seg.data[s.off+address(off)]
}

func (s Struct) Uint16(off Size) uint16 {
	if !s.IsValid() || off+2 > s.size.DataSize {
		return 0
	}
	return binary.LittleEndian.Uint16(s.seg.data[s.off+address(off):])
}

func (s Struct) Uint32(off Size) uint32 {
	if !s.IsValid() || off+4 > s.size.DataSize {
		return 0
	}
	return binary.LittleEndian.Uint32(s.seg.data[s.off+address(off):])
}

func (s Struct) Uint64(off Size) uint64 {
	if !s.IsValid() || off+8 > s.size.DataSize {
		return 0
	}
	return binary.LittleEndian.Uint64(s.seg.data[s.off+address(off):])
}

func (s Struct) Bit(bitOff uint) bool {
	byteOff := Size(bitOff / 8)
	if !s.IsValid() || byteOff >= s.size.DataSize {
		return false
	}
	return s.seg.data[s.off+address(byteOff)]&(1<<(bitOff%8)) != 0
}

func (s Struct) SetUint8(off Size, v uint8) {
	s.seg.data[s.off+address(off)] = v
}

func (s Struct) SetUint16(off Size, v uint16) {
	binary.LittleEndian.PutUint16(s.seg.data[s.off+address(off):], v)
}

func (s Struct) SetUint32(off Size, v uint32) {
	binary.LittleEndian.PutUint32(s.seg.data[s.off+address(off):], v)
}

func (s Struct) SetUint64(off Size, v uint64) {
	binary.LittleEndian.PutUint64(s.seg.data[s.off+address(off):], v)
}

func (s Struct) SetBit(bitOff uint, v bool) {
	byteOff := address(bitOff / 8)
	mask := uint8(1 << (bitOff % 8))
	if v {
		s.seg.data[s.off+byteOff] |= mask
	} else {
		s.seg.data[s.off+byteOff] &^= mask
	}
}

// Ptr returns the i'th pointer in the struct's pointer section.
func (s Struct) Ptr(i uint16) (Ptr, error) {
	if !s.IsValid() || i >= s.size.PointerCount {
		return Ptr{}, nil
	}
	return s.seg.readPtr(s.pointerAddress(i))
}

// SetPtr sets the i'th pointer in the struct's pointer section.
func (s Struct) SetPtr(i uint16, p Ptr) error {
	if i >= s.size.PointerCount {
		return ErrOutOfBounds
	}
	return s.seg.writePtr(s.pointerAddress(i), p)
}

// NewStructField allocates a struct of size sz and stores it as the i'th
// pointer field of s, returning the new struct.
func (s Struct) NewStructField(i uint16, sz ObjectSize) (Struct, error) {
	child, err := NewStruct(s.seg, sz)
	if err != nil {
		return Struct{}, err
	}
	if err := s.SetPtr(i, child.ToPtr()); err != nil {
		return Struct{}, err
	}
	return child, nil
}

// SetTextField allocates a data-only list holding the UTF-8 bytes of
// text plus a trailing NUL and stores it as the i'th pointer.
func (s Struct) SetTextField(i uint16, text string) error {
	l, err := NewTextList(s.seg, text)
	if err != nil {
		return err
	}
	return s.SetPtr(i, l.ToPtr())
}

// TextField reads the i'th pointer as text (a byte list with a
// trailing NUL stripped).
func (s Struct) TextField(i uint16) (string, error) {
	p, err := s.Ptr(i)
	if err != nil || !p.IsValid() {
		return "", err
	}
	return ListText(p.List())
}
