package capnp

import "encoding/binary"

// rawPointer is the 64-bit little-endian encoding of a Cap'n Proto
// pointer word, per spec.md §3: the low 2 bits select struct (0),
// list (1), far (2, not decoded by this library), or capability (3).
type rawPointer uint64

const (
	ptrTagStruct     = 0
	ptrTagList       = 1
	ptrTagFar        = 2
	ptrTagCapability = 3
)

func (r rawPointer) tag() int { return int(r & 3) }

func (r rawPointer) isZero() bool { return r == 0 }

func (r rawPointer) structOffset() int32 { return int32(r) >> 2 }

func (r rawPointer) structSize() ObjectSize {
	return ObjectSize{
		DataSize:     Size(uint16(r>>32)) * wordSize,
		PointerCount: uint16(r >> 48),
	}
}

func (r rawPointer) listOffset() int32 { return int32(r) >> 2 }

func (r rawPointer) listElementSize() uint8 { return uint8((r >> 32) & 7) }

func (r rawPointer) listLength() int32 { return int32(r>>35) & (1<<29 - 1) }

// capabilityID returns the capability table index for a capability
// pointer. Callers must check tag() == ptrTagCapability first.
func (r rawPointer) capabilityID() CapabilityID {
	return CapabilityID(uint32(r) >> 2)
}

func rawStructPointer(off int32, sz ObjectSize) rawPointer {
	return rawPointer(uint64(uint32(off<<2)) | uint64(uint16(sz.DataSize/wordSize))<<32 | uint64(sz.PointerCount)<<48)
}

func rawListPointer(off int32, elemSize uint8, length int32) rawPointer {
	return rawPointer(uint64(uint32(off<<2)|ptrTagList) | uint64(elemSize&7)<<32 | uint64(uint32(length)&(1<<29-1))<<35)
}

func rawCapabilityPointer(id CapabilityID) rawPointer {
	return rawPointer(uint64(id)<<2 | ptrTagCapability)
}

// MaxCapabilityID is the largest cap_id this library will encode, per
// spec.md §3: "cap_id < 2^30".
const MaxCapabilityID CapabilityID = 1<<30 - 1

func (s *Segment) readRawPointer(off address) rawPointer {
	return rawPointer(binary.LittleEndian.Uint64(s.data[off : off+8]))
}

func (s *Segment) writeRawPointer(off address, r rawPointer) {
	binary.LittleEndian.PutUint64(s.data[off:off+8], uint64(r))
}

// Ptr is a decoded Cap'n Proto pointer: a struct, a list, a
// capability, or the zero Ptr (null).
type Ptr struct {
	seg *Segment
	off address // address of the target object (struct data section / list first element)
	raw rawPointer
}

// IsValid reports whether p is non-null.
func (p Ptr) IsValid() bool { return p.seg != nil }

// Segment returns the segment p was decoded from, regardless of
// whether p references a struct, list, or capability. It is nil for
// a Ptr built directly (e.g. via NewCapabilityPtr) rather than read
// off the wire.
func (p Ptr) Segment() *Segment { return p.seg }

// readPtr decodes the pointer word stored at off in s.
func (s *Segment) readPtr(off address) (Ptr, error) {
	raw := s.readRawPointer(off)
	if raw.isZero() {
		return Ptr{}, nil
	}
	switch raw.tag() {
	case ptrTagFar:
		return Ptr{}, ErrFarPointer
	case ptrTagCapability:
		return Ptr{seg: s, raw: raw}, nil
	default:
		target, err := off.addSize(wordSize)
		if err != nil {
			return Ptr{}, ErrOutOfBounds
		}
		target = address(int64(target) + int64(raw.structOffset())*int64(wordSize))
		return Ptr{seg: s, off: target, raw: raw}, nil
	}
}

// writePtr encodes p into the pointer word at off in s, relative to
// that word (near pointer form only; this library never emits far
// pointers).
func (s *Segment) writePtr(off address, p Ptr) error {
	// Capability pointers are self-contained (a table index, no
	// target address), so they're valid to write even when built
	// directly via NewCapabilityPtr and never attached to a Segment;
	// check for one before the general IsValid/null check below.
	if p.raw.tag() == ptrTagCapability {
		s.writeRawPointer(off, p.raw)
		return nil
	}
	if !p.IsValid() {
		s.writeRawPointer(off, 0)
		return nil
	}
	if p.seg != s {
		return ErrFarPointer
	}
	from, err := off.addSize(wordSize)
	if err != nil {
		return ErrOutOfBounds
	}
	rel := (int64(p.off) - int64(from)) / int64(wordSize)
	var raw rawPointer
	switch p.raw.tag() {
	case ptrTagStruct:
		raw = rawStructPointer(int32(rel), p.raw.structSize())
	case ptrTagList:
		raw = rawListPointer(int32(rel), p.raw.listElementSize(), p.raw.listLength())
	default:
		return ErrInvalidPtr
	}
	s.writeRawPointer(off, raw)
	return nil
}

// StructValid reports whether p references a struct.
func (p Ptr) StructValid() bool { return p.IsValid() && p.raw.tag() == ptrTagStruct }

// ListValid reports whether p references a list.
func (p Ptr) ListValid() bool { return p.IsValid() && p.raw.tag() == ptrTagList }

// InterfaceValid reports whether p references a capability.
func (p Ptr) InterfaceValid() bool { return p.IsValid() && p.raw.tag() == ptrTagCapability }

// Struct returns p as a Struct. Panics-free: returns the zero Struct
// if p does not reference one.
func (p Ptr) Struct() Struct {
	if !p.StructValid() {
		return Struct{}
	}
	return Struct{seg: p.seg, off: p.off, size: p.raw.structSize()}
}

// List returns p as a List.
func (p Ptr) List() List {
	if !p.ListValid() {
		return List{}
	}
	elemSize := p.raw.listElementSize()
	if elemSize == ElemSizeComposite {
		tag := p.seg.readRawPointer(p.off)
		sz := tag.structSize()
		count := tag.structOffset()
		return List{
			seg:        p.seg,
			off:        p.off,
			data:       p.off + address(wordSize),
			elemSize:   ElemSizeComposite,
			length:     int(count),
			structSize: sz,
		}
	}
	return List{seg: p.seg, off: p.off, data: p.off, elemSize: elemSize, length: int(p.raw.listLength())}
}

// CapabilityIndex returns the encoded capability-table index of p.
// Callers must check InterfaceValid first.
func (p Ptr) CapabilityIndex() CapabilityID { return p.raw.capabilityID() }

// NewCapabilityPtr returns a Ptr encoding a capability pointer to the
// given capability-table index. It returns ErrInvalidPtr if id is too
// large to encode, per spec.md §4.5's CapabilityIdTooLarge failure.
func NewCapabilityPtr(id CapabilityID) (Ptr, error) {
	if id > MaxCapabilityID {
		return Ptr{}, ErrInvalidPtr
	}
	return Ptr{raw: rawCapabilityPointer(id)}, nil
}

// structPtr constructs a struct Ptr referencing s.
func structPtr(s Struct) Ptr {
	if s.seg == nil {
		return Ptr{}
	}
	return Ptr{seg: s.seg, off: s.off, raw: rawStructPointer(0, s.size)}
}

// listPtr constructs a list Ptr referencing l. For composite lists,
// the encoded "length" field stores the total body size in words
// (per spec.md's wire layout), not the element count, and the
// pointer's offset targets the tag word (l.off), not the first
// element (l.data).
func listPtr(l List) Ptr {
	if l.seg == nil {
		return Ptr{}
	}
	n := int32(l.length)
	if l.elemSize == ElemSizeComposite {
		n = int32(l.length) * int32(l.structSize.totalSize()/wordSize)
	}
	return Ptr{seg: l.seg, off: l.off, raw: rawListPointer(0, l.elemSize, n)}
}
