package capnp

import "errors"

// List element size codes, per spec.md §3/§4.5.
const (
	ElemSizeVoid = iota
	ElemSizeBit
	ElemSizeByte1
	ElemSizeByte2
	ElemSizeByte4
	ElemSizeByte8
	ElemSizePointer
	ElemSizeComposite // inline composite: elements are structs
)

var elemByteSize = [8]Size{0, 0, 1, 2, 4, 8, 8, 0}

// List is a reference to a Cap'n Proto list.
type List struct {
	seg        *Segment
	off        address    // address of the list's content word (tag word for composite lists)
	data       address    // address where element data actually begins
	elemSize   uint8
	length     int
	structSize ObjectSize // valid when elemSize == ElemSizeComposite
}

// IsValid reports whether l references memory.
func (l List) IsValid() bool { return l.seg != nil }

// ToPtr returns l as a Ptr.
func (l List) ToPtr() Ptr { return listPtr(l) }

// Len returns the number of elements in the list.
func (l List) Len() int { return l.length }

// ElementSize returns the list's element-size code.
func (l List) ElementSize() uint8 { return l.elemSize }

// At returns the i'th element of a pointer list.
func (l List) At(i int) (Ptr, error) {
	if l.elemSize != ElemSizePointer {
		return Ptr{}, errors.New("capnp: At called on non-pointer list")
	}
	if i < 0 || i >= l.length {
		return Ptr{}, ErrOutOfBounds
	}
	return l.seg.readPtr(l.data + address(i)*address(wordSize))
}

// Set sets the i'th element of a pointer list.
func (l List) Set(i int, p Ptr) error {
	if l.elemSize != ElemSizePointer {
		return errors.New("capnp: Set called on non-pointer list")
	}
	if i < 0 || i >= l.length {
		return ErrOutOfBounds
	}
	return l.seg.writePtr(l.data+address(i)*address(wordSize), p)
}

// Struct returns the i'th element of a composite (inline-composite)
// list as a Struct.
func (l List) Struct(i int) Struct {
	if l.elemSize != ElemSizeComposite || i < 0 || i >= l.length {
		return Struct{}
	}
	off := l.data + address(i)*address(l.structSize.totalSize())
	return Struct{seg: l.seg, off: off, size: l.structSize}
}

// NewPointerList allocates a new list of n pointers.
func NewPointerList(seg *Segment, n int) (List, error) {
	off, err := seg.alloc(Size(n) * wordSize)
	if err != nil {
		return List{}, err
	}
	return List{seg: seg, off: off, data: off, elemSize: ElemSizePointer, length: n}, nil
}

// NewCompositeList allocates a new list of n structs of the given
// element size, preceded by the composite-list tag word.
func NewCompositeList(seg *Segment, sz ObjectSize, n int) (List, error) {
	elemTotal := sz.totalSize()
	tagOff, err := seg.alloc(wordSize + Size(n)*elemTotal)
	if err != nil {
		return List{}, err
	}
	tag := rawStructPointer(int32(n), sz)
	seg.writeRawPointer(tagOff, tag)
	dataOff, _ := tagOff.addSize(wordSize)
	return List{seg: seg, off: tagOff, data: dataOff, elemSize: ElemSizeComposite, length: n, structSize: sz}, nil
}

// NewDataList allocates a new list of n elements of a fixed-width
// data-only element size (void/bit/byte1/2/4/8). NewTextList and Copy
// use it for text fields and for copied data lists.
func NewDataList(seg *Segment, elemSize uint8, n int) (List, error) {
	width := elemByteSize[elemSize]
	var total Size
	if elemSize == ElemSizeBit {
		total = Size((n + 7) / 8)
	} else {
		total = width * Size(n)
	}
	off, err := seg.alloc(total)
	if err != nil {
		return List{}, err
	}
	return List{seg: seg, off: off, data: off, elemSize: elemSize, length: n}, nil
}

// NewTextList allocates a byte list holding text's UTF-8 bytes plus a
// trailing NUL, matching Cap'n Proto's text encoding.
func NewTextList(seg *Segment, text string) (List, error) {
	n := len(text) + 1
	l, err := NewDataList(seg, ElemSizeByte1, n)
	if err != nil {
		return List{}, err
	}
	copy(seg.data[l.data:], text)
	return l, nil
}

// ListText decodes a byte list as text, stripping a trailing NUL if
// present.
func ListText(l List) (string, error) {
	if !l.IsValid() {
		return "", nil
	}
	if l.elemSize != ElemSizeByte1 {
		return "", errors.New("capnp: not a text list")
	}
	n := l.length
	b := l.seg.data[l.data : l.data+address(n)]
	if n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b), nil
}

