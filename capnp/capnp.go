// Package capnp provides the minimal Cap'n Proto message primitives
// consumed by the rpc package: segment-backed structs, lists, and
// capability pointers. It intentionally does not implement a schema
// compiler or the full encoding surface of the reference
// implementation — only what the RPC engine needs to build and walk
// message payloads.
package capnp

import "errors"

// Size is a size of a memory region in bytes.
type Size uint32

// wordSize is the number of bytes in a word.
const wordSize Size = 8

// address is a word-aligned byte offset within a segment.
type address uint32

func (a address) addSize(sz Size) (address, error) {
	v := uint64(a) + uint64(sz)
	if v > uint64(^uint32(0)) {
		return 0, errors.New("capnp: address overflow")
	}
	return address(v), nil
}

// ObjectSize records the size of a struct or list element: a data
// section length in bytes and a pointer section length in pointers.
type ObjectSize struct {
	DataSize     Size
	PointerCount uint16
}

func (sz ObjectSize) totalSize() Size {
	return sz.DataSize + Size(sz.PointerCount)*wordSize
}

func (sz Size) padToWord() Size {
	return (sz + Size(wordSize) - 1) &^ (Size(wordSize) - 1)
}

// Errors returned by the message library.
var (
	ErrNullClient    = errors.New("capnp: call on null client")
	ErrOutOfBounds   = errors.New("capnp: address out of bounds")
	ErrTooMuchData   = errors.New("capnp: too much data in message")
	ErrInvalidPtr    = errors.New("capnp: invalid pointer")
	ErrNotAStruct    = errors.New("capnp: pointer does not reference a struct")
	ErrNotAList      = errors.New("capnp: pointer does not reference a list")
	ErrNotACap       = errors.New("capnp: pointer does not reference a capability")
	ErrFarPointer    = errors.New("capnp: far pointers are not supported by this message library")
	ErrTooManySegs   = errors.New("capnp: too many segments")
	ErrSegmentTooBig = errors.New("capnp: segment too large")
)
