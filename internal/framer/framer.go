// Package framer reassembles length-prefixed segmented Cap'n Proto
// frames out of a byte stream. It is the L0 layer of the engine
// (spec.md §3/§4.1): transport bytes go in via Push, complete Frames
// come out of PopFrame, with no assumption about how the bytes were
// chunked by the underlying transport.
package framer

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidFrame is returned when a frame's header is malformed
// (e.g. an arithmetic overflow while summing segment sizes).
var ErrInvalidFrame = errors.New("framer: invalid frame header")

// ErrFrameTooLarge is returned when a frame's total segment size
// exceeds maxTotalWords.
var ErrFrameTooLarge = errors.New("framer: frame exceeds maximum size")

// maxTotalWords bounds total body words, per spec.md §3/§4.1 ("total
// payload words ≤ 8 Mi").
const maxTotalWords = 8 * 1024 * 1024

const wordSize = 8

// A Frame is a decoded sequence of segment byte slices, in order.
// Ownership of the returned slices belongs to the caller; Framer
// never reuses them.
type Frame struct {
	Segments [][]byte
}

// Framer accumulates bytes pushed from a transport and yields
// complete frames as they become available. It is not safe for
// concurrent use; callers serialize access the same way the rest of
// the peer's state is serialized (spec.md §5, "Scheduling").
type Framer struct {
	buf []byte
}

// Push appends b to the internal buffer.
func (f *Framer) Push(b []byte) {
	f.buf = append(f.buf, b...)
}

// BufferedBytes returns the number of bytes currently buffered and
// not yet consumed by a popped frame.
func (f *Framer) BufferedBytes() int { return len(f.buf) }

// PopFrame attempts to decode one complete frame from the front of
// the buffer. It returns (nil, nil) when the buffer holds an
// incomplete frame. On success, the consumed bytes (header and all
// segment bodies) are removed from the buffer and ownership of the
// segment slices transfers to the caller.
func (f *Framer) PopFrame() (*Frame, error) {
	const headerWord = 4
	if len(f.buf) < headerWord {
		return nil, nil
	}
	segCountMinus1 := binary.LittleEndian.Uint32(f.buf[0:4])
	segCount := uint64(segCountMinus1) + 1
	// header word for count, one word per segment, plus a padding word
	// when segCount is even.
	headerWords := uint64(1) + segCount
	if segCount%2 == 0 {
		headerWords++
	}
	headerBytes := headerWords * headerWord
	if headerBytes > uint64(^uint32(0)) {
		return nil, ErrInvalidFrame
	}
	if uint64(len(f.buf)) < headerBytes {
		return nil, nil
	}
	sizes := make([]uint64, segCount)
	var totalWords uint64
	for i := uint64(0); i < segCount; i++ {
		off := headerWord + i*headerWord
		w := uint64(binary.LittleEndian.Uint32(f.buf[off : off+4]))
		sizes[i] = w
		newTotal := totalWords + w
		if newTotal < totalWords {
			return nil, ErrInvalidFrame
		}
		totalWords = newTotal
	}
	if totalWords > maxTotalWords {
		return nil, ErrFrameTooLarge
	}
	totalBodyBytes := totalWords * wordSize
	frameLen := headerBytes + totalBodyBytes
	if frameLen < headerBytes {
		return nil, ErrInvalidFrame
	}
	if uint64(len(f.buf)) < frameLen {
		return nil, nil
	}
	// Copy out so the returned frame doesn't alias a buffer we're
	// about to shrink in place.
	owned := make([]byte, frameLen)
	copy(owned, f.buf[:frameLen])
	segs := make([][]byte, segCount)
	segStart := headerBytes
	for i, w := range sizes {
		n := w * wordSize
		segs[i] = owned[segStart : segStart+n]
		segStart += n
	}
	f.buf = append(f.buf[:0:0], f.buf[frameLen:]...)
	return &Frame{Segments: segs}, nil
}

// Encode serializes segs into a wire frame, per spec.md §6. Header
// fields are 4-byte words; the padding word keeps the segment bodies
// 8-byte aligned.
func Encode(segs [][]byte) []byte {
	segCount := len(segs)
	headerWords := 1 + segCount
	if segCount%2 == 0 {
		headerWords++
	}
	header := make([]byte, headerWords*4)
	binary.LittleEndian.PutUint32(header[0:4], uint32(segCount-1))
	for i, s := range segs {
		binary.LittleEndian.PutUint32(header[4+i*4:8+i*4], uint32(len(s)/wordSize))
	}
	out := make([]byte, 0, len(header)+totalLen(segs))
	out = append(out, header...)
	for _, s := range segs {
		out = append(out, s...)
	}
	return out
}

func totalLen(segs [][]byte) int {
	n := 0
	for _, s := range segs {
		n += len(s)
	}
	return n
}
