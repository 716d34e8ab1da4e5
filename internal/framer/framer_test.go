package framer

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	segs := [][]byte{
		bytes.Repeat([]byte{0xAA}, 8),
		bytes.Repeat([]byte{0xBB}, 16),
		bytes.Repeat([]byte{0xCC}, 8),
	}
	wire := Encode(segs)

	var f Framer
	f.Push(wire)
	frame, err := f.PopFrame()
	if err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	if frame == nil {
		t.Fatal("PopFrame returned nil frame for a complete buffer")
	}
	if len(frame.Segments) != len(segs) {
		t.Fatalf("got %d segments, want %d", len(frame.Segments), len(segs))
	}
	for i, seg := range segs {
		if !bytes.Equal(frame.Segments[i], seg) {
			t.Errorf("segment %d = %x, want %x", i, frame.Segments[i], seg)
		}
	}
	if f.BufferedBytes() != 0 {
		t.Errorf("BufferedBytes() = %d after consuming the only frame, want 0", f.BufferedBytes())
	}
}

func TestPopFrameIncomplete(t *testing.T) {
	wire := Encode([][]byte{bytes.Repeat([]byte{1}, 8)})

	var f Framer
	f.Push(wire[:len(wire)-1])
	frame, err := f.PopFrame()
	if err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	if frame != nil {
		t.Fatal("PopFrame returned a frame from a truncated buffer")
	}
}

func TestPopFrameAcrossPushes(t *testing.T) {
	wire := Encode([][]byte{bytes.Repeat([]byte{2}, 24)})

	var f Framer
	mid := len(wire) / 2
	f.Push(wire[:mid])
	if frame, err := f.PopFrame(); err != nil || frame != nil {
		t.Fatalf("PopFrame on partial buffer = (%v, %v), want (nil, nil)", frame, err)
	}
	f.Push(wire[mid:])
	frame, err := f.PopFrame()
	if err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	if frame == nil {
		t.Fatal("PopFrame returned nil after the full frame arrived")
	}
}

func TestPopFrameMultipleQueued(t *testing.T) {
	var f Framer
	f.Push(Encode([][]byte{bytes.Repeat([]byte{3}, 8)}))
	f.Push(Encode([][]byte{bytes.Repeat([]byte{4}, 8), bytes.Repeat([]byte{5}, 8)}))

	first, err := f.PopFrame()
	if err != nil || first == nil {
		t.Fatalf("first PopFrame = (%v, %v)", first, err)
	}
	if len(first.Segments) != 1 || first.Segments[0][0] != 3 {
		t.Fatalf("first frame = %+v, want a single 0x03 segment", first)
	}

	second, err := f.PopFrame()
	if err != nil || second == nil {
		t.Fatalf("second PopFrame = (%v, %v)", second, err)
	}
	if len(second.Segments) != 2 {
		t.Fatalf("second frame has %d segments, want 2", len(second.Segments))
	}
}

func TestPopFrameTooLarge(t *testing.T) {
	var f Framer
	header := make([]byte, 8)
	header[0] = 0 // segCountMinus1 = 0, one segment
	// Claim a segment word count that overflows maxTotalWords.
	header[4] = 0xFF
	header[5] = 0xFF
	header[6] = 0xFF
	header[7] = 0x7F
	f.Push(header)
	_, err := f.PopFrame()
	if err != ErrFrameTooLarge {
		t.Fatalf("PopFrame error = %v, want ErrFrameTooLarge", err)
	}
}
