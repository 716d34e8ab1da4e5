package rpc

import "testing"

func TestIdgenAllocatesSequentially(t *testing.T) {
	var g idgen
	for i := uint32(0); i < 3; i++ {
		if got := g.next32(); got != i {
			t.Fatalf("next32() = %d, want %d", got, i)
		}
	}
}

func TestIdgenReusesReleasedIDs(t *testing.T) {
	var g idgen
	a := g.next32()
	b := g.next32()
	g.release(a)
	if got := g.next32(); got != a {
		t.Fatalf("next32() after release = %d, want reused id %d", got, a)
	}
	if got := g.next32(); got != b+1 {
		t.Fatalf("next32() after exhausting free list = %d, want %d", got, b+1)
	}
}

func TestChanMutexLockUnlock(t *testing.T) {
	mu := newChanMutex()
	mu.Lock()
	mu.Unlock()
	mu.Lock()
	mu.Unlock()
}

func TestChanMutexDoubleUnlockPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Unlock of an already-unlocked chanMutex did not panic")
		}
	}()
	mu := newChanMutex()
	mu.Unlock()
}
