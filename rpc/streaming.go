package rpc

import "sync"

// streamState implements the per-target flow-control record of
// spec.md §4.10's streaming calls: a caller issuing a rapid sequence
// of calls against the same target (a "stream") needs to know when
// the callee has caught up, without waiting on each individual
// Return, and needs any mid-stream error on one call to fail the rest
// of the queued stream.
type streamState struct {
	mu       sync.Mutex
	inFlight int
	err      error
	onDrain  []func()
}

// streamFor returns the streamState for key (the importID of an
// imported target, or the parent questionID of a pipelined target),
// creating it if necessary. The caller holds c.mu.
func (c *Conn) streamFor(key interface{}) *streamState {
	if c.streams == nil {
		c.streams = make(map[interface{}]*streamState)
	}
	s, ok := c.streams[key]
	if !ok {
		s = &streamState{}
		c.streams[key] = s
	}
	return s
}

// noteCallSent records that another call has been dispatched against
// this stream's target.
func (s *streamState) noteCallSent() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
}

// noteReturned records that one of the stream's outstanding calls has
// returned, remembering the first error seen (subsequent calls on a
// failed stream should be rejected with it) and waking anyone
// blocked in onDrained once the stream empties.
func (s *streamState) noteReturned(err error) {
	s.mu.Lock()
	s.inFlight--
	if err != nil && s.err == nil {
		s.err = err
	}
	drained := s.inFlight == 0
	var drain []func()
	if drained {
		drain, s.onDrain = s.onDrain, nil
	}
	s.mu.Unlock()
	for _, fn := range drain {
		fn()
	}
}

// onDrained invokes fn once every call currently in flight on this
// stream has returned (immediately, if none are).
func (s *streamState) onDrained(fn func()) {
	s.mu.Lock()
	if s.inFlight == 0 {
		s.mu.Unlock()
		fn()
		return
	}
	s.onDrain = append(s.onDrain, fn)
	s.mu.Unlock()
}

// streamError reports the first error observed on this stream, if
// any; a streaming caller checks this before issuing the next call.
func (s *streamState) streamError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
