package capnp

import (
	"context"
	"fmt"
)

// Method identifies an interface method by its schema-assigned
// interface and method IDs.
type Method struct {
	InterfaceID uint64
	MethodID    uint16
}

// MethodError records that an error occurred while invoking Method.
type MethodError struct {
	Method *Method
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("capnp: call %v: %v", e.Method, e.Err)
}

// Call describes an invocation of a method on a Client.
type Call struct {
	Ctx    context.Context
	Method Method
	Params Struct

	// Streaming marks this call as part of a streaming sequence (a
	// method whose schema declares it with -> stream): callers issuing
	// many of these back-to-back against the same target want flow
	// control without waiting on each individual Return, and want a
	// mid-stream failure to fail the calls still queued behind it.
	Streaming bool
}

// PipelineOp is one step of a promised-answer transform: descend into
// the given pointer field of the current struct. A PipelineOp with
// Noop set leaves the current value unchanged; the zero PipelineOp
// descends into pointer field 0. The two forms match the
// `noop`/`getPointerField` tags of spec.md §4.2.
type PipelineOp struct {
	Noop  bool
	Field uint16
}

// TransformPtr walks ops over obj, descending through pointer fields.
// It returns the zero Ptr if any intermediate pointer is null, per
// spec.md §4.6.
func TransformPtr(obj Ptr, ops []PipelineOp) (Ptr, error) {
	cur := obj
	for _, op := range ops {
		if op.Noop {
			continue
		}
		if !cur.IsValid() {
			return Ptr{}, nil
		}
		if !cur.StructValid() {
			return Ptr{}, ErrNotAStruct
		}
		next, err := cur.Struct().Ptr(op.Field)
		if err != nil {
			return Ptr{}, err
		}
		cur = next
	}
	return cur, nil
}
