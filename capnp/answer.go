package capnp

import "context"

// Answer is the result of a Call: either a Struct, an error, or (for
// promise pipelining) a value not yet resolved that can still accept
// further pipelined calls.
type Answer interface {
	// Struct blocks (if necessary) and returns the call's result, or
	// an error.
	Struct() (Struct, error)
	// PipelineCall issues a new call against the value obtained by
	// applying transform to this answer's eventual result.
	PipelineCall(ctx context.Context, transform []PipelineOp, call *Call) Answer
	// PipelineClose releases a pipelined reference obtained through
	// transform.
	PipelineClose(transform []PipelineOp) error
}

// ImmediateAnswer returns an Answer that is already resolved to s.
func ImmediateAnswer(s Struct) Answer { return immediateAnswer{s: s} }

type immediateAnswer struct{ s Struct }

func (a immediateAnswer) Struct() (Struct, error) { return a.s, nil }

func (a immediateAnswer) PipelineCall(ctx context.Context, transform []PipelineOp, call *Call) Answer {
	p, err := TransformPtr(a.s.ToPtr(), transform)
	if err != nil {
		return ErrorAnswer(err)
	}
	if !p.InterfaceValid() {
		return ErrorAnswer(ErrNullClient)
	}
	cl := p.Client(a.s.Segment().Message())
	if cl == nil {
		return ErrorAnswer(ErrNullClient)
	}
	return cl.Call(ctx, call)
}

func (a immediateAnswer) PipelineClose(transform []PipelineOp) error { return nil }

// ErrorAnswer returns an Answer that resolves to err.
func ErrorAnswer(err error) Answer { return errorAnswer{err} }

type errorAnswer struct{ err error }

func (a errorAnswer) Struct() (Struct, error) { return Struct{}, a.err }
func (a errorAnswer) PipelineCall(ctx context.Context, transform []PipelineOp, call *Call) Answer {
	return a
}
func (a errorAnswer) PipelineClose(transform []PipelineOp) error { return nil }

// PipelineCaller is implemented by types (typically questions) that
// can serve pipelined calls before their answer has resolved.
type PipelineCaller interface {
	PipelineCall(ctx context.Context, transform []PipelineOp, call *Call) Answer
	PipelineClose(transform []PipelineOp) error
}

// Pipeline lets callers build up a transform and obtain a Client that
// will apply it against pc's eventual result.
type Pipeline struct {
	pc        PipelineCaller
	transform []PipelineOp
}

// NewPipeline returns a Pipeline rooted at pc with an empty transform.
func NewPipeline(pc PipelineCaller) *Pipeline { return &Pipeline{pc: pc} }

// Transform returns a new Pipeline whose transform is p's existing
// transform followed by ops.
func (p *Pipeline) Transform(ops ...PipelineOp) *Pipeline {
	nt := make([]PipelineOp, 0, len(p.transform)+len(ops))
	nt = append(nt, p.transform...)
	nt = append(nt, ops...)
	return &Pipeline{pc: p.pc, transform: nt}
}

// Client returns a Client that forwards calls through p's transform.
func (p *Pipeline) Client() Client { return pipelineClient{p} }

// PipelineClientCaller is implemented by Client values returned from
// Pipeline.Client, exposing the underlying PipelineCaller so a
// connection's outbound cap walker can recognize a capability that is
// itself a not-yet-resolved local promise (rather than an already
// concrete Client) and track it separately.
type PipelineClientCaller interface {
	PipelineCaller() PipelineCaller
}

type pipelineClient struct{ p *Pipeline }

func (c pipelineClient) Call(ctx context.Context, call *Call) Answer {
	return c.p.pc.PipelineCall(ctx, c.p.transform, call)
}

func (c pipelineClient) Close() error { return c.p.pc.PipelineClose(c.p.transform) }

func (c pipelineClient) PipelineCaller() PipelineCaller { return c.p.pc }
