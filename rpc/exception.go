package rpc

import (
	"fmt"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
)

// Exception wraps a decoded wire exception so it satisfies the error
// interface.
type Exception struct {
	exc rpccapnp.Exception
}

func (e Exception) Error() string {
	reason, _ := e.exc.Reason()
	return fmt.Sprintf("remote exception: %s", reason)
}

// Type returns the exception's classification.
func (e Exception) Type() rpccapnp.Exception_Type { return e.exc.Type() }

// toException populates e with a rendering of err, classifying
// ErrConnClosed as Exception_Type_disconnected, errUnimplemented as
// Exception_Type_unimplemented, and everything else as
// Exception_Type_failed.
func toException(e rpccapnp.Exception, err error) {
	t := rpccapnp.Exception_Type_failed
	if err == ErrConnClosed {
		t = rpccapnp.Exception_Type_disconnected
	}
	if err == errUnimplemented {
		t = rpccapnp.Exception_Type_unimplemented
	}
	e.SetType(t)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	e.SetReason(msg)
}

// setReturnException populates ret as an exception return carrying
// err, the counterpart to answer.reject.
func setReturnException(ret rpccapnp.Return, err error) {
	e, encErr := ret.NewException()
	if encErr != nil {
		return
	}
	toException(e, err)
}

type bootstrapError struct{ err error }

func (e bootstrapError) Error() string { return fmt.Sprintf("rpc: bootstrap: %v", e.err) }

type questionError struct {
	id     questionID
	method *capnp.Method
	err    error
}

func (e *questionError) Error() string {
	return fmt.Sprintf("rpc: question %d: %v", e.id, e.err)
}
