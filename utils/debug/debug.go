// Package debug turns panics in the decoding path into errors.
package debug

import (
	"fmt"
	"runtime/debug"
)

var (
	ErrPanic = fmt.Errorf("panic")
)

type PanicErrorMessage struct {
	Msg        interface{}
	Inner      string
	Stacktrace []byte
}

func (e *PanicErrorMessage) Error() string {
	return e.Inner
}

func (e *PanicErrorMessage) Unwrap() []error {
	return []error{ErrPanic}
}

// Recovered builds the error for the value returned by recover while msg was
// being processed. It must be called from the deferred function so the stack
// still shows the panic.
func Recovered(msg interface{}, pErr interface{}) *PanicErrorMessage {
	var inner string
	switch pErrC := pErr.(type) {
	case string:
		inner = pErrC
	case error:
		inner = pErrC.Error()
	default:
		inner = fmt.Sprint(pErr)
	}
	return &PanicErrorMessage{Msg: msg, Inner: inner, Stacktrace: debug.Stack()}
}
