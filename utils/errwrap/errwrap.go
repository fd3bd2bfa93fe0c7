// Package errwrap prefixes errors with the name of the function that
// returned them, keeping the chain intact for errors.Is and errors.As.
package errwrap

import (
	"fmt"
	"runtime"
	"strings"
)

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", callerName(2), err)
}

// WrapWith adds context after the caller name, usually the file, address
// or value the error is about.
func WrapWith(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return fmt.Errorf("%s: %w", callerName(2), err)
	}
	return fmt.Errorf("%s: %s: %w", callerName(2), context, err)
}

// Wrapf is WrapWith with a formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s: %w", callerName(2), fmt.Sprintf(format, args...), err)
}

// callerName returns pkg.Func for the frame skip levels up.
func callerName(skip int) string {
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+1, pcs) == 0 {
		return "unknown"
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	name := frame.Function
	if name == "" {
		return "unknown"
	}
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
