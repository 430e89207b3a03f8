package domain

import (
	"errors"
	"fmt"
)

// PanicError is a recovered panic converted into an error.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return fmt.Sprintf("panic: %v", err)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// StackTrace returns the stack captured at recovery time.
func (e *PanicError) StackTrace() string {
	return e.Stack
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrCacheMiss signals that a cached snapshot was not found.
var ErrCacheMiss = errors.New("cache miss")
