package ember

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the server has been closed
	ErrClosed = errors.New("server is closed")

	// ErrAlreadyStarted indicates Start was called on a running server
	ErrAlreadyStarted = errors.New("server already started")
)

// ListenError represents a failure to bind the listen address
type ListenError struct {
	Addr string
	Err  error
}

// Error implements the error interface
func (e *ListenError) Error() string {
	return fmt.Sprintf("listen error on %s: %v", e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *ListenError) Unwrap() error {
	return e.Err
}
