package sandbox

import (
	"errors"
	"strings"
)

// ErrNoEntryPoint is raised when the script defines none of the recognized
// entry-point functions.
var ErrNoEntryPoint = errors.New("no valid strategy function found (expected tradingStrategy, evaluate or strategy)")

// ErrTimeout carries the exact message downstream log consumers match on.
var ErrTimeout = errors.New("Strategy execution timeout")

// CompileError means the source could not be down-compiled to plain
// JavaScript. It keeps at most the first three diagnostics.
type CompileError struct {
	Diagnostics []string
}

func (e *CompileError) Error() string {
	return "strategy compilation failed: " + strings.Join(e.Diagnostics, "; ")
}

// RuntimeError wraps an error thrown by the strategy body itself.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string {
	return e.Message
}
