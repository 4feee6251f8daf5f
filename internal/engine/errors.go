package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineClosed is returned once the engine process has exited or been closed.
	ErrEngineClosed = errors.New("engine closed")
	// ErrNoBestMove is returned when the engine answers "bestmove (none)".
	ErrNoBestMove = errors.New("engine returned no move")
)

// OpError records the engine and protocol step that failed.
type OpError struct {
	Engine string
	Op     string
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("engine %s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
