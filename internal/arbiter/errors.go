package arbiter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hailam/hybridbot/internal/board"
)

var (
	// ErrCandidateGeneration matches any *CandidateGenerationError.
	ErrCandidateGeneration = errors.New("candidate generation failed")
	// ErrArbitrationProtocol matches any *ArbitrationProtocolError.
	ErrArbitrationProtocol = errors.New("arbitration protocol violation")
	// ErrNoLegalMoves is returned when a fallback is requested in a finished game.
	ErrNoLegalMoves = errors.New("no legal moves")
)

// CandidateGenerationError means the fast stage produced nothing usable: no
// candidates, no answer within its slice, or an engine failure. Callers are
// expected to fall back to some legal move.
type CandidateGenerationError struct {
	Reason string
	Err    error
}

func (e *CandidateGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrCandidateGeneration, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrCandidateGeneration, e.Reason)
}

func (e *CandidateGenerationError) Unwrap() error { return e.Err }

func (e *CandidateGenerationError) Is(target error) bool {
	return target == ErrCandidateGeneration
}

// ArbitrationProtocolError means the precise stage answered with a move that
// was not one of the candidates it was given.
type ArbitrationProtocolError struct {
	Move       board.Move
	Candidates []board.Move
}

func (e *ArbitrationProtocolError) Error() string {
	return fmt.Sprintf("%v: chose %s, candidates were [%s]",
		ErrArbitrationProtocol, e.Move, strings.Join(board.MoveStrings(e.Candidates), " "))
}

func (e *ArbitrationProtocolError) Is(target error) bool {
	return target == ErrArbitrationProtocol
}
