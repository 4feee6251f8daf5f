package board

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string and returns a Position with empty history.
func ParseFEN(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	// notnil/chess wants all six fields
	for len(parts) < 6 {
		if len(parts) == 4 {
			parts = append(parts, "0")
		} else {
			parts = append(parts, "1")
		}
	}

	fullMove, err := strconv.Atoi(parts[5])
	if err != nil || fullMove < 1 {
		return nil, fmt.Errorf("invalid full move number: %s", parts[5])
	}

	fen = strings.Join(parts, " ")
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN: %w", err)
	}

	return newPosition(chess.NewGame(opt).Position(), fen, fullMove), nil
}

// ParseUCIPosition builds a position from a FEN (or StartFEN when empty) and
// a list of UCI moves played from it.
func ParseUCIPosition(fen string, moves []string) (*Position, error) {
	if fen == "" {
		fen = StartFEN
	}
	pos, err := ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	for _, s := range moves {
		if err := pos.PushUCI(s); err != nil {
			return nil, fmt.Errorf("apply %s: %w", s, err)
		}
	}
	return pos, nil
}
