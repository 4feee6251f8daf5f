package board

import (
	"fmt"

	"github.com/notnil/chess"
)

// Move is a comparable chess move: origin, destination and promotion piece.
// Promo is chess.NoPieceType for non-promotions.
type Move struct {
	From  chess.Square
	To    chess.Square
	Promo chess.PieceType
}

// NoMove represents an invalid or null move.
var NoMove = Move{From: chess.NoSquare, To: chess.NoSquare}

// NewMove creates a normal move.
func NewMove(from, to chess.Square) Move {
	return Move{From: from, To: to}
}

// NewPromotion creates a promotion move.
func NewPromotion(from, to chess.Square, promo chess.PieceType) Move {
	return Move{From: from, To: to, Promo: promo}
}

// MoveFromChess converts a notnil/chess move.
func MoveFromChess(m *chess.Move) Move {
	if m == nil {
		return NoMove
	}
	return Move{From: m.S1(), To: m.S2(), Promo: m.Promo()}
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Promo != chess.NoPieceType
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	s := m.From.String() + m.To.String()

	if m.IsPromotion() {
		s += string(promoChar(m.Promo))
	}

	return s
}

// ParseMove parses a UCI format move string. It checks syntax only; use
// Position.IsLegal to check the move against a position.
func ParseMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	m := NewMove(from, to)
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			m.Promo = chess.Knight
		case 'b':
			m.Promo = chess.Bishop
		case 'r':
			m.Promo = chess.Rook
		case 'q':
			m.Promo = chess.Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
	}

	return m, nil
}

// ParseSquare parses algebraic notation such as "e4".
func ParseSquare(s string) (chess.Square, error) {
	if len(s) != 2 {
		return chess.NoSquare, fmt.Errorf("invalid square: %q", s)
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoSquare, fmt.Errorf("invalid square: %q", s)
	}
	return chess.Square(rank*8 + file), nil
}

func promoChar(pt chess.PieceType) byte {
	switch pt {
	case chess.Knight:
		return 'n'
	case chess.Bishop:
		return 'b'
	case chess.Rook:
		return 'r'
	default:
		return 'q'
	}
}

// ContainsMove reports whether m is in moves.
func ContainsMove(moves []Move, m Move) bool {
	for _, x := range moves {
		if x == m {
			return true
		}
	}
	return false
}

// MoveStrings formats moves in UCI notation.
func MoveStrings(moves []Move) []string {
	s := make([]string, len(moves))
	for i, m := range moves {
		s[i] = m.String()
	}
	return s
}
