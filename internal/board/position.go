// Package board wraps notnil/chess positions with the move history the bot needs
// to look back one ply, count material and enumerate legal moves.
package board

import (
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

// ErrNoHistory is returned when an operation needs a previous move and the
// position has none.
var ErrNoHistory = errors.New("board: no move history")

// Position represents a chess position together with the moves that led to it.
// The starting position may be any FEN; moves pushed on top are always legal.
type Position struct {
	start     *chess.Position
	startFEN  string
	startMove int // full-move number of the starting position

	positions []*chess.Position // positions[0] is the starting position
	moves     []*chess.Move     // moves[i] leads from positions[i] to positions[i+1]
}

// NewPosition creates the standard starting position.
func NewPosition() *Position {
	pos, _ := ParseFEN(StartFEN)
	return pos
}

func newPosition(start *chess.Position, fen string, fullMove int) *Position {
	return &Position{
		start:     start,
		startFEN:  fen,
		startMove: fullMove,
		positions: []*chess.Position{start},
	}
}

// Copy creates an independent copy of the position and its history.
func (p *Position) Copy() *Position {
	newPos := *p
	newPos.positions = append([]*chess.Position(nil), p.positions...)
	newPos.moves = append([]*chess.Move(nil), p.moves...)
	return &newPos
}

// Current returns the underlying notnil/chess position.
func (p *Position) Current() *chess.Position {
	return p.positions[len(p.positions)-1]
}

// Start returns the position the history starts from.
func (p *Position) Start() *chess.Position {
	return p.start
}

// UCI returns the starting FEN and the moves played from it, in the form a
// "position fen ... moves ..." command takes.
func (p *Position) UCI() (fen string, moves []string) {
	moves = make([]string, len(p.moves))
	for i, m := range p.moves {
		moves[i] = MoveFromChess(m).String()
	}
	return p.startFEN, moves
}

// ChessMoves returns the history as notnil/chess moves, oldest first.
func (p *Position) ChessMoves() []*chess.Move {
	return append([]*chess.Move(nil), p.moves...)
}

// History returns the moves played since the starting position, oldest first.
func (p *Position) History() []Move {
	history := make([]Move, len(p.moves))
	for i, m := range p.moves {
		history[i] = MoveFromChess(m)
	}
	return history
}

// Ply returns the number of half-moves played since the starting position.
func (p *Position) Ply() int {
	return len(p.moves)
}

// LastMove returns the most recent move, if any.
func (p *Position) LastMove() (Move, bool) {
	if len(p.moves) == 0 {
		return NoMove, false
	}
	return MoveFromChess(p.moves[len(p.moves)-1]), true
}

// SideToMove returns the color to move.
func (p *Position) SideToMove() chess.Color {
	return p.Current().Turn()
}

// FullMoveNumber returns the FEN full-move counter: 1 at the start of the game,
// incremented after every black move.
func (p *Position) FullMoveNumber() int {
	plies := len(p.moves)
	if p.start.Turn() == chess.Black {
		plies++
	}
	return p.startMove + plies/2
}

// PieceAt returns the piece at the given square, or chess.NoPiece if empty.
func (p *Position) PieceAt(sq chess.Square) chess.Piece {
	return p.Current().Board().Piece(sq)
}

// IsEmpty returns true if the square is empty.
func (p *Position) IsEmpty(sq chess.Square) bool {
	return p.PieceAt(sq) == chess.NoPiece
}

// LegalMoves returns all legal moves for the side to move.
func (p *Position) LegalMoves() []Move {
	valid := p.Current().ValidMoves()
	moves := make([]Move, len(valid))
	for i, m := range valid {
		moves[i] = MoveFromChess(m)
	}
	return moves
}

// LegalMoveCount returns the number of legal moves for the side to move.
func (p *Position) LegalMoveCount() int {
	return len(p.Current().ValidMoves())
}

// IsLegal returns true if m is legal in the current position.
func (p *Position) IsLegal(m Move) bool {
	return p.find(m) != nil
}

// ChessMove resolves m against the current position's legal moves.
func (p *Position) ChessMove(m Move) (*chess.Move, error) {
	cm := p.find(m)
	if cm == nil {
		return nil, fmt.Errorf("illegal move %s in %s", m, p.FEN())
	}
	return cm, nil
}

func (p *Position) find(m Move) *chess.Move {
	for _, cm := range p.Current().ValidMoves() {
		if cm.S1() == m.From && cm.S2() == m.To && cm.Promo() == m.Promo {
			return cm
		}
	}
	return nil
}

// Push plays a legal move on top of the history.
func (p *Position) Push(m Move) error {
	cm, err := p.ChessMove(m)
	if err != nil {
		return err
	}
	p.push(cm, p.Current().Update(cm))
	return nil
}

// PushUCI parses a UCI move string and plays it.
func (p *Position) PushUCI(s string) error {
	m, err := ParseMove(s)
	if err != nil {
		return err
	}
	return p.Push(m)
}

// Pop takes back the most recent move and returns it.
func (p *Position) Pop() (Move, error) {
	cm, _, err := p.pop()
	if err != nil {
		return NoMove, err
	}
	return MoveFromChess(cm), nil
}

func (p *Position) push(cm *chess.Move, next *chess.Position) {
	p.moves = append(p.moves, cm)
	p.positions = append(p.positions, next)
}

func (p *Position) pop() (*chess.Move, *chess.Position, error) {
	if len(p.moves) == 0 {
		return nil, nil, ErrNoHistory
	}
	last := len(p.moves) - 1
	cm, next := p.moves[last], p.positions[last+1]
	p.moves = p.moves[:last]
	p.positions = p.positions[:last+1]
	return cm, next, nil
}

// WithPrevious temporarily takes back the last move and calls fn with the
// position as it was before that move. The move is pushed back on every exit
// path, including a panic inside fn.
func (p *Position) WithPrevious(fn func(prev *Position, last Move) error) error {
	cm, next, err := p.pop()
	if err != nil {
		return err
	}
	defer p.push(cm, next)

	return fn(p, MoveFromChess(cm))
}

// FEN returns the FEN of the current position.
func (p *Position) FEN() string {
	return p.Current().String()
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	return fmt.Sprintf("\n%s\nFEN: %s\nFull move: %d\n", p.Current().Board().Draw(), p.FEN(), p.FullMoveNumber())
}
