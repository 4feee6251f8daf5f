// Package gamestate exposes the derived facts the pacing policy reads from a
// position, the clock and the game metadata.
package gamestate

import (
	"errors"
	"time"

	"github.com/notnil/chess"

	"github.com/hailam/hybridbot/internal/board"
)

// Classification thresholds on the board.PieceValue scale.
const (
	EndgameMaterial = 20 // total material at or below this is an endgame
	EqualMargin     = 5  // material difference within this is equal
)

// Clock is one side's clock at the start of a turn.
type Clock struct {
	Remaining time.Duration
	Increment time.Duration
}

// Spend returns the clock after d has elapsed. Remaining may go negative.
func (c Clock) Spend(d time.Duration) Clock {
	c.Remaining -= d
	return c
}

// Meta is static game metadata.
type Meta struct {
	Color chess.Color // the bot's color
}

// View is a read-only adapter over a position and the clock for one turn.
type View struct {
	pos   *board.Position
	clock Clock
	meta  Meta
}

// New creates a view. The position is borrowed, not copied.
func New(pos *board.Position, clock Clock, meta Meta) *View {
	return &View{pos: pos, clock: clock, meta: meta}
}

// WithClock returns a view of the same position with a different clock.
func (v *View) WithClock(clock Clock) *View {
	return &View{pos: v.pos, clock: clock, meta: v.meta}
}

// Position returns the underlying position.
func (v *View) Position() *board.Position {
	return v.pos
}

// Meta returns the game metadata.
func (v *View) Meta() Meta {
	return v.meta
}

// IsEndgame is true when both queens are off the board or total material is at
// or below EndgameMaterial.
func (v *View) IsEndgame() bool {
	noQueens := v.pos.PieceCount(chess.White, chess.Queen) == 0 &&
		v.pos.PieceCount(chess.Black, chess.Queen) == 0
	if noQueens {
		return true
	}
	return v.pos.TotalMaterial() <= EndgameMaterial
}

// IsEqual is true when neither side is more than EqualMargin points ahead.
func (v *View) IsEqual() bool {
	diff := v.MaterialDiff()
	if diff < 0 {
		diff = -diff
	}
	return diff <= EqualMargin
}

// IsRecapture reports whether m lands on the square the opponent's last move
// captured on. Always false on the first move of the game.
func (v *View) IsRecapture(m board.Move) bool {
	if v.IsFirstMove() {
		return false
	}

	recapture := false
	err := v.pos.WithPrevious(func(prev *board.Position, last board.Move) error {
		recapture = m.To == last.To && !prev.IsEmpty(last.To)
		return nil
	})
	if errors.Is(err, board.ErrNoHistory) {
		return false
	}
	return recapture
}

// IsFirstMove is true when no move has been played on the position.
func (v *View) IsFirstMove() bool {
	return v.pos.Ply() == 0
}

// LegalMoveCount returns the number of legal moves for the side to move.
func (v *View) LegalMoveCount() int {
	return v.pos.LegalMoveCount()
}

// TimeLeft returns the remaining time and increment.
func (v *View) TimeLeft() (remaining, increment time.Duration) {
	return v.clock.Remaining, v.clock.Increment
}

// MoveNumber returns the full-move number of the position.
func (v *View) MoveNumber() int {
	return v.pos.FullMoveNumber()
}

// MaterialDiff returns the material balance, white-positive.
func (v *View) MaterialDiff() int {
	return v.pos.Material()
}

// TotalMaterial returns the material of both sides.
func (v *View) TotalMaterial() int {
	return v.pos.TotalMaterial()
}

// RelativeMaterialDiff returns the material balance from the bot's side.
func (v *View) RelativeMaterialDiff() int {
	return v.MaterialDiff() * board.ColorSign(v.meta.Color)
}
