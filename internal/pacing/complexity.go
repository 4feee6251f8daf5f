package pacing

import "github.com/hailam/hybridbot/internal/gamestate"

// Complexity weights, in points out of 100.
const (
	mobilityPerMove = 1.5
	mobilityCap     = 50.0
	middlegameBonus = 25.0
	equalBonus      = 25.0
)

// Complexity returns a value in [0, 1] corresponding roughly to how hard the
// position is to play: many legal moves, queens still on and material still
// level all push it up.
func Complexity(v *gamestate.View) float64 {
	mobility := clamp(float64(v.LegalMoveCount())*mobilityPerMove, 0, mobilityCap)

	phase := 0.0
	if !v.IsEndgame() {
		phase = middlegameBonus
	}

	balance := 0.0
	if v.IsEqual() {
		balance = equalBonus
	}

	return (mobility + clamp(phase, 0, middlegameBonus) + clamp(balance, 0, equalBonus)) / 100
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
