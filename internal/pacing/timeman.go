// Package pacing decides how long the bot searches and how long it then waits
// before playing, so that its move timing looks like a human's.
package pacing

import (
	"math"
	"time"

	"github.com/hailam/hybridbot/internal/board"
	"github.com/hailam/hybridbot/internal/gamestate"
)

// Pacing policy constants.
const (
	OpeningMoves = 10               // no pause before this full move
	LowClock     = 10 * time.Second // no pause below this
	LongClock    = 60 * time.Second // long-tailed pauses from here on

	ShortBudget = 500 * time.Millisecond // search budget below LongClock
	LongBudget  = time.Second            // search budget otherwise

	longPauseScale = 15.0 // seconds at full weight and full complexity
	pauseMu        = -1.0 // log-normal location
	pauseSigma     = 5.0  // log-normal scale
)

// TimeBudget is the time plan for one turn.
type TimeBudget struct {
	Initial time.Duration // search time handed to the engines
	Pause   time.Duration // idle wait after the move is chosen
}

// Rule identifies which pause rule decided a turn.
type Rule int

const (
	RuleNone Rule = iota
	RuleOpening
	RuleLowClock
	RuleRecapture
	RuleShortClock
	RuleLongClock
)

// String returns the rule name.
func (r Rule) String() string {
	switch r {
	case RuleOpening:
		return "opening"
	case RuleLowClock:
		return "low_clock"
	case RuleRecapture:
		return "recapture"
	case RuleShortClock:
		return "short_clock"
	case RuleLongClock:
		return "long_clock"
	default:
		return "none"
	}
}

// PauseDecision is the pause for a move and the rule that produced it.
// Complexity is only computed by the clock-based rules and is 0 otherwise.
type PauseDecision struct {
	Duration   time.Duration
	Rule       Rule
	Complexity float64
}

// TimeManager computes per-turn search budgets and pauses. It keeps no state
// between turns; a fresh or shared instance behaves the same.
type TimeManager struct {
	sampler Sampler
}

// NewTimeManager creates a time manager. A nil sampler uses DefaultSampler.
func NewTimeManager(s Sampler) *TimeManager {
	return &TimeManager{sampler: s}
}

func (tm *TimeManager) rng() Sampler {
	if tm == nil || tm.sampler == nil {
		return DefaultSampler
	}
	return tm.sampler
}

// InitialBudget returns the search time for this turn.
func (tm *TimeManager) InitialBudget(v *gamestate.View) time.Duration {
	remaining, _ := v.TimeLeft() // increment is not part of the policy yet
	if remaining < LongClock {
		return ShortBudget
	}
	return LongBudget
}

// PauseDuration returns how long to wait before playing move. The view should
// carry the clock as it stands after the search.
func (tm *TimeManager) PauseDuration(v *gamestate.View, move board.Move) time.Duration {
	return tm.Pause(v, move).Duration
}

// pauseRule is one row of the pause table. Rows are tried in order and the
// first one that applies decides the pause.
type pauseRule struct {
	rule    Rule
	applies func(v *gamestate.View, move board.Move, remaining time.Duration) bool
	seconds func(tm *TimeManager, complexity float64) float64 // nil means no pause
}

var pauseTable = []pauseRule{
	{
		rule: RuleOpening,
		applies: func(v *gamestate.View, _ board.Move, _ time.Duration) bool {
			return v.MoveNumber() < OpeningMoves
		},
	},
	{
		rule: RuleLowClock,
		applies: func(_ *gamestate.View, _ board.Move, remaining time.Duration) bool {
			return remaining < LowClock
		},
	},
	{
		rule: RuleRecapture,
		applies: func(v *gamestate.View, move board.Move, _ time.Duration) bool {
			return v.IsRecapture(move)
		},
	},
	{
		rule: RuleShortClock,
		applies: func(_ *gamestate.View, _ board.Move, remaining time.Duration) bool {
			return remaining < LongClock
		},
		seconds: func(tm *TimeManager, complexity float64) float64 {
			return tm.rng().Uniform(0, complexity)
		},
	},
	{
		rule: RuleLongClock,
		applies: func(_ *gamestate.View, _ board.Move, _ time.Duration) bool {
			return true
		},
		seconds: func(tm *TimeManager, complexity float64) float64 {
			// Mostly small weights with a long tail, capped at 1
			w := math.Min(tm.rng().LogNormal(pauseMu, pauseSigma), 1)
			return w * longPauseScale * complexity
		},
	},
}

// Pause evaluates the pause table for move.
func (tm *TimeManager) Pause(v *gamestate.View, move board.Move) PauseDecision {
	remaining, _ := v.TimeLeft()

	for _, r := range pauseTable {
		if !r.applies(v, move, remaining) {
			continue
		}
		if r.seconds == nil {
			return PauseDecision{Rule: r.rule}
		}
		complexity := Complexity(v)
		return PauseDecision{
			Duration:   seconds(r.seconds(tm, complexity)),
			Rule:       r.rule,
			Complexity: complexity,
		}
	}

	return PauseDecision{}
}

// seconds converts a non-negative float number of seconds to a Duration.
func seconds(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
