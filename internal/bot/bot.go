// Package bot runs one turn end to end: budget the search, arbitrate between
// the engines, fall back when the fast engine fails, then wait out a pause
// before handing the move back.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/hailam/hybridbot/internal/arbiter"
	"github.com/hailam/hybridbot/internal/board"
	"github.com/hailam/hybridbot/internal/gamestate"
	"github.com/hailam/hybridbot/internal/pacing"
	"github.com/hailam/hybridbot/internal/storage"
)

// Selector picks a move within a search budget.
type Selector interface {
	Select(ctx context.Context, pos *board.Position, budget time.Duration, drawOffered bool) (arbiter.Selection, error)
}

// Journal records decisions.
type Journal interface {
	Save(rec storage.Record) error
}

// Turn is everything the bot is told about the move it must play.
type Turn struct {
	GameID      string
	Position    *board.Position
	Clock       gamestate.Clock
	DrawOffered bool
}

// Decision is the outcome of a turn.
type Decision struct {
	GameID      string
	Ply         int
	Move        board.Move
	Candidates  []board.Move
	DrawOffered bool
	Fallback    bool
	Budget      pacing.TimeBudget
	Searched    time.Duration
	Rule        pacing.Rule
	Complexity  float64
}

// Bot is the per-turn pipeline. It is not safe for concurrent use; callers
// run one turn at a time.
type Bot struct {
	selector Selector
	tm       *pacing.TimeManager
	journal  Journal
	sleep    func(time.Duration)
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithTimeManager replaces the default time manager.
func WithTimeManager(tm *pacing.TimeManager) Option {
	return func(b *Bot) { b.tm = tm }
}

// WithJournal records every decision in j.
func WithJournal(j Journal) Option {
	return func(b *Bot) { b.journal = j }
}

// WithSleeper replaces time.Sleep for the pause.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(b *Bot) { b.sleep = sleep }
}

// WithNow replaces time.Now for measuring the search.
func WithNow(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Bot) { b.log = log }
}

// New creates a bot around a move selector.
func New(selector Selector, opts ...Option) *Bot {
	b := &Bot{
		selector: selector,
		tm:       pacing.NewTimeManager(nil),
		sleep:    time.Sleep,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Play decides the move for turn and blocks for the pause before returning
// it. The pause is not interrupted by ctx; only the search is.
func (b *Bot) Play(ctx context.Context, turn Turn) (Decision, error) {
	pos := turn.Position
	view := gamestate.New(pos, turn.Clock, gamestate.Meta{Color: pos.SideToMove()})
	initial := b.tm.InitialBudget(view)

	start := b.now()
	sel, err := b.selector.Select(ctx, pos, initial, turn.DrawOffered)
	fallback := false
	if errors.Is(err, arbiter.ErrCandidateGeneration) {
		b.log.Warn().Err(err).Str("fen", pos.FEN()).Msg("candidate generation failed, playing fallback move")
		var move board.Move
		move, err = arbiter.Fallback(pos)
		sel = arbiter.Selection{Move: move, DrawOffered: turn.DrawOffered}
		fallback = true
	}
	if err != nil {
		return Decision{}, err
	}
	searched := b.now().Sub(start)

	// The pause is judged against the clock as it stands after the search
	after := view.WithClock(turn.Clock.Spend(searched))
	pause := b.tm.Pause(after, sel.Move)

	d := Decision{
		GameID:      turn.GameID,
		Ply:         gamePly(pos),
		Move:        sel.Move,
		Candidates:  sel.Candidates,
		DrawOffered: sel.DrawOffered,
		Fallback:    fallback,
		Budget:      pacing.TimeBudget{Initial: initial, Pause: pause.Duration},
		Searched:    searched,
		Rule:        pause.Rule,
		Complexity:  pause.Complexity,
	}

	b.log.Info().
		Str("move", d.Move.String()).
		Int("move_number", view.MoveNumber()).
		Dur("budget", initial).
		Dur("searched", searched).
		Dur("pause", pause.Duration).
		Str("rule", pause.Rule.String()).
		Float64("complexity", pause.Complexity).
		Bool("fallback", fallback).
		Msg("move decided")

	if pause.Duration > 0 {
		b.sleep(pause.Duration)
	}

	b.record(turn, d, pos.FEN())
	return d, nil
}

func (b *Bot) record(turn Turn, d Decision, fen string) {
	if b.journal == nil || turn.GameID == "" {
		return
	}
	rec := storage.Record{
		GameID:      d.GameID,
		Ply:         d.Ply,
		FEN:         fen,
		Move:        d.Move.String(),
		Candidates:  board.MoveStrings(d.Candidates),
		Fallback:    d.Fallback,
		DrawOffered: d.DrawOffered,
		Remaining:   turn.Clock.Remaining,
		Budget:      d.Budget.Initial,
		Searched:    d.Searched,
		Pause:       d.Budget.Pause,
		Rule:        d.Rule.String(),
		Complexity:  d.Complexity,
		Time:        b.now(),
	}
	if err := b.journal.Save(rec); err != nil {
		b.log.Warn().Err(err).Str("game", d.GameID).Int("ply", d.Ply).Msg("journal write failed")
	}
}

// gamePly counts half-moves from the start of the game, from the FEN move
// counter rather than the local history.
func gamePly(pos *board.Position) int {
	ply := (pos.FullMoveNumber() - 1) * 2
	if pos.SideToMove() == chess.Black {
		ply++
	}
	return ply
}
