// Package arbiter picks a move in two stages: a fast engine proposes a few
// ranked candidates, then a precise engine chooses among exactly those.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"lukechampine.com/frand"

	"github.com/hailam/hybridbot/internal/board"
)

// CandidateSource proposes up to n ranked moves for pos, best first, within budget.
type CandidateSource interface {
	Candidates(ctx context.Context, pos *board.Position, budget time.Duration, n int) ([]board.Move, error)
}

// MoveChooser picks one move for pos among candidates within budget.
type MoveChooser interface {
	Choose(ctx context.Context, pos *board.Position, budget time.Duration, candidates []board.Move) (board.Move, error)
}

// Config tunes how the budget is split between the stages.
type Config struct {
	Candidates   int           // candidates requested from the fast stage
	PreciseSlice time.Duration // reserved for the precise stage
	MinFastSlice time.Duration // floor for the fast stage
	Grace        time.Duration // allowance on top of a slice before a stage is abandoned
}

// DefaultConfig returns the standard three-candidate, 100ms-check setup.
func DefaultConfig() Config {
	return Config{
		Candidates:   3,
		PreciseSlice: 100 * time.Millisecond,
		MinFastSlice: 100 * time.Millisecond,
		Grace:        250 * time.Millisecond,
	}
}

// Selection is the outcome of one arbitration.
type Selection struct {
	Move         board.Move
	Candidates   []board.Move
	DrawOffered  bool
	FastSlice    time.Duration
	PreciseSlice time.Duration
}

// Arbitrator runs the two-stage protocol. It is not safe for concurrent use:
// the engines behind it are stateful processes.
type Arbitrator struct {
	fast    CandidateSource
	precise MoveChooser
	cfg     Config
	log     zerolog.Logger
}

// New creates an arbitrator. Zero config fields take their defaults.
func New(fast CandidateSource, precise MoveChooser, cfg Config, log zerolog.Logger) *Arbitrator {
	return &Arbitrator{fast: fast, precise: precise, cfg: cfg.withDefaults(), log: log}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Candidates <= 0 {
		c.Candidates = def.Candidates
	}
	if c.PreciseSlice <= 0 {
		c.PreciseSlice = def.PreciseSlice
	}
	if c.MinFastSlice <= 0 {
		c.MinFastSlice = def.MinFastSlice
	}
	if c.Grace <= 0 {
		c.Grace = def.Grace
	}
	return c
}

// Config returns the effective configuration.
func (a *Arbitrator) Config() Config {
	return a.cfg
}

// SetConfig replaces the configuration between turns. Zero fields take their
// defaults.
func (a *Arbitrator) SetConfig(cfg Config) {
	a.cfg = cfg.withDefaults()
}

// Split divides budget into the fast and precise slices.
func (a *Arbitrator) Split(budget time.Duration) (fast, precise time.Duration) {
	fast = budget - a.cfg.PreciseSlice
	if fast < a.cfg.MinFastSlice {
		fast = a.cfg.MinFastSlice
	}
	return fast, a.cfg.PreciseSlice
}

// Select picks the move to play in pos. drawOffered is carried through to the
// selection untouched. If ctx ends while the precise engine is deciding, the
// top candidate is played; if it ends before any candidate arrived, Select
// returns ctx.Err().
func (a *Arbitrator) Select(ctx context.Context, pos *board.Position, budget time.Duration, drawOffered bool) (Selection, error) {
	fastSlice, preciseSlice := a.Split(budget)

	candidates, err := a.candidates(ctx, pos, fastSlice)
	if err != nil {
		return Selection{}, err
	}
	a.log.Info().
		Strs("candidates", board.MoveStrings(candidates)).
		Dur("slice", fastSlice).
		Msg("candidate moves received")

	move, err := a.choose(ctx, pos, preciseSlice, candidates)
	if err != nil {
		return Selection{}, err
	}
	a.log.Info().Str("move", move.String()).Dur("slice", preciseSlice).Msg("final move decided")

	return Selection{
		Move:         move,
		Candidates:   candidates,
		DrawOffered:  drawOffered,
		FastSlice:    fastSlice,
		PreciseSlice: preciseSlice,
	}, nil
}

func (a *Arbitrator) candidates(ctx context.Context, pos *board.Position, slice time.Duration) ([]board.Move, error) {
	stageCtx, cancel := context.WithTimeout(ctx, slice+a.cfg.Grace)
	defer cancel()

	proposed, err := a.fast.Candidates(stageCtx, pos, slice, a.cfg.Candidates)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &CandidateGenerationError{Reason: fmt.Sprintf("no answer within %v", slice), Err: err}
		}
		return nil, &CandidateGenerationError{Reason: "fast engine failed", Err: err}
	}

	candidates := make([]board.Move, 0, a.cfg.Candidates)
	for _, m := range proposed {
		if len(candidates) == a.cfg.Candidates {
			break
		}
		if board.ContainsMove(candidates, m) {
			continue
		}
		if !pos.IsLegal(m) {
			a.log.Warn().Str("move", m.String()).Str("fen", pos.FEN()).Msg("dropping illegal candidate")
			continue
		}
		candidates = append(candidates, m)
	}

	if len(candidates) == 0 {
		return nil, &CandidateGenerationError{Reason: fmt.Sprintf("no legal candidates among %d proposed", len(proposed))}
	}
	return candidates, nil
}

func (a *Arbitrator) choose(ctx context.Context, pos *board.Position, slice time.Duration, candidates []board.Move) (board.Move, error) {
	stageCtx, cancel := context.WithTimeout(ctx, slice+a.cfg.Grace)
	defer cancel()

	move, err := a.precise.Choose(stageCtx, pos, slice, candidates)
	if err != nil {
		if ctx.Err() != nil {
			a.log.Info().Str("move", candidates[0].String()).Msg("search stopped, playing top candidate")
			return candidates[0], nil
		}
		return board.NoMove, fmt.Errorf("precise stage: %w", err)
	}
	if !board.ContainsMove(candidates, move) {
		return board.NoMove, &ArbitrationProtocolError{Move: move, Candidates: candidates}
	}
	return move, nil
}

// Fallback returns a random legal move, for use when the fast stage fails.
func Fallback(pos *board.Position) (board.Move, error) {
	legal := pos.LegalMoves()
	if len(legal) == 0 {
		return board.NoMove, ErrNoLegalMoves
	}
	return legal[frand.Intn(len(legal))], nil
}
