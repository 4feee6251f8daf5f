package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hailam/hybridbot/internal/arbiter"
	"github.com/hailam/hybridbot/internal/board"
	"github.com/hailam/hybridbot/internal/gamestate"
	"github.com/hailam/hybridbot/internal/pacing"
	"github.com/hailam/hybridbot/internal/storage"
)

// Move 20, white to move, material level.
const middlegameFEN = "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 20"

// topSampler always returns the top of the range.
type topSampler struct{}

func (topSampler) Uniform(lo, hi float64) float64        { return hi }
func (topSampler) LogNormal(mu, sigma float64) float64 { return 1 }

// harness wires a bot to a fake selector, clock and sleeper.
type harness struct {
	now      time.Time
	spend    time.Duration // search time the selector consumes
	budgets  []time.Duration
	sleeps   []time.Duration
	selected string
	err      error
}

func (h *harness) Select(_ context.Context, pos *board.Position, budget time.Duration, drawOffered bool) (arbiter.Selection, error) {
	h.budgets = append(h.budgets, budget)
	h.now = h.now.Add(h.spend)
	if h.err != nil {
		return arbiter.Selection{}, h.err
	}
	m, err := board.ParseMove(h.selected)
	if err != nil {
		return arbiter.Selection{}, err
	}
	return arbiter.Selection{Move: m, Candidates: []board.Move{m}, DrawOffered: drawOffered}, nil
}

func (h *harness) bot(opts ...Option) *Bot {
	opts = append([]Option{
		WithTimeManager(pacing.NewTimeManager(topSampler{})),
		WithNow(func() time.Time { return h.now }),
		WithSleeper(func(d time.Duration) { h.sleeps = append(h.sleeps, d) }),
	}, opts...)
	return New(h, opts...)
}

func turnAt(t *testing.T, fen string, remaining time.Duration) Turn {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	return Turn{GameID: "game1", Position: pos, Clock: gamestate.Clock{Remaining: remaining}}
}

func TestPlayShortClock(t *testing.T) {
	h := &harness{selected: "f1c4", spend: 400 * time.Millisecond}
	turn := turnAt(t, middlegameFEN, 30*time.Second)

	d, err := h.bot().Play(context.Background(), turn)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	if d.Move.String() != "f1c4" {
		t.Errorf("Move = %s, want f1c4", d.Move)
	}
	if len(h.budgets) != 1 || h.budgets[0] != pacing.ShortBudget {
		t.Errorf("search budgets %v, want [%v]", h.budgets, pacing.ShortBudget)
	}
	if d.Rule != pacing.RuleShortClock {
		t.Errorf("Rule = %v, want short_clock", d.Rule)
	}
	if d.Searched != 400*time.Millisecond {
		t.Errorf("Searched = %v", d.Searched)
	}
	wantPause := time.Duration(d.Complexity * float64(time.Second))
	if d.Budget.Pause != wantPause || len(h.sleeps) != 1 || h.sleeps[0] != wantPause {
		t.Errorf("pause %v, slept %v, want %v", d.Budget.Pause, h.sleeps, wantPause)
	}
	if d.Ply != 38 {
		t.Errorf("Ply = %d, want 38", d.Ply)
	}
}

func TestPlayPauseUsesPostSearchClock(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		spend     time.Duration
		budget    time.Duration
		rule      pacing.Rule
	}{
		// 60.5s before, 59.5s after: long budget but short clock pause
		{"AcrossLongClock", 60500 * time.Millisecond, time.Second, pacing.LongBudget, pacing.RuleShortClock},
		// 10.4s before, 9.9s after: no pause at all
		{"AcrossLowClock", 10400 * time.Millisecond, 500 * time.Millisecond, pacing.ShortBudget, pacing.RuleLowClock},
		{"StaysLong", 5 * time.Minute, time.Second, pacing.LongBudget, pacing.RuleLongClock},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &harness{selected: "f1c4", spend: tc.spend}
			d, err := h.bot().Play(context.Background(), turnAt(t, middlegameFEN, tc.remaining))
			if err != nil {
				t.Fatal(err)
			}
			if d.Budget.Initial != tc.budget {
				t.Errorf("Initial = %v, want %v", d.Budget.Initial, tc.budget)
			}
			if d.Rule != tc.rule {
				t.Errorf("Rule = %v, want %v", d.Rule, tc.rule)
			}
		})
	}
}

func TestPlayNoSleepWithoutPause(t *testing.T) {
	h := &harness{selected: "e2e4"}
	d, err := h.bot().Play(context.Background(), turnAt(t, board.StartFEN, 5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if d.Rule != pacing.RuleOpening || d.Budget.Pause != 0 {
		t.Errorf("decision %+v, want opening rule with no pause", d)
	}
	if len(h.sleeps) != 0 {
		t.Errorf("slept %v on a zero pause", h.sleeps)
	}
}

func TestPlayFallback(t *testing.T) {
	h := &harness{err: &arbiter.CandidateGenerationError{Reason: "no answer"}}
	turn := turnAt(t, middlegameFEN, 5*time.Minute)
	turn.DrawOffered = true

	d, err := h.bot().Play(context.Background(), turn)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !d.Fallback {
		t.Error("Fallback = false")
	}
	if !turn.Position.IsLegal(d.Move) {
		t.Errorf("fallback move %s is illegal", d.Move)
	}
	if !d.DrawOffered {
		t.Error("draw offer lost on fallback")
	}
}

func TestPlayProtocolErrorSurfaced(t *testing.T) {
	j, err := storage.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	h := &harness{err: &arbiter.ArbitrationProtocolError{}}
	_, err = h.bot(WithJournal(j)).Play(context.Background(), turnAt(t, middlegameFEN, 5*time.Minute))
	if !errors.Is(err, arbiter.ErrArbitrationProtocol) {
		t.Fatalf("err = %v, want arbitration protocol error", err)
	}
	if len(h.sleeps) != 0 {
		t.Error("bot paused after a failed turn")
	}
	if records, _ := j.Game("game1"); len(records) != 0 {
		t.Errorf("failed turn was journaled: %+v", records)
	}
}

func TestPlayOtherErrorSurfaced(t *testing.T) {
	boom := errors.New("precise stage: stockfish crashed")
	h := &harness{err: boom}
	if _, err := h.bot().Play(context.Background(), turnAt(t, middlegameFEN, time.Minute)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestPlayJournal(t *testing.T) {
	j, err := storage.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	h := &harness{selected: "f1c4", spend: 700 * time.Millisecond}
	d, err := h.bot(WithJournal(j)).Play(context.Background(), turnAt(t, middlegameFEN, 2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	records, err := j.Game("game1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("journal has %d records, want 1", len(records))
	}
	r := records[0]
	if r.Move != "f1c4" || r.Ply != d.Ply || r.Rule != "long_clock" || r.Searched != 700*time.Millisecond {
		t.Errorf("record = %+v", r)
	}
	if r.Remaining != 2*time.Minute || r.FEN != middlegameFEN || r.Pause != d.Budget.Pause {
		t.Errorf("record = %+v", r)
	}
}

func TestGamePly(t *testing.T) {
	tests := []struct {
		fen   string
		moves []string
		want  int
	}{
		{board.StartFEN, nil, 0},
		{board.StartFEN, []string{"e2e4"}, 1},
		{board.StartFEN, []string{"e2e4", "e7e5"}, 2},
		{middlegameFEN, nil, 38},
		{"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 2 20", nil, 39},
	}
	for _, tc := range tests {
		pos, err := board.ParseUCIPosition(tc.fen, tc.moves)
		if err != nil {
			t.Fatal(err)
		}
		if got := gamePly(pos); got != tc.want {
			t.Errorf("gamePly(%s %v) = %d, want %d", tc.fen, tc.moves, got, tc.want)
		}
	}
}
