package gamestate

import (
	"testing"
	"time"

	"github.com/notnil/chess"

	"github.com/hailam/hybridbot/internal/board"
)

func view(t *testing.T, fen string, moves ...string) *View {
	t.Helper()
	pos, err := board.ParseUCIPosition(fen, moves)
	if err != nil {
		t.Fatalf("ParseUCIPosition: %v", err)
	}
	return New(pos, Clock{Remaining: 5 * time.Minute, Increment: 2 * time.Second}, Meta{Color: chess.White})
}

func mustMove(t *testing.T, s string) board.Move {
	t.Helper()
	m, err := board.ParseMove(s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestIsEndgame(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want bool
	}{
		{"start position", board.StartFEN, false},
		{"queens off, lots of material", "rnb1kbnr/pppppppp/8/8/8/8/PPPPPPPP/RNB1KBNR w KQkq - 0 12", true},
		{"one queen, little material", "4k3/8/8/8/8/8/PPPP4/3QK3 w - - 0 40", true},
		{"one queen, material above threshold", "r3k2r/pppp4/8/8/8/8/PPPP4/R2QK2R w - - 0 25", false},
		{"bare kings", "4k3/8/8/8/8/8/8/4K3 w - - 0 60", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := view(t, tc.fen).IsEndgame(); got != tc.want {
				t.Errorf("IsEndgame() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsEqual(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want bool
	}{
		{"start", board.StartFEN, true},
		{"up a rook", "4k3/pppppppp/8/8/8/8/PPPPPPPP/R3K3 w - - 0 30", true},
		{"up a queen", "4k3/pppppppp/8/8/8/8/PPPPPPPP/3QK3 w - - 0 30", false},
		{"black up rook and pawn", "r3k3/pppppppp/8/8/8/8/PPPPPPP1/4K3 w - - 0 30", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := view(t, tc.fen).IsEqual(); got != tc.want {
				t.Errorf("IsEqual() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsRecapture(t *testing.T) {
	// 1. e4 d5 2. exd5: black recapturing on d5 is a recapture
	v := view(t, "", "e2e4", "d7d5", "e4d5")
	if !v.IsRecapture(mustMove(t, "d8d5")) {
		t.Error("Qxd5 should be a recapture")
	}
	if v.IsRecapture(mustMove(t, "g8f6")) {
		t.Error("Nf6 should not be a recapture")
	}

	// Last move was not a capture: taking on its square is not a recapture
	v = view(t, "", "e2e4", "e7e5", "g1f3", "b8c6", "f3g5")
	if v.IsRecapture(mustMove(t, "d8g5")) {
		t.Error("Ng5 was quiet, Qxg5 is not a recapture")
	}

	if v.Position().Ply() != 5 {
		t.Errorf("Recapture check must leave history intact, ply=%d", v.Position().Ply())
	}
}

func TestIsRecaptureFirstMove(t *testing.T) {
	v := view(t, "")
	if v.IsRecapture(mustMove(t, "e2e4")) {
		t.Error("First move can never be a recapture")
	}
}

func TestTimeLeftAndMoveNumber(t *testing.T) {
	v := view(t, "", "e2e4", "e7e5", "g1f3")
	remaining, inc := v.TimeLeft()
	if remaining != 5*time.Minute || inc != 2*time.Second {
		t.Errorf("TimeLeft() = %v, %v", remaining, inc)
	}
	if v.MoveNumber() != 2 {
		t.Errorf("MoveNumber() = %d, want 2", v.MoveNumber())
	}
	if v.LegalMoveCount() == 0 {
		t.Error("Expected legal moves")
	}

	spent := v.WithClock(Clock{Remaining: remaining}.Spend(90 * time.Second))
	if r, _ := spent.TimeLeft(); r != 210*time.Second {
		t.Errorf("Spend: remaining %v, want 3m30s", r)
	}
}

func TestRelativeMaterialDiff(t *testing.T) {
	pos, err := board.ParseFEN("4k3/pppppppp/8/8/8/8/PPPPPPPP/3QK3 w - - 0 30")
	if err != nil {
		t.Fatal(err)
	}
	white := New(pos, Clock{}, Meta{Color: chess.White})
	black := New(pos, Clock{}, Meta{Color: chess.Black})
	if white.RelativeMaterialDiff() != 8 || black.RelativeMaterialDiff() != -8 {
		t.Errorf("RelativeMaterialDiff white=%d black=%d", white.RelativeMaterialDiff(), black.RelativeMaterialDiff())
	}
}
