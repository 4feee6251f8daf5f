package board

import (
	"testing"

	"github.com/notnil/chess"
)

func TestParseMove(t *testing.T) {
	tests := []struct {
		in      string
		want    Move
		wantErr bool
	}{
		{"e2e4", NewMove(chess.E2, chess.E4), false},
		{"a7a8q", NewPromotion(chess.A7, chess.A8, chess.Queen), false},
		{"h2h1n", NewPromotion(chess.H2, chess.H1, chess.Knight), false},
		{"e2", NoMove, true},
		{"i2i4", NoMove, true},
		{"a7a8k", NoMove, true},
	}

	for _, tc := range tests {
		got, err := ParseMove(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMove(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMove(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMove(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got.String() != tc.in {
			t.Errorf("String() = %s, want %s", got, tc.in)
		}
	}
}

func TestNoMoveString(t *testing.T) {
	if NoMove.String() != "0000" {
		t.Errorf("NoMove.String() = %s", NoMove.String())
	}
}

func TestLegalMovesMatchChess(t *testing.T) {
	pos := NewPosition()
	for _, m := range pos.LegalMoves() {
		if !pos.IsLegal(m) {
			t.Errorf("%s listed as legal but IsLegal is false", m)
		}
	}
	if pos.IsLegal(NewMove(chess.E2, chess.E5)) {
		t.Error("e2e5 should not be legal")
	}
}
