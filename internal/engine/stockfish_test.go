package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/hybridbot/internal/board"
)

const fakeFishScript = `#!/bin/sh
n=0
while IFS= read -r line; do
	printf '%s\n' "$line" >> "@LOG@"
	case "$line" in
	uci)
		echo "id name FakeFish"
		echo "uciok"
		;;
	isready)
		echo "readyok"
		;;
	go*)
		n=$((n+1))
		if [ "$n" -eq @SLOW@ ]; then sleep 1; fi
		echo "bestmove @REPLY@"
		;;
	quit)
		exit 0
		;;
	esac
done
`

// fakeFish writes a shell engine that answers every go with reply. The
// slow-th search takes a second; 0 means none do. It returns the engine and
// the path of the command log.
func fakeFish(t *testing.T, reply string, slow int) (*Stockfish, string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "commands.log")
	script := strings.NewReplacer(
		"@LOG@", logPath,
		"@REPLY@", reply,
		"@SLOW@", string(rune('0'+slow)),
	).Replace(fakeFishScript)

	path := filepath.Join(dir, "fakefish")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	s, err := StartStockfish(path, map[string]string{"Hash": "16"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("StartStockfish: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, logPath
}

func commands(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func openingMoves(t *testing.T) (*board.Position, []board.Move) {
	t.Helper()
	pos, err := board.ParseUCIPosition("", []string{"e2e4", "e7e5"})
	if err != nil {
		t.Fatal(err)
	}
	var candidates []board.Move
	for _, s := range []string{"g1f3", "b1c3", "f1c4"} {
		m, err := board.ParseMove(s)
		if err != nil {
			t.Fatal(err)
		}
		candidates = append(candidates, m)
	}
	return pos, candidates
}

func TestStockfishStartup(t *testing.T) {
	_, logPath := fakeFish(t, "e2e4", 0)

	got := strings.Join(commands(t, logPath), "|")
	want := "uci|isready|setoption name Hash value 16|ucinewgame|isready"
	if got != want {
		t.Errorf("startup commands = %q, want %q", got, want)
	}
}

func TestStockfishChooseSearchMoves(t *testing.T) {
	s, logPath := fakeFish(t, "f1c4", 0)
	pos, candidates := openingMoves(t)

	m, err := s.Choose(context.Background(), pos, 100*time.Millisecond, candidates)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if m.String() != "f1c4" {
		t.Errorf("Choose = %s, want f1c4", m)
	}

	cmds := commands(t, logPath)
	if !containsLine(cmds, "go movetime 100 searchmoves g1f3 b1c3 f1c4") {
		t.Errorf("no restricted go command in %q", cmds)
	}
	positioned := false
	for _, cmd := range cmds {
		if strings.HasPrefix(cmd, "position fen ") && strings.HasSuffix(cmd, " moves e2e4 e7e5") {
			positioned = true
		}
	}
	if !positioned {
		t.Errorf("no position command with the game moves in %q", cmds)
	}
}

func TestStockfishNoMove(t *testing.T) {
	s, _ := fakeFish(t, "(none)", 0)
	pos, candidates := openingMoves(t)

	_, err := s.Choose(context.Background(), pos, 100*time.Millisecond, candidates)
	if err == nil {
		t.Fatal("Choose succeeded on bestmove (none)")
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "choose" || opErr.Engine != "stockfish" {
		t.Errorf("err = %#v, want a stockfish choose OpError", err)
	}
}

func TestStockfishDeadline(t *testing.T) {
	s, logPath := fakeFish(t, "g1f3", 1)
	pos, candidates := openingMoves(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := s.Choose(ctx, pos, 100*time.Millisecond, candidates)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Choose returned after %v, want it to return at the deadline", elapsed)
	}

	// The abandoned search still holds the engine; the next call waits for it
	m, err := s.Choose(context.Background(), pos, 100*time.Millisecond, candidates)
	if err != nil {
		t.Fatalf("Choose after deadline: %v", err)
	}
	if m.String() != "g1f3" {
		t.Errorf("Choose = %s, want g1f3", m)
	}

	gos := 0
	for _, cmd := range commands(t, logPath) {
		if strings.HasPrefix(cmd, "go ") {
			gos++
		}
	}
	if gos != 2 {
		t.Errorf("engine saw %d searches, want 2", gos)
	}
}

func TestStockfishNewGame(t *testing.T) {
	s, logPath := fakeFish(t, "e2e4", 0)

	if err := s.NewGame(context.Background()); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	cmds := commands(t, logPath)
	if tail := strings.Join(cmds[len(cmds)-2:], "|"); tail != "ucinewgame|isready" {
		t.Errorf("NewGame sent %q", tail)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.NewGame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("NewGame on cancelled ctx: %v", err)
	}
}
