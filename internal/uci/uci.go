// Package uci hosts the bot behind the Universal Chess Interface, so any
// UCI-speaking bridge can put it on a game server.
package uci

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"
	"lukechampine.com/frand"

	"github.com/hailam/hybridbot/internal/arbiter"
	"github.com/hailam/hybridbot/internal/board"
	"github.com/hailam/hybridbot/internal/bot"
	"github.com/hailam/hybridbot/internal/gamestate"
)

// Player plays one turn.
type Player interface {
	Play(ctx context.Context, turn bot.Turn) (bot.Decision, error)
}

// Tuner exposes the arbitration settings to setoption.
type Tuner interface {
	Config() arbiter.Config
	SetConfig(cfg arbiter.Config)
}

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	player  Player
	tuner   Tuner
	newGame func(ctx context.Context) error
	log     zerolog.Logger

	outMu sync.Mutex
	out   io.Writer

	position *board.Position
	gameID   string

	// Search state
	searching  bool
	searchDone chan struct{}
	cancel     context.CancelFunc
}

// Option configures the protocol handler.
type Option func(*UCI)

// WithTuner lets setoption adjust the arbitration settings.
func WithTuner(t Tuner) Option {
	return func(u *UCI) { u.tuner = t }
}

// WithNewGame runs fn on every ucinewgame, typically to reset the engines.
func WithNewGame(fn func(ctx context.Context) error) Option {
	return func(u *UCI) { u.newGame = fn }
}

// WithLogger sets the logger. Logs must not go to the protocol output.
func WithLogger(log zerolog.Logger) Option {
	return func(u *UCI) { u.log = log }
}

// New creates a new UCI protocol handler writing to out.
func New(player Player, out io.Writer, opts ...Option) *UCI {
	u := &UCI{
		player:   player,
		out:      out,
		log:      zerolog.Nop(),
		position: board.NewPosition(),
		gameID:   newGameID(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func newGameID() string {
	return hex.EncodeToString(frand.Bytes(6))
}

// Run reads commands from in until quit, end of input or ctx is done.
func (u *UCI) Run(ctx context.Context, in io.Reader) error {
	defer u.stopSearch(true)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if quit := u.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle dispatches one command line and reports whether it was quit.
func (u *UCI) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	parts := strings.Fields(line)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "uci":
		u.handleUCI()
	case "isready":
		u.println("readyok")
	case "ucinewgame":
		u.handleNewGame(ctx)
	case "position":
		u.handlePosition(args)
	case "go":
		u.handleGo(ctx, args)
	case "stop":
		u.stopSearch(true)
	case "quit":
		return true
	case "setoption":
		u.handleSetOption(args)
	// Debug commands
	case "d":
		u.println(u.position.String())
	default:
		u.log.Debug().Str("cmd", line).Msg("ignoring unknown command")
	}
	return false
}

func (u *UCI) println(a ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintln(u.out, a...)
}

func (u *UCI) printf(format string, a ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format, a...)
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	def := arbiter.DefaultConfig()
	u.println("id name HybridBot")
	u.println("id author HybridBot Team")
	u.println()
	if u.tuner != nil {
		u.printf("option name Candidates type spin default %d min 1 max 10\n", def.Candidates)
		u.printf("option name PreciseSlice type spin default %d min 10 max 10000\n", def.PreciseSlice.Milliseconds())
		u.printf("option name MinFastSlice type spin default %d min 10 max 10000\n", def.MinFastSlice.Milliseconds())
	}
	u.println("uciok")
}

// handleNewGame resets the position and starts a new journal game.
func (u *UCI) handleNewGame(ctx context.Context) {
	u.stopSearch(false)
	u.position = board.NewPosition()
	u.gameID = newGameID()

	if u.newGame != nil {
		if err := u.newGame(ctx); err != nil {
			u.log.Error().Err(err).Msg("engine reset failed")
		}
	}
	u.log.Info().Str("game", u.gameID).Msg("new game")
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	movesAt := len(args)
	for i, arg := range args {
		if arg == "moves" {
			movesAt = i
			break
		}
	}
	var moves []string
	if movesAt < len(args) {
		moves = args[movesAt+1:]
	}

	var fen string
	switch args[0] {
	case "startpos":
		fen = board.StartFEN
	case "fen":
		fen = strings.Join(args[1:movesAt], " ")
	default:
		u.log.Warn().Strs("args", args).Msg("malformed position command")
		return
	}

	pos, err := board.ParseUCIPosition(fen, moves)
	if err != nil {
		u.log.Error().Err(err).Str("fen", fen).Strs("moves", moves).Msg("invalid position")
		return
	}
	u.position = pos
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	MoveTime  time.Duration
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
	HasClock  bool
}

// parseGoOptions parses "go" command arguments. Search limits the bot does
// not use (depth, nodes, infinite) are accepted and ignored.
func parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	millis := func(i int) time.Duration {
		ms, _ := strconv.Atoi(args[i])
		return time.Duration(ms) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			break
		}
		switch args[i] {
		case "movetime":
			opts.MoveTime = millis(i + 1)
			i++
		case "wtime":
			opts.WTime = millis(i + 1)
			opts.HasClock = true
			i++
		case "btime":
			opts.BTime = millis(i + 1)
			opts.HasClock = true
			i++
		case "winc":
			opts.WInc = millis(i + 1)
			i++
		case "binc":
			opts.BInc = millis(i + 1)
			i++
		case "movestogo":
			opts.MovesToGo, _ = strconv.Atoi(args[i+1])
			i++
		}
	}

	return opts
}

// clockFor returns the side to move's clock. Without wtime/btime the clock is
// unknown and treated as empty, which disables pauses.
func clockFor(opts GoOptions, side chess.Color) gamestate.Clock {
	if !opts.HasClock {
		return gamestate.Clock{}
	}
	if side == chess.White {
		return gamestate.Clock{Remaining: opts.WTime, Increment: opts.WInc}
	}
	return gamestate.Clock{Remaining: opts.BTime, Increment: opts.BInc}
}

// handleGo plays a turn in the background and prints bestmove when done.
func (u *UCI) handleGo(ctx context.Context, args []string) {
	u.stopSearch(false)

	opts := parseGoOptions(args)
	pos := u.position.Copy()
	turn := bot.Turn{
		GameID:   u.gameID,
		Position: pos,
		Clock:    clockFor(opts, pos.SideToMove()),
	}

	searchCtx, cancel := context.WithCancel(ctx)
	u.searching = true
	u.cancel = cancel
	u.searchDone = make(chan struct{})

	go func() {
		defer close(u.searchDone)
		defer cancel()

		move := u.play(searchCtx, turn)
		u.println("bestmove " + move.String())
	}()
}

// play runs the bot and never fails: on any error it answers with a random
// legal move so the game is not lost on time.
func (u *UCI) play(ctx context.Context, turn bot.Turn) board.Move {
	d, err := u.player.Play(ctx, turn)
	if err == nil {
		return d.Move
	}

	var protoErr *arbiter.ArbitrationProtocolError
	if ctx.Err() != nil {
		u.log.Info().Err(err).Msg("stopped before any candidate, playing fallback move")
	} else if errors.As(err, &protoErr) {
		u.log.Error().Err(err).Str("fen", turn.Position.FEN()).Msg("precise engine broke protocol")
	} else {
		u.log.Error().Err(err).Str("fen", turn.Position.FEN()).Msg("turn failed")
	}

	move, ferr := arbiter.Fallback(turn.Position)
	if ferr != nil {
		return board.NoMove
	}
	return move
}

// stopSearch waits for the running turn. With abort set, the search is
// cancelled first and the turn plays the best move found so far; a pause
// that already started still runs to completion.
func (u *UCI) stopSearch(abort bool) {
	if !u.searching {
		return
	}
	if abort && u.cancel != nil {
		u.cancel()
	}
	<-u.searchDone
	u.searching = false
	u.cancel = nil
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	// Format: setoption name <name> value <value>
	var name, value []string
	target := (*[]string)(nil)
	for _, arg := range args {
		switch arg {
		case "name":
			target = &name
		case "value":
			target = &value
		default:
			if target != nil {
				*target = append(*target, arg)
			}
		}
	}

	if u.tuner == nil {
		return
	}
	u.stopSearch(false)

	key := strings.ToLower(strings.Join(name, " "))
	val := strings.Join(value, " ")
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		u.log.Warn().Str("option", key).Str("value", val).Msg("option needs a positive integer")
		return
	}

	cfg := u.tuner.Config()
	switch key {
	case "candidates":
		cfg.Candidates = n
	case "preciseslice":
		cfg.PreciseSlice = time.Duration(n) * time.Millisecond
	case "minfastslice":
		cfg.MinFastSlice = time.Duration(n) * time.Millisecond
	default:
		u.log.Debug().Str("option", key).Msg("ignoring unknown option")
		return
	}
	u.tuner.SetConfig(cfg)
	u.log.Info().Str("option", key).Int("value", n).Msg("option set")
}
