// Package engine talks to external UCI chess engines. The bot never searches
// itself: a neural engine proposes candidates and Stockfish picks among them.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/hybridbot/internal/board"
)

const (
	handshakeTimeout = 30 * time.Second // lc0 loads its network during the handshake
	drainTimeout     = 2 * time.Second  // wait for bestmove after sending stop
	quitTimeout      = 2 * time.Second  // wait for exit after quit before killing
)

// Client drives one UCI engine process. Calls are serialized; the engine is
// never asked two things at once.
type Client struct {
	name  string
	w     io.Writer
	in    io.Closer
	proc  *exec.Cmd
	lines chan string
	done  chan struct{}
	quit  chan struct{} // closed by Close; output is discarded from then on
	log   zerolog.Logger

	mu      sync.Mutex
	id      string
	multiPV int
	closed  bool
}

// Start launches the engine binary at path, completes the UCI handshake and
// applies options with setoption.
func Start(ctx context.Context, name, path string, args []string, options map[string]string, log zerolog.Logger) (*Client, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &OpError{Engine: name, Op: "start", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &OpError{Engine: name, Op: "start", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &OpError{Engine: name, Op: "start", Err: err}
	}

	c := newClient(name, stdout, stdin, log)
	c.proc = cmd
	if err := c.init(ctx, options); err != nil {
		c.Close()
		return nil, err
	}
	c.log.Info().Str("engine", name).Str("id", c.id).Str("path", path).Msg("engine ready")
	return c, nil
}

func newClient(name string, r io.Reader, w io.WriteCloser, log zerolog.Logger) *Client {
	c := &Client{
		name:    name,
		w:       w,
		in:      w,
		lines:   make(chan string, 256),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
		log:     log,
		multiPV: 1,
	}
	go c.readLoop(r)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	defer close(c.done)
	defer close(c.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case c.lines <- line:
		case <-c.quit:
		}
	}
}

// Name returns the name the client was started with.
func (c *Client) Name() string {
	return c.name
}

// ID returns the engine's self-reported name from "id name".
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) init(ctx context.Context, options map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write("uci"); err != nil {
		return &OpError{Engine: c.name, Op: "uci", Err: err}
	}
	_, err := c.readUntil(ctx, "uciok", func(line string) {
		if rest, ok := strings.CutPrefix(line, "id name "); ok {
			c.id = rest
		}
	})
	if err != nil {
		return &OpError{Engine: c.name, Op: "uci", Err: err}
	}

	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.write(fmt.Sprintf("setoption name %s value %s", name, options[name])); err != nil {
			return &OpError{Engine: c.name, Op: "setoption", Err: err}
		}
		if strings.EqualFold(name, "MultiPV") {
			fmt.Sscan(options[name], &c.multiPV)
		}
	}

	return c.sync(ctx, "isready")
}

// NewGame tells the engine a new game starts.
func (c *Client) NewGame(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("ucinewgame"); err != nil {
		return &OpError{Engine: c.name, Op: "ucinewgame", Err: err}
	}
	return c.sync(ctx, "ucinewgame")
}

// sync sends isready and waits for readyok.
func (c *Client) sync(ctx context.Context, op string) error {
	if err := c.write("isready"); err != nil {
		return &OpError{Engine: c.name, Op: op, Err: err}
	}
	if _, err := c.readUntil(ctx, "readyok", nil); err != nil {
		return &OpError{Engine: c.name, Op: op, Err: err}
	}
	return nil
}

// Candidates runs a MultiPV search for budget and returns the first move of
// each principal variation, best first. An engine that reports no ranked
// lines yields its bestmove alone.
func (c *Client) Candidates(ctx context.Context, pos *board.Position, budget time.Duration, n int) ([]board.Move, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 1 {
		n = 1
	}
	if n != c.multiPV {
		if err := c.send(fmt.Sprintf("setoption name MultiPV value %d", n)); err != nil {
			return nil, &OpError{Engine: c.name, Op: "candidates", Err: err}
		}
		c.multiPV = n
	}
	if err := c.send(positionCommand(pos)); err != nil {
		return nil, &OpError{Engine: c.name, Op: "candidates", Err: err}
	}

	lines := rankedLines{}
	best, err := c.search(ctx, "go movetime "+millis(budget), lines.add)
	if err != nil {
		return nil, &OpError{Engine: c.name, Op: "candidates", Err: err}
	}

	ucis := lines.firstMoves(n)
	if len(ucis) == 0 && isMove(best) {
		ucis = []string{best}
	}
	if top, ok := lines[1]; ok {
		c.log.Debug().
			Str("engine", c.name).
			Int("depth", top.Depth).
			Int("cp", top.Score.CP).
			Int("mate", top.Score.Mate).
			Uint64("nodes", top.Nodes).
			Strs("candidates", ucis).
			Msg("analysis finished")
	}

	moves := make([]board.Move, 0, len(ucis))
	for _, s := range ucis {
		m, err := board.ParseMove(s)
		if err != nil {
			c.log.Warn().Str("engine", c.name).Str("move", s).Err(err).Msg("unparsable candidate")
			continue
		}
		moves = append(moves, m)
	}
	return moves, nil
}

// Choose searches for budget restricted to candidates with searchmoves.
func (c *Client) Choose(ctx context.Context, pos *board.Position, budget time.Duration, candidates []board.Move) (board.Move, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(positionCommand(pos)); err != nil {
		return board.NoMove, &OpError{Engine: c.name, Op: "choose", Err: err}
	}

	goCmd := "go movetime " + millis(budget)
	if len(candidates) > 0 {
		goCmd += " searchmoves " + strings.Join(board.MoveStrings(candidates), " ")
	}
	best, err := c.search(ctx, goCmd, nil)
	if err != nil {
		return board.NoMove, &OpError{Engine: c.name, Op: "choose", Err: err}
	}
	if !isMove(best) {
		return board.NoMove, &OpError{Engine: c.name, Op: "choose", Err: ErrNoBestMove}
	}

	m, err := board.ParseMove(best)
	if err != nil {
		return board.NoMove, &OpError{Engine: c.name, Op: "choose", Err: err}
	}
	return m, nil
}

// search sends a go command and reads until bestmove. If ctx ends first the
// search is stopped and its bestmove drained so the next command starts clean.
func (c *Client) search(ctx context.Context, goCmd string, onInfo func(Info)) (string, error) {
	if err := c.write(goCmd); err != nil {
		return "", err
	}

	line, err := c.readUntil(ctx, "bestmove", func(line string) {
		if onInfo == nil {
			return
		}
		if info, ok := ParseInfo(line); ok {
			onInfo(info)
		}
	})
	if err == nil {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", nil
		}
		return fields[1], nil
	}
	if errors.Is(err, ErrEngineClosed) {
		return "", err
	}

	c.log.Debug().Str("engine", c.name).Err(err).Msg("search abandoned, stopping engine")
	if werr := c.write("stop"); werr == nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if _, derr := c.readUntil(drainCtx, "bestmove", nil); derr != nil {
			c.log.Warn().Str("engine", c.name).Err(derr).Msg("engine did not acknowledge stop")
		}
	}
	return "", err
}

// readUntil consumes lines until one starts with token. Every line, including
// the matching one, is passed to onLine when it is set.
func (c *Client) readUntil(ctx context.Context, token string, onLine func(string)) (string, error) {
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return "", ErrEngineClosed
			}
			if onLine != nil {
				onLine(line)
			}
			if first, _, _ := strings.Cut(line, " "); first == token {
				return line, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (c *Client) send(line string) error {
	if c.closed {
		return ErrEngineClosed
	}
	return c.write(line)
}

func (c *Client) write(line string) error {
	c.log.Debug().Str("engine", c.name).Str("cmd", line).Msg("send")
	if _, err := io.WriteString(c.w, line+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", line, err)
	}
	return nil
}

// Close asks the engine to quit and waits for it, killing the process if it
// does not exit in time.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.quit)

	_ = c.write("quit")
	c.in.Close()

	select {
	case <-c.done:
	case <-time.After(quitTimeout):
		if c.proc != nil && c.proc.Process != nil {
			c.log.Warn().Str("engine", c.name).Msg("engine ignored quit, killing")
			c.proc.Process.Kill()
		}
	}

	if c.proc == nil {
		return nil
	}
	<-c.done
	if err := c.proc.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return &OpError{Engine: c.name, Op: "close", Err: err}
	}
	return nil
}

func positionCommand(pos *board.Position) string {
	fen, moves := pos.UCI()
	cmd := "position fen " + fen
	if len(moves) > 0 {
		cmd += " moves " + strings.Join(moves, " ")
	}
	return cmd
}

func millis(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprint(ms)
}

func isMove(s string) bool {
	return s != "" && s != "(none)" && s != "0000"
}
