package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"
	"github.com/rs/zerolog"

	"github.com/hailam/hybridbot/internal/board"
)

// Stockfish is a move chooser backed by notnil/chess/uci.
type Stockfish struct {
	eng *uci.Engine
	log zerolog.Logger

	mu sync.Mutex // held for the whole engine round trip
}

// StartStockfish launches the engine at path and applies options.
func StartStockfish(path string, options map[string]string, log zerolog.Logger) (*Stockfish, error) {
	eng, err := uci.New(path)
	if err != nil {
		return nil, &OpError{Engine: "stockfish", Op: "start", Err: err}
	}

	cmds := []uci.Cmd{uci.CmdUCI, uci.CmdIsReady}
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmds = append(cmds, uci.CmdSetOption{Name: name, Value: options[name]})
	}
	cmds = append(cmds, uci.CmdUCINewGame, uci.CmdIsReady)

	if err := eng.Run(cmds...); err != nil {
		eng.Close()
		return nil, &OpError{Engine: "stockfish", Op: "uci", Err: err}
	}

	log.Info().Str("engine", "stockfish").Str("path", path).Msg("engine ready")
	return &Stockfish{eng: eng, log: log}, nil
}

// NewGame resets the engine between games. ctx is only checked before the
// reset; the library call itself cannot be interrupted.
func (s *Stockfish) NewGame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Engine: "stockfish", Op: "ucinewgame", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.Run(uci.CmdUCINewGame, uci.CmdIsReady); err != nil {
		return &OpError{Engine: "stockfish", Op: "ucinewgame", Err: err}
	}
	return nil
}

type chooseResult struct {
	move *chess.Move
	err  error
}

// Choose searches for budget restricted to candidates. The library call cannot
// be interrupted, so when ctx ends first Choose returns immediately and the
// search finishes in the background; the next call waits for it.
func (s *Stockfish) Choose(ctx context.Context, pos *board.Position, budget time.Duration, candidates []board.Move) (board.Move, error) {
	searchMoves := make([]*chess.Move, 0, len(candidates))
	for _, m := range candidates {
		cm, err := pos.ChessMove(m)
		if err != nil {
			return board.NoMove, &OpError{Engine: "stockfish", Op: "choose", Err: err}
		}
		searchMoves = append(searchMoves, cm)
	}

	cmdPos := uci.CmdPosition{Position: pos.Start(), Moves: pos.ChessMoves()}
	cmdGo := uci.CmdGo{MoveTime: budget, SearchMoves: searchMoves}

	result := make(chan chooseResult, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.eng.Run(cmdPos, cmdGo); err != nil {
			result <- chooseResult{err: err}
			return
		}
		result <- chooseResult{move: s.eng.SearchResults().BestMove}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return board.NoMove, &OpError{Engine: "stockfish", Op: "choose", Err: r.err}
		}
		if r.move == nil {
			return board.NoMove, &OpError{Engine: "stockfish", Op: "choose", Err: ErrNoBestMove}
		}
		return board.MoveFromChess(r.move), nil
	case <-ctx.Done():
		s.log.Warn().Dur("budget", budget).Msg("stockfish search overran its deadline")
		return board.NoMove, &OpError{Engine: "stockfish", Op: "choose", Err: ctx.Err()}
	}
}

// Close shuts the engine down.
func (s *Stockfish) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.Close()
}
