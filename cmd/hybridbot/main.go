// Command hybridbot is a UCI engine that picks its moves with lc0 and
// Stockfish and paces them like a human player.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/hybridbot/internal/arbiter"
	"github.com/hailam/hybridbot/internal/bot"
	"github.com/hailam/hybridbot/internal/config"
	"github.com/hailam/hybridbot/internal/engine"
	"github.com/hailam/hybridbot/internal/storage"
	"github.com/hailam/hybridbot/internal/uci"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	// Start CPU profiling if requested (via flag or environment variable)
	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", cfg.CPUProfile).Msg("CPU profiling enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("hybridbot stopped")
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

// preciseEngine is the final-choice stage and its lifecycle.
type preciseEngine interface {
	arbiter.MoveChooser
	NewGame(ctx context.Context) error
	Close() error
}

func startPrecise(ctx context.Context, cfg config.Config, log zerolog.Logger) (preciseEngine, error) {
	if cfg.PreciseMode == config.PreciseUCI {
		c, err := engine.Start(ctx, "stockfish", cfg.PreciseEngine, nil, cfg.PreciseOptions(), log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	s, err := engine.StartStockfish(cfg.PreciseEngine, cfg.PreciseOptions(), log)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	var (
		fast    *engine.Client
		precise preciseEngine
	)

	// lc0 spends seconds loading its network; start both engines at once
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fast, err = engine.Start(gctx, "lc0", cfg.FastEngine, cfg.FastArgs(), cfg.FastOptions(), log)
		return err
	})
	g.Go(func() error {
		var err error
		precise, err = startPrecise(gctx, cfg, log)
		return err
	})
	err := g.Wait()
	if fast != nil {
		defer fast.Close()
	}
	if precise != nil {
		defer precise.Close()
	}
	if err != nil {
		return err
	}
	log.Info().Str("fast", fast.ID()).Str("precise_mode", cfg.PreciseMode).Msg("engines started")

	arb := arbiter.New(fast, precise, cfg.Arbiter, log)

	opts := []bot.Option{bot.WithLogger(log)}
	if !cfg.NoJournal {
		journal, err := storage.Open(cfg.JournalDir, log)
		if err != nil {
			log.Warn().Err(err).Msg("journal unavailable, decisions will not be recorded")
		} else {
			defer journal.Close()
			opts = append(opts, bot.WithJournal(journal))
		}
	}
	b := bot.New(arb, opts...)

	newGame := func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return fast.NewGame(gctx) })
		g.Go(func() error { return precise.NewGame(gctx) })
		return g.Wait()
	}

	protocol := uci.New(b, os.Stdout,
		uci.WithTuner(arb),
		uci.WithNewGame(newGame),
		uci.WithLogger(log),
	)
	return protocol.Run(ctx, os.Stdin)
}
