// Command botstats reports how the bot scores against human opponents on
// Lichess and, given a journal, how it paced its moves.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/hybridbot/internal/config"
	"github.com/hailam/hybridbot/internal/lichess"
	"github.com/hailam/hybridbot/internal/storage"
)

func main() {
	user := flag.String("user", os.Getenv("LICHESS_BOT"), "Lichess bot account name")
	since := flag.String("since", "2023-01-01", "only games played on or after this date (YYYY-MM-DD)")
	token := flag.String("token", os.Getenv("LICHESS_TOKEN"), "Lichess API token")
	journalDir := flag.String("journal", "", "also report pacing statistics from this journal directory")
	flag.Parse()

	log := config.NewLogger(os.Stderr, zerolog.InfoLevel, "console")

	if *user == "" && *journalDir == "" {
		fmt.Fprintln(os.Stderr, "botstats: need -user or -journal")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *user != "" {
		from, err := time.Parse(time.DateOnly, *since)
		if err != nil {
			log.Fatal().Err(err).Str("since", *since).Msg("invalid date")
		}
		client := lichess.NewClient(lichess.WithToken(*token))
		if err := reportResults(ctx, os.Stdout, client, *user, from); err != nil {
			log.Fatal().Err(err).Msg("results report failed")
		}
	}

	if *journalDir != "" {
		journal, err := storage.Open(*journalDir, log)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open journal")
		}
		defer journal.Close()
		if err := reportPacing(os.Stdout, journal); err != nil {
			log.Error().Err(err).Msg("pacing report failed")
		}
	}
}

func reportResults(ctx context.Context, w io.Writer, client *lichess.Client, user string, since time.Time) error {
	games, err := client.UserGames(ctx, user, since)
	if err != nil {
		return err
	}
	humans, err := lichess.AgainstHumans(games, user)
	if err != nil {
		return err
	}
	s, err := lichess.Summarize(humans, user)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s since %s: %d games, %d against humans\n", user, since.Format(time.DateOnly), len(games), len(humans))
	fmt.Fprintf(w, "  +%d =%d -%d (%d unfinished), score %.1f%%\n", s.Wins, s.Draws, s.Losses, s.Unfinished, s.Score()*100)
	return nil
}

func reportPacing(w io.Writer, journal *storage.Journal) error {
	stats, err := journal.Stats()
	if err != nil {
		return err
	}
	games, err := journal.Games()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "journal: %d decisions over %d games\n", stats.Decisions, len(games))
	fmt.Fprintf(w, "  mean pause %v, longest %v, search time %v\n", stats.MeanPause(), stats.LongestPause, stats.TotalSearch)
	fmt.Fprintf(w, "  fallback moves %d (%.1f%%)\n", stats.Fallbacks, stats.FallbackRate())

	rules := make([]string, 0, len(stats.ByRule))
	for rule := range stats.ByRule {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	for _, rule := range rules {
		fmt.Fprintf(w, "  %-12s %d\n", rule, stats.ByRule[rule])
	}
	return nil
}
