// Package config loads the bot's settings from flags with environment
// fallbacks and builds its logger.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/hybridbot/internal/arbiter"
)

// Environment variables consulted when a flag is not given.
const (
	EnvFastEngine    = "HYBRIDBOT_LC0"
	EnvFastWeights   = "HYBRIDBOT_WEIGHTS"
	EnvPreciseEngine = "HYBRIDBOT_STOCKFISH"
	EnvPreciseMode   = "HYBRIDBOT_PRECISE_MODE"
	EnvCandidates    = "HYBRIDBOT_CANDIDATES"
	EnvJournalDir    = "HYBRIDBOT_JOURNAL"
	EnvLogLevel      = "HYBRIDBOT_LOG_LEVEL"
	EnvLogFormat     = "HYBRIDBOT_LOG_FORMAT"
	EnvCPUProfile    = "CPUPROFILE"
)

// Default engine locations, as laid out in the bot's container image.
const (
	DefaultFastEngine    = "/app/engines/lc0"
	DefaultPreciseEngine = "/app/engines/stockfish"
)

// How the precise engine is driven.
const (
	PreciseLibrary = "library" // notnil/chess/uci wrapper
	PreciseUCI     = "uci"     // the bot's own UCI client, which can stop a search
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	FastEngine    string // lc0 binary proposing candidates
	FastWeights   string // network file handed to lc0, e.g. a maia net
	FastThreads   int
	PreciseEngine string // stockfish binary choosing among them
	PreciseMode   string // PreciseLibrary or PreciseUCI
	PreciseHashMB int

	Arbiter arbiter.Config

	JournalDir string // empty means the platform data directory
	NoJournal  bool

	LogLevel   zerolog.Level
	LogFormat  string // "console" or "json"
	CPUProfile string
}

// FastArgs returns the command line arguments for the fast engine.
func (c Config) FastArgs() []string {
	if c.FastWeights == "" {
		return nil
	}
	return []string{"--weights=" + c.FastWeights}
}

// FastOptions returns setoption values for the fast engine.
func (c Config) FastOptions() map[string]string {
	return map[string]string{
		"Threads": strconv.Itoa(c.FastThreads),
		"MultiPV": strconv.Itoa(c.Arbiter.Candidates),
	}
}

// PreciseOptions returns setoption values for the precise engine.
func (c Config) PreciseOptions() map[string]string {
	return map[string]string{
		"Hash": strconv.Itoa(c.PreciseHashMB),
	}
}

// Load parses args (without the program name). getenv supplies fallbacks for
// flags that are not set; pass os.Getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	def := arbiter.DefaultConfig()

	defCandidates, err := strconv.Atoi(env(EnvCandidates, strconv.Itoa(def.Candidates)))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, EnvCandidates, err)
	}

	var cfg Config
	var level string

	fs := flag.NewFlagSet("hybridbot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.FastEngine, "lc0", env(EnvFastEngine, DefaultFastEngine), "path to the candidate engine (lc0)")
	fs.StringVar(&cfg.FastWeights, "weights", env(EnvFastWeights, ""), "network weights for the candidate engine")
	fs.IntVar(&cfg.FastThreads, "lc0-threads", 2, "candidate engine threads")
	fs.StringVar(&cfg.PreciseEngine, "stockfish", env(EnvPreciseEngine, DefaultPreciseEngine), "path to the precise engine (stockfish)")
	fs.StringVar(&cfg.PreciseMode, "precise-mode", env(EnvPreciseMode, PreciseLibrary), "precise engine driver (library, uci)")
	fs.IntVar(&cfg.PreciseHashMB, "hash", 64, "precise engine hash size in MB")
	fs.IntVar(&cfg.Arbiter.Candidates, "candidates", defCandidates, "candidate moves requested from the fast engine")
	fs.DurationVar(&cfg.Arbiter.PreciseSlice, "precise-slice", def.PreciseSlice, "time reserved for the precise engine")
	fs.DurationVar(&cfg.Arbiter.MinFastSlice, "min-fast-slice", def.MinFastSlice, "minimum time for the fast engine")
	fs.DurationVar(&cfg.Arbiter.Grace, "grace", def.Grace, "time an engine may overrun its slice before it is abandoned")
	fs.StringVar(&cfg.JournalDir, "journal", env(EnvJournalDir, ""), "decision journal directory")
	fs.BoolVar(&cfg.NoJournal, "no-journal", false, "do not journal decisions")
	fs.StringVar(&level, "log-level", env(EnvLogLevel, "info"), "log level (trace, debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", env(EnvLogFormat, "console"), "log format (console, json)")
	fs.StringVar(&cfg.CPUProfile, "cpuprofile", env(EnvCPUProfile, ""), "write cpu profile to file")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return Config{}, fmt.Errorf("%w: log level: %v", ErrInvalid, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the bot cannot run with.
func (c Config) Validate() error {
	switch {
	case c.FastEngine == "":
		return fmt.Errorf("%w: candidate engine path is empty", ErrInvalid)
	case c.PreciseEngine == "":
		return fmt.Errorf("%w: precise engine path is empty", ErrInvalid)
	case c.Arbiter.Candidates < 1:
		return fmt.Errorf("%w: candidates must be at least 1, got %d", ErrInvalid, c.Arbiter.Candidates)
	case c.Arbiter.PreciseSlice <= 0:
		return fmt.Errorf("%w: precise slice must be positive, got %v", ErrInvalid, c.Arbiter.PreciseSlice)
	case c.Arbiter.MinFastSlice <= 0:
		return fmt.Errorf("%w: min fast slice must be positive, got %v", ErrInvalid, c.Arbiter.MinFastSlice)
	case c.Arbiter.Grace < 0:
		return fmt.Errorf("%w: grace must not be negative, got %v", ErrInvalid, c.Arbiter.Grace)
	case c.FastThreads < 1 || c.PreciseHashMB < 1:
		return fmt.Errorf("%w: threads and hash must be at least 1", ErrInvalid)
	case c.PreciseMode != PreciseLibrary && c.PreciseMode != PreciseUCI:
		return fmt.Errorf("%w: precise mode %q", ErrInvalid, c.PreciseMode)
	case c.LogFormat != "console" && c.LogFormat != "json":
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger writing to w. Stdout carries the UCI
// protocol, so w is normally stderr.
func NewLogger(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
