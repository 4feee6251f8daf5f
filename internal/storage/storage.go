package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Storage keys
const (
	prefixDecision = "decision/"
	keyStats       = "stats"
)

// ErrInvalidGameID is returned for game IDs that cannot be used in a key.
var ErrInvalidGameID = errors.New("storage: invalid game id")

// Record is one journaled turn.
type Record struct {
	GameID      string        `json:"game_id"`
	Ply         int           `json:"ply"`
	FEN         string        `json:"fen"`
	Move        string        `json:"move"`
	Candidates  []string      `json:"candidates,omitempty"`
	Fallback    bool          `json:"fallback"`
	DrawOffered bool          `json:"draw_offered"`
	Remaining   time.Duration `json:"remaining"`
	Budget      time.Duration `json:"budget"`
	Searched    time.Duration `json:"searched"`
	Pause       time.Duration `json:"pause"`
	Rule        string        `json:"rule"`
	Complexity  float64       `json:"complexity"`
	Time        time.Time     `json:"time"`
}

// Stats aggregates every journaled turn.
type Stats struct {
	Decisions    int            `json:"decisions"`
	Fallbacks    int            `json:"fallbacks"`
	ByRule       map[string]int `json:"by_rule"`
	TotalPause   time.Duration  `json:"total_pause"`
	TotalSearch  time.Duration  `json:"total_search"`
	LongestPause time.Duration  `json:"longest_pause"`
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{ByRule: make(map[string]int)}
}

// MeanPause returns the average pause per decision.
func (s *Stats) MeanPause() time.Duration {
	if s.Decisions == 0 {
		return 0
	}
	return s.TotalPause / time.Duration(s.Decisions)
}

// FallbackRate returns the share of turns played by the fallback, in percent.
func (s *Stats) FallbackRate() float64 {
	if s.Decisions == 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.Decisions) * 100
}

func (s *Stats) add(r Record) {
	s.Decisions++
	if r.Fallback {
		s.Fallbacks++
	}
	s.ByRule[r.Rule]++
	s.TotalPause += r.Pause
	s.TotalSearch += r.Searched
	if r.Pause > s.LongestPause {
		s.LongestPause = r.Pause
	}
}

// remove undoes add for a record that is being overwritten. LongestPause is
// left as is.
func (s *Stats) remove(r Record) {
	s.Decisions--
	if r.Fallback {
		s.Fallbacks--
	}
	s.ByRule[r.Rule]--
	if s.ByRule[r.Rule] <= 0 {
		delete(s.ByRule, r.Rule)
	}
	s.TotalPause -= r.Pause
	s.TotalSearch -= r.Searched
}

// Journal wraps BadgerDB for the decision journal.
type Journal struct {
	db *badger.DB
}

// Open opens the journal in dir, or in JournalDir when dir is empty.
func Open(dir string, log zerolog.Logger) (*Journal, error) {
	if dir == "" {
		var err error
		if dir, err = JournalDir(); err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = badgerLogger{log: log.With().Str("component", "badger").Logger()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dir, err)
	}
	return &Journal{db: db}, nil
}

// OpenInMemory opens a journal that lives only as long as the process.
func OpenInMemory() (*Journal, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func decisionKey(gameID string, ply int) []byte {
	return []byte(fmt.Sprintf("%s%s/%05d", prefixDecision, gameID, ply))
}

func validGameID(gameID string) bool {
	return gameID != "" && !strings.Contains(gameID, "/")
}

// Save stores rec and folds it into the statistics. Saving the same game and
// ply twice replaces the earlier record.
func (j *Journal) Save(rec Record) error {
	if !validGameID(rec.GameID) {
		return fmt.Errorf("%w: %q", ErrInvalidGameID, rec.GameID)
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := decisionKey(rec.GameID, rec.Ply)

	return j.db.Update(func(txn *badger.Txn) error {
		stats, err := loadStats(txn)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		switch {
		case err == nil:
			var old Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &old)
			}); err != nil {
				return err
			}
			stats.remove(old)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		stats.add(rec)

		statsData, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(keyStats), statsData)
	})
}

// Game returns the records of one game ordered by ply.
func (j *Journal) Game(gameID string) ([]Record, error) {
	if !validGameID(gameID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}

	var records []Record
	err := j.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixDecision + gameID + "/")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Games returns the IDs of all journaled games, sorted.
func (j *Journal) Games() ([]string, error) {
	seen := make(map[string]bool)
	err := j.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixDecision)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), prefixDecision)
			if id, _, ok := strings.Cut(rest, "/"); ok {
				seen[id] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Stats loads the aggregated statistics, empty if nothing was journaled.
func (j *Journal) Stats() (*Stats, error) {
	var stats *Stats
	err := j.db.View(func(txn *badger.Txn) error {
		var err error
		stats, err = loadStats(txn)
		return err
	})
	return stats, err
}

func loadStats(txn *badger.Txn) (*Stats, error) {
	stats := NewStats()

	item, err := txn.Get([]byte(keyStats))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return stats, nil // Use empty stats
	}
	if err != nil {
		return nil, err
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, stats)
	})
	if stats.ByRule == nil {
		stats.ByRule = make(map[string]int)
	}
	return stats, err
}

// badgerLogger routes badger's own logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(strings.TrimSpace(format), args...)
}
