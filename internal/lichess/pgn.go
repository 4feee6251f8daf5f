package lichess

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// ErrPlayerNotInGame is returned when a game does not involve the player asked about.
var ErrPlayerNotInGame = errors.New("player not found in game")

var tagPair = regexp.MustCompile(`^\[(\w+)\s+"((?:[^"\\]|\\.)*)"\]$`)

// Outcome is a game result from one player's point of view.
type Outcome int

const (
	Unfinished Outcome = iota
	Win
	Draw
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	case Loss:
		return "loss"
	default:
		return "unfinished"
	}
}

// Game holds the tag pairs of one exported game.
type Game struct {
	Tags map[string]string
}

func (g Game) tag(key string) string { return g.Tags[key] }

// White returns the white player's name.
func (g Game) White() string { return g.tag("White") }

// Black returns the black player's name.
func (g Game) Black() string { return g.tag("Black") }

// Site returns the game URL.
func (g Game) Site() string { return g.tag("Site") }

// Result returns the PGN result: "1-0", "0-1", "1/2-1/2" or "*".
func (g Game) Result() string { return g.tag("Result") }

// Time returns the start time from UTCDate and UTCTime, zero if absent.
func (g Game) Time() time.Time {
	date, clock := g.tag("UTCDate"), g.tag("UTCTime")
	if date == "" || clock == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006.01.02 15:04:05", date+" "+clock)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isWhite reports whether player had white in this game.
func (g Game) isWhite(player string) (bool, error) {
	switch {
	case strings.EqualFold(g.White(), player):
		return true, nil
	case strings.EqualFold(g.Black(), player):
		return false, nil
	}
	return false, fmt.Errorf("%w: %s in %s vs %s (%s)", ErrPlayerNotInGame, player, g.White(), g.Black(), g.Site())
}

// OpponentTitle returns the title of player's opponent, empty when untitled.
func (g Game) OpponentTitle(player string) (string, error) {
	white, err := g.isWhite(player)
	if err != nil {
		return "", err
	}
	if white {
		return g.tag("BlackTitle"), nil
	}
	return g.tag("WhiteTitle"), nil
}

// Outcome returns the result from player's point of view.
func (g Game) Outcome(player string) (Outcome, error) {
	white, err := g.isWhite(player)
	if err != nil {
		return Unfinished, err
	}
	switch g.Result() {
	case "1/2-1/2":
		return Draw, nil
	case "1-0":
		if white {
			return Win, nil
		}
		return Loss, nil
	case "0-1":
		if white {
			return Loss, nil
		}
		return Win, nil
	}
	return Unfinished, nil
}

// valid uses the presence of both player tags as a proxy for a well-formed game.
func (g Game) valid() bool {
	return g.White() != "" && g.Black() != ""
}

// ReadGames reads the tag sections of a multi-game PGN stream. Movetext is
// skipped; a tag pair following movetext starts the next game. Games
// without both player tags are dropped.
func ReadGames(r io.Reader) ([]Game, error) {
	var games []Game
	cur := Game{Tags: map[string]string{}}
	inMoves := false

	flush := func() {
		if cur.valid() {
			games = append(games, cur)
		}
		cur = Game{Tags: map[string]string{}}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		m := tagPair.FindStringSubmatch(line)
		if m == nil {
			inMoves = true
			continue
		}
		if inMoves {
			flush()
			inMoves = false
		}
		cur.Tags[m[1]] = strings.ReplaceAll(m[2], `\"`, `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return games, nil
}
