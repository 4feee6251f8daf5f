// Package lichess fetches the bot's games from Lichess and summarizes how it
// fares against human opponents.
package lichess

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://lichess.org"

// StatusError is returned for non-200 API responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lichess: unexpected status %s", e.Status)
}

// Client uses the Lichess games export API.
// Note: exports are rate limited; one request at a time per IP.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another server, such as a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithToken sends an API token, which raises the export rate limit.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a new Lichess API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserGames downloads the games of user played since the given time, with
// tags only: no clocks, evals or opening names.
func (c *Client) UserGames(ctx context.Context, user string, since time.Time) ([]Game, error) {
	q := url.Values{}
	q.Set("tags", "true")
	q.Set("clocks", "false")
	q.Set("evals", "false")
	q.Set("opening", "false")
	if !since.IsZero() {
		q.Set("since", strconv.FormatInt(since.UnixMilli(), 10))
	}
	endpoint := fmt.Sprintf("%s/api/games/user/%s?%s", c.baseURL, url.PathEscape(user), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-chess-pgn")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lichess: fetch games of %s: %w", user, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	games, err := ReadGames(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lichess: read games of %s: %w", user, err)
	}
	return games, nil
}

// AgainstHumans keeps the games where player's opponent is not a bot account.
func AgainstHumans(games []Game, player string) ([]Game, error) {
	var humans []Game
	for _, g := range games {
		title, err := g.OpponentTitle(player)
		if err != nil {
			return nil, err
		}
		if title != "BOT" {
			humans = append(humans, g)
		}
	}
	return humans, nil
}

// Summary counts results from one player's point of view.
type Summary struct {
	Games      int
	Wins       int
	Draws      int
	Losses     int
	Unfinished int
}

// Score returns points per finished game, draws counting half, in [0, 1].
func (s Summary) Score() float64 {
	finished := s.Wins + s.Draws + s.Losses
	if finished == 0 {
		return 0
	}
	return (float64(s.Wins) + float64(s.Draws)/2) / float64(finished)
}

// Summarize tallies the results of games for player.
func Summarize(games []Game, player string) (Summary, error) {
	var s Summary
	for _, g := range games {
		o, err := g.Outcome(player)
		if err != nil {
			return Summary{}, err
		}
		s.Games++
		switch o {
		case Win:
			s.Wins++
		case Draw:
			s.Draws++
		case Loss:
			s.Losses++
		default:
			s.Unfinished++
		}
	}
	return s, nil
}
