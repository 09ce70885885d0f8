// Package simclient talks to the football simulation backend.
package simclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"touchline/internal/domain"
)

// Client is a read-only client for the simulation HTTP API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("simulation error: status=%d body=%s", e.StatusCode, e.Body)
}

// ID accepts a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Date is the simulation calendar as reported upstream. Absent fields stay nil.
type Date struct {
	Year    *int    `json:"year"`
	Month   *int    `json:"month"`
	Day     *int    `json:"day"`
	Weekday *string `json:"weekday"`
}

// Team is a partial team record. Absent fields stay nil so callers can
// tell "missing" from zero.
type Team struct {
	ID                *ID                    `json:"id"`
	Name              *string                `json:"name"`
	LeaguePosition    *int                   `json:"league_position"`
	LeagueName        *string                `json:"league_name"`
	RecentForm        *string                `json:"recent_form"`
	Balance           *int64                 `json:"balance"`
	WageBill          *int64                 `json:"wage_bill"`
	TransferBudget    *int64                 `json:"transfer_budget"`
	BoardConfidence   *int                   `json:"board_confidence"`
	BoardExpectations *string                `json:"board_expectations"`
	TeamMorale        *int                   `json:"team_morale"`
	UpcomingMatches   []domain.UpcomingMatch `json:"upcoming_matches"`
}

// EventsQuery filters RecentEvents. Zero values are omitted.
type EventsQuery struct {
	Since    string
	Limit    int
	TeamSlug string
}

func (c *Client) Date(ctx context.Context) (Date, error) {
	var resp Date
	err := c.do(ctx, "api/date", &resp)
	return resp, err
}

func (c *Client) Team(ctx context.Context, slug string) (Team, error) {
	var resp Team
	err := c.do(ctx, "api/teams/"+url.PathEscape(slug), &resp)
	return resp, err
}

// TeamAIState returns the AI-facing team fields (board, morale, form).
func (c *Client) TeamAIState(ctx context.Context, slug string) (Team, error) {
	var resp Team
	err := c.do(ctx, fmt.Sprintf("api/teams/%s/ai-state", url.PathEscape(slug)), &resp)
	return resp, err
}

// SquadState returns every player of a team with AI-relevant state. The
// backend answers either a bare array or {"players": [...]}.
func (c *Client) SquadState(ctx context.Context, slug string) ([]domain.PlayerState, error) {
	var raw json.RawMessage
	if err := c.do(ctx, fmt.Sprintf("api/teams/%s/squad-state", url.PathEscape(slug)), &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var players []domain.PlayerState
		if err := json.Unmarshal(raw, &players); err != nil {
			return nil, fmt.Errorf("decode squad state: %w", err)
		}
		return players, nil
	}
	var wrapped struct {
		Players []domain.PlayerState `json:"players"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode squad state: %w", err)
	}
	return wrapped.Players, nil
}

// PlayerState reads the live mood and trust of one player.
func (c *Client) PlayerState(ctx context.Context, id string) (domain.PlayerState, error) {
	var resp domain.PlayerState
	err := c.do(ctx, fmt.Sprintf("api/players/%s/state", url.PathEscape(id)), &resp)
	return resp, err
}

func (c *Client) RecentEvents(ctx context.Context, q EventsQuery) ([]domain.GameEvent, error) {
	params := url.Values{}
	if q.Since != "" {
		params.Set("since", q.Since)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.TeamSlug != "" {
		params.Set("team_slug", q.TeamSlug)
	}
	endpoint := "api/events/recent"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp struct {
		Events []domain.GameEvent `json:"events"`
	}
	err := c.do(ctx, endpoint, &resp)
	return resp.Events, err
}

// Raw fetches any simulation path and returns the body untouched.
func (c *Client) Raw(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, path, &raw)
	return raw, err
}

// GameState aggregates the date and the country list.
func (c *Client) GameState(ctx context.Context) (map[string]json.RawMessage, error) {
	date, err := c.Raw(ctx, "api/date")
	if err != nil {
		return nil, err
	}
	countries, err := c.Raw(ctx, "api/countries")
	if err != nil {
		return nil, err
	}
	return map[string]json.RawMessage{"date": date, "countries": countries}, nil
}

// Health reports whether the simulation answers its date endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.Raw(ctx, "api/date")
	return err
}

func (c *Client) do(ctx context.Context, endpoint string, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
