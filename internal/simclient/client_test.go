package simclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchline/internal/simclient"
)

func newFakeSim(t *testing.T, routes map[string]string) *simclient.Client {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return simclient.New(srv.URL+"/", time.Second)
}

func TestTeamKeepsMissingFieldsNil(t *testing.T) {
	c := newFakeSim(t, map[string]string{
		"/api/teams/juventus": `{"id": 42, "name": "Juventus", "league_position": 0}`,
	})
	team, err := c.Team(context.Background(), "juventus")
	require.NoError(t, err)
	require.NotNil(t, team.ID)
	assert.Equal(t, simclient.ID("42"), *team.ID)
	require.NotNil(t, team.LeaguePosition)
	assert.Equal(t, 0, *team.LeaguePosition)
	assert.Nil(t, team.Balance)
	assert.Nil(t, team.BoardExpectations)
}

func TestDatePartial(t *testing.T) {
	c := newFakeSim(t, map[string]string{"/api/date": `{"year": 2025, "month": 1}`})
	d, err := c.Date(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d.Year)
	assert.Equal(t, 2025, *d.Year)
	assert.Nil(t, d.Day)
	assert.Nil(t, d.Weekday)
}

func TestPlayerState(t *testing.T) {
	c := newFakeSim(t, map[string]string{
		"/api/players/7/state": `{"id": "7", "name": "Marco Rossi", "mood": 35, "trustInManager": 40}`,
	})
	p, err := c.PlayerState(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Marco Rossi", p.Name)
	assert.Equal(t, 35, p.Mood)
	assert.Equal(t, 40, p.TrustInManager)
}

func TestSquadStateShapes(t *testing.T) {
	c := newFakeSim(t, map[string]string{
		"/api/teams/a/squad-state": `[{"id": "1", "name": "Marco Rossi"}]`,
		"/api/teams/b/squad-state": `{"players": [{"id": "2", "name": "Paulo Dybala"}, {"id": "3"}]}`,
	})
	a, err := c.SquadState(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, "Marco Rossi", a[0].Name)

	b, err := c.SquadState(context.Background(), "b")
	require.NoError(t, err)
	assert.Len(t, b, 2)
}

func TestRecentEventsQuery(t *testing.T) {
	var query string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events/recent", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"events": [{"id": "e1", "type": "match_result"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := simclient.New(srv.URL, time.Second)
	events, err := c.RecentEvents(context.Background(), simclient.EventsQuery{Limit: 5, TeamSlug: "juventus"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "match_result", events[0].Type)
	assert.Equal(t, "limit=5&team_slug=juventus", query)
}

func TestAPIErrorOnNon2xx(t *testing.T) {
	c := newFakeSim(t, map[string]string{})
	_, err := c.Team(context.Background(), "nobody")
	var apiErr *simclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Error(t, c.Health(context.Background()))
}

func TestGameStateAggregates(t *testing.T) {
	c := newFakeSim(t, map[string]string{
		"/api/date":      `{"year": 2024}`,
		"/api/countries": `[{"slug": "italy"}]`,
	})
	state, err := c.GameState(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"year": 2024}`, string(state["date"]))
	assert.JSONEq(t, `[{"slug": "italy"}]`, string(state["countries"]))
}
