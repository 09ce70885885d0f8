package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchline/internal/config"
	"touchline/internal/domain"
	"touchline/internal/engine"
	"touchline/internal/observability"
	"touchline/internal/simclient"
)

type testServer struct {
	URL    string
	Engine *engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

// newTestServer serves the API without a simulation backend unless simURL
// is given. mutate adjusts the handler config before it is built.
func newTestServer(t *testing.T, simURL string, mutate ...func(*Config)) (*testServer, func()) {
	t.Helper()
	cfg := config.Default()
	logger := observability.NewLogger(io.Discard, "error", "text")
	var (
		e    *engine.Engine
		game GameProxy
	)
	if simURL != "" {
		sim := simclient.New(simURL, 2*time.Second)
		e = engine.New(cfg, sim, logger)
		game = sim
	} else {
		e = engine.New(cfg, nil, logger)
	}
	var (
		mu    sync.Mutex
		clock = time.Date(2024, 9, 15, 10, 0, 0, 0, time.UTC)
	)
	e.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	scfg := Config{Engine: e, Game: game, BasePath: "/api", HeartbeatInterval: time.Hour, Logger: logger}
	for _, fn := range mutate {
		fn(&scfg)
	}
	handler, err := New(scfg)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String() + "/api",
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope %s: %v", data, err)
	}
	return env.Error.Code
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	health := decode[HealthResponse](t, data)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "disabled", health.Simulation)
	assert.False(t, health.Timestamp.IsZero())
	assert.Nil(t, health.LastRefresh)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodOptions, srv.URL+"/agent/act", nil, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestInboxFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/inbox", map[string]any{
		"title":            "Marco wants a word",
		"preview":          "He is unhappy about playing time",
		"icon":             "player",
		"priority":         "high",
		"characterId":      "marco-rossi",
		"conversationType": "player_unhappy",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	first := decode[domain.Notification](t, data)
	assert.Equal(t, "start_conversation", first.ActionType)
	assert.Equal(t, domain.GameDate{Year: 2024, Month: 9, Day: 15, Weekday: "Sunday"}, first.GameDate)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/inbox", map[string]any{"title": "Board review"}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	second := decode[domain.Notification](t, data)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/inbox", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	inbox := decode[InboxResponse](t, data)
	require.Len(t, inbox.Notifications, 2)
	assert.Equal(t, second.ID, inbox.Notifications[0].ID)
	assert.Equal(t, 2, inbox.UnreadCount)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/conversation/start", map[string]any{
		"characterId":      "marco-rossi",
		"conversationType": "player_unhappy",
		"notificationId":   first.ID,
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/inbox/"+second.ID+"/dismiss", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.True(t, decode[domain.Notification](t, data).Dismissed)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/inbox", nil, nil)
	inbox = decode[InboxResponse](t, data)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, first.ID, inbox.Notifications[0].ID)
	assert.True(t, inbox.Notifications[0].Read)
	assert.Equal(t, 0, inbox.UnreadCount)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/inbox/missing/read", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, data))
}

func TestNotificationValidation(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/inbox", map[string]any{
		"title":    "Bad priority",
		"priority": "whenever",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "bad_request", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/inbox", map[string]any{"preview": "no title"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/agent/messages", map[string]any{
		"type":    "shouting",
		"content": "hello",
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "bad_request", env.Error.Code)
	assert.Equal(t, "type", env.Error.Details["field"])
	assert.NotEmpty(t, env.Error.Details["errors"])
}

func TestConversationLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/conversation/start", map[string]any{
		"characterId":      "marco-rossi",
		"conversationType": "contract_negotiation",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	conv := decode[domain.Conversation](t, data)
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, domain.ConversationActive, conv.Status)
	assert.Empty(t, conv.Messages)
	base := srv.URL + "/conversation/" + conv.ID

	res, data = doJSON(t, client, http.MethodPost, base+"/send", map[string]any{"content": "We need you on a new deal."}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	sent := decode[SendMessageResponse](t, data)
	assert.Equal(t, domain.ConversationActive, sent.ConversationStatus)
	assert.Equal(t, domain.RoleManager, sent.Message.Role)
	assert.Equal(t, conv.ID, sent.Message.ConversationID)

	res, data = doJSON(t, client, http.MethodPost, base+"/reply", map[string]any{"content": "Make me an offer.", "emotion": "hopeful"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	reply := decode[ReplyResponse](t, data)
	assert.Equal(t, "marco-rossi", reply.Message.CharacterID)

	res, data = doJSON(t, client, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	fetched := decode[domain.Conversation](t, data)
	require.Len(t, fetched.Messages, 2)
	assert.Equal(t, sent.Message.ID, fetched.Messages[0].ID)
	assert.Equal(t, reply.Message.ID, fetched.Messages[1].ID)

	res, data = doJSON(t, client, http.MethodGet, base+"/context", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	cc := decode[domain.ConversationContext](t, data)
	assert.Equal(t, "Marco Rossi", cc.Character.Name)
	assert.Equal(t, 3, cc.GameContext.LeaguePosition)

	res, data = doJSON(t, client, http.MethodPost, base+"/end", map[string]any{
		"summary": "Agreed to talk again next week",
		"outcome": map[string]any{"type": "deferred"},
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	ended := decode[EndConversationResponse](t, data)
	assert.True(t, ended.Success)
	assert.Equal(t, domain.ConversationResolved, ended.Conversation.Status)
	require.NotNil(t, ended.Conversation.EndedAt)

	res, data = doJSON(t, client, http.MethodPost, base+"/end", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	again := decode[EndConversationResponse](t, data)
	assert.Equal(t, ended.Conversation.EndedAt, again.Conversation.EndedAt)

	res, data = doJSON(t, client, http.MethodPost, base+"/send", map[string]any{"content": "One more thing"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, domain.ConversationResolved, decode[SendMessageResponse](t, data).ConversationStatus)

	res, data = doJSON(t, client, http.MethodPost, base+"/reply", map[string]any{"content": "Too late"}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, data))

	res, data = doJSON(t, client, http.MethodPost, base+"/abandon", nil, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode, string(data))
}

func TestConversationNotFoundAndInvalid(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/conversation/nope", nil},
		{http.MethodPost, "/conversation/nope/send", map[string]any{"content": "hello"}},
		{http.MethodPost, "/conversation/nope/end", nil},
		{http.MethodPost, "/conversation/nope/abandon", nil},
	} {
		res, data := doJSON(t, client, tc.method, srv.URL+tc.path, tc.body, nil)
		assert.Equal(t, http.StatusNotFound, res.StatusCode, tc.path)
		assert.Equal(t, "not_found", errorCode(t, data), tc.path)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/conversation/start", map[string]any{
		"characterId":      "marco-rossi",
		"conversationType": "tea_party",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "bad_request", errorCode(t, data))

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/conversation/start", map[string]any{
		"conversationType": "player_unhappy",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestActAndNext(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/agent/next", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	empty := decode[map[string]any](t, data)
	assert.Equal(t, false, empty["hasAction"])
	assert.Nil(t, empty["action"])

	for _, content := range []string{"first", "second"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/agent/act", map[string]any{
			"type":    "respond",
			"payload": map[string]any{"conversationId": "c1", "characterId": "marco-rossi", "content": content},
		}, nil)
		require.Equal(t, http.StatusOK, res.StatusCode, string(data))
		assert.Equal(t, ActResponse{Success: true, Queued: true}, decode[ActResponse](t, data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/agent/act", map[string]any{
		"type":    "respond",
		"payload": map[string]any{"conversationId": "c1"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "bad_request", errorCode(t, data))

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/agent/act", map[string]any{
		"type":    "sing",
		"payload": map[string]any{},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	for _, want := range []string{"first", "second"} {
		res, data = doJSON(t, client, http.MethodGet, srv.URL+"/agent/next", nil, nil)
		require.Equal(t, http.StatusOK, res.StatusCode, string(data))
		var next struct {
			HasAction bool `json:"hasAction"`
			Action    struct {
				Type    string                `json:"type"`
				Payload domain.RespondPayload `json:"payload"`
			} `json:"action"`
		}
		require.NoError(t, json.Unmarshal(data, &next))
		assert.True(t, next.HasAction)
		assert.Equal(t, "respond", next.Action.Type)
		assert.Equal(t, want, next.Action.Payload.Content)
	}

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/agent/next", nil, nil)
	assert.False(t, decode[NextActionResponse](t, data).HasAction)
}

func TestActUpdateMemoryPassesDataThrough(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	data := map[string]any{"madeToCharacterId": "marco-rossi", "content": "You start next match"}
	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/agent/act", map[string]any{
		"type":    "update_memory",
		"payload": map[string]any{"type": "promise", "data": data},
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/agent/next", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	var next struct {
		HasAction bool `json:"hasAction"`
		Action    struct {
			Type    string `json:"type"`
			Payload struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			} `json:"payload"`
		} `json:"action"`
	}
	require.NoError(t, json.Unmarshal(body, &next), string(body))
	require.True(t, next.HasAction)
	assert.Equal(t, "update_memory", next.Action.Type)
	assert.Equal(t, "promise", next.Action.Payload.Type)
	assert.Equal(t, data, next.Action.Payload.Data)
}

func TestAgentMessages(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	var posted []domain.AgentMessage
	for _, content := range []string{"reading the inbox", "replying to Marco"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/agent/messages", map[string]any{
			"type":    "thinking",
			"content": content,
		}, nil)
		require.Equal(t, http.StatusOK, res.StatusCode, string(data))
		posted = append(posted, decode[AgentMessageResponse](t, data).Message)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/agent/messages", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[AgentMessagesResponse](t, data).Messages, 2)

	since := posted[0].CreatedAt.Format(time.RFC3339Nano)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/agent/messages?since="+since, nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	msgs := decode[AgentMessagesResponse](t, data).Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, posted[1].ID, msgs[0].ID)

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/agent/messages?since=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/agent/messages", map[string]any{"type": "gossip", "content": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestObserveWithoutSimulation(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/agent/observe", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	obs := decode[domain.Observation](t, data)
	assert.Equal(t, "Juventus", obs.Team.Name)
	assert.Equal(t, 2024, obs.GameDate.Year)
	assert.Nil(t, obs.ActiveConversation)
	assert.Empty(t, obs.PendingNotifications)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/conversation/start", map[string]any{
		"characterId":      "marco-rossi",
		"conversationType": "player_unhappy",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	conv := decode[domain.Conversation](t, data)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/agent/observe?refresh=false", nil, nil)
	obs = decode[domain.Observation](t, data)
	require.NotNil(t, obs.ActiveConversation)
	assert.Equal(t, conv.ID, obs.ActiveConversation.Conversation.ID)
}

func TestMemoryRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/memory/promises", map[string]any{
		"madeToCharacterId": "marco-rossi",
		"content":           "You will start on Sunday",
		"category":          "playing_time",
		"expiresAt":         map[string]any{"year": 2024, "month": 9, "day": 22},
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	promise := decode[domain.Promise](t, data)
	assert.Equal(t, domain.PromiseActive, promise.Status)
	require.NotNil(t, promise.ExpiresAt)
	assert.Equal(t, "Sunday", promise.ExpiresAt.Weekday)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/memory/promises?active=true", nil, nil)
	assert.Len(t, decode[PromisesResponse](t, data).Promises, 1)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/memory/promises/"+promise.ID+"/status", map[string]any{"status": "kept"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	kept := decode[domain.Promise](t, data)
	assert.Equal(t, domain.PromiseKept, kept.Status)
	require.NotNil(t, kept.KeptAt)

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/memory/promises/"+promise.ID+"/status", map[string]any{"status": "acknowledged"}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/memory/promises/missing/status", map[string]any{"status": "kept"}, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/memory/promises?active=true", nil, nil)
	assert.Empty(t, decode[PromisesResponse](t, data).Promises)
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/memory/promises?characterId=marco-rossi", nil, nil)
	assert.Len(t, decode[PromisesResponse](t, data).Promises, 1)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/memory/knowledge", map[string]any{
		"characterId": "marco-rossi",
		"content":     "The manager promised him a start",
		"category":    "manager_promise",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	fact := decode[domain.KnowledgeFact](t, data)
	assert.Equal(t, 100, fact.Confidence)
	assert.Equal(t, "direct", fact.Source)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/memory/knowledge/marco-rossi", nil, nil)
	facts := decode[KnowledgeResponse](t, data).Knowledge
	require.Len(t, facts, 1)
	assert.Equal(t, fact.ID, facts[0].ID)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/memory/knowledge/nobody", nil, nil)
	assert.Empty(t, decode[KnowledgeResponse](t, data).Knowledge)
}

func TestGameProxyUnavailable(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()

	for _, p := range []string{"/game/state", "/game/date", "/game/team/juventus", "/game/player/7", "/game/player/7/state"} {
		res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+p, nil, nil)
		assert.Equal(t, http.StatusBadGateway, res.StatusCode, p)
		assert.Equal(t, "upstream_unavailable", errorCode(t, data), p)
	}
}

func TestGameProxyPassThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/date", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"year":2025,"month":2,"day":1,"weekday":"Saturday"}`)
	})
	mux.HandleFunc("/api/countries", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"slug":"italy"}]`)
	})
	mux.HandleFunc("/api/teams/juventus", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"name":"Juventus","league_position":1}`)
	})
	mux.HandleFunc("/api/players/7/state", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"7","name":"Marco Rossi","mood":35}`)
	})
	sim := httptest.NewServer(mux)
	defer sim.Close()

	srv, cleanup := newTestServer(t, sim.URL)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/game/team/juventus", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	team := decode[map[string]any](t, data)
	assert.Equal(t, "Juventus", team["name"])
	assert.EqualValues(t, 1, team["league_position"])

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/game/state", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	state := decode[GameStateResponse](t, data)
	assert.JSONEq(t, `[{"slug":"italy"}]`, string(state.State["countries"]))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/game/player/99", nil, nil)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/game/player/7/state", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	player := decode[domain.PlayerState](t, data)
	assert.Equal(t, "Marco Rossi", player.Name)
	assert.Equal(t, 35, player.Mood)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	health := decode[HealthResponse](t, data)
	assert.Equal(t, "up", health.Simulation)
	assert.Nil(t, health.LastRefresh)

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/agent/observe", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/health", nil, nil)
	health = decode[HealthResponse](t, data)
	require.NotNil(t, health.LastRefresh)
	assert.Equal(t, 2024, health.LastRefresh.Year())
}

func TestSnapshotPush(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/game/snapshot", map[string]any{
		"gameDate": map[string]any{"year": 2025, "month": 1, "day": 4, "weekday": "Saturday"},
		"team":     map[string]any{"id": "juventus", "name": "Juventus", "leaguePosition": 1},
		"players":  []map[string]any{{"id": "p1", "name": "Marco Rossi", "mood": 80}},
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	pushed := decode[SnapshotResponse](t, data)
	assert.Equal(t, 2025, pushed.GameDate.Year)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/agent/observe?refresh=false", nil, nil)
	obs := decode[domain.Observation](t, data)
	assert.Equal(t, domain.GameDate{Year: 2025, Month: 1, Day: 4, Weekday: "Saturday"}, obs.GameDate)
	assert.Equal(t, 1, obs.Team.LeaguePosition)
	require.Len(t, obs.Players, 1)
	assert.Equal(t, "Marco Rossi", obs.Players[0].Name)

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/game/snapshot", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/game/snapshot", map[string]any{
		"gameDate": map[string]any{"year": 2025, "month": 13, "day": 1},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	type operation struct {
		Tags      []string `json:"tags"`
		Responses map[string]struct {
			Content map[string]struct {
				Schema struct {
					Ref string `json:"$ref"`
				} `json:"schema"`
			} `json:"content"`
		} `json:"responses"`
	}
	var doc struct {
		Paths map[string]struct {
			Get  *operation `json:"get"`
			Post *operation `json:"post"`
		} `json:"paths"`
		Components struct {
			Schemas map[string]json.RawMessage `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc.Paths, "/api/agent/observe")
	assert.Contains(t, doc.Paths, "/api/conversation/{id}/send")
	assert.Contains(t, doc.Paths, "/api/game/player/{id}/state")
	require.Contains(t, doc.Components.Schemas, "ApiError")

	observe := doc.Paths["/api/agent/observe"].Get
	require.NotNil(t, observe)
	assert.Equal(t, []string{"agent"}, observe.Tags)
	send := doc.Paths["/api/conversation/{id}/send"].Post
	require.NotNil(t, send)
	assert.Contains(t, send.Tags, "conversation")
	for name, op := range map[string]*operation{"observe": observe, "send": send} {
		def, ok := op.Responses["default"]
		require.True(t, ok, name)
		assert.Equal(t, "#/components/schemas/ApiError", def.Content["application/json"].Schema.Ref, name)
	}
}

func readFrame(t *testing.T, r *bufio.Reader) StreamFrame {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
			var frame StreamFrame
			if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &frame); err != nil {
				t.Fatalf("decode frame %q: %v", line, err)
			}
			return frame
		}
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/agent/stream", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(res.Body)
	assert.Equal(t, frameConnected, readFrame(t, reader).Type)

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/inbox", map[string]any{"title": "Transfer request"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	frame := readFrame(t, reader)
	assert.Equal(t, "notification", frame.Type)
	require.NotNil(t, frame.Notification)
	assert.Equal(t, "Transfer request", frame.Notification.Title)

	resp, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/conversation/start", map[string]any{
		"characterId":      "marco-rossi",
		"conversationType": "transfer_request",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	frame = readFrame(t, reader)
	assert.Equal(t, "start", frame.Type)
	assert.Equal(t, decode[domain.Conversation](t, data).ID, frame.ConversationID)
}

func TestStreamHeartbeatAndDisconnect(t *testing.T) {
	srv, cleanup := newTestServer(t, "", func(c *Config) { c.HeartbeatInterval = 200 * time.Millisecond })
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/agent/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer res.Body.Close()

	reader := bufio.NewReader(res.Body)
	if got := readFrame(t, reader).Type; got != frameConnected {
		t.Fatalf("first frame %q, want %q", got, frameConnected)
	}
	assert.Equal(t, 1, srv.Engine.Events.Len())

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/inbox", map[string]any{"title": "Scout report ready"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	notifications := 0
	for {
		frame := readFrame(t, reader)
		if frame.Type == frameHeartbeat {
			assert.False(t, frame.Timestamp.IsZero())
			break
		}
		assert.Equal(t, "notification", frame.Type)
		notifications++
	}
	assert.Equal(t, 1, notifications)
	assert.Equal(t, frameHeartbeat, readFrame(t, reader).Type)

	cancel()
	res.Body.Close()
	require.Eventually(t, func() bool { return srv.Engine.Events.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventFilter(t *testing.T) {
	all := newEventFilter(nil)
	assert.True(t, all.match("chunk"))
	blank := newEventFilter([]string{" ", ""})
	assert.True(t, blank.match("end"))
	some := newEventFilter([]string{"start", " end "})
	assert.True(t, some.match("end"))
	assert.False(t, some.match("chunk"))
}

func TestWebhookForwarder(t *testing.T) {
	type delivery struct {
		header http.Header
		body   webhookEvent
	}
	got := make(chan delivery, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		got <- delivery{header: r.Header.Clone(), body: evt}
	}))
	defer hook.Close()

	disabled := false
	e := engine.New(config.Default(), nil, observability.NewLogger(io.Discard, "error", "text"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := StartWebhookForwarder(ctx, e.Events, []config.WebhookConfig{
		{URL: hook.URL, Events: []string{"notification"}, Secret: "s3cret"},
		{URL: hook.URL, Enabled: &disabled},
	}, nil)
	require.NotNil(t, f)
	require.Len(t, f.Webhooks, 1)

	_, err := e.StartConversation(engine.StartRequest{CharacterID: "marco-rossi", ConversationType: "agent_call"})
	require.NoError(t, err)
	n, err := e.AddNotification(domain.NotificationSpec{Title: "Agent on the phone"})
	require.NoError(t, err)

	select {
	case d := <-got:
		assert.Equal(t, "notification", d.body.Type)
		assert.Equal(t, "notification", d.header.Get("X-Touchline-Event"))
		assert.Equal(t, "s3cret", d.header.Get("X-Touchline-Secret"))
		require.NotNil(t, d.body.Notification)
		assert.Equal(t, n.ID, d.body.Notification.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
	select {
	case d := <-got:
		t.Fatalf("unexpected delivery %s", d.body.Type)
	case <-time.After(100 * time.Millisecond):
	}

	assert.Nil(t, StartWebhookForwarder(ctx, e.Events, nil, nil))
}
