package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"touchline/internal/domain"
	"touchline/internal/engine"
	"touchline/internal/observability"
)

func registerGame(api huma.API, e *engine.Engine, game GameProxy) {
	proxy := func(ctx context.Context, path string) (json.RawMessage, error) {
		if game == nil {
			return nil, upstreamError(engine.ErrNoSimulation)
		}
		raw, err := game.Raw(ctx, path)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("game proxy failed", "path", path, "error", err)
			return nil, upstreamError(err)
		}
		return raw, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "game-state",
		Method:      http.MethodGet,
		Path:        "/game/state",
		Summary:     "Game state from the simulation",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body GameStateResponse `json:"body"`
	}, error) {
		if game == nil {
			return nil, upstreamError(engine.ErrNoSimulation)
		}
		state, err := game.GameState(ctx)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("game proxy failed", "path", "state", "error", err)
			return nil, upstreamError(err)
		}
		return &struct {
			Body GameStateResponse `json:"body"`
		}{Body: GameStateResponse{State: state, LastUpdated: e.Now().UTC()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "game-date",
		Method:      http.MethodGet,
		Path:        "/game/date",
		Summary:     "Current simulation date",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body json.RawMessage `json:"body"`
	}, error) {
		raw, err := proxy(ctx, "api/date")
		if err != nil {
			return nil, err
		}
		return &struct {
			Body json.RawMessage `json:"body"`
		}{Body: raw}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "game-team",
		Method:      http.MethodGet,
		Path:        "/game/team/{slug}",
		Summary:     "Team details from the simulation",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Slug string `path:"slug"`
	}) (*struct {
		Body json.RawMessage `json:"body"`
	}, error) {
		raw, err := proxy(ctx, "api/teams/"+url.PathEscape(input.Slug))
		if err != nil {
			return nil, err
		}
		return &struct {
			Body json.RawMessage `json:"body"`
		}{Body: raw}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "game-player",
		Method:      http.MethodGet,
		Path:        "/game/player/{id}",
		Summary:     "Player details from the simulation",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body json.RawMessage `json:"body"`
	}, error) {
		raw, err := proxy(ctx, "api/players/"+url.PathEscape(input.ID))
		if err != nil {
			return nil, err
		}
		return &struct {
			Body json.RawMessage `json:"body"`
		}{Body: raw}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "game-player-state",
		Method:      http.MethodGet,
		Path:        "/game/player/{id}/state",
		Summary:     "Player mood, trust and form from the simulation",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.PlayerState `json:"body"`
	}, error) {
		if game == nil {
			return nil, upstreamError(engine.ErrNoSimulation)
		}
		p, err := game.PlayerState(ctx, input.ID)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("game proxy failed", "path", "player_state", "player_id", input.ID, "error", err)
			return nil, upstreamError(err)
		}
		return &struct {
			Body domain.PlayerState `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "game-snapshot",
		Method:      http.MethodPost,
		Path:        "/game/snapshot",
		Summary:     "Push simulation state into the bridge cache",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		RawBody []byte `contentType:"application/json"`
	}) (*struct {
		Body SnapshotResponse `json:"body"`
	}, error) {
		var req SnapshotRequest
		if err := json.Unmarshal(input.RawBody, &req); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid snapshot body", map[string]any{"error": err.Error()})
		}
		if req.GameDate == nil && req.Team == nil && req.Players == nil && req.Events == nil {
			return nil, handleError(domain.ValidationError{Reason: "snapshot is empty"})
		}
		err := e.UpdateSnapshot(engine.SnapshotPatch{
			TeamSlug: req.TeamSlug,
			GameDate: req.GameDate,
			Team:     req.Team,
			Players:  req.Players,
			Events:   req.Events,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SnapshotResponse `json:"body"`
		}{Body: SnapshotResponse{Success: true, GameDate: e.CurrentDate()}}, nil
	})
}
