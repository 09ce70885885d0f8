package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"touchline/internal/domain"
	"touchline/internal/engine"
)

func registerAgent(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "agent-observe",
		Method:      http.MethodGet,
		Path:        "/agent/observe",
		Summary:     "Observe the current game state",
		Description: "Never fails: simulation outages fall back to the last cached snapshot and then to defaults.",
	}, func(ctx context.Context, input *struct {
		Team    string `query:"team" doc:"team slug, defaults to the configured team"`
		Refresh bool   `query:"refresh" default:"true"`
	}) (*struct {
		Body domain.Observation `json:"body"`
	}, error) {
		return &struct {
			Body domain.Observation `json:"body"`
		}{Body: e.Observe(ctx, input.Team, input.Refresh)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agent-act",
		Method:      http.MethodPost,
		Path:        "/agent/act",
		Summary:     "Queue an agent action",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body ActRequest `json:"body"`
	}) (*struct {
		Body ActResponse `json:"body"`
	}, error) {
		payload, err := json.Marshal(input.Body.Payload)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid payload", nil)
		}
		action, err := domain.ParseAction(input.Body.Type, payload)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.SubmitAction(action); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActResponse `json:"body"`
		}{Body: ActResponse{Success: true, Queued: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agent-next",
		Method:      http.MethodGet,
		Path:        "/agent/next",
		Summary:     "Pop the oldest queued action",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body NextActionResponse `json:"body"`
	}, error) {
		resp := NextActionResponse{}
		if a, ok := e.NextAction(); ok {
			resp.HasAction = true
			resp.Action = actionResponse(a)
		}
		return &struct {
			Body NextActionResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agent-post-message",
		Method:      http.MethodPost,
		Path:        "/agent/messages",
		Summary:     "Log an agent message",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AgentMessageRequest `json:"body"`
	}) (*struct {
		Body AgentMessageResponse `json:"body"`
	}, error) {
		msg, err := e.PostAgentMessage(input.Body.Type, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AgentMessageResponse `json:"body"`
		}{Body: AgentMessageResponse{Success: true, Message: msg}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agent-list-messages",
		Method:      http.MethodGet,
		Path:        "/agent/messages",
		Summary:     "List logged agent messages",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Since string `query:"since" doc:"RFC3339 timestamp; only newer messages are returned"`
	}) (*struct {
		Body AgentMessagesResponse `json:"body"`
	}, error) {
		var since *time.Time
		if input.Since != "" {
			t, err := time.Parse(time.RFC3339Nano, input.Since)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid since", map[string]any{"since": input.Since})
			}
			since = &t
		}
		return &struct {
			Body AgentMessagesResponse `json:"body"`
		}{Body: AgentMessagesResponse{Messages: e.AgentMessages(since)}}, nil
	})
}
