package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"touchline/internal/domain"
	"touchline/internal/engine"
)

func registerMemory(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "memory-list-promises",
		Method:      http.MethodGet,
		Path:        "/memory/promises",
		Summary:     "List promises",
	}, func(ctx context.Context, input *struct {
		CharacterID string `query:"characterId"`
		Active      bool   `query:"active" doc:"only promises still awaiting verification"`
	}) (*struct {
		Body PromisesResponse `json:"body"`
	}, error) {
		return &struct {
			Body PromisesResponse `json:"body"`
		}{Body: PromisesResponse{Promises: e.Promises(input.CharacterID, input.Active)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "memory-add-promise",
		Method:        http.MethodPost,
		Path:          "/memory/promises",
		Summary:       "Record a promise",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body PromiseRequest `json:"body"`
	}) (*struct {
		Body domain.Promise `json:"body"`
	}, error) {
		p, err := e.AddPromise(promiseFromRequest(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Promise `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "memory-promise-status",
		Method:      http.MethodPost,
		Path:        "/memory/promises/{id}/status",
		Summary:     "Change a promise status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body PromiseStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Promise `json:"body"`
	}, error) {
		p, err := e.SetPromiseStatus(input.ID, domain.PromiseStatus(input.Body.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Promise `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "memory-knowledge",
		Method:      http.MethodGet,
		Path:        "/memory/knowledge/{characterId}",
		Summary:     "List what a character knows",
	}, func(ctx context.Context, input *struct {
		CharacterID string `path:"characterId"`
	}) (*struct {
		Body KnowledgeResponse `json:"body"`
	}, error) {
		return &struct {
			Body KnowledgeResponse `json:"body"`
		}{Body: KnowledgeResponse{Knowledge: e.Knowledge(input.CharacterID)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "memory-add-knowledge",
		Method:        http.MethodPost,
		Path:          "/memory/knowledge",
		Summary:       "Record a knowledge fact",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body KnowledgeRequest `json:"body"`
	}) (*struct {
		Body domain.KnowledgeFact `json:"body"`
	}, error) {
		f, err := e.AddKnowledge(knowledgeFromRequest(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.KnowledgeFact `json:"body"`
		}{Body: f}, nil
	})
}
