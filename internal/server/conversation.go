package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"touchline/internal/domain"
	"touchline/internal/engine"
)

type conversationPath struct {
	ID string `path:"id"`
}

func registerConversation(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "conversation-start",
		Method:        http.MethodPost,
		Path:          "/conversation/start",
		Summary:       "Start a conversation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body StartConversationRequest `json:"body"`
	}) (*struct {
		Body domain.Conversation `json:"body"`
	}, error) {
		conv, err := e.StartConversation(engine.StartRequest{
			CharacterID:      input.Body.CharacterID,
			ConversationType: input.Body.ConversationType,
			NotificationID:   input.Body.NotificationID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Conversation `json:"body"`
		}{Body: conv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-list",
		Method:      http.MethodGet,
		Path:        "/conversation",
		Summary:     "List conversations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ConversationListResponse `json:"body"`
	}, error) {
		return &struct {
			Body ConversationListResponse `json:"body"`
		}{Body: ConversationListResponse{Conversations: e.ListConversations()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-get",
		Method:      http.MethodGet,
		Path:        "/conversation/{id}",
		Summary:     "Get a conversation with its messages",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *conversationPath) (*struct {
		Body domain.Conversation `json:"body"`
	}, error) {
		conv, err := e.GetConversation(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Conversation `json:"body"`
		}{Body: conv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-context",
		Method:      http.MethodGet,
		Path:        "/conversation/{id}/context",
		Summary:     "Get the context the agent speaks from",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *conversationPath) (*struct {
		Body domain.ConversationContext `json:"body"`
	}, error) {
		conv, err := e.GetConversation(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ConversationContext `json:"body"`
		}{Body: e.BuildContext(conv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-send",
		Method:      http.MethodPost,
		Path:        "/conversation/{id}/send",
		Summary:     "Send a manager message",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body SendMessageRequest `json:"body"`
	}) (*struct {
		Body SendMessageResponse `json:"body"`
	}, error) {
		msg, status, err := e.SendPlayerMessage(input.ID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SendMessageResponse `json:"body"`
		}{Body: SendMessageResponse{Message: msg, ConversationStatus: status}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-reply",
		Method:      http.MethodPost,
		Path:        "/conversation/{id}/reply",
		Summary:     "Append a character reply",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string       `path:"id"`
		Body ReplyRequest `json:"body"`
	}) (*struct {
		Body ReplyResponse `json:"body"`
	}, error) {
		msg, err := e.AddCharacterMessage(input.ID, input.Body.Content, input.Body.Emotion)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReplyResponse `json:"body"`
		}{Body: ReplyResponse{Message: msg}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-end",
		Method:      http.MethodPost,
		Path:        "/conversation/{id}/end",
		Summary:     "Resolve a conversation",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body *EndConversationRequest `json:"body" required:"false"`
	}) (*struct {
		Body EndConversationResponse `json:"body"`
	}, error) {
		var opts engine.EndOptions
		if input.Body != nil {
			opts.Outcome = input.Body.Outcome
			opts.Summary = input.Body.Summary
		}
		conv, err := e.EndConversation(input.ID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EndConversationResponse `json:"body"`
		}{Body: EndConversationResponse{Success: true, Conversation: conv}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-abandon",
		Method:      http.MethodPost,
		Path:        "/conversation/{id}/abandon",
		Summary:     "Abandon an active conversation",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *conversationPath) (*struct {
		Body EndConversationResponse `json:"body"`
	}, error) {
		conv, err := e.AbandonConversation(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EndConversationResponse `json:"body"`
		}{Body: EndConversationResponse{Success: true, Conversation: conv}}, nil
	})
}
