package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"touchline/internal/domain"
	"touchline/internal/engine"
)

func registerInbox(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "inbox-list",
		Method:      http.MethodGet,
		Path:        "/inbox",
		Summary:     "List pending notifications",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body InboxResponse `json:"body"`
	}, error) {
		items, unread := e.Inbox()
		return &struct {
			Body InboxResponse `json:"body"`
		}{Body: InboxResponse{Notifications: items, UnreadCount: unread}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "inbox-add",
		Method:        http.MethodPost,
		Path:          "/inbox",
		Summary:       "Add a notification",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body NotificationRequest `json:"body"`
	}) (*struct {
		Body domain.Notification `json:"body"`
	}, error) {
		n, err := e.AddNotification(notificationSpec(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Notification `json:"body"`
		}{Body: n}, nil
	})

	for _, op := range []struct {
		id      string
		verb    string
		summary string
		apply   func(string) (domain.Notification, error)
	}{
		{"inbox-read", "read", "Mark a notification read", e.MarkNotificationRead},
		{"inbox-dismiss", "dismiss", "Dismiss a notification", e.DismissNotification},
	} {
		apply := op.apply
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/inbox/{id}/" + op.verb,
			Summary:     op.summary,
			Errors:      []int{http.StatusNotFound},
		}, func(ctx context.Context, input *struct {
			ID string `path:"id"`
		}) (*struct {
			Body domain.Notification `json:"body"`
		}, error) {
			n, err := apply(input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Notification `json:"body"`
			}{Body: n}, nil
		})
	}
}
