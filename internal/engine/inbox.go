package engine

import (
	"strings"

	"touchline/internal/domain"
	"touchline/internal/events"
)

// AddNotification validates spec, stores an unread notification and
// broadcasts it. Missing optional fields get defaults: icon "info",
// priority "medium", the current game date, and an action derived from
// whether a conversation type is present.
func (e *Engine) AddNotification(spec domain.NotificationSpec) (domain.Notification, error) {
	if strings.TrimSpace(spec.Title) == "" {
		return domain.Notification{}, domain.ValidationError{Field: "title", Reason: "required"}
	}
	n := domain.Notification{
		ID:               newID(),
		EventID:          spec.EventID,
		Title:            spec.Title,
		Preview:          spec.Preview,
		Icon:             spec.Icon,
		Priority:         spec.Priority,
		CreatedAt:        e.now(),
		GameDate:         spec.GameDate,
		ExpiresAt:        spec.ExpiresAt,
		ActionType:       spec.ActionType,
		ConversationType: spec.ConversationType,
		CharacterID:      spec.CharacterID,
	}
	if n.Icon == "" {
		n.Icon = "info"
	}
	if n.Priority == "" {
		n.Priority = "medium"
	}
	if n.ActionType == "" {
		n.ActionType = "view_details"
		if n.ConversationType != "" {
			n.ActionType = "start_conversation"
		}
	}
	if n.GameDate.IsZero() {
		n.GameDate = e.CurrentDate()
	}
	if n.EventID == "" {
		n.EventID = n.ID
	}
	switch {
	case !domain.Contains(domain.NotificationIcons, n.Icon):
		return domain.Notification{}, domain.ValidationError{Field: "icon", Reason: "unknown icon " + n.Icon}
	case !domain.Contains(domain.NotificationPriorities, n.Priority):
		return domain.Notification{}, domain.ValidationError{Field: "priority", Reason: "unknown priority " + n.Priority}
	case !domain.Contains(domain.NotificationActions, n.ActionType):
		return domain.Notification{}, domain.ValidationError{Field: "actionType", Reason: "unknown action " + n.ActionType}
	case n.ConversationType != "" && !domain.Contains(domain.ConversationTypes, n.ConversationType):
		return domain.Notification{}, domain.ValidationError{Field: "conversationType", Reason: "unknown conversation type " + n.ConversationType}
	}

	e.Notifications.Insert(n)
	e.Events.Publish(events.NotificationAdded(n))
	e.Logger.Info("notification added", "notification_id", n.ID, "priority", n.Priority)
	return n, nil
}

func (e *Engine) MarkNotificationRead(id string) (domain.Notification, error) {
	return e.Notifications.MarkRead(id)
}

func (e *Engine) DismissNotification(id string) (domain.Notification, error) {
	return e.Notifications.Dismiss(id)
}

// Inbox returns the non-dismissed notifications, most recent first, and the
// unread count.
func (e *Engine) Inbox() ([]domain.Notification, int) {
	return e.Notifications.Pending(), e.Notifications.UnreadCount()
}
