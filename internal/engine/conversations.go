package engine

import (
	"fmt"
	"strings"

	"touchline/internal/domain"
	"touchline/internal/events"
)

const recentInteractionsLimit = 3

// StartRequest opens a conversation, usually from an inbox notification.
type StartRequest struct {
	CharacterID      string
	ConversationType string
	NotificationID   string
}

// StartConversation creates an active conversation stamped with the current
// game date and marks the triggering notification read. An unknown
// notification id is ignored.
func (e *Engine) StartConversation(req StartRequest) (domain.Conversation, error) {
	if strings.TrimSpace(req.CharacterID) == "" {
		return domain.Conversation{}, domain.ValidationError{Field: "characterId", Reason: "required"}
	}
	if !domain.Contains(domain.ConversationTypes, req.ConversationType) {
		return domain.Conversation{}, domain.ValidationError{Field: "conversationType", Reason: "unknown conversation type " + req.ConversationType}
	}
	started := e.now()
	conv := domain.Conversation{
		ID:          newID(),
		Type:        req.ConversationType,
		CharacterID: req.CharacterID,
		Status:      domain.ConversationActive,
		TriggeredAt: e.CurrentDate(),
		StartedAt:   &started,
		Messages:    []domain.Message{},
	}
	if e.Config.Bridge.SingleActiveConversation {
		if err := e.Conversations.InsertExclusive(conv); err != nil {
			return domain.Conversation{}, err
		}
	} else {
		e.Conversations.Insert(conv)
	}
	if req.NotificationID != "" {
		if _, err := e.Notifications.MarkRead(req.NotificationID); err != nil {
			e.Logger.Debug("start conversation: notification not marked read", "notification_id", req.NotificationID, "err", err)
		}
	}
	e.Events.Publish(events.ConversationStarted(conv.ID))
	e.Logger.Info("conversation started", "conversation_id", conv.ID, "character_id", conv.CharacterID, "type", conv.Type)
	return conv, nil
}

func (e *Engine) GetConversation(id string) (domain.Conversation, error) {
	return e.Conversations.Get(id)
}

func (e *Engine) ListConversations() []domain.Conversation {
	return e.Conversations.List()
}

// SendPlayerMessage appends a manager message. The returned status lets the
// caller notice a conversation the simulation already closed.
func (e *Engine) SendPlayerMessage(id, content string) (domain.Message, domain.ConversationStatus, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, "", domain.ValidationError{Field: "content", Reason: "required"}
	}
	msg := domain.Message{
		ID:        newID(),
		Role:      domain.RoleManager,
		Content:   content,
		Timestamp: e.now(),
	}
	return e.Conversations.Append(id, msg)
}

// AddCharacterMessage appends a character reply and broadcasts it as a chunk.
func (e *Engine) AddCharacterMessage(id, content, emotion string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, domain.ValidationError{Field: "content", Reason: "required"}
	}
	if emotion != "" && !domain.Contains(domain.Emotions, emotion) {
		return domain.Message{}, domain.ValidationError{Field: "emotion", Reason: "unknown emotion " + emotion}
	}
	msg, _, err := e.Conversations.Append(id, domain.Message{
		ID:        newID(),
		Role:      domain.RoleCharacter,
		Content:   content,
		Timestamp: e.now(),
		Emotion:   emotion,
	})
	if err != nil {
		return domain.Message{}, err
	}
	e.Events.Publish(events.ConversationChunk(msg))
	return msg, nil
}

// EndOptions optionally records how a conversation finished.
type EndOptions struct {
	Outcome *domain.ConversationOutcome
	Summary string
}

// EndConversation resolves a conversation. Ending a resolved conversation
// returns it unchanged.
func (e *Engine) EndConversation(id string, opts EndOptions) (domain.Conversation, error) {
	conv, changed, err := e.Conversations.Resolve(id, e.now(), opts.Outcome, opts.Summary)
	if err != nil {
		return domain.Conversation{}, err
	}
	if changed {
		e.Events.Publish(events.ConversationEnded(id))
		e.Logger.Info("conversation resolved", "conversation_id", id)
	}
	return conv, nil
}

// AbandonConversation closes an active conversation without a resolution.
func (e *Engine) AbandonConversation(id string) (domain.Conversation, error) {
	conv, changed, err := e.Conversations.Abandon(id, e.now())
	if err != nil {
		return domain.Conversation{}, err
	}
	if changed {
		e.Events.Publish(events.ConversationEnded(id))
		e.Logger.Info("conversation abandoned", "conversation_id", id)
	}
	return conv, nil
}

// BuildContext gathers what the agent needs to speak as the conversation's
// character. It reads each store once and mutates nothing.
func (e *Engine) BuildContext(conv domain.Conversation) domain.ConversationContext {
	view := e.snapshot.view(e.Config.Bridge.TeamSlug)
	return e.buildContext(conv, view)
}

func (e *Engine) buildContext(conv domain.Conversation, view snapshotView) domain.ConversationContext {
	gc := domain.GameContext{
		CurrentDate:    view.Date,
		RecentResults:  view.Team.RecentForm,
		LeaguePosition: view.Team.LeaguePosition,
	}
	if len(view.Team.UpcomingMatches) > 0 {
		next := view.Team.UpcomingMatches[0]
		venue := "away"
		if next.IsHome {
			venue = "home"
		}
		gc.NextMatch = fmt.Sprintf("%s vs %s (%s, %s)", next.Date, next.Opponent, next.Competition, venue)
	}
	recent := []domain.Conversation{}
	for _, c := range e.Conversations.RecentWith(conv.CharacterID, recentInteractionsLimit+1) {
		if c.ID != conv.ID && len(recent) < recentInteractionsLimit {
			recent = append(recent, c)
		}
	}
	return domain.ConversationContext{
		Conversation:       conv,
		Character:          ResolveCharacter(conv.CharacterID, view.Players, e.Config.Defaults.Character),
		RelevantPromises:   e.Memory.PromisesMadeTo(conv.CharacterID),
		RelevantKnowledge:  e.Memory.Knowledge(conv.CharacterID),
		RecentInteractions: recent,
		GameContext:        gc,
	}
}
