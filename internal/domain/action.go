package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

type ActionType string

const (
	ActionRespond         ActionType = "respond"
	ActionTriggerEvent    ActionType = "trigger_event"
	ActionUpdateMemory    ActionType = "update_memory"
	ActionEndConversation ActionType = "end_conversation"
)

var ActionTypes = []string{string(ActionRespond), string(ActionTriggerEvent), string(ActionUpdateMemory), string(ActionEndConversation)}

type RespondPayload struct {
	ConversationID string `json:"conversationId"`
	CharacterID    string `json:"characterId"`
	Content        string `json:"content"`
	Emotion        string `json:"emotion,omitempty"`
}

type TriggerEventPayload struct {
	EventType        string `json:"eventType"`
	CharacterID      string `json:"characterId"`
	Title            string `json:"title"`
	Preview          string `json:"preview"`
	Priority         string `json:"priority"`
	ConversationType string `json:"conversationType"`
}

// UpdateMemoryPayload carries exactly one of Promise or Knowledge, selected
// by Kind. The typed record is used for validation only; Data holds the
// agent's record as sent and is what the executor receives.
type UpdateMemoryPayload struct {
	Kind      string
	Data      json.RawMessage
	Promise   *Promise
	Knowledge *KnowledgeFact
}

func (p UpdateMemoryPayload) MarshalJSON() ([]byte, error) {
	var data any = p.Data
	if len(p.Data) == 0 {
		switch p.Kind {
		case "promise":
			data = p.Promise
		case "knowledge":
			data = p.Knowledge
		}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: p.Kind, Data: data})
}

type EndConversationPayload struct {
	ConversationID string               `json:"conversationId"`
	Outcome        *ConversationOutcome `json:"outcome,omitempty"`
	Summary        string               `json:"summary"`
}

// Action is an agent intent awaiting execution by the simulation. Exactly one
// payload pointer is set, matching Type.
type Action struct {
	Type            ActionType
	Respond         *RespondPayload
	TriggerEvent    *TriggerEventPayload
	UpdateMemory    *UpdateMemoryPayload
	EndConversation *EndConversationPayload
}

// Payload returns the variant payload for Type.
func (a Action) Payload() any {
	switch a.Type {
	case ActionRespond:
		return a.Respond
	case ActionTriggerEvent:
		return a.TriggerEvent
	case ActionUpdateMemory:
		return a.UpdateMemory
	case ActionEndConversation:
		return a.EndConversation
	}
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ActionType `json:"type"`
		Payload any        `json:"payload"`
	}{Type: a.Type, Payload: a.Payload()})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAction(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction decodes and validates a tagged action payload.
func ParseAction(actionType string, payload json.RawMessage) (Action, error) {
	a := Action{Type: ActionType(actionType)}
	if len(bytes.TrimSpace(payload)) == 0 {
		return Action{}, invalid("payload", "required")
	}
	switch a.Type {
	case ActionRespond:
		var p RespondPayload
		if err := decodePayload(payload, &p); err != nil {
			return Action{}, err
		}
		a.Respond = &p
	case ActionTriggerEvent:
		var p TriggerEventPayload
		if err := decodePayload(payload, &p); err != nil {
			return Action{}, err
		}
		a.TriggerEvent = &p
	case ActionUpdateMemory:
		var raw struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := decodePayload(payload, &raw); err != nil {
			return Action{}, err
		}
		p := UpdateMemoryPayload{Kind: raw.Type, Data: append(json.RawMessage(nil), raw.Data...)}
		switch raw.Type {
		case "promise":
			p.Promise = &Promise{}
			if err := decodePayload(raw.Data, p.Promise); err != nil {
				return Action{}, err
			}
		case "knowledge":
			p.Knowledge = &KnowledgeFact{}
			if err := decodePayload(raw.Data, p.Knowledge); err != nil {
				return Action{}, err
			}
		default:
			return Action{}, invalid("payload.type", "must be promise or knowledge")
		}
		a.UpdateMemory = &p
	case ActionEndConversation:
		var p EndConversationPayload
		if err := decodePayload(payload, &p); err != nil {
			return Action{}, err
		}
		a.EndConversation = &p
	default:
		return Action{}, invalid("type", fmt.Sprintf("must be one of %s", strings.Join(ActionTypes, ", ")))
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Validate checks the required fields of the set variant.
func (a Action) Validate() error {
	switch a.Type {
	case ActionRespond:
		p := a.Respond
		if p == nil {
			return invalid("payload", "required")
		}
		if strings.TrimSpace(p.ConversationID) == "" {
			return invalid("payload.conversationId", "required")
		}
		if strings.TrimSpace(p.Content) == "" {
			return invalid("payload.content", "required")
		}
		if p.Emotion != "" && !Contains(Emotions, p.Emotion) {
			return invalid("payload.emotion", "unknown emotion "+p.Emotion)
		}
	case ActionTriggerEvent:
		p := a.TriggerEvent
		if p == nil {
			return invalid("payload", "required")
		}
		if strings.TrimSpace(p.Title) == "" {
			return invalid("payload.title", "required")
		}
		if strings.TrimSpace(p.CharacterID) == "" {
			return invalid("payload.characterId", "required")
		}
		if !Contains(NotificationPriorities, p.Priority) {
			return invalid("payload.priority", "must be one of "+strings.Join(NotificationPriorities, ", "))
		}
		if p.ConversationType != "" && !Contains(ConversationTypes, p.ConversationType) {
			return invalid("payload.conversationType", "unknown conversation type "+p.ConversationType)
		}
	case ActionUpdateMemory:
		p := a.UpdateMemory
		if p == nil {
			return invalid("payload", "required")
		}
		switch p.Kind {
		case "promise":
			if p.Promise == nil || strings.TrimSpace(p.Promise.MadeToCharacterID) == "" {
				return invalid("payload.data.madeToCharacterId", "required")
			}
			if strings.TrimSpace(p.Promise.Content) == "" {
				return invalid("payload.data.content", "required")
			}
		case "knowledge":
			if p.Knowledge == nil || strings.TrimSpace(p.Knowledge.CharacterID) == "" {
				return invalid("payload.data.characterId", "required")
			}
			if strings.TrimSpace(p.Knowledge.Content) == "" {
				return invalid("payload.data.content", "required")
			}
		default:
			return invalid("payload.type", "must be promise or knowledge")
		}
	case ActionEndConversation:
		if a.EndConversation == nil || strings.TrimSpace(a.EndConversation.ConversationID) == "" {
			return invalid("payload.conversationId", "required")
		}
	default:
		return invalid("type", fmt.Sprintf("must be one of %s", strings.Join(ActionTypes, ", ")))
	}
	return nil
}

func decodePayload(data json.RawMessage, out any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return invalid("payload", "required")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return invalid("payload", err.Error())
	}
	return nil
}
