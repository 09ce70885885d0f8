package engine

import (
	"strings"
	"time"

	"touchline/internal/domain"
)

// SubmitAction validates and queues an agent action. A rejected action
// leaves the queue untouched.
func (e *Engine) SubmitAction(a domain.Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := e.Actions.Enqueue(a); err != nil {
		return err
	}
	e.Logger.Info("action queued", "action_type", string(a.Type), "queue_depth", e.Actions.Len())
	return nil
}

// NextAction pops the oldest queued action. ok is false when none is waiting.
func (e *Engine) NextAction() (a domain.Action, ok bool) {
	return e.Actions.Dequeue()
}

func (e *Engine) PostAgentMessage(msgType, content string) (domain.AgentMessage, error) {
	if !domain.Contains(domain.AgentMessageTypes, msgType) {
		return domain.AgentMessage{}, domain.ValidationError{Field: "type", Reason: "must be one of " + strings.Join(domain.AgentMessageTypes, ", ")}
	}
	if strings.TrimSpace(content) == "" {
		return domain.AgentMessage{}, domain.ValidationError{Field: "content", Reason: "required"}
	}
	m := domain.AgentMessage{
		ID:        newID(),
		Type:      domain.AgentMessageType(msgType),
		Content:   content,
		CreatedAt: e.now(),
	}
	e.AgentLog.Append(m)
	return m, nil
}

// AgentMessages returns logged messages newer than since, or all of them
// when since is nil.
func (e *Engine) AgentMessages(since *time.Time) []domain.AgentMessage {
	return e.AgentLog.Since(since)
}
