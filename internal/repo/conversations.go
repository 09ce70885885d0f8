package repo

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"touchline/internal/domain"
)

// Conversations owns conversation records and their message history.
// Records are never removed.
type Conversations struct {
	mu    sync.RWMutex
	order []*domain.Conversation
	byID  map[string]*domain.Conversation
}

func NewConversations() *Conversations {
	return &Conversations{byID: make(map[string]*domain.Conversation)}
}

func (r *Conversations) Insert(c domain.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(c)
}

// InsertExclusive stores c only when no other conversation is active.
func (r *Conversations) InsertExclusive(c domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active, ok := r.activeLocked(); ok {
		return fmt.Errorf("conversation %s is already active: %w", active.ID, ErrConflict)
	}
	r.insertLocked(c)
	return nil
}

func (r *Conversations) insertLocked(c domain.Conversation) {
	stored := copyConversation(&c)
	r.order = append(r.order, &stored)
	r.byID[c.ID] = &stored
}

func (r *Conversations) Get(id string) (domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.Conversation{}, notFound(id)
	}
	return copyConversation(c), nil
}

// List returns every conversation in creation order.
func (r *Conversations) List() []domain.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Conversation, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, copyConversation(c))
	}
	return out
}

// Active returns the earliest started conversation that is still active.
func (r *Conversations) Active() (domain.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.activeLocked()
	if !ok {
		return domain.Conversation{}, false
	}
	return copyConversation(c), true
}

func (r *Conversations) activeLocked() (*domain.Conversation, bool) {
	var found *domain.Conversation
	for _, c := range r.order {
		if c.Status != domain.ConversationActive {
			continue
		}
		if found == nil || startedBefore(c, found) {
			found = c
		}
	}
	return found, found != nil
}

func startedBefore(a, b *domain.Conversation) bool {
	if a.StartedAt == nil || b.StartedAt == nil {
		return false
	}
	return a.StartedAt.Before(*b.StartedAt)
}

// Append adds msg to the conversation and returns it with conversation fields
// stamped, plus the conversation status at the time of the append. Character
// messages are refused once the conversation is terminal.
func (r *Conversations) Append(id string, msg domain.Message) (domain.Message, domain.ConversationStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.Message{}, "", notFound(id)
	}
	if msg.Role == domain.RoleCharacter {
		if c.Status.Terminal() {
			return domain.Message{}, c.Status, fmt.Errorf("conversation %s is %s: %w", id, c.Status, ErrConflict)
		}
		msg.CharacterID = c.CharacterID
	}
	msg.ConversationID = id
	c.Messages = append(c.Messages, msg)
	return msg, c.Status, nil
}

// Resolve moves an active conversation to resolved. Resolving an already
// resolved conversation succeeds without changes; changed reports whether
// anything was written.
func (r *Conversations) Resolve(id string, at time.Time, outcome *domain.ConversationOutcome, summary string) (conv domain.Conversation, changed bool, err error) {
	return r.finish(id, domain.ConversationResolved, at, func(c *domain.Conversation) {
		c.Outcome = outcome
		c.Summary = summary
	})
}

// Abandon moves an active conversation to abandoned.
func (r *Conversations) Abandon(id string, at time.Time) (domain.Conversation, bool, error) {
	return r.finish(id, domain.ConversationAbandoned, at, nil)
}

func (r *Conversations) finish(id string, to domain.ConversationStatus, at time.Time, apply func(*domain.Conversation)) (domain.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.Conversation{}, false, notFound(id)
	}
	switch c.Status {
	case to:
		return copyConversation(c), false, nil
	case domain.ConversationActive:
	default:
		return domain.Conversation{}, false, fmt.Errorf("conversation %s is %s: %w", id, c.Status, ErrConflict)
	}
	c.Status = to
	ended := at
	c.EndedAt = &ended
	if apply != nil {
		apply(c)
	}
	return copyConversation(c), true, nil
}

// RecentWith returns up to limit terminal conversations with a character,
// most recently ended first.
func (r *Conversations) RecentWith(characterID string, limit int) []domain.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Conversation{}
	for _, c := range r.order {
		if c.CharacterID == characterID && c.Status.Terminal() {
			out = append(out, copyConversation(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndedAt != nil && out[j].EndedAt != nil && out[i].EndedAt.After(*out[j].EndedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func notFound(id string) error {
	return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
}
