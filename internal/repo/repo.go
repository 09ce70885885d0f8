// Package repo holds the bridge's in-memory stores. Each store guards its own
// collection with a mutex and hands out copies, never pointers into its state.
package repo

import (
	"errors"

	"touchline/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
)

func copyConversation(c *domain.Conversation) domain.Conversation {
	out := *c
	out.Messages = append([]domain.Message{}, c.Messages...)
	return out
}

func copyPromise(p *domain.Promise) domain.Promise {
	out := *p
	out.WitnessCharacterIDs = append([]string{}, p.WitnessCharacterIDs...)
	return out
}
