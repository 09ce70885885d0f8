package repo

import (
	"fmt"
	"sync"

	"touchline/internal/domain"
)

// Memory keeps promises and knowledge facts. Both are append-only; promise
// status is the only field that changes after insertion.
type Memory struct {
	mu          sync.RWMutex
	promises    []*domain.Promise
	facts       []domain.KnowledgeFact
	byCharacter map[string][]int
}

func NewMemory() *Memory {
	return &Memory{byCharacter: make(map[string][]int)}
}

func (m *Memory) AddPromise(p domain.Promise) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := copyPromise(&p)
	m.promises = append(m.promises, &stored)
}

func (m *Memory) Promises() []domain.Promise {
	return m.filterPromises(func(*domain.Promise) bool { return true })
}

func (m *Memory) ActivePromises() []domain.Promise {
	return m.filterPromises(func(p *domain.Promise) bool { return p.Status == domain.PromiseActive })
}

func (m *Memory) PromisesMadeTo(characterID string) []domain.Promise {
	return m.filterPromises(func(p *domain.Promise) bool { return p.MadeToCharacterID == characterID })
}

func (m *Memory) filterPromises(keep func(*domain.Promise) bool) []domain.Promise {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Promise{}
	for _, p := range m.promises {
		if keep(p) {
			out = append(out, copyPromise(p))
		}
	}
	return out
}

// SetPromiseStatus moves a promise along its lifecycle and stamps the matching date.
func (m *Memory) SetPromiseStatus(id string, status domain.PromiseStatus, at domain.GameDate) (domain.Promise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.promises {
		if p.ID != id {
			continue
		}
		if !p.Status.CanTransition(status) {
			return domain.Promise{}, fmt.Errorf("promise %s cannot move from %s to %s: %w", id, p.Status, status, ErrConflict)
		}
		p.Status = status
		stamp := at
		switch status {
		case domain.PromiseKept:
			p.KeptAt = &stamp
		case domain.PromiseBroken:
			p.BrokenAt = &stamp
		}
		return copyPromise(p), nil
	}
	return domain.Promise{}, fmt.Errorf("promise %s: %w", id, ErrNotFound)
}

func (m *Memory) AddKnowledge(f domain.KnowledgeFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, f)
	m.byCharacter[f.CharacterID] = append(m.byCharacter[f.CharacterID], len(m.facts)-1)
}

// Knowledge returns the facts held by one character in insertion order.
func (m *Memory) Knowledge(characterID string) []domain.KnowledgeFact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.byCharacter[characterID]
	out := make([]domain.KnowledgeFact, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.facts[i])
	}
	return out
}

// RecentKnowledge returns the last n facts added across all characters,
// oldest first.
func (m *Memory) RecentKnowledge(n int) []domain.KnowledgeFact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if n >= 0 && len(m.facts) > n {
		start = len(m.facts) - n
	}
	return append([]domain.KnowledgeFact{}, m.facts[start:]...)
}
