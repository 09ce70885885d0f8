package engine

import (
	"fmt"
	"strings"

	"touchline/internal/domain"
	"touchline/internal/repo"
)

// AddPromise records a new active promise. Id, status and (when unset) the
// made-at date are assigned here.
func (e *Engine) AddPromise(p domain.Promise) (domain.Promise, error) {
	if strings.TrimSpace(p.MadeToCharacterID) == "" {
		return domain.Promise{}, domain.ValidationError{Field: "madeToCharacterId", Reason: "required"}
	}
	if strings.TrimSpace(p.Content) == "" {
		return domain.Promise{}, domain.ValidationError{Field: "content", Reason: "required"}
	}
	if p.Category == "" {
		p.Category = "general"
	}
	if !domain.Contains(domain.PromiseCategories, p.Category) {
		return domain.Promise{}, domain.ValidationError{Field: "category", Reason: "unknown category " + p.Category}
	}
	if p.MadeBy == "" {
		p.MadeBy = "manager"
	}
	if p.MadeAt.IsZero() {
		p.MadeAt = e.CurrentDate()
	}
	if p.WitnessCharacterIDs == nil {
		p.WitnessCharacterIDs = []string{}
	}
	p.ID = newID()
	p.Status = domain.PromiseActive
	p.KeptAt = nil
	p.BrokenAt = nil
	e.Memory.AddPromise(p)
	return p, nil
}

// SetPromiseStatus moves a promise to status, stamping the current game date.
func (e *Engine) SetPromiseStatus(id string, status domain.PromiseStatus) (domain.Promise, error) {
	switch status {
	case domain.PromiseKept, domain.PromiseBroken, domain.PromiseExpired, domain.PromiseAcknowledged:
	default:
		return domain.Promise{}, fmt.Errorf("promise status %q: %w", status, repo.ErrInvalid)
	}
	return e.Memory.SetPromiseStatus(id, status, e.CurrentDate())
}

// Promises lists promises, optionally only those made to one character.
func (e *Engine) Promises(characterID string, activeOnly bool) []domain.Promise {
	if characterID == "" && activeOnly {
		return e.Memory.ActivePromises()
	}
	list := e.Memory.Promises()
	if characterID != "" {
		list = e.Memory.PromisesMadeTo(characterID)
	}
	if !activeOnly {
		return list
	}
	out := []domain.Promise{}
	for _, p := range list {
		if p.Status == domain.PromiseActive {
			out = append(out, p)
		}
	}
	return out
}

// AddKnowledge records a fact held by f.CharacterID.
func (e *Engine) AddKnowledge(f domain.KnowledgeFact) (domain.KnowledgeFact, error) {
	if strings.TrimSpace(f.CharacterID) == "" {
		return domain.KnowledgeFact{}, domain.ValidationError{Field: "characterId", Reason: "required"}
	}
	if strings.TrimSpace(f.Content) == "" {
		return domain.KnowledgeFact{}, domain.ValidationError{Field: "content", Reason: "required"}
	}
	if f.Category == "" {
		f.Category = "general"
	}
	if f.Source == "" {
		f.Source = "direct"
	}
	switch {
	case !domain.Contains(domain.KnowledgeCategories, f.Category):
		return domain.KnowledgeFact{}, domain.ValidationError{Field: "category", Reason: "unknown category " + f.Category}
	case !domain.Contains(domain.KnowledgeSources, f.Source):
		return domain.KnowledgeFact{}, domain.ValidationError{Field: "source", Reason: "unknown source " + f.Source}
	case f.Confidence < 0 || f.Confidence > 100:
		return domain.KnowledgeFact{}, domain.ValidationError{Field: "confidence", Reason: "must be between 0 and 100"}
	}
	if f.LearnedAt.IsZero() {
		f.LearnedAt = e.CurrentDate()
	}
	f.ID = newID()
	e.Memory.AddKnowledge(f)
	return f, nil
}

func (e *Engine) Knowledge(characterID string) []domain.KnowledgeFact {
	return e.Memory.Knowledge(characterID)
}
