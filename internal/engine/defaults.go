package engine

import (
	"strings"
	"time"

	"touchline/internal/config"
	"touchline/internal/domain"
	"touchline/internal/simclient"
)

// MergeGameDate fills the fields partial lacks from fallback. When the
// simulation reports a calendar day without a weekday, the weekday is
// computed rather than borrowed from fallback.
func MergeGameDate(partial simclient.Date, fallback domain.GameDate) domain.GameDate {
	d := fallback
	set(&d.Year, partial.Year)
	set(&d.Month, partial.Month)
	set(&d.Day, partial.Day)
	switch {
	case partial.Weekday != nil:
		d.Weekday = *partial.Weekday
	case partial.Year != nil || partial.Month != nil || partial.Day != nil:
		d.Weekday = time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Weekday().String()
	}
	return d
}

// DefaultTeam is the defaults-table team as seen for slug. A slug other
// than the table's own team keeps the table's numbers under the slug's
// identity.
func DefaultTeam(slug string, defaults domain.TeamState) domain.TeamState {
	t := defaults
	t.UpcomingMatches = []domain.UpcomingMatch{}
	if slug != "" && slug != defaults.ID {
		t.ID = slug
		t.Name = domain.NameFromSlug(slug)
	}
	return t
}

// MergeTeam applies partial team records over base in order. Later layers
// win; nil fields leave the value underneath.
func MergeTeam(base domain.TeamState, layers ...simclient.Team) domain.TeamState {
	t := base
	t.UpcomingMatches = append([]domain.UpcomingMatch{}, base.UpcomingMatches...)
	for _, l := range layers {
		set(&t.ID, (*string)(l.ID))
		set(&t.Name, l.Name)
		set(&t.LeaguePosition, l.LeaguePosition)
		set(&t.LeagueName, l.LeagueName)
		set(&t.RecentForm, l.RecentForm)
		set(&t.Finances.Balance, l.Balance)
		set(&t.Finances.WageBill, l.WageBill)
		set(&t.Finances.TransferBudget, l.TransferBudget)
		set(&t.BoardConfidence, l.BoardConfidence)
		set(&t.BoardExpectations, l.BoardExpectations)
		set(&t.TeamMorale, l.TeamMorale)
		if l.UpcomingMatches != nil {
			t.UpcomingMatches = append([]domain.UpcomingMatch{}, l.UpcomingMatches...)
		}
	}
	return t
}

// ResolveCharacter describes the character behind id. A squad player
// matched by id or display name supplies name, mood, trust and (when known)
// personality; anything else comes from the defaults table.
func ResolveCharacter(id string, players []domain.PlayerState, d config.CharacterDefaults) domain.Character {
	c := domain.Character{
		ID:             id,
		Name:           domain.NameFromSlug(id),
		Role:           d.Role,
		Personality:    d.Personality,
		Mood:           d.Mood,
		TrustInManager: d.TrustInManager,
	}
	if p, ok := domain.PersonalityFromArchetype(d.Archetype); ok {
		c.Personality = p
		c.Archetype = d.Archetype
	}
	for _, p := range players {
		if p.ID != id && !strings.EqualFold(p.Name, c.Name) {
			continue
		}
		if p.Name != "" {
			c.Name = p.Name
		}
		c.Role = "player"
		c.PlayerID = p.ID
		c.Mood = p.Mood
		c.TrustInManager = p.TrustInManager
		if p.Personality != nil {
			c.Personality = *p.Personality
			c.Archetype = ""
		}
		break
	}
	return c
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
