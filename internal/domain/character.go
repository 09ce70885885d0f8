package domain

import "strings"

// Personality traits, all on a 0-100 scale.
type Personality struct {
	Ambition        int `json:"ambition" yaml:"ambition"`
	Loyalty         int `json:"loyalty" yaml:"loyalty"`
	Temperament     int `json:"temperament" yaml:"temperament"`
	Professionalism int `json:"professionalism" yaml:"professionalism"`
	Confidence      int `json:"confidence" yaml:"confidence"`
	Greed           int `json:"greed" yaml:"greed"`
}

type Character struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Role           string      `json:"role"`
	Personality    Personality `json:"personality"`
	Archetype      string      `json:"archetype,omitempty"`
	Mood           int         `json:"mood"`
	TrustInManager int         `json:"trustInManager"`
	PlayerID       string      `json:"playerId,omitempty"`
}

var CharacterRoles = []string{"player", "staff", "board", "press", "agent"}

var archetypes = map[string]Personality{
	"professional": {Ambition: 60, Loyalty: 70, Temperament: 80, Professionalism: 90, Confidence: 70, Greed: 40},
	"mercenary":    {Ambition: 80, Loyalty: 20, Temperament: 50, Professionalism: 60, Confidence: 70, Greed: 90},
	"hothead":      {Ambition: 70, Loyalty: 50, Temperament: 20, Professionalism: 40, Confidence: 85, Greed: 50},
	"leader":       {Ambition: 60, Loyalty: 90, Temperament: 75, Professionalism: 85, Confidence: 80, Greed: 30},
	"prospect":     {Ambition: 90, Loyalty: 60, Temperament: 60, Professionalism: 70, Confidence: 65, Greed: 50},
	"veteran":      {Ambition: 40, Loyalty: 85, Temperament: 80, Professionalism: 80, Confidence: 70, Greed: 40},
}

// PersonalityFromArchetype returns the trait preset for an archetype.
func PersonalityFromArchetype(archetype string) (Personality, bool) {
	p, ok := archetypes[archetype]
	return p, ok
}

// NameFromSlug turns "marco-rossi" into "Marco Rossi".
func NameFromSlug(slug string) string {
	parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
