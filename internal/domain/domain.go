package domain

import (
	"fmt"
	"time"
)

// GameDate is a day on the simulation calendar.
type GameDate struct {
	Year    int    `json:"year" yaml:"year"`
	Month   int    `json:"month" yaml:"month"`
	Day     int    `json:"day" yaml:"day"`
	Weekday string `json:"weekday" yaml:"weekday"`
}

func (d GameDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d GameDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// GameDateOf converts a wall-clock time into a GameDate.
func GameDateOf(t time.Time) GameDate {
	return GameDate{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Weekday: t.Weekday().String(),
	}
}

type Finances struct {
	Balance        int64 `json:"balance" yaml:"balance"`
	WageBill       int64 `json:"wageBill" yaml:"wage_bill"`
	TransferBudget int64 `json:"transferBudget" yaml:"transfer_budget"`
}

type UpcomingMatch struct {
	MatchID     string   `json:"matchId"`
	Date        GameDate `json:"date"`
	Opponent    string   `json:"opponent"`
	Competition string   `json:"competition"`
	IsHome      bool     `json:"isHome"`
}

type TeamState struct {
	ID                string          `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	LeaguePosition    int             `json:"leaguePosition" yaml:"league_position"`
	LeagueName        string          `json:"leagueName" yaml:"league_name"`
	RecentForm        string          `json:"recentForm" yaml:"recent_form"`
	Finances          Finances        `json:"finances" yaml:"finances"`
	BoardConfidence   int             `json:"boardConfidence" yaml:"board_confidence"`
	BoardExpectations string          `json:"boardExpectations" yaml:"board_expectations"`
	TeamMorale        int             `json:"teamMorale" yaml:"team_morale"`
	UpcomingMatches   []UpcomingMatch `json:"upcomingMatches" yaml:"-"`
}

type Contract struct {
	Salary         int64    `json:"salary"`
	ExpiresAt      GameDate `json:"expiresAt"`
	YearsRemaining int      `json:"yearsRemaining"`
	ReleaseClause  *int64   `json:"releaseClause,omitempty"`
}

type SeasonStats struct {
	Appearances   int     `json:"appearances"`
	Goals         int     `json:"goals"`
	Assists       int     `json:"assists"`
	AverageRating float64 `json:"averageRating"`
}

type PlayerState struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Age                int          `json:"age"`
	Nationality        string       `json:"nationality,omitempty"`
	Position           string       `json:"position"`
	PreferredPositions []string     `json:"preferredPositions"`
	Overall            int          `json:"overall"`
	Potential          int          `json:"potential"`
	Mood               int          `json:"mood"`
	TrustInManager     int          `json:"trustInManager"`
	Form               int          `json:"form"`
	Fitness            int          `json:"fitness"`
	Contract           Contract     `json:"contract"`
	Concerns           []string     `json:"concerns"`
	SeasonStats        SeasonStats  `json:"seasonStats"`
	Personality        *Personality `json:"personality,omitempty"`
}

// GameEvent is something that happened in the simulation and may trigger a conversation.
type GameEvent struct {
	ID                      string         `json:"id"`
	Type                    string         `json:"type"`
	Timestamp               time.Time      `json:"timestamp"`
	GameDate                GameDate       `json:"gameDate"`
	Data                    map[string]any `json:"data,omitempty"`
	Handled                 bool           `json:"handled"`
	TriggeredConversationID string         `json:"triggeredConversationId,omitempty"`
}

type ConversationStatus string

const (
	ConversationPending   ConversationStatus = "pending"
	ConversationActive    ConversationStatus = "active"
	ConversationResolved  ConversationStatus = "resolved"
	ConversationAbandoned ConversationStatus = "abandoned"
)

// Terminal reports whether no further status transition is allowed.
func (s ConversationStatus) Terminal() bool {
	return s == ConversationResolved || s == ConversationAbandoned
}

var ConversationTypes = []string{
	"player_unhappy",
	"player_dropped",
	"contract_negotiation",
	"transfer_request",
	"press_conference",
	"board_meeting",
	"agent_call",
	"welcome_signing",
	"pre_match_talk",
	"post_match_talk",
}

type MessageRole string

const (
	RoleManager   MessageRole = "manager"
	RoleCharacter MessageRole = "character"
)

var Emotions = []string{"neutral", "happy", "angry", "frustrated", "hopeful", "defeated", "suspicious", "grateful"}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	CharacterID    string      `json:"characterId,omitempty"`
	Emotion        string      `json:"emotion,omitempty"`
}

type ConversationOutcome struct {
	Type        string         `json:"type"`
	Details     map[string]any `json:"details,omitempty"`
	MoodChange  *int           `json:"moodChange,omitempty"`
	TrustChange *int           `json:"trustChange,omitempty"`
}

type Conversation struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	CharacterID string               `json:"characterId"`
	Status      ConversationStatus   `json:"status"`
	TriggeredAt GameDate             `json:"triggeredAt"`
	StartedAt   *time.Time           `json:"startedAt,omitempty"`
	EndedAt     *time.Time           `json:"endedAt,omitempty"`
	Messages    []Message            `json:"messages"`
	Outcome     *ConversationOutcome `json:"outcome,omitempty"`
	Summary     string               `json:"summary,omitempty"`
}

type GameContext struct {
	CurrentDate    GameDate `json:"currentDate"`
	RecentResults  string   `json:"recentResults"`
	LeaguePosition int      `json:"leaguePosition"`
	NextMatch      string   `json:"nextMatch,omitempty"`
}

// ConversationContext is everything the agent needs to speak as a character.
type ConversationContext struct {
	Conversation       Conversation    `json:"conversation"`
	Character          Character       `json:"character"`
	RelevantPromises   []Promise       `json:"relevantPromises"`
	RelevantKnowledge  []KnowledgeFact `json:"relevantKnowledge"`
	RecentInteractions []Conversation  `json:"recentInteractions"`
	GameContext        GameContext     `json:"gameContext"`
}

type Notification struct {
	ID               string    `json:"id"`
	EventID          string    `json:"eventId"`
	Title            string    `json:"title"`
	Preview          string    `json:"preview"`
	Icon             string    `json:"icon"`
	Priority         string    `json:"priority"`
	CreatedAt        time.Time `json:"createdAt"`
	GameDate         GameDate  `json:"gameDate"`
	ExpiresAt        *GameDate `json:"expiresAt,omitempty"`
	Read             bool      `json:"read"`
	Dismissed        bool      `json:"dismissed"`
	ActionType       string    `json:"actionType"`
	ConversationType string    `json:"conversationType,omitempty"`
	CharacterID      string    `json:"characterId,omitempty"`
}

// NotificationSpec holds the caller-supplied fields of a new notification.
type NotificationSpec struct {
	EventID          string
	Title            string
	Preview          string
	Icon             string
	Priority         string
	GameDate         GameDate
	ExpiresAt        *GameDate
	ActionType       string
	ConversationType string
	CharacterID      string
}

var (
	NotificationIcons      = []string{"player", "contract", "transfer", "board", "press", "match", "warning", "info"}
	NotificationPriorities = []string{"urgent", "high", "medium", "low"}
	NotificationActions    = []string{"start_conversation", "view_details", "dismiss"}
)

type PromiseStatus string

const (
	PromiseActive       PromiseStatus = "active"
	PromiseKept         PromiseStatus = "kept"
	PromiseBroken       PromiseStatus = "broken"
	PromiseExpired      PromiseStatus = "expired"
	PromiseAcknowledged PromiseStatus = "acknowledged"
)

// CanTransition reports whether a promise may move from s to next.
func (s PromiseStatus) CanTransition(next PromiseStatus) bool {
	switch s {
	case PromiseActive:
		return next == PromiseKept || next == PromiseBroken || next == PromiseExpired
	case PromiseBroken:
		return next == PromiseAcknowledged
	}
	return false
}

var PromiseCategories = []string{"playing_time", "contract", "transfer", "tactics", "signing", "general"}

type Promise struct {
	ID                   string        `json:"id"`
	MadeBy               string        `json:"madeBy"`
	MadeToCharacterID    string        `json:"madeToCharacterId"`
	Content              string        `json:"content"`
	Category             string        `json:"category"`
	MadeAt               GameDate      `json:"madeAt"`
	ExpiresAt            *GameDate     `json:"expiresAt,omitempty"`
	Status               PromiseStatus `json:"status"`
	BrokenAt             *GameDate     `json:"brokenAt,omitempty"`
	KeptAt               *GameDate     `json:"keptAt,omitempty"`
	VerificationCriteria string        `json:"verificationCriteria,omitempty"`
	WitnessCharacterIDs  []string      `json:"witnessCharacterIds"`
	ConversationID       string        `json:"conversationId"`
}

var (
	KnowledgeCategories = []string{"player_mood", "transfer_rumor", "manager_promise", "dressing_room", "board_pressure", "injury", "form", "general"}
	KnowledgeSources    = []string{"direct", "gossip", "observation", "public"}
)

type KnowledgeFact struct {
	ID                string   `json:"id"`
	Content           string   `json:"content"`
	Category          string   `json:"category"`
	CharacterID       string   `json:"characterId"`
	Source            string   `json:"source"`
	SourceCharacterID string   `json:"sourceCharacterId,omitempty"`
	LearnedAt         GameDate `json:"learnedAt"`
	Confidence        int      `json:"confidence"`
	AboutCharacterID  string   `json:"aboutCharacterId,omitempty"`
	AboutMatchID      string   `json:"aboutMatchId,omitempty"`
}

type AgentMessageType string

var AgentMessageTypes = []string{"thinking", "action", "status", "response"}

type AgentMessage struct {
	ID        string           `json:"id"`
	Type      AgentMessageType `json:"type"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"at"`
}

// Observation is the composed snapshot the agent polls.
type Observation struct {
	GameDate             GameDate             `json:"gameDate"`
	Team                 TeamState            `json:"team"`
	Players              []PlayerState        `json:"players"`
	RecentEvents         []GameEvent          `json:"recentEvents"`
	ActiveConversation   *ConversationContext `json:"activeConversation,omitempty"`
	PendingNotifications []Notification       `json:"pendingNotifications"`
	ActivePromises       []Promise            `json:"activePromises"`
	RecentKnowledge      []KnowledgeFact      `json:"recentKnowledge"`
}

// Contains reports whether v is one of options.
func Contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
