package server

import (
	"encoding/json"
	"time"

	"touchline/internal/domain"
)

// Request payloads

// DateRequest is a game date whose weekday may be omitted.
type DateRequest struct {
	Year    int    `json:"year" minimum:"1"`
	Month   int    `json:"month" minimum:"1" maximum:"12"`
	Day     int    `json:"day" minimum:"1" maximum:"31"`
	Weekday string `json:"weekday,omitempty"`
}

func (d *DateRequest) gameDate() *domain.GameDate {
	if d == nil {
		return nil
	}
	g := domain.GameDate{Year: d.Year, Month: d.Month, Day: d.Day, Weekday: d.Weekday}
	if g.Weekday == "" {
		g.Weekday = time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Weekday().String()
	}
	return &g
}

type ActRequest struct {
	Type    string         `json:"type" enum:"respond,trigger_event,update_memory,end_conversation"`
	Payload map[string]any `json:"payload"`
}

type AgentMessageRequest struct {
	Type    string `json:"type" enum:"thinking,action,status,response"`
	Content string `json:"content" minLength:"1"`
}

type StartConversationRequest struct {
	CharacterID      string `json:"characterId" minLength:"1"`
	ConversationType string `json:"conversationType"`
	NotificationID   string `json:"notificationId,omitempty"`
}

type SendMessageRequest struct {
	Content string `json:"content" minLength:"1"`
}

type ReplyRequest struct {
	Content string `json:"content" minLength:"1"`
	Emotion string `json:"emotion,omitempty"`
}

type EndConversationRequest struct {
	Outcome *domain.ConversationOutcome `json:"outcome,omitempty"`
	Summary string                      `json:"summary,omitempty"`
}

type NotificationRequest struct {
	EventID          string       `json:"eventId,omitempty"`
	Title            string       `json:"title" minLength:"1"`
	Preview          string       `json:"preview,omitempty"`
	Icon             string       `json:"icon,omitempty"`
	Priority         string       `json:"priority,omitempty"`
	GameDate         *DateRequest `json:"gameDate,omitempty"`
	ExpiresAt        *DateRequest `json:"expiresAt,omitempty"`
	ActionType       string       `json:"actionType,omitempty"`
	ConversationType string       `json:"conversationType,omitempty"`
	CharacterID      string       `json:"characterId,omitempty"`
}

type PromiseRequest struct {
	MadeBy               string       `json:"madeBy,omitempty"`
	MadeToCharacterID    string       `json:"madeToCharacterId"`
	Content              string       `json:"content"`
	Category             string       `json:"category,omitempty"`
	ExpiresAt            *DateRequest `json:"expiresAt,omitempty"`
	VerificationCriteria string       `json:"verificationCriteria,omitempty"`
	WitnessCharacterIDs  []string     `json:"witnessCharacterIds,omitempty"`
	ConversationID       string       `json:"conversationId,omitempty"`
}

type PromiseStatusRequest struct {
	Status string `json:"status" enum:"kept,broken,expired,acknowledged"`
}

type KnowledgeRequest struct {
	Content           string `json:"content"`
	Category          string `json:"category,omitempty"`
	CharacterID       string `json:"characterId"`
	Source            string `json:"source,omitempty"`
	SourceCharacterID string `json:"sourceCharacterId,omitempty"`
	Confidence        *int   `json:"confidence,omitempty"`
	AboutCharacterID  string `json:"aboutCharacterId,omitempty"`
	AboutMatchID      string `json:"aboutMatchId,omitempty"`
}

// SnapshotRequest is decoded from the raw body so partial domain records
// are accepted as-is.
type SnapshotRequest struct {
	TeamSlug string               `json:"teamSlug,omitempty"`
	GameDate *domain.GameDate     `json:"gameDate,omitempty"`
	Team     *domain.TeamState    `json:"team,omitempty"`
	Players  []domain.PlayerState `json:"players,omitempty"`
	Events   []domain.GameEvent   `json:"events,omitempty"`
}

// Response payloads

type HealthResponse struct {
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	Simulation  string     `json:"simulation" enum:"up,down,disabled"`
	LastRefresh *time.Time `json:"lastRefresh,omitempty" doc:"when the simulation last answered a refresh"`
}

type ActResponse struct {
	Success bool `json:"success"`
	Queued  bool `json:"queued"`
}

type ActionResponse struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type NextActionResponse struct {
	HasAction bool            `json:"hasAction"`
	Action    *ActionResponse `json:"action"`
}

type AgentMessageResponse struct {
	Success bool                `json:"success"`
	Message domain.AgentMessage `json:"message"`
}

type AgentMessagesResponse struct {
	Messages []domain.AgentMessage `json:"messages"`
}

type SendMessageResponse struct {
	Message            domain.Message            `json:"message"`
	ConversationStatus domain.ConversationStatus `json:"conversationStatus"`
}

type ReplyResponse struct {
	Message domain.Message `json:"message"`
}

type EndConversationResponse struct {
	Success      bool                `json:"success"`
	Conversation domain.Conversation `json:"conversation"`
}

type ConversationListResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

type InboxResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

type PromisesResponse struct {
	Promises []domain.Promise `json:"promises"`
}

type KnowledgeResponse struct {
	Knowledge []domain.KnowledgeFact `json:"knowledge"`
}

type GameStateResponse struct {
	State       map[string]json.RawMessage `json:"state"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

type SnapshotResponse struct {
	Success  bool            `json:"success"`
	GameDate domain.GameDate `json:"gameDate"`
}

func actionResponse(a domain.Action) *ActionResponse {
	return &ActionResponse{Type: string(a.Type), Payload: a.Payload()}
}

func notificationSpec(req NotificationRequest) domain.NotificationSpec {
	spec := domain.NotificationSpec{
		EventID:          req.EventID,
		Title:            req.Title,
		Preview:          req.Preview,
		Icon:             req.Icon,
		Priority:         req.Priority,
		ExpiresAt:        req.ExpiresAt.gameDate(),
		ActionType:       req.ActionType,
		ConversationType: req.ConversationType,
		CharacterID:      req.CharacterID,
	}
	if d := req.GameDate.gameDate(); d != nil {
		spec.GameDate = *d
	}
	return spec
}

func promiseFromRequest(req PromiseRequest) domain.Promise {
	return domain.Promise{
		MadeBy:               req.MadeBy,
		MadeToCharacterID:    req.MadeToCharacterID,
		Content:              req.Content,
		Category:             req.Category,
		ExpiresAt:            req.ExpiresAt.gameDate(),
		VerificationCriteria: req.VerificationCriteria,
		WitnessCharacterIDs:  req.WitnessCharacterIDs,
		ConversationID:       req.ConversationID,
	}
}

func knowledgeFromRequest(req KnowledgeRequest) domain.KnowledgeFact {
	f := domain.KnowledgeFact{
		Content:           req.Content,
		Category:          req.Category,
		CharacterID:       req.CharacterID,
		Source:            req.Source,
		SourceCharacterID: req.SourceCharacterID,
		AboutCharacterID:  req.AboutCharacterID,
		AboutMatchID:      req.AboutMatchID,
		Confidence:        100,
	}
	if req.Confidence != nil {
		f.Confidence = *req.Confidence
	}
	return f
}
