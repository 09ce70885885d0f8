package touchlinesdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Touchline bridge API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://127.0.0.1:3001/api.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// GameDate is a day on the simulation calendar.
type GameDate struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day"`
	Weekday string `json:"weekday"`
}

func (d GameDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Team is the observed team (partial).
type Team struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	LeaguePosition  int    `json:"leaguePosition"`
	LeagueName      string `json:"leagueName"`
	RecentForm      string `json:"recentForm"`
	BoardConfidence int    `json:"boardConfidence"`
	TeamMorale      int    `json:"teamMorale"`
}

// Notification is an inbox entry.
type Notification struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Preview          string    `json:"preview"`
	Icon             string    `json:"icon"`
	Priority         string    `json:"priority"`
	CreatedAt        time.Time `json:"createdAt"`
	GameDate         GameDate  `json:"gameDate"`
	Read             bool      `json:"read"`
	Dismissed        bool      `json:"dismissed"`
	ActionType       string    `json:"actionType"`
	ConversationType string    `json:"conversationType,omitempty"`
	CharacterID      string    `json:"characterId,omitempty"`
}

// NotificationInput holds the fields of a new notification.
type NotificationInput struct {
	Title            string `json:"title"`
	Preview          string `json:"preview,omitempty"`
	Icon             string `json:"icon,omitempty"`
	Priority         string `json:"priority,omitempty"`
	ActionType       string `json:"actionType,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	CharacterID      string `json:"characterId,omitempty"`
}

// Message is one line of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	CharacterID    string    `json:"characterId,omitempty"`
	Emotion        string    `json:"emotion,omitempty"`
}

// Conversation represents the API conversation model (partial).
type Conversation struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	CharacterID string     `json:"characterId"`
	Status      string     `json:"status"`
	TriggeredAt GameDate   `json:"triggeredAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Messages    []Message  `json:"messages"`
	Summary     string     `json:"summary,omitempty"`
}

// ConversationContext is the active conversation as the agent sees it (partial).
type ConversationContext struct {
	Conversation Conversation `json:"conversation"`
	Character    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
		Mood int    `json:"mood"`
	} `json:"character"`
}

// Observation is the composed snapshot the agent polls (partial).
type Observation struct {
	GameDate             GameDate             `json:"gameDate"`
	Team                 Team                 `json:"team"`
	ActiveConversation   *ConversationContext `json:"activeConversation,omitempty"`
	PendingNotifications []Notification       `json:"pendingNotifications"`
	ActivePromises       []json.RawMessage    `json:"activePromises"`
	RecentKnowledge      []json.RawMessage    `json:"recentKnowledge"`
}

// Action is a queued agent intent. Payload is kept raw.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AgentMessage is one entry of the agent activity log.
type AgentMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"at"`
}

// Frame is one event from the live stream.
type Frame struct {
	Type           string        `json:"type"`
	Timestamp      time.Time     `json:"timestamp"`
	ConversationID string        `json:"conversationId,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	Notification   *Notification `json:"notification,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Observe returns the current observation. refresh asks the bridge to query
// the simulation first.
func (c *Client) Observe(ctx context.Context, team string, refresh bool) (Observation, error) {
	q := url.Values{}
	if team != "" {
		q.Set("team", team)
	}
	q.Set("refresh", fmt.Sprint(refresh))
	var resp Observation
	err := c.do(ctx, http.MethodGet, "agent/observe?"+q.Encode(), nil, &resp)
	return resp, err
}

// Act queues an action. payload is marshalled as the action's payload object.
func (c *Client) Act(ctx context.Context, actionType string, payload any) error {
	body := map[string]any{
		"type":    actionType,
		"payload": payload,
	}
	return c.do(ctx, http.MethodPost, "agent/act", body, nil)
}

// Next pops the oldest queued action. ok is false when the queue is empty.
func (c *Client) Next(ctx context.Context) (a Action, ok bool, err error) {
	var resp struct {
		HasAction bool    `json:"hasAction"`
		Action    *Action `json:"action"`
	}
	if err := c.do(ctx, http.MethodGet, "agent/next", nil, &resp); err != nil {
		return Action{}, false, err
	}
	if !resp.HasAction || resp.Action == nil {
		return Action{}, false, nil
	}
	return *resp.Action, true, nil
}

// PostMessage logs an agent message.
func (c *Client) PostMessage(ctx context.Context, msgType, content string) (AgentMessage, error) {
	body := map[string]any{
		"type":    msgType,
		"content": content,
	}
	var resp struct {
		Message AgentMessage `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "agent/messages", body, &resp)
	return resp.Message, err
}

// Messages lists agent messages, only those newer than since when it is set.
func (c *Client) Messages(ctx context.Context, since *time.Time) ([]AgentMessage, error) {
	endpoint := "agent/messages"
	if since != nil {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	var resp struct {
		Messages []AgentMessage `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Messages, err
}

// Inbox returns pending notifications, most recent first, and the unread count.
func (c *Client) Inbox(ctx context.Context) ([]Notification, int, error) {
	var resp struct {
		Notifications []Notification `json:"notifications"`
		UnreadCount   int            `json:"unreadCount"`
	}
	err := c.do(ctx, http.MethodGet, "inbox", nil, &resp)
	return resp.Notifications, resp.UnreadCount, err
}

// AddNotification adds a notification to the inbox.
func (c *Client) AddNotification(ctx context.Context, in NotificationInput) (Notification, error) {
	var resp Notification
	err := c.do(ctx, http.MethodPost, "inbox", in, &resp)
	return resp, err
}

// DismissNotification hides a notification from the inbox.
func (c *Client) DismissNotification(ctx context.Context, id string) (Notification, error) {
	var resp Notification
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("inbox/%s/dismiss", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// StartConversation opens a conversation, marking notificationID read when set.
func (c *Client) StartConversation(ctx context.Context, characterID, conversationType, notificationID string) (Conversation, error) {
	body := map[string]any{
		"characterId":      characterID,
		"conversationType": conversationType,
	}
	if notificationID != "" {
		body["notificationId"] = notificationID
	}
	var resp Conversation
	err := c.do(ctx, http.MethodPost, "conversation/start", body, &resp)
	return resp, err
}

// Conversation fetches a conversation with its messages.
func (c *Client) Conversation(ctx context.Context, id string) (Conversation, error) {
	var resp Conversation
	err := c.do(ctx, http.MethodGet, "conversation/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Send posts a manager message and returns it with the conversation status.
func (c *Client) Send(ctx context.Context, conversationID, content string) (Message, string, error) {
	var resp struct {
		Message            Message `json:"message"`
		ConversationStatus string  `json:"conversationStatus"`
	}
	endpoint := fmt.Sprintf("conversation/%s/send", url.PathEscape(conversationID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"content": content}, &resp)
	return resp.Message, resp.ConversationStatus, err
}

// End resolves a conversation.
func (c *Client) End(ctx context.Context, conversationID, summary string) (Conversation, error) {
	var body any
	if summary != "" {
		body = map[string]any{"summary": summary}
	}
	var resp struct {
		Conversation Conversation `json:"conversation"`
	}
	endpoint := fmt.Sprintf("conversation/%s/end", url.PathEscape(conversationID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp.Conversation, err
}

// Stream reads the live event stream, calling fn for each frame until ctx is
// done, the server closes the stream or fn returns an error.
func (c *Client) Stream(ctx context.Context, fn func(Frame) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/agent/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	// The stream outlives any request timeout.
	client := &http.Client{}
	if c.HTTPClient != nil {
		client = &http.Client{Transport: c.HTTPClient.Transport}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		var frame Frame
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &frame); err != nil {
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
