package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"touchline/internal/config"
	"touchline/internal/domain"
	"touchline/internal/events"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	defaultWebhookBuffer  = 256
)

// WebhookForwarder posts every broadcast event to the configured receivers.
// Delivery happens on its own goroutine so a slow receiver never blocks a
// publisher; events that overflow the buffer are dropped.
type WebhookForwarder struct {
	Broadcaster *events.Broadcaster
	Webhooks    []config.WebhookConfig
	Client      *http.Client
	Logger      *slog.Logger
	Now         func() time.Time
}

// StartWebhookForwarder subscribes to b and delivers until ctx is done. It
// returns nil when no webhook is enabled.
func StartWebhookForwarder(ctx context.Context, b *events.Broadcaster, hooks []config.WebhookConfig, logger *slog.Logger) *WebhookForwarder {
	var enabled []config.WebhookConfig
	for _, hook := range hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		enabled = append(enabled, hook)
	}
	if len(enabled) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &WebhookForwarder{
		Broadcaster: b,
		Webhooks:    enabled,
		Client:      &http.Client{Timeout: defaultWebhookTimeout},
		Logger:      logger,
		Now:         time.Now,
	}
	ch, unsubscribe := b.SubscribeChan(defaultWebhookBuffer)
	go f.run(ctx, ch, unsubscribe)
	return f
}

func (f *WebhookForwarder) run(ctx context.Context, ch <-chan events.Event, unsubscribe func()) {
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			f.dispatch(ctx, evt)
		}
	}
}

func (f *WebhookForwarder) dispatch(ctx context.Context, evt events.Event) {
	delivery := webhookEvent{
		ID:             uuid.New().String(),
		Type:           string(evt.Type),
		TS:             f.Now().UTC().Format(time.RFC3339Nano),
		ConversationID: evt.ConversationID,
		Message:        evt.Message,
		Notification:   evt.Notification,
	}
	for _, hook := range f.Webhooks {
		if !newEventFilter(hook.Events).match(delivery.Type) {
			continue
		}
		if err := f.postEvent(ctx, hook, delivery); err != nil {
			f.Logger.Warn("webhook delivery failed", "url", hook.URL, "event", delivery.Type, "error", err)
		}
	}
}

type webhookEvent struct {
	ID             string               `json:"id"`
	Type           string               `json:"type"`
	TS             string               `json:"ts"`
	ConversationID string               `json:"conversationId,omitempty"`
	Message        *domain.Message      `json:"message,omitempty"`
	Notification   *domain.Notification `json:"notification,omitempty"`
}

func (f *WebhookForwarder) postEvent(ctx context.Context, hook config.WebhookConfig, evt webhookEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := f.Client
	if client == nil || timeout != client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Touchline-Event", evt.Type)
	req.Header.Set("X-Touchline-Delivery", evt.ID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Touchline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
