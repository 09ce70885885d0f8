package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"touchline/internal/domain"
	"touchline/internal/events"
)

const (
	frameConnected = "connected"
	frameHeartbeat = "heartbeat"
)

// StreamFrame is one server-sent event on the agent stream. Broadcast
// events keep their own type (start, chunk, end, notification).
type StreamFrame struct {
	Type           string               `json:"type"`
	Timestamp      time.Time            `json:"timestamp"`
	ConversationID string               `json:"conversationId,omitempty"`
	Message        *domain.Message      `json:"message,omitempty"`
	Notification   *domain.Notification `json:"notification,omitempty"`
}

func eventFrame(evt events.Event, at time.Time) StreamFrame {
	return StreamFrame{
		Type:           string(evt.Type),
		Timestamp:      at,
		ConversationID: evt.ConversationID,
		Message:        evt.Message,
		Notification:   evt.Notification,
	}
}

func registerStream(api huma.API, cfg Config) {
	e := cfg.Engine
	sse.Register(api, huma.Operation{
		OperationID: "agent-stream",
		Method:      http.MethodGet,
		Path:        "/agent/stream",
		Summary:     "Live conversation and notification events",
	}, map[string]any{
		"message": StreamFrame{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		ch, unsubscribe := e.Events.SubscribeChan(cfg.StreamBuffer)
		defer unsubscribe()
		if err := send.Data(StreamFrame{Type: frameConnected, Timestamp: e.Now().UTC()}); err != nil {
			return
		}
		e.Logger.Debug("stream client connected", "subscribers", e.Events.Len())
		heartbeat := time.NewTicker(cfg.HeartbeatInterval)
		defer heartbeat.Stop()
		for {
			var frame StreamFrame
			select {
			case <-ctx.Done():
				e.Logger.Debug("stream client disconnected")
				return
			case <-heartbeat.C:
				frame = StreamFrame{Type: frameHeartbeat, Timestamp: e.Now().UTC()}
			case evt := <-ch:
				frame = eventFrame(evt, e.Now().UTC())
			}
			if err := send.Data(frame); err != nil {
				return
			}
		}
	})
}
