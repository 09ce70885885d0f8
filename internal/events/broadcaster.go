// Package events fans state changes out to live subscribers.
package events

import (
	"fmt"
	"log/slog"
	"sync"

	"touchline/internal/domain"
)

type Type string

const (
	TypeStart        Type = "start"
	TypeChunk        Type = "chunk"
	TypeEnd          Type = "end"
	TypeNotification Type = "notification"
)

// Event is one broadcast. Conversation events carry ConversationID (and the
// message for chunks); notification events carry Notification.
type Event struct {
	Type           Type                 `json:"type"`
	ConversationID string               `json:"conversationId,omitempty"`
	Message        *domain.Message      `json:"message,omitempty"`
	Notification   *domain.Notification `json:"notification,omitempty"`
}

func ConversationStarted(id string) Event {
	return Event{Type: TypeStart, ConversationID: id}
}

func ConversationChunk(msg domain.Message) Event {
	return Event{Type: TypeChunk, ConversationID: msg.ConversationID, Message: &msg}
}

func ConversationEnded(id string) Event {
	return Event{Type: TypeEnd, ConversationID: id}
}

func NotificationAdded(n domain.Notification) Event {
	return Event{Type: TypeNotification, Notification: &n}
}

type Listener func(Event)

type subscriber struct {
	id int64
	fn Listener
}

// Broadcaster delivers each published event synchronously to every listener
// subscribed at publish time, in subscription order. Nothing is replayed to
// late subscribers.
type Broadcaster struct {
	Logger *slog.Logger

	mu     sync.RWMutex
	nextID int64
	subs   []subscriber
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{Logger: logger}
}

// Subscribe registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (b *Broadcaster) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster) remove(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			next := make([]subscriber, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

func (b *Broadcaster) Publish(evt Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, s := range subs {
		b.deliver(s, evt)
	}
}

func (b *Broadcaster) deliver(s subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger().Error("event listener panicked",
				"subscriber", s.id,
				"event", string(evt.Type),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.fn(evt)
}

// Len reports the number of current subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// SubscribeChan subscribes a buffered channel. Sends never block the
// publisher: when the buffer is full the event is dropped and logged. The
// channel is not closed by unsubscribe.
func (b *Broadcaster) SubscribeChan(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)
	done := make(chan struct{})
	unsubscribe := b.Subscribe(func(evt Event) {
		select {
		case <-done:
		case ch <- evt:
		default:
			b.logger().Warn("event subscriber buffer full, dropping event", "event", string(evt.Type))
		}
	})
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}
}
