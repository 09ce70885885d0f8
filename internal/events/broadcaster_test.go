package events_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchline/internal/domain"
	"touchline/internal/events"
)

func quietBroadcaster() *events.Broadcaster {
	return events.NewBroadcaster(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishInSubscriptionOrder(t *testing.T) {
	b := quietBroadcaster()
	var got []string
	b.Subscribe(func(e events.Event) { got = append(got, "first:"+e.ConversationID) })
	b.Subscribe(func(e events.Event) { got = append(got, "second:"+e.ConversationID) })

	b.Publish(events.ConversationStarted("c1"))
	assert.Equal(t, []string{"first:c1", "second:c1"}, got)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := quietBroadcaster()
	assert.NotPanics(t, func() { b.Publish(events.ConversationEnded("c1")) })
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	b := quietBroadcaster()
	delivered := 0
	b.Subscribe(func(events.Event) { panic("boom") })
	b.Subscribe(func(events.Event) { delivered++ })

	b.Publish(events.NotificationAdded(domain.Notification{ID: "n1"}))
	b.Publish(events.NotificationAdded(domain.Notification{ID: "n2"}))
	assert.Equal(t, 2, delivered)
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	b := quietBroadcaster()
	count := 0
	unsubscribe := b.Subscribe(func(events.Event) { count++ })
	other := b.Subscribe(func(events.Event) {})

	b.Publish(events.ConversationStarted("c1"))
	unsubscribe()
	unsubscribe()
	b.Publish(events.ConversationStarted("c2"))

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, b.Len())
	other()
	assert.Zero(t, b.Len())
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	b := quietBroadcaster()
	var unsubscribe func()
	calls := []string{}
	unsubscribe = b.Subscribe(func(events.Event) {
		calls = append(calls, "self")
		unsubscribe()
	})
	b.Subscribe(func(events.Event) { calls = append(calls, "other") })

	b.Publish(events.ConversationStarted("c1"))
	b.Publish(events.ConversationStarted("c2"))
	assert.Equal(t, []string{"self", "other", "other"}, calls)
}

func TestNoReplayForLateSubscribers(t *testing.T) {
	b := quietBroadcaster()
	b.Publish(events.ConversationStarted("early"))
	ch, unsubscribe := b.SubscribeChan(4)
	defer unsubscribe()
	assert.Len(t, ch, 0)
}

func TestSubscribeChanDropsWhenFull(t *testing.T) {
	b := quietBroadcaster()
	ch, unsubscribe := b.SubscribeChan(1)
	b.Publish(events.ConversationStarted("c1"))
	b.Publish(events.ConversationStarted("c2"))

	require.Len(t, ch, 1)
	evt := <-ch
	assert.Equal(t, events.TypeStart, evt.Type)
	assert.Equal(t, "c1", evt.ConversationID)

	unsubscribe()
	unsubscribe()
	b.Publish(events.ConversationStarted("c3"))
	assert.Len(t, ch, 0)
	assert.Zero(t, b.Len())
}

func TestChunkCarriesMessage(t *testing.T) {
	evt := events.ConversationChunk(domain.Message{ID: "m1", ConversationID: "c1", Content: "hello"})
	assert.Equal(t, events.TypeChunk, evt.Type)
	assert.Equal(t, "c1", evt.ConversationID)
	require.NotNil(t, evt.Message)
	assert.Equal(t, "hello", evt.Message.Content)
}
