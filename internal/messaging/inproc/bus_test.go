package inproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asd_commerce/internal/domain"
)

func TestPublishFansOutToTopicAndWildcard(t *testing.T) {
	b := New(4)
	alerts := b.Subscribe("notifier", domain.EventStockAlert)
	all := b.Subscribe("forwarder", Wildcard)

	require.NoError(t, b.Publish(domain.Event{ID: "e1", Topic: domain.EventStockAlert}))
	require.NoError(t, b.Publish(domain.Event{ID: "e2", Topic: domain.EventTaskCompleted}))

	assert.Equal(t, "e1", (<-alerts).ID)
	assert.Equal(t, "e1", (<-all).ID)
	assert.Equal(t, "e2", (<-all).ID)
	assert.Len(t, alerts, 0)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New(1)
	assert.ErrorIs(t, b.Publish(domain.Event{Topic: "nobody"}), ErrNoSubscribers)
}

func TestPublishReportsFullQueue(t *testing.T) {
	b := New(1)
	slow := b.Subscribe("slow", "t")
	fast := b.Subscribe("fast", "t")

	require.NoError(t, b.Publish(domain.Event{ID: "1", Topic: "t"}))
	<-fast
	err := b.Publish(domain.Event{ID: "2", Topic: "t"})
	assert.ErrorIs(t, err, ErrSubscriberQueueFull)
	assert.Equal(t, "2", (<-fast).ID)
	assert.Equal(t, "1", (<-slow).ID)
}

func TestSubscribeIsIdempotentAndUnsubscribeCloses(t *testing.T) {
	b := New(1)
	first := b.Subscribe("a", "t")
	second := b.Subscribe("a", "t")
	assert.Equal(t, first, second)

	b.Unsubscribe("a", "t")
	_, open := <-first
	assert.False(t, open)
	assert.ErrorIs(t, b.Publish(domain.Event{Topic: "t"}), ErrNoSubscribers)

	b.Unsubscribe("a", "t")
}
