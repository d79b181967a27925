package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
)

func TestInMemoryEventBus_FansOutToSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()
	ctx := context.Background()

	first, err := bus.Subscribe(ctx, providers.EventChannelProfileUpdates)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, providers.EventChannelProfileUpdates)
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "profile:u2")
	require.NoError(t, err)

	event := entities.NewProfileEvent(entities.ProfileEventQuestCompleted, "u1")
	require.NoError(t, bus.Publish(ctx, providers.EventChannelProfileUpdates, event))

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)
	select {
	case <-other:
		t.Fatal("event leaked to another channel")
	default:
	}
}

func TestInMemoryEventBus_CancelClosesSubscription(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestInMemoryEventBus_CloseRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus()
	ch, err := bus.Subscribe(context.Background(), "c")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.Error(t, bus.Publish(context.Background(), "c", entities.NewProfileEvent(entities.ProfileEventQuestCompleted, "u")))
}

func TestFanout_FullSubscriberDoesNotBlock(t *testing.T) {
	f := newFanout()
	ch, _ := f.add("c")
	event := entities.NewProfileEvent(entities.ProfileEventReviewSubmitted, "u")

	for i := 0; i < subscriberBuffer+5; i++ {
		f.broadcast("c", event)
	}
	assert.Len(t, ch, subscriberBuffer)
}
