package events

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
)

// InMemoryEventBus delivers events to subscribers in the same process
type InMemoryEventBus struct {
	local  *fanout
	closed atomic.Bool
}

// NewInMemoryEventBus creates a process-local event bus
func NewInMemoryEventBus() providers.EventBus {
	return &InMemoryEventBus{local: newFanout()}
}

// Publish delivers the event to current subscribers of channel
func (b *InMemoryEventBus) Publish(ctx context.Context, channel string, event *entities.ProfileEvent) error {
	if b.closed.Load() {
		return fmt.Errorf("event bus closed")
	}
	b.local.broadcast(channel, event)
	return nil
}

// Subscribe returns a channel of events until ctx is done
func (b *InMemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ProfileEvent, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("event bus closed")
	}
	ch, _ := b.local.add(channel)
	go func() {
		<-ctx.Done()
		b.local.remove(channel, ch)
	}()
	return ch, nil
}

// Unsubscribe drops every subscriber of channel
func (b *InMemoryEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.local.closeChannel(channel)
	return nil
}

// Close drops all subscribers
func (b *InMemoryEventBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, channel := range b.local.channels() {
		b.local.closeChannel(channel)
	}
	return nil
}
