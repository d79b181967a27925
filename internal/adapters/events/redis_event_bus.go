package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	redisclient "github.com/sidequest/backend/internal/infrastructure/clients/redis"
)

var errBusClosed = errors.New("event bus closed")

// RedisEventBus carries profile events over Redis Pub/Sub so every API
// instance sees them. One Redis subscription per channel is shared by all
// local subscribers of that channel.
type RedisEventBus struct {
	client    *redisclient.Client
	namespace string
	local     *fanout

	mu            sync.Mutex
	subscriptions map[string]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// NewRedisEventBus creates a bus whose Redis channels are prefixed with namespace
func NewRedisEventBus(client *redisclient.Client, namespace string) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		namespace:     namespace,
		local:         newFanout(),
		subscriptions: make(map[string]*redis.PubSub),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (b *RedisEventBus) redisChannel(channel string) string {
	if b.namespace == "" {
		return channel
	}
	return b.namespace + ":" + channel
}

// Publish sends the event to every instance subscribed to channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.ProfileEvent) error {
	if b.closed.Load() {
		return errBusClosed
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, b.redisChannel(channel), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", channel).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("published profile event")
	return nil
}

// Subscribe returns a channel of events published on channel until ctx is
// done. It returns once Redis has confirmed the subscription, so events
// published after Subscribe returns are not missed.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ProfileEvent, error) {
	if b.closed.Load() {
		return nil, errBusClosed
	}
	if err := b.ensureSubscription(ctx, channel); err != nil {
		return nil, err
	}

	eventChan, count := b.local.add(channel)
	log.Info().Str("channel", channel).Int("subscribers", count).Msg("subscribed to channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
			return
		}
		if b.local.remove(channel, eventChan) {
			b.closeSubscription(channel)
		}
	}()

	return eventChan, nil
}

func (b *RedisEventBus) ensureSubscription(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscriptions[channel]; ok {
		return nil
	}
	pubsub := b.client.Client().Subscribe(b.ctx, b.redisChannel(channel))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	b.subscriptions[channel] = pubsub
	go b.receiveMessages(channel, pubsub)
	return nil
}

func (b *RedisEventBus) receiveMessages(channel string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				// closed by closeSubscription; the local side is already gone
				return
			}
			var event entities.ProfileEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", channel).Msg("failed to unmarshal profile event")
				continue
			}
			b.local.broadcast(channel, &event)
		}
	}
}

func (b *RedisEventBus) closeSubscription(channel string) {
	b.mu.Lock()
	pubsub, ok := b.subscriptions[channel]
	delete(b.subscriptions, channel)
	b.mu.Unlock()

	if !ok {
		return
	}
	if err := pubsub.Close(); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("failed to close subscription")
	}
	log.Info().Str("channel", channel).Msg("closed subscription")
}

// Unsubscribe closes every local subscriber of channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.local.closeChannel(channel)
	b.closeSubscription(channel)
	return nil
}

// Close stops all subscriptions and rejects further publishes. It does not
// close the shared Redis client.
func (b *RedisEventBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()

	for _, channel := range b.local.channels() {
		b.local.closeChannel(channel)
	}
	b.mu.Lock()
	channels := make([]string, 0, len(b.subscriptions))
	for channel := range b.subscriptions {
		channels = append(channels, channel)
	}
	b.mu.Unlock()
	for _, channel := range channels {
		b.closeSubscription(channel)
	}

	log.Info().Msg("event bus closed")
	return nil
}
