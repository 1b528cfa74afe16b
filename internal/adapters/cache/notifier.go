package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisNotifier fans snapshot change signals out through redis pub/sub so
// every sync server instance can wake its realtime listeners.
type RedisNotifier struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisNotifier(client *redis.Client, logger zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

func channelName(ownerID, key string) string {
	return fmt.Sprintf("snapshots:changed:%s:%s", ownerID, key)
}

func (n *RedisNotifier) Publish(ctx context.Context, ownerID, key string) error {
	if err := n.client.Publish(ctx, channelName(ownerID, key), key).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, ownerID, key string) (<-chan struct{}, func(), error) {
	pubsub := n.client.Subscribe(ctx, channelName(ownerID, key))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				n.logger.Warn().Err(err).Msg("[REALTIME] Failed to close subscription")
			}
		})
	}
	return out, release, nil
}
