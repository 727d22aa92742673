package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ConfigChannel carries cash config change events between replicas.
const ConfigChannel = "cash:config:changed"

// RedisConfigBus fans config changes out over Redis pub/sub so every replica
// drops its cached copy right away instead of waiting for the cache TTL.
// Pub/sub is fire-and-forget: a replica that is disconnected when a change is
// published catches up when its cache entry expires.
type RedisConfigBus struct {
	rdb *redis.Client
}

func NewRedisConfigBus(rdb *redis.Client) *RedisConfigBus {
	return &RedisConfigBus{rdb: rdb}
}

func (b *RedisConfigBus) PublishConfigChange(ctx context.Context) error {
	return b.rdb.Publish(ctx, ConfigChannel, "updated").Err()
}

// Listen calls invalidate for every published change until ctx is done.
// ready, when non-nil, is closed once the subscription is active.
func (b *RedisConfigBus) Listen(ctx context.Context, invalidate func(), ready chan<- struct{}) error {
	sub := b.rdb.Subscribe(ctx, ConfigChannel)
	defer sub.Close()

	// Receive blocks until Redis confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	log.Info().Str("channel", ConfigChannel).Msg("config bus: listening")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			invalidate()
		}
	}
}
