package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when no job arrived before the timeout.
var ErrEmpty = errors.New("worker: no job available")

// Broker is the list-based queue the dispatcher writes to and the pool
// drains. Push adds at the head, Pop takes from the tail (FIFO).
type Broker interface {
	Push(ctx context.Context, queue string, payload []byte) error
	Pop(ctx context.Context, timeout time.Duration, queues ...string) (queue string, payload []byte, err error)
	Len(ctx context.Context, queue string) (int64, error)
}

// RedisBroker implements Broker with LPUSH / BRPOP.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Push(ctx context.Context, queue string, payload []byte) error {
	return b.rdb.LPush(ctx, queue, payload).Err()
}

// Pop blocks on BRPOP - zero CPU when idle.
func (b *RedisBroker) Pop(ctx context.Context, timeout time.Duration, queues ...string) (string, []byte, error) {
	result, err := b.rdb.BRPop(ctx, timeout, queues...).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrEmpty
	}
	if err != nil {
		return "", nil, err
	}
	if len(result) < 2 {
		return "", nil, ErrEmpty
	}
	return result[0], []byte(result[1]), nil
}

func (b *RedisBroker) Len(ctx context.Context, queue string) (int64, error) {
	return b.rdb.LLen(ctx, queue).Result()
}
