package worker

import (
	"context"
	"sync"
	"time"
)

// memBroker is an in-process Broker; Pop never blocks.
type memBroker struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

func newMemBroker() *memBroker {
	return &memBroker{queues: make(map[string][][]byte)}
}

func (b *memBroker) Push(_ context.Context, queue string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[queue] = append([][]byte{append([]byte(nil), payload...)}, b.queues[queue]...)
	return nil
}

func (b *memBroker) Pop(_ context.Context, _ time.Duration, queues ...string) (string, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range queues {
		items := b.queues[q]
		if len(items) == 0 {
			continue
		}
		last := items[len(items)-1]
		b.queues[q] = items[:len(items)-1]
		return q, last, nil
	}
	return "", nil, ErrEmpty
}

func (b *memBroker) Len(_ context.Context, queue string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.queues[queue])), nil
}
