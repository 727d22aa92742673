package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"

	"github.com/rs/zerolog/log"
)

const popTimeout = 5 * time.Second

// Handler processes one job payload. A returned error schedules a retry.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

func (f HandlerFunc) Process(ctx context.Context, payload json.RawMessage) error { return f(ctx, payload) }

// Pool drains the job queues with a fixed number of goroutines.
type Pool struct {
	broker      Broker
	handlers    map[string]Handler // queue → handler
	maxAttempts int
	wg          sync.WaitGroup
}

func NewPool(broker Broker, maxAttempts int) *Pool {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Pool{broker: broker, handlers: make(map[string]Handler), maxAttempts: maxAttempts}
}

// Register binds a handler to a queue. Call before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.handlers[queue] = h
}

func (p *Pool) queues() []string {
	out := make([]string, 0, len(p.handlers))
	for _, q := range []string{QueueReceipt, QueueNotification} {
		if _, ok := p.handlers[q]; ok {
			out = append(out, q)
		}
	}
	for q := range p.handlers {
		if q != QueueReceipt && q != QueueNotification {
			out = append(out, q)
		}
	}
	return out
}

// Start launches numWorkers goroutines; they stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

// Wait blocks until every worker goroutine has returned.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	queues := p.queues()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
		}
		if _, err := p.ProcessNext(ctx, popTimeout, queues...); err != nil &&
			!errors.Is(err, ErrEmpty) && ctx.Err() == nil {
			log.Error().Err(err).Int("worker", id).Msg("worker: dequeue failed")
			time.Sleep(time.Second)
		}
	}
}

// ProcessNext pops and handles a single job. It reports whether a job was
// handled (successfully or not).
func (p *Pool) ProcessNext(ctx context.Context, timeout time.Duration, queues ...string) (bool, error) {
	if len(queues) == 0 {
		queues = p.queues()
	}
	queue, raw, err := p.broker.Pop(ctx, timeout, queues...)
	if err != nil {
		return false, err
	}
	p.handle(ctx, queue, raw)
	return true, nil
}

func (p *Pool) handle(ctx context.Context, queue string, raw []byte) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(string(raw))
		deadLetter(ctx, p.broker, queue, Job{Payload: quoted}, "malformed envelope")
		metrics.JobsProcessedTotal.WithLabelValues(queue, "malformed").Inc()
		return
	}
	h, ok := p.handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("no handler registered")
		return
	}

	job.Attempts++
	err := h.Process(ctx, job.Payload)
	if err == nil {
		metrics.JobsProcessedTotal.WithLabelValues(queue, "ok").Inc()
		return
	}

	if job.Attempts >= p.maxAttempts {
		metrics.JobsProcessedTotal.WithLabelValues(queue, "dead").Inc()
		deadLetter(ctx, p.broker, queue, job, err.Error())
		return
	}
	metrics.JobsProcessedTotal.WithLabelValues(queue, "retry").Inc()
	log.Warn().Err(err).
		Str("queue", queue).
		Str("type", job.Type).
		Int("attempt", job.Attempts).
		Msg("job failed, requeued")

	encoded, mErr := json.Marshal(job)
	if mErr != nil {
		log.Error().Err(mErr).Str("queue", queue).Msg("failed to re-encode job")
		return
	}
	if pErr := p.broker.Push(ctx, queue, encoded); pErr != nil {
		log.Error().Err(pErr).Str("queue", queue).Msg("failed to requeue job")
	}
}
