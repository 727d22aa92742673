package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the dead-letter list of each job queue.
const DLQPrefix = "dlq:"

// DeadLetter is a job that ran out of attempts, kept for an operator to
// inspect or replay.
type DeadLetter struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

func deadLetter(ctx context.Context, broker Broker, queue string, job Job, reason string) {
	data, err := json.Marshal(DeadLetter{
		OriginalQueue: queue,
		JobType:       job.Type,
		Payload:       job.Payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC(),
		Attempts:      job.Attempts,
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal failed")
		return
	}
	if err := broker.Push(ctx, DLQPrefix+queue, data); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: push failed, job lost")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job dead-lettered")
}

func DLQLength(ctx context.Context, broker Broker, queue string) (int64, error) {
	return broker.Len(ctx, DLQPrefix+queue)
}

// ReplayResult counts what ReplayDeadLetters did.
type ReplayResult struct {
	Requeued int
	// Dropped letters had no job type (malformed envelopes) and cannot run again.
	Dropped int
}

// ReplayDeadLetters moves up to limit dead letters of queue back onto it with
// a fresh attempt budget. limit <= 0 drains the whole list.
func ReplayDeadLetters(ctx context.Context, broker Broker, queue string, limit int) (ReplayResult, error) {
	var res ReplayResult
	for limit <= 0 || res.Requeued+res.Dropped < limit {
		_, raw, err := broker.Pop(ctx, time.Second, DLQPrefix+queue)
		if errors.Is(err, ErrEmpty) {
			return res, nil
		}
		if err != nil {
			return res, err
		}

		var dl DeadLetter
		if err := json.Unmarshal(raw, &dl); err != nil || dl.JobType == "" {
			res.Dropped++
			continue
		}
		encoded, err := json.Marshal(Job{Type: dl.JobType, Payload: dl.Payload, EnqueuedAt: time.Now().UTC()})
		if err != nil {
			return res, err
		}
		if err := broker.Push(ctx, queue, encoded); err != nil {
			// Put the letter back so it is not lost.
			_ = broker.Push(ctx, DLQPrefix+queue, raw)
			return res, fmt.Errorf("requeue %s: %w", queue, err)
		}
		res.Requeued++
	}
	return res, nil
}
