package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	QueueNotification = "jobs:notification"
	QueueReceipt      = "jobs:receipt"

	JobNotification = "notification"
	JobReceipt      = "receipt"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NotificationJob asks the notification worker to email a user.
type NotificationJob struct {
	UserID uuid.UUID      `json:"user_id"`
	Kind   string         `json:"kind"`
	Data   map[string]any `json:"data"`
}

// ReceiptJob asks the receipt worker to render an artifact's PDF.
type ReceiptJob struct {
	ArtifactID uuid.UUID `json:"artifact_id"`
}

// Dispatcher enqueues async jobs. It satisfies the service layer's
// NotificationDispatcher and ReceiptQueue.
type Dispatcher struct {
	broker Broker
}

func NewDispatcher(broker Broker) *Dispatcher {
	return &Dispatcher{broker: broker}
}

func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, kind string, data map[string]any) error {
	return d.enqueue(ctx, QueueNotification, JobNotification, NotificationJob{UserID: userID, Kind: kind, Data: data})
}

func (d *Dispatcher) EnqueueReceipt(ctx context.Context, artifactID uuid.UUID) error {
	return d.enqueue(ctx, QueueReceipt, JobReceipt, ReceiptJob{ArtifactID: artifactID})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return d.broker.Push(ctx, queue, encoded)
}
