package service

import (
	"context"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TaxCalculationService resolves the tax due for a vehicle and year.
type TaxCalculationService interface {
	CalculateTax(ctx context.Context, vehicle *model.Vehicle, taxYear int) (*dto.TaxAssessment, error)
}

// PaymentSuccessHandler is the single post-payment path shared by cash and
// gateway channels: mark the payment paid, issue the verification artifact,
// and notify. It must be idempotent per payment.
type PaymentSuccessHandler interface {
	HandlePaymentSuccess(ctx context.Context, paymentID uuid.UUID, sendNotification bool) (*model.VerificationArtifact, error)
}

// Notification kinds.
const (
	NotifyPaymentConfirmed     = "payment_confirmed"
	NotifyApprovalRequired     = "approval_required"
	NotifySessionDiscrepancy   = "session_discrepancy"
	NotifyTransactionVoided    = "transaction_voided"
	NotifyUnreconciledReminder = "unreconciled_reminder"
	NotifySessionTimeout       = "session_timeout"
	NotifyAuditChainBroken     = "audit_chain_broken"
)

// NotificationDispatcher hands user-facing messages to the delivery pipeline.
type NotificationDispatcher interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, data map[string]any) error
}

// ReceiptQueue schedules PDF receipt rendering for an issued artifact.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, artifactID uuid.UUID) error
}

// ConfigChangeBus tells the other replicas that the cash config changed so
// they drop their cached copy.
type ConfigChangeBus interface {
	PublishConfigChange(ctx context.Context) error
}

// FieldCipher protects personally identifying values inside audit payloads.
// Decrypt must return an error for values it cannot open.
type FieldCipher interface {
	Name() string
	Encrypt(plaintext string) (string, error)
	Decrypt(stored string) (string, error)
}

// notify never fails the caller: delivery problems are logged and counted.
func notify(ctx context.Context, d NotificationDispatcher, userID uuid.UUID, kind string, data map[string]any) {
	if d == nil {
		return
	}
	if err := d.Notify(ctx, userID, kind, data); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues(kind).Inc()
		log.Warn().Err(err).Str("kind", kind).Str("user_id", userID.String()).Msg("notification dispatch failed")
	}
}
