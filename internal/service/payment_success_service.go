package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PaymentSuccessService is the success path plus recovery of payments whose
// post-commit step never finished.
type PaymentSuccessService interface {
	PaymentSuccessHandler
	// ResumeIncomplete re-runs the success path for payments paid more than
	// grace ago that still have no active artifact. It returns how many it
	// completed; a failing payment does not stop the others.
	ResumeIncomplete(ctx context.Context, grace time.Duration, limit int) (int, error)
}

type paymentSuccessService struct {
	tx        repository.Transactor
	payments  repository.TaxPaymentRepository
	artifacts repository.VerificationArtifactRepository
	notifier  NotificationDispatcher
	receipts  ReceiptQueue
	clock     Clock
}

// NewPaymentSuccessService builds the one success path used by every payment
// channel. notifier and receipts may be nil.
func NewPaymentSuccessService(
	tx repository.Transactor,
	payments repository.TaxPaymentRepository,
	artifacts repository.VerificationArtifactRepository,
	notifier NotificationDispatcher,
	receipts ReceiptQueue,
	clock Clock,
) PaymentSuccessService {
	if clock == nil {
		clock = SystemClock()
	}
	return &paymentSuccessService{
		tx:        tx,
		payments:  payments,
		artifacts: artifacts,
		notifier:  notifier,
		receipts:  receipts,
		clock:     clock,
	}
}

// HandlePaymentSuccess marks the payment paid when needed and makes sure one
// active verification artifact exists for its vehicle and year. Calling it
// again returns the same artifact and sends nothing.
func (s *paymentSuccessService) HandlePaymentSuccess(ctx context.Context, paymentID uuid.UUID, sendNotification bool) (*model.VerificationArtifact, error) {
	var (
		artifact *model.VerificationArtifact
		payment  *model.TaxPayment
		issued   bool
	)
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := s.payments.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return mapNotFound(err, ErrPaymentNotFound)
		}
		switch p.Status {
		case model.PaymentCancelled:
			return ErrPaymentCancelled
		case model.PaymentPendingApproval:
			return ErrPaymentAwaitingApproval
		case model.PaymentPending:
			now := utcNow(s.clock)
			p.Status = model.PaymentPaid
			p.PaidAt = &now
			if err := s.payments.Update(ctx, tx, p); err != nil {
				return err
			}
		}
		payment = p

		existing, err := s.artifacts.FindActive(ctx, tx, p.VehicleID, p.TaxYear)
		if err == nil {
			artifact = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		a := &model.VerificationArtifact{
			ID:        uuid.New(),
			PaymentID: p.ID,
			VehicleID: p.VehicleID,
			TaxYear:   p.TaxYear,
			Code:      newArtifactCode(),
			IssuedAt:  utcNow(s.clock),
		}
		if err := s.artifacts.Create(ctx, tx, a); err != nil {
			return err
		}
		artifact = a
		issued = true
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) && payment != nil {
		// A concurrent run issued the artifact first.
		existing, findErr := s.artifacts.FindActive(ctx, nil, payment.VehicleID, payment.TaxYear)
		if findErr != nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	if !issued {
		return artifact, nil
	}

	log.Info().
		Str("payment_id", payment.ID.String()).
		Str("artifact_id", artifact.ID.String()).
		Str("method", payment.Method).
		Msg("verification artifact issued")

	if s.receipts != nil {
		if err := s.receipts.EnqueueReceipt(ctx, artifact.ID); err != nil {
			log.Warn().Err(err).Str("artifact_id", artifact.ID.String()).Msg("receipt enqueue failed")
		}
	}
	if sendNotification && payment.PayerUserID != nil {
		notify(ctx, s.notifier, *payment.PayerUserID, NotifyPaymentConfirmed, map[string]any{
			"payment_id": payment.ID.String(),
			"tax_year":   payment.TaxYear,
			"amount":     payment.Amount.StringFixed(2),
			"code":       artifact.Code,
		})
	}
	return artifact, nil
}

func (s *paymentSuccessService) ResumeIncomplete(ctx context.Context, grace time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	stalled, err := s.payments.ListPaidWithoutArtifact(ctx, utcNow(s.clock).Add(-grace), limit)
	if err != nil {
		return 0, err
	}

	var (
		completed int
		failures  []error
	)
	for _, p := range stalled {
		if _, err := s.HandlePaymentSuccess(ctx, p.ID, true); err != nil {
			log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("payment completion retry failed")
			metrics.PaymentCompletionsResumedTotal.WithLabelValues("error").Inc()
			failures = append(failures, err)
			continue
		}
		metrics.PaymentCompletionsResumedTotal.WithLabelValues("ok").Inc()
		completed++
	}
	if completed > 0 {
		log.Info().Int("completed", completed).Int("found", len(stalled)).Msg("incomplete payments resumed")
	}
	return completed, errors.Join(failures...)
}

func newArtifactCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

// ArtifactToResponse maps an artifact onto its API shape.
func ArtifactToResponse(a *model.VerificationArtifact, verifyBaseURL string) dto.ArtifactResponse {
	return dto.ArtifactResponse{
		ID:        a.ID.String(),
		PaymentID: a.PaymentID.String(),
		VehicleID: a.VehicleID.String(),
		TaxYear:   a.TaxYear,
		Code:      a.Code,
		VerifyURL: strings.TrimRight(verifyBaseURL, "/") + "/" + a.Code,
		IssuedAt:  a.IssuedAt,
	}
}
