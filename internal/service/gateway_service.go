package service

import (
	"context"
	"errors"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GatewayPaymentService records settled MVola/Stripe payments and hands them
// to the same success path as cash.
type GatewayPaymentService interface {
	ConfirmGatewayPayment(ctx context.Context, req dto.GatewayConfirmationRequest) (*model.VerificationArtifact, error)
}

type gatewayPaymentService struct {
	tx       repository.Transactor
	payments repository.TaxPaymentRepository
	vehicles repository.VehicleRepository
	audit    AuditService
	success  PaymentSuccessHandler
}

func NewGatewayPaymentService(
	tx repository.Transactor,
	payments repository.TaxPaymentRepository,
	vehicles repository.VehicleRepository,
	audit AuditService,
	success PaymentSuccessHandler,
) GatewayPaymentService {
	return &gatewayPaymentService{tx: tx, payments: payments, vehicles: vehicles, audit: audit, success: success}
}

// ConfirmGatewayPayment is idempotent on the gateway reference: a repeated
// callback returns the artifact of the first one.
func (s *gatewayPaymentService) ConfirmGatewayPayment(ctx context.Context, req dto.GatewayConfirmationRequest) (*model.VerificationArtifact, error) {
	vehicleID, err := uuid.Parse(req.VehicleID)
	if err != nil {
		return nil, ErrInvalidInput.WithMessage("vehicle_id must be a UUID")
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidInput.WithMessage("amount must be positive")
	}
	vehicle, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, mapNotFound(err, ErrVehicleNotFound)
	}

	payment := &model.TaxPayment{
		ID:        uuid.New(),
		VehicleID: vehicleID,
		TaxYear:   req.TaxYear,
		Amount:    req.Amount.Round(2),
		Status:    model.PaymentPending,
		Method:    req.Method,
		Reference: req.Reference,
	}
	if vehicle.OwnerID != nil {
		owner := *vehicle.OwnerID
		payment.PayerUserID = &owner
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.payments.Create(ctx, tx, payment); err != nil {
			return err
		}
		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action: model.ActionGatewayPayment,
			UserID: uuid.Nil,
			Data: map[string]any{
				"payment_id":    payment.ID.String(),
				"vehicle_id":    vehicleID.String(),
				"vehicle_plate": vehicle.Plate,
				"tax_year":      req.TaxYear,
				"amount":        payment.Amount.StringFixed(2),
				"method":        req.Method,
				"reference":     req.Reference,
			},
		})
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return s.replay(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	metrics.GatewayPaymentsTotal.WithLabelValues(req.Method).Inc()
	log.Info().Str("payment_id", payment.ID.String()).Str("method", req.Method).Msg("gateway payment confirmed")
	return s.success.HandlePaymentSuccess(ctx, payment.ID, true)
}

// replay resolves a callback that collided with an existing active payment.
func (s *gatewayPaymentService) replay(ctx context.Context, req dto.GatewayConfirmationRequest) (*model.VerificationArtifact, error) {
	vehicleID, _ := uuid.Parse(req.VehicleID)
	existing, err := s.payments.FindActive(ctx, nil, vehicleID, req.TaxYear)
	if err != nil {
		return nil, mapNotFound(err, ErrDuplicatePayment)
	}
	if existing.Method != req.Method || existing.Reference != req.Reference {
		return nil, ErrDuplicatePayment
	}
	return s.success.HandlePaymentSuccess(ctx, existing.ID, false)
}
