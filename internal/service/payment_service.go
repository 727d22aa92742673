package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CashPaymentService interface {
	CalculateChange(taxAmount, amountTendered decimal.Decimal) (decimal.Decimal, error)
	RequiresDualVerification(ctx context.Context, amount decimal.Decimal) (bool, error)
	CreateCashPayment(ctx context.Context, collectorID uuid.UUID, req dto.CreateCashPaymentRequest) (*model.CashTransaction, error)
	ApproveTransaction(ctx context.Context, transactionID, approverID uuid.UUID, notes string) (*model.CashTransaction, error)
	VoidTransaction(ctx context.Context, transactionID, adminID uuid.UUID, reason string) (*model.CashTransaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error)
	ListSessionTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.CashTransaction, error)
}

// PaymentRepos groups the stores the payment processor writes to.
type PaymentRepos struct {
	Sessions     repository.CashSessionRepository
	Transactions repository.CashTransactionRepository
	Payments     repository.TaxPaymentRepository
	Vehicles     repository.VehicleRepository
	Users        repository.UserRepository
	Artifacts    repository.VerificationArtifactRepository
}

type cashPaymentService struct {
	tx         repository.Transactor
	repos      PaymentRepos
	commission CommissionService
	config     SystemConfigService
	audit      AuditService
	tax        TaxCalculationService
	success    PaymentSuccessHandler
	notifier   NotificationDispatcher
	clock      Clock
}

func NewCashPaymentService(
	tx repository.Transactor,
	repos PaymentRepos,
	commission CommissionService,
	cfg SystemConfigService,
	audit AuditService,
	tax TaxCalculationService,
	success PaymentSuccessHandler,
	notifier NotificationDispatcher,
	clock Clock,
) CashPaymentService {
	if clock == nil {
		clock = SystemClock()
	}
	return &cashPaymentService{
		tx:         tx,
		repos:      repos,
		commission: commission,
		config:     cfg,
		audit:      audit,
		tax:        tax,
		success:    success,
		notifier:   notifier,
		clock:      clock,
	}
}

func (s *cashPaymentService) CalculateChange(taxAmount, amountTendered decimal.Decimal) (decimal.Decimal, error) {
	if taxAmount.IsNegative() {
		return decimal.Zero, ErrInvalidInput.WithMessage("tax amount must not be negative")
	}
	if amountTendered.LessThan(taxAmount) {
		return decimal.Zero, ErrInsufficientFunds.WithMessage(fmt.Sprintf(
			"amount tendered %s is less than the tax due %s",
			amountTendered.StringFixed(2), taxAmount.StringFixed(2)))
	}
	return amountTendered.Sub(taxAmount), nil
}

func (s *cashPaymentService) RequiresDualVerification(ctx context.Context, amount decimal.Decimal) (bool, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return false, err
	}
	return amount.GreaterThanOrEqual(cfg.DualVerificationThreshold), nil
}

// ── CreateCashPayment ─────────────────────────────────────────────────────────
//   1. Exactly one open session for the collector
//   2. Resolve the tax due; exempt or unresolvable vehicles are refused
//   3. Change, duplicate and dual-control checks (pre-flight, outside TX)
//   4. BEGIN TX: lock session, create payment + transaction + commission, audit
//   5. COMMIT
//   6. Below threshold: shared success path issues the artifact

func (s *cashPaymentService) CreateCashPayment(ctx context.Context, collectorID uuid.UUID, req dto.CreateCashPaymentRequest) (*model.CashTransaction, error) {
	vehicleID, err := uuid.Parse(req.VehicleID)
	if err != nil {
		return nil, ErrInvalidInput.WithMessage("vehicle_id must be a UUID")
	}
	if err := checkCents("amount_tendered", req.AmountTendered); err != nil {
		return nil, err
	}

	// 1. Active session
	open, err := s.repos.Sessions.ListOpenByCollector(ctx, nil, collectorID)
	if err != nil {
		return nil, err
	}
	if len(open) != 1 {
		return nil, ErrNoActiveSession
	}
	sessionID := open[0].ID

	// 2. Tax due
	vehicle, err := s.repos.Vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, mapNotFound(err, ErrVehicleNotFound)
	}
	if vehicle.TaxExempt {
		return nil, ErrVehicleTaxExempt
	}
	assessment, err := s.tax.CalculateTax(ctx, vehicle, req.TaxYear)
	if err != nil {
		return nil, ErrTaxUnavailable.Wrap(err)
	}
	if assessment.IsExempt {
		return nil, ErrVehicleTaxExempt
	}
	if !assessment.Amount.IsPositive() {
		return nil, ErrTaxUnavailable
	}
	taxAmount := assessment.Amount.Round(2)

	// 3. Pre-flight
	change, err := s.CalculateChange(taxAmount, req.AmountTendered)
	if err != nil {
		return nil, err
	}
	exists, err := s.repos.Payments.ExistsActive(ctx, nil, vehicleID, req.TaxYear)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePayment
	}
	requiresApproval, err := s.RequiresDualVerification(ctx, taxAmount)
	if err != nil {
		return nil, err
	}
	rate, err := s.commission.RateFor(ctx, collectorID)
	if err != nil {
		return nil, err
	}
	commissionAmount, err := s.commission.CalculateCommission(taxAmount, rate)
	if err != nil {
		return nil, err
	}

	now := utcNow(s.clock)
	txnID := uuid.New()
	payment := &model.TaxPayment{
		ID:        uuid.New(),
		VehicleID: vehicleID,
		TaxYear:   req.TaxYear,
		Amount:    taxAmount,
		Method:    model.MethodCash,
		Reference: "CASH-" + txnID.String(),
		Status:    model.PaymentPaid,
		PaidAt:    &now,
	}
	if requiresApproval {
		payment.Status = model.PaymentPendingApproval
		payment.PaidAt = nil
	}
	if vehicle.OwnerID != nil {
		owner := *vehicle.OwnerID
		payment.PayerUserID = &owner
	}
	txn := &model.CashTransaction{
		ID:               txnID,
		SessionID:        sessionID,
		PaymentID:        payment.ID,
		CollectorID:      collectorID,
		VehicleID:        vehicleID,
		VehiclePlate:     vehicle.Plate,
		TaxYear:          req.TaxYear,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		TaxAmount:        taxAmount,
		AmountTendered:   req.AmountTendered,
		ChangeGiven:      change,
		CommissionAmount: commissionAmount,
		RequiresApproval: requiresApproval,
		Notes:            req.Notes,
		TransactionTime:  now,
	}

	// 4. Atomic write
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		cs, err := s.repos.Sessions.FindByIDForUpdate(ctx, tx, sessionID)
		if err != nil {
			return mapNotFound(err, ErrNoActiveSession)
		}
		if cs.Status != model.SessionOpen {
			return ErrNoActiveSession
		}

		if err := s.repos.Payments.Create(ctx, tx, payment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicatePayment
			}
			return err
		}
		if err := s.repos.Transactions.Create(ctx, tx, txn); err != nil {
			return err
		}

		rec, err := s.commission.RecordCommission(ctx, tx, txn)
		if err != nil {
			return err
		}
		if !rec.CommissionAmount.Equal(txn.CommissionAmount) {
			txn.CommissionAmount = rec.CommissionAmount
			if err := s.repos.Transactions.Update(ctx, tx, txn); err != nil {
				return err
			}
		}
		if err := s.repos.Sessions.AddCommission(ctx, tx, sessionID, rec.CommissionAmount); err != nil {
			return err
		}

		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action:        model.ActionTransactionCreate,
			UserID:        collectorID,
			SessionID:     &sessionID,
			TransactionID: &txn.ID,
			Data: map[string]any{
				"payment_id":        payment.ID.String(),
				"vehicle_id":        vehicleID.String(),
				"vehicle_plate":     vehicle.Plate,
				"tax_year":          req.TaxYear,
				"customer_name":     req.CustomerName,
				"customer_phone":    req.CustomerPhone,
				"tax_amount":        taxAmount.StringFixed(2),
				"amount_tendered":   req.AmountTendered.StringFixed(2),
				"change_given":      change.StringFixed(2),
				"commission_amount": txn.CommissionAmount.StringFixed(2),
				"requires_approval": requiresApproval,
				"notes":             req.Notes,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CashCollectedAmount.Add(taxAmount.InexactFloat64())
	log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("session_id", sessionID.String()).
		Str("tax_amount", taxAmount.StringFixed(2)).
		Bool("requires_approval", requiresApproval).
		Msg("cash payment recorded")

	// 6. Post-commit
	if requiresApproval {
		metrics.CashPaymentsTotal.WithLabelValues("dual_control").Inc()
		s.notifyApprovers(ctx, txn)
		return txn, nil
	}
	metrics.CashPaymentsTotal.WithLabelValues("auto").Inc()
	s.completePayment(ctx, payment.ID)
	return txn, nil
}

// completePayment runs the shared success path. The payment is already
// committed as paid; when this fails the scheduler's completion sweep
// (PaymentSuccessService.ResumeIncomplete) issues the artifact later.
func (s *cashPaymentService) completePayment(ctx context.Context, paymentID uuid.UUID) {
	if s.success == nil {
		return
	}
	if _, err := s.success.HandlePaymentSuccess(ctx, paymentID, true); err != nil {
		log.Error().Err(err).Str("payment_id", paymentID.String()).Msg("payment success handling failed")
	}
}

func (s *cashPaymentService) notifyApprovers(ctx context.Context, txn *model.CashTransaction) {
	data := map[string]any{
		"transaction_id": txn.ID.String(),
		"session_id":     txn.SessionID.String(),
		"tax_amount":     txn.TaxAmount.StringFixed(2),
	}
	for _, role := range []string{model.RoleSupervisor, model.RoleAdmin} {
		users, err := s.repos.Users.ListByRole(ctx, role)
		if err != nil {
			log.Warn().Err(err).Str("role", role).Msg("could not list approvers")
			continue
		}
		for _, u := range users {
			notify(ctx, s.notifier, u.ID, NotifyApprovalRequired, data)
		}
	}
}

// ── ApproveTransaction ────────────────────────────────────────────────────────

func (s *cashPaymentService) ApproveTransaction(ctx context.Context, transactionID, approverID uuid.UUID, notes string) (*model.CashTransaction, error) {
	var (
		approved  *model.CashTransaction
		paymentID uuid.UUID
	)
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		txn, err := s.repos.Transactions.FindByIDForUpdate(ctx, tx, transactionID)
		if err != nil {
			return mapNotFound(err, ErrTransactionNotFound)
		}
		switch {
		case txn.Voided:
			return ErrTransactionVoided
		case !txn.RequiresApproval:
			return ErrApprovalNotRequired
		case txn.ApproverID != nil:
			return ErrTransactionAlreadyApproved
		case txn.CollectorID == approverID:
			return ErrSelfApproval
		}

		payment, err := s.repos.Payments.FindByIDForUpdate(ctx, tx, txn.PaymentID)
		if err != nil {
			return mapNotFound(err, ErrPaymentNotFound)
		}
		now := utcNow(s.clock)
		payment.Status = model.PaymentPaid
		payment.PaidAt = &now
		if err := s.repos.Payments.Update(ctx, tx, payment); err != nil {
			return err
		}

		txn.ApproverID = &approverID
		txn.ApprovedAt = &now
		txn.Notes = appendNote(txn.Notes, notes)
		if err := s.repos.Transactions.Update(ctx, tx, txn); err != nil {
			return err
		}

		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action:        model.ActionTransactionApprove,
			UserID:        approverID,
			SessionID:     &txn.SessionID,
			TransactionID: &txn.ID,
			Data: map[string]any{
				"payment_id": payment.ID.String(),
				"tax_amount": txn.TaxAmount.StringFixed(2),
				"notes":      notes,
			},
		})
		approved = txn
		paymentID = payment.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("transaction_id", transactionID.String()).Str("approver_id", approverID.String()).Msg("cash transaction approved")
	s.completePayment(ctx, paymentID)
	return approved, nil
}

// ── VoidTransaction ───────────────────────────────────────────────────────────
//   Voids stay inside the open session and the void window. The row is kept;
//   the payment is cancelled, the commission reversed and the artifact revoked.

func (s *cashPaymentService) VoidTransaction(ctx context.Context, transactionID, adminID uuid.UUID, reason string) (*model.CashTransaction, error) {
	if reason == "" {
		return nil, ErrInvalidInput.WithMessage("a void reason is required")
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	window := time.Duration(cfg.VoidTimeLimitMinutes) * time.Minute

	var voided *model.CashTransaction
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		txn, err := s.repos.Transactions.FindByIDForUpdate(ctx, tx, transactionID)
		if err != nil {
			return mapNotFound(err, ErrTransactionNotFound)
		}
		if txn.Voided {
			return ErrTransactionAlreadyVoided
		}
		cs, err := s.repos.Sessions.FindByIDForUpdate(ctx, tx, txn.SessionID)
		if err != nil {
			return mapNotFound(err, ErrSessionNotFound)
		}
		if cs.Status != model.SessionOpen {
			return ErrVoidSessionClosed
		}
		now := utcNow(s.clock)
		if now.Sub(txn.TransactionTime) > window {
			return ErrVoidWindowExpired
		}

		txn.Voided = true
		txn.VoidedByID = &adminID
		txn.VoidedAt = &now
		txn.Notes = appendNote(txn.Notes, "VOID: "+reason)
		if err := s.repos.Transactions.Update(ctx, tx, txn); err != nil {
			return err
		}

		payment, err := s.repos.Payments.FindByIDForUpdate(ctx, tx, txn.PaymentID)
		if err != nil {
			return mapNotFound(err, ErrPaymentNotFound)
		}
		payment.Status = model.PaymentCancelled
		if err := s.repos.Payments.Update(ctx, tx, payment); err != nil {
			return err
		}

		reversed := txn.CommissionAmount
		rec, err := s.commission.CancelCommission(ctx, tx, txn.ID)
		if err != nil {
			return err
		}
		if rec != nil {
			reversed = rec.CommissionAmount
		}
		if err := s.repos.Sessions.AddCommission(ctx, tx, cs.ID, reversed.Neg()); err != nil {
			return err
		}

		revoked, err := s.repos.Artifacts.RevokeByPayment(ctx, tx, payment.ID, now)
		if err != nil {
			return err
		}

		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action:        model.ActionTransactionVoid,
			UserID:        adminID,
			SessionID:     &txn.SessionID,
			TransactionID: &txn.ID,
			Data: map[string]any{
				"payment_id":          payment.ID.String(),
				"tax_amount":          txn.TaxAmount.StringFixed(2),
				"commission_reversed": reversed.StringFixed(2),
				"artifacts_revoked":   revoked,
				"reason":              reason,
			},
		})
		voided = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsVoidedTotal.Inc()
	log.Warn().Str("transaction_id", transactionID.String()).Str("admin_id", adminID.String()).Msg("cash transaction voided")
	notify(ctx, s.notifier, voided.CollectorID, NotifyTransactionVoided, map[string]any{
		"transaction_id": voided.ID.String(),
		"tax_amount":     voided.TaxAmount.StringFixed(2),
	})
	return voided, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *cashPaymentService) GetTransaction(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error) {
	txn, err := s.repos.Transactions.FindByID(ctx, nil, id)
	if err != nil {
		return nil, mapNotFound(err, ErrTransactionNotFound)
	}
	return txn, nil
}

func (s *cashPaymentService) ListSessionTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	if _, err := s.repos.Sessions.FindByID(ctx, nil, sessionID); err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	return s.repos.Transactions.ListBySession(ctx, nil, sessionID)
}

// TransactionToResponse maps a transaction onto its API shape.
func TransactionToResponse(t *model.CashTransaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:               t.ID.String(),
		SessionID:        t.SessionID.String(),
		PaymentID:        t.PaymentID.String(),
		CollectorID:      t.CollectorID.String(),
		VehicleID:        t.VehicleID.String(),
		VehiclePlate:     t.VehiclePlate,
		TaxYear:          t.TaxYear,
		CustomerName:     t.CustomerName,
		TaxAmount:        t.TaxAmount,
		AmountTendered:   t.AmountTendered,
		ChangeGiven:      t.ChangeGiven,
		CommissionAmount: t.CommissionAmount,
		RequiresApproval: t.RequiresApproval,
		ApproverID:       uuidString(t.ApproverID),
		ApprovedAt:       t.ApprovedAt,
		Voided:           t.Voided,
		VoidedByID:       uuidString(t.VoidedByID),
		VoidedAt:         t.VoidedAt,
		Notes:            t.Notes,
		TransactionTime:  t.TransactionTime,
	}
}
