package service

import (
	"context"
	"errors"
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

type CashSessionService interface {
	OpenSession(ctx context.Context, collectorID uuid.UUID, openingBalance decimal.Decimal) (*model.CashSession, error)
	// CloseSession records the physical count. The returned discrepancy is
	// closing − expected; beyond tolerance the session waits for a supervisor.
	CloseSession(ctx context.Context, sessionID uuid.UUID, closingBalance decimal.Decimal, countedBy uuid.UUID, notes string) (*model.CashSession, decimal.Decimal, error)
	CalculateSessionTotals(ctx context.Context, sessionID uuid.UUID) (*dto.SessionTotals, error)
	ApproveSessionClosure(ctx context.Context, sessionID, approverID uuid.UUID, notes string) (*model.CashSession, error)
	CheckSessionTimeout(ctx context.Context, session *model.CashSession) (bool, error)
	GetSession(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	GetActiveSession(ctx context.Context, collectorID uuid.UUID) (*model.CashSession, error)
	ListSessions(ctx context.Context, filter dto.SessionFilter) ([]model.CashSession, error)
	ListTimedOutSessions(ctx context.Context) ([]model.CashSession, error)
}

type cashSessionService struct {
	tx       repository.Transactor
	sessions repository.CashSessionRepository
	txns     repository.CashTransactionRepository
	config   SystemConfigService
	audit    AuditService
	notifier NotificationDispatcher
	clock    Clock
}

func NewCashSessionService(
	tx repository.Transactor,
	sessions repository.CashSessionRepository,
	txns repository.CashTransactionRepository,
	cfg SystemConfigService,
	audit AuditService,
	notifier NotificationDispatcher,
	clock Clock,
) CashSessionService {
	if clock == nil {
		clock = SystemClock()
	}
	return &cashSessionService{
		tx:       tx,
		sessions: sessions,
		txns:     txns,
		config:   cfg,
		audit:    audit,
		notifier: notifier,
		clock:    clock,
	}
}

// ── OpenSession ───────────────────────────────────────────────────────────────

func (s *cashSessionService) OpenSession(ctx context.Context, collectorID uuid.UUID, openingBalance decimal.Decimal) (*model.CashSession, error) {
	if openingBalance.IsNegative() {
		return nil, ErrInvalidInput.WithMessage("opening_balance must not be negative")
	}
	if err := checkCents("opening_balance", openingBalance); err != nil {
		return nil, err
	}

	cs := &model.CashSession{
		ID:              uuid.New(),
		CollectorID:     collectorID,
		OpeningBalance:  openingBalance,
		OpenedAt:        utcNow(s.clock),
		Status:          model.SessionOpen,
		TotalCommission: decimal.Zero,
	}
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		open, err := s.sessions.ListOpenByCollector(ctx, tx, collectorID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return ErrSessionAlreadyOpen
		}
		// The partial unique index settles concurrent opens.
		if err := s.sessions.Create(ctx, tx, cs); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrSessionAlreadyOpen
			}
			return err
		}
		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action:    model.ActionSessionOpen,
			UserID:    collectorID,
			SessionID: &cs.ID,
			Data: map[string]any{
				"opening_balance": openingBalance.StringFixed(2),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SessionsOpenedTotal.Inc()
	log.Info().Str("session_id", cs.ID.String()).Str("collector_id", collectorID.String()).Msg("cash session opened")
	return cs, nil
}

// ── Totals ────────────────────────────────────────────────────────────────────

func (s *cashSessionService) CalculateSessionTotals(ctx context.Context, sessionID uuid.UUID) (*dto.SessionTotals, error) {
	cs, err := s.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	return s.totals(ctx, nil, cs)
}

func (s *cashSessionService) totals(ctx context.Context, tx *gorm.DB, cs *model.CashSession) (*dto.SessionTotals, error) {
	agg, err := s.txns.AggregateBySession(ctx, tx, cs.ID)
	if err != nil {
		return nil, err
	}
	net := agg.TenderedTotal.Sub(agg.ChangeTotal)
	return &dto.SessionTotals{
		SessionID:            cs.ID.String(),
		TransactionCount:     agg.Count,
		TotalTax:             agg.TaxTotal,
		TotalCashReceived:    agg.TenderedTotal,
		TotalChangeGiven:     agg.ChangeTotal,
		TotalCommission:      agg.CommissionTotal,
		NetCash:              net,
		OpeningBalance:       cs.OpeningBalance,
		ExpectedBalance:      cs.OpeningBalance.Add(net),
		PendingApprovalCount: agg.PendingApproval,
	}, nil
}

// ── CloseSession ──────────────────────────────────────────────────────────────
//   1. Lock the session; only open sessions close
//   2. Recompute totals from non-voided transactions
//   3. discrepancy = closing − expected; within tolerance the counter signs off
//   4. Audit inside the same transaction; notify after commit

func (s *cashSessionService) CloseSession(ctx context.Context, sessionID uuid.UUID, closingBalance decimal.Decimal, countedBy uuid.UUID, notes string) (*model.CashSession, decimal.Decimal, error) {
	if closingBalance.IsNegative() {
		return nil, decimal.Zero, ErrInvalidInput.WithMessage("closing_balance must not be negative")
	}
	if err := checkCents("closing_balance", closingBalance); err != nil {
		return nil, decimal.Zero, err
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}

	var (
		closed      *model.CashSession
		discrepancy decimal.Decimal
		review      bool
	)
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		cs, err := s.sessions.FindByIDForUpdate(ctx, tx, sessionID)
		if err != nil {
			return mapNotFound(err, ErrSessionNotFound)
		}
		if cs.Status != model.SessionOpen {
			return ErrSessionNotOpen
		}

		totals, err := s.totals(ctx, tx, cs)
		if err != nil {
			return err
		}
		discrepancy = closingBalance.Sub(totals.ExpectedBalance)
		review = discrepancy.Abs().GreaterThan(cfg.ReconciliationTolerance)

		now := utcNow(s.clock)
		expected := totals.ExpectedBalance
		closing := closingBalance
		diff := discrepancy
		cs.ExpectedBalance = &expected
		cs.ClosingBalance = &closing
		cs.Discrepancy = &diff
		cs.DiscrepancyNotes = notes
		cs.CountedByID = &countedBy
		cs.ClosedAt = &now
		cs.Status = model.SessionClosed
		if !review {
			cs.ApproverID = &countedBy
			cs.ApprovedAt = &now
		}
		if err := s.sessions.Update(ctx, tx, cs); err != nil {
			return err
		}

		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action:    model.ActionSessionClose,
			UserID:    countedBy,
			SessionID: &cs.ID,
			Data: map[string]any{
				"opening_balance":        cs.OpeningBalance.StringFixed(2),
				"expected_balance":       expected.StringFixed(2),
				"closing_balance":        closing.StringFixed(2),
				"discrepancy":            diff.StringFixed(2),
				"transaction_count":      totals.TransactionCount,
				"pending_approval_count": totals.PendingApprovalCount,
				"requires_review":        review,
				"notes":                  notes,
			},
		})
		closed = cs
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	outcome := "balanced"
	if review {
		outcome = "review"
		notify(ctx, s.notifier, closed.CollectorID, NotifySessionDiscrepancy, map[string]any{
			"session_id":  closed.ID.String(),
			"discrepancy": discrepancy.StringFixed(2),
		})
	}
	metrics.SessionsClosedTotal.WithLabelValues(outcome).Inc()
	log.Info().
		Str("session_id", closed.ID.String()).
		Str("discrepancy", discrepancy.StringFixed(2)).
		Bool("requires_review", review).
		Msg("cash session closed")
	return closed, discrepancy, nil
}

// ── ApproveSessionClosure ─────────────────────────────────────────────────────

func (s *cashSessionService) ApproveSessionClosure(ctx context.Context, sessionID, approverID uuid.UUID, notes string) (*model.CashSession, error) {
	var approved *model.CashSession
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		cs, err := s.sessions.FindByIDForUpdate(ctx, tx, sessionID)
		if err != nil {
			return mapNotFound(err, ErrSessionNotFound)
		}
		if cs.Status != model.SessionClosed {
			return ErrSessionNotClosed
		}
		if cs.IsApproved() {
			return ErrSessionAlreadyApproved
		}

		now := utcNow(s.clock)
		cs.ApproverID = &approverID
		cs.ApprovedAt = &now
		cs.ReconciledAt = &now
		cs.Status = model.SessionReconciled
		cs.DiscrepancyNotes = appendNote(cs.DiscrepancyNotes, notes)
		if err := s.sessions.Update(ctx, tx, cs); err != nil {
			return err
		}

		discrepancy := decimal.Zero
		if cs.Discrepancy != nil {
			discrepancy = *cs.Discrepancy
		}
		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action:    model.ActionReconciliation,
			UserID:    approverID,
			SessionID: &cs.ID,
			Data: map[string]any{
				"scope":       "session",
				"discrepancy": discrepancy.StringFixed(2),
				"notes":       notes,
			},
		})
		approved = cs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// ── Timeout ───────────────────────────────────────────────────────────────────

func (s *cashSessionService) CheckSessionTimeout(ctx context.Context, session *model.CashSession) (bool, error) {
	if session.Status != model.SessionOpen {
		return false, nil
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return false, err
	}
	limit := time.Duration(cfg.SessionTimeoutHours) * time.Hour
	return s.clock.Now().Sub(session.OpenedAt) > limit, nil
}

func (s *cashSessionService) ListTimedOutSessions(ctx context.Context) ([]model.CashSession, error) {
	open, err := s.sessions.List(ctx, nil, dto.SessionFilter{Statuses: []string{model.SessionOpen}})
	if err != nil {
		return nil, err
	}
	var out []model.CashSession
	for i := range open {
		timedOut, err := s.CheckSessionTimeout(ctx, &open[i])
		if err != nil {
			return nil, err
		}
		if timedOut {
			out = append(out, open[i])
		}
	}
	return out, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *cashSessionService) GetSession(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	cs, err := s.sessions.FindByID(ctx, nil, id)
	if err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	return cs, nil
}

func (s *cashSessionService) GetActiveSession(ctx context.Context, collectorID uuid.UUID) (*model.CashSession, error) {
	open, err := s.sessions.ListOpenByCollector(ctx, nil, collectorID)
	if err != nil {
		return nil, err
	}
	if len(open) != 1 {
		return nil, ErrNoActiveSession
	}
	return &open[0], nil
}

func (s *cashSessionService) ListSessions(ctx context.Context, filter dto.SessionFilter) ([]model.CashSession, error) {
	filter.ForUpdate = false
	return s.sessions.List(ctx, nil, filter)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func mapNotFound(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}

func appendNote(existing, note string) string {
	switch {
	case note == "":
		return existing
	case existing == "":
		return note
	default:
		return existing + "\n" + note
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// SessionToResponse maps a session onto its API shape.
func SessionToResponse(cs *model.CashSession, timedOut bool) dto.SessionResponse {
	return dto.SessionResponse{
		ID:               cs.ID.String(),
		CollectorID:      cs.CollectorID.String(),
		Status:           cs.Status,
		OpeningBalance:   cs.OpeningBalance,
		OpenedAt:         cs.OpenedAt,
		ExpectedBalance:  cs.ExpectedBalance,
		ClosingBalance:   cs.ClosingBalance,
		Discrepancy:      cs.Discrepancy,
		DiscrepancyNotes: cs.DiscrepancyNotes,
		CountedByID:      uuidString(cs.CountedByID),
		ApproverID:       uuidString(cs.ApproverID),
		ApprovedAt:       cs.ApprovedAt,
		ClosedAt:         cs.ClosedAt,
		ReconciledAt:     cs.ReconciledAt,
		TotalCommission:  cs.TotalCommission,
		TimedOut:         timedOut,
	}
}
