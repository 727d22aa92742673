package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionService interface {
	// CalculateCommission returns tax × rate / 100 rounded half-up to cents.
	CalculateCommission(taxAmount, rate decimal.Decimal) (decimal.Decimal, error)
	// RateFor resolves the collector's override or the system default.
	RateFor(ctx context.Context, collectorID uuid.UUID) (decimal.Decimal, error)
	RecordCommission(ctx context.Context, tx *gorm.DB, txn *model.CashTransaction) (*model.CommissionRecord, error)
	CancelCommission(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*model.CommissionRecord, error)
	GetSessionCommission(ctx context.Context, sessionID uuid.UUID) (*dto.SessionCommission, error)
	GetCollectorCommissionReport(ctx context.Context, collectorID uuid.UUID, from, to *time.Time) (*dto.CollectorCommissionReport, error)
	GetCommissionSummary(ctx context.Context, from, to time.Time, groupBy string) (*dto.CommissionSummaryReport, error)
	MarkCommissionsAsPaid(ctx context.Context, ids []uuid.UUID, paidBy uuid.UUID, paidAt time.Time) (int64, error)
}

type commissionService struct {
	tx       repository.Transactor
	repo     repository.CommissionRepository
	sessions repository.CashSessionRepository
	users    repository.UserRepository
	config   SystemConfigService
	audit    AuditService
	clock    Clock
	loc      *time.Location
}

func NewCommissionService(
	tx repository.Transactor,
	repo repository.CommissionRepository,
	sessions repository.CashSessionRepository,
	users repository.UserRepository,
	cfg SystemConfigService,
	audit AuditService,
	clock Clock,
	loc *time.Location,
) CommissionService {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &commissionService{
		tx:       tx,
		repo:     repo,
		sessions: sessions,
		users:    users,
		config:   cfg,
		audit:    audit,
		clock:    clock,
		loc:      loc,
	}
}

func (s *commissionService) CalculateCommission(taxAmount, rate decimal.Decimal) (decimal.Decimal, error) {
	if taxAmount.IsNegative() || rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, ErrInvalidCommissionInput
	}
	return taxAmount.Mul(rate).Div(hundred).Round(2), nil
}

func (s *commissionService) RateFor(ctx context.Context, collectorID uuid.UUID) (decimal.Decimal, error) {
	u, err := s.users.FindByID(ctx, collectorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return decimal.Zero, err
	}
	if u != nil && u.CommissionRate != nil {
		return *u.CommissionRate, nil
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.DefaultCommissionRate, nil
}

// RecordCommission is idempotent per transaction: an existing record is
// returned untouched.
func (s *commissionService) RecordCommission(ctx context.Context, tx *gorm.DB, txn *model.CashTransaction) (*model.CommissionRecord, error) {
	existing, err := s.repo.FindByTransactionID(ctx, tx, txn.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	rate, err := s.RateFor(ctx, txn.CollectorID)
	if err != nil {
		return nil, err
	}
	amount, err := s.CalculateCommission(txn.TaxAmount, rate)
	if err != nil {
		return nil, err
	}

	rec := &model.CommissionRecord{
		ID:               uuid.New(),
		CollectorID:      txn.CollectorID,
		SessionID:        txn.SessionID,
		TransactionID:    txn.ID,
		TaxAmount:        txn.TaxAmount,
		CommissionRate:   rate,
		CommissionAmount: amount,
		Status:           model.CommissionPending,
		CreatedAt:        utcNow(s.clock),
	}
	if err := s.repo.Create(ctx, tx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.repo.FindByTransactionID(ctx, tx, txn.ID)
		}
		return nil, err
	}
	return rec, nil
}

// CancelCommission marks the transaction's commission cancelled. A missing
// record yields (nil, nil); a paid one cannot be cancelled.
func (s *commissionService) CancelCommission(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*model.CommissionRecord, error) {
	rec, err := s.repo.FindByTransactionID(ctx, tx, transactionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case model.CommissionCancelled:
		return rec, nil
	case model.CommissionPaid:
		return nil, ErrCommissionAlreadyPaid
	}
	rec.Status = model.CommissionCancelled
	if err := s.repo.Update(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *commissionService) GetSessionCommission(ctx context.Context, sessionID uuid.UUID) (*dto.SessionCommission, error) {
	if _, err := s.sessions.FindByID(ctx, nil, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	records, err := s.repo.List(ctx, nil, dto.CommissionFilter{SessionID: &sessionID})
	if err != nil {
		return nil, err
	}
	return &dto.SessionCommission{
		SessionID: sessionID.String(),
		Summary:   summarizeCommissions(records),
		Records:   commissionLines(records),
	}, nil
}

func (s *commissionService) GetCollectorCommissionReport(ctx context.Context, collectorID uuid.UUID, from, to *time.Time) (*dto.CollectorCommissionReport, error) {
	records, err := s.repo.List(ctx, nil, dto.CommissionFilter{CollectorID: &collectorID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	return &dto.CollectorCommissionReport{
		CollectorID: collectorID.String(),
		From:        from,
		To:          to,
		Summary:     summarizeCommissions(records),
		Records:     commissionLines(records),
	}, nil
}

func (s *commissionService) GetCommissionSummary(ctx context.Context, from, to time.Time, groupBy string) (*dto.CommissionSummaryReport, error) {
	if groupBy != dto.GroupByCollector && groupBy != dto.GroupByDay {
		return nil, ErrInvalidInput.WithMessage("group_by must be collector or day")
	}
	if !to.After(from) {
		return nil, ErrInvalidInput.WithMessage("to must be after from")
	}
	records, err := s.repo.List(ctx, nil, dto.CommissionFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]model.CommissionRecord)
	for _, r := range records {
		key := r.CollectorID.String()
		if groupBy == dto.GroupByDay {
			key = r.CreatedAt.In(s.loc).Format("2006-01-02")
		}
		buckets[key] = append(buckets[key], r)
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]dto.CommissionGroup, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, dto.CommissionGroup{Key: k, Summary: summarizeCommissions(buckets[k])})
	}
	return &dto.CommissionSummaryReport{
		GroupBy: groupBy,
		From:    from,
		To:      to,
		Total:   summarizeCommissions(records),
		Groups:  groups,
	}, nil
}

// ── MarkCommissionsAsPaid ─────────────────────────────────────────────────────

func (s *commissionService) MarkCommissionsAsPaid(ctx context.Context, ids []uuid.UUID, paidBy uuid.UUID, paidAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrInvalidInput.WithMessage("commission_ids must not be empty")
	}
	if paidAt.IsZero() {
		paidAt = utcNow(s.clock)
	}

	var updated int64
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.MarkPaid(ctx, tx, ids, paidBy, paidAt.UTC())
		if err != nil {
			return err
		}
		updated = n

		idStrings := make([]string, len(ids))
		for i, id := range ids {
			idStrings[i] = id.String()
		}
		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action: model.ActionCommissionPayout,
			UserID: paidBy,
			Data: map[string]any{
				"commission_ids": idStrings,
				"updated":        n,
				"paid_at":        paidAt.UTC(),
			},
		})
		return nil
	})
	return updated, err
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func summarizeCommissions(records []model.CommissionRecord) dto.CommissionSummary {
	sum := dto.CommissionSummary{
		TotalTaxBase:    decimal.Zero,
		Earned:          decimal.Zero,
		Pending:         decimal.Zero,
		Paid:            decimal.Zero,
		CancelledAmount: decimal.Zero,
	}
	for _, r := range records {
		switch r.Status {
		case model.CommissionCancelled:
			sum.CancelledCount++
			sum.CancelledAmount = sum.CancelledAmount.Add(r.CommissionAmount)
			continue
		case model.CommissionPaid:
			sum.Paid = sum.Paid.Add(r.CommissionAmount)
		default:
			sum.Pending = sum.Pending.Add(r.CommissionAmount)
		}
		sum.TransactionCount++
		sum.TotalTaxBase = sum.TotalTaxBase.Add(r.TaxAmount)
		sum.Earned = sum.Earned.Add(r.CommissionAmount)
	}
	return sum
}

func commissionLines(records []model.CommissionRecord) []dto.CommissionLine {
	lines := make([]dto.CommissionLine, len(records))
	for i, r := range records {
		lines[i] = dto.CommissionLine{
			ID:               r.ID.String(),
			SessionID:        r.SessionID.String(),
			TransactionID:    r.TransactionID.String(),
			TaxAmount:        r.TaxAmount,
			CommissionRate:   r.CommissionRate,
			CommissionAmount: r.CommissionAmount,
			Status:           r.Status,
			PaidAt:           r.PaidAt,
			CreatedAt:        r.CreatedAt,
		}
	}
	return lines
}
