package service

import (
	"context"
	"sort"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReconciliationService interface {
	// GenerateDailyReport covers sessions opened on date's calendar day in the
	// business time zone.
	GenerateDailyReport(ctx context.Context, date time.Time) (*dto.DailyReport, error)
	ReconcileDay(ctx context.Context, date time.Time, adminID uuid.UUID, physicalCount decimal.Decimal, notes string) (*dto.ReconcileDayResult, error)
	GetDiscrepancyReport(ctx context.Context, filter dto.DiscrepancyFilter) (*dto.DiscrepancyReport, error)
	// GetUnreconciledSessions lists closed sessions; maxAgeDays keeps only
	// those opened within the last N days.
	GetUnreconciledSessions(ctx context.Context, maxAgeDays *int) ([]model.CashSession, error)
}

type reconciliationService struct {
	tx       repository.Transactor
	sessions repository.CashSessionRepository
	txns     repository.CashTransactionRepository
	config   SystemConfigService
	audit    AuditService
	clock    Clock
	loc      *time.Location
}

func NewReconciliationService(
	tx repository.Transactor,
	sessions repository.CashSessionRepository,
	txns repository.CashTransactionRepository,
	cfg SystemConfigService,
	audit AuditService,
	clock Clock,
	loc *time.Location,
) ReconciliationService {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &reconciliationService{
		tx:       tx,
		sessions: sessions,
		txns:     txns,
		config:   cfg,
		audit:    audit,
		clock:    clock,
		loc:      loc,
	}
}

// dayBounds returns [start, end) of date's calendar day in the business zone.
func (s *reconciliationService) dayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.In(s.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

func (s *reconciliationService) dayLabel(date time.Time) string {
	return date.In(s.loc).Format("2006-01-02")
}

// ── GenerateDailyReport ───────────────────────────────────────────────────────

func (s *reconciliationService) GenerateDailyReport(ctx context.Context, date time.Time) (*dto.DailyReport, error) {
	start, end := s.dayBounds(date)
	sessions, err := s.sessions.List(ctx, nil, dto.SessionFilter{OpenedFrom: &start, OpenedTo: &end})
	if err != nil {
		return nil, err
	}
	return s.buildReport(ctx, nil, date, sessions)
}

func (s *reconciliationService) buildReport(ctx context.Context, tx *gorm.DB, date time.Time, sessions []model.CashSession) (*dto.DailyReport, error) {
	report := &dto.DailyReport{
		Date:             s.dayLabel(date),
		Timezone:         s.loc.String(),
		SessionCount:     len(sessions),
		TotalOpening:     decimal.Zero,
		TotalExpected:    decimal.Zero,
		TotalClosing:     decimal.Zero,
		TotalDiscrepancy: decimal.Zero,
		TotalTax:         decimal.Zero,
		TotalCommission:  decimal.Zero,
		Sessions:         make([]dto.SessionBreakdown, 0, len(sessions)),
	}
	for i := range sessions {
		b, err := s.breakdown(ctx, tx, &sessions[i])
		if err != nil {
			return nil, err
		}
		switch b.Status {
		case model.SessionOpen:
			report.OpenCount++
		case model.SessionClosed:
			report.ClosedCount++
		case model.SessionReconciled:
			report.ReconciledCount++
		}
		report.TotalOpening = report.TotalOpening.Add(b.OpeningBalance)
		report.TotalExpected = report.TotalExpected.Add(b.ExpectedBalance)
		if b.ClosingBalance != nil {
			report.TotalClosing = report.TotalClosing.Add(*b.ClosingBalance)
		}
		if b.Discrepancy != nil {
			report.TotalDiscrepancy = report.TotalDiscrepancy.Add(*b.Discrepancy)
		}
		report.TotalTax = report.TotalTax.Add(b.TotalTax)
		report.TotalCommission = report.TotalCommission.Add(b.TotalCommission)
		report.TransactionCount += b.TransactionCount
		report.Sessions = append(report.Sessions, b)
	}
	return report, nil
}

// breakdown uses the stored expected balance of closed sessions and a live
// figure for open ones.
func (s *reconciliationService) breakdown(ctx context.Context, tx *gorm.DB, cs *model.CashSession) (dto.SessionBreakdown, error) {
	agg, err := s.txns.AggregateBySession(ctx, tx, cs.ID)
	if err != nil {
		return dto.SessionBreakdown{}, err
	}
	expected := cs.OpeningBalance.Add(agg.TenderedTotal.Sub(agg.ChangeTotal))
	if cs.ExpectedBalance != nil {
		expected = *cs.ExpectedBalance
	}
	return dto.SessionBreakdown{
		SessionID:        cs.ID.String(),
		CollectorID:      cs.CollectorID.String(),
		Status:           cs.Status,
		OpenedAt:         cs.OpenedAt,
		ClosedAt:         cs.ClosedAt,
		OpeningBalance:   cs.OpeningBalance,
		ExpectedBalance:  expected,
		ClosingBalance:   cs.ClosingBalance,
		Discrepancy:      cs.Discrepancy,
		DiscrepancyNotes: cs.DiscrepancyNotes,
		Approved:         cs.IsApproved(),
		TransactionCount: agg.Count,
		TotalTax:         agg.TaxTotal,
		TotalCommission:  agg.CommissionTotal,
	}, nil
}

// ── ReconcileDay ──────────────────────────────────────────────────────────────
//   1. Lock every session of the day; any open one blocks reconciliation
//   2. discrepancy = physical_count − expected_total
//   3. Beyond tolerance an explanation is mandatory
//   4. Closed sessions become reconciled with the admin as approver

func (s *reconciliationService) ReconcileDay(ctx context.Context, date time.Time, adminID uuid.UUID, physicalCount decimal.Decimal, notes string) (*dto.ReconcileDayResult, error) {
	if physicalCount.IsNegative() {
		return nil, ErrInvalidInput.WithMessage("physical_count must not be negative")
	}
	if err := checkCents("physical_count", physicalCount); err != nil {
		return nil, err
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	start, end := s.dayBounds(date)

	var result *dto.ReconcileDayResult
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		sessions, err := s.sessions.List(ctx, tx, dto.SessionFilter{OpenedFrom: &start, OpenedTo: &end, ForUpdate: true})
		if err != nil {
			return err
		}
		var closed []model.CashSession
		for _, cs := range sessions {
			switch cs.Status {
			case model.SessionOpen:
				return ErrOpenSessionsRemain
			case model.SessionClosed:
				closed = append(closed, cs)
			}
		}
		if len(closed) == 0 {
			return ErrNothingToReconcile
		}

		report, err := s.buildReport(ctx, tx, date, sessions)
		if err != nil {
			return err
		}
		discrepancy := physicalCount.Sub(report.TotalExpected)
		if discrepancy.Abs().GreaterThan(cfg.ReconciliationTolerance) && notes == "" {
			return ErrExplanationRequired
		}

		now := utcNow(s.clock)
		ids := make([]string, 0, len(closed))
		for i := range closed {
			cs := &closed[i]
			cs.Status = model.SessionReconciled
			cs.ApproverID = &adminID
			cs.ApprovedAt = &now
			cs.ReconciledAt = &now
			if notes != "" {
				cs.DiscrepancyNotes = appendNote(cs.DiscrepancyNotes, "day reconciliation: "+notes)
			}
			if err := s.sessions.Update(ctx, tx, cs); err != nil {
				return err
			}
			ids = append(ids, cs.ID.String())
		}

		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action: model.ActionReconciliation,
			UserID: adminID,
			Data: map[string]any{
				"scope":          "day",
				"date":           report.Date,
				"expected_total": report.TotalExpected.StringFixed(2),
				"physical_count": physicalCount.StringFixed(2),
				"discrepancy":    discrepancy.StringFixed(2),
				"session_ids":    ids,
				"notes":          notes,
			},
		})
		result = &dto.ReconcileDayResult{
			Date:               report.Date,
			ExpectedTotal:      report.TotalExpected,
			PhysicalCount:      physicalCount,
			Discrepancy:        discrepancy,
			ReconciledSessions: ids,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("date", result.Date).
		Int("sessions", len(result.ReconciledSessions)).
		Str("discrepancy", result.Discrepancy.StringFixed(2)).
		Msg("day reconciled")
	return result, nil
}

// ── GetDiscrepancyReport ──────────────────────────────────────────────────────

func (s *reconciliationService) GetDiscrepancyReport(ctx context.Context, filter dto.DiscrepancyFilter) (*dto.DiscrepancyReport, error) {
	if !filter.To.After(filter.From) {
		return nil, ErrInvalidInput.WithMessage("to must be after from")
	}
	from, to := filter.From, filter.To
	sessions, err := s.sessions.List(ctx, nil, dto.SessionFilter{
		CollectorID:        filter.CollectorID,
		OpenedFrom:         &from,
		OpenedTo:           &to,
		NonZeroDiscrepancy: true,
		MinAbsDiscrepancy:  filter.MinDiscrepancy,
	})
	if err != nil {
		return nil, err
	}

	byCollector := make(map[string]*dto.CollectorDiscrepancy)
	report := &dto.DiscrepancyReport{From: from, To: to, NetDiscrepancy: decimal.Zero}
	for i := range sessions {
		cs := &sessions[i]
		if cs.Discrepancy == nil {
			continue
		}
		b, err := s.breakdown(ctx, nil, cs)
		if err != nil {
			return nil, err
		}
		key := cs.CollectorID.String()
		c, ok := byCollector[key]
		if !ok {
			c = &dto.CollectorDiscrepancy{
				CollectorID:    key,
				NetDiscrepancy: decimal.Zero,
				TotalShortage:  decimal.Zero,
				TotalOverage:   decimal.Zero,
			}
			byCollector[key] = c
		}
		d := *cs.Discrepancy
		c.SessionCount++
		c.NetDiscrepancy = c.NetDiscrepancy.Add(d)
		if d.IsNegative() {
			c.TotalShortage = c.TotalShortage.Add(d.Abs())
		} else {
			c.TotalOverage = c.TotalOverage.Add(d)
		}
		c.Sessions = append(c.Sessions, b)
		report.SessionCount++
		report.NetDiscrepancy = report.NetDiscrepancy.Add(d)
	}

	keys := make([]string, 0, len(byCollector))
	for k := range byCollector {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	report.Collectors = make([]dto.CollectorDiscrepancy, 0, len(keys))
	for _, k := range keys {
		report.Collectors = append(report.Collectors, *byCollector[k])
	}
	return report, nil
}

// ── GetUnreconciledSessions ───────────────────────────────────────────────────

func (s *reconciliationService) GetUnreconciledSessions(ctx context.Context, maxAgeDays *int) ([]model.CashSession, error) {
	filter := dto.SessionFilter{Statuses: []string{model.SessionClosed}}
	if maxAgeDays != nil {
		if *maxAgeDays < 0 {
			return nil, ErrInvalidInput.WithMessage("max_age_days must not be negative")
		}
		cutoff := utcNow(s.clock).AddDate(0, 0, -*maxAgeDays)
		filter.OpenedFrom = &cutoff
	}
	return s.sessions.List(ctx, nil, filter)
}
