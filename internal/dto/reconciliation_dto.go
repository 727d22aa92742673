package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ReconcileDayRequest struct {
	Date          string          `json:"date"           validate:"required,datetime=2006-01-02"`
	PhysicalCount decimal.Decimal `json:"physical_count" validate:"min=0"`
	Notes         string          `json:"notes"          validate:"max=4000"`
}

// DiscrepancyFilter bounds sessions by opened_at in [From, To).
type DiscrepancyFilter struct {
	From           time.Time
	To             time.Time
	CollectorID    *uuid.UUID
	MinDiscrepancy *decimal.Decimal // compared against |discrepancy|
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessionBreakdown struct {
	SessionID        string           `json:"session_id"`
	CollectorID      string           `json:"collector_id"`
	Status           string           `json:"status"`
	OpenedAt         time.Time        `json:"opened_at"`
	ClosedAt         *time.Time       `json:"closed_at"`
	OpeningBalance   decimal.Decimal  `json:"opening_balance"`
	ExpectedBalance  decimal.Decimal  `json:"expected_balance"`
	ClosingBalance   *decimal.Decimal `json:"closing_balance"`
	Discrepancy      *decimal.Decimal `json:"discrepancy"`
	DiscrepancyNotes string           `json:"discrepancy_notes"`
	Approved         bool             `json:"approved"`
	TransactionCount int64            `json:"transaction_count"`
	TotalTax         decimal.Decimal  `json:"total_tax"`
	TotalCommission  decimal.Decimal  `json:"total_commission"`
}

type DailyReport struct {
	Date             string             `json:"date"`
	Timezone         string             `json:"timezone"`
	SessionCount     int                `json:"session_count"`
	OpenCount        int                `json:"open_count"`
	ClosedCount      int                `json:"closed_count"`
	ReconciledCount  int                `json:"reconciled_count"`
	TotalOpening     decimal.Decimal    `json:"total_opening"`
	TotalExpected    decimal.Decimal    `json:"total_expected"`
	TotalClosing     decimal.Decimal    `json:"total_closing"`
	TotalDiscrepancy decimal.Decimal    `json:"total_discrepancy"`
	TotalTax         decimal.Decimal    `json:"total_tax"`
	TotalCommission  decimal.Decimal    `json:"total_commission"`
	TransactionCount int64              `json:"transaction_count"`
	Sessions         []SessionBreakdown `json:"sessions"`
}

type ReconcileDayResult struct {
	Date               string          `json:"date"`
	ExpectedTotal      decimal.Decimal `json:"expected_total"`
	PhysicalCount      decimal.Decimal `json:"physical_count"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`
	ReconciledSessions []string        `json:"reconciled_sessions"`
}

type CollectorDiscrepancy struct {
	CollectorID    string             `json:"collector_id"`
	SessionCount   int                `json:"session_count"`
	NetDiscrepancy decimal.Decimal    `json:"net_discrepancy"`
	TotalShortage  decimal.Decimal    `json:"total_shortage"`
	TotalOverage   decimal.Decimal    `json:"total_overage"`
	Sessions       []SessionBreakdown `json:"sessions"`
}

type DiscrepancyReport struct {
	From           time.Time              `json:"from"`
	To             time.Time              `json:"to"`
	SessionCount   int                    `json:"session_count"`
	NetDiscrepancy decimal.Decimal        `json:"net_discrepancy"`
	Collectors     []CollectorDiscrepancy `json:"collectors"`
}
