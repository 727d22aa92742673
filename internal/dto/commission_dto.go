package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commission summary grouping keys.
const (
	GroupByCollector = "collector"
	GroupByDay       = "day"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type MarkCommissionsPaidRequest struct {
	CommissionIDs []string   `json:"commission_ids" validate:"required,min=1,dive,uuid"`
	PaidDate      *time.Time `json:"paid_date"`
}

// CommissionFilter narrows commission queries; From/To bound created_at.
type CommissionFilter struct {
	CollectorID *uuid.UUID
	SessionID   *uuid.UUID
	Statuses    []string
	From        *time.Time // inclusive
	To          *time.Time // exclusive
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// CommissionSummary keeps cancelled commissions out of Earned while still reporting them.
type CommissionSummary struct {
	TransactionCount int64           `json:"transaction_count"`
	TotalTaxBase     decimal.Decimal `json:"total_tax_base"`
	Earned           decimal.Decimal `json:"earned"`
	Pending          decimal.Decimal `json:"pending"`
	Paid             decimal.Decimal `json:"paid"`
	CancelledCount   int64           `json:"cancelled_count"`
	CancelledAmount  decimal.Decimal `json:"cancelled_amount"`
}

type CommissionLine struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	TransactionID    string          `json:"transaction_id"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	Status           string          `json:"status"`
	PaidAt           *time.Time      `json:"paid_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

type SessionCommission struct {
	SessionID string            `json:"session_id"`
	Summary   CommissionSummary `json:"summary"`
	Records   []CommissionLine  `json:"records"`
}

type CollectorCommissionReport struct {
	CollectorID string            `json:"collector_id"`
	From        *time.Time        `json:"from"`
	To          *time.Time        `json:"to"`
	Summary     CommissionSummary `json:"summary"`
	Records     []CommissionLine  `json:"records"`
}

type CommissionGroup struct {
	Key     string            `json:"key"`
	Summary CommissionSummary `json:"summary"`
}

type CommissionSummaryReport struct {
	GroupBy string            `json:"group_by"`
	From    time.Time         `json:"from"`
	To      time.Time         `json:"to"`
	Total   CommissionSummary `json:"total"`
	Groups  []CommissionGroup `json:"groups"`
}

type MarkCommissionsPaidResponse struct {
	Updated int64 `json:"updated"`
}
