package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"min=0"`
}

type CloseSessionRequest struct {
	ClosingBalance decimal.Decimal `json:"closing_balance" validate:"min=0"`
	Notes          string          `json:"notes"           validate:"max=2000"`
}

type ApproveSessionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// SessionFilter narrows session listings. ForUpdate locks the matched rows.
type SessionFilter struct {
	CollectorID        *uuid.UUID
	Statuses           []string
	OpenedFrom         *time.Time // inclusive
	OpenedTo           *time.Time // exclusive
	NonZeroDiscrepancy bool
	MinAbsDiscrepancy  *decimal.Decimal
	ForUpdate          bool
	Limit              int
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessionResponse struct {
	ID               string           `json:"id"`
	CollectorID      string           `json:"collector_id"`
	Status           string           `json:"status"`
	OpeningBalance   decimal.Decimal  `json:"opening_balance"`
	OpenedAt         time.Time        `json:"opened_at"`
	ExpectedBalance  *decimal.Decimal `json:"expected_balance"`
	ClosingBalance   *decimal.Decimal `json:"closing_balance"`
	Discrepancy      *decimal.Decimal `json:"discrepancy"`
	DiscrepancyNotes string           `json:"discrepancy_notes"`
	CountedByID      *string          `json:"counted_by_id"`
	ApproverID       *string          `json:"approver_id"`
	ApprovedAt       *time.Time       `json:"approved_at"`
	ClosedAt         *time.Time       `json:"closed_at"`
	ReconciledAt     *time.Time       `json:"reconciled_at"`
	TotalCommission  decimal.Decimal  `json:"total_commission"`
	TimedOut         bool             `json:"timed_out"`
}

// SessionTotals is recomputed from the non-voided transactions on every call.
type SessionTotals struct {
	SessionID            string          `json:"session_id"`
	TransactionCount     int64           `json:"transaction_count"`
	TotalTax             decimal.Decimal `json:"total_tax"`
	TotalCashReceived    decimal.Decimal `json:"total_cash_received"`
	TotalChangeGiven     decimal.Decimal `json:"total_change_given"`
	TotalCommission      decimal.Decimal `json:"total_commission"`
	NetCash              decimal.Decimal `json:"net_cash"`
	OpeningBalance       decimal.Decimal `json:"opening_balance"`
	ExpectedBalance      decimal.Decimal `json:"expected_balance"`
	PendingApprovalCount int64           `json:"pending_approval_count"`
}

type CloseSessionResponse struct {
	Session        SessionResponse `json:"session"`
	Discrepancy    decimal.Decimal `json:"discrepancy"`
	RequiresReview bool            `json:"requires_review"`
}
