package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateCashPaymentRequest struct {
	VehicleID      string          `json:"vehicle_id"      validate:"required,uuid"`
	TaxYear        int             `json:"tax_year"        validate:"required,min=1990,max=2100"`
	CustomerName   string          `json:"customer_name"   validate:"required,min=2,max=160"`
	CustomerPhone  string          `json:"customer_phone"  validate:"omitempty,max=40"`
	AmountTendered decimal.Decimal `json:"amount_tendered" validate:"gt=0"`
	Notes          string          `json:"notes"           validate:"max=2000"`
}

type ApproveTransactionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type VoidTransactionRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

type ChangeRequest struct {
	TaxAmount      decimal.Decimal `json:"tax_amount"      validate:"min=0"`
	AmountTendered decimal.Decimal `json:"amount_tendered" validate:"min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TransactionResponse struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	PaymentID        string          `json:"payment_id"`
	CollectorID      string          `json:"collector_id"`
	VehicleID        string          `json:"vehicle_id"`
	VehiclePlate     string          `json:"vehicle_plate"`
	TaxYear          int             `json:"tax_year"`
	CustomerName     string          `json:"customer_name"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	AmountTendered   decimal.Decimal `json:"amount_tendered"`
	ChangeGiven      decimal.Decimal `json:"change_given"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	RequiresApproval bool            `json:"requires_approval"`
	ApproverID       *string         `json:"approver_id"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	Voided           bool            `json:"voided"`
	VoidedByID       *string         `json:"voided_by_id"`
	VoidedAt         *time.Time      `json:"voided_at"`
	Notes            string          `json:"notes"`
	TransactionTime  time.Time       `json:"transaction_time"`
}

type ChangeResponse struct {
	Change decimal.Decimal `json:"change"`
}
