package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashTransaction is one cash collection event.
// Rows are never deleted; a void sets the void fields and excludes the row from totals.
type CashTransaction struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	CollectorID      uuid.UUID       `gorm:"type:uuid;not null"`
	VehicleID        uuid.UUID       `gorm:"type:uuid;not null"`
	VehiclePlate     string          `gorm:"not null"`
	TaxYear          int             `gorm:"not null"`
	CustomerName     string          `gorm:"not null"`
	CustomerPhone    string          `gorm:"not null;default:''"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	AmountTendered   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ChangeGiven      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	RequiresApproval bool            `gorm:"not null;default:false"`
	ApproverID       *uuid.UUID      `gorm:"type:uuid"`
	ApprovedAt       *time.Time
	Voided           bool       `gorm:"not null;default:false"`
	VoidedByID       *uuid.UUID `gorm:"type:uuid"`
	VoidedAt         *time.Time
	Notes            string    `gorm:"not null;default:''"`
	TransactionTime  time.Time `gorm:"not null"`
}

// NetCash is the cash that stays in the collector's custody.
func (t *CashTransaction) NetCash() decimal.Decimal {
	return t.AmountTendered.Sub(t.ChangeGiven)
}

// AwaitingApproval reports whether the payment is still blocked on dual control.
func (t *CashTransaction) AwaitingApproval() bool {
	return t.RequiresApproval && t.ApproverID == nil && !t.Voided
}
