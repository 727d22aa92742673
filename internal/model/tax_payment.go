package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tax payment statuses.
const (
	PaymentPending         = "pending"
	PaymentPendingApproval = "pending_approval"
	PaymentPaid            = "paid"
	PaymentCancelled       = "cancelled"
)

// Payment channels.
const (
	MethodCash   = "cash"
	MethodMVola  = "mvola"
	MethodStripe = "stripe"
)

// TaxPayment is the annual tax obligation settlement for one vehicle.
// At most one non-cancelled payment exists per (vehicle_id, tax_year).
type TaxPayment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VehicleID uuid.UUID       `gorm:"type:uuid;not null;index"`
	TaxYear   int             `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Status    string          `gorm:"type:varchar(20);not null;default:'pending'"`
	Method    string          `gorm:"type:varchar(20);not null"`
	// Reference is the gateway transaction id for MVola/Stripe, or the cash receipt number.
	Reference   string     `gorm:"not null"`
	PayerUserID *uuid.UUID `gorm:"type:uuid"`
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
