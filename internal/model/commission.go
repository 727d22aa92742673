package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commission statuses.
const (
	CommissionPending   = "pending"
	CommissionPaid      = "paid"
	CommissionCancelled = "cancelled"
)

// CommissionRecord is the fee owed to the collector for one transaction.
// CommissionRate is a snapshot taken when the transaction was recorded.
type CommissionRecord struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CollectorID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	SessionID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	TransactionID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending'"`
	PaidAt           *time.Time
	PaidByID         *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
