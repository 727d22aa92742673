package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cash session statuses.
const (
	SessionOpen       = "open"
	SessionClosed     = "closed"
	SessionReconciled = "reconciled"
)

// CashSession is a bounded custody period for one collector.
// Status: "open" | "closed" | "reconciled"
// At most one open session per collector (partial unique index uq_cash_sessions_open_collector).
type CashSession struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CollectorID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_cash_sessions_collector_status"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	OpenedAt       time.Time       `gorm:"not null"`
	Status         string          `gorm:"type:varchar(20);not null;default:'open';index:idx_cash_sessions_collector_status"`
	// ExpectedBalance is computed on close from the non-voided transactions.
	ExpectedBalance  *decimal.Decimal `gorm:"type:decimal(14,2)"`
	ClosingBalance   *decimal.Decimal `gorm:"type:decimal(14,2)"`
	Discrepancy      *decimal.Decimal `gorm:"type:decimal(14,2)"`
	DiscrepancyNotes string           `gorm:"not null;default:''"`
	CountedByID      *uuid.UUID       `gorm:"type:uuid"`
	ApproverID       *uuid.UUID       `gorm:"type:uuid"`
	ApprovedAt       *time.Time
	ClosedAt         *time.Time
	ReconciledAt     *time.Time
	TotalCommission  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	UpdatedAt        time.Time
}

// IsApproved reports whether the closing count has been signed off.
func (s *CashSession) IsApproved() bool { return s.ApproverID != nil }
