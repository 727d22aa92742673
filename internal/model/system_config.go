package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SystemConfigID is the primary key of the singleton configuration row.
const SystemConfigID = 1

// CashSystemConfig holds the tunable cash-handling rules. One logical row.
type CashSystemConfig struct {
	ID                        int             `gorm:"primaryKey"`
	DefaultCommissionRate     decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	DualVerificationThreshold decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ReconciliationTolerance   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	SessionTimeoutHours       int             `gorm:"not null"`
	VoidTimeLimitMinutes      int             `gorm:"not null"`
	UpdatedByID               *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func (CashSystemConfig) TableName() string { return "cash_system_config" }
