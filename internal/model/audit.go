package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audit actions.
const (
	ActionSessionOpen        = "session_open"
	ActionSessionClose       = "session_close"
	ActionTransactionCreate  = "transaction_create"
	ActionTransactionApprove = "transaction_approve"
	ActionTransactionVoid    = "transaction_void"
	ActionReconciliation     = "reconciliation"
	ActionCommissionPayout   = "commission_payout"
	ActionConfigUpdate       = "config_update"
	ActionGatewayPayment     = "gateway_payment"
)

// CashAuditLogEntry is one immutable link in the global audit hash chain.
// CurrentHash = SHA-256(PreviousHash || canonical(all other fields)).
type CashAuditLogEntry struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Sequence      int64          `gorm:"not null;uniqueIndex"`
	Action        string         `gorm:"type:varchar(40);not null;index"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	SessionID     *uuid.UUID     `gorm:"type:uuid;index"`
	TransactionID *uuid.UUID     `gorm:"type:uuid;index"`
	ActionData    datatypes.JSON `gorm:"type:jsonb;not null"`
	ClientIP      string         `gorm:"not null;default:''"`
	UserAgent     string         `gorm:"not null;default:''"`
	Timestamp     time.Time      `gorm:"not null;index"`
	PreviousHash  string         `gorm:"type:varchar(64);not null"`
	CurrentHash   string         `gorm:"type:varchar(64);not null"`
}

func (CashAuditLogEntry) TableName() string { return "cash_audit_log" }

// AuditChainTail is the single persisted pointer to the newest chain entry.
// Appenders lock this row FOR UPDATE, which totally orders chain writes.
type AuditChainTail struct {
	ID            int    `gorm:"primaryKey"`
	LastSequence  int64  `gorm:"not null;default:0"`
	LastHash      string `gorm:"type:varchar(64);not null;default:''"`
	LastTimestamp *time.Time
}

func (AuditChainTail) TableName() string { return "cash_audit_chain_tail" }
