package dto

import (
	"time"

	"github.com/google/uuid"
)

// Audit export formats.
const (
	ExportJSONLines = "jsonl"
	ExportJSON      = "json"
)

// Chain verification issue kinds.
const (
	IssueBrokenChainLink     = "broken_chain_link"
	IssueContentHashMismatch = "content_hash_mismatch"
)

// AuditFilter narrows audit queries; entries are always returned in chain order.
type AuditFilter struct {
	From          *time.Time // inclusive
	To            *time.Time // exclusive
	Action        string
	UserID        *uuid.UUID
	SessionID     *uuid.UUID
	TransactionID *uuid.UUID
	Limit         int
	Offset        int
}

type AuditEntryView struct {
	ID                  string         `json:"id"`
	Sequence            int64          `json:"sequence"`
	Action              string         `json:"action"`
	UserID              string         `json:"user_id"`
	SessionID           *string        `json:"session_id"`
	TransactionID       *string        `json:"transaction_id"`
	ActionData          map[string]any `json:"action_data"`
	ClientIP            string         `json:"client_ip"`
	UserAgent           string         `json:"user_agent"`
	Timestamp           time.Time      `json:"timestamp"`
	PreviousHash        string         `json:"previous_hash"`
	CurrentHash         string         `json:"current_hash"`
	UndecryptableFields []string       `json:"undecryptable_fields,omitempty"`
}

type AuditIssue struct {
	EntryID  string `json:"entry_id"`
	Sequence int64  `json:"sequence"`
	Kind     string `json:"kind"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type AuditVerification struct {
	Valid   bool         `json:"valid"`
	Checked int          `json:"checked"`
	Issues  []AuditIssue `json:"issues"`
}
