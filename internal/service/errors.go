package service

import "errors"

// ErrorKind classifies domain failures so transports can map them without
// inspecting messages.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindState        ErrorKind = "state"
	KindNotFound     ErrorKind = "not_found"
	KindForbidden    ErrorKind = "forbidden"
	KindIntegrity    ErrorKind = "integrity"
	KindCollaborator ErrorKind = "collaborator"
)

// DomainError is the typed failure returned by every service operation.
// Two DomainErrors match under errors.Is when their Codes are equal, so a
// sentinel still matches after WithMessage adds detail.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific human-readable message.
func (e *DomainError) WithMessage(msg string) *DomainError {
	c := *e
	c.Message = msg
	return &c
}

// Wrap returns a copy that keeps cause for logging. Cause text never reaches Message.
func (e *DomainError) Wrap(cause error) *DomainError {
	c := *e
	c.Err = cause
	return &c
}

func newError(kind ErrorKind, code, msg string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: msg}
}

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ── Validation ────────────────────────────────────────────────────────────────

var (
	ErrInvalidInput            = newError(KindValidation, "invalid_input", "invalid input")
	ErrInsufficientFunds       = newError(KindValidation, "insufficient_funds", "amount tendered is less than the tax due")
	ErrNoActiveSession         = newError(KindValidation, "no_active_session", "collector has no open cash session")
	ErrDuplicatePayment        = newError(KindValidation, "duplicate_payment", "a payment already exists for this vehicle and tax year")
	ErrVehicleTaxExempt        = newError(KindValidation, "vehicle_tax_exempt", "vehicle is exempt from tax")
	ErrOpenSessionsRemain      = newError(KindValidation, "open_sessions_remain", "all sessions of the day must be closed before reconciliation")
	ErrExplanationRequired     = newError(KindValidation, "explanation_required", "discrepancy exceeds tolerance; notes are required")
	ErrNothingToReconcile      = newError(KindValidation, "nothing_to_reconcile", "no closed sessions to reconcile for this day")
	ErrInvalidCommissionInput  = newError(KindValidation, "invalid_commission_input", "tax amount must be non-negative and rate between 0 and 100")
	ErrInvalidCredentials      = newError(KindValidation, "invalid_credentials", "invalid credentials")
	ErrUnsupportedExportFormat = newError(KindValidation, "unsupported_export_format", "unsupported export format")
)

// ── State ───────────────────────────────────────────────────────────────────

var (
	ErrPaymentAwaitingApproval    = newError(KindState, "payment_awaiting_approval", "payment is awaiting dual-control approval")
	ErrPaymentCancelled           = newError(KindState, "payment_cancelled", "payment was cancelled")
	ErrCommissionAlreadyPaid      = newError(KindState, "commission_already_paid", "commission for this transaction was already paid out")
	ErrSessionAlreadyOpen         = newError(KindState, "session_already_open", "collector already has an open cash session")
	ErrSessionNotOpen             = newError(KindState, "session_not_open", "cash session is not open")
	ErrSessionNotClosed           = newError(KindState, "session_not_closed", "cash session is not closed")
	ErrSessionAlreadyApproved     = newError(KindState, "session_already_approved", "cash session closure is already approved")
	ErrApprovalNotRequired        = newError(KindState, "approval_not_required", "transaction does not require approval")
	ErrTransactionAlreadyApproved = newError(KindState, "transaction_already_approved", "transaction is already approved")
	ErrTransactionVoided          = newError(KindState, "transaction_voided", "transaction is voided")
	ErrTransactionAlreadyVoided   = newError(KindState, "transaction_already_voided", "transaction is already voided")
	ErrVoidSessionClosed          = newError(KindState, "void_session_closed", "only transactions of an open session can be voided")
	ErrVoidWindowExpired          = newError(KindState, "void_window_expired", "void time limit has expired")
)

// ── Authorization ─────────────────────────────────────────────────────────────

var ErrSelfApproval = newError(KindForbidden, "self_approval", "a transaction cannot be approved by its own collector")

// ── Lookups ───────────────────────────────────────────────────────────────────

var (
	ErrSessionNotFound     = newError(KindNotFound, "session_not_found", "cash session not found")
	ErrTransactionNotFound = newError(KindNotFound, "transaction_not_found", "cash transaction not found")
	ErrVehicleNotFound     = newError(KindNotFound, "vehicle_not_found", "vehicle not found")
	ErrPaymentNotFound     = newError(KindNotFound, "payment_not_found", "tax payment not found")
	ErrUserNotFound        = newError(KindNotFound, "user_not_found", "user not found")
)

// ── Integrity & collaborators ─────────────────────────────────────────────────

var (
	ErrAuditChainBroken = newError(KindIntegrity, "audit_chain_broken", "audit hash chain verification failed")
	ErrTaxUnavailable   = newError(KindCollaborator, "tax_unavailable", "tax amount could not be resolved")
)
