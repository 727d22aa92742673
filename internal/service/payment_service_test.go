package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateChange_Boundaries(t *testing.T) {
	h := newHarness(t)

	change, err := h.payments.CalculateChange(dec("100000.00"), dec("100000.00"))
	require.NoError(t, err)
	assert.True(t, change.IsZero())

	_, err = h.payments.CalculateChange(dec("100000.00"), dec("99999.99"))
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	change, err = h.payments.CalculateChange(dec("99999.99"), dec("100000.00"))
	require.NoError(t, err)
	assert.True(t, change.Equal(dec("0.01")))
}

func TestRequiresDualVerification_InclusiveThreshold(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct {
		amount string
		want   bool
	}{
		{"499999.99", false},
		{"500000.00", true},
		{"500000.01", true},
	} {
		got, err := h.payments.RequiresDualVerification(h.ctx, dec(tc.amount))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.amount)
	}
}

// Open → pay below threshold → close balanced.
func TestCashPayment_BelowThresholdIsCompletedImmediately(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "50000")

	txn := h.pay(t, h.collector, h.vehicle, "100000")
	assert.True(t, txn.ChangeGiven.IsZero())
	assert.False(t, txn.RequiresApproval)
	assert.True(t, txn.CommissionAmount.Equal(dec("2000")))

	payment, err := h.store.Payments().FindByID(h.ctx, nil, txn.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, payment.Status)
	assert.Equal(t, model.MethodCash, payment.Method)

	artifact, err := h.activeArtifact(h.vehicle)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, artifact.PaymentID)
	assert.Len(t, h.receipts.ids, 1)
	assert.Contains(t, h.notifier.kinds(), service.NotifyPaymentConfirmed)

	rec, err := h.store.Commissions().FindByTransactionID(h.ctx, nil, txn.ID)
	require.NoError(t, err)
	assert.True(t, rec.CommissionRate.Equal(dec("2")))
	assert.Equal(t, model.CommissionPending, rec.Status)

	// Success handling again neither re-issues nor re-notifies.
	again, err := h.success.HandlePaymentSuccess(h.ctx, payment.ID, true)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, again.ID)
	assert.Len(t, h.receipts.ids, 1)
}

// Dual control above the threshold.
func TestCashPayment_AboveThresholdWaitsForApproval(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "50000")
	big := h.newVehicle(t, "7777TTT", "600000.00")

	txn := h.pay(t, h.collector, big, "600000")
	assert.True(t, txn.RequiresApproval)
	assert.Nil(t, txn.ApproverID)

	payment, err := h.store.Payments().FindByID(h.ctx, nil, txn.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPendingApproval, payment.Status)
	assert.Nil(t, payment.PaidAt)
	_, err = h.activeArtifact(big)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, h.notifier.kinds(), service.NotifyApprovalRequired)

	// The success path refuses to bypass the approval.
	_, err = h.success.HandlePaymentSuccess(h.ctx, payment.ID, true)
	assert.ErrorIs(t, err, service.ErrPaymentAwaitingApproval)

	// Collectors cannot approve their own cash.
	_, err = h.payments.ApproveTransaction(h.ctx, txn.ID, h.collector.ID, "")
	assert.ErrorIs(t, err, service.ErrSelfApproval)

	approved, err := h.payments.ApproveTransaction(h.ctx, txn.ID, h.admin.ID, "counted twice")
	require.NoError(t, err)
	require.NotNil(t, approved.ApproverID)
	assert.Equal(t, h.admin.ID, *approved.ApproverID)

	payment, err = h.store.Payments().FindByID(h.ctx, nil, txn.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, payment.Status)
	artifact, err := h.activeArtifact(big)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, artifact.PaymentID)
	assert.Len(t, h.receipts.ids, 1)

	_, err = h.payments.ApproveTransaction(h.ctx, txn.ID, h.supervisor.ID, "")
	assert.ErrorIs(t, err, service.ErrTransactionAlreadyApproved)
	assert.Len(t, h.receipts.ids, 1, "artifact issued exactly once")
}

func TestApproveTransaction_NotRequired(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")
	txn := h.pay(t, h.collector, h.vehicle, "100000")

	_, err := h.payments.ApproveTransaction(h.ctx, txn.ID, h.admin.ID, "")
	assert.ErrorIs(t, err, service.ErrApprovalNotRequired)

	_, err = h.payments.ApproveTransaction(h.ctx, uuid.New(), h.admin.ID, "")
	assert.ErrorIs(t, err, service.ErrTransactionNotFound)
}

func TestApproveTransaction_RejectsVoided(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")
	big := h.newVehicle(t, "7777TTT", "600000.00")
	txn := h.pay(t, h.collector, big, "600000")

	_, err := h.payments.VoidTransaction(h.ctx, txn.ID, h.admin.ID, "customer left")
	require.NoError(t, err)

	_, err = h.payments.ApproveTransaction(h.ctx, txn.ID, h.admin.ID, "")
	assert.ErrorIs(t, err, service.ErrTransactionVoided)
}

func TestCreateCashPayment_Guards(t *testing.T) {
	t.Run("no open session", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.payments.CreateCashPayment(h.ctx, h.collector.ID, h.payReq(h.vehicle, "100000"))
		assert.ErrorIs(t, err, service.ErrNoActiveSession)
	})

	t.Run("insufficient funds by one cent", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, h.collector, "0")
		_, err := h.payments.CreateCashPayment(h.ctx, h.collector.ID, h.payReq(h.vehicle, "99999.99"))
		assert.ErrorIs(t, err, service.ErrInsufficientFunds)
		assert.Equal(t, service.KindValidation, service.KindOf(err))
	})

	t.Run("duplicate payment for the year", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, h.collector, "0")
		h.pay(t, h.collector, h.vehicle, "100000")
		_, err := h.payments.CreateCashPayment(h.ctx, h.collector.ID, h.payReq(h.vehicle, "100000"))
		assert.ErrorIs(t, err, service.ErrDuplicatePayment)
	})

	t.Run("exempt vehicle", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, h.collector, "0")
		h.tax.exempt = true
		_, err := h.payments.CreateCashPayment(h.ctx, h.collector.ID, h.payReq(h.vehicle, "100000"))
		assert.ErrorIs(t, err, service.ErrVehicleTaxExempt)
	})

	t.Run("tax service unavailable", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, h.collector, "0")
		h.tax.err = errors.New("connection refused")
		_, err := h.payments.CreateCashPayment(h.ctx, h.collector.ID, h.payReq(h.vehicle, "100000"))
		assert.ErrorIs(t, err, service.ErrTaxUnavailable)
		assert.Equal(t, service.KindCollaborator, service.KindOf(err))
		assert.NotContains(t, err.Error(), "connection refused")
	})

	t.Run("unknown vehicle", func(t *testing.T) {
		h := newHarness(t)
		h.open(t, h.collector, "0")
		req := h.payReq(h.vehicle, "100000")
		req.VehicleID = uuid.NewString()
		_, err := h.payments.CreateCashPayment(h.ctx, h.collector.ID, req)
		assert.ErrorIs(t, err, service.ErrVehicleNotFound)
	})
}

func TestCreateCashPayment_RejectsSubCentTender(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")

	_, err := h.payments.CreateCashPayment(h.ctx, h.collector.ID, h.payReq(h.vehicle, "100000.004"))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	exists, err := h.store.Payments().ExistsActive(h.ctx, nil, h.vehicle.ID, 2026)
	require.NoError(t, err)
	assert.False(t, exists)

	txn := h.pay(t, h.collector, h.vehicle, "100000.01")
	assert.True(t, txn.ChangeGiven.Equal(dec("0.01")))
}

func TestCreateCashPayment_CollectorRateOverride(t *testing.T) {
	h := newHarness(t)
	rate := dec("3.50")
	special := &model.User{Username: "special", FullName: "special", PasswordHash: "x", Role: model.RoleCollector, Active: true, CommissionRate: &rate}
	require.NoError(t, h.store.Users().Create(h.ctx, special))
	h.open(t, special, "0")

	txn := h.pay(t, special, h.vehicle, "100000")
	assert.True(t, txn.CommissionAmount.Equal(dec("3500")))
}

// Voiding after the session closed changes nothing.
func TestVoidTransaction_ClosedSessionIsRejected(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "50000")
	txn := h.pay(t, h.collector, h.vehicle, "100000")
	_, _, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("150000"), h.collector.ID, "")
	require.NoError(t, err)

	before, err := h.sessions.CalculateSessionTotals(h.ctx, cs.ID)
	require.NoError(t, err)

	_, err = h.payments.VoidTransaction(h.ctx, txn.ID, h.admin.ID, "late correction")
	require.ErrorIs(t, err, service.ErrVoidSessionClosed)
	assert.Equal(t, service.KindState, service.KindOf(err))

	after, err := h.sessions.CalculateSessionTotals(h.ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, before.TransactionCount, after.TransactionCount)
	assert.True(t, before.ExpectedBalance.Equal(after.ExpectedBalance))
	assert.True(t, before.TotalCommission.Equal(after.TotalCommission))

	stored, err := h.payments.GetTransaction(h.ctx, txn.ID)
	require.NoError(t, err)
	assert.False(t, stored.Voided)
	_, err = h.activeArtifact(h.vehicle)
	assert.NoError(t, err, "artifact stays valid")
}

func TestVoidTransaction_ReversesEverything(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "0")
	txn := h.pay(t, h.collector, h.vehicle, "100000")

	voided, err := h.payments.VoidTransaction(h.ctx, txn.ID, h.admin.ID, "duplicate entry")
	require.NoError(t, err)
	assert.True(t, voided.Voided)
	assert.Equal(t, h.admin.ID, *voided.VoidedByID)
	assert.Contains(t, voided.Notes, "VOID: duplicate entry")

	payment, err := h.store.Payments().FindByID(h.ctx, nil, txn.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCancelled, payment.Status)

	rec, err := h.store.Commissions().FindByTransactionID(h.ctx, nil, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommissionCancelled, rec.Status)

	session, err := h.sessions.GetSession(h.ctx, cs.ID)
	require.NoError(t, err)
	assert.True(t, session.TotalCommission.IsZero())

	_, err = h.activeArtifact(h.vehicle)
	assert.ErrorIs(t, err, repository.ErrNotFound, "artifact revoked")

	_, err = h.payments.VoidTransaction(h.ctx, txn.ID, h.admin.ID, "again")
	assert.ErrorIs(t, err, service.ErrTransactionAlreadyVoided)

	// The vehicle can be paid again once the first payment is cancelled.
	h.pay(t, h.collector, h.vehicle, "100000")
}

func TestVoidTransaction_WindowExpires(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")
	txn := h.pay(t, h.collector, h.vehicle, "100000")

	h.clock.Advance(30*time.Minute + time.Second)
	_, err := h.payments.VoidTransaction(h.ctx, txn.ID, h.admin.ID, "too late")
	assert.ErrorIs(t, err, service.ErrVoidWindowExpired)
}

func TestVoidTransaction_PaidCommissionBlocksVoid(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")
	txn := h.pay(t, h.collector, h.vehicle, "100000")
	rec, err := h.store.Commissions().FindByTransactionID(h.ctx, nil, txn.ID)
	require.NoError(t, err)

	_, err = h.commission.MarkCommissionsAsPaid(h.ctx, []uuid.UUID{rec.ID}, h.admin.ID, time.Time{})
	require.NoError(t, err)

	_, err = h.payments.VoidTransaction(h.ctx, txn.ID, h.admin.ID, "refund")
	assert.ErrorIs(t, err, service.ErrCommissionAlreadyPaid)

	stored, err := h.payments.GetTransaction(h.ctx, txn.ID)
	require.NoError(t, err)
	assert.False(t, stored.Voided, "rolled back")
}

func TestCreateCashPayment_IsAuditedWithEncryptedPII(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")
	txn := h.pay(t, h.collector, h.vehicle, "100000")

	raw, err := h.audit.GetAuditTrail(h.ctx, auditFilterForTxn(txn.ID), false)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, model.ActionTransactionCreate, raw[0].Action)
	assert.NotEqual(t, "Rasoa Rabe", raw[0].ActionData["customer_name"])
	assert.NotEqual(t, h.vehicle.Plate, raw[0].ActionData["vehicle_plate"])
	assert.Equal(t, "100000.00", raw[0].ActionData["tax_amount"])

	clear, err := h.audit.GetAuditTrail(h.ctx, auditFilterForTxn(txn.ID), true)
	require.NoError(t, err)
	assert.Equal(t, "Rasoa Rabe", clear[0].ActionData["customer_name"])
	assert.Equal(t, h.vehicle.Plate, clear[0].ActionData["vehicle_plate"])
	assert.Empty(t, clear[0].UndecryptableFields)
}
