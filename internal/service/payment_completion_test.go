package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingOnce drops the first success call, as when the database connection
// goes away right after the payment commits.
type failingOnce struct {
	mu    sync.Mutex
	next  service.PaymentSuccessHandler
	calls int
}

func (f *failingOnce) HandlePaymentSuccess(ctx context.Context, id uuid.UUID, notify bool) (*model.VerificationArtifact, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.HandlePaymentSuccess(ctx, id, notify)
}

func TestResumeIncomplete_IssuesArtifactAfterFailedSuccessStep(t *testing.T) {
	h := newHarness(t)
	h.withSuccessHandler(&failingOnce{next: h.success})
	h.open(t, h.collector, "0")

	txn := h.pay(t, h.collector, h.vehicle, "100000")
	payment, err := h.store.Payments().FindByID(h.ctx, nil, txn.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, payment.Status)
	_, err = h.activeArtifact(h.vehicle)
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, h.receipts.ids)

	// Payments inside the grace period belong to their own request.
	n, err := h.success.ResumeIncomplete(h.ctx, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(3 * time.Minute)
	n, err = h.success.ResumeIncomplete(h.ctx, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	artifact, err := h.activeArtifact(h.vehicle)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, artifact.PaymentID)
	assert.Len(t, h.receipts.ids, 1)

	n, err = h.success.ResumeIncomplete(h.ctx, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.receipts.ids, 1, "artifact issued exactly once")
}

func TestResumeIncomplete_CoversApprovedPayments(t *testing.T) {
	h := newHarness(t)
	h.withSuccessHandler(&failingOnce{next: h.success})
	h.open(t, h.collector, "0")
	big := h.newVehicle(t, "7777TTT", "600000.00")

	txn := h.pay(t, h.collector, big, "600000")
	_, err := h.payments.ApproveTransaction(h.ctx, txn.ID, h.supervisor.ID, "")
	require.NoError(t, err)
	_, err = h.activeArtifact(big)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// No public operation re-drives an approved transaction.
	_, err = h.payments.ApproveTransaction(h.ctx, txn.ID, h.admin.ID, "")
	assert.ErrorIs(t, err, service.ErrTransactionAlreadyApproved)

	h.clock.Advance(5 * time.Minute)
	n, err := h.success.ResumeIncomplete(h.ctx, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	artifact, err := h.activeArtifact(big)
	require.NoError(t, err)
	assert.Equal(t, txn.PaymentID, artifact.PaymentID)
}

func TestResumeIncomplete_SkipsVoidedAndCoveredPayments(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")
	h.pay(t, h.collector, h.vehicle, "100000")

	h.withSuccessHandler(&failingOnce{next: h.success})
	other := h.newVehicle(t, "5555TBB", "80000.00")
	voided := h.pay(t, h.collector, other, "80000")
	_, err := h.payments.VoidTransaction(h.ctx, voided.ID, h.admin.ID, "wrong plate")
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	n, err := h.success.ResumeIncomplete(h.ctx, 2*time.Minute, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = h.activeArtifact(other)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
