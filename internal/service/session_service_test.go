package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSession_RejectsSecondOpen(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "50000")

	_, err := h.sessions.OpenSession(h.ctx, h.collector.ID, dec("0"))
	require.ErrorIs(t, err, service.ErrSessionAlreadyOpen)
	assert.Equal(t, service.KindState, service.KindOf(err))

	// Other collectors are independent.
	h.open(t, h.collector2, "0")
}

func TestOpenSession_RejectsNegativeBalance(t *testing.T) {
	h := newHarness(t)
	_, err := h.sessions.OpenSession(h.ctx, h.collector.ID, dec("-1"))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestOpenSession_ConcurrentOpensYieldOneSession(t *testing.T) {
	h := newHarness(t)

	const callers = 2
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.sessions.OpenSession(h.ctx, h.collector.ID, dec("1000"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, service.ErrSessionAlreadyOpen) {
				fail++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, fail)
	open, err := h.store.Sessions().ListOpenByCollector(h.ctx, nil, h.collector.ID)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCloseSession_BalancedIsAutoApproved(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "50000")
	h.pay(t, h.collector, h.vehicle, "100000")

	closed, discrepancy, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("150000"), h.collector.ID, "")
	require.NoError(t, err)

	assert.True(t, discrepancy.IsZero())
	assert.Equal(t, model.SessionClosed, closed.Status)
	require.NotNil(t, closed.ExpectedBalance)
	assert.True(t, closed.ExpectedBalance.Equal(dec("150000")))
	require.NotNil(t, closed.ApproverID)
	assert.Equal(t, h.collector.ID, *closed.ApproverID)
	assert.NotNil(t, closed.ClosedAt)
}

func TestCloseSession_BeyondToleranceWaitsForReview(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "50000")
	h.pay(t, h.collector, h.vehicle, "100000")

	closed, discrepancy, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("148000"), h.collector.ID, "short count")
	require.NoError(t, err)

	assert.True(t, discrepancy.Equal(dec("-2000")))
	assert.Nil(t, closed.ApproverID)
	assert.Equal(t, "short count", closed.DiscrepancyNotes)
	assert.Contains(t, h.notifier.kinds(), service.NotifySessionDiscrepancy)

	approved, err := h.sessions.ApproveSessionClosure(h.ctx, cs.ID, h.supervisor.ID, "recounted, agreed")
	require.NoError(t, err)
	assert.Equal(t, model.SessionReconciled, approved.Status)
	assert.Equal(t, h.supervisor.ID, *approved.ApproverID)
	assert.Equal(t, "short count\nrecounted, agreed", approved.DiscrepancyNotes)

	_, err = h.sessions.ApproveSessionClosure(h.ctx, cs.ID, h.supervisor.ID, "")
	assert.ErrorIs(t, err, service.ErrSessionNotClosed)
}

func TestCloseSession_ToleranceBoundaryIsInclusive(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "0")

	closed, _, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("1000"), h.collector.ID, "")
	require.NoError(t, err)
	assert.NotNil(t, closed.ApproverID, "a discrepancy equal to the tolerance is accepted")
}

// Money columns hold two decimals; anything finer would be rounded on write
// after the tolerance decision.
func TestCloseSession_RejectsSubCentAmounts(t *testing.T) {
	h := newHarness(t)

	_, err := h.sessions.OpenSession(h.ctx, h.collector.ID, dec("50000.001"))
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	cs := h.open(t, h.collector, "0.00")
	_, _, err = h.sessions.CloseSession(h.ctx, cs.ID, dec("1000.004"), h.collector.ID, "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	stored, err := h.sessions.GetSession(h.ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, stored.Status)

	closed, discrepancy, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("1000.010"), h.collector.ID, "over by a cent")
	require.NoError(t, err)
	assert.True(t, discrepancy.Equal(dec("1000.01")))
	assert.Nil(t, closed.ApproverID)
}

func TestApproveSessionClosure_RejectsAutoApproved(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "0")
	_, _, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("0"), h.collector.ID, "")
	require.NoError(t, err)

	_, err = h.sessions.ApproveSessionClosure(h.ctx, cs.ID, h.supervisor.ID, "")
	assert.ErrorIs(t, err, service.ErrSessionAlreadyApproved)
}

func TestCloseSession_OnlyOpenSessions(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "0")
	_, _, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("0"), h.collector.ID, "")
	require.NoError(t, err)

	_, _, err = h.sessions.CloseSession(h.ctx, cs.ID, dec("0"), h.collector.ID, "")
	assert.ErrorIs(t, err, service.ErrSessionNotOpen)

	_, _, err = h.sessions.CloseSession(h.ctx, uuid.New(), dec("0"), h.collector.ID, "")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestCalculateSessionTotals_RecomputesFromNonVoided(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "50000")
	v2 := h.newVehicle(t, "5678TBB", "80000.00")
	v3 := h.newVehicle(t, "9012TCC", "20000.00")

	h.pay(t, h.collector, h.vehicle, "120000") // change 20 000
	voided := h.pay(t, h.collector, v2, "80000")
	h.pay(t, h.collector, v3, "25000") // change 5 000

	_, err := h.payments.VoidTransaction(h.ctx, voided.ID, h.admin.ID, "wrong vehicle")
	require.NoError(t, err)

	totals, err := h.sessions.CalculateSessionTotals(h.ctx, cs.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), totals.TransactionCount)
	assert.True(t, totals.TotalTax.Equal(dec("120000")))
	assert.True(t, totals.TotalCashReceived.Equal(dec("145000")))
	assert.True(t, totals.TotalChangeGiven.Equal(dec("25000")))
	assert.True(t, totals.NetCash.Equal(dec("120000")))
	assert.True(t, totals.ExpectedBalance.Equal(dec("170000")), "opening + Σ(tendered − change)")
	assert.True(t, totals.TotalCommission.Equal(dec("2400")))

	stored, err := h.sessions.GetSession(h.ctx, cs.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalCommission.Equal(totals.TotalCommission), "running commission total matches recomputation")
}

func TestCheckSessionTimeout(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "0")

	timedOut, err := h.sessions.CheckSessionTimeout(h.ctx, cs)
	require.NoError(t, err)
	assert.False(t, timedOut)

	h.clock.Advance(12 * time.Hour)
	timedOut, err = h.sessions.CheckSessionTimeout(h.ctx, cs)
	require.NoError(t, err)
	assert.False(t, timedOut, "exactly at the limit is not yet exceeded")

	h.clock.Advance(time.Minute)
	timedOut, err = h.sessions.CheckSessionTimeout(h.ctx, cs)
	require.NoError(t, err)
	assert.True(t, timedOut)

	list, err := h.sessions.ListTimedOutSessions(h.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cs.ID, list[0].ID)
}

func TestGetActiveSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.sessions.GetActiveSession(h.ctx, h.collector.ID)
	assert.ErrorIs(t, err, service.ErrNoActiveSession)

	cs := h.open(t, h.collector, "0")
	got, err := h.sessions.GetActiveSession(h.ctx, h.collector.ID)
	require.NoError(t, err)
	assert.Equal(t, cs.ID, got.ID)

	list, err := h.sessions.ListSessions(h.ctx, dto.SessionFilter{CollectorID: &h.collector.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSessionLifecycle_IsAudited(t *testing.T) {
	h := newHarness(t)
	cs := h.open(t, h.collector, "0")
	_, _, err := h.sessions.CloseSession(h.ctx, cs.ID, dec("5000"), h.collector.ID, "extra coins")
	require.NoError(t, err)
	_, err = h.sessions.ApproveSessionClosure(h.ctx, cs.ID, h.admin.ID, "ok")
	require.NoError(t, err)

	assert.Equal(t, []string{
		model.ActionSessionOpen,
		model.ActionSessionClose,
		model.ActionReconciliation,
	}, h.auditActions(t))
}
