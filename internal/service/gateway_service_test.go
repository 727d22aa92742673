package service_test

import (
	"testing"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayReq(v *model.Vehicle, method, ref string) dto.GatewayConfirmationRequest {
	return dto.GatewayConfirmationRequest{
		VehicleID: v.ID.String(),
		TaxYear:   2026,
		Amount:    dec("100000.00"),
		Method:    method,
		Reference: ref,
	}
}

func TestConfirmGatewayPayment_IssuesArtifact(t *testing.T) {
	h := newHarness(t)

	artifact, err := h.gateway.ConfirmGatewayPayment(h.ctx, gatewayReq(h.vehicle, model.MethodMVola, "MV-001"))
	require.NoError(t, err)
	assert.Len(t, artifact.Code, 20)

	p, err := h.store.Payments().FindByID(h.ctx, nil, artifact.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, p.Status)
	assert.Equal(t, "MV-001", p.Reference)
	require.NotNil(t, p.PaidAt)

	assert.Equal(t, []string{service.NotifyPaymentConfirmed}, h.notifier.kinds())
	assert.Equal(t, *h.vehicle.OwnerID, h.notifier.sent[0].UserID)
	assert.Len(t, h.receipts.ids, 1)
	assert.Contains(t, h.auditActions(t), model.ActionGatewayPayment)
}

func TestConfirmGatewayPayment_ReplayIsIdempotent(t *testing.T) {
	h := newHarness(t)
	req := gatewayReq(h.vehicle, model.MethodStripe, "pi_123")

	first, err := h.gateway.ConfirmGatewayPayment(h.ctx, req)
	require.NoError(t, err)
	second, err := h.gateway.ConfirmGatewayPayment(h.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, h.notifier.sent, 1, "no second notification")
	assert.Len(t, h.receipts.ids, 1)
}

func TestConfirmGatewayPayment_OneActivePaymentAcrossChannels(t *testing.T) {
	h := newHarness(t)
	_, err := h.gateway.ConfirmGatewayPayment(h.ctx, gatewayReq(h.vehicle, model.MethodMVola, "MV-001"))
	require.NoError(t, err)

	_, err = h.gateway.ConfirmGatewayPayment(h.ctx, gatewayReq(h.vehicle, model.MethodStripe, "pi_999"))
	assert.ErrorIs(t, err, service.ErrDuplicatePayment)

	h.open(t, h.collector, "0")
	_, err = h.payments.CreateCashPayment(h.ctx, h.collector.ID, h.payReq(h.vehicle, "100000"))
	assert.ErrorIs(t, err, service.ErrDuplicatePayment)
}

func TestConfirmGatewayPayment_AfterCashPayment(t *testing.T) {
	h := newHarness(t)
	h.open(t, h.collector, "0")
	h.pay(t, h.collector, h.vehicle, "100000")

	_, err := h.gateway.ConfirmGatewayPayment(h.ctx, gatewayReq(h.vehicle, model.MethodMVola, "MV-002"))
	assert.ErrorIs(t, err, service.ErrDuplicatePayment)
}

func TestConfirmGatewayPayment_Validation(t *testing.T) {
	h := newHarness(t)

	req := gatewayReq(h.vehicle, model.MethodMVola, "MV-1")
	req.VehicleID = "nope"
	_, err := h.gateway.ConfirmGatewayPayment(h.ctx, req)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	req = gatewayReq(h.vehicle, model.MethodMVola, "MV-1")
	req.Amount = dec("0")
	_, err = h.gateway.ConfirmGatewayPayment(h.ctx, req)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	other := *h.vehicle
	other.ID[0] ^= 0xff
	_, err = h.gateway.ConfirmGatewayPayment(h.ctx, gatewayReq(&other, model.MethodMVola, "MV-1"))
	assert.ErrorIs(t, err, service.ErrVehicleNotFound)
}
