package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxClient_CalculateTax(t *testing.T) {
	var got taxAssessRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tax/assess", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"amount":"100000.004","is_exempt":false,"currency":"MGA"}`))
	}))
	defer srv.Close()

	c := NewTaxClient(srv.URL, time.Second, nil, nil, 0)
	v := &model.Vehicle{ID: uuid.New(), Plate: "1234TAA", Category: "car", EngineCC: 1600, FirstUseYear: 2018}

	a, err := c.CalculateTax(context.Background(), v, 2026)
	require.NoError(t, err)
	assert.True(t, a.Amount.Equal(decimal.RequireFromString("100000.00")))
	assert.Equal(t, "MGA", a.Currency)
	assert.Equal(t, "1234TAA", got.Plate)
	assert.Equal(t, 2026, got.TaxYear)
}

func TestTaxClient_ExemptSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewTaxClient(srv.URL, time.Second, nil, nil, 0)
	a, err := c.CalculateTax(context.Background(), &model.Vehicle{ID: uuid.New(), TaxExempt: true}, 2026)
	require.NoError(t, err)
	assert.True(t, a.IsExempt)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestTaxClient_BreakerOpensOnFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := NewBreaker(BreakerSettings{Name: "tax_test", MaxFailures: 2, Cooldown: time.Hour})
	c := NewTaxClient(srv.URL, time.Second, cb, nil, 0)
	v := &model.Vehicle{ID: uuid.New()}

	for i := 0; i < 2; i++ {
		_, err := c.CalculateTax(context.Background(), v, 2026)
		assert.Error(t, err)
	}
	_, err := c.CalculateTax(context.Background(), v, 2026)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, BreakerOpen.String(), c.BreakerState())
}
