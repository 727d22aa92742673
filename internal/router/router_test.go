package router_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository/memory"
	"github.com/aiaimg/taxcollecotr-sub000/internal/router"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "router-test-secret"

type fixedTax struct{ amounts map[uuid.UUID]decimal.Decimal }

func (f fixedTax) CalculateTax(_ context.Context, v *model.Vehicle, _ int) (*dto.TaxAssessment, error) {
	return &dto.TaxAssessment{Amount: f.amounts[v.ID], Currency: "MGA"}, nil
}

type api struct {
	t      *testing.T
	engine *gin.Engine
	store  *memory.Store
	auth   service.AuthService

	collector, collector2, supervisor, admin string // bearer tokens
	collectorID                              uuid.UUID
	vehicle, bigVehicle                      *model.Vehicle
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          jwtSecret,
		JWTExpirationHours: 1,
		VerifyBaseURL:      "https://verify.example.mg/v",
	}
	defaults := config.CashDefaults{
		CommissionRate:            decimal.RequireFromString("2.00"),
		DualVerificationThreshold: decimal.RequireFromString("500000.00"),
		ReconciliationTolerance:   decimal.RequireFromString("1000.00"),
		SessionTimeoutHours:       12,
		VoidTimeLimitMinutes:      30,
	}

	s := memory.New()
	tax := fixedTax{amounts: map[uuid.UUID]decimal.Decimal{}}
	clock := service.SystemClock()

	audit := service.NewAuditService(s.Audit(), infra.NoopCipher{}, clock)
	cfgSvc := service.NewSystemConfigService(s, s.SystemConfig(), audit, defaults, nil)
	commission := service.NewCommissionService(s, s.Commissions(), s.Sessions(), s.Users(), cfgSvc, audit, clock, time.UTC)
	success := service.NewPaymentSuccessService(s, s.Payments(), s.Artifacts(), nil, nil, clock)
	svcs := router.Services{
		Auth:       service.NewAuthService(s.Users(), cfg),
		Audit:      audit,
		Config:     cfgSvc,
		Commission: commission,
		Sessions:   service.NewCashSessionService(s, s.Sessions(), s.Transactions(), cfgSvc, audit, nil, clock),
		Payments: service.NewCashPaymentService(s, service.PaymentRepos{
			Sessions:     s.Sessions(),
			Transactions: s.Transactions(),
			Payments:     s.Payments(),
			Vehicles:     s.Vehicles(),
			Users:        s.Users(),
			Artifacts:    s.Artifacts(),
		}, commission, cfgSvc, audit, tax, success, nil, clock),
		Gateway:        service.NewGatewayPaymentService(s, s.Payments(), s.Vehicles(), audit, success),
		Reconciliation: service.NewReconciliationService(s, s.Sessions(), s.Transactions(), cfgSvc, audit, clock, time.UTC),
	}

	a := &api{
		t:      t,
		engine: router.New(cfg, router.Deps{RateCounter: middleware.NewMemoryCounter(), Location: time.UTC}, svcs),
		store:  s,
		auth:   svcs.Auth,
	}
	var collector *model.User
	collector, a.collector = a.user("collector1", model.RoleCollector)
	a.collectorID = collector.ID
	_, a.collector2 = a.user("collector2", model.RoleCollector)
	_, a.supervisor = a.user("supervisor1", model.RoleSupervisor)
	_, a.admin = a.user("admin1", model.RoleAdmin)

	a.vehicle = a.newVehicle("1234TAA", "100000.00", tax)
	a.bigVehicle = a.newVehicle("9999TBB", "600000.00", tax)
	return a
}

func (a *api) user(username, role string) (*model.User, string) {
	a.t.Helper()
	u := &model.User{Username: username, FullName: username, PasswordHash: "x", Role: role, Active: true}
	require.NoError(a.t, a.store.Users().Create(context.Background(), u))
	claims := middleware.JWTClaims{
		UserID:   u.ID.String(),
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(a.t, err)
	return u, token
}

func (a *api) newVehicle(plate, amount string, tax fixedTax) *model.Vehicle {
	a.t.Helper()
	owner := uuid.New()
	v := &model.Vehicle{Plate: plate, Category: "car", FirstUseYear: 2019, OwnerName: "Rakoto", OwnerID: &owner}
	require.NoError(a.t, a.store.Vehicles().Create(context.Background(), v))
	tax.amounts[v.ID] = decimal.RequireFromString(amount)
	return v
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func (a *api) payment(v *model.Vehicle, tendered string) map[string]any {
	return map[string]any{
		"vehicle_id":      v.ID.String(),
		"tax_year":        2026,
		"customer_name":   "Rasoa Rabe",
		"amount_tendered": tendered,
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestAuthRequired(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/v1/cash/sessions/active", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLogin(t *testing.T) {
	a := newAPI(t)
	_, err := a.auth.CreateUser(context.Background(), service.NewUser{
		Username: "agent7", FullName: "Agent Seven", Password: "s3cret-pass", Role: model.RoleCollector,
	})
	require.NoError(t, err)

	w := a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "agent7", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decode[errorBody](t, w).Code)

	w = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "agent7", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[dto.LoginResponse](t, w)
	assert.Equal(t, model.RoleCollector, login.User.Role)

	// The issued token is accepted by the cash API.
	w = a.do(http.MethodGet, "/v1/cash/sessions/active", login.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_active_session", decode[errorBody](t, w).Code)
}

func TestRequestValidation(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/v1/cash/sessions", a.collector, "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/v1/cash/sessions", a.collector, map[string]any{"opening_balance": "-5"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[errorBody](t, w).Fields, "OpeningBalance")

	w = a.do(http.MethodGet, "/v1/cash/sessions/not-a-uuid", a.collector, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoleEnforcement(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/cash/audit/verify", a.collector, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/cash/audit/verify", a.supervisor, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/cash/sessions", a.admin, map[string]any{"opening_balance": "0"}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, "/v1/cash/config", a.supervisor, map[string]any{}).Code)

	// Collectors cannot read each other's sessions.
	w := a.do(http.MethodPost, "/v1/cash/sessions", a.collector, map[string]any{"opening_balance": "1000"})
	require.Equal(t, http.StatusCreated, w.Code)
	sess := decode[dto.SessionResponse](t, w)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/cash/sessions/"+sess.ID, a.collector2, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/cash/sessions/"+sess.ID, a.supervisor, nil).Code)
}

func TestDomainErrorMapping(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/v1/cash/transactions", a.collector, a.payment(a.vehicle, "100000"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no_active_session", decode[errorBody](t, w).Code)

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/cash/sessions", a.collector, map[string]any{"opening_balance": "0"}).Code)
	w = a.do(http.MethodPost, "/v1/cash/sessions", a.collector, map[string]any{"opening_balance": "0"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "session_already_open", decode[errorBody](t, w).Code)

	w = a.do(http.MethodPost, "/v1/cash/transactions", a.collector, a.payment(a.vehicle, "90000"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_funds", decode[errorBody](t, w).Code)

	w = a.do(http.MethodGet, "/v1/cash/transactions/"+uuid.NewString(), a.supervisor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCashDayLifecycle(t *testing.T) {
	a := newAPI(t)

	// Open, collect, inspect.
	w := a.do(http.MethodPost, "/v1/cash/sessions", a.collector, map[string]any{"opening_balance": "50000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := decode[dto.SessionResponse](t, w)

	w = a.do(http.MethodPost, "/v1/cash/transactions", a.collector, a.payment(a.vehicle, "120000"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	txn := decode[dto.TransactionResponse](t, w)
	assert.True(t, txn.ChangeGiven.Equal(decimal.NewFromInt(20000)))
	assert.True(t, txn.CommissionAmount.Equal(decimal.NewFromInt(2000)))
	assert.False(t, txn.RequiresApproval)

	w = a.do(http.MethodGet, "/v1/cash/sessions/"+sess.ID+"/totals", a.collector, nil)
	require.Equal(t, http.StatusOK, w.Code)
	totals := decode[dto.SessionTotals](t, w)
	assert.True(t, totals.ExpectedBalance.Equal(decimal.NewFromInt(150000)))

	w = a.do(http.MethodGet, "/v1/cash/sessions/"+sess.ID+"/transactions", a.collector, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Data []dto.TransactionResponse `json:"data"`
	}](t, w).Data, 1)

	// Close balanced, then reconcile the day.
	w = a.do(http.MethodPost, "/v1/cash/sessions/"+sess.ID+"/close", a.collector, map[string]any{"closing_balance": "150000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	closed := decode[dto.CloseSessionResponse](t, w)
	assert.False(t, closed.RequiresReview)
	assert.True(t, closed.Discrepancy.IsZero())

	day := sess.OpenedAt.UTC().Format("2006-01-02")
	w = a.do(http.MethodGet, "/v1/cash/reconciliation/daily?date="+day, a.supervisor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[dto.DailyReport](t, w)
	assert.Equal(t, 1, report.ClosedCount)

	w = a.do(http.MethodPost, "/v1/cash/reconciliation/reconcile", a.admin, map[string]any{"date": day, "physical_count": "150000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[dto.ReconcileDayResult](t, w)
	assert.True(t, result.Discrepancy.IsZero())
	assert.Equal(t, []string{sess.ID}, result.ReconciledSessions)

	// Commission report for the collector's own account.
	w = a.do(http.MethodGet, "/v1/cash/commissions/collectors/me", a.collector, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rep := decode[dto.CollectorCommissionReport](t, w)
	assert.True(t, rep.Summary.Earned.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/cash/commissions/collectors/"+a.collectorID.String(), a.collector2, nil).Code)

	// The chain verifies and exports.
	w = a.do(http.MethodGet, "/v1/cash/audit/verify", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	verification := decode[dto.AuditVerification](t, w)
	assert.True(t, verification.Valid)
	assert.GreaterOrEqual(t, verification.Checked, 4)

	w = a.do(http.MethodGet, "/v1/cash/audit/export?format=jsonl", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	lines := 0
	sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, verification.Checked, lines)

	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodGet, "/v1/cash/audit/export?format=xml", a.admin, nil).Code)
}

func TestDualControl(t *testing.T) {
	a := newAPI(t)
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/cash/sessions", a.collector, map[string]any{"opening_balance": "0"}).Code)

	w := a.do(http.MethodPost, "/v1/cash/transactions", a.collector, a.payment(a.bigVehicle, "600000"))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	txn := decode[dto.TransactionResponse](t, w)
	assert.True(t, txn.RequiresApproval)

	path := "/v1/cash/transactions/" + txn.ID + "/approve"
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, path, a.collector, map[string]any{}).Code)

	w = a.do(http.MethodPost, path, a.supervisor, map[string]any{"notes": "counted twice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, decode[dto.TransactionResponse](t, w).ApproverID)

	w = a.do(http.MethodPost, path, a.supervisor, map[string]any{})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVoidRequiresAdmin(t *testing.T) {
	a := newAPI(t)
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/cash/sessions", a.collector, map[string]any{"opening_balance": "0"}).Code)
	w := a.do(http.MethodPost, "/v1/cash/transactions", a.collector, a.payment(a.vehicle, "100000"))
	require.Equal(t, http.StatusCreated, w.Code)
	txn := decode[dto.TransactionResponse](t, w)

	path := "/v1/cash/transactions/" + txn.ID + "/void"
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, path, a.supervisor, map[string]any{"reason": "wrong plate"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodPost, path, a.admin, map[string]any{}).Code)

	w = a.do(http.MethodPost, path, a.admin, map[string]any{"reason": "wrong plate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[dto.TransactionResponse](t, w).Voided)
}

func TestConfigAndGateway(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPut, "/v1/cash/config", a.admin, map[string]any{"default_commission_rate": "3.00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[dto.SystemConfigResponse](t, w).DefaultCommissionRate.Equal(decimal.NewFromInt(3)))

	body := map[string]any{
		"vehicle_id": a.vehicle.ID.String(),
		"tax_year":   2026,
		"amount":     "100000",
		"method":     "mvola",
		"reference":  "MV-123",
	}
	w = a.do(http.MethodPost, "/v1/cash/gateway/confirm", a.admin, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	artifact := decode[dto.ArtifactResponse](t, w)
	assert.Equal(t, "https://verify.example.mg/v/"+artifact.Code, artifact.VerifyURL)

	// Replays return the same artifact.
	w = a.do(http.MethodPost, "/v1/cash/gateway/confirm", a.admin, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, artifact.ID, decode[dto.ArtifactResponse](t, w).ID)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	a.do(http.MethodGet, "/v1/cash/sessions/active", a.collector, nil)

	w := a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
