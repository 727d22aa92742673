package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository/memory"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// eat is the business zone used by the tests (UTC+3, no DST).
var eat = time.FixedZone("EAT", 3*3600)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── Clock ─────────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ── Collaborator stubs ────────────────────────────────────────────────────────

type stubTax struct {
	mu      sync.Mutex
	amounts map[uuid.UUID]decimal.Decimal
	exempt  bool
	err     error
}

func (s *stubTax) CalculateTax(_ context.Context, v *model.Vehicle, _ int) (*dto.TaxAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &dto.TaxAssessment{Amount: s.amounts[v.ID], IsExempt: s.exempt, Currency: "MGA"}, nil
}

type sentNotification struct {
	UserID uuid.UUID
	Kind   string
	Data   map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Data: data})
	return n.err
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.Kind
	}
	return out
}

type recordingReceipts struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingReceipts) EnqueueReceipt(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

// testCipher is a reversible stand-in for AES-GCM: base64 behind a prefix.
type testCipher struct{ failEncrypt bool }

const testCipherPrefix = "enc:test:"

func (testCipher) Name() string { return "test" }

func (c testCipher) Encrypt(plain string) (string, error) {
	if c.failEncrypt {
		return "", errors.New("cipher offline")
	}
	return testCipherPrefix + base64.StdEncoding.EncodeToString([]byte(plain)), nil
}

func (testCipher) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, testCipherPrefix) {
		return "", errors.New("not encrypted by this cipher")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, testCipherPrefix))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ── Harness ───────────────────────────────────────────────────────────────────

type harness struct {
	ctx      context.Context
	store    *memory.Store
	clock    *fakeClock
	tax      *stubTax
	notifier *recordingNotifier
	receipts *recordingReceipts

	audit      service.AuditService
	config     service.SystemConfigService
	commission service.CommissionService
	sessions   service.CashSessionService
	payments   service.CashPaymentService
	success    service.PaymentSuccessService
	gateway    service.GatewayPaymentService
	recon      service.ReconciliationService

	collector  *model.User
	collector2 *model.User
	supervisor *model.User
	admin      *model.User
	vehicle    *model.Vehicle
}

func defaultCashDefaults() config.CashDefaults {
	return config.CashDefaults{
		CommissionRate:            dec("2.00"),
		DualVerificationThreshold: dec("500000.00"),
		ReconciliationTolerance:   dec("1000.00"),
		SessionTimeoutHours:       12,
		VoidTimeLimitMinutes:      30,
	}
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithCipher(t, testCipher{})
}

func newHarnessWithCipher(t *testing.T, cipher service.FieldCipher) *harness {
	t.Helper()
	h := &harness{
		ctx:      context.Background(),
		store:    memory.New(),
		clock:    &fakeClock{now: time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)}, // 08:00 EAT
		tax:      &stubTax{amounts: map[uuid.UUID]decimal.Decimal{}},
		notifier: &recordingNotifier{},
		receipts: &recordingReceipts{},
	}
	s := h.store

	h.audit = service.NewAuditService(s.Audit(), cipher, h.clock)
	h.config = service.NewSystemConfigService(s, s.SystemConfig(), h.audit, defaultCashDefaults(), nil)
	h.commission = service.NewCommissionService(s, s.Commissions(), s.Sessions(), s.Users(), h.config, h.audit, h.clock, eat)
	h.sessions = service.NewCashSessionService(s, s.Sessions(), s.Transactions(), h.config, h.audit, h.notifier, h.clock)
	h.success = service.NewPaymentSuccessService(s, s.Payments(), s.Artifacts(), h.notifier, h.receipts, h.clock)
	h.payments = service.NewCashPaymentService(s, service.PaymentRepos{
		Sessions:     s.Sessions(),
		Transactions: s.Transactions(),
		Payments:     s.Payments(),
		Vehicles:     s.Vehicles(),
		Users:        s.Users(),
		Artifacts:    s.Artifacts(),
	}, h.commission, h.config, h.audit, h.tax, h.success, h.notifier, h.clock)
	h.gateway = service.NewGatewayPaymentService(s, s.Payments(), s.Vehicles(), h.audit, h.success)
	h.recon = service.NewReconciliationService(s, s.Sessions(), s.Transactions(), h.config, h.audit, h.clock, eat)

	h.collector = h.user(t, "collector1", model.RoleCollector)
	h.collector2 = h.user(t, "collector2", model.RoleCollector)
	h.supervisor = h.user(t, "supervisor1", model.RoleSupervisor)
	h.admin = h.user(t, "admin1", model.RoleAdmin)
	h.vehicle = h.newVehicle(t, "1234TAA", "100000.00")
	return h
}

// withSuccessHandler rebuilds the cash payment service around handler.
func (h *harness) withSuccessHandler(handler service.PaymentSuccessHandler) {
	s := h.store
	h.payments = service.NewCashPaymentService(s, service.PaymentRepos{
		Sessions:     s.Sessions(),
		Transactions: s.Transactions(),
		Payments:     s.Payments(),
		Vehicles:     s.Vehicles(),
		Users:        s.Users(),
		Artifacts:    s.Artifacts(),
	}, h.commission, h.config, h.audit, h.tax, handler, h.notifier, h.clock)
}

func (h *harness) user(t *testing.T, username, role string) *model.User {
	t.Helper()
	u := &model.User{Username: username, FullName: username, PasswordHash: "x", Role: role, Active: true}
	require.NoError(t, h.store.Users().Create(h.ctx, u))
	return u
}

func (h *harness) newVehicle(t *testing.T, plate, tax string) *model.Vehicle {
	t.Helper()
	owner := uuid.New()
	v := &model.Vehicle{Plate: plate, Category: "car", FirstUseYear: 2018, OwnerName: "Rakoto", OwnerID: &owner}
	require.NoError(t, h.store.Vehicles().Create(h.ctx, v))
	h.tax.mu.Lock()
	h.tax.amounts[v.ID] = dec(tax)
	h.tax.mu.Unlock()
	return v
}

func (h *harness) open(t *testing.T, collector *model.User, opening string) *model.CashSession {
	t.Helper()
	cs, err := h.sessions.OpenSession(h.ctx, collector.ID, dec(opening))
	require.NoError(t, err)
	return cs
}

func (h *harness) pay(t *testing.T, collector *model.User, v *model.Vehicle, tendered string) *model.CashTransaction {
	t.Helper()
	txn, err := h.payments.CreateCashPayment(h.ctx, collector.ID, h.payReq(v, tendered))
	require.NoError(t, err)
	return txn
}

func (h *harness) payReq(v *model.Vehicle, tendered string) dto.CreateCashPaymentRequest {
	return dto.CreateCashPaymentRequest{
		VehicleID:      v.ID.String(),
		TaxYear:        2026,
		CustomerName:   "Rasoa Rabe",
		CustomerPhone:  "+261340000000",
		AmountTendered: dec(tendered),
	}
}

// activeArtifact returns the unrevoked artifact of a vehicle for 2026.
func (h *harness) activeArtifact(v *model.Vehicle) (*model.VerificationArtifact, error) {
	return h.store.Artifacts().FindActive(h.ctx, nil, v.ID, 2026)
}

func auditFilterForTxn(id uuid.UUID) dto.AuditFilter {
	return dto.AuditFilter{TransactionID: &id}
}

func (h *harness) auditActions(t *testing.T) []string {
	t.Helper()
	views, err := h.audit.GetAuditTrail(h.ctx, dto.AuditFilter{}, false)
	require.NoError(t, err)
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Action
	}
	return out
}
