// Package memory is a process-local implementation of the repository
// interfaces. It backs unit tests and single-node demos; transactions are
// serialised and rolled back by snapshot.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type tables struct {
	sessions    map[uuid.UUID]model.CashSession
	txns        map[uuid.UUID]model.CashTransaction
	commissions map[uuid.UUID]model.CommissionRecord
	audit       []model.CashAuditLogEntry
	tail        model.AuditChainTail
	config      *model.CashSystemConfig
	payments    map[uuid.UUID]model.TaxPayment
	vehicles    map[uuid.UUID]model.Vehicle
	artifacts   map[uuid.UUID]model.VerificationArtifact
	users       map[uuid.UUID]model.User
}

func newTables() tables {
	return tables{
		sessions:    make(map[uuid.UUID]model.CashSession),
		txns:        make(map[uuid.UUID]model.CashTransaction),
		commissions: make(map[uuid.UUID]model.CommissionRecord),
		tail:        model.AuditChainTail{ID: 1},
		payments:    make(map[uuid.UUID]model.TaxPayment),
		vehicles:    make(map[uuid.UUID]model.Vehicle),
		artifacts:   make(map[uuid.UUID]model.VerificationArtifact),
		users:       make(map[uuid.UUID]model.User),
	}
}

func (t tables) clone() tables {
	c := tables{
		sessions:    cloneMap(t.sessions),
		txns:        cloneMap(t.txns),
		commissions: cloneMap(t.commissions),
		audit:       append([]model.CashAuditLogEntry(nil), t.audit...),
		tail:        t.tail,
		payments:    cloneMap(t.payments),
		vehicles:    cloneMap(t.vehicles),
		artifacts:   cloneMap(t.artifacts),
		users:       cloneMap(t.users),
	}
	if t.config != nil {
		cfg := *t.config
		c.config = &cfg
	}
	return c
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds every table. mu guards the data; txMu serialises Transaction
// calls, so a transaction observes no concurrent writers.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	t    tables
}

func New() *Store {
	return &Store{t: newTables()}
}

var _ repository.Transactor = (*Store)(nil)

// Transaction runs fn with a nil tx handle. Any error restores the snapshot
// taken before fn ran. Transactions must not nest.
func (s *Store) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.t.clone()
	s.mu.RUnlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.t = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

// ── Repository views ──────────────────────────────────────────────────────────

func (s *Store) Sessions() repository.CashSessionRepository { return &sessionStore{s} }

func (s *Store) Transactions() repository.CashTransactionRepository { return &transactionStore{s} }

func (s *Store) Commissions() repository.CommissionRepository { return &commissionStore{s} }

func (s *Store) Audit() repository.AuditRepository { return &auditStore{s} }

func (s *Store) SystemConfig() repository.SystemConfigRepository { return &configStore{s} }

func (s *Store) Payments() repository.TaxPaymentRepository { return &paymentStore{s} }

func (s *Store) Vehicles() repository.VehicleRepository { return &vehicleStore{s} }

func (s *Store) Artifacts() repository.VerificationArtifactRepository { return &artifactStore{s} }

func (s *Store) Users() repository.UserRepository { return &userStore{s} }

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}
