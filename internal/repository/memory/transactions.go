package memory

import (
	"context"
	"sort"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type transactionStore struct{ s *Store }

var _ repository.CashTransactionRepository = (*transactionStore)(nil)

func (r *transactionStore) Create(_ context.Context, _ *gorm.DB, t *model.CashTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	for _, other := range r.s.t.txns {
		if other.ID == t.ID || other.PaymentID == t.PaymentID {
			return repository.ErrDuplicate
		}
	}
	r.s.t.txns[t.ID] = *t
	return nil
}

func (r *transactionStore) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.CashTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.t.txns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *transactionStore) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashTransaction, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *transactionStore) Update(_ context.Context, _ *gorm.DB, t *model.CashTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.txns[t.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.t.txns[t.ID] = *t
	return nil
}

func (r *transactionStore) ListBySession(_ context.Context, _ *gorm.DB, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.CashTransaction
	for _, t := range r.s.t.txns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionTime.Equal(out[j].TransactionTime) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].TransactionTime.Before(out[j].TransactionTime)
	})
	return out, nil
}

func (r *transactionStore) AggregateBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*repository.TransactionAggregate, error) {
	txns, err := r.ListBySession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	var agg repository.TransactionAggregate
	for _, t := range txns {
		if t.Voided {
			continue
		}
		agg.Count++
		agg.TaxTotal = agg.TaxTotal.Add(t.TaxAmount)
		agg.TenderedTotal = agg.TenderedTotal.Add(t.AmountTendered)
		agg.ChangeTotal = agg.ChangeTotal.Add(t.ChangeGiven)
		agg.CommissionTotal = agg.CommissionTotal.Add(t.CommissionAmount)
		if t.RequiresApproval && t.ApproverID == nil {
			agg.PendingApproval++
		}
	}
	return &agg, nil
}
