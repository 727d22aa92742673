package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type commissionStore struct{ s *Store }

var _ repository.CommissionRepository = (*commissionStore)(nil)

func (r *commissionStore) Create(_ context.Context, _ *gorm.DB, c *model.CommissionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	for _, other := range r.s.t.commissions {
		if other.ID == c.ID || other.TransactionID == c.TransactionID {
			return repository.ErrDuplicate
		}
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	r.s.t.commissions[c.ID] = *c
	return nil
}

func (r *commissionStore) FindByTransactionID(_ context.Context, _ *gorm.DB, transactionID uuid.UUID) (*model.CommissionRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.t.commissions {
		if c.TransactionID == transactionID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *commissionStore) Update(_ context.Context, _ *gorm.DB, c *model.CommissionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.commissions[c.ID]; !ok {
		return repository.ErrNotFound
	}
	stamp(nil, &c.UpdatedAt)
	r.s.t.commissions[c.ID] = *c
	return nil
}

func (r *commissionStore) MarkPaid(_ context.Context, _ *gorm.DB, ids []uuid.UUID, paidBy uuid.UUID, paidAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		c, ok := r.s.t.commissions[id]
		if !ok || c.Status != model.CommissionPending {
			continue
		}
		by, at := paidBy, paidAt
		c.Status = model.CommissionPaid
		c.PaidByID = &by
		c.PaidAt = &at
		stamp(nil, &c.UpdatedAt)
		r.s.t.commissions[id] = c
		n++
	}
	return n, nil
}

func (r *commissionStore) List(_ context.Context, _ *gorm.DB, f dto.CommissionFilter) ([]model.CommissionRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.CommissionRecord
	for _, c := range r.s.t.commissions {
		if f.CollectorID != nil && c.CollectorID != *f.CollectorID {
			continue
		}
		if f.SessionID != nil && c.SessionID != *f.SessionID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, c.Status) {
			continue
		}
		if f.From != nil && c.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !c.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
