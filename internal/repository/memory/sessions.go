package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type sessionStore struct{ s *Store }

var _ repository.CashSessionRepository = (*sessionStore)(nil)

func (r *sessionStore) Create(_ context.Context, _ *gorm.DB, cs *model.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	if _, ok := r.s.t.sessions[cs.ID]; ok {
		return repository.ErrDuplicate
	}
	// Mirrors uq_cash_sessions_open_collector.
	if cs.Status == model.SessionOpen {
		for _, other := range r.s.t.sessions {
			if other.CollectorID == cs.CollectorID && other.Status == model.SessionOpen {
				return repository.ErrDuplicate
			}
		}
	}
	stamp(nil, &cs.UpdatedAt)
	r.s.t.sessions[cs.ID] = *cs
	return nil
}

func (r *sessionStore) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cs, ok := r.s.t.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cs, nil
}

func (r *sessionStore) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *sessionStore) ListOpenByCollector(ctx context.Context, tx *gorm.DB, collectorID uuid.UUID) ([]model.CashSession, error) {
	return r.List(ctx, tx, dto.SessionFilter{CollectorID: &collectorID, Statuses: []string{model.SessionOpen}})
}

func (r *sessionStore) Update(_ context.Context, _ *gorm.DB, cs *model.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.sessions[cs.ID]; !ok {
		return repository.ErrNotFound
	}
	stamp(nil, &cs.UpdatedAt)
	r.s.t.sessions[cs.ID] = *cs
	return nil
}

func (r *sessionStore) AddCommission(_ context.Context, _ *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cs, ok := r.s.t.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	cs.TotalCommission = cs.TotalCommission.Add(delta)
	r.s.t.sessions[id] = cs
	return nil
}

func (r *sessionStore) List(_ context.Context, _ *gorm.DB, f dto.SessionFilter) ([]model.CashSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.CashSession
	for _, cs := range r.s.t.sessions {
		if f.CollectorID != nil && cs.CollectorID != *f.CollectorID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, cs.Status) {
			continue
		}
		if f.OpenedFrom != nil && cs.OpenedAt.Before(*f.OpenedFrom) {
			continue
		}
		if f.OpenedTo != nil && !cs.OpenedAt.Before(*f.OpenedTo) {
			continue
		}
		if f.NonZeroDiscrepancy && (cs.Discrepancy == nil || cs.Discrepancy.IsZero()) {
			continue
		}
		if f.MinAbsDiscrepancy != nil && (cs.Discrepancy == nil || cs.Discrepancy.Abs().LessThan(*f.MinAbsDiscrepancy)) {
			continue
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
