package memory

import (
	"context"
	"sort"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type paymentStore struct{ s *Store }

var _ repository.TaxPaymentRepository = (*paymentStore)(nil)

func (r *paymentStore) Create(_ context.Context, _ *gorm.DB, p *model.TaxPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	// Mirrors uq_tax_payments_vehicle_year_active.
	for _, other := range r.s.t.payments {
		if other.ID == p.ID {
			return repository.ErrDuplicate
		}
		if p.Status != model.PaymentCancelled && other.Status != model.PaymentCancelled &&
			other.VehicleID == p.VehicleID && other.TaxYear == p.TaxYear {
			return repository.ErrDuplicate
		}
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.s.t.payments[p.ID] = *p
	return nil
}

func (r *paymentStore) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.TaxPayment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.t.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *paymentStore) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TaxPayment, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *paymentStore) ExistsActive(_ context.Context, _ *gorm.DB, vehicleID uuid.UUID, taxYear int) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.t.payments {
		if p.VehicleID == vehicleID && p.TaxYear == taxYear && p.Status != model.PaymentCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (r *paymentStore) FindActive(_ context.Context, _ *gorm.DB, vehicleID uuid.UUID, taxYear int) (*model.TaxPayment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.t.payments {
		if p.VehicleID == vehicleID && p.TaxYear == taxYear && p.Status != model.PaymentCancelled {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *paymentStore) Update(_ context.Context, _ *gorm.DB, p *model.TaxPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.payments[p.ID]; !ok {
		return repository.ErrNotFound
	}
	stamp(nil, &p.UpdatedAt)
	r.s.t.payments[p.ID] = *p
	return nil
}

func (r *paymentStore) ListPaidWithoutArtifact(_ context.Context, paidBefore time.Time, limit int) ([]model.TaxPayment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.TaxPayment
	for _, p := range r.s.t.payments {
		if p.Status != model.PaymentPaid || p.PaidAt == nil || !p.PaidAt.Before(paidBefore) {
			continue
		}
		covered := false
		for _, a := range r.s.t.artifacts {
			if a.RevokedAt == nil && a.VehicleID == p.VehicleID && a.TaxYear == p.TaxYear {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(*out[j].PaidAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
