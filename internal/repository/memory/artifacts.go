package memory

import (
	"context"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type artifactStore struct{ s *Store }

var _ repository.VerificationArtifactRepository = (*artifactStore)(nil)

func (r *artifactStore) Create(_ context.Context, _ *gorm.DB, a *model.VerificationArtifact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	// Mirrors uq_verification_artifacts_vehicle_year_active.
	for _, other := range r.s.t.artifacts {
		if other.ID == a.ID || other.Code == a.Code {
			return repository.ErrDuplicate
		}
		if other.RevokedAt == nil && other.VehicleID == a.VehicleID && other.TaxYear == a.TaxYear {
			return repository.ErrDuplicate
		}
	}
	r.s.t.artifacts[a.ID] = *a
	return nil
}

func (r *artifactStore) FindByID(_ context.Context, id uuid.UUID) (*model.VerificationArtifact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.t.artifacts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *artifactStore) FindActive(_ context.Context, _ *gorm.DB, vehicleID uuid.UUID, taxYear int) (*model.VerificationArtifact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.t.artifacts {
		if a.VehicleID == vehicleID && a.TaxYear == taxYear && a.RevokedAt == nil {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *artifactStore) RevokeByPayment(_ context.Context, _ *gorm.DB, paymentID uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, a := range r.s.t.artifacts {
		if a.PaymentID == paymentID && a.RevokedAt == nil {
			revoked := at
			a.RevokedAt = &revoked
			r.s.t.artifacts[id] = a
			n++
		}
	}
	return n, nil
}

func (r *artifactStore) SetReceiptPath(_ context.Context, id uuid.UUID, path string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.t.artifacts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ReceiptPath = &path
	r.s.t.artifacts[id] = a
	return nil
}
