package repository

import (
	"context"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerificationArtifactRepository interface {
	// Create returns ErrDuplicate when an active artifact exists for the vehicle and year.
	Create(ctx context.Context, tx *gorm.DB, a *model.VerificationArtifact) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.VerificationArtifact, error)
	FindActive(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID, taxYear int) (*model.VerificationArtifact, error)
	RevokeByPayment(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, at time.Time) (int64, error)
	SetReceiptPath(ctx context.Context, id uuid.UUID, path string) error
}

type artifactRepo struct{ db *gorm.DB }

func NewVerificationArtifactRepository(db *gorm.DB) VerificationArtifactRepository {
	return &artifactRepo{db: db}
}

func (r *artifactRepo) Create(ctx context.Context, tx *gorm.DB, a *model.VerificationArtifact) error {
	return translate(conn(ctx, r.db, tx).Create(a).Error)
}

func (r *artifactRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.VerificationArtifact, error) {
	var a model.VerificationArtifact
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *artifactRepo) FindActive(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID, taxYear int) (*model.VerificationArtifact, error) {
	var a model.VerificationArtifact
	err := conn(ctx, r.db, tx).
		Where("vehicle_id = ? AND tax_year = ? AND revoked_at IS NULL", vehicleID, taxYear).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *artifactRepo) RevokeByPayment(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, at time.Time) (int64, error) {
	res := conn(ctx, r.db, tx).Model(&model.VerificationArtifact{}).
		Where("payment_id = ? AND revoked_at IS NULL", paymentID).
		Update("revoked_at", at)
	return res.RowsAffected, translate(res.Error)
}

func (r *artifactRepo) SetReceiptPath(ctx context.Context, id uuid.UUID, path string) error {
	return translate(r.db.WithContext(ctx).Model(&model.VerificationArtifact{}).
		Where("id = ?", id).Update("receipt_path", path).Error)
}
