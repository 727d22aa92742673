package repository

import (
	"context"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaxPaymentRepository interface {
	// Create returns ErrDuplicate when a non-cancelled payment already exists
	// for the same vehicle and tax year.
	Create(ctx context.Context, tx *gorm.DB, p *model.TaxPayment) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TaxPayment, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TaxPayment, error)
	ExistsActive(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID, taxYear int) (bool, error)
	FindActive(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID, taxYear int) (*model.TaxPayment, error)
	Update(ctx context.Context, tx *gorm.DB, p *model.TaxPayment) error
	// ListPaidWithoutArtifact returns paid payments settled before paidBefore
	// that have no active verification artifact for their vehicle and year,
	// oldest first.
	ListPaidWithoutArtifact(ctx context.Context, paidBefore time.Time, limit int) ([]model.TaxPayment, error)
}

type taxPaymentRepo struct{ db *gorm.DB }

func NewTaxPaymentRepository(db *gorm.DB) TaxPaymentRepository { return &taxPaymentRepo{db: db} }

func (r *taxPaymentRepo) Create(ctx context.Context, tx *gorm.DB, p *model.TaxPayment) error {
	return translate(conn(ctx, r.db, tx).Create(p).Error)
}

func (r *taxPaymentRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TaxPayment, error) {
	var p model.TaxPayment
	if err := conn(ctx, r.db, tx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *taxPaymentRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TaxPayment, error) {
	var p model.TaxPayment
	err := conn(ctx, r.db, tx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *taxPaymentRepo) ExistsActive(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID, taxYear int) (bool, error) {
	var n int64
	err := conn(ctx, r.db, tx).Model(&model.TaxPayment{}).
		Where("vehicle_id = ? AND tax_year = ? AND status <> ?", vehicleID, taxYear, model.PaymentCancelled).
		Count(&n).Error
	return n > 0, translate(err)
}

func (r *taxPaymentRepo) FindActive(ctx context.Context, tx *gorm.DB, vehicleID uuid.UUID, taxYear int) (*model.TaxPayment, error) {
	var p model.TaxPayment
	err := conn(ctx, r.db, tx).
		Where("vehicle_id = ? AND tax_year = ? AND status <> ?", vehicleID, taxYear, model.PaymentCancelled).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *taxPaymentRepo) Update(ctx context.Context, tx *gorm.DB, p *model.TaxPayment) error {
	return translate(conn(ctx, r.db, tx).Save(p).Error)
}

func (r *taxPaymentRepo) ListPaidWithoutArtifact(ctx context.Context, paidBefore time.Time, limit int) ([]model.TaxPayment, error) {
	var out []model.TaxPayment
	err := r.db.WithContext(ctx).
		Table("tax_payments AS tp").
		Select("tp.*").
		Where("tp.status = ? AND tp.paid_at < ?", model.PaymentPaid, paidBefore).
		Where(`NOT EXISTS (SELECT 1 FROM verification_artifacts va
			WHERE va.vehicle_id = tp.vehicle_id AND va.tax_year = tp.tax_year AND va.revoked_at IS NULL)`).
		Order("tp.paid_at").
		Limit(limit).
		Find(&out).Error
	return out, translate(err)
}
