package repository

import (
	"context"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, c *model.CommissionRecord) error
	FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*model.CommissionRecord, error)
	Update(ctx context.Context, tx *gorm.DB, c *model.CommissionRecord) error
	// MarkPaid moves pending records to paid and returns how many rows changed.
	MarkPaid(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, paidBy uuid.UUID, paidAt time.Time) (int64, error)
	List(ctx context.Context, tx *gorm.DB, filter dto.CommissionFilter) ([]model.CommissionRecord, error)
}

type commissionRepo struct{ db *gorm.DB }

func NewCommissionRepository(db *gorm.DB) CommissionRepository { return &commissionRepo{db: db} }

func (r *commissionRepo) Create(ctx context.Context, tx *gorm.DB, c *model.CommissionRecord) error {
	return translate(conn(ctx, r.db, tx).Create(c).Error)
}

func (r *commissionRepo) FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*model.CommissionRecord, error) {
	var c model.CommissionRecord
	err := conn(ctx, r.db, tx).Where("transaction_id = ?", transactionID).First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *commissionRepo) Update(ctx context.Context, tx *gorm.DB, c *model.CommissionRecord) error {
	return translate(conn(ctx, r.db, tx).Save(c).Error)
}

func (r *commissionRepo) MarkPaid(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, paidBy uuid.UUID, paidAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := conn(ctx, r.db, tx).Model(&model.CommissionRecord{}).
		Where("id IN ? AND status = ?", ids, model.CommissionPending).
		Updates(map[string]any{
			"status":     model.CommissionPaid,
			"paid_at":    paidAt,
			"paid_by_id": paidBy,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, translate(res.Error)
}

func (r *commissionRepo) List(ctx context.Context, tx *gorm.DB, f dto.CommissionFilter) ([]model.CommissionRecord, error) {
	q := conn(ctx, r.db, tx).Model(&model.CommissionRecord{})
	if f.CollectorID != nil {
		q = q.Where("collector_id = ?", *f.CollectorID)
	}
	if f.SessionID != nil {
		q = q.Where("session_id = ?", *f.SessionID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	var records []model.CommissionRecord
	err := q.Order("created_at ASC, id ASC").Find(&records).Error
	return records, translate(err)
}
