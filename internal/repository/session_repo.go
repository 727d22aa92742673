package repository

import (
	"context"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CashSessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, s *model.CashSession) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	// FindByIDForUpdate row-locks the session until tx ends.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	ListOpenByCollector(ctx context.Context, tx *gorm.DB, collectorID uuid.UUID) ([]model.CashSession, error)
	Update(ctx context.Context, tx *gorm.DB, s *model.CashSession) error
	// AddCommission applies delta to total_commission in SQL, avoiding read-modify-write races.
	AddCommission(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error
	List(ctx context.Context, tx *gorm.DB, filter dto.SessionFilter) ([]model.CashSession, error)
}

type sessionRepo struct{ db *gorm.DB }

func NewCashSessionRepository(db *gorm.DB) CashSessionRepository { return &sessionRepo{db: db} }

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, s *model.CashSession) error {
	return translate(conn(ctx, r.db, tx).Create(s).Error)
}

func (r *sessionRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := conn(ctx, r.db, tx).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *sessionRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *sessionRepo) ListOpenByCollector(ctx context.Context, tx *gorm.DB, collectorID uuid.UUID) ([]model.CashSession, error) {
	var sessions []model.CashSession
	err := conn(ctx, r.db, tx).
		Where("collector_id = ? AND status = ?", collectorID, model.SessionOpen).
		Order("opened_at ASC").
		Find(&sessions).Error
	return sessions, translate(err)
}

func (r *sessionRepo) Update(ctx context.Context, tx *gorm.DB, s *model.CashSession) error {
	return translate(conn(ctx, r.db, tx).Save(s).Error)
}

func (r *sessionRepo) AddCommission(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	res := conn(ctx, r.db, tx).Model(&model.CashSession{}).
		Where("id = ?", id).
		Update("total_commission", gorm.Expr("total_commission + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepo) List(ctx context.Context, tx *gorm.DB, f dto.SessionFilter) ([]model.CashSession, error) {
	q := conn(ctx, r.db, tx).Model(&model.CashSession{})
	if f.CollectorID != nil {
		q = q.Where("collector_id = ?", *f.CollectorID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.OpenedFrom != nil {
		q = q.Where("opened_at >= ?", *f.OpenedFrom)
	}
	if f.OpenedTo != nil {
		q = q.Where("opened_at < ?", *f.OpenedTo)
	}
	if f.NonZeroDiscrepancy {
		q = q.Where("discrepancy IS NOT NULL AND discrepancy <> 0")
	}
	if f.MinAbsDiscrepancy != nil {
		q = q.Where("ABS(discrepancy) >= ?", *f.MinAbsDiscrepancy)
	}
	if f.ForUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var sessions []model.CashSession
	err := q.Order("opened_at ASC, id ASC").Find(&sessions).Error
	return sessions, translate(err)
}
