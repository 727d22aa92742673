package repository

import (
	"context"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionAggregate is the SQL rollup of a session's non-voided transactions.
type TransactionAggregate struct {
	Count           int64
	TaxTotal        decimal.Decimal
	TenderedTotal   decimal.Decimal
	ChangeTotal     decimal.Decimal
	CommissionTotal decimal.Decimal
	PendingApproval int64
}

type CashTransactionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, t *model.CashTransaction) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashTransaction, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashTransaction, error)
	Update(ctx context.Context, tx *gorm.DB, t *model.CashTransaction) error
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]model.CashTransaction, error)
	AggregateBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*TransactionAggregate, error)
}

type transactionRepo struct{ db *gorm.DB }

func NewCashTransactionRepository(db *gorm.DB) CashTransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) Create(ctx context.Context, tx *gorm.DB, t *model.CashTransaction) error {
	return translate(conn(ctx, r.db, tx).Create(t).Error)
}

func (r *transactionRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashTransaction, error) {
	var t model.CashTransaction
	if err := conn(ctx, r.db, tx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *transactionRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashTransaction, error) {
	var t model.CashTransaction
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *transactionRepo) Update(ctx context.Context, tx *gorm.DB, t *model.CashTransaction) error {
	return translate(conn(ctx, r.db, tx).Save(t).Error)
}

func (r *transactionRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	var txns []model.CashTransaction
	err := conn(ctx, r.db, tx).
		Where("session_id = ?", sessionID).
		Order("transaction_time ASC, id ASC").
		Find(&txns).Error
	return txns, translate(err)
}

func (r *transactionRepo) AggregateBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*TransactionAggregate, error) {
	var row struct {
		Count           int64
		TaxTotal        decimal.Decimal
		TenderedTotal   decimal.Decimal
		ChangeTotal     decimal.Decimal
		CommissionTotal decimal.Decimal
		PendingApproval int64
	}
	err := conn(ctx, r.db, tx).Raw(`
SELECT COUNT(*)                                   AS count,
       COALESCE(SUM(tax_amount), 0)               AS tax_total,
       COALESCE(SUM(amount_tendered), 0)          AS tendered_total,
       COALESCE(SUM(change_given), 0)             AS change_total,
       COALESCE(SUM(commission_amount), 0)        AS commission_total,
       COUNT(*) FILTER (WHERE requires_approval AND approver_id IS NULL) AS pending_approval
  FROM cash_transactions
 WHERE session_id = ? AND NOT voided`, sessionID).Scan(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	agg := TransactionAggregate(row)
	return &agg, nil
}
