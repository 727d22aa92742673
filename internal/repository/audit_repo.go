package repository

import (
	"context"
	"fmt"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChainBuilder turns the locked chain tail into the next entry.
type ChainBuilder func(tail model.AuditChainTail) (*model.CashAuditLogEntry, error)

type AuditRepository interface {
	// Append locks the chain tail, builds the next entry from it, inserts the
	// entry and advances the tail. When tx is a live transaction the work runs
	// in a savepoint so a failed append leaves the caller's transaction usable.
	Append(ctx context.Context, tx *gorm.DB, build ChainBuilder) (*model.CashAuditLogEntry, error)
	List(ctx context.Context, filter dto.AuditFilter) ([]model.CashAuditLogEntry, error)
	// FindBefore returns the newest entry whose sequence is lower than seq.
	FindBefore(ctx context.Context, seq int64) (*model.CashAuditLogEntry, error)
	Tail(ctx context.Context) (*model.AuditChainTail, error)
}

type auditRepo struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &auditRepo{db: db} }

func (r *auditRepo) Append(ctx context.Context, tx *gorm.DB, build ChainBuilder) (*model.CashAuditLogEntry, error) {
	var entry *model.CashAuditLogEntry
	err := conn(ctx, r.db, tx).Transaction(func(sp *gorm.DB) error {
		// The tail row is seeded by the migration; this keeps fresh test schemas working too.
		if err := sp.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.AuditChainTail{ID: 1}).Error; err != nil {
			return fmt.Errorf("seed chain tail: %w", err)
		}

		var tail model.AuditChainTail
		if err := sp.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tail, "id = ?", 1).Error; err != nil {
			return fmt.Errorf("lock chain tail: %w", err)
		}

		e, err := build(tail)
		if err != nil {
			return err
		}
		if err := sp.Create(e).Error; err != nil {
			return translate(err)
		}

		ts := e.Timestamp
		if err := sp.Model(&model.AuditChainTail{}).Where("id = ?", 1).Updates(map[string]any{
			"last_sequence":  e.Sequence,
			"last_hash":      e.CurrentHash,
			"last_timestamp": ts,
		}).Error; err != nil {
			return fmt.Errorf("advance chain tail: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *auditRepo) List(ctx context.Context, f dto.AuditFilter) ([]model.CashAuditLogEntry, error) {
	q := r.db.WithContext(ctx).Model(&model.CashAuditLogEntry{})
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp < ?", *f.To)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.SessionID != nil {
		q = q.Where("session_id = ?", *f.SessionID)
	}
	if f.TransactionID != nil {
		q = q.Where("transaction_id = ?", *f.TransactionID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var entries []model.CashAuditLogEntry
	err := q.Order("sequence ASC").Find(&entries).Error
	return entries, translate(err)
}

func (r *auditRepo) FindBefore(ctx context.Context, seq int64) (*model.CashAuditLogEntry, error) {
	var e model.CashAuditLogEntry
	err := r.db.WithContext(ctx).
		Where("sequence < ?", seq).
		Order("sequence DESC").
		First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *auditRepo) Tail(ctx context.Context) (*model.AuditChainTail, error) {
	var t model.AuditChainTail
	if err := r.db.WithContext(ctx).First(&t, "id = ?", 1).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}
