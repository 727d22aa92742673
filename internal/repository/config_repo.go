package repository

import (
	"context"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SystemConfigRepository interface {
	Get(ctx context.Context, tx *gorm.DB) (*model.CashSystemConfig, error)
	// CreateIfAbsent inserts the singleton row unless another writer won the race.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, c *model.CashSystemConfig) error
	Update(ctx context.Context, tx *gorm.DB, c *model.CashSystemConfig) error
}

type configRepo struct{ db *gorm.DB }

func NewSystemConfigRepository(db *gorm.DB) SystemConfigRepository { return &configRepo{db: db} }

func (r *configRepo) Get(ctx context.Context, tx *gorm.DB) (*model.CashSystemConfig, error) {
	var c model.CashSystemConfig
	if err := conn(ctx, r.db, tx).First(&c, "id = ?", model.SystemConfigID).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *configRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, c *model.CashSystemConfig) error {
	c.ID = model.SystemConfigID
	return translate(conn(ctx, r.db, tx).Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error)
}

func (r *configRepo) Update(ctx context.Context, tx *gorm.DB, c *model.CashSystemConfig) error {
	c.ID = model.SystemConfigID
	return translate(conn(ctx, r.db, tx).Save(c).Error)
}
