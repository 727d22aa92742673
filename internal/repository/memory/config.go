package memory

import (
	"context"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"gorm.io/gorm"
)

type configStore struct{ s *Store }

var _ repository.SystemConfigRepository = (*configStore)(nil)

func (r *configStore) Get(_ context.Context, _ *gorm.DB) (*model.CashSystemConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.t.config == nil {
		return nil, repository.ErrNotFound
	}
	c := *r.s.t.config
	return &c, nil
}

func (r *configStore) CreateIfAbsent(_ context.Context, _ *gorm.DB, c *model.CashSystemConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.t.config != nil {
		return nil
	}
	c.ID = model.SystemConfigID
	stamp(&c.CreatedAt, &c.UpdatedAt)
	cp := *c
	r.s.t.config = &cp
	return nil
}

func (r *configStore) Update(_ context.Context, _ *gorm.DB, c *model.CashSystemConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = model.SystemConfigID
	stamp(&c.CreatedAt, &c.UpdatedAt)
	cp := *c
	r.s.t.config = &cp
	return nil
}
