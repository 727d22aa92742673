package service

import (
	"context"
	"errors"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	configCacheKey = "cash_system_config"
	configCacheTTL = time.Minute
)

var hundred = decimal.NewFromInt(100)

// SystemConfigService owns the singleton cash_system_config row. The row is
// created from env defaults the first time it is read.
type SystemConfigService interface {
	Get(ctx context.Context) (*model.CashSystemConfig, error)
	Update(ctx context.Context, adminID uuid.UUID, req dto.UpdateSystemConfigRequest) (*model.CashSystemConfig, error)
	// InvalidateCache drops the cached row; the next Get reads the database.
	InvalidateCache()
}

type systemConfigService struct {
	tx       repository.Transactor
	repo     repository.SystemConfigRepository
	audit    AuditService
	defaults config.CashDefaults
	cache    *gocache.Cache
	bus      ConfigChangeBus
}

func NewSystemConfigService(
	tx repository.Transactor,
	repo repository.SystemConfigRepository,
	audit AuditService,
	defaults config.CashDefaults,
	bus ConfigChangeBus,
) SystemConfigService {
	return &systemConfigService{
		tx:       tx,
		repo:     repo,
		audit:    audit,
		defaults: defaults,
		cache:    gocache.New(configCacheTTL, 5*time.Minute),
		bus:      bus,
	}
}

func (s *systemConfigService) Get(ctx context.Context) (*model.CashSystemConfig, error) {
	if v, ok := s.cache.Get(configCacheKey); ok {
		c := v.(model.CashSystemConfig)
		return &c, nil
	}
	cfg, err := s.load(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.cache.Set(configCacheKey, *cfg, gocache.DefaultExpiration)
	return cfg, nil
}

func (s *systemConfigService) load(ctx context.Context, tx *gorm.DB) (*model.CashSystemConfig, error) {
	cfg, err := s.repo.Get(ctx, tx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	seed := &model.CashSystemConfig{
		ID:                        model.SystemConfigID,
		DefaultCommissionRate:     s.defaults.CommissionRate,
		DualVerificationThreshold: s.defaults.DualVerificationThreshold,
		ReconciliationTolerance:   s.defaults.ReconciliationTolerance,
		SessionTimeoutHours:       s.defaults.SessionTimeoutHours,
		VoidTimeLimitMinutes:      s.defaults.VoidTimeLimitMinutes,
	}
	if err := s.repo.CreateIfAbsent(ctx, tx, seed); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, tx)
}

func (s *systemConfigService) Update(ctx context.Context, adminID uuid.UUID, req dto.UpdateSystemConfigRequest) (*model.CashSystemConfig, error) {
	if err := validateConfigUpdate(req); err != nil {
		return nil, err
	}

	var updated *model.CashSystemConfig
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		cfg, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		before := configSnapshot(cfg)

		if req.DefaultCommissionRate != nil {
			cfg.DefaultCommissionRate = *req.DefaultCommissionRate
		}
		if req.DualVerificationThreshold != nil {
			cfg.DualVerificationThreshold = *req.DualVerificationThreshold
		}
		if req.ReconciliationTolerance != nil {
			cfg.ReconciliationTolerance = *req.ReconciliationTolerance
		}
		if req.SessionTimeoutHours != nil {
			cfg.SessionTimeoutHours = *req.SessionTimeoutHours
		}
		if req.VoidTimeLimitMinutes != nil {
			cfg.VoidTimeLimitMinutes = *req.VoidTimeLimitMinutes
		}
		cfg.UpdatedByID = &adminID
		if err := s.repo.Update(ctx, tx, cfg); err != nil {
			return err
		}

		recordAudit(ctx, s.audit, tx, AuditRecord{
			Action: model.ActionConfigUpdate,
			UserID: adminID,
			Data: map[string]any{
				"before": before,
				"after":  configSnapshot(cfg),
			},
		})
		updated = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCache()
	if s.bus != nil {
		if err := s.bus.PublishConfigChange(ctx); err != nil {
			log.Warn().Err(err).Msg("config change broadcast failed; other replicas refresh on cache expiry")
		}
	}
	return updated, nil
}

func (s *systemConfigService) InvalidateCache() {
	s.cache.Delete(configCacheKey)
}

func validateConfigUpdate(req dto.UpdateSystemConfigRequest) error {
	for _, f := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"default_commission_rate", req.DefaultCommissionRate},
		{"dual_verification_threshold", req.DualVerificationThreshold},
		{"reconciliation_tolerance", req.ReconciliationTolerance},
	} {
		if f.value == nil {
			continue
		}
		if err := checkCents(f.name, *f.value); err != nil {
			return err
		}
	}

	switch {
	case req.DefaultCommissionRate != nil &&
		(req.DefaultCommissionRate.IsNegative() || req.DefaultCommissionRate.GreaterThan(hundred)):
		return ErrInvalidInput.WithMessage("default_commission_rate must be between 0 and 100")
	case req.DualVerificationThreshold != nil && !req.DualVerificationThreshold.IsPositive():
		return ErrInvalidInput.WithMessage("dual_verification_threshold must be positive")
	case req.ReconciliationTolerance != nil && req.ReconciliationTolerance.IsNegative():
		return ErrInvalidInput.WithMessage("reconciliation_tolerance must not be negative")
	case req.SessionTimeoutHours != nil && *req.SessionTimeoutHours <= 0:
		return ErrInvalidInput.WithMessage("session_timeout_hours must be positive")
	case req.VoidTimeLimitMinutes != nil && *req.VoidTimeLimitMinutes <= 0:
		return ErrInvalidInput.WithMessage("void_time_limit_minutes must be positive")
	}
	return nil
}

func configSnapshot(c *model.CashSystemConfig) map[string]any {
	return map[string]any{
		"default_commission_rate":     c.DefaultCommissionRate.StringFixed(2),
		"dual_verification_threshold": c.DualVerificationThreshold.StringFixed(2),
		"reconciliation_tolerance":    c.ReconciliationTolerance.StringFixed(2),
		"session_timeout_hours":       c.SessionTimeoutHours,
		"void_time_limit_minutes":     c.VoidTimeLimitMinutes,
	}
}

// ConfigToResponse maps the stored row onto its API shape.
func ConfigToResponse(c *model.CashSystemConfig) dto.SystemConfigResponse {
	return dto.SystemConfigResponse{
		DefaultCommissionRate:     c.DefaultCommissionRate,
		DualVerificationThreshold: c.DualVerificationThreshold,
		ReconciliationTolerance:   c.ReconciliationTolerance,
		SessionTimeoutHours:       c.SessionTimeoutHours,
		VoidTimeLimitMinutes:      c.VoidTimeLimitMinutes,
	}
}
