package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BreakerStater reports the state of the tax-service circuit breaker.
type BreakerStater interface {
	BreakerState() string
}

type componentHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

func probe(ctx context.Context, ping func(context.Context) error) componentHealth {
	start := time.Now()
	if err := ping(ctx); err != nil {
		return componentHealth{Status: "down"}
	}
	return componentHealth{Status: "up", LatencyMS: time.Since(start).Milliseconds()}
}

// Health reports "down" (503) when Postgres or Redis is unreachable and
// "degraded" (200) while the tax breaker is not closed: cash payments fail
// fast but sessions, reports and audit keep working.
func Health(db *gorm.DB, rdb *redis.Client, tax BreakerStater) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		postgres := probe(ctx, func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
		cache := probe(ctx, func(ctx context.Context) error {
			if rdb == nil {
				return redis.ErrClosed
			}
			return rdb.Ping(ctx).Err()
		})
		breaker := "unknown"
		if tax != nil {
			breaker = tax.BreakerState()
		}

		overall, code := "ok", http.StatusOK
		switch {
		case postgres.Status != "up" || cache.Status != "up":
			overall, code = "down", http.StatusServiceUnavailable
		case breaker != "closed":
			overall = "degraded"
		}

		c.JSON(code, gin.H{
			"status": overall,
			"components": gin.H{
				"postgres":    postgres,
				"redis":       cache,
				"tax_service": componentHealth{Status: breaker},
			},
		})
	}
}
