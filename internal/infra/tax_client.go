package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// taxAssessRequest is posted to the external tax-rate service.
type taxAssessRequest struct {
	VehicleID    string `json:"vehicle_id"`
	Plate        string `json:"plate"`
	Category     string `json:"category"`
	EngineCC     int    `json:"engine_cc"`
	FirstUseYear int    `json:"first_use_year"`
	TaxYear      int    `json:"tax_year"`
}

// TaxClient delegates tax computation to the tax-rate service over HTTP.
// Answers are cached in Redis per (vehicle, year); the breaker fast-fails
// while the service is down so cash desks get an immediate error.
type TaxClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *Breaker
	rdb        *redis.Client // optional
	cacheTTL   time.Duration
}

// NewTaxClient builds the client. rdb may be nil to disable caching.
func NewTaxClient(baseURL string, timeout time.Duration, breaker *Breaker, rdb *redis.Client, cacheTTL time.Duration) *TaxClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if breaker == nil {
		breaker = NewBreaker(TaxServiceBreakerSettings())
	}
	return &TaxClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		rdb:        rdb,
		cacheTTL:   cacheTTL,
	}
}

func taxCacheKey(vehicle *model.Vehicle, taxYear int) string {
	return fmt.Sprintf("tax:%s:%d", vehicle.ID, taxYear)
}

// CalculateTax returns the assessment for vehicle and year. Exempt vehicles
// never reach the network.
func (c *TaxClient) CalculateTax(ctx context.Context, vehicle *model.Vehicle, taxYear int) (*dto.TaxAssessment, error) {
	if vehicle.TaxExempt {
		return &dto.TaxAssessment{IsExempt: true, Currency: "MGA"}, nil
	}

	key := taxCacheKey(vehicle, taxYear)
	if cached, ok := c.cached(ctx, key); ok {
		return cached, nil
	}

	var result *dto.TaxAssessment
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.assess(ctx, vehicle, taxYear)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, result)
	return result, nil
}

// BreakerState exposes the breaker for the health endpoint.
func (c *TaxClient) BreakerState() string { return c.breaker.State().String() }

func (c *TaxClient) assess(ctx context.Context, vehicle *model.Vehicle, taxYear int) (*dto.TaxAssessment, error) {
	body, err := json.Marshal(taxAssessRequest{
		VehicleID:    vehicle.ID.String(),
		Plate:        vehicle.Plate,
		Category:     vehicle.Category,
		EngineCC:     vehicle.EngineCC,
		FirstUseYear: vehicle.FirstUseYear,
		TaxYear:      taxYear,
	})
	if err != nil {
		return nil, fmt.Errorf("tax: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tax/assess", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tax: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tax: service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tax: service returned %d", resp.StatusCode)
	}

	var result dto.TaxAssessment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("tax: decode response: %w", err)
	}
	if result.Amount.IsNegative() {
		return nil, errors.New("tax: negative amount in response")
	}
	result.Amount = result.Amount.Round(2)
	return &result, nil
}

func (c *TaxClient) cached(ctx context.Context, key string) (*dto.TaxAssessment, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("tax cache read failed")
		}
		return nil, false
	}
	var a dto.TaxAssessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return &a, true
}

func (c *TaxClient) store(ctx context.Context, key string, a *dto.TaxAssessment) {
	if c.rdb == nil || c.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("tax cache write failed")
	}
}
