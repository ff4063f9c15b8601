package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"lotpool/internal/domain/reservation"
	"lotpool/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CommissionClient asks the reliability-scoring service for a buyer's
// commission rate and caches the answer in redis. Rates move slowly, so a
// short TTL keeps intake off the scoring service's hot path without serving
// stale tiers for long.
type CommissionClient struct {
	baseURL string
	ttl     time.Duration
	http    *http.Client
	cache   *redis.Client
}

func NewCommissionClient(baseURL string, ttl time.Duration, timeout time.Duration, cache *redis.Client) *CommissionClient {
	return &CommissionClient{
		baseURL: baseURL,
		ttl:     ttl,
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
	}
}

type scoreResponse struct {
	CommissionRate string `json:"commission_rate"`
}

func (c *CommissionClient) RateFor(ctx context.Context, buyerID uuid.UUID) (decimal.Decimal, error) {
	key := "commission_rate:" + buyerID.String()

	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		if rate, parseErr := reservation.ParseCommissionRate(cached); parseErr == nil {
			return rate, nil
		}
		// A corrupt cache entry falls through to a fresh lookup.
		c.cache.Del(ctx, key)
	}

	rate, err := c.fetch(ctx, buyerID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.cache.Set(ctx, key, rate.String(), c.ttl).Err(); err != nil {
		slog.Warn("failed to cache commission rate", "buyer_id", buyerID, "error", err)
	}
	return rate, nil
}

func (c *CommissionClient) fetch(ctx context.Context, buyerID uuid.UUID) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/buyers/%s/score", c.baseURL, buyerID), nil)
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "failed to build scoring request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "commission rate lookup failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("scoring service returned %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, errs.Wrap(err, "failed to decode scoring response")
	}

	rate, err := reservation.ParseCommissionRate(out.CommissionRate)
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "scoring service returned an unusable rate")
	}
	return rate, nil
}
