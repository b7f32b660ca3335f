package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.WeatherCache = (*WeatherCache)(nil)

const (
	// weatherPrefix namespaces cache keys in Redis
	weatherPrefix = "weather:"

	// DefaultWeatherTTL bounds how stale a served snapshot can be
	DefaultWeatherTTL = 10 * time.Minute
)

// WeatherCache implements driven.WeatherCache using Redis with TTL
// expiration. Coordinates are rounded to two decimals (~1km) so nearby
// chat turns share a snapshot.
type WeatherCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWeatherCache creates a new Redis-backed WeatherCache
func NewWeatherCache(client *redis.Client, ttl time.Duration) *WeatherCache {
	if ttl <= 0 {
		ttl = DefaultWeatherTTL
	}
	return &WeatherCache{client: client, ttl: ttl}
}

// Get returns the cached report, or (nil, nil) on a miss
func (c *WeatherCache) Get(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
	data, err := c.client.Get(ctx, c.key(lat, lon, units)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weather snapshot: %w", err)
	}

	var report domain.WeatherReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weather snapshot: %w", err)
	}
	return &report, nil
}

// Set stores the report under the rounded coordinate key
func (c *WeatherCache) Set(ctx context.Context, lat, lon float64, units string, report *domain.WeatherReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal weather snapshot: %w", err)
	}

	if err := c.client.Set(ctx, c.key(lat, lon, units), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache weather snapshot: %w", err)
	}
	return nil
}

func (c *WeatherCache) key(lat, lon float64, units string) string {
	return fmt.Sprintf("%s%s:%.2f:%.2f", weatherPrefix, units, lat, lon)
}

// Ping checks the Redis connection
func (c *WeatherCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
