package driving

import (
	"context"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// WeatherService exposes weather, geocoding and air quality lookups.
type WeatherService interface {
	// GetWeather returns a full report for the coordinates, served from
	// cache when a fresh snapshot exists.
	GetWeather(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error)

	// Geocode resolves a city name to candidate locations.
	Geocode(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error)

	// GetAQI returns air quality near the coordinates. Upstream failures
	// degrade to an unavailable report, never an error.
	GetAQI(ctx context.Context, lat, lon float64) *domain.AQIReport
}
