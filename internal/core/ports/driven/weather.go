package driven

import (
	"context"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// WeatherProvider fetches forecasts from an upstream weather API.
type WeatherProvider interface {
	// GetWeather returns current conditions plus hourly and daily forecasts.
	// units is "metric" or "imperial".
	GetWeather(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error)
}

// GeocodeProvider resolves place names to coordinates and back.
type GeocodeProvider interface {
	// Search finds locations matching a free-text city name.
	Search(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error)

	// ReverseGeocode names the settlement at the given coordinates.
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// AQIProvider fetches air quality readings from a monitoring network.
type AQIProvider interface {
	// GetAQI returns the air quality at the nearest monitoring station.
	// When no station reports, the returned report has Available=false;
	// transport failures are errors.
	GetAQI(ctx context.Context, lat, lon float64) (*domain.AQIReport, error)
}

// WeatherCache is a short-TTL cache for weather reports, keyed by rounded
// coordinates and units. A miss is (nil, nil).
type WeatherCache interface {
	Get(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error)
	Set(ctx context.Context, lat, lon float64, units string, report *domain.WeatherReport) error
}
