package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driving"
)

// Ensure weatherService implements WeatherService
var _ driving.WeatherService = (*weatherService)(nil)

// weatherService implements the WeatherService interface, fronting the
// upstream weather API with a short-TTL cache and geocoding fallbacks.
type weatherService struct {
	provider driven.WeatherProvider
	geocode  driven.GeocodeProvider
	fallback driven.GeocodeProvider // secondary geocoder, may be nil
	aqi      driven.AQIProvider
	cache    driven.WeatherCache // may be nil when no cache is configured
	logger   *slog.Logger
}

// NewWeatherService creates a new WeatherService.
// fallback, aqi and cache may be nil.
func NewWeatherService(
	provider driven.WeatherProvider,
	geocode driven.GeocodeProvider,
	fallback driven.GeocodeProvider,
	aqi driven.AQIProvider,
	cache driven.WeatherCache,
	logger *slog.Logger,
) driving.WeatherService {
	if logger == nil {
		logger = slog.Default()
	}
	return &weatherService{
		provider: provider,
		geocode:  geocode,
		fallback: fallback,
		aqi:      aqi,
		cache:    cache,
		logger:   logger,
	}
}

// GetWeather returns a full report for the coordinates, served from cache
// when a fresh snapshot exists. Cache failures are ignored; the upstream
// API is the source of truth.
func (s *weatherService) GetWeather(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
	if units != "imperial" {
		units = "metric"
	}

	if s.cache != nil {
		if report, err := s.cache.Get(ctx, lat, lon, units); err != nil {
			s.logger.Warn("weather cache read failed", "error", err)
		} else if report != nil {
			return report, nil
		}
	}

	report, err := s.provider.GetWeather(ctx, lat, lon, units)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamData, err)
	}

	// Name the location; degrade to raw coordinates when reverse geocoding
	// is unavailable.
	if report.Location == "" {
		report.Location = s.locationName(ctx, lat, lon)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, lat, lon, units, report); err != nil {
			s.logger.Warn("weather cache write failed", "error", err)
		}
	}

	return report, nil
}

// Geocode resolves a city name to candidate locations, falling back to the
// secondary geocoder when the primary fails or finds nothing.
func (s *weatherService) Geocode(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error) {
	if limit <= 0 {
		limit = 5
	}

	results, err := s.geocode.Search(ctx, query, limit)
	if err == nil && len(results) > 0 {
		return results, nil
	}
	if err != nil {
		s.logger.Warn("primary geocoder failed", "query", query, "error", err)
	}

	if s.fallback == nil {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamData, err)
		}
		return results, nil
	}

	results, err = s.fallback.Search(ctx, query, limit)
	if err != nil {
		// Both geocoders down: an empty result, not an error, so the UI can
		// still render.
		s.logger.Warn("fallback geocoder failed", "query", query, "error", err)
		return []domain.GeoLocation{}, nil
	}
	return results, nil
}

// GetAQI returns air quality near the coordinates. Upstream failures
// degrade to an unavailable report, never an error.
func (s *weatherService) GetAQI(ctx context.Context, lat, lon float64) *domain.AQIReport {
	if s.aqi == nil {
		return unavailableAQI()
	}

	report, err := s.aqi.GetAQI(ctx, lat, lon)
	if err != nil {
		s.logger.Warn("aqi lookup failed", "error", err)
		return unavailableAQI()
	}
	return report
}

// locationName resolves a display name for coordinates, trying the primary
// then fallback reverse geocoder, then formatting the raw coordinates.
func (s *weatherService) locationName(ctx context.Context, lat, lon float64) string {
	if name, err := s.geocode.ReverseGeocode(ctx, lat, lon); err == nil && name != "" {
		return name
	}
	if s.fallback != nil {
		if name, err := s.fallback.ReverseGeocode(ctx, lat, lon); err == nil && name != "" {
			return name
		}
	}
	return fmt.Sprintf("%.2f, %.2f", lat, lon)
}

func unavailableAQI() *domain.AQIReport {
	return &domain.AQIReport{
		AQI:       0,
		Category:  "Unknown",
		Available: false,
	}
}
