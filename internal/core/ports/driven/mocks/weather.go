package mocks

import (
	"context"
	"fmt"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// MockWeatherProvider returns a canned report or a configured error
type MockWeatherProvider struct {
	Report *domain.WeatherReport
	Err    error

	Calls int
}

func NewMockWeatherProvider() *MockWeatherProvider {
	return &MockWeatherProvider{
		Report: &domain.WeatherReport{
			Location: "Testville",
			Current: domain.CurrentWeather{
				Temperature: 21.5,
				FeelsLike:   20.0,
				Humidity:    55,
				WindSpeed:   12.0,
				Description: "Partly cloudy",
			},
			Timezone: "UTC",
		},
	}
}

func (m *MockWeatherProvider) GetWeather(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	report := *m.Report
	report.Lat = lat
	report.Lon = lon
	return &report, nil
}

// MockGeocodeProvider returns canned geocoding results
type MockGeocodeProvider struct {
	Results     []domain.GeoLocation
	ReverseName string
	Err         error
}

func (m *MockGeocodeProvider) Search(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Results) > limit {
		return m.Results[:limit], nil
	}
	return m.Results, nil
}

func (m *MockGeocodeProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.ReverseName, nil
}

// MockAQIProvider returns a canned air quality report
type MockAQIProvider struct {
	Report *domain.AQIReport
	Err    error
}

func (m *MockAQIProvider) GetAQI(ctx context.Context, lat, lon float64) (*domain.AQIReport, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Report, nil
}

// MockWeatherCache is an in-memory WeatherCache keyed by rounded coordinates
type MockWeatherCache struct {
	entries map[string]*domain.WeatherReport

	Hits   int
	Misses int
}

func NewMockWeatherCache() *MockWeatherCache {
	return &MockWeatherCache{entries: make(map[string]*domain.WeatherReport)}
}

func (m *MockWeatherCache) Get(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
	report, ok := m.entries[cacheKey(lat, lon, units)]
	if !ok {
		m.Misses++
		return nil, nil
	}
	m.Hits++
	return report, nil
}

func (m *MockWeatherCache) Set(ctx context.Context, lat, lon float64, units string, report *domain.WeatherReport) error {
	m.entries[cacheKey(lat, lon, units)] = report
	return nil
}

func cacheKey(lat, lon float64, units string) string {
	// Match the production cache's 2-decimal rounding
	return fmt.Sprintf("%s:%.2f:%.2f", units, lat, lon)
}
