package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
)

// Ensure Geocoder implements GeocodeProvider
var _ driven.GeocodeProvider = (*Geocoder)(nil)

// Geocoder is an Open-Meteo geocoding API client. Open-Meteo has no reverse
// endpoint, so ReverseGeocode always errors; pair it with a Nominatim
// fallback.
type Geocoder struct {
	baseURL string
	client  *http.Client
}

// NewGeocoder creates a new Open-Meteo geocoder.
// baseURL defaults to the public API.
func NewGeocoder(baseURL string) *Geocoder {
	if baseURL == "" {
		baseURL = "https://geocoding-api.open-meteo.com/v1"
	}
	return &Geocoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Search finds locations matching a free-text city name
func (g *Geocoder) Search(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(limit))
	params.Set("language", "en")
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo geocoding returned status %d", resp.StatusCode)
	}

	var data struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Country   string  `json:"country"`
			Admin1    string  `json:"admin1"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("malformed geocoding response: %w", err)
	}

	results := make([]domain.GeoLocation, 0, len(data.Results))
	for _, item := range data.Results {
		results = append(results, domain.GeoLocation{
			Name:    item.Name,
			Lat:     item.Latitude,
			Lon:     item.Longitude,
			Country: item.Country,
			State:   item.Admin1,
		})
	}
	return results, nil
}

// ReverseGeocode is unsupported by the Open-Meteo geocoding API
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	return "", fmt.Errorf("open-meteo geocoding has no reverse endpoint")
}
