// Package nominatim resolves coordinates and place names against the
// OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
)

// Ensure Geocoder implements GeocodeProvider
var _ driven.GeocodeProvider = (*Geocoder)(nil)

// userAgent identifies the app per the Nominatim usage policy
const userAgent = "nimbus-core/1.0"

// Geocoder is a Nominatim API client
type Geocoder struct {
	baseURL string
	client  *http.Client
}

// NewGeocoder creates a new Nominatim geocoder.
// baseURL defaults to the public instance.
func NewGeocoder(baseURL string) *Geocoder {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &Geocoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// nominatimAddress holds the address fields used for naming a place
type nominatimAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	County  string `json:"county"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// settlement picks the most specific populated-place name available
func (a nominatimAddress) settlement() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	case a.Village != "":
		return a.Village
	default:
		return a.County
	}
}

// Search finds locations matching a free-text query
func (g *Geocoder) Search(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	var data []struct {
		Lat         string           `json:"lat"`
		Lon         string           `json:"lon"`
		DisplayName string           `json:"display_name"`
		Address     nominatimAddress `json:"address"`
	}
	if err := g.get(ctx, "/search?"+params.Encode(), &data); err != nil {
		return nil, err
	}

	results := make([]domain.GeoLocation, 0, len(data))
	for _, item := range data {
		lat, latErr := strconv.ParseFloat(item.Lat, 64)
		lon, lonErr := strconv.ParseFloat(item.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		name := item.Address.settlement()
		if name == "" {
			name = strings.SplitN(item.DisplayName, ",", 2)[0]
		}

		results = append(results, domain.GeoLocation{
			Name:    name,
			Lat:     lat,
			Lon:     lon,
			Country: item.Address.Country,
			State:   item.Address.State,
		})
	}
	return results, nil
}

// ReverseGeocode names the settlement at the given coordinates
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")

	var data struct {
		Address nominatimAddress `json:"address"`
	}
	if err := g.get(ctx, "/reverse?"+params.Encode(), &data); err != nil {
		return "", err
	}

	name := data.Address.settlement()
	if name == "" {
		return "", fmt.Errorf("no settlement at %.4f, %.4f", lat, lon)
	}
	return name, nil
}

func (g *Geocoder) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed nominatim response: %w", err)
	}
	return nil
}
