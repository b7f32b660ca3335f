// Package openaq reads air quality measurements from the OpenAQ network
// and converts them to an AQI reading.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
)

// Ensure Client implements AQIProvider
var _ driven.AQIProvider = (*Client)(nil)

// stationRadius is how far to look for a monitoring station, in meters
const stationRadius = 50000

// Client is an OpenAQ API client
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new OpenAQ client.
// baseURL defaults to the public v2 API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openaq.org/v2"
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetAQI returns air quality near the coordinates. When no station within
// range reports data, the returned report has Available=false; transport
// failures are errors for the caller's degrade policy to handle.
func (c *Client) GetAQI(ctx context.Context, lat, lon float64) (*domain.AQIReport, error) {
	locationID, err := c.nearestStation(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if locationID == 0 {
		return unavailable(), nil
	}

	measurements, err := c.latestMeasurements(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if measurements == nil {
		return unavailable(), nil
	}

	pm25 := measurements["pm25"]
	pm10 := measurements["pm10"]
	o3 := measurements["o3"]
	no2 := measurements["no2"]

	aqi := CalculateAQI(pm25, pm10)
	return &domain.AQIReport{
		AQI:               aqi,
		Category:          Category(aqi),
		DominantPollutant: dominantPollutant(pm25, pm10, o3, no2),
		PM25:              pm25,
		PM10:              pm10,
		O3:                o3,
		NO2:               no2,
		Available:         true,
	}, nil
}

// nearestStation finds the closest monitoring station id, or 0 when none
// is within range.
func (c *Client) nearestStation(ctx context.Context, lat, lon float64) (int, error) {
	params := url.Values{}
	params.Set("coordinates", fmt.Sprintf("%f,%f", lat, lon))
	params.Set("radius", fmt.Sprintf("%d", stationRadius))
	params.Set("limit", "1")
	params.Set("order_by", "distance")

	var data struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/locations?"+params.Encode(), &data); err != nil {
		return 0, err
	}
	if len(data.Results) == 0 {
		return 0, nil
	}
	return data.Results[0].ID, nil
}

// latestMeasurements fetches the newest reading per pollutant for a station.
// A nil map means the station reported nothing.
func (c *Client) latestMeasurements(ctx context.Context, locationID int) (map[string]*float64, error) {
	var data struct {
		Results []struct {
			Measurements []struct {
				Parameter string  `json:"parameter"`
				Value     float64 `json:"value"`
			} `json:"measurements"`
		} `json:"results"`
	}
	if err := c.get(ctx, fmt.Sprintf("/latest/%d", locationID), &data); err != nil {
		return nil, err
	}
	if len(data.Results) == 0 {
		return nil, nil
	}

	measurements := make(map[string]*float64)
	for _, m := range data.Results[0].Measurements {
		value := m.Value
		measurements[m.Parameter] = &value
	}
	return measurements, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamData, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: openaq returned status %d", domain.ErrUpstreamData, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed openaq response: %v", domain.ErrUpstreamData, err)
	}
	return nil
}

// CalculateAQI converts pollutant concentrations (µg/m³) to an AQI value
// using PM2.5 as the primary indicator with a PM10 fallback.
//
// The PM2.5 breakpoints below are a simplified linear-interpolation table
// kept for compatibility with existing clients; they do not track the
// official EPA AQI algorithm revision history.
func CalculateAQI(pm25, pm10 *float64) int {
	if pm25 != nil {
		v := *pm25
		switch {
		case v <= 12.0:
			return int((50 / 12.0) * v)
		case v <= 35.4:
			return int(50 + (50/23.4)*(v-12.0))
		case v <= 55.4:
			return int(100 + (50/20.0)*(v-35.4))
		case v <= 150.4:
			return int(150 + (50/95.0)*(v-55.4))
		case v <= 250.4:
			return int(200 + (100/100.0)*(v-150.4))
		default:
			return int(300 + (100/149.6)*(v-250.4))
		}
	}

	if pm10 != nil {
		v := *pm10
		switch {
		case v <= 54:
			return int((50.0 / 54) * v)
		case v <= 154:
			return int(50 + (50.0/100)*(v-54))
		default:
			aqi := int(100 + (v-154)*0.5)
			if aqi > 500 {
				return 500
			}
			return aqi
		}
	}

	return 0
}

// Category converts an AQI value to its display category
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// dominantPollutant picks the pollutant with the highest raw concentration.
// Raw values are not normalised against per-pollutant scales; kept as-is
// for compatibility.
func dominantPollutant(pm25, pm10, o3, no2 *float64) string {
	pollutants := []struct {
		name  string
		value *float64
	}{
		{"PM2.5", pm25},
		{"PM10", pm10},
		{"O3", o3},
		{"NO2", no2},
	}

	var dominant string
	var max float64
	for _, p := range pollutants {
		if p.value == nil {
			continue
		}
		if dominant == "" || *p.value > max {
			dominant = p.name
			max = *p.value
		}
	}
	return dominant
}

func unavailable() *domain.AQIReport {
	return &domain.AQIReport{
		AQI:       0,
		Category:  "Unknown",
		Available: false,
	}
}
