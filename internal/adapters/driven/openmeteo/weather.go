// Package openmeteo fetches forecasts and geocoding results from the
// Open-Meteo APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
)

// Ensure Client implements WeatherProvider
var _ driven.WeatherProvider = (*Client)(nil)

// wmoCodes maps WMO weather interpretation codes to a description and icon
var wmoCodes = map[int][2]string{
	0:  {"Clear sky", "☀️"},
	1:  {"Mainly clear", "🌤️"},
	2:  {"Partly cloudy", "⛅"},
	3:  {"Overcast", "☁️"},
	45: {"Foggy", "🌫️"},
	48: {"Depositing rime fog", "🌫️"},
	51: {"Light drizzle", "🌧️"},
	53: {"Moderate drizzle", "🌧️"},
	55: {"Dense drizzle", "🌧️"},
	61: {"Slight rain", "🌧️"},
	63: {"Moderate rain", "🌧️"},
	65: {"Heavy rain", "🌧️"},
	66: {"Light freezing rain", "🌨️"},
	67: {"Heavy freezing rain", "🌨️"},
	71: {"Slight snow", "🌨️"},
	73: {"Moderate snow", "🌨️"},
	75: {"Heavy snow", "❄️"},
	77: {"Snow grains", "🌨️"},
	80: {"Slight rain showers", "🌦️"},
	81: {"Moderate rain showers", "🌦️"},
	82: {"Violent rain showers", "⛈️"},
	85: {"Slight snow showers", "🌨️"},
	86: {"Heavy snow showers", "🌨️"},
	95: {"Thunderstorm", "⛈️"},
	96: {"Thunderstorm with slight hail", "⛈️"},
	99: {"Thunderstorm with heavy hail", "⛈️"},
}

// WeatherDescription resolves a WMO code to a description and icon
func WeatherDescription(code int) (string, string) {
	if entry, ok := wmoCodes[code]; ok {
		return entry[0], entry[1]
	}
	return "Unknown", "❓"
}

// Client is an Open-Meteo forecast API client
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new Open-Meteo client.
// baseURL defaults to the public API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1"
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// forecastResponse mirrors the subset of the Open-Meteo forecast payload
// the client consumes.
type forecastResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Temperature2m       float64 `json:"temperature_2m"`
		RelativeHumidity2m  int     `json:"relative_humidity_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		WeatherCode         int     `json:"weather_code"`
		WindSpeed10m        float64 `json:"wind_speed_10m"`
		WindDirection10m    int     `json:"wind_direction_10m"`
	} `json:"current"`
	Hourly struct {
		Time                     []string  `json:"time"`
		Temperature2m            []float64 `json:"temperature_2m"`
		WeatherCode              []int     `json:"weather_code"`
		PrecipitationProbability []*int    `json:"precipitation_probability"`
	} `json:"hourly"`
	Daily struct {
		Time                        []string  `json:"time"`
		WeatherCode                 []int     `json:"weather_code"`
		Temperature2mMax            []float64 `json:"temperature_2m_max"`
		Temperature2mMin            []float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []*int    `json:"precipitation_probability_max"`
		Sunrise                     []string  `json:"sunrise"`
		Sunset                      []string  `json:"sunset"`
	} `json:"daily"`
}

// GetWeather fetches current conditions plus 24h hourly and 7-day daily
// forecasts. units is "metric" or "imperial".
func (c *Client) GetWeather(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
	tempUnit, windUnit := "celsius", "kmh"
	if units == "imperial" {
		tempUnit, windUnit = "fahrenheit", "mph"
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m,wind_direction_10m")
	params.Set("hourly", "temperature_2m,weather_code,precipitation_probability")
	params.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max,sunrise,sunset")
	params.Set("temperature_unit", tempUnit)
	params.Set("wind_speed_unit", windUnit)
	params.Set("timezone", "auto")
	params.Set("forecast_days", "7")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/forecast?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var data forecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("malformed forecast response: %w", err)
	}

	description, icon := WeatherDescription(data.Current.WeatherCode)
	current := domain.CurrentWeather{
		Temperature:   data.Current.Temperature2m,
		FeelsLike:     data.Current.ApparentTemperature,
		Humidity:      data.Current.RelativeHumidity2m,
		WindSpeed:     data.Current.WindSpeed10m,
		WindDirection: data.Current.WindDirection10m,
		WeatherCode:   data.Current.WeatherCode,
		Description:   description,
		Icon:          icon,
	}

	// Next 24 hours
	hours := len(data.Hourly.Time)
	if hours > 24 {
		hours = 24
	}
	hourly := make([]domain.HourlyForecast, 0, hours)
	for i := 0; i < hours; i++ {
		hourly = append(hourly, domain.HourlyForecast{
			Time:                     data.Hourly.Time[i],
			Temperature:              data.Hourly.Temperature2m[i],
			WeatherCode:              data.Hourly.WeatherCode[i],
			PrecipitationProbability: derefOrZero(data.Hourly.PrecipitationProbability, i),
		})
	}

	daily := make([]domain.DailyForecast, 0, len(data.Daily.Time))
	for i := range data.Daily.Time {
		desc, _ := WeatherDescription(data.Daily.WeatherCode[i])
		daily = append(daily, domain.DailyForecast{
			Date:                     data.Daily.Time[i],
			TempMax:                  data.Daily.Temperature2mMax[i],
			TempMin:                  data.Daily.Temperature2mMin[i],
			WeatherCode:              data.Daily.WeatherCode[i],
			Description:              desc,
			PrecipitationProbability: derefOrZero(data.Daily.PrecipitationProbabilityMax, i),
			Sunrise:                  data.Daily.Sunrise[i],
			Sunset:                   data.Daily.Sunset[i],
		})
	}

	return &domain.WeatherReport{
		Lat:       lat,
		Lon:       lon,
		Current:   current,
		Hourly:    hourly,
		Daily:     daily,
		Timezone:  orDefault(data.Timezone, "UTC"),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// derefOrZero reads an optional probability; the API reports null for hours
// without data.
func derefOrZero(values []*int, i int) int {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
