package domain

// CurrentWeather holds present conditions at a location.
type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      int     `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection int     `json:"wind_direction"`
	WeatherCode   int     `json:"weather_code"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
}

// HourlyForecast is one hour of the short-range forecast.
type HourlyForecast struct {
	Time                     string  `json:"time"`
	Temperature              float64 `json:"temperature"`
	WeatherCode              int     `json:"weather_code"`
	PrecipitationProbability int     `json:"precipitation_probability"`
}

// DailyForecast is one day of the week-long forecast.
type DailyForecast struct {
	Date                     string  `json:"date"`
	TempMax                  float64 `json:"temp_max"`
	TempMin                  float64 `json:"temp_min"`
	WeatherCode              int     `json:"weather_code"`
	Description              string  `json:"description"`
	PrecipitationProbability int     `json:"precipitation_probability"`
	Sunrise                  string  `json:"sunrise"`
	Sunset                   string  `json:"sunset"`
}

// WeatherReport is a full forecast response for a location.
type WeatherReport struct {
	Location  string           `json:"location"`
	Lat       float64          `json:"lat"`
	Lon       float64          `json:"lon"`
	Current   CurrentWeather   `json:"current"`
	Hourly    []HourlyForecast `json:"hourly"`
	Daily     []DailyForecast  `json:"daily"`
	Timezone  string           `json:"timezone"`
	UpdatedAt string           `json:"updated_at"`
}

// GeoLocation is one geocoding match.
type GeoLocation struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
}

// AQIReport is an air quality reading. Available is false when no nearby
// station reported data; the zero report is still a valid response.
type AQIReport struct {
	AQI               int      `json:"aqi"`
	Category          string   `json:"category"`
	DominantPollutant string   `json:"dominant_pollutant,omitempty"`
	PM25              *float64 `json:"pm25,omitempty"`
	PM10              *float64 `json:"pm10,omitempty"`
	O3                *float64 `json:"o3,omitempty"`
	NO2               *float64 `json:"no2,omitempty"`
	Available         bool     `json:"available"`
}
