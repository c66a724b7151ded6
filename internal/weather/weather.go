// Package weather looks up forecasts on Open-Meteo and shapes them into the
// payload pushed to the band.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/codec"
)

const (
	GeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	ForecastURL = "https://api.open-meteo.com/v1/forecast"
)

var ErrCityNotFound = errors.New("city not found")

// Unit is the temperature unit requested from the API
type Unit string

const (
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
)

// ParseUnit accepts "celsius", "fahrenheit" or their first letter
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "", "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	}
	return "", fmt.Errorf("unknown temperature unit %q", s)
}

// City is one geocoding match
type City struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

func (c City) String() string {
	s := c.Name
	if c.Admin1 != "" {
		s += ", " + c.Admin1
	}
	if c.Country != "" {
		s += ", " + c.Country
	}
	return s
}

// Client talks to the Open-Meteo APIs
type Client struct {
	geocodeURL  string
	forecastURL string
	httpClient  *http.Client
	logger      *logrus.Logger
	now         func() time.Time
}

func NewClient(logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		geocodeURL:  GeocodeURL,
		forecastURL: ForecastURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		now:    time.Now,
	}
}

// WithBaseURLs points the client at other endpoints
func (c *Client) WithBaseURLs(geocode, forecast string) *Client {
	c.geocodeURL = geocode
	c.forecastURL = forecast
	return c
}

func (c *Client) getJSON(ctx context.Context, base string, q url.Values, out any) error {
	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	c.logger.WithField("url", u.String()).Debug("Weather API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("weather API returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Geocode returns up to five cities matching name
func (c *Client) Geocode(ctx context.Context, name string) ([]City, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "5")
	q.Set("language", "en")
	q.Set("format", "json")

	var result struct {
		Results []City `json:"results"`
	}
	if err := c.getJSON(ctx, c.geocodeURL, q, &result); err != nil {
		return nil, fmt.Errorf("failed to geocode %q: %w", name, err)
	}
	return result.Results, nil
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
	Daily struct {
		Time           []string  `json:"time"`
		WeatherCode    []int     `json:"weathercode"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// Forecast fetches current conditions and the daily forecast for city.
// The band only shows integers, so temperatures are rounded.
func (c *Client) Forecast(ctx context.Context, city City, unit Unit) (codec.Weather, error) {
	if unit == "" {
		unit = Celsius
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(city.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(city.Longitude, 'f', -1, 64))
	q.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min")
	q.Set("current_weather", "true")
	q.Set("temperature_unit", string(unit))
	q.Set("timezone", "auto")

	var data forecastResponse
	if err := c.getJSON(ctx, c.forecastURL, q, &data); err != nil {
		return codec.Weather{}, fmt.Errorf("failed to fetch forecast: %w", err)
	}

	d := data.Daily
	days := min(len(d.Time), len(d.WeatherCode), len(d.TemperatureMax), len(d.TemperatureMin))
	forecast := make([]codec.DayForecast, 0, days)
	for i := 0; i < days; i++ {
		forecast = append(forecast, codec.DayForecast{
			Icon: Icon(d.WeatherCode[i]),
			High: int(math.Round(d.TemperatureMax[i])),
			Low:  int(math.Round(d.TemperatureMin[i])),
			Text: Describe(d.WeatherCode[i]),
		})
	}

	cur := data.CurrentWeather
	return codec.Weather{
		Time:        c.now(),
		City:        city.Name,
		CurrentIcon: Icon(cur.WeatherCode),
		Current:     int(math.Round(cur.Temperature)),
		CurrentText: Describe(cur.WeatherCode),
		Forecast:    forecast,
	}, nil
}

// Lookup geocodes name and fetches the forecast of the best match
func (c *Client) Lookup(ctx context.Context, name string, unit Unit) (codec.Weather, City, error) {
	cities, err := c.Geocode(ctx, name)
	if err != nil {
		return codec.Weather{}, City{}, err
	}
	if len(cities) == 0 {
		return codec.Weather{}, City{}, fmt.Errorf("%w: %q", ErrCityNotFound, name)
	}
	city := cities[0]
	c.logger.WithFields(logrus.Fields{
		"city":      city.String(),
		"latitude":  city.Latitude,
		"longitude": city.Longitude,
	}).Info("Resolved city")

	w, err := c.Forecast(ctx, city, unit)
	return w, city, err
}
