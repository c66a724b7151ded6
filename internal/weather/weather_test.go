package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geocodeBody = `{"results":[
 {"name":"Berlin","country":"Germany","admin1":"Land Berlin","latitude":52.52437,"longitude":13.41053,"timezone":"Europe/Berlin"},
 {"name":"Berlin","country":"United States","admin1":"New Hampshire","latitude":44.46867,"longitude":-71.18508}
]}`

const forecastBody = `{
 "current_weather":{"temperature":17.6,"weathercode":61},
 "daily":{
  "time":["2024-05-04","2024-05-05","2024-05-06"],
  "weathercode":[0,95,1234],
  "temperature_2m_max":[21.4,18.5,-0.4],
  "temperature_2m_min":[9.5,7.2,-5.6]
 }}`

func newTestServer(t *testing.T, queries chan<- map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		q := map[string]string{"path": r.URL.Path}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		select {
		case queries <- q:
		default:
		}
	}
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.URL.Query().Get("name") == "Atlantis" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(geocodeBody))
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte(forecastBody))
	})
	mux.HandleFunc("/broken/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	c := NewClient(testutils.NewTestLogger(t)).WithBaseURLs(srv.URL+"/v1/search", srv.URL+"/v1/forecast")
	c.now = func() time.Time { return time.Date(2024, time.May, 4, 12, 0, 0, 0, time.UTC) }
	return c
}

// TestLookup verifies geocoding and forecast shaping
//
// GOAL: A city name becomes a band weather payload with mapped icons
//
// TEST SCENARIO: Geocode → forecast → rounded temperatures and WMO icon mapping
func TestLookup(t *testing.T) {
	queries := make(chan map[string]string, 4)
	srv := newTestServer(t, queries)
	c := newTestClient(t, srv)

	w, city, err := c.Lookup(context.Background(), "Berlin", Fahrenheit)
	require.NoError(t, err)
	assert.Equal(t, "Berlin, Land Berlin, Germany", city.String(), "best match MUST be the first result")

	geo := <-queries
	assert.Equal(t, "Berlin", geo["name"])
	assert.Equal(t, "5", geo["count"])
	fc := <-queries
	assert.Equal(t, "52.52437", fc["latitude"])
	assert.Equal(t, "fahrenheit", fc["temperature_unit"])
	assert.Equal(t, "true", fc["current_weather"])

	assert.Equal(t, "Berlin", w.City)
	assert.Equal(t, 18, w.Current)
	assert.Equal(t, IconRain4, w.CurrentIcon)
	assert.Equal(t, "Slight rain", w.CurrentText)
	assert.True(t, w.Time.Equal(time.Date(2024, time.May, 4, 12, 0, 0, 0, time.UTC)))

	assert.Equal(t, []codec.DayForecast{
		{Icon: IconSun, High: 21, Low: 10, Text: "Clear sky"},
		{Icon: IconLightningRainCloud, High: 19, Low: 7, Text: "Thunderstorm"},
		{Icon: IconSun, High: 0, Low: -6, Text: "Unknown"},
	}, w.Forecast)

	assert.NotEmpty(t, codec.WeatherPayloads(w), "result MUST encode into band payloads")
}

// TestLookupErrors verifies unknown cities and API failures
func TestLookupErrors(t *testing.T) {
	srv := newTestServer(t, make(chan map[string]string, 8))

	_, _, err := newTestClient(t, srv).Lookup(context.Background(), "Atlantis", Celsius)
	assert.ErrorIs(t, err, ErrCityNotFound)

	broken := NewClient(testutils.NewTestLogger(t)).WithBaseURLs(srv.URL+"/v1/search", srv.URL+"/broken/v1/forecast")
	_, _, err = broken.Lookup(context.Background(), "Berlin", Celsius)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestClient(t, srv).Geocode(ctx, "Berlin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{"": Celsius, "c": Celsius, "celsius": Celsius, "f": Fahrenheit, "fahrenheit": Fahrenheit} {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUnit("kelvin")
	assert.Error(t, err)
}

func TestIconTable(t *testing.T) {
	assert.Equal(t, IconFog, Icon(45))
	assert.Equal(t, IconSnow3, Icon(86))
	assert.Equal(t, IconSun, Icon(-1), "unknown code MUST fall back to the sun")
	assert.Equal(t, "Heavy snow fall", Describe(75))
}
