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

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/metrics"
	"github.com/sartorproj/fluxcast/timeseries"
)

const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	dailyVariables = "temperature_2m_max,temperature_2m_min,precipitation_sum"
)

// ErrExternalFetch is returned when the weather API cannot be reached or
// answers with an unusable payload.
var ErrExternalFetch = errors.New("weather: external fetch failed")

// Location is a point on the map.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DefaultLocation is the site the outlets belong to.
var DefaultLocation = Location{Latitude: 43.716667, Longitude: -1.05}

// Day is one day of weather. Missing measurements are NaN.
type Day struct {
	Date           time.Time
	TemperatureMax float64
	TemperatureMin float64
	Precipitation  float64
}

// Client talks to the Open-Meteo forecast and archive endpoints.
type Client struct {
	ForecastURL string
	ArchiveURL  string
	Location    Location
	HTTPClient  *http.Client
	Limiter     *rate.Limiter
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// NewClient creates a client for loc with default endpoints, a 15 second
// request timeout and a limit of 10 requests per second.
func NewClient(loc Location) *Client {
	return &Client{
		ForecastURL: DefaultForecastURL,
		ArchiveURL:  DefaultArchiveURL,
		Location:    loc,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		Limiter: rate.NewLimiter(rate.Limit(10), 10),
		Logger:  zerolog.Nop(),
	}
}

// Forecast returns the daily forecast for [start, end].
func (c *Client) Forecast(ctx context.Context, start, end time.Time) ([]Day, error) {
	days, err := c.daily(ctx, c.ForecastURL, start, end)
	c.Metrics.ObserveWeatherCall("forecast", err)
	return days, err
}

// Archive returns the observed daily weather for [start, end].
func (c *Client) Archive(ctx context.Context, start, end time.Time) ([]Day, error) {
	days, err := c.daily(ctx, c.ArchiveURL, start, end)
	c.Metrics.ObserveWeatherCall("archive", err)
	return days, err
}

type dailyResponse struct {
	Daily struct {
		Time           []string   `json:"time"`
		TemperatureMax []*float64 `json:"temperature_2m_max"`
		TemperatureMin []*float64 `json:"temperature_2m_min"`
		Precipitation  []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

func (c *Client) daily(ctx context.Context, endpoint string, start, end time.Time) ([]Day, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(c.Location.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(c.Location.Longitude, 'f', -1, 64))
	params.Set("start_date", timeseries.FormatDate(calendar.Normalize(start)))
	params.Set("end_date", timeseries.FormatDate(calendar.Normalize(end)))
	params.Set("daily", dailyVariables)
	params.Set("timezone", "auto")

	var resp dailyResponse
	if err := c.request(ctx, endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFetch, err)
	}

	days := make([]Day, 0, len(resp.Daily.Time))
	for i, ts := range resp.Daily.Time {
		date, err := timeseries.ParseDate(ts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalFetch, err)
		}
		days = append(days, Day{
			Date:           date,
			TemperatureMax: value(resp.Daily.TemperatureMax, i),
			TemperatureMin: value(resp.Daily.TemperatureMin, i),
			Precipitation:  value(resp.Daily.Precipitation, i),
		})
	}
	return days, nil
}

// request performs a GET on endpoint and decodes the JSON response.
func (c *Client) request(ctx context.Context, endpoint string, params url.Values, response interface{}) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.New("unexpected status code: " + res.Status)
	}

	c.Logger.Debug().
		Str("endpoint", endpoint).
		Str("start", params.Get("start_date")).
		Str("end", params.Get("end_date")).
		Msg("weather request")

	return json.Unmarshal(body, response)
}

func value(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return math.NaN()
	}
	return *values[i]
}
