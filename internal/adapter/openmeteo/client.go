// Package openmeteo is the HTTP adapter for the Open-Meteo forecast API. All
// calls pass through the shared rate limiter before touching the network.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
	"github.com/Zalgo-Dev/WeaRisk/internal/observability"
	"github.com/Zalgo-Dev/WeaRisk/internal/ratelimit"
)

// Fixed request parameters: the four hourly variables risk scoring reads, a
// daily aggregate channel kept for forward compatibility, and a one-day
// horizon in the departments' local timezone.
const (
	hourlyVariables = "temperature_2m,precipitation,wind_gusts_10m,relative_humidity_2m"
	dailyVariables  = "temperature_2m_max,precipitation_sum"
	timezone        = "Europe/Paris"
	forecastDays    = "1"
)

// Client fetches one region's hourly forecast per call. A failed call is
// reported as an error and never retried here; retry policy belongs to the
// caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a forecast client. The timeout bounds the whole HTTP
// round trip; rate-limiter suspension is not counted against it.
func NewClient(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch blocks in the rate limiter until the call is admitted, then performs
// one GET against the forecast endpoint.
func (c *Client) Fetch(ctx context.Context, region domain.Region) (domain.ForecastSeries, error) {
	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("rate limiter: %w", err)
	}
	c.metrics.RateLimitWait.Observe(time.Since(waitStart).Seconds())

	params := url.Values{
		"latitude":      {strconv.FormatFloat(region.Latitude, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(region.Longitude, 'f', -1, 64)},
		"hourly":        {hourlyVariables},
		"daily":         {dailyVariables},
		"timezone":      {timezone},
		"forecast_days": {forecastDays},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+params.Encode(), nil)
	if err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ForecastFetches.WithLabelValues("error").Inc()
		return domain.ForecastSeries{}, fmt.Errorf("forecast request for %s: %w", region.Code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.metrics.ForecastFetches.WithLabelValues("error").Inc()
		return domain.ForecastSeries{}, fmt.Errorf("forecast API error for %s: status %d: %s", region.Code, resp.StatusCode, body)
	}

	var series domain.ForecastSeries
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		c.metrics.ForecastFetches.WithLabelValues("malformed").Inc()
		return domain.ForecastSeries{}, fmt.Errorf("%w: decode response for %s: %v", domain.ErrMalformedSeries, region.Code, err)
	}

	c.metrics.ForecastFetches.WithLabelValues("success").Inc()
	c.logger.Debug("forecast fetched", "department", region.Code, "hours", len(series.Hourly.Time))
	return series, nil
}
