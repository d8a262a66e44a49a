package liveaqi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/lox/airaware/internal/cities"
	"github.com/lox/airaware/internal/httputil"
	"github.com/lox/airaware/internal/metrics"
)

const (
	endpointAQI   = "api/aqi"
	endpointIndia = "api/aqi/india"
)

// ErrNotConfigured is returned when no backend URL was configured.
var ErrNotConfigured = errors.New("live backend not configured")

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ForecastEntry is a forecast day as the backend reports it.
type ForecastEntry struct {
	Day       string  `json:"day"`
	Temp      float64 `json:"temp"`
	Condition string  `json:"condition"`
	AQI       float64 `json:"aqi"`
}

// Reading is the backend's current air-quality payload for a location.
type Reading struct {
	Location    string          `json:"location"`
	AQI         float64         `json:"aqi"`
	PM25        *float64        `json:"pm25"`
	PM10        *float64        `json:"pm10"`
	O3          *float64        `json:"o3"`
	NO2         *float64        `json:"no2"`
	SO2         *float64        `json:"so2"`
	CO          *float64        `json:"co"`
	LastUpdated string          `json:"lastUpdated"`
	Forecast    []ForecastEntry `json:"forecast"`

	// Raw is the response body the reading was decoded from.
	Raw []byte `json:"-"`
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// RPS and Burst bound the request rate to the backend. RPS <= 0 disables limiting.
	RPS      float64
	Burst    int
	CacheTTL time.Duration
	// MaxElapsed caps the total time spent retrying one call.
	MaxElapsed     time.Duration
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// Client fetches live readings from the AirAware backend.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	limiter        *rate.Limiter
	cache          *cache.Cache
	maxElapsed     time.Duration
	initialBackoff time.Duration
}

// NewClient creates a client. An empty BaseURL yields a client whose calls
// all fail with ErrNotConfigured, so callers always take the fallback path.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		httpClient:     cfg.HTTPClient,
		maxElapsed:     cfg.MaxElapsed,
		initialBackoff: cfg.InitialBackoff,
	}
	if c.httpClient == nil {
		c.httpClient = httputil.NewClient()
	}
	if c.maxElapsed == 0 {
		c.maxElapsed = 30 * time.Second
	}
	if c.initialBackoff == 0 {
		c.initialBackoff = 500 * time.Millisecond
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse backend url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("backend url %q: scheme must be http or https", cfg.BaseURL)
		}
		c.baseURL = u
	}
	return c, nil
}

// Configured reports whether a backend URL was set.
func (c *Client) Configured() bool {
	return c.baseURL != nil
}

// Fetch returns the current reading for location.
func (c *Client) Fetch(ctx context.Context, location string) (*Reading, error) {
	key := "aqi:" + strings.ToLower(strings.TrimSpace(location))
	if r, ok := c.cached(key); ok {
		return r.(*Reading), nil
	}

	body, err := c.get(ctx, endpointAQI, url.Values{"location": {location}})
	if err != nil {
		return nil, err
	}

	var r Reading
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpointAQI, err)
	}
	if r.AQI < 0 {
		return nil, fmt.Errorf("decode %s: negative aqi %v", endpointAQI, r.AQI)
	}
	if r.Location == "" {
		r.Location = location
	}
	r.Raw = body

	c.store(key, &r)
	return &r, nil
}

// FetchMap returns the backend's India map markers.
func (c *Client) FetchMap(ctx context.Context) ([]cities.MapPoint, error) {
	const key = "map:india"
	if pts, ok := c.cached(key); ok {
		return pts.([]cities.MapPoint), nil
	}

	body, err := c.get(ctx, endpointIndia, nil)
	if err != nil {
		return nil, err
	}

	var pts []cities.MapPoint
	if err := json.Unmarshal(body, &pts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpointIndia, err)
	}

	c.store(key, pts)
	return pts, nil
}

func (c *Client) cached(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return v, ok
}

func (c *Client) store(key string, v any) {
	if c.cache != nil {
		c.cache.Set(key, v, cache.DefaultExpiration)
	}
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if c.baseURL == nil {
		return nil, ErrNotConfigured
	}

	u := c.baseURL.JoinPath(endpoint)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body []byte
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("rate limit wait canceled: %w", err))
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", httputil.UserAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		metrics.BackendLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.BackendCallsTotal.WithLabelValues(endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
		}
		defer resp.Body.Close()

		metrics.BackendCallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
			if serr.Retryable() {
				return serr
			}
			return backoff.Permanent(serr)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxElapsedTime = c.maxElapsed
	notify := func(err error, wait time.Duration) {
		log.Printf("liveaqi: %s failed, retrying in %s: %v", endpoint, wait.Round(time.Millisecond), err)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}
