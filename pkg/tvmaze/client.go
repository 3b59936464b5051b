// Package tvmaze provides the upstream TVMaze API client with client-side
// rate limiting, error classification, and bounded retry.
package tvmaze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bingefriend/episode-importer/pkg/retry"
)

// Prometheus metrics for upstream API operations.
var (
	tvmazeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvmaze_requests_total",
		Help: "Total TVMaze requests by endpoint and status",
	}, []string{"endpoint", "status"})

	tvmazeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tvmaze_request_duration_seconds",
		Help:    "TVMaze request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	tvmazeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvmaze_errors_total",
		Help: "Total TVMaze errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the upstream API root.
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RequestsPerSecond caps the client-side request rate. The upstream
	// enforces roughly 20 requests per 10 seconds per address.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size.
	Burst int

	// Retry bounds retries of transient upstream failures.
	Retry retry.Policy
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.tvmaze.com",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		Burst:             10,
		Retry:             retry.DefaultPolicy(),
	}
}

// Client is the TVMaze API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retry      retry.Policy
	logger     zerolog.Logger
}

// New creates a TVMaze client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}

	// Only transient upstream failures are worth another attempt.
	cfg.Retry.Retryable = func(err error) bool {
		if apiErr, ok := err.(*APIError); ok {
			return shouldRetry(apiErr.ErrorClass)
		}
		return true
	}

	logger := log.With().Str("component", "tvmaze-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retry:   cfg.Retry,
		logger:  logger,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// get performs a rate-limited GET with retry on transient failures and
// returns the response body. A 404 comes back as an APIError with
// ErrorClassClient; callers that treat it as "no data" check NotFound.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		tvmazeRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retry.Do(ctx, c.retry, "tvmaze_get", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &APIError{ErrorClass: ErrorClassNetwork, Endpoint: endpoint, Message: "rate limiter wait", Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			tvmazeErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			tvmazeRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Request failed")
			return &APIError{ErrorClass: ErrorClassNetwork, Endpoint: endpoint, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		tvmazeRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			errClass := classifyStatus(resp.StatusCode)
			tvmazeErrorsTotal.WithLabelValues(string(errClass)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status_code", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Upstream error response")
			return &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Endpoint:   endpoint,
				Message:    resp.Status,
			}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			tvmazeErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &APIError{ErrorClass: ErrorClassNetwork, Endpoint: endpoint, Message: "read body", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// classifyStatus categorizes an HTTP status for observability and retry.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// NotFound reports whether an error is an upstream 404, however deeply
// wrapped.
func NotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Episodes fetches all episodes of a show. A show with no episodes yields
// an empty slice.
func (c *Client) Episodes(ctx context.Context, showID int) ([]Episode, error) {
	endpoint := fmt.Sprintf("/shows/%d/episodes", showID)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch episodes for show %d: %w", showID, err)
	}

	var episodes []Episode
	if err := json.Unmarshal(body, &episodes); err != nil {
		return nil, fmt.Errorf("decode episodes for show %d: %w", showID, err)
	}

	c.logger.Debug().
		Int("show_id", showID).
		Int("episodes", len(episodes)).
		Msg("Fetched episodes")

	return episodes, nil
}

// Updates fetches show update timestamps for the given window, keyed by
// show id.
func (c *Client) Updates(ctx context.Context, period Period) (map[int]int64, error) {
	endpoint := "/updates/shows?since=" + string(period)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch updates (%s): %w", period, err)
	}

	// The upstream keys this object by decimal show id.
	var raw map[string]int64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode updates (%s): %w", period, err)
	}

	updates := make(map[int]int64, len(raw))
	for key, ts := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			c.logger.Warn().Str("show_key", key).Msg("Skipping non-numeric show key in updates")
			continue
		}
		updates[id] = ts
	}

	c.logger.Debug().
		Str("period", string(period)).
		Int("shows", len(updates)).
		Msg("Fetched updates")

	return updates, nil
}
