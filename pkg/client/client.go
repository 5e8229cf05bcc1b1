// Package client provides the IGDB HTTP client: it authenticates once,
// paces calls through the rate limiter and walks catalogue endpoints in
// parallel batches.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/auth"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/logging"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/pagination"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/ratelimit"
)

// DefaultBaseURL is the IGDB v4 API root.
const DefaultBaseURL = "https://api.igdb.com/v4/"

// DefaultTimeout bounds every HTTP call.
const DefaultTimeout = 10 * time.Second

// Prometheus metrics for IGDB client operations.
var (
	igdbRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igdb_requests_total",
		Help: "Total IGDB requests by resource and status",
	}, []string{"resource", "status"})

	igdbRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "igdb_request_duration_seconds",
		Help:    "IGDB request duration in seconds by resource",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	igdbErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igdb_errors_total",
		Help: "Total IGDB errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of failed calls.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the IGDB client. It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	token   auth.AccessToken
	limiter *ratelimit.Limiter
	driver  *pagination.Driver
	config  Config
	logger  zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Twitch application credentials (REQUIRED)
	ClientID     string
	ClientSecret string

	// Endpoints
	TokenURL string
	BaseURL  string

	// Timeout per HTTP call
	Timeout time.Duration

	// Redis client for sharing the request ceiling across processes.
	// Optional: without it the ceiling is enforced per process only.
	Redis *redis.Client

	// RequestsPerSecond is the request ceiling (IGDB allows 4)
	RequestsPerSecond int

	// Pagination
	Pagination pagination.DriverConfig

	// HTTPClient replaces the underlying transport (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns the upstream-compatible configuration.
func DefaultConfig(clientID, clientSecret string) Config {
	return Config{
		ClientID:          clientID,
		ClientSecret:      clientSecret,
		TokenURL:          auth.DefaultTokenURL,
		BaseURL:           DefaultBaseURL,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: ratelimit.DefaultRequestsPerSecond,
		Pagination:        pagination.DefaultDriverConfig(),
	}
}

// New validates cfg, obtains an access token and returns a ready client.
// The token is kept for the lifetime of the client and never refreshed.
// Token failures are returned as *auth.AuthenticationError.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidConfig)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client secret is required", ErrInvalidConfig)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = auth.DefaultTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = ratelimit.DefaultRequestsPerSecond
	}

	logger := logging.NewLogger(logging.ComponentClient)

	provider := auth.NewProvider(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Timeout:      cfg.Timeout,
	}, logger)
	if cfg.HTTPClient != nil {
		provider.SetHTTPClient(cfg.HTTPClient)
	}

	token, err := provider.ObtainAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	c := &Client{
		token:   token,
		limiter: ratelimit.NewLimiter(cfg.Redis, cfg.RequestsPerSecond, logger),
		config:  cfg,
		logger:  logger,
	}
	c.http = c.newHTTPClient()
	c.driver = pagination.NewDriver(c, cfg.Pagination)

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Int("requests_per_second", cfg.RequestsPerSecond).
		Bool("shared_rate_limit", cfg.Redis != nil).
		Time("token_expires_at", token.ExpiresAt()).
		Msg("IGDB client ready")

	return c, nil
}

func (c *Client) newHTTPClient() *resty.Client {
	var rc *resty.Client
	if c.config.HTTPClient != nil {
		// resty sets Timeout and CheckRedirect on the client it wraps.
		hc := *c.config.HTTPClient
		rc = resty.NewWithClient(&hc)
	} else {
		rc = resty.New()
	}

	return rc.
		SetBaseURL(c.config.BaseURL).
		SetTimeout(c.config.Timeout).
		SetHeader("Client-ID", c.config.ClientID).
		SetHeader("Accept", "application/json").
		SetAuthToken(c.token.Token).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			c.logger.Debug().
				Str("url", resp.Request.URL).
				Int("status", resp.StatusCode()).
				Dur("duration", resp.Time()).
				Msg("IGDB response")
			return nil
		})
}

// FetchPage posts body to the endpoint of kind and returns the raw response
// body. Non-2xx answers are returned as *APIError; no call is retried.
func (c *Client) FetchPage(ctx context.Context, kind catalog.ResourceKind, body string) ([]byte, error) {
	resource := kind.String()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	startTime := time.Now()
	defer func() {
		igdbRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("resource", resource).
		Str("body", body).
		Msg("Executing IGDB request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(body).
		Post(resource)
	if err != nil {
		class := c.classifyError(0, err)
		igdbErrorsTotal.WithLabelValues(string(class)).Inc()
		igdbRequestsTotal.WithLabelValues(resource, "network_error").Inc()
		c.logger.Warn().Err(err).Str("resource", resource).Msg("IGDB request failed")
		return nil, fmt.Errorf("post %s: %w", resource, err)
	}

	status := strconv.Itoa(resp.StatusCode())
	igdbRequestsTotal.WithLabelValues(resource, status).Inc()

	if !resp.IsSuccess() {
		class := c.classifyError(resp.StatusCode(), nil)
		igdbErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("resource", resource).
			Int("status", resp.StatusCode()).
			Str("error_class", string(class)).
			Msg("IGDB request error")
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Class:      class,
			Body:       resp.Body(),
		}
	}

	return resp.Body(), nil
}

// classifyError categorizes a failed call for observability.
func (c *Client) classifyError(statusCode int, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

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

// FetchBatch issues one parallel batch starting at offset.
func (c *Client) FetchBatch(ctx context.Context, kind catalog.ResourceKind, query string, offset int) ([]pagination.RawPage, error) {
	return pagination.NewBatchFetcher(c).FetchBatch(ctx, kind, query, offset)
}

// FetchAll returns every record of kind matched by query.
func (c *Client) FetchAll(ctx context.Context, kind catalog.ResourceKind, query string) ([]catalog.Object, error) {
	return c.driver.FetchAll(ctx, kind, query)
}

// Each streams the records of kind matched by query batch by batch.
func (c *Client) Each(ctx context.Context, kind catalog.ResourceKind, query string, fn func([]catalog.Object) error) error {
	return c.driver.Each(ctx, kind, query, fn)
}

// Token returns the access token obtained at construction.
func (c *Client) Token() auth.AccessToken {
	return c.token
}

// Limiter returns the rate limiter guarding outgoing calls.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}
