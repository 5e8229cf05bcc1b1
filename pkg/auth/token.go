// Package auth obtains IGDB bearer tokens through the Twitch OAuth2
// client-credentials grant.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultTokenURL is the Twitch identity endpoint IGDB authenticates against.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// DefaultTimeout bounds a single token request.
const DefaultTimeout = 10 * time.Second

var igdbTokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "igdb_token_requests_total",
	Help: "Total IGDB access token requests by result",
}, []string{"result"})

// AccessToken is the decoded token endpoint response.
type AccessToken struct {
	Token     string `json:"access_token"`
	ExpiresIn int    `json:"expires_in"` // seconds
	TokenType string `json:"token_type"`

	// ObtainedAt is set locally when the token is received.
	ObtainedAt time.Time `json:"-"`
}

// ExpiresAt returns when the upstream stops accepting the token.
func (t AccessToken) ExpiresAt() time.Time {
	return t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Expired reports whether the token lifetime has elapsed at now.
func (t AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}

// AuthenticationError is returned when no token could be obtained.
type AuthenticationError struct {
	// StatusCode is the upstream HTTP status, 0 when no response was received.
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("igdb authentication failed (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("igdb authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ErrEmptyToken is wrapped when the endpoint answers 2xx without a token.
var ErrEmptyToken = errors.New("empty access_token in response")

// Config holds the credentials and endpoint of the token provider.
type Config struct {
	ClientID     string
	ClientSecret string

	// TokenURL defaults to DefaultTokenURL.
	TokenURL string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// Provider performs client-credentials token requests. It does not cache:
// every ObtainAccessToken call hits the endpoint.
type Provider struct {
	http   *resty.Client
	config Config
	logger zerolog.Logger
}

// NewProvider creates a token provider.
func NewProvider(cfg Config, logger zerolog.Logger) *Provider {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Provider{
		http:   resty.New().SetTimeout(cfg.Timeout),
		config: cfg,
		logger: logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client (for testing). hc is
// copied and left unmodified.
func (p *Provider) SetHTTPClient(hc *http.Client) {
	own := *hc
	p.http = resty.NewWithClient(&own).SetTimeout(p.config.Timeout)
}

// upstreamError is the error body of the identity endpoint.
type upstreamError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ObtainAccessToken requests a new bearer token. Any transport failure,
// non-2xx status or malformed body yields an *AuthenticationError.
func (p *Provider) ObtainAccessToken(ctx context.Context) (AccessToken, error) {
	start := time.Now()

	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":     p.config.ClientID,
			"client_secret": p.config.ClientSecret,
			"grant_type":    "client_credentials",
		}).
		SetHeader("Accept", "application/json").
		Post(p.config.TokenURL)
	if err != nil {
		igdbTokenRequestsTotal.WithLabelValues("network_error").Inc()
		p.logger.Error().Err(err).Msg("Token request failed")
		return AccessToken{}, &AuthenticationError{Message: "token request failed", Err: err}
	}

	if !resp.IsSuccess() {
		igdbTokenRequestsTotal.WithLabelValues("rejected").Inc()
		msg := resp.Status()
		var upstream upstreamError
		if json.Unmarshal(resp.Body(), &upstream) == nil && upstream.Message != "" {
			msg = upstream.Message
		}
		p.logger.Error().
			Int("status", resp.StatusCode()).
			Str("message", msg).
			Msg("Token endpoint rejected credentials")
		return AccessToken{}, &AuthenticationError{StatusCode: resp.StatusCode(), Message: msg}
	}

	var token AccessToken
	if err := json.Unmarshal(resp.Body(), &token); err != nil {
		igdbTokenRequestsTotal.WithLabelValues("malformed").Inc()
		return AccessToken{}, &AuthenticationError{
			StatusCode: resp.StatusCode(),
			Message:    "malformed token response",
			Err:        err,
		}
	}
	if token.Token == "" {
		igdbTokenRequestsTotal.WithLabelValues("malformed").Inc()
		return AccessToken{}, &AuthenticationError{
			StatusCode: resp.StatusCode(),
			Message:    "malformed token response",
			Err:        ErrEmptyToken,
		}
	}
	token.ObtainedAt = time.Now()

	igdbTokenRequestsTotal.WithLabelValues("ok").Inc()
	p.logger.Info().
		Int("expires_in", token.ExpiresIn).
		Str("token_type", token.TokenType).
		Dur("duration", time.Since(start)).
		Msg("Obtained IGDB access token")

	return token, nil
}
