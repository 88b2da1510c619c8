// Package jquants is a client for the J-Quants market data API.
package jquants

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"YuutaiSentinel/internal/breaker"
	"YuutaiSentinel/internal/httpclient"
	"YuutaiSentinel/internal/metrics"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.jquants.com"

	// DefaultRateLimit is requests per second across all endpoints.
	DefaultRateLimit = 2

	// idTokenTTL is kept under the 24h server-side lifetime.
	idTokenTTL = 23 * time.Hour
)

// ErrUnauthorized is returned when credentials are missing or rejected.
var ErrUnauthorized = errors.New("jquants: unauthorized")

// APIError is a non-200 response.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jquants %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Client talks to J-Quants. It is safe for concurrent use.
type Client struct {
	baseURL    string
	mail       string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   *breaker.Registry
	metrics    *metrics.Metrics

	authMu    sync.Mutex // serializes token refresh
	mu        sync.Mutex
	idToken   string
	expiresAt time.Time
	now       func() time.Time
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), rps) }
}

// WithBreakers guards requests with the shared breaker registry.
func WithBreakers(r *breaker.Registry) ClientOption {
	return func(c *Client) { c.breakers = r }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithIDToken skips authentication and uses a pre-issued id token.
func WithIDToken(token string) ClientOption {
	return func(c *Client) {
		c.idToken = token
		c.expiresAt = time.Now().Add(idTokenTTL)
	}
}

// NewClient creates a client for the given account.
func NewClient(mail, password string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		mail:       mail,
		password:   password,
		httpClient: httpclient.New("", httpclient.DefaultTimeout),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate exchanges mail/password for a refresh token, then for an id token.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.mail == "" || c.password == "" {
		return fmt.Errorf("%w: mail and password are required", ErrUnauthorized)
	}

	var refresh struct {
		RefreshToken string `json:"refreshToken"`
	}
	body, _ := json.Marshal(map[string]string{"mailaddress": c.mail, "password": c.password})
	if err := c.do(ctx, http.MethodPost, "/v1/token/auth_user", nil, body, "", &refresh); err != nil {
		return fmt.Errorf("auth_user: %w", err)
	}
	if refresh.RefreshToken == "" {
		return fmt.Errorf("%w: empty refresh token", ErrUnauthorized)
	}

	var id struct {
		IDToken string `json:"idToken"`
	}
	params := url.Values{"refreshtoken": {refresh.RefreshToken}}
	if err := c.do(ctx, http.MethodPost, "/v1/token/auth_refresh", params, nil, "", &id); err != nil {
		return fmt.Errorf("auth_refresh: %w", err)
	}
	if id.IDToken == "" {
		return fmt.Errorf("%w: empty id token", ErrUnauthorized)
	}

	c.mu.Lock()
	c.idToken = id.IDToken
	c.expiresAt = c.now().Add(idTokenTTL)
	c.mu.Unlock()
	log.Println("[INFO] jquants: id token refreshed")
	return nil
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idToken, c.idToken != "" && c.now().Before(c.expiresAt)
}

// token returns a valid id token. Concurrent callers share one refresh.
func (c *Client) token(ctx context.Context) (string, error) {
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	tok, _ := c.cachedToken()
	return tok, nil
}

// get performs an authenticated GET. A 401 drops the cached token and retries once.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	for attempt := 0; ; attempt++ {
		tok, err := c.token(ctx)
		if err != nil {
			return err
		}
		err = c.do(ctx, http.MethodGet, path, params, nil, tok, result)
		var apiErr *APIError
		if attempt == 0 && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			c.idToken = ""
			c.mu.Unlock()
			continue
		}
		return err
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, idToken string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	start := time.Now()
	_, err := breaker.Do(ctx, c.breakers, breaker.JQuants, func() (struct{}, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, rd)
		if err != nil {
			return struct{}{}, fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idToken != "" {
			req.Header.Set("Authorization", "Bearer "+idToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(resp.Body)
			return struct{}{}, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Message: string(msg)}
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return struct{}{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return struct{}{}, nil
	})
	if c.metrics != nil {
		c.metrics.ObserveFetch(breaker.JQuants, start, err)
	}
	return err
}
