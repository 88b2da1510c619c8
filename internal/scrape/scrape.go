// Package scrape reads candidate lists and quotes from Japanese finance sites.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"YuutaiSentinel/internal/breaker"
	"YuutaiSentinel/internal/httpclient"
	"YuutaiSentinel/internal/metrics"
)

// ErrNotFound is returned when a page or an element is missing.
var ErrNotFound = errors.New("scrape: not found")

// Option configures a scraper.
type Option func(*source)

type source struct {
	baseURL  string
	client   *http.Client
	breakers *breaker.Registry
	metrics  *metrics.Metrics
}

// WithBaseURL overrides the site root.
func WithBaseURL(u string) Option {
	return func(s *source) { s.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *source) { s.client = c }
}

// WithBreakers guards requests with the shared breaker registry.
func WithBreakers(r *breaker.Registry) Option {
	return func(s *source) { s.breakers = r }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *source) { s.metrics = m }
}

func newSource(baseURL string, opts []Option) source {
	s := source{
		baseURL: baseURL,
		client:  httpclient.New("", httpclient.DefaultTimeout),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// document GETs url through the named breaker and parses it.
func (s *source) document(ctx context.Context, name, url string) (*goquery.Document, error) {
	start := time.Now()
	doc, err := breaker.Do(ctx, s.breakers, name, func() (*goquery.Document, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", httpclient.UserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		return goquery.NewDocumentFromReader(resp.Body)
	})
	if s.metrics != nil {
		s.metrics.ObserveFetch(name, start, err)
	}
	return doc, err
}
