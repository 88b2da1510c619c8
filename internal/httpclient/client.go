package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

// UserAgent is sent to sites that reject the Go default.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// DefaultTimeout applies when a caller passes zero.
const DefaultTimeout = 30 * time.Second

// New creates an HTTP client with optional proxy support.
func New(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
