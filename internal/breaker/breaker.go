package breaker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"YuutaiSentinel/internal/metrics"
)

// Names of the guarded upstreams.
const (
	JQuants   = "jquants"
	Yahoo     = "yahoo"
	Kabuyutai = "kabuyutai"
	IPOKiso   = "ipokiso"
	YahooJP   = "yahoo_jp"
)

// ErrUnavailable wraps rejections from an open or saturated breaker.
var ErrUnavailable = errors.New("service unavailable")

// Config holds breaker settings shared by every upstream.
type Config struct {
	MaxRequests uint32        // requests allowed while half-open
	Interval    time.Duration // closed-state count reset period
	Timeout     time.Duration // open-state duration before half-open
	Ignore      []error       // matched with errors.Is; not counted as failures
}

// DefaultConfig trips after five requests with at least half failing.
var DefaultConfig = Config{
	MaxRequests: 3,
	Interval:    time.Minute,
	Timeout:     30 * time.Second,
	Ignore:      []error{context.Canceled},
}

// WithIgnored returns a copy of c that also ignores errs.
func (c Config) WithIgnored(errs ...error) Config {
	c.Ignore = append(slices.Clone(c.Ignore), errs...)
	return c
}

func (c Config) isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	for _, ignored := range c.Ignore {
		if errors.Is(err, ignored) {
			return true
		}
	}
	return false
}

// Registry hands out one breaker per upstream name.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   Config
	metrics  *metrics.Metrics
}

// NewRegistry creates a registry. m may be nil to skip metrics.
func NewRegistry(cfg Config, m *metrics.Metrics) *Registry {
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   cfg,
		metrics:  m,
	}
}

func (r *Registry) get(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:         name,
		MaxRequests:  r.config.MaxRequests,
		Interval:     r.config.Interval,
		Timeout:      r.config.Timeout,
		IsSuccessful: r.config.isSuccessful,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= 5 && float64(c.TotalFailures)/float64(c.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[WARN] circuit breaker %s: %s -> %s", name, from, to)
			if r.metrics != nil {
				r.metrics.SetBreakerState(name, stateToInt(to))
				if to == gobreaker.StateOpen {
					r.metrics.RecordBreakerTrip(name)
				}
			}
		},
	})
	r.breakers[name] = cb
	return cb
}

// State returns the current state name of a breaker.
func (r *Registry) State(name string) string {
	return r.get(name).State().String()
}

// Do runs fn through the named breaker. A ctx cancelled before the call skips
// the breaker; errors listed in Config.Ignore are returned but not counted.
func Do[T any](ctx context.Context, r *Registry, name string, fn func() (T, error)) (T, error) {
	var zero T
	if r == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	res, err := r.get(name).Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%s: %w: %v", name, ErrUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

func stateToInt(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
