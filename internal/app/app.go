// Package app wires the data sources, stores and screener shared by the bot
// and the command-line screener.
package app

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"YuutaiSentinel/internal/breaker"
	"YuutaiSentinel/internal/cache"
	"YuutaiSentinel/internal/collector"
	"YuutaiSentinel/internal/config"
	"YuutaiSentinel/internal/httpclient"
	"YuutaiSentinel/internal/jquants"
	"YuutaiSentinel/internal/metrics"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
	"YuutaiSentinel/internal/screener"
	"YuutaiSentinel/internal/scrape"
)

// Options tunes Build for the calling binary.
type Options struct {
	// NoRecord skips SQLite and keeps state in the JSON cache file only.
	NoRecord bool
}

// App holds everything a screen needs.
type App struct {
	Config   *config.Config
	Screener *screener.Service
	Settings *cache.Settings
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics
	Breakers *breaker.Registry
	KV       cache.KV
}

// Build wires an App from cfg.
func Build(cfg *config.Config, opts Options) (*App, error) {
	m := metrics.Get()
	breakers := breaker.NewRegistry(breaker.DefaultConfig.WithIgnored(scrape.ErrNotFound), m)
	client := httpclient.New(cfg.Proxy, httpclient.DefaultTimeout)

	a := &App{Config: cfg, Metrics: m, Breakers: breakers}
	if err := a.openStores(opts); err != nil {
		return nil, err
	}

	yahoo := collector.NewYahooFetcher(cfg.Proxy)
	yahoo.Breakers, yahoo.Metrics = breakers, m
	fetchers := []collector.Fetcher{yahoo}

	deps := screener.Deps{
		Months:      cache.NewMonthCache[[]model.YuutaiCandidate](a.KV),
		Recorder:    a.Recorder,
		Metrics:     m,
		Concurrency: cfg.Screen.Concurrency,
	}

	if cfg.HasJQuants() {
		jq := newJQuants(cfg, client, breakers, m)
		fetchers = append(fetchers, collector.NewJQuantsFetcher(jq))
		deps.Fundamentals = jq
		log.Println("[INFO] J-Quants enabled for fundamentals and fallback prices")
	} else {
		log.Println("[WARN] J-Quants credentials not set, FCF screens and market filters are disabled")
	}
	deps.Series = collector.NewCollector(a.KV, fetchers...)

	scrapeOpts := func(base string) []scrape.Option {
		o := []scrape.Option{scrape.WithHTTPClient(client), scrape.WithBreakers(breakers), scrape.WithMetrics(m)}
		if base != "" {
			o = append(o, scrape.WithBaseURL(base))
		}
		return o
	}
	deps.Candidates = scrape.NewKabuyutai(scrapeOpts(cfg.Sources.Kabuyutai)...)
	deps.IPO = scrape.NewIPOKiso(scrapeOpts(cfg.Sources.IPOKiso)...)
	deps.Quotes = scrape.NewYahooJP(cfg.Sources.Kabuyoho, scrapeOpts(cfg.Sources.YahooJP)...)

	a.Screener = screener.New(deps)

	defaults, err := cfg.SettingsDefaults(time.Now())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("settings defaults: %w", err)
	}
	a.Settings = cache.NewSettings(a.KV, defaults)
	return a, nil
}

func newJQuants(cfg *config.Config, client *http.Client, breakers *breaker.Registry, m *metrics.Metrics) *jquants.Client {
	opts := []jquants.ClientOption{
		jquants.WithHTTPClient(client),
		jquants.WithBreakers(breakers),
		jquants.WithMetrics(m),
	}
	if cfg.JQuants.BaseURL != "" {
		opts = append(opts, jquants.WithBaseURL(cfg.JQuants.BaseURL))
	}
	if cfg.JQuants.RateLimit > 0 {
		opts = append(opts, jquants.WithRateLimit(cfg.JQuants.RateLimit))
	}
	return jquants.NewClient(cfg.JQuants.Mail, cfg.JQuants.Password, opts...)
}

// openStores prefers SQLite for history and key/value state, falling back to
// the JSON cache file when the database cannot be opened.
func (a *App) openStores(opts Options) error {
	if !opts.NoRecord && a.Config.Database.SQLitePath != "" {
		if err := ensureDir(a.Config.Database.SQLitePath); err != nil {
			return err
		}
		sr, err := recorder.NewSQLiteRecorder(a.Config.Database.SQLitePath)
		if err == nil {
			a.Recorder, a.KV = sr, sr
			return nil
		}
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
	}
	a.Recorder = recorder.NewNoopRecorder()

	if err := ensureDir(a.Config.Cache.File); err != nil {
		return err
	}
	kv, err := cache.OpenFileKV(a.Config.Cache.File)
	if err != nil {
		log.Printf("[WARN] open cache file failed, using memory: %v", err)
		a.KV = cache.NewMemoryKV()
		return nil
	}
	a.KV = kv
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// Close releases the recorder.
func (a *App) Close() {
	if a.Recorder == nil {
		return
	}
	if err := a.Recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
}
