// Package screener runs the screening workflows: it gathers series and
// candidate lists from the data sources, fans per-code work out over a
// bounded pool, and hands the results to the recorder.
package screener

import (
	"context"
	"strings"
	"sync"
	"time"

	"YuutaiSentinel/internal/cache"
	"YuutaiSentinel/internal/metrics"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
)

// DefaultConcurrency bounds in-flight per-code fetches.
const DefaultConcurrency = 8

// DefaultHistoryStart is the earliest day requested when no lookback is set.
var DefaultHistoryStart = model.Day(2000, time.January, 1)

// SeriesSource returns daily bars for a quote symbol.
type SeriesSource interface {
	Collect(ctx context.Context, symbol string, from, to time.Time) (model.PriceSeries, error)
}

// CandidateSource lists the benefit candidates of a rights month.
type CandidateSource interface {
	Candidates(ctx context.Context, month time.Month) ([]model.YuutaiCandidate, error)
}

// FundamentalsSource serves listed-issue and statement data.
type FundamentalsSource interface {
	ListedInfo(ctx context.Context, code string) ([]model.ListedInfo, error)
	Statements(ctx context.Context, code string) ([]model.Statement, error)
}

// IPOSource lists the codes that listed in a year.
type IPOSource interface {
	Codes(ctx context.Context, year int) ([]string, error)
}

// QuoteSource serves rankings, intraday quotes and company details.
type QuoteSource interface {
	RankingCodes(ctx context.Context) ([]string, error)
	Quote(ctx context.Context, code string) (model.MomentumStock, error)
	Overview(ctx context.Context, code string) (string, error)
	PER(ctx context.Context, code string) (float64, error)
}

// Deps wires a Service. Nil sources disable the workflows that need them.
type Deps struct {
	Series       SeriesSource
	Candidates   CandidateSource
	Months       *cache.MonthCache[[]model.YuutaiCandidate]
	Fundamentals FundamentalsSource
	IPO          IPOSource
	Quotes       QuoteSource
	Recorder     recorder.Recorder
	Metrics      *metrics.Metrics
	Concurrency  int
	HistoryStart time.Time
}

// Service runs screens. It is safe for concurrent use.
type Service struct {
	series       SeriesSource
	candidates   CandidateSource
	months       *cache.MonthCache[[]model.YuutaiCandidate]
	fundamentals FundamentalsSource
	ipo          IPOSource
	quotes       QuoteSource
	recorder     recorder.Recorder
	metrics      *metrics.Metrics
	concurrency  int
	historyStart time.Time
	now          func() time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		series:       d.Series,
		candidates:   d.Candidates,
		months:       d.Months,
		fundamentals: d.Fundamentals,
		ipo:          d.IPO,
		quotes:       d.Quotes,
		recorder:     d.Recorder,
		metrics:      d.Metrics,
		concurrency:  d.Concurrency,
		historyStart: d.HistoryStart,
		now:          time.Now,
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.historyStart.IsZero() {
		s.historyStart = DefaultHistoryStart
	}
	if s.recorder == nil {
		s.recorder = recorder.NewNoopRecorder()
	}
	return s
}

// forEach calls fn for every index in [0, n) with at most limit calls in flight.
// Indexes not started before ctx is done are skipped.
func forEach(ctx context.Context, limit, n int, fn func(ctx context.Context, i int)) {
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, idx)
		}(i)
	}
	wg.Wait()
}

func (s *Service) observe(kind string, start time.Time, n int) {
	if s.metrics != nil {
		s.metrics.ObserveScreen(kind, start, n)
	}
}

func symbol(code string) string {
	return model.Symbol(code, model.MarketTokyo)
}

// shortCode turns a five-digit J-Quants code such as 33820 into 3382.
func shortCode(code string) string {
	if len(code) == 5 && strings.HasSuffix(code, "0") {
		return code[:4]
	}
	return code
}
