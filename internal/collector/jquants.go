package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"YuutaiSentinel/internal/jquants"
	"YuutaiSentinel/internal/model"
)

// QuoteSource is the part of the J-Quants client the fetcher needs.
type QuoteSource interface {
	DailyQuotes(ctx context.Context, code string, from, to time.Time) ([]model.DailyQuote, error)
}

// JQuantsFetcher implements Fetcher over J-Quants daily quotes. Only Tokyo symbols are served.
type JQuantsFetcher struct {
	Source QuoteSource
}

// NewJQuantsFetcher creates a fetcher backed by client.
func NewJQuantsFetcher(client *jquants.Client) *JQuantsFetcher {
	return &JQuantsFetcher{Source: client}
}

func (f *JQuantsFetcher) Name() string { return "jquants" }

func (f *JQuantsFetcher) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) (model.PriceSeries, error) {
	code, ok := strings.CutSuffix(symbol, model.MarketTokyo.Suffix())
	if !ok {
		return nil, fmt.Errorf("jquants: unsupported symbol %s", symbol)
	}
	quotes, err := f.Source.DailyQuotes(ctx, code, from, to)
	if err != nil {
		return nil, err
	}
	series := jquants.ToSeries(quotes)
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return series, nil
}
