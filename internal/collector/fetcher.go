package collector

import (
	"context"
	"errors"
	"time"

	"YuutaiSentinel/internal/model"
)

// ErrNoData is returned when a source answers but has no bars for the window.
var ErrNoData = errors.New("no price data")

// Fetcher defines the interface for fetching daily price series.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) (model.PriceSeries, error)
	Name() string
}
