package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"YuutaiSentinel/internal/cache"
	"YuutaiSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Series map[string]model.PriceSeries // per symbol; generated when absent
	Err    error
	calls  atomic.Int32
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls reports how many fetches were attempted.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, from, to time.Time) (model.PriceSeries, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if s, ok := m.Series[symbol]; ok {
		return window(s, from, to), nil
	}
	if m.Price <= 0 {
		return nil, ErrNoData
	}
	return generateMockBars(m.Price, from, to), nil
}

func window(s model.PriceSeries, from, to time.Time) model.PriceSeries {
	from, to = model.DayOf(from), model.DayOf(to)
	out := make(model.PriceSeries, 0, len(s))
	for _, b := range s {
		d := model.DayOf(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// generateMockBars emits one weekday bar per day in [from, to] with a slow upward drift.
func generateMockBars(basePrice float64, from, to time.Time) model.PriceSeries {
	var bars model.PriceSeries
	i := 0
	for d := model.DayOf(from); !d.After(model.DayOf(to)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i)*0.001)
		bars = append(bars, model.PriceBar{
			Date:     d,
			Open:     model.Float(p * 0.999),
			High:     model.Float(p * 1.005),
			Low:      model.Float(p * 0.995),
			Close:    model.Float(p),
			AdjClose: model.Float(p),
			Volume:   model.Int(1000000),
		})
		i++
	}
	return bars
}

// Collector tries each fetcher in order and caches completed windows.
type Collector struct {
	Fetchers []Fetcher
	Cache    cache.KV // optional
	now      func() time.Time
}

// NewCollector creates a Collector. The first fetcher is the primary source.
func NewCollector(kv cache.KV, fetchers ...Fetcher) *Collector {
	return &Collector{Fetchers: fetchers, Cache: kv, now: time.Now}
}

type cachedBar struct {
	Date     string   `json:"d"`
	Open     *float64 `json:"o,omitempty"`
	High     *float64 `json:"h,omitempty"`
	Low      *float64 `json:"l,omitempty"`
	Close    *float64 `json:"c,omitempty"`
	AdjClose *float64 `json:"a,omitempty"`
	Volume   *int64   `json:"v,omitempty"`
}

func cacheKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("series.%s.%s.%s", symbol, model.DayOf(from).Format("20060102"), model.DayOf(to).Format("20060102"))
}

// Collect fetches daily bars for symbol over [from, to].
// Windows ending before today are immutable and served from cache when present.
func (c *Collector) Collect(ctx context.Context, symbol string, from, to time.Time) (model.PriceSeries, error) {
	if len(c.Fetchers) == 0 {
		return nil, errors.New("collector: no fetchers configured")
	}
	cacheable := c.Cache != nil && model.DayOf(to).Before(model.DayOf(c.now()))
	key := cacheKey(symbol, from, to)
	if cacheable {
		if s, ok := c.load(key); ok {
			return s, nil
		}
	}

	var errs []error
	for _, f := range c.Fetchers {
		series, err := f.FetchDailyBars(ctx, symbol, from, to)
		if err == nil && len(series) == 0 {
			err = ErrNoData
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[WARN] %s fetch %s failed: %v", f.Name(), symbol, err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		if cacheable {
			c.store(key, series)
		}
		return series, nil
	}
	return nil, fmt.Errorf("fetch %s: %w", symbol, errors.Join(errs...))
}

func (c *Collector) load(key string) (model.PriceSeries, bool) {
	raw, ok, err := c.Cache.Get(key)
	if err != nil || !ok {
		return nil, false
	}
	var rows []cachedBar
	if err := json.Unmarshal(raw, &rows); err != nil {
		log.Printf("[WARN] drop corrupt cache entry %s: %v", key, err)
		_ = c.Cache.Delete(key)
		return nil, false
	}
	series := make(model.PriceSeries, 0, len(rows))
	for _, r := range rows {
		d, err := time.ParseInLocation("2006-01-02", r.Date, model.JST)
		if err != nil {
			continue
		}
		series = append(series, model.PriceBar{
			Date: d, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, AdjClose: r.AdjClose, Volume: r.Volume,
		})
	}
	return series, len(series) > 0
}

func (c *Collector) store(key string, series model.PriceSeries) {
	rows := make([]cachedBar, len(series))
	for i, b := range series {
		rows[i] = cachedBar{
			Date: model.DayOf(b.Date).Format("2006-01-02"),
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, AdjClose: b.AdjClose, Volume: b.Volume,
		}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.Cache.Set(key, raw); err != nil {
		log.Printf("[WARN] cache %s: %v", key, err)
	}
}
