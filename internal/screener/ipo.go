package screener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"YuutaiSentinel/internal/calculator"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/trace"
)

// IPORequest screens past listings by their move since listing.
type IPORequest struct {
	Years     []int
	Threshold float64
	Mode      calculator.ThresholdMode
	Markets   []string // market codes; empty keeps every market
	Enrich    bool     // fetch overview and forecast PER for survivors
}

// IPOScreen returns the listings whose since-listing change passes the threshold, largest move first.
func (s *Service) IPOScreen(ctx context.Context, req IPORequest) ([]model.IPOStock, error) {
	if s.ipo == nil || s.series == nil {
		return nil, errors.New("ipo screen needs ipo and series sources")
	}
	if len(req.Markets) > 0 && s.fundamentals == nil {
		return nil, errors.New("market filter needs a fundamentals source")
	}
	start := time.Now()
	ctx, span := trace.StartSpan(ctx, "screener.IPOScreen",
		attribute.IntSlice("years", req.Years),
		attribute.Float64("threshold", req.Threshold),
		attribute.String("mode", string(req.Mode)),
	)
	defer span.End()

	type listing struct {
		code string
		year int
	}
	var listings []listing
	for _, y := range req.Years {
		codes, err := s.ipo.Codes(ctx, y)
		if err != nil {
			trace.Fail(span, err)
			return nil, fmt.Errorf("ipo codes %d: %w", y, err)
		}
		for _, c := range codes {
			listings = append(listings, listing{code: c, year: y})
		}
	}

	markets := make(map[string]bool, len(req.Markets))
	for _, m := range req.Markets {
		markets[m] = true
	}

	var (
		mu  sync.Mutex
		out []model.IPOStock
	)
	now := s.now()
	forEach(ctx, s.concurrency, len(listings), func(ctx context.Context, i int) {
		l := listings[i]
		stock := model.IPOStock{Code: l.code}
		if len(markets) > 0 {
			infos, err := s.fundamentals.ListedInfo(ctx, l.code)
			if err != nil || len(infos) == 0 || !markets[infos[0].MarketCode] {
				return
			}
			stock.Name = infos[0].CompanyName
			stock.Market = infos[0].MarketCode
		}
		series, err := s.series.Collect(ctx, symbol(l.code), model.Day(l.year, time.January, 1), now)
		if err != nil {
			log.Printf("[WARN] ipo %s: %v", l.code, err)
			return
		}
		pct := calculator.SinceListingChange(series)
		if pct == nil || !req.Mode.Passes(*pct, req.Threshold) {
			return
		}
		shown := calculator.RoundPercent(*pct)
		stock.SinceListing = &shown
		stock.ListedOn = firstDay(series)
		if req.Enrich && s.quotes != nil {
			s.enrich(ctx, &stock)
		}
		mu.Lock()
		out = append(out, stock)
		mu.Unlock()
	})
	if err := ctx.Err(); err != nil {
		trace.Fail(span, err)
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if *out[i].SinceListing != *out[j].SinceListing {
			return *out[i].SinceListing > *out[j].SinceListing
		}
		return out[i].Code < out[j].Code
	})
	s.observe("ipo", start, len(out))
	return out, nil
}

// enrich fills overview and PER. Failures leave the fields empty.
func (s *Service) enrich(ctx context.Context, stock *model.IPOStock) {
	if ov, err := s.quotes.Overview(ctx, stock.Code); err == nil {
		stock.Overview = ov
	}
	if per, err := s.quotes.PER(ctx, stock.Code); err == nil {
		stock.PER = &per
	}
}

func firstDay(series model.PriceSeries) time.Time {
	var first time.Time
	for _, b := range series {
		if b.AdjClose == nil {
			continue
		}
		if first.IsZero() || b.Date.Before(first) {
			first = b.Date
		}
	}
	return first
}
