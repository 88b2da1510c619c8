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
	"YuutaiSentinel/internal/recorder"
	"YuutaiSentinel/internal/trace"
)

// DefaultMinYield is the FCF yield a stock must beat to be listed.
const DefaultMinYield = 10.0

// priceLookbackDays covers long holiday runs when looking for the last close.
const priceLookbackDays = 14

// screenedMarkets are the Prime, Standard and Growth market codes.
var screenedMarkets = map[string]bool{"0111": true, "0112": true, "0113": true}

// FCFRequest configures a market-wide FCF yield screen.
type FCFRequest struct {
	MinYield         float64
	SubtractTreasury bool
	Sector33         string // optional filter
	Limit            int    // caps the result list; 0 keeps everything
}

// Screenable reports whether a listed issue is an operating company on a screened market.
func Screenable(info model.ListedInfo, sector33 string) bool {
	if info.Sector17Code == "99" || info.Sector33Code == "9999" {
		return false
	}
	if !screenedMarkets[info.MarketCode] {
		return false
	}
	return sector33 == "" || info.Sector33Code == sector33
}

// Sectors lists the 33-industry sectors that can filter FCFScreen.
func (s *Service) Sectors(ctx context.Context) ([]model.Sector33, error) {
	if s.fundamentals == nil {
		return nil, errors.New("sectors need a fundamentals source")
	}
	infos, err := s.fundamentals.ListedInfo(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listed info: %w", err)
	}
	return model.ExtractSectors(infos), nil
}

// FCFScreen returns the issues whose FCF yield exceeds MinYield, highest first.
func (s *Service) FCFScreen(ctx context.Context, req FCFRequest) ([]model.FCFYieldRecord, error) {
	if s.fundamentals == nil || s.series == nil {
		return nil, errors.New("fcf screen needs fundamentals and series sources")
	}
	start := time.Now()
	ctx, span := trace.StartSpan(ctx, "screener.FCFScreen",
		attribute.Float64("min_yield", req.MinYield),
		attribute.String("sector33", req.Sector33),
	)
	defer span.End()

	infos, err := s.fundamentals.ListedInfo(ctx, "")
	if err != nil {
		trace.Fail(span, err)
		return nil, fmt.Errorf("listed info: %w", err)
	}
	var issues []model.ListedInfo
	for _, info := range infos {
		if Screenable(info, req.Sector33) {
			issues = append(issues, info)
		}
	}
	log.Printf("[INFO] fcf screen: %d of %d issues eligible", len(issues), len(infos))

	var (
		mu  sync.Mutex
		out []model.FCFYieldRecord
	)
	forEach(ctx, s.concurrency, len(issues), func(ctx context.Context, i int) {
		rec, err := s.latestFCF(ctx, issues[i], req.SubtractTreasury)
		if err != nil {
			log.Printf("[WARN] fcf %s: %v", issues[i].Code, err)
			return
		}
		if !(rec.FCFYieldPercent > req.MinYield) {
			return
		}
		mu.Lock()
		out = append(out, rec)
		mu.Unlock()
	})
	if err := ctx.Err(); err != nil {
		trace.Fail(span, err)
		return nil, err
	}

	calculator.SortByYield(out)
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	s.observe("fcf", start, len(out))

	if err := s.recorder.RecordFCF(&recorder.FCFRun{MinYield: req.MinYield, Records: out}); err != nil {
		log.Printf("[ERROR] record fcf: %v", err)
	}
	return out, nil
}

var errIncomplete = errors.New("no complete statement")

func (s *Service) latestFCF(ctx context.Context, info model.ListedInfo, subtractTreasury bool) (model.FCFYieldRecord, error) {
	stmts, err := s.fundamentals.Statements(ctx, info.Code)
	if err != nil {
		return model.FCFYieldRecord{}, err
	}
	stmt, ok := calculator.LatestCompleteStatement(stmts)
	if !ok {
		return model.FCFYieldRecord{}, errIncomplete
	}
	now := s.now()
	price, err := s.closeOnOrBefore(ctx, shortCode(info.Code), now)
	if err != nil {
		return model.FCFYieldRecord{}, err
	}
	rec, ok := calculator.FCFFromStatement(stmt, price, subtractTreasury)
	if !ok {
		return model.FCFYieldRecord{}, errIncomplete
	}
	rec.Code = shortCode(info.Code)
	rec.Name = info.CompanyName
	return rec, nil
}

// SingleFCF prices the latest complete statement of code at the close of its disclosure day.
func (s *Service) SingleFCF(ctx context.Context, code string, subtractTreasury bool) (model.FCFYieldRecord, error) {
	if s.fundamentals == nil || s.series == nil {
		return model.FCFYieldRecord{}, errors.New("fcf needs fundamentals and series sources")
	}
	ctx, span := trace.StartSpan(ctx, "screener.SingleFCF", attribute.String("code", code))
	defer span.End()

	stmts, err := s.fundamentals.Statements(ctx, code)
	if err != nil {
		trace.Fail(span, err)
		return model.FCFYieldRecord{}, fmt.Errorf("statements %s: %w", code, err)
	}
	stmt, ok := calculator.LatestCompleteStatement(stmts)
	if !ok {
		return model.FCFYieldRecord{}, fmt.Errorf("%s: %w", code, errIncomplete)
	}
	disclosed, err := time.ParseInLocation("2006-01-02", stmt.DisclosedDate, model.JST)
	if err != nil {
		return model.FCFYieldRecord{}, fmt.Errorf("%s: disclosed date %q: %w", code, stmt.DisclosedDate, err)
	}
	price, err := s.closeOnOrBefore(ctx, shortCode(code), disclosed)
	if err != nil {
		trace.Fail(span, err)
		return model.FCFYieldRecord{}, err
	}
	rec, ok := calculator.FCFFromStatement(stmt, price, subtractTreasury)
	if !ok {
		return model.FCFYieldRecord{}, fmt.Errorf("%s: yield undefined at price %.0f", code, price)
	}
	rec.Code = shortCode(code)
	if infos, err := s.fundamentals.ListedInfo(ctx, code); err == nil && len(infos) > 0 {
		rec.Name = infos[0].CompanyName
	}
	return rec, nil
}

// closeOnOrBefore returns the close of the last bar on or before day.
func (s *Service) closeOnOrBefore(ctx context.Context, code string, day time.Time) (float64, error) {
	day = model.DayOf(day)
	series, err := s.series.Collect(ctx, symbol(code), day.AddDate(0, 0, -priceLookbackDays), day)
	if err != nil {
		return 0, err
	}
	bars := make(model.PriceSeries, 0, len(series))
	for _, b := range series {
		if b.Close != nil && !model.DayOf(b.Date).After(day) {
			bars = append(bars, b)
		}
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no close for %s on or before %s", code, day.Format("2006-01-02"))
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return *bars[len(bars)-1].Close, nil
}
