package screener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"YuutaiSentinel/internal/calculator"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
	"YuutaiSentinel/internal/strategy"
	"YuutaiSentinel/internal/trace"
)

// YuutaiRequest asks for the seasonal win rates of one rights month.
type YuutaiRequest struct {
	Month         time.Month
	Purchase      model.CalendarAnchor
	Sale          model.CalendarAnchor
	LookbackYears int // 0 means all history
	Threshold     float64
	Refresh       bool // rescrape candidates even when cached
}

// MonthCandidates returns the month's candidates from cache, scraping on a miss.
func (s *Service) MonthCandidates(ctx context.Context, month time.Month, refresh bool) ([]model.YuutaiCandidate, error) {
	if s.months != nil && !refresh {
		cands, ok, err := s.months.Get(month)
		if err != nil {
			log.Printf("[WARN] month cache %s: %v", model.MonthKey(month), err)
		}
		if ok {
			return cands, nil
		}
	}
	if s.candidates == nil {
		return nil, errors.New("no candidate source configured")
	}
	cands, err := s.candidates.Candidates(ctx, month)
	if err != nil {
		return nil, err
	}
	if s.months != nil {
		if err := s.months.Set(month, cands); err != nil {
			log.Printf("[WARN] store month cache %s: %v", model.MonthKey(month), err)
		}
	}
	return cands, nil
}

// YuutaiWinRates computes win rates for every candidate of a month, best first.
// Candidates whose series cannot be fetched are dropped.
func (s *Service) YuutaiWinRates(ctx context.Context, req YuutaiRequest) ([]model.StockWinRate, error) {
	start := time.Now()
	ctx, span := trace.StartSpan(ctx, "screener.YuutaiWinRates",
		attribute.String("month", model.MonthKey(req.Month)),
		attribute.String("purchase", req.Purchase.String()),
		attribute.String("sale", req.Sale.String()),
	)
	defer span.End()

	cands, err := s.MonthCandidates(ctx, req.Month, req.Refresh)
	if err != nil {
		trace.Fail(span, err)
		return nil, fmt.Errorf("candidates for %s: %w", model.MonthKey(req.Month), err)
	}

	var (
		mu  sync.Mutex
		out = make([]model.StockWinRate, 0, len(cands))
	)
	forEach(ctx, s.concurrency, len(cands), func(ctx context.Context, i int) {
		res, err := s.winRate(ctx, cands[i], req.Purchase, req.Sale, req.LookbackYears, req.Threshold)
		if err != nil {
			log.Printf("[WARN] win rate %s: %v", cands[i].Code, err)
			return
		}
		mu.Lock()
		out = append(out, res)
		mu.Unlock()
	})
	if err := ctx.Err(); err != nil {
		trace.Fail(span, err)
		return nil, err
	}

	strategy.SortWinRates(out)
	span.SetAttributes(attribute.Int("candidates", len(cands)), attribute.Int("results", len(out)))
	s.observe("winrate", start, len(out))

	if err := s.recorder.RecordWinRates(&recorder.WinRateRun{
		Month: req.Month, Purchase: req.Purchase, Sale: req.Sale, Threshold: req.Threshold, Results: out,
	}); err != nil {
		log.Printf("[ERROR] record win rates: %v", err)
	}
	return out, nil
}

// WinRate computes the seasonal win rate of a single code.
func (s *Service) WinRate(ctx context.Context, code string, purchase, sale model.CalendarAnchor, lookbackYears int, threshold float64) (model.StockWinRate, error) {
	ctx, span := trace.StartSpan(ctx, "screener.WinRate", attribute.String("code", code))
	defer span.End()

	cand := model.YuutaiCandidate{Code: code}
	if s.fundamentals != nil {
		if infos, err := s.fundamentals.ListedInfo(ctx, code); err == nil && len(infos) > 0 {
			cand.Name = infos[0].CompanyName
		}
	}
	res, err := s.winRate(ctx, cand, purchase, sale, lookbackYears, threshold)
	if err != nil {
		trace.Fail(span, err)
		return model.StockWinRate{}, err
	}
	if err := s.recorder.RecordWinRates(&recorder.WinRateRun{
		Purchase: purchase, Sale: sale, Threshold: threshold, Results: []model.StockWinRate{res},
	}); err != nil {
		log.Printf("[ERROR] record win rate: %v", err)
	}
	return res, nil
}

func (s *Service) winRate(ctx context.Context, cand model.YuutaiCandidate, purchase, sale model.CalendarAnchor, lookbackYears int, threshold float64) (model.StockWinRate, error) {
	if s.series == nil {
		return model.StockWinRate{}, errors.New("no series source configured")
	}
	now := s.now()
	from := s.historyStart
	if lookbackYears > 0 {
		from = calculator.LookbackStart(now, lookbackYears)
	}
	series, err := s.series.Collect(ctx, symbol(cand.Code), from, now)
	if err != nil {
		return model.StockWinRate{}, err
	}
	if lookbackYears > 0 {
		series = calculator.FilterSince(series, from)
	}
	result, pairs := calculator.WinRate(series, purchase, sale, threshold)
	return model.StockWinRate{YuutaiCandidate: cand, Result: result, Pairs: pairs}, nil
}
