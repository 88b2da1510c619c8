package screener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"YuutaiSentinel/internal/calculator"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
	"YuutaiSentinel/internal/trace"
)

// TrailingRequest backtests a take-profit / stop-loss pair over a window.
type TrailingRequest struct {
	Codes     []string
	From      time.Time
	To        time.Time
	ProfitPct float64
	StopPct   float64
}

// Validate rejects requests the classifier cannot answer.
func (r TrailingRequest) Validate() error {
	if len(r.Codes) == 0 {
		return errors.New("no codes given")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("window end %s is before start %s", r.To.Format("2006-01-02"), r.From.Format("2006-01-02"))
	}
	if r.ProfitPct <= 0 || r.StopPct <= 0 {
		return errors.New("profit and stop percentages must be positive")
	}
	return nil
}

// Trailing classifies every code. A failed fetch is an Error outcome, never a batch failure.
func (s *Service) Trailing(ctx context.Context, req TrailingRequest) ([]model.TrailingResult, model.TrailingSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, model.TrailingSummary{}, err
	}
	if s.series == nil {
		return nil, model.TrailingSummary{}, errors.New("no series source configured")
	}

	start := time.Now()
	ctx, span := trace.StartSpan(ctx, "screener.Trailing",
		attribute.Int("codes", len(req.Codes)),
		attribute.Float64("profit_pct", req.ProfitPct),
		attribute.Float64("stop_pct", req.StopPct),
	)
	defer span.End()

	results := make([]model.TrailingResult, len(req.Codes))
	forEach(ctx, s.concurrency, len(req.Codes), func(ctx context.Context, i int) {
		code := req.Codes[i]
		results[i] = model.TrailingResult{Code: code, Outcome: model.OutcomeError}
		series, err := s.series.Collect(ctx, symbol(code), req.From, req.To)
		if err != nil {
			log.Printf("[WARN] trailing %s: %v", code, err)
			return
		}
		results[i].Outcome = calculator.ClassifyTrailing(series, req.From, req.To, req.ProfitPct, req.StopPct)
	})
	if err := ctx.Err(); err != nil {
		trace.Fail(span, err)
		return nil, model.TrailingSummary{}, err
	}

	outcomes := make([]model.TrailingOutcome, len(results))
	for i, r := range results {
		outcomes[i] = r.Outcome
	}
	summary := calculator.SummarizeTrailing(outcomes)
	s.observe("trailing", start, len(results))

	if err := s.recorder.RecordTrailing(&recorder.TrailingRun{
		From: req.From, To: req.To, ProfitPct: req.ProfitPct, StopPct: req.StopPct,
		Results: results, Summary: summary,
	}); err != nil {
		log.Printf("[ERROR] record trailing: %v", err)
	}
	return results, summary, nil
}
