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
	"YuutaiSentinel/internal/trace"
)

// DefaultMomentumLimit caps the ranking reply.
const DefaultMomentumLimit = 20

// Momentum ranks today's trading-value leaders by their move from the open.
func (s *Service) Momentum(ctx context.Context, limit int) ([]model.MomentumStock, error) {
	if s.quotes == nil {
		return nil, errors.New("no quote source configured")
	}
	if limit <= 0 {
		limit = DefaultMomentumLimit
	}
	start := time.Now()
	ctx, span := trace.StartSpan(ctx, "screener.Momentum", attribute.Int("limit", limit))
	defer span.End()

	codes, err := s.quotes.RankingCodes(ctx)
	if err != nil {
		trace.Fail(span, err)
		return nil, fmt.Errorf("ranking: %w", err)
	}

	quotes := make([]*model.MomentumStock, len(codes))
	forEach(ctx, s.concurrency, len(codes), func(ctx context.Context, i int) {
		q, err := s.quotes.Quote(ctx, codes[i])
		if err != nil {
			log.Printf("[WARN] quote %s: %v", codes[i], err)
			return
		}
		quotes[i] = &q
	})
	if err := ctx.Err(); err != nil {
		trace.Fail(span, err)
		return nil, err
	}

	stocks := make([]model.MomentumStock, 0, len(quotes))
	for _, q := range quotes {
		if q != nil {
			stocks = append(stocks, *q)
		}
	}
	ranked := calculator.RankMomentum(stocks)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	s.observe("momentum", start, len(ranked))
	return ranked, nil
}
