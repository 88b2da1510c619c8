package calculator

import (
	"github.com/shopspring/decimal"

	"YuutaiSentinel/internal/model"
)

// BuildPairs pairs every purchase-anchor bar with the sale-anchor bar of the same
// calendar year. A sale bar dated before its purchase bar is not a pairing, so a
// window that wraps into the next year yields no trials.
func BuildPairs(series model.PriceSeries, purchase, sale model.CalendarAnchor) []model.ReturnPair {
	buys := MatchAnchor(series, purchase)
	sells := MatchAnchor(series, sale)

	saleByYear := make(map[int]model.AnchoredBar, len(sells))
	for _, s := range sells {
		saleByYear[s.Year] = s
	}

	pairs := make([]model.ReturnPair, 0, len(buys))
	for _, b := range buys {
		p := model.ReturnPair{Year: b.Year, Purchase: b}
		s, ok := saleByYear[b.Year]
		if ok && !s.Bar.Date.Before(b.Bar.Date) {
			p.Sale = &s
			p.IntervalLow, p.IntervalHigh = IntervalExtrema(series, b.Bar.Date, s.Bar.Date)
			p.PercentChange = PercentChange(b.Bar.AdjClose, s.Bar.AdjClose)
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// PercentChange returns (to-from)/from*100 rounded to one decimal place.
// It is nil when either price is missing or from is zero.
func PercentChange(from, to *float64) *float64 {
	pct := rawPercentChange(from, to)
	if pct == nil {
		return nil
	}
	rounded := RoundPercent(*pct)
	return &rounded
}

// RoundPercent rounds a percentage to one decimal place for display.
func RoundPercent(pct float64) float64 {
	rounded, _ := decimal.NewFromFloat(pct).Round(1).Float64()
	return rounded
}

func rawPercentChange(from, to *float64) *float64 {
	if from == nil || to == nil || *from == 0 {
		return nil
	}
	pct := (*to - *from) / *from * 100
	return &pct
}
