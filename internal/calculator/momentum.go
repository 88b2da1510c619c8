package calculator

import (
	"sort"

	"YuutaiSentinel/internal/model"
)

// MomentumChange is the percent move from open to current, 0 when open is not positive.
func MomentumChange(open, current int) float64 {
	if open <= 0 {
		return 0
	}
	return float64(current-open) / float64(open) * 100
}

// RankMomentum returns a copy with Change filled in, sorted descending by Change.
func RankMomentum(stocks []model.MomentumStock) []model.MomentumStock {
	out := make([]model.MomentumStock, len(stocks))
	copy(out, stocks)
	for i := range out {
		out[i].Change = MomentumChange(out[i].Open, out[i].Current)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Change != out[j].Change {
			return out[i].Change > out[j].Change
		}
		return out[i].Code < out[j].Code
	})
	return out
}
