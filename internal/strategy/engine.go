package strategy

import (
	"sort"

	"YuutaiSentinel/internal/model"
)

// YieldBands maps FCF yield to a display band, highest first.
var YieldBands = []struct {
	MinYield float64
	Band     model.YieldBand
}{
	{20, model.YieldBand{Label: "優秀", Color: "green"}},
	{15, model.YieldBand{Label: "良好", Color: "blue"}},
	{8, model.YieldBand{Label: "普通", Color: "orange"}},
}

// DefaultBand is used for yields below every threshold.
var DefaultBand = model.YieldBand{Label: "低い", Color: "red"}

// mapYieldBand maps an FCF yield to its band.
func mapYieldBand(yield float64) model.YieldBand {
	for _, b := range YieldBands {
		if yield >= b.MinYield {
			return b.Band
		}
	}
	return DefaultBand
}

// BandFor returns the display band for a yield record.
func BandFor(rec model.FCFYieldRecord) model.YieldBand {
	return mapYieldBand(rec.FCFYieldPercent)
}

// WinningSide is the win rate at which a seasonal trade counts as favourable.
const WinningSide = 50.0

// Favourable reports whether a win rate is on the winning side.
func Favourable(res model.WinRateResult) bool {
	return res.TrialCount > 0 && res.WinRatePercent >= WinningSide
}

// SortWinRates orders by win rate, then trial count, both descending.
func SortWinRates(rates []model.StockWinRate) {
	sort.SliceStable(rates, func(i, j int) bool {
		a, b := rates[i].Result, rates[j].Result
		if a.WinRatePercent != b.WinRatePercent {
			return a.WinRatePercent > b.WinRatePercent
		}
		return a.TrialCount > b.TrialCount
	})
}

// Shortlist keeps favourable candidates with at least minTrials trials, best first.
func Shortlist(rates []model.StockWinRate, minRate float64, minTrials int) []model.StockWinRate {
	out := make([]model.StockWinRate, 0, len(rates))
	for _, r := range rates {
		if r.Result.TrialCount >= minTrials && r.Result.WinRatePercent >= minRate {
			out = append(out, r)
		}
	}
	SortWinRates(out)
	return out
}
