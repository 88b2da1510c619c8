package calculator

import (
	"time"

	"YuutaiSentinel/internal/model"
)

// DefaultWinThreshold counts any non-negative return as a win.
const DefaultWinThreshold = 0.0

// AggregateWinRate reduces pairs to a win rate. Only pairs with a defined percent
// change are trials; a trial wins when its change is >= threshold.
func AggregateWinRate(pairs []model.ReturnPair, threshold float64) model.WinRateResult {
	trials, wins := 0, 0
	for _, p := range pairs {
		if p.PercentChange == nil {
			continue
		}
		trials++
		if *p.PercentChange >= threshold {
			wins++
		}
	}
	if trials == 0 {
		return model.WinRateResult{}
	}
	return model.WinRateResult{
		WinRatePercent: 100 * float64(wins) / float64(trials),
		TrialCount:     trials,
	}
}

// WinRate builds the seasonal pairs for series and aggregates them.
func WinRate(series model.PriceSeries, purchase, sale model.CalendarAnchor, threshold float64) (model.WinRateResult, []model.ReturnPair) {
	pairs := BuildPairs(series, purchase, sale)
	return AggregateWinRate(pairs, threshold), pairs
}

// FilterSince keeps bars strictly after since. The input is not modified.
func FilterSince(series model.PriceSeries, since time.Time) model.PriceSeries {
	since = model.DayOf(since)
	out := make(model.PriceSeries, 0, len(series))
	for _, b := range series {
		if model.DayOf(b.Date).After(since) {
			out = append(out, b)
		}
	}
	return out
}

// LookbackStart returns the day that opens a window of the given number of years ending at now.
func LookbackStart(now time.Time, years int) time.Time {
	return model.DayOf(now).AddDate(-years, 0, 0)
}
