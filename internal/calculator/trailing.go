package calculator

import (
	"sort"
	"time"

	"YuutaiSentinel/internal/model"
)

// ClassifyTrailing enters at the open of the first bar in [from, to] and scans
// forward for the first bar whose high exceeds the profit target or whose low
// breaches the stop loss. The profit check runs first, so a bar that hits both
// resolves to Win.
func ClassifyTrailing(series model.PriceSeries, from, to time.Time, profitPct, stopPct float64) model.TrailingOutcome {
	window := sortedWindow(series, from, to)
	if len(window) == 0 || window[0].Open == nil {
		return model.OutcomeError
	}
	entry := *window[0].Open
	if entry == 0 {
		return model.OutcomeError
	}

	for _, b := range window {
		if b.High == nil || b.Low == nil {
			continue
		}
		high, low := *b.High, *b.Low
		highPct := (high - entry) / entry * 100
		lowPct := (low - entry) / entry * 100

		if high >= entry && highPct > profitPct {
			return model.OutcomeWin
		}
		if low <= entry && lowPct < -stopPct {
			return model.OutcomeLose
		}
	}
	return model.OutcomeUndecided
}

// SummarizeTrailing counts outcomes. LoseRatio is lose / (win+lose+undecided) * 100.
func SummarizeTrailing(outcomes []model.TrailingOutcome) model.TrailingSummary {
	var s model.TrailingSummary
	for _, o := range outcomes {
		switch o {
		case model.OutcomeWin:
			s.Win++
		case model.OutcomeLose:
			s.Lose++
		case model.OutcomeUndecided:
			s.Undecided++
		default:
			s.Error++
		}
	}
	if n := s.Win + s.Lose + s.Undecided; n > 0 {
		s.LoseRatio = float64(s.Lose) / float64(n) * 100
	}
	return s
}

// sortedWindow returns a chronologically sorted copy of the bars within [from, to].
func sortedWindow(series model.PriceSeries, from, to time.Time) model.PriceSeries {
	from, to = model.DayOf(from), model.DayOf(to)
	if from.After(to) {
		return nil
	}
	out := make(model.PriceSeries, 0, len(series))
	for _, b := range series {
		d := model.DayOf(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
