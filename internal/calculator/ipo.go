package calculator

import (
	"fmt"
	"sort"

	"YuutaiSentinel/internal/model"
)

// ThresholdMode selects which side of a threshold passes an IPO screen.
type ThresholdMode string

const (
	AtLeast ThresholdMode = ">="
	AtMost  ThresholdMode = "<="
)

// ParseThresholdMode accepts ">=" / "<=" and the words "up" / "down".
func ParseThresholdMode(s string) (ThresholdMode, error) {
	switch s {
	case ">=", "up", "":
		return AtLeast, nil
	case "<=", "down":
		return AtMost, nil
	}
	return "", fmt.Errorf("unknown threshold mode %q", s)
}

// Passes compares strictly: AtLeast keeps pct > threshold, AtMost keeps pct < threshold.
func (m ThresholdMode) Passes(pct, threshold float64) bool {
	if m == AtMost {
		return pct < threshold
	}
	return pct > threshold
}

// SinceListingChange is the percent change from the first to the last adjusted close.
// It is not rounded; threshold screens compare this value and round with RoundPercent for display.
func SinceListingChange(series model.PriceSeries) *float64 {
	sorted := make(model.PriceSeries, 0, len(series))
	for _, b := range series {
		if b.AdjClose != nil {
			sorted = append(sorted, b)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return rawPercentChange(sorted[0].AdjClose, sorted[len(sorted)-1].AdjClose)
}
