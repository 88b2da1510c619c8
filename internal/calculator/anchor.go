package calculator

import (
	"sort"
	"time"

	"YuutaiSentinel/internal/model"
)

// anchorOffsets is the probe order around an anchor date. Earlier days win ties.
var anchorOffsets = []int{0, -1, 1, -2, 2, -3, 3}

// MatchAnchor finds, for every calendar year present in series, the bar on the
// anchor date or the nearest one within ±3 days. Years with no match are skipped.
// The result is ascending by year.
func MatchAnchor(series model.PriceSeries, anchor model.CalendarAnchor) []model.AnchoredBar {
	byDay := indexByDay(series)

	years := make(map[int]struct{})
	for _, b := range series {
		years[model.DayOf(b.Date).Year()] = struct{}{}
	}
	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	out := make([]model.AnchoredBar, 0, len(sorted))
	for _, y := range sorted {
		target := anchor.In(y)
		for _, off := range anchorOffsets {
			if bar, ok := byDay[target.AddDate(0, 0, off)]; ok {
				out = append(out, model.AnchoredBar{Year: y, Offset: off, Bar: bar})
				break
			}
		}
	}
	return out
}

// indexByDay keys bars by JST calendar day. On duplicate days the first wins.
func indexByDay(series model.PriceSeries) map[time.Time]model.PriceBar {
	m := make(map[time.Time]model.PriceBar, len(series))
	for _, b := range series {
		d := model.DayOf(b.Date)
		if _, dup := m[d]; !dup {
			m[d] = b
		}
	}
	return m
}
