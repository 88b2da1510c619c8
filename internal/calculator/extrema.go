package calculator

import (
	"math"
	"time"

	"YuutaiSentinel/internal/model"
)

// IntervalExtrema returns the min and max adjusted close in [from, to], both inclusive
// by calendar day. A reversed window or one with no priced bars returns nil, nil.
func IntervalExtrema(series model.PriceSeries, from, to time.Time) (min, max *float64) {
	from, to = model.DayOf(from), model.DayOf(to)
	if from.After(to) {
		return nil, nil
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	found := false
	for _, b := range series {
		if b.AdjClose == nil {
			continue
		}
		d := model.DayOf(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		found = true
		if *b.AdjClose < lo {
			lo = *b.AdjClose
		}
		if *b.AdjClose > hi {
			hi = *b.AdjClose
		}
	}
	if !found {
		return nil, nil
	}
	return &lo, &hi
}
