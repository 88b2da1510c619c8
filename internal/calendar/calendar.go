// Package calendar answers exchange-day questions for the Tokyo market:
// weekends, a simplified holiday table, and the monthly last rights-attached day.
package calendar

import (
	"time"

	"YuutaiSentinel/internal/model"
)

// fixedHolidays are month/day pairs closed every year. Equinox days are
// approximated, and substitute holidays are not modelled.
var fixedHolidays = []model.CalendarAnchor{
	{Month: time.January, Day: 1},
	{Month: time.February, Day: 11},
	{Month: time.February, Day: 23},
	{Month: time.March, Day: 21},
	{Month: time.April, Day: 29},
	{Month: time.May, Day: 3},
	{Month: time.May, Day: 4},
	{Month: time.May, Day: 5},
	{Month: time.August, Day: 11},
	{Month: time.September, Day: 23},
	{Month: time.November, Day: 3},
	{Month: time.November, Day: 23},
	{Month: time.December, Day: 31},
}

// happyMondays are holidays fixed to the Nth Monday of a month.
var happyMondays = []struct {
	Month time.Month
	Nth   int
}{
	{time.January, 2},
	{time.July, 3},
	{time.September, 3},
	{time.October, 2},
}

// NthMonday returns the nth Monday of the month.
func NthMonday(year int, month time.Month, n int) time.Time {
	first := model.Day(year, month, 1)
	shift := (int(time.Monday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, shift+7*(n-1))
}

// IsHoliday reports whether t falls on a market holiday.
func IsHoliday(t time.Time) bool {
	d := model.DayOf(t)
	for _, h := range fixedHolidays {
		if d.Month() == h.Month && d.Day() == h.Day {
			return true
		}
	}
	for _, h := range happyMondays {
		if d.Equal(NthMonday(d.Year(), h.Month, h.Nth)) {
			return true
		}
	}
	return false
}

// IsWeekend reports whether t falls on Saturday or Sunday in JST.
func IsWeekend(t time.Time) bool {
	wd := model.DayOf(t).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsBusinessDay reports whether the exchange is open on t.
func IsBusinessDay(t time.Time) bool {
	return !IsWeekend(t) && !IsHoliday(t)
}

// AddBusinessDays moves n business days from t (n may be negative).
func AddBusinessDays(t time.Time, n int) time.Time {
	return step(model.DayOf(t), n, IsBusinessDay)
}

// AddWeekdays moves n weekdays from t, ignoring holidays.
func AddWeekdays(t time.Time, n int) time.Time {
	return step(model.DayOf(t), n, func(d time.Time) bool { return !IsWeekend(d) })
}

func step(d time.Time, n int, open func(time.Time) bool) time.Time {
	dir := 1
	if n < 0 {
		dir, n = -1, -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, dir)
		if open(d) {
			n--
		}
	}
	return d
}

// LastBusinessDay is the final trading day of the month.
func LastBusinessDay(year int, month time.Month) time.Time {
	d := model.Day(year, month+1, 0)
	for !IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// LastRightsDay is the last day to buy and still hold shares on the month-end
// record date: two business days before the last business day.
func LastRightsDay(year int, month time.Month) time.Time {
	return AddBusinessDays(LastBusinessDay(year, month), -2)
}

// RightsDays lists the last rights-attached day for every month of year.
func RightsDays(year int) []time.Time {
	out := make([]time.Time, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, LastRightsDay(year, m))
	}
	return out
}

// IsLastRightsDay reports whether t is its month's last rights-attached day.
func IsLastRightsDay(t time.Time) bool {
	d := model.DayOf(t)
	return d.Equal(LastRightsDay(d.Year(), d.Month()))
}
