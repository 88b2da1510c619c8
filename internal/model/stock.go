package model

import "time"

// YuutaiCandidate is a stock with a shareholder benefit in a given month.
type YuutaiCandidate struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	CreditType string `json:"credit_type,omitempty"` // 貸借 / 信用, empty if unknown
}

// StockWinRate is the seasonal win rate of one candidate.
type StockWinRate struct {
	YuutaiCandidate
	Result WinRateResult `json:"result"`
	Pairs  []ReturnPair  `json:"-"`
}

// IPOStock is a listing scraped from the IPO calendar.
type IPOStock struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Market       string    `json:"market,omitempty"`
	ListedOn     time.Time `json:"listed_on"`
	Overview     string    `json:"overview,omitempty"`
	PER          *float64  `json:"per,omitempty"`
	SinceListing *float64  `json:"since_listing,omitempty"`
}

// MomentumStock is an open/current price pair from the ranking page.
type MomentumStock struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Open    int     `json:"open"`
	Current int     `json:"current"`
	Change  float64 `json:"change"`
}

// MonthKey returns the lowercase English month name used in URLs and cache keys.
func MonthKey(m time.Month) string {
	switch m {
	case time.January:
		return "january"
	case time.February:
		return "february"
	case time.March:
		return "march"
	case time.April:
		return "april"
	case time.May:
		return "may"
	case time.June:
		return "june"
	case time.July:
		return "july"
	case time.August:
		return "august"
	case time.September:
		return "september"
	case time.October:
		return "october"
	case time.November:
		return "november"
	case time.December:
		return "december"
	}
	return ""
}

// ipoWindowWeekdays is how long after listing the opening move is judged.
const ipoWindowWeekdays = 7

// WindowEnd is ipoWindowWeekdays weekdays after the listing date. Holidays are not skipped.
func (s IPOStock) WindowEnd() time.Time {
	d := DayOf(s.ListedOn)
	for n := 0; n < ipoWindowWeekdays; {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return d
}
