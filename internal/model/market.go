package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JST is the exchange time zone. A fixed offset avoids depending on tzdata.
var JST = time.FixedZone("JST", 9*60*60)

// Day returns midnight JST for the given calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, JST)
}

// DayOf truncates t to its calendar day in JST.
func DayOf(t time.Time) time.Time {
	t = t.In(JST)
	return Day(t.Year(), t.Month(), t.Day())
}

// PriceBar represents one trading day for one instrument.
// Missing fields are nil, never zero.
type PriceBar struct {
	Date     time.Time
	Open     *float64
	High     *float64
	Low      *float64
	Close    *float64
	AdjClose *float64
	Volume   *int64
}

// PriceSeries holds the daily bars of one instrument over one fetch window.
// No ordering is guaranteed.
type PriceSeries []PriceBar

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }

// CalendarAnchor is a recurring month/day with no year.
type CalendarAnchor struct {
	Month time.Month
	Day   int
}

// In returns the anchor's date in the given year.
func (a CalendarAnchor) In(year int) time.Time {
	return Day(year, a.Month, a.Day)
}

func (a CalendarAnchor) String() string {
	return fmt.Sprintf("%02d-%02d", int(a.Month), a.Day)
}

// ParseAnchor accepts "MM-DD" or "M/D".
func ParseAnchor(s string) (CalendarAnchor, error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return CalendarAnchor{}, fmt.Errorf("anchor %q: want MM-DD", s)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return CalendarAnchor{}, fmt.Errorf("anchor %q: bad month", s)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil || d < 1 || d > daysIn(time.Month(m)) {
		return CalendarAnchor{}, fmt.Errorf("anchor %q: bad day", s)
	}
	return CalendarAnchor{Month: time.Month(m), Day: d}, nil
}

// daysIn uses a leap year so 02-29 stays a valid anchor.
func daysIn(m time.Month) int {
	return time.Date(2024, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AnchoredBar is the bar chosen for an anchor in one calendar year.
type AnchoredBar struct {
	Year   int
	Offset int // days from the anchor date, 0 for an exact hit
	Bar    PriceBar
}

// Market identifies a listing venue.
type Market string

const (
	MarketTokyo    Market = "tokyo"
	MarketNagoya   Market = "nagoya"
	MarketSapporo  Market = "sapporo"
	MarketFukuoka  Market = "fukuoka"
	MarketOverseas Market = "overseas"
)

// Suffix returns the quote-symbol suffix for the venue.
func (m Market) Suffix() string {
	switch m {
	case MarketTokyo:
		return ".T"
	case MarketNagoya:
		return ".N"
	case MarketSapporo:
		return ".S"
	case MarketFukuoka:
		return ".F"
	default:
		return ""
	}
}

// Symbol builds a quote symbol such as "3382.T".
func Symbol(code string, m Market) string {
	return code + m.Suffix()
}
