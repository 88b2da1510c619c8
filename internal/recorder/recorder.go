package recorder

import (
	"time"

	"YuutaiSentinel/internal/model"
)

// WinRateRun holds one batch of seasonal win rates.
type WinRateRun struct {
	ID        string     // filled in by the recorder when empty
	Month     time.Month // zero for a single-code query
	Purchase  model.CalendarAnchor
	Sale      model.CalendarAnchor
	Threshold float64
	Results   []model.StockWinRate
}

// TrailingRun holds one trailing stop / take-profit backtest.
type TrailingRun struct {
	ID        string
	From      time.Time
	To        time.Time
	ProfitPct float64
	StopPct   float64
	Results   []model.TrailingResult
	Summary   model.TrailingSummary
}

// FCFRun holds one free-cash-flow yield screen.
type FCFRun struct {
	ID       string
	MinYield float64
	Records  []model.FCFYieldRecord
}

// ReminderEvent records a rights-day reminder decision.
type ReminderEvent struct {
	RightsDay time.Time
	Sent      bool
	Note      string
}

// Recorder persists screening history for later analysis.
type Recorder interface {
	RecordWinRates(run *WinRateRun) error
	RecordTrailing(run *TrailingRun) error
	RecordFCF(run *FCFRun) error
	RecordReminder(evt *ReminderEvent) error
	Close() error
}
