package model

// ReturnPair pairs the purchase-anchor and sale-anchor bars of one calendar year.
type ReturnPair struct {
	Year          int
	Purchase      AnchoredBar
	Sale          *AnchoredBar
	IntervalHigh  *float64
	IntervalLow   *float64
	PercentChange *float64
}

// WinRateResult is the aggregate over a set of return pairs.
type WinRateResult struct {
	WinRatePercent float64 `json:"win_rate_percent"`
	TrialCount     int     `json:"trial_count"`
}

// TrailingOutcome classifies a trailing stop / take-profit backtest.
type TrailingOutcome string

const (
	OutcomeWin       TrailingOutcome = "WIN"
	OutcomeLose      TrailingOutcome = "LOSE"
	OutcomeUndecided TrailingOutcome = "UNDECIDED"
	OutcomeError     TrailingOutcome = "ERROR"
)

// TrailingSummary counts trailing outcomes over a batch of instruments.
type TrailingSummary struct {
	Win       int     `json:"win"`
	Lose      int     `json:"lose"`
	Undecided int     `json:"undecided"`
	Error     int     `json:"error"`
	LoseRatio float64 `json:"lose_ratio"`
}

// TrailingResult is the outcome for one code.
type TrailingResult struct {
	Code    string          `json:"code"`
	Outcome TrailingOutcome `json:"outcome"`
}

// FCFYieldRecord is a free-cash-flow yield computed from one statement and one price.
type FCFYieldRecord struct {
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	DisclosedDate     string  `json:"disclosed_date"`
	OperatingCashFlow float64 `json:"operating_cash_flow"`
	InvestingCashFlow float64 `json:"investing_cash_flow"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	ClosingPrice      float64 `json:"closing_price"`
	FCFYieldPercent   float64 `json:"fcf_yield_percent"`
}

// YieldBand buckets an FCF yield for display.
type YieldBand struct {
	Label string
	Color string
}
