package screener

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YuutaiSentinel/internal/cache"
	"YuutaiSentinel/internal/calculator"
	"YuutaiSentinel/internal/collector"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
)

// --- stubs ---

type stubSeries struct {
	data map[string]model.PriceSeries // keyed by code without suffix
}

func (s *stubSeries) Collect(_ context.Context, symbol string, _, _ time.Time) (model.PriceSeries, error) {
	code, _, _ := strings.Cut(symbol, ".")
	if series, ok := s.data[code]; ok {
		return series, nil
	}
	return nil, collector.ErrNoData
}

type stubCandidates struct {
	cands []model.YuutaiCandidate
	calls atomic.Int32
}

func (s *stubCandidates) Candidates(_ context.Context, _ time.Month) ([]model.YuutaiCandidate, error) {
	s.calls.Add(1)
	return s.cands, nil
}

type stubFundamentals struct {
	infos      []model.ListedInfo
	statements map[string][]model.Statement
}

func (s *stubFundamentals) ListedInfo(_ context.Context, code string) ([]model.ListedInfo, error) {
	if code == "" {
		return s.infos, nil
	}
	for _, info := range s.infos {
		if info.Code == code || shortCode(info.Code) == code {
			return []model.ListedInfo{info}, nil
		}
	}
	return nil, nil
}

func (s *stubFundamentals) Statements(_ context.Context, code string) ([]model.Statement, error) {
	stmts, ok := s.statements[code]
	if !ok {
		return nil, errors.New("no statements")
	}
	return stmts, nil
}

type stubIPO map[int][]string

func (s stubIPO) Codes(_ context.Context, year int) ([]string, error) {
	return s[year], nil
}

type stubQuotes struct {
	ranking []string
	quotes  map[string]model.MomentumStock
}

func (s *stubQuotes) RankingCodes(_ context.Context) ([]string, error) { return s.ranking, nil }

func (s *stubQuotes) Quote(_ context.Context, code string) (model.MomentumStock, error) {
	q, ok := s.quotes[code]
	if !ok {
		return model.MomentumStock{}, errors.New("quote unavailable")
	}
	return q, nil
}

func (s *stubQuotes) Overview(_ context.Context, code string) (string, error) {
	return "overview of " + code, nil
}

func (s *stubQuotes) PER(_ context.Context, _ string) (float64, error) { return 12.5, nil }

type spyRecorder struct {
	recorder.NoopRecorder
	mu       sync.Mutex
	winRates []*recorder.WinRateRun
	trailing []*recorder.TrailingRun
	fcf      []*recorder.FCFRun
}

func (r *spyRecorder) RecordWinRates(run *recorder.WinRateRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.winRates = append(r.winRates, run)
	return nil
}

func (r *spyRecorder) RecordTrailing(run *recorder.TrailingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trailing = append(r.trailing, run)
	return nil
}

func (r *spyRecorder) RecordFCF(run *recorder.FCFRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fcf = append(r.fcf, run)
	return nil
}

func flat(y int, m time.Month, d int, p float64) model.PriceBar {
	return model.PriceBar{
		Date: model.Day(y, m, d),
		Open: model.Float(p), High: model.Float(p), Low: model.Float(p),
		Close: model.Float(p), AdjClose: model.Float(p),
	}
}

func ohlc(d int, open, high, low float64) model.PriceBar {
	return model.PriceBar{
		Date: model.Day(2024, time.March, d),
		Open: model.Float(open), High: model.Float(high), Low: model.Float(low),
		Close: model.Float(open), AdjClose: model.Float(open),
	}
}

func str(s string) *string { return &s }

func newTestService(d Deps, now time.Time) *Service {
	s := New(d)
	s.now = func() time.Time { return now }
	return s
}

// --- win rates ---

func TestYuutaiWinRates_SortsAndDropsFailures(t *testing.T) {
	series := &stubSeries{data: map[string]model.PriceSeries{
		"1111": {
			flat(2023, time.March, 1, 100), flat(2023, time.March, 20, 110),
			flat(2024, time.March, 1, 100), flat(2024, time.March, 20, 90),
		},
		"2222": {
			flat(2023, time.March, 1, 100), flat(2023, time.March, 20, 110),
			flat(2024, time.March, 1, 100), flat(2024, time.March, 20, 105),
		},
	}}
	cands := &stubCandidates{cands: []model.YuutaiCandidate{
		{Code: "1111", Name: "Half"}, {Code: "2222", Name: "Always"}, {Code: "3333", Name: "Missing"},
	}}
	spy := &spyRecorder{}
	svc := newTestService(Deps{
		Series:     series,
		Candidates: cands,
		Months:     cache.NewMonthCache[[]model.YuutaiCandidate](cache.NewMemoryKV()),
		Recorder:   spy,
	}, model.Day(2025, time.June, 1))

	req := YuutaiRequest{
		Month:    time.March,
		Purchase: model.CalendarAnchor{Month: time.March, Day: 1},
		Sale:     model.CalendarAnchor{Month: time.March, Day: 20},
	}
	out, err := svc.YuutaiWinRates(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2222", out[0].Code)
	assert.Equal(t, 100.0, out[0].Result.WinRatePercent)
	assert.Equal(t, 2, out[0].Result.TrialCount)
	assert.Equal(t, "1111", out[1].Code)
	assert.Equal(t, 50.0, out[1].Result.WinRatePercent)

	require.Len(t, spy.winRates, 1)
	assert.Equal(t, time.March, spy.winRates[0].Month)
	assert.Len(t, spy.winRates[0].Results, 2)

	// The candidate list is served from the month cache on the second run.
	_, err = svc.YuutaiWinRates(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), cands.calls.Load())

	req.Refresh = true
	_, err = svc.YuutaiWinRates(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), cands.calls.Load())
}

func TestWinRate_LookbackFiltersOldYears(t *testing.T) {
	series := &stubSeries{data: map[string]model.PriceSeries{
		"1111": {
			flat(2015, time.March, 1, 100), flat(2015, time.March, 20, 80),
			flat(2024, time.March, 1, 100), flat(2024, time.March, 20, 120),
		},
	}}
	fund := &stubFundamentals{infos: []model.ListedInfo{{Code: "11110", CompanyName: "Test Co"}}}
	svc := newTestService(Deps{Series: series, Fundamentals: fund}, model.Day(2025, time.June, 1))

	p := model.CalendarAnchor{Month: time.March, Day: 1}
	s := model.CalendarAnchor{Month: time.March, Day: 20}

	all, err := svc.WinRate(context.Background(), "1111", p, s, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Test Co", all.Name)
	assert.Equal(t, 2, all.Result.TrialCount)
	assert.Equal(t, 50.0, all.Result.WinRatePercent)

	recent, err := svc.WinRate(context.Background(), "1111", p, s, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, recent.Result.TrialCount)
	assert.Equal(t, 100.0, recent.Result.WinRatePercent)
}

func TestYuutaiWinRates_NoCandidateSource(t *testing.T) {
	svc := New(Deps{Series: &stubSeries{}})
	_, err := svc.YuutaiWinRates(context.Background(), YuutaiRequest{Month: time.June})
	assert.Error(t, err)
}

// --- trailing ---

func TestTrailing_ClassifiesEachCode(t *testing.T) {
	series := &stubSeries{data: map[string]model.PriceSeries{
		"1001": {ohlc(4, 100, 101, 99), ohlc(5, 100, 112, 99)},
		"1002": {ohlc(4, 100, 101, 99), ohlc(5, 100, 101, 90)},
		"1003": {ohlc(4, 100, 101, 99), ohlc(5, 100, 102, 98)},
	}}
	spy := &spyRecorder{}
	svc := New(Deps{Series: series, Recorder: spy})

	req := TrailingRequest{
		Codes:     []string{"1001", "1002", "1003", "1004"},
		From:      model.Day(2024, time.March, 1),
		To:        model.Day(2024, time.March, 29),
		ProfitPct: 10,
		StopPct:   5,
	}
	results, summary, err := svc.Trailing(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, model.OutcomeWin, results[0].Outcome)
	assert.Equal(t, model.OutcomeLose, results[1].Outcome)
	assert.Equal(t, model.OutcomeUndecided, results[2].Outcome)
	assert.Equal(t, model.OutcomeError, results[3].Outcome)

	assert.Equal(t, 1, summary.Win)
	assert.Equal(t, 1, summary.Lose)
	assert.Equal(t, 1, summary.Undecided)
	assert.Equal(t, 1, summary.Error)
	assert.InDelta(t, 33.33, summary.LoseRatio, 0.01)

	require.Len(t, spy.trailing, 1)
	assert.Equal(t, summary, spy.trailing[0].Summary)
}

func TestTrailing_WithMockCollector(t *testing.T) {
	c := collector.NewCollector(nil, &collector.MockFetcher{Price: 1000})
	svc := New(Deps{Series: c})

	results, _, err := svc.Trailing(context.Background(), TrailingRequest{
		Codes:     []string{"7203"},
		From:      model.Day(2024, time.March, 1),
		To:        model.Day(2024, time.March, 15),
		ProfitPct: 1,
		StopPct:   5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.OutcomeWin, results[0].Outcome)
}

func TestTrailingRequest_Validate(t *testing.T) {
	base := TrailingRequest{
		Codes: []string{"1"}, From: model.Day(2024, 1, 1), To: model.Day(2024, 2, 1), ProfitPct: 5, StopPct: 5,
	}
	assert.NoError(t, base.Validate())

	noCodes := base
	noCodes.Codes = nil
	assert.Error(t, noCodes.Validate())

	reversed := base
	reversed.From, reversed.To = base.To, base.From
	assert.Error(t, reversed.Validate())

	zero := base
	zero.StopPct = 0
	assert.Error(t, zero.Validate())
}

// --- FCF ---

func fcfFixture() (*stubFundamentals, *stubSeries) {
	fund := &stubFundamentals{
		infos: []model.ListedInfo{
			{Code: "13010", CompanyName: "High Yield", MarketCode: "0111", Sector17Code: "1", Sector33Code: "0050"},
			{Code: "72030", CompanyName: "Low Yield", MarketCode: "0111", Sector17Code: "6", Sector33Code: "3700"},
			{Code: "13050", CompanyName: "Some ETF", MarketCode: "0109", Sector17Code: "99", Sector33Code: "9999"},
			{Code: "99990", CompanyName: "Pro Market", MarketCode: "0105", Sector17Code: "1", Sector33Code: "0050"},
		},
		statements: map[string][]model.Statement{
			"13010": {
				{DisclosedDate: "2024-05-10", CashFlowsFromOperatingActivities: str("10"), CashFlowsFromInvestingActivities: str("0"), IssuedShares: str("100")},
				{DisclosedDate: "2025-05-14", CashFlowsFromOperatingActivities: str("1000"), CashFlowsFromInvestingActivities: str("-200"), IssuedShares: str("100"), TreasuryShares: str("20")},
				{DisclosedDate: "2025-08-08", CashFlowsFromOperatingActivities: str("－"), CashFlowsFromInvestingActivities: str(""), IssuedShares: str("100")},
			},
			"72030": {
				{DisclosedDate: "2025-05-08", CashFlowsFromOperatingActivities: str("100"), CashFlowsFromInvestingActivities: str("-50"), IssuedShares: str("100")},
			},
		},
	}
	series := &stubSeries{data: map[string]model.PriceSeries{
		"1301": {
			flat(2025, time.May, 13, 40), flat(2025, time.May, 14, 50), flat(2025, time.May, 15, 60),
			flat(2025, time.May, 30, 50), flat(2025, time.June, 3, 999),
		},
		"7203": {flat(2025, time.May, 30, 10)},
	}}
	return fund, series
}

func TestFCFScreen_FiltersAndRanks(t *testing.T) {
	fund, series := fcfFixture()
	spy := &spyRecorder{}
	svc := newTestService(Deps{Series: series, Fundamentals: fund, Recorder: spy}, model.Day(2025, time.June, 2))

	out, err := svc.FCFScreen(context.Background(), FCFRequest{MinYield: DefaultMinYield})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "1301", out[0].Code)
	assert.Equal(t, "High Yield", out[0].Name)
	assert.Equal(t, 50.0, out[0].ClosingPrice)
	assert.InDelta(t, 16.0, out[0].FCFYieldPercent, 1e-9)

	require.Len(t, spy.fcf, 1)
	assert.Equal(t, DefaultMinYield, spy.fcf[0].MinYield)

	// Lowering the bar lets the 5% issue through, ranked second.
	out, err = svc.FCFScreen(context.Background(), FCFRequest{MinYield: 1})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "7203", out[1].Code)

	out, err = svc.FCFScreen(context.Background(), FCFRequest{MinYield: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	out, err = svc.FCFScreen(context.Background(), FCFRequest{MinYield: 1, Sector33: "3700"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "7203", out[0].Code)
}

func TestFCFScreen_SubtractTreasury(t *testing.T) {
	fund, series := fcfFixture()
	svc := newTestService(Deps{Series: series, Fundamentals: fund}, model.Day(2025, time.June, 2))

	out, err := svc.FCFScreen(context.Background(), FCFRequest{MinYield: DefaultMinYield, SubtractTreasury: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 80.0, out[0].SharesOutstanding)
	assert.InDelta(t, 20.0, out[0].FCFYieldPercent, 1e-9)
}

func TestSingleFCF_UsesDisclosureDayClose(t *testing.T) {
	fund, series := fcfFixture()
	svc := newTestService(Deps{Series: series, Fundamentals: fund}, model.Day(2025, time.June, 2))

	rec, err := svc.SingleFCF(context.Background(), "13010", false)
	require.NoError(t, err)
	assert.Equal(t, "1301", rec.Code)
	assert.Equal(t, "High Yield", rec.Name)
	assert.Equal(t, "2025-05-14", rec.DisclosedDate)
	assert.Equal(t, 50.0, rec.ClosingPrice)

	_, err = svc.SingleFCF(context.Background(), "00000", false)
	assert.Error(t, err)
}

func TestScreenable(t *testing.T) {
	ok := model.ListedInfo{MarketCode: "0112", Sector17Code: "3", Sector33Code: "3050"}
	assert.True(t, Screenable(ok, ""))
	assert.True(t, Screenable(ok, "3050"))
	assert.False(t, Screenable(ok, "3100"))

	etf := ok
	etf.Sector33Code = "9999"
	assert.False(t, Screenable(etf, ""))

	pro := ok
	pro.MarketCode = "0105"
	assert.False(t, Screenable(pro, ""))
}

func TestSectors(t *testing.T) {
	fund := &stubFundamentals{infos: []model.ListedInfo{
		{Code: "72030", Sector33Code: "3700", Sector33CodeName: "輸送用機器"},
		{Code: "72670", Sector33Code: "3700", Sector33CodeName: "輸送用機器"},
		{Code: "13050", Sector33Code: "9999", Sector33CodeName: "その他"},
		{Code: "30500", Sector33Code: "3050", Sector33CodeName: "食料品"},
	}}
	svc := New(Deps{Fundamentals: fund})

	got, err := svc.Sectors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Sector33{{Code: "3050", Name: "食料品"}, {Code: "3700", Name: "輸送用機器"}}, got)

	_, err = New(Deps{}).Sectors(context.Background())
	assert.Error(t, err)
}

// --- IPO ---

func TestIPOScreen_ThresholdModes(t *testing.T) {
	series := &stubSeries{data: map[string]model.PriceSeries{
		"5001": {flat(2024, time.March, 12, 1000), flat(2025, time.May, 30, 1500)},
		"5002": {flat(2024, time.April, 2, 1000), flat(2025, time.May, 30, 900)},
		"5003": {flat(2024, time.June, 5, 1000), flat(2025, time.May, 30, 1200)},
	}}
	ipo := stubIPO{2024: {"5001", "5002", "5003", "5004"}}
	svc := newTestService(Deps{Series: series, IPO: ipo, Quotes: &stubQuotes{}}, model.Day(2025, time.June, 2))

	up, err := svc.IPOScreen(context.Background(), IPORequest{Years: []int{2024}, Threshold: 0, Mode: calculator.AtLeast})
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, "5001", up[0].Code)
	assert.Equal(t, 50.0, *up[0].SinceListing)
	assert.True(t, up[0].ListedOn.Equal(model.Day(2024, time.March, 12)))
	assert.Equal(t, "5003", up[1].Code)
	assert.Empty(t, up[0].Overview)

	down, err := svc.IPOScreen(context.Background(), IPORequest{Years: []int{2024}, Threshold: 0, Mode: calculator.AtMost, Enrich: true})
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, "5002", down[0].Code)
	assert.Equal(t, "overview of 5002", down[0].Overview)
	require.NotNil(t, down[0].PER)
	assert.Equal(t, 12.5, *down[0].PER)
}

func TestIPOScreen_MarketFilter(t *testing.T) {
	series := &stubSeries{data: map[string]model.PriceSeries{
		"5001": {flat(2024, time.March, 12, 1000), flat(2025, time.May, 30, 1500)},
		"5003": {flat(2024, time.June, 5, 1000), flat(2025, time.May, 30, 1200)},
	}}
	fund := &stubFundamentals{infos: []model.ListedInfo{
		{Code: "50010", CompanyName: "Growth Co", MarketCode: "0113"},
		{Code: "50030", CompanyName: "Prime Co", MarketCode: "0111"},
	}}
	svc := newTestService(Deps{Series: series, IPO: stubIPO{2024: {"5001", "5003"}}, Fundamentals: fund}, model.Day(2025, time.June, 2))

	out, err := svc.IPOScreen(context.Background(), IPORequest{Years: []int{2024}, Mode: calculator.AtLeast, Markets: []string{"0113"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Growth Co", out[0].Name)
	assert.Equal(t, "0113", out[0].Market)
}

// --- momentum ---

func TestMomentum_RanksAndLimits(t *testing.T) {
	quotes := &stubQuotes{
		ranking: []string{"1001", "1002", "1003", "1004"},
		quotes: map[string]model.MomentumStock{
			"1001": {Code: "1001", Open: 1000, Current: 1010},
			"1002": {Code: "1002", Open: 1000, Current: 1100},
			"1003": {Code: "1003", Open: 1000, Current: 950},
		},
	}
	svc := New(Deps{Quotes: quotes})

	all, err := svc.Momentum(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1002", all[0].Code)
	assert.InDelta(t, 10.0, all[0].Change, 1e-9)
	assert.Equal(t, "1003", all[2].Code)

	top, err := svc.Momentum(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "1002", top[0].Code)
}

// --- pool ---

func TestForEach_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var done atomic.Int32
	forEach(context.Background(), 3, 20, func(_ context.Context, _ int) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		done.Add(1)
	})
	assert.Equal(t, int32(20), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestForEach_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	forEach(ctx, 1, 10, func(_ context.Context, _ int) { calls.Add(1) })
	assert.Equal(t, int32(0), calls.Load())
}

func TestShortCode(t *testing.T) {
	assert.Equal(t, "3382", shortCode("33820"))
	assert.Equal(t, "3382", shortCode("3382"))
	assert.Equal(t, "13015", shortCode("13015"))
}
