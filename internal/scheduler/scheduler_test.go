package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YuutaiSentinel/internal/cache"
	"YuutaiSentinel/internal/calendar"
	"YuutaiSentinel/internal/collector"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
	"YuutaiSentinel/internal/screener"
)

type spySender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *spySender) SendWithRetry(_ context.Context, text string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

type spyRecorder struct {
	recorder.NoopRecorder
	events  []recorder.ReminderEvent
	history []recorder.HistoryRow
}

func (r *spyRecorder) RecordReminder(evt *recorder.ReminderEvent) error {
	r.events = append(r.events, *evt)
	return nil
}

func (r *spyRecorder) ReminderSent(day time.Time) (bool, error) {
	for _, e := range r.events {
		if e.Sent && e.RightsDay.Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func (r *spyRecorder) WinRateHistory(_ string, _ int) ([]recorder.HistoryRow, error) {
	return r.history, nil
}

type stubSeries map[string]model.PriceSeries

func (s stubSeries) Collect(_ context.Context, symbol string, _, _ time.Time) (model.PriceSeries, error) {
	code, _, _ := strings.Cut(symbol, ".")
	if series, ok := s[code]; ok {
		return series, nil
	}
	return nil, collector.ErrNoData
}

type stubCandidates []model.YuutaiCandidate

func (s stubCandidates) Candidates(_ context.Context, _ time.Month) ([]model.YuutaiCandidate, error) {
	return s, nil
}

func bar(y int, m time.Month, d int, p float64) model.PriceBar {
	return model.PriceBar{
		Date: model.Day(y, m, d),
		Open: model.Float(p), High: model.Float(p), Low: model.Float(p),
		Close: model.Float(p), AdjClose: model.Float(p),
	}
}

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *spySender, *spyRecorder) {
	t.Helper()
	series := stubSeries{
		"1111": {
			bar(2023, time.March, 1, 100), bar(2023, time.March, 20, 110),
			bar(2024, time.March, 1, 100), bar(2024, time.March, 20, 90),
		},
	}
	svc := screener.New(screener.Deps{
		Series:     series,
		Candidates: stubCandidates{{Code: "1111", Name: "テスト"}},
	})
	settings := cache.NewSettings(cache.NewMemoryKV(), cache.Defaults{
		NotifyRightsDay: true,
		PurchaseAnchor:  model.CalendarAnchor{Month: time.March, Day: 1},
		SaleAnchor:      model.CalendarAnchor{Month: time.March, Day: 20},
	})
	sender := &spySender{}
	rec := &spyRecorder{}
	s := NewScheduler(context.Background(), svc, sender, rec, settings)
	s.now = func() time.Time { return now }
	return s, sender, rec
}

func rightsEvening() time.Time {
	return calendar.LastRightsDay(2025, time.March).Add(19 * time.Hour)
}

func TestReminder_SendsOnceOnRightsDay(t *testing.T) {
	s, sender, rec := newTestScheduler(t, rightsEvening())

	s.reminderTask()
	s.reminderTask()

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "優待権利付き最終日")
	assert.Contains(t, sender.sent[0], "現渡しわすれてない？")
	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].Sent)
	assert.True(t, rec.events[0].RightsDay.Equal(calendar.LastRightsDay(2025, time.March)))
}

func TestReminder_SkipsOtherDays(t *testing.T) {
	s, sender, rec := newTestScheduler(t, rightsEvening().AddDate(0, 0, 1))
	s.reminderTask()
	assert.Empty(t, sender.sent)
	assert.Empty(t, rec.events)
}

func TestReminder_Disabled(t *testing.T) {
	s, sender, rec := newTestScheduler(t, rightsEvening())
	require.NoError(t, s.Settings.SetNotifyRightsDay(false))

	s.reminderTask()
	assert.Empty(t, sender.sent)
	require.Len(t, rec.events, 1)
	assert.False(t, rec.events[0].Sent)
	assert.Equal(t, "disabled", rec.events[0].Note)
}

func TestReminder_SendFailureIsRetriedNextRun(t *testing.T) {
	s, sender, rec := newTestScheduler(t, rightsEvening())
	sender.err = errors.New("telegram down")

	s.reminderTask()
	require.Len(t, rec.events, 1)
	assert.False(t, rec.events[0].Sent)

	sender.err = nil
	s.reminderTask()
	assert.Len(t, sender.sent, 1)
}

func TestRegisterAll(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Now())
	require.NoError(t, s.RegisterAll(Schedules{
		Reminder: "0 0 19 * * 1-5",
		Monthly:  "0 0 9 1 * *",
		Momentum: "0 30 15 * * 1-5",
		FCF:      "0 0 9 * * 6",
	}))
	assert.Len(t, s.Cron.Entries(), 4)

	s2, _, _ := newTestScheduler(t, time.Now())
	assert.Error(t, s2.RegisterAll(Schedules{Reminder: "not a cron"}))
}

func TestMonthAnchors(t *testing.T) {
	p, s := MonthAnchors(time.March)
	assert.Equal(t, model.CalendarAnchor{Month: time.February, Day: 1}, p)
	assert.Equal(t, model.CalendarAnchor{Month: time.March, Day: 20}, s)

	p, _ = MonthAnchors(time.January)
	assert.Equal(t, time.January, p.Month)
}

func TestHandleCommand_Settings(t *testing.T) {
	s, _, _ := newTestScheduler(t, rightsEvening())
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/notify off"), "OFF")
	on, err := s.Settings.NotifyRightsDay()
	require.NoError(t, err)
	assert.False(t, on)
	assert.Contains(t, s.HandleCommand(ctx, "/notify"), "OFF")

	s.HandleCommand(ctx, "/threshold 2.5")
	th, err := s.Settings.WinThreshold()
	require.NoError(t, err)
	assert.Equal(t, 2.5, th)

	s.HandleCommand(ctx, "/lookback 3")
	lb, err := s.Settings.LookbackYears()
	require.NoError(t, err)
	assert.Equal(t, 3, lb)

	assert.Contains(t, s.HandleCommand(ctx, "/anchors 02-01 03-25"), "02-01")
	assert.Equal(t, "購入 02-01 → 売却 03-25", s.HandleCommand(ctx, "/anchors"))

	assert.Contains(t, s.HandleCommand(ctx, "/notify maybe"), "⚠️")
	assert.Contains(t, s.HandleCommand(ctx, "/anchors 13-01 03-25"), "❌")
}

func TestHandleCommand_Screens(t *testing.T) {
	s, _, rec := newTestScheduler(t, rightsEvening())
	ctx := context.Background()

	got := s.HandleCommand(ctx, "/winrate 1111")
	assert.Contains(t, got, "勝率: 50.0% (2回)")

	got = s.HandleCommand(ctx, "/month 3 03-01 03-20")
	assert.Contains(t, got, "3月優待")
	assert.Contains(t, got, "1111 テスト: 50.0% (2回)")

	got = s.HandleCommand(ctx, "/trailing 1111,9999 2024-03-01 2024-03-31 5 5")
	assert.Contains(t, got, "9999: ⚠️ エラー")

	assert.Contains(t, s.HandleCommand(ctx, "/trailing 1111 2024-03-31"), "⚠️")
	assert.Contains(t, s.HandleCommand(ctx, "/month 13"), "⚠️")
	assert.Contains(t, s.HandleCommand(ctx, "/momentum"), "❌")
	assert.Contains(t, s.HandleCommand(ctx, "/sectors"), "❌")
	assert.Contains(t, s.HandleCommand(ctx, "/fcf sector"), "⚠️")

	rec.history = []recorder.HistoryRow{{RecordedAt: time.Now(), Purchase: "03-01", Sale: "03-20", WinRatePercent: 50, TrialCount: 2}}
	assert.Contains(t, s.HandleCommand(ctx, "/history 1111"), "50.0% (2回)")
}

func TestHandleCommand_RightsAndHelp(t *testing.T) {
	s, _, _ := newTestScheduler(t, rightsEvening())
	ctx := context.Background()

	got := s.HandleCommand(ctx, "/rights@yuutai_bot 2025")
	assert.Contains(t, got, "権利付き最終日")
	assert.Contains(t, got, "12月")
	assert.Contains(t, got, "👉 3月")

	assert.Equal(t, helpText, s.HandleCommand(ctx, "hello"))
	assert.Equal(t, helpText, s.HandleCommand(ctx, ""))
}

func TestHandleCommand_UsageText(t *testing.T) {
	s, _, _ := newTestScheduler(t, rightsEvening())
	ctx := context.Background()

	assert.Equal(t, "⚠️ usage: /threshold <%>\n\n"+helpText, s.HandleCommand(ctx, "/threshold"))
	assert.Equal(t, "⚠️ usage: /trailing <コード,...> <YYYY-MM-DD> <YYYY-MM-DD> <利確%> <損切%>\n\n"+helpText,
		s.HandleCommand(ctx, "/trailing 1111 2024-03-31"))
	assert.Equal(t, "⚠️ usage: 閾値 \"abc\"\n\n"+helpText, s.HandleCommand(ctx, "/threshold abc"))
}
