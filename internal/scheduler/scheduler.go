package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"YuutaiSentinel/internal/cache"
	"YuutaiSentinel/internal/calendar"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/notifier"
	"YuutaiSentinel/internal/recorder"
	"YuutaiSentinel/internal/screener"
)

// Sender delivers a message to the configured chat.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// ReminderLog is implemented by recorders that can tell whether a reminder
// already went out, so a restart on a rights day does not send it twice.
type ReminderLog interface {
	ReminderSent(day time.Time) (bool, error)
}

// HistoryLog is implemented by recorders that keep past win-rate runs.
type HistoryLog interface {
	WinRateHistory(code string, limit int) ([]recorder.HistoryRow, error)
}

// Schedules holds the cron expressions (with seconds) for every job.
type Schedules struct {
	Reminder string
	Monthly  string
	Momentum string
	FCF      string
}

// Scheduler manages all cron tasks and answers bot commands.
type Scheduler struct {
	Cron        *cron.Cron
	Screener    *screener.Service
	Notifier    Sender
	Recorder    recorder.Recorder
	Settings    *cache.Settings
	MinFCFYield float64
	Ctx         context.Context
	now         func() time.Time
}

// NewScheduler creates a new Scheduler. Jobs fire in exchange time.
func NewScheduler(ctx context.Context, svc *screener.Service, sender Sender, rec recorder.Recorder, settings *cache.Settings) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds(), cron.WithLocation(model.JST)),
		Screener:    svc,
		Notifier:    sender,
		Recorder:    rec,
		Settings:    settings,
		MinFCFYield: screener.DefaultMinYield,
		Ctx:         ctx,
		now:         time.Now,
	}
}

// RegisterAll registers the reminder, monthly, momentum and FCF jobs.
func (s *Scheduler) RegisterAll(sc Schedules) error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"reminder", sc.Reminder, s.reminderTask},
		{"monthly", sc.Monthly, s.monthlyTask},
		{"momentum", sc.Momentum, s.momentumTask},
		{"fcf", sc.FCF, s.fcfTask},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunReminderNow executes the reminder check immediately.
func (s *Scheduler) RunReminderNow() {
	s.reminderTask()
}

func (s *Scheduler) reminderTask() {
	today := model.DayOf(s.now())
	if !calendar.IsLastRightsDay(today) {
		return
	}
	log.Printf("[INFO] %s is a last rights day", today.Format("2006-01-02"))

	on, err := s.Settings.NotifyRightsDay()
	if err != nil {
		log.Printf("[WARN] read notify setting: %v", err)
	}
	if !on {
		s.recordReminder(today, false, "disabled")
		return
	}
	if rl, ok := s.Recorder.(ReminderLog); ok {
		sent, err := rl.ReminderSent(today)
		if err != nil {
			log.Printf("[WARN] reminder log: %v", err)
		}
		if sent {
			log.Println("[INFO] reminder already sent today")
			return
		}
	}

	if err := s.Notifier.SendWithRetry(s.Ctx, notifier.FormatReminder(today), 3); err != nil {
		log.Printf("[ERROR] send reminder: %v", err)
		s.recordReminder(today, false, err.Error())
		return
	}
	s.recordReminder(today, true, "")
}

func (s *Scheduler) recordReminder(day time.Time, sent bool, note string) {
	if err := s.Recorder.RecordReminder(&recorder.ReminderEvent{RightsDay: day, Sent: sent, Note: note}); err != nil {
		log.Printf("[ERROR] record reminder: %v", err)
	}
}

// monthlyTask refreshes next month's candidates and reports their win rates.
func (s *Scheduler) monthlyTask() {
	next := model.DayOf(s.now()).AddDate(0, 1, 0).Month()
	log.Printf("[INFO] running monthly refresh for %s", model.MonthKey(next))
	p, sale := MonthAnchors(next)
	reply := s.monthReport(s.Ctx, next, p, sale, true)
	s.trySend(reply)
}

func (s *Scheduler) momentumTask() {
	log.Println("[INFO] running momentum ranking")
	ranked, err := s.Screener.Momentum(s.Ctx, screener.DefaultMomentumLimit)
	if err != nil {
		log.Printf("[ERROR] momentum: %v", err)
		s.trySend(fmt.Sprintf("❌ 始値比ランキング取得失敗: %v", err))
		return
	}
	s.trySend(notifier.FormatMomentum(ranked))
}

func (s *Scheduler) fcfTask() {
	log.Println("[INFO] running FCF screen")
	s.trySend(s.fcfReport(s.Ctx, ""))
}

func (s *Scheduler) monthReport(ctx context.Context, month time.Month, purchase, sale model.CalendarAnchor, refresh bool) string {
	threshold, lookback := s.screenSettings()
	rates, err := s.Screener.YuutaiWinRates(ctx, screener.YuutaiRequest{
		Month:         month,
		Purchase:      purchase,
		Sale:          sale,
		LookbackYears: lookback,
		Threshold:     threshold,
		Refresh:       refresh,
	})
	if err != nil {
		log.Printf("[ERROR] month %s: %v", model.MonthKey(month), err)
		return fmt.Sprintf("❌ %d月の勝率計算に失敗: %v", int(month), err)
	}
	return notifier.FormatWinRates(month, purchase, sale, rates, notifier.DefaultListLimit)
}

func (s *Scheduler) fcfReport(ctx context.Context, sector33 string) string {
	recs, err := s.Screener.FCFScreen(ctx, screener.FCFRequest{MinYield: s.MinFCFYield, Sector33: sector33})
	if err != nil {
		log.Printf("[ERROR] fcf screen: %v", err)
		return fmt.Sprintf("❌ FCFスクリーニング失敗: %v", err)
	}
	return notifier.FormatFCF(s.MinFCFYield, recs, notifier.DefaultListLimit)
}

func (s *Scheduler) screenSettings() (threshold float64, lookback int) {
	threshold, err := s.Settings.WinThreshold()
	if err != nil {
		log.Printf("[WARN] read win threshold: %v", err)
	}
	lookback, err = s.Settings.LookbackYears()
	if err != nil {
		log.Printf("[WARN] read lookback: %v", err)
	}
	return threshold, lookback
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

// MonthAnchors is the default window for a rights month: buy on the first of
// the previous month and sell on the 20th, before any month-end rights day.
// January buys on the first of January so the window stays inside one year.
func MonthAnchors(month time.Month) (purchase, sale model.CalendarAnchor) {
	purchase = model.CalendarAnchor{Month: month - 1, Day: 1}
	if month == time.January {
		purchase.Month = time.January
	}
	return purchase, model.CalendarAnchor{Month: month, Day: 20}
}
