package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"YuutaiSentinel/internal/app"
	"YuutaiSentinel/internal/config"
	"YuutaiSentinel/internal/metrics"
	"YuutaiSentinel/internal/notifier"
	"YuutaiSentinel/internal/scheduler"
	"YuutaiSentinel/internal/trace"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] YuutaiSentinel starting...")

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	if err := trace.Init(cfg.Tracing.Enabled); err != nil {
		log.Printf("[WARN] tracing disabled: %v", err)
	}

	a, err := app.Build(cfg, app.Options{})
	if err != nil {
		log.Fatalf("[FATAL] init app: %v", err)
	}
	defer a.Close()

	srv := startMetrics(cfg.Metrics.Addr)

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	if cfg.Telegram.APIURL != "" {
		tn.APIURL = cfg.Telegram.APIURL
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, a.Screener, tn, a.Recorder, a.Settings)
	sched.MinFCFYield = cfg.Screen.MinFCFYield
	if err := sched.RegisterAll(scheduler.Schedules{
		Reminder: cfg.Schedule.ReminderCron,
		Monthly:  cfg.Schedule.MonthlyCron,
		Momentum: cfg.Schedule.MomentumCron,
		FCF:      cfg.Schedule.FCFCron,
	}); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, checking rights day now")
		go sched.RunReminderNow()
	}

	log.Println("[INFO] YuutaiSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] metrics server shutdown: %v", err)
		}
	}
	if err := trace.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] trace shutdown: %v", err)
	}
	log.Println("[INFO] YuutaiSentinel stopped")
}

func startMetrics(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] metrics server: %v", err)
		}
	}()
	log.Printf("[INFO] metrics listening on %s/metrics", addr)
	return srv
}
