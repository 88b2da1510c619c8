package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"YuutaiSentinel/internal/cache"
	"YuutaiSentinel/internal/calculator"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/screener"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		APIURL   string `yaml:"api_url"`
	} `yaml:"telegram"`
	JQuants struct {
		Mail      string `yaml:"mail"`
		Password  string `yaml:"password"`
		BaseURL   string `yaml:"base_url"`
		RateLimit int    `yaml:"rate_limit"`
	} `yaml:"jquants"`
	Sources struct {
		Kabuyutai string `yaml:"kabuyutai"`
		IPOKiso   string `yaml:"ipokiso"`
		YahooJP   string `yaml:"yahoo_jp"`
		Kabuyoho  string `yaml:"kabuyoho"`
	} `yaml:"sources"`
	Schedule struct {
		ReminderCron string `yaml:"reminder_cron"`
		MonthlyCron  string `yaml:"monthly_cron"`
		MomentumCron string `yaml:"momentum_cron"`
		FCFCron      string `yaml:"fcf_cron"`
	} `yaml:"schedule"`
	Screen struct {
		WinThreshold   float64 `yaml:"win_threshold"`
		LookbackYears  int     `yaml:"lookback_years"`
		PurchaseAnchor string  `yaml:"purchase_anchor"` // MM-DD; empty means today
		SaleAnchor     string  `yaml:"sale_anchor"`     // MM-DD; empty means a month after purchase
		MinFCFYield    float64 `yaml:"min_fcf_yield"`
		Concurrency    int     `yaml:"concurrency"`
		NotifyRights   *bool   `yaml:"notify_rights_day"`
	} `yaml:"screen"`
	Cache struct {
		File string `yaml:"file"`
	} `yaml:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Tracing struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"tracing"`
	Proxy string `yaml:"proxy"`
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads a .env file if present, then the YAML file, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("JQUANTS_MAIL"); v != "" {
		c.JQuants.Mail = v
	}
	if v := os.Getenv("JQUANTS_PASSWORD"); v != "" {
		c.JQuants.Password = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_REMINDER"); v != "" {
		c.Schedule.ReminderCron = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("WIN_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("WIN_THRESHOLD: %w", err)
		}
		c.Screen.WinThreshold = f
	}
	if v := os.Getenv("LOOKBACK_YEARS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOOKBACK_YEARS: %w", err)
		}
		c.Screen.LookbackYears = n
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACING_ENABLED: %w", err)
		}
		c.Tracing.Enabled = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Schedule.ReminderCron == "" {
		c.Schedule.ReminderCron = "0 0 19 * * 1-5"
	}
	if c.Schedule.MonthlyCron == "" {
		c.Schedule.MonthlyCron = "0 0 9 1 * *"
	}
	if c.Schedule.MomentumCron == "" {
		c.Schedule.MomentumCron = "0 30 15 * * 1-5"
	}
	if c.Schedule.FCFCron == "" {
		c.Schedule.FCFCron = "0 0 9 * * 6"
	}
	if c.Screen.LookbackYears == 0 {
		c.Screen.LookbackYears = 10
	}
	if c.Screen.MinFCFYield == 0 {
		c.Screen.MinFCFYield = screener.DefaultMinYield
	}
	if c.Screen.Concurrency == 0 {
		c.Screen.Concurrency = screener.DefaultConcurrency
	}
	if c.Screen.NotifyRights == nil {
		on := true
		c.Screen.NotifyRights = &on
	}
	if c.Cache.File == "" {
		c.Cache.File = "data/cache.json"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/yuutai_sentinel.db"
	}
}

// Validate checks the settings every entry point depends on.
func (c *Config) Validate() error {
	if c.Screen.LookbackYears < 1 {
		return fmt.Errorf("screen.lookback_years must be at least 1")
	}
	if c.Screen.Concurrency < 1 {
		return fmt.Errorf("screen.concurrency must be positive")
	}
	for field, v := range map[string]string{
		"screen.purchase_anchor": c.Screen.PurchaseAnchor,
		"screen.sale_anchor":     c.Screen.SaleAnchor,
	} {
		if v == "" {
			continue
		}
		if _, err := model.ParseAnchor(v); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if (c.JQuants.Mail == "") != (c.JQuants.Password == "") {
		return fmt.Errorf("jquants.mail and jquants.password must be set together")
	}
	return nil
}

// ValidateBot additionally checks what the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for field, spec := range map[string]string{
		"schedule.reminder_cron": c.Schedule.ReminderCron,
		"schedule.monthly_cron":  c.Schedule.MonthlyCron,
		"schedule.momentum_cron": c.Schedule.MomentumCron,
		"schedule.fcf_cron":      c.Schedule.FCFCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

// HasJQuants reports whether J-Quants credentials are configured.
func (c *Config) HasJQuants() bool {
	return c.JQuants.Mail != "" && c.JQuants.Password != ""
}

// Anchors resolves the default purchase and sale anchors. An empty purchase
// anchor means today and an empty sale anchor means one month after purchase.
func (c *Config) Anchors(now time.Time) (purchase, sale model.CalendarAnchor, err error) {
	today := now.In(model.JST)
	purchase = model.CalendarAnchor{Month: today.Month(), Day: today.Day()}
	if v := strings.TrimSpace(c.Screen.PurchaseAnchor); v != "" {
		if purchase, err = model.ParseAnchor(v); err != nil {
			return purchase, sale, err
		}
	}
	if v := strings.TrimSpace(c.Screen.SaleAnchor); v != "" {
		sale, err = model.ParseAnchor(v)
		return purchase, sale, err
	}
	next := purchase.In(today.Year()).AddDate(0, 1, 0)
	return purchase, model.CalendarAnchor{Month: next.Month(), Day: next.Day()}, nil
}

// SettingsDefaults maps the config onto the fallback values of the settings store.
func (c *Config) SettingsDefaults(now time.Time) (cache.Defaults, error) {
	p, s, err := c.Anchors(now)
	if err != nil {
		return cache.Defaults{}, err
	}
	threshold := c.Screen.WinThreshold
	if threshold == 0 {
		threshold = calculator.DefaultWinThreshold
	}
	notify := c.Screen.NotifyRights == nil || *c.Screen.NotifyRights
	return cache.Defaults{
		NotifyRightsDay: notify,
		WinThreshold:    threshold,
		LookbackYears:   c.Screen.LookbackYears,
		PurchaseAnchor:  p,
		SaleAnchor:      s,
	}, nil
}
