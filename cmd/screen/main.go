// Command screen runs one screen from the terminal and prints a table or JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"YuutaiSentinel/internal/app"
	"YuutaiSentinel/internal/calculator"
	"YuutaiSentinel/internal/calendar"
	"YuutaiSentinel/internal/config"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/scheduler"
	"YuutaiSentinel/internal/screener"
	"YuutaiSentinel/internal/strategy"
)

const usageText = `usage: screen <command> [flags]

commands:
  winrate   -code 8267 [-purchase 02-01 -sale 03-20]
  month     -month 3 [-purchase 02-01 -sale 03-20] [-refresh] [-min-rate 50 -min-trials 3]
  trailing  -codes 7203,6758 -from 2024-01-04 -to 2024-06-28 -profit 10 -stop 5
  fcf       [-code 7203] [-min 10] [-treasury] [-sector 3050] [-limit 50]
  ipo       -years 2023,2024 [-threshold 0] [-mode up|down] [-markets 0112] [-enrich]
  sectors
  momentum  [-limit 20]
  rights    [-year 2025]

every command accepts -json`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usageText)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "screen %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	if cmd == "rights" {
		return runRights(args)
	}
	if cmd == "-h" || cmd == "help" || cmd == "--help" {
		fmt.Println(usageText)
		return nil
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	a, err := app.Build(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "winrate":
		return runWinRate(ctx, a, args)
	case "month":
		return runMonth(ctx, a, args)
	case "trailing":
		return runTrailing(ctx, a, args)
	case "fcf":
		return runFCF(ctx, a, args)
	case "ipo":
		return runIPO(ctx, a, args)
	case "sectors":
		return runSectors(ctx, a, args)
	case "momentum":
		return runMomentum(ctx, a, args)
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usageText)
}

// anchorFlags resolves -purchase/-sale, falling back to def.
func anchorFlags(purchase, sale string, def func() (model.CalendarAnchor, model.CalendarAnchor, error)) (model.CalendarAnchor, model.CalendarAnchor, error) {
	if purchase == "" && sale == "" {
		return def()
	}
	if purchase == "" || sale == "" {
		return model.CalendarAnchor{}, model.CalendarAnchor{}, fmt.Errorf("-purchase and -sale must be given together")
	}
	p, err := model.ParseAnchor(purchase)
	if err != nil {
		return p, model.CalendarAnchor{}, err
	}
	s, err := model.ParseAnchor(sale)
	return p, s, err
}

func screenSettings(a *app.App) (float64, int, error) {
	threshold, err := a.Settings.WinThreshold()
	if err != nil {
		return 0, 0, err
	}
	lookback, err := a.Settings.LookbackYears()
	return threshold, lookback, err
}

func runWinRate(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("winrate", flag.ExitOnError)
	code := fs.String("code", "", "security code")
	purchase := fs.String("purchase", "", "purchase anchor MM-DD")
	sale := fs.String("sale", "", "sale anchor MM-DD")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)
	if *code == "" {
		return fmt.Errorf("-code is required")
	}

	p, s, err := anchorFlags(*purchase, *sale, a.Settings.Anchors)
	if err != nil {
		return err
	}
	threshold, lookback, err := screenSettings(a)
	if err != nil {
		return err
	}
	res, err := a.Screener.WinRate(ctx, *code, p, s, lookback, threshold)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, newWinRateJSON(res, p, s))
	}
	return printWinRate(os.Stdout, res, p, s)
}

func runMonth(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("month", flag.ExitOnError)
	month := fs.Int("month", 0, "rights month 1-12")
	purchase := fs.String("purchase", "", "purchase anchor MM-DD")
	sale := fs.String("sale", "", "sale anchor MM-DD")
	refresh := fs.Bool("refresh", false, "rescrape candidates")
	minRate := fs.Float64("min-rate", 0, "keep win rates at or above this percent")
	minTrials := fs.Int("min-trials", 0, "keep candidates with at least this many trials")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)
	if *month < 1 || *month > 12 {
		return fmt.Errorf("-month must be 1-12")
	}
	m := time.Month(*month)

	p, s, err := anchorFlags(*purchase, *sale, func() (model.CalendarAnchor, model.CalendarAnchor, error) {
		p, s := scheduler.MonthAnchors(m)
		return p, s, nil
	})
	if err != nil {
		return err
	}
	threshold, lookback, err := screenSettings(a)
	if err != nil {
		return err
	}
	rates, err := a.Screener.YuutaiWinRates(ctx, screener.YuutaiRequest{
		Month:         m,
		Purchase:      p,
		Sale:          s,
		LookbackYears: lookback,
		Threshold:     threshold,
		Refresh:       *refresh,
	})
	if err != nil {
		return err
	}
	if *minRate > 0 || *minTrials > 0 {
		rates = strategy.Shortlist(rates, *minRate, *minTrials)
	}
	if *asJSON {
		return printJSON(os.Stdout, rates)
	}
	return printWinRates(os.Stdout, rates)
}

func runTrailing(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("trailing", flag.ExitOnError)
	codes := fs.String("codes", "", "comma separated codes")
	from := fs.String("from", "", "entry day YYYY-MM-DD")
	to := fs.String("to", "", "last day YYYY-MM-DD")
	profit := fs.Float64("profit", 0, "take-profit percent")
	stopPct := fs.Float64("stop", 0, "stop-loss percent")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	fromDay, err := time.ParseInLocation("2006-01-02", *from, model.JST)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	toDay, err := time.ParseInLocation("2006-01-02", *to, model.JST)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}
	req := screener.TrailingRequest{
		Codes:     splitList(*codes),
		From:      fromDay,
		To:        toDay,
		ProfitPct: *profit,
		StopPct:   *stopPct,
	}
	if err := req.Validate(); err != nil {
		return err
	}
	results, summary, err := a.Screener.Trailing(ctx, req)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, struct {
			Results []model.TrailingResult `json:"results"`
			Summary model.TrailingSummary  `json:"summary"`
		}{results, summary})
	}
	return printTrailing(os.Stdout, results, summary)
}

func runFCF(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("fcf", flag.ExitOnError)
	code := fs.String("code", "", "single code; empty screens the market")
	minYield := fs.Float64("min", a.Config.Screen.MinFCFYield, "minimum yield percent")
	treasury := fs.Bool("treasury", false, "subtract treasury shares")
	sector := fs.String("sector", "", "33-sector code filter")
	limit := fs.Int("limit", 0, "max rows, 0 for all")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	if *code != "" {
		rec, err := a.Screener.SingleFCF(ctx, *code, *treasury)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(os.Stdout, rec)
		}
		return printFCF(os.Stdout, []model.FCFYieldRecord{rec})
	}

	recs, err := a.Screener.FCFScreen(ctx, screener.FCFRequest{
		MinYield:         *minYield,
		SubtractTreasury: *treasury,
		Sector33:         *sector,
		Limit:            *limit,
	})
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, recs)
	}
	return printFCF(os.Stdout, recs)
}

func runIPO(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("ipo", flag.ExitOnError)
	years := fs.String("years", strconv.Itoa(time.Now().In(model.JST).Year()), "comma separated listing years")
	threshold := fs.Float64("threshold", 0, "since-listing change percent")
	mode := fs.String("mode", "up", "up (>=) or down (<=)")
	markets := fs.String("markets", "", "comma separated market codes")
	enrich := fs.Bool("enrich", false, "fetch overview and PER")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	req := screener.IPORequest{Threshold: *threshold, Markets: splitList(*markets), Enrich: *enrich}
	var err error
	if req.Mode, err = calculator.ParseThresholdMode(*mode); err != nil {
		return err
	}
	for _, y := range splitList(*years) {
		n, err := strconv.Atoi(y)
		if err != nil {
			return fmt.Errorf("-years: %w", err)
		}
		req.Years = append(req.Years, n)
	}

	stocks, err := a.Screener.IPOScreen(ctx, req)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, stocks)
	}
	return printIPO(os.Stdout, stocks)
}

func runSectors(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("sectors", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	sectors, err := a.Screener.Sectors(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, sectors)
	}
	return printSectors(os.Stdout, sectors)
}

func runMomentum(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("momentum", flag.ExitOnError)
	limit := fs.Int("limit", screener.DefaultMomentumLimit, "ranking size")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	ranked, err := a.Screener.Momentum(ctx, *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, ranked)
	}
	return printMomentum(os.Stdout, ranked)
}

func runRights(args []string) error {
	fs := flag.NewFlagSet("rights", flag.ExitOnError)
	year := fs.Int("year", time.Now().In(model.JST).Year(), "calendar year")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	days := calendar.RightsDays(*year)
	if *asJSON {
		out := make([]string, len(days))
		for i, d := range days {
			out[i] = d.Format("2006-01-02")
		}
		return printJSON(os.Stdout, out)
	}
	return printRights(os.Stdout, days)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
