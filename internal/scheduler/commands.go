package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"YuutaiSentinel/internal/calculator"
	"YuutaiSentinel/internal/calendar"
	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/notifier"
	"YuutaiSentinel/internal/screener"
)

const helpText = `可用コマンド:
• /winrate <コード> [MM-DD MM-DD] 個別勝率
• /month <1-12> [MM-DD MM-DD] 月別優待勝率
• /trailing <コード,...> <開始> <終了> <利確%> <損切%>
• /fcf [コード | sector <業種コード>] FCF利回り
• /sectors 33業種コード一覧
• /ipo <年> [閾値] [up|down]
• /momentum 始値比ランキング
• /rights [年] 権利付き最終日
• /notify on|off 権利日リマインダー
• /threshold <%> 勝ち判定の閾値
• /lookback <年> 検証期間
• /anchors <MM-DD> <MM-DD> 既定の購入日・売却日
• /history <コード> 勝率履歴`

var errUsage = errors.New("usage")

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Group chats append the bot name: /rights@yuutai_bot.
	cmd, _, _ := strings.Cut(fields[0], "@")
	args := fields[1:]

	var (
		reply string
		err   error
	)
	switch cmd {
	case "/winrate", "勝率":
		reply, err = s.cmdWinRate(ctx, args)
	case "/month", "月別":
		reply, err = s.cmdMonth(ctx, args)
	case "/trailing":
		reply, err = s.cmdTrailing(ctx, args)
	case "/fcf":
		reply, err = s.cmdFCF(ctx, args)
	case "/sectors":
		reply, err = s.cmdSectors(ctx)
	case "/ipo":
		reply, err = s.cmdIPO(ctx, args)
	case "/momentum", "始値比":
		reply, err = s.cmdMomentum(ctx)
	case "/rights", "権利日":
		reply, err = s.cmdRights(args)
	case "/notify":
		reply, err = s.cmdNotify(args)
	case "/threshold":
		reply, err = s.cmdThreshold(args)
	case "/lookback":
		reply, err = s.cmdLookback(args)
	case "/anchors":
		reply, err = s.cmdAnchors(args)
	case "/history":
		reply, err = s.cmdHistory(args)
	default:
		return helpText
	}
	if errors.Is(err, errUsage) {
		return fmt.Sprintf("⚠️ %v\n\n%s", err, helpText)
	}
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	return reply
}

func usage(text string) error {
	return fmt.Errorf("%w: %s", errUsage, text)
}

func usagef(format string, a ...any) error {
	return usage(fmt.Sprintf(format, a...))
}

// parseAnchors reads an optional "MM-DD MM-DD" pair starting at args[i].
func parseAnchors(args []string, i int) (purchase, sale model.CalendarAnchor, ok bool, err error) {
	if len(args) <= i {
		return purchase, sale, false, nil
	}
	if len(args) != i+2 {
		return purchase, sale, false, usage("購入日と売却日は両方指定してください")
	}
	if purchase, err = model.ParseAnchor(args[i]); err != nil {
		return purchase, sale, false, err
	}
	if sale, err = model.ParseAnchor(args[i+1]); err != nil {
		return purchase, sale, false, err
	}
	return purchase, sale, true, nil
}

func (s *Scheduler) cmdWinRate(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", usage("/winrate <コード>")
	}
	purchase, sale, ok, err := parseAnchors(args, 1)
	if err != nil {
		return "", err
	}
	if !ok {
		if purchase, sale, err = s.Settings.Anchors(); err != nil {
			return "", err
		}
	}
	threshold, lookback := s.screenSettings()
	res, err := s.Screener.WinRate(ctx, args[0], purchase, sale, lookback, threshold)
	if err != nil {
		return "", fmt.Errorf("%s の勝率計算に失敗: %w", args[0], err)
	}
	return notifier.FormatWinRate(res, purchase, sale), nil
}

func (s *Scheduler) cmdMonth(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", usage("/month <1-12>")
	}
	m, err := strconv.Atoi(args[0])
	if err != nil || m < 1 || m > 12 {
		return "", usage("月は1〜12で指定してください")
	}
	month := time.Month(m)
	purchase, sale, ok, err := parseAnchors(args, 1)
	if err != nil {
		return "", err
	}
	if !ok {
		purchase, sale = MonthAnchors(month)
	}
	return s.monthReport(ctx, month, purchase, sale, false), nil
}

func (s *Scheduler) cmdTrailing(ctx context.Context, args []string) (string, error) {
	if len(args) != 5 {
		return "", usage("/trailing <コード,...> <YYYY-MM-DD> <YYYY-MM-DD> <利確%> <損切%>")
	}
	from, err := time.ParseInLocation("2006-01-02", args[1], model.JST)
	if err != nil {
		return "", usagef("開始日 %q", args[1])
	}
	to, err := time.ParseInLocation("2006-01-02", args[2], model.JST)
	if err != nil {
		return "", usagef("終了日 %q", args[2])
	}
	profit, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return "", usagef("利確 %q", args[3])
	}
	stop, err := strconv.ParseFloat(args[4], 64)
	if err != nil {
		return "", usagef("損切 %q", args[4])
	}
	req := screener.TrailingRequest{
		Codes:     strings.Split(args[0], ","),
		From:      from,
		To:        to,
		ProfitPct: profit,
		StopPct:   stop,
	}
	if err := req.Validate(); err != nil {
		return "", usagef("%v", err)
	}
	results, summary, err := s.Screener.Trailing(ctx, req)
	if err != nil {
		return "", err
	}
	return notifier.FormatTrailing(from, to, profit, stop, results, summary), nil
}

func (s *Scheduler) cmdFCF(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return s.fcfReport(ctx, ""), nil
	}
	if args[0] == "sector" {
		if len(args) != 2 {
			return "", usage("/fcf sector <業種コード>")
		}
		return s.fcfReport(ctx, args[1]), nil
	}
	rec, err := s.Screener.SingleFCF(ctx, args[0], false)
	if err != nil {
		return "", err
	}
	return notifier.FormatFCFRecord(rec), nil
}

func (s *Scheduler) cmdSectors(ctx context.Context) (string, error) {
	sectors, err := s.Screener.Sectors(ctx)
	if err != nil {
		return "", err
	}
	return notifier.FormatSectors(sectors), nil
}

func (s *Scheduler) cmdIPO(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", usage("/ipo <年> [閾値] [up|down]")
	}
	year, err := strconv.Atoi(args[0])
	if err != nil || year < 2000 {
		return "", usagef("年 %q", args[0])
	}
	req := screener.IPORequest{Years: []int{year}, Mode: calculator.AtLeast}
	if len(args) > 1 {
		if req.Threshold, err = strconv.ParseFloat(args[1], 64); err != nil {
			return "", usagef("閾値 %q", args[1])
		}
	}
	if len(args) > 2 {
		if req.Mode, err = calculator.ParseThresholdMode(args[2]); err != nil {
			return "", usagef("%v", err)
		}
	}
	stocks, err := s.Screener.IPOScreen(ctx, req)
	if err != nil {
		return "", err
	}
	return notifier.FormatIPO(stocks, notifier.DefaultListLimit), nil
}

func (s *Scheduler) cmdMomentum(ctx context.Context) (string, error) {
	ranked, err := s.Screener.Momentum(ctx, screener.DefaultMomentumLimit)
	if err != nil {
		return "", err
	}
	return notifier.FormatMomentum(ranked), nil
}

func (s *Scheduler) cmdRights(args []string) (string, error) {
	now := s.now()
	year := now.In(model.JST).Year()
	if len(args) > 0 {
		y, err := strconv.Atoi(args[0])
		if err != nil {
			return "", usagef("年 %q", args[0])
		}
		year = y
	}
	return notifier.FormatRightsCalendar(calendar.RightsDays(year), now), nil
}

func (s *Scheduler) cmdNotify(args []string) (string, error) {
	if len(args) == 0 {
		on, err := s.Settings.NotifyRightsDay()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("権利日リマインダー: %s", onOff(on)), nil
	}
	var on bool
	switch strings.ToLower(args[0]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return "", usage("/notify on|off")
	}
	if err := s.Settings.SetNotifyRightsDay(on); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ 権利日リマインダーを%sにしました", onOff(on)), nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func (s *Scheduler) cmdThreshold(args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("/threshold <%>")
	}
	pct, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "", usagef("閾値 %q", args[0])
	}
	if err := s.Settings.SetWinThreshold(pct); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ 勝ち判定の閾値を %.1f%% にしました", pct), nil
}

func (s *Scheduler) cmdLookback(args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("/lookback <年>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "", usagef("年数 %q", args[0])
	}
	if err := s.Settings.SetLookbackYears(n); err != nil {
		return "", err
	}
	if n == 0 {
		return "✅ 検証期間を全期間にしました", nil
	}
	return fmt.Sprintf("✅ 検証期間を%d年にしました", n), nil
}

func (s *Scheduler) cmdAnchors(args []string) (string, error) {
	purchase, sale, ok, err := parseAnchors(args, 0)
	if err != nil {
		return "", err
	}
	if !ok {
		p, sl, err := s.Settings.Anchors()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("購入 %s → 売却 %s", p, sl), nil
	}
	if err := s.Settings.SetAnchors(purchase, sale); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ 購入 %s → 売却 %s にしました", purchase, sale), nil
}

func (s *Scheduler) cmdHistory(args []string) (string, error) {
	if len(args) != 1 {
		return "", usage("/history <コード>")
	}
	hl, ok := s.Recorder.(HistoryLog)
	if !ok {
		return "", errors.New("履歴は記録されていません")
	}
	rows, err := hl.WinRateHistory(args[0], 10)
	if err != nil {
		return "", err
	}
	return notifier.FormatHistory(args[0], rows), nil
}
