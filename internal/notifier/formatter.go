package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
	"YuutaiSentinel/internal/strategy"
)

// DefaultListLimit caps list replies.
const DefaultListLimit = 30

var weekdaysJP = [...]string{"日", "月", "火", "水", "木", "金", "土"}

func dateJP(t time.Time) string {
	t = model.DayOf(t)
	return fmt.Sprintf("%s(%s)", t.Format("2006/01/02"), weekdaysJP[t.Weekday()])
}

func name(code, n string) string {
	if n == "" {
		return code
	}
	return fmt.Sprintf("%s %s", code, html.EscapeString(n))
}

func pct(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *p)
}

// FormatWinRates formats a month's win-rate ranking.
func FormatWinRates(month time.Month, purchase, sale model.CalendarAnchor, rates []model.StockWinRate, limit int) string {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎁 <b>%d月優待 勝率ランキング</b>\n", int(month)))
	b.WriteString(fmt.Sprintf("購入 %s → 売却 %s\n\n", purchase, sale))
	if len(rates) == 0 {
		b.WriteString("該当銘柄なし")
		return b.String()
	}
	for i, r := range rates {
		if i >= limit {
			b.WriteString(fmt.Sprintf("\n…ほか%d銘柄", len(rates)-limit))
			break
		}
		mark := "  "
		if strategy.Favourable(r.Result) {
			mark = "✅"
		}
		credit := ""
		if r.CreditType != "" {
			credit = fmt.Sprintf(" [%s]", r.CreditType)
		}
		b.WriteString(fmt.Sprintf("%s %s%s: %.1f%% (%d回)\n",
			mark, name(r.Code, r.Name), credit, r.Result.WinRatePercent, r.Result.TrialCount))
	}
	return b.String()
}

// FormatWinRate formats one code's win rate with its yearly pairs.
func FormatWinRate(r model.StockWinRate, purchase, sale model.CalendarAnchor) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b>\n", name(r.Code, r.Name)))
	b.WriteString(fmt.Sprintf("購入 %s → 売却 %s\n", purchase, sale))
	b.WriteString(fmt.Sprintf("勝率: %.1f%% (%d回)\n\n", r.Result.WinRatePercent, r.Result.TrialCount))
	for _, p := range r.Pairs {
		if p.Sale == nil || p.PercentChange == nil {
			b.WriteString(fmt.Sprintf("%d: 売却データなし\n", p.Year))
			continue
		}
		line := fmt.Sprintf("%d: %.0f → %.0f (%s)", p.Year, *p.Purchase.Bar.AdjClose, *p.Sale.Bar.AdjClose, pct(p.PercentChange))
		if p.IntervalLow != nil && p.IntervalHigh != nil {
			line += fmt.Sprintf(" 安値%.0f 高値%.0f", *p.IntervalLow, *p.IntervalHigh)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// FormatTrailing formats a trailing backtest.
func FormatTrailing(from, to time.Time, profitPct, stopPct float64, results []model.TrailingResult, summary model.TrailingSummary) string {
	var b strings.Builder
	b.WriteString("🎯 <b>利確・損切りバックテスト</b>\n")
	b.WriteString(fmt.Sprintf("%s 〜 %s | 利確 +%.1f%% / 損切 -%.1f%%\n\n", dateJP(from), dateJP(to), profitPct, stopPct))
	for _, r := range results {
		b.WriteString(fmt.Sprintf("%s: %s\n", r.Code, outcomeJP(r.Outcome)))
	}
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("勝ち %d | 負け %d | 未決 %d | エラー %d\n", summary.Win, summary.Lose, summary.Undecided, summary.Error))
	b.WriteString(fmt.Sprintf("負け率: %.1f%%\n", summary.LoseRatio))
	return b.String()
}

func outcomeJP(o model.TrailingOutcome) string {
	switch o {
	case model.OutcomeWin:
		return "🟢 利確"
	case model.OutcomeLose:
		return "🔴 損切"
	case model.OutcomeUndecided:
		return "⚪ 未決"
	default:
		return "⚠️ エラー"
	}
}

var bandEmoji = map[string]string{"green": "🟢", "blue": "🔵", "orange": "🟠", "red": "🔴"}

// FormatFCF formats an FCF yield list with its display bands.
func FormatFCF(minYield float64, records []model.FCFYieldRecord, limit int) string {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💴 <b>FCF利回り %.0f%%超</b>\n\n", minYield))
	if len(records) == 0 {
		b.WriteString("該当銘柄なし")
		return b.String()
	}
	for i, r := range records {
		if i >= limit {
			b.WriteString(fmt.Sprintf("\n…ほか%d銘柄", len(records)-limit))
			break
		}
		b.WriteString(formatFCFLine(r) + "\n")
	}
	return b.String()
}

// FormatFCFRecord formats a single FCF record with its inputs.
func FormatFCFRecord(r model.FCFYieldRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💴 <b>%s</b>\n", name(r.Code, r.Name)))
	b.WriteString(formatFCFLine(r) + "\n\n")
	b.WriteString(fmt.Sprintf("開示日: %s\n", r.DisclosedDate))
	b.WriteString(fmt.Sprintf("営業CF: %.0f\n", r.OperatingCashFlow))
	b.WriteString(fmt.Sprintf("投資CF: %.0f\n", r.InvestingCashFlow))
	b.WriteString(fmt.Sprintf("株式数: %.0f\n", r.SharesOutstanding))
	b.WriteString(fmt.Sprintf("株価: %.0f\n", r.ClosingPrice))
	return b.String()
}

func formatFCFLine(r model.FCFYieldRecord) string {
	band := strategy.BandFor(r)
	return fmt.Sprintf("%s %s: %.1f%% (%s)", bandEmoji[band.Color], name(r.Code, r.Name), r.FCFYieldPercent, band.Label)
}

// FormatSectors lists the 33-industry codes accepted by /fcf sector.
func FormatSectors(sectors []model.Sector33) string {
	var b strings.Builder
	b.WriteString("🏭 <b>33業種</b>\n\n")
	for _, s := range sectors {
		b.WriteString(fmt.Sprintf("%s %s\n", s.Code, html.EscapeString(s.Name)))
	}
	return b.String()
}

// FormatIPO formats an IPO screen.
func FormatIPO(stocks []model.IPOStock, limit int) string {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var b strings.Builder
	b.WriteString("🆕 <b>IPO 上場来騰落率</b>\n\n")
	if len(stocks) == 0 {
		b.WriteString("該当銘柄なし")
		return b.String()
	}
	for i, s := range stocks {
		if i >= limit {
			b.WriteString(fmt.Sprintf("\n…ほか%d銘柄", len(stocks)-limit))
			break
		}
		line := fmt.Sprintf("%s: %s", name(s.Code, s.Name), pct(s.SinceListing))
		if !s.ListedOn.IsZero() {
			line += fmt.Sprintf(" (上場 %s)", s.ListedOn.In(model.JST).Format("2006/01/02"))
		}
		if s.PER != nil {
			line += fmt.Sprintf(" PER %.1f倍", *s.PER)
		}
		b.WriteString(line + "\n")
		if s.Overview != "" {
			b.WriteString(fmt.Sprintf("  <i>%s</i>\n", html.EscapeString(truncate(s.Overview, 80))))
		}
	}
	return b.String()
}

// FormatMomentum formats the intraday ranking.
func FormatMomentum(stocks []model.MomentumStock) string {
	var b strings.Builder
	b.WriteString("🚀 <b>売買代金上位 始値比</b>\n\n")
	if len(stocks) == 0 {
		b.WriteString("データなし")
		return b.String()
	}
	for i, s := range stocks {
		b.WriteString(fmt.Sprintf("%d. %s: %d → %d (%+.2f%%)\n", i+1, name(s.Code, s.Name), s.Open, s.Current, s.Change))
	}
	return b.String()
}

// FormatRightsCalendar lists the year's last rights-attached days and marks the next one.
func FormatRightsCalendar(days []time.Time, today time.Time) string {
	var b strings.Builder
	today = model.DayOf(today)
	b.WriteString("📅 <b>権利付き最終日</b>\n\n")
	marked := false
	for _, d := range days {
		mark := "  "
		if !marked && !d.Before(today) {
			mark = "👉"
			marked = true
		}
		b.WriteString(fmt.Sprintf("%s %d月: %s\n", mark, int(d.Month()), dateJP(d)))
	}
	return b.String()
}

// FormatReminder is the rights-day reminder.
func FormatReminder(day time.Time) string {
	var b strings.Builder
	b.WriteString("🔔 <b>優待権利付き最終日</b>\n\n")
	b.WriteString(fmt.Sprintf("%s は%d月の権利付き最終日です。\n", dateJP(day), int(day.In(model.JST).Month())))
	b.WriteString("現渡しわすれてない？")
	return b.String()
}

// FormatHistory lists past recorded win rates for one code.
func FormatHistory(code string, rows []recorder.HistoryRow) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>%s 勝率履歴</b>\n\n", code))
	if len(rows) == 0 {
		b.WriteString("記録なし")
		return b.String()
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%s | %s → %s: %.1f%% (%d回)\n",
			r.RecordedAt.In(model.JST).Format("2006/01/02 15:04"), r.Purchase, r.Sale, r.WinRatePercent, r.TrialCount))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
