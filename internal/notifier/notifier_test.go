package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/recorder"
)

func TestFormatWinRates(t *testing.T) {
	rates := []model.StockWinRate{
		{YuutaiCandidate: model.YuutaiCandidate{Code: "3382", Name: "セブン&アイ", CreditType: "貸借"}, Result: model.WinRateResult{WinRatePercent: 80, TrialCount: 10}},
		{YuutaiCandidate: model.YuutaiCandidate{Code: "8267", Name: "イオン"}, Result: model.WinRateResult{WinRatePercent: 40, TrialCount: 5}},
		{YuutaiCandidate: model.YuutaiCandidate{Code: "2702"}, Result: model.WinRateResult{}},
	}
	p := model.CalendarAnchor{Month: time.January, Day: 10}
	s := model.CalendarAnchor{Month: time.February, Day: 20}

	got := FormatWinRates(time.February, p, s, rates, 2)
	for _, want := range []string{
		"2月優待", "01-10", "02-20",
		"✅ 3382 セブン&amp;アイ [貸借]: 80.0% (10回)",
		"8267 イオン: 40.0% (5回)",
		"…ほか1銘柄",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatWinRates missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "2702") {
		t.Errorf("limit not applied:\n%s", got)
	}

	if got := FormatWinRates(time.June, p, s, nil, 0); !strings.Contains(got, "該当銘柄なし") {
		t.Errorf("empty list: %s", got)
	}
}

func TestFormatWinRate_Pairs(t *testing.T) {
	buy := model.AnchoredBar{Year: 2024, Bar: model.PriceBar{AdjClose: model.Float(100)}}
	sell := model.AnchoredBar{Year: 2024, Bar: model.PriceBar{AdjClose: model.Float(112)}}
	r := model.StockWinRate{
		YuutaiCandidate: model.YuutaiCandidate{Code: "9831"},
		Result:          model.WinRateResult{WinRatePercent: 100, TrialCount: 1},
		Pairs: []model.ReturnPair{
			{Year: 2023, Purchase: buy},
			{Year: 2024, Purchase: buy, Sale: &sell, PercentChange: model.Float(12), IntervalLow: model.Float(95), IntervalHigh: model.Float(115)},
		},
	}
	got := FormatWinRate(r, model.CalendarAnchor{Month: 3, Day: 1}, model.CalendarAnchor{Month: 3, Day: 25})
	for _, want := range []string{"2023: 売却データなし", "2024: 100 → 112 (+12.0%) 安値95 高値115", "勝率: 100.0% (1回)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatTrailing(t *testing.T) {
	got := FormatTrailing(
		model.Day(2024, time.March, 1), model.Day(2024, time.March, 29), 10, 5,
		[]model.TrailingResult{{Code: "1001", Outcome: model.OutcomeWin}, {Code: "1002", Outcome: model.OutcomeError}},
		model.TrailingSummary{Win: 1, Error: 1},
	)
	for _, want := range []string{"2024/03/01(金)", "利確 +10.0%", "損切 -5.0%", "1001: 🟢 利確", "1002: ⚠️ エラー", "勝ち 1 | 負け 0 | 未決 0 | エラー 1", "負け率: 0.0%"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatFCF_Bands(t *testing.T) {
	records := []model.FCFYieldRecord{
		{Code: "1301", Name: "A", FCFYieldPercent: 25},
		{Code: "1302", Name: "B", FCFYieldPercent: 16},
		{Code: "1303", Name: "C", FCFYieldPercent: 10.5},
	}
	got := FormatFCF(10, records, 0)
	for _, want := range []string{"10%超", "🟢 1301 A: 25.0% (優秀)", "🔵 1302 B: 16.0% (良好)", "🟠 1303 C: 10.5% (普通)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	one := FormatFCFRecord(model.FCFYieldRecord{Code: "1301", FCFYieldPercent: 5, DisclosedDate: "2025-05-14", ClosingPrice: 50})
	for _, want := range []string{"🔴", "低い", "開示日: 2025-05-14", "株価: 50"} {
		if !strings.Contains(one, want) {
			t.Errorf("missing %q in:\n%s", want, one)
		}
	}
}

func TestFormatIPO(t *testing.T) {
	stocks := []model.IPOStock{{
		Code: "5001", Name: "新規", SinceListing: model.Float(50), PER: model.Float(12.5),
		ListedOn: model.Day(2024, time.March, 12), Overview: strings.Repeat("あ", 100),
	}}
	got := FormatIPO(stocks, 0)
	for _, want := range []string{"5001 新規: +50.0%", "上場 2024/03/12", "PER 12.5倍", "…</i>"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatMomentum(t *testing.T) {
	got := FormatMomentum([]model.MomentumStock{{Code: "7203", Name: "トヨタ", Open: 1000, Current: 1050, Change: 5}})
	if !strings.Contains(got, "1. 7203 トヨタ: 1000 → 1050 (+5.00%)") {
		t.Errorf("unexpected momentum:\n%s", got)
	}
}

func TestFormatSectors(t *testing.T) {
	got := FormatSectors([]model.Sector33{{Code: "3050", Name: "食料品"}, {Code: "3700", Name: "輸送用機器"}})
	if !strings.Contains(got, "3050 食料品\n3700 輸送用機器") {
		t.Errorf("FormatSectors = %q", got)
	}
}

func TestFormatRightsCalendar_MarksNext(t *testing.T) {
	days := []time.Time{model.Day(2025, time.January, 29), model.Day(2025, time.February, 26), model.Day(2025, time.March, 27)}
	got := FormatRightsCalendar(days, model.Day(2025, time.February, 3))
	lines := strings.Split(got, "\n")
	var marked []string
	for _, l := range lines {
		if strings.HasPrefix(l, "👉") {
			marked = append(marked, l)
		}
	}
	if len(marked) != 1 || !strings.Contains(marked[0], "2月") {
		t.Errorf("expected February marked, got %v", marked)
	}
}

func TestFormatReminder(t *testing.T) {
	got := FormatReminder(model.Day(2025, time.March, 27))
	for _, want := range []string{"優待権利付き最終日", "現渡しわすれてない？", "3月", "2025/03/27(木)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatHistory(t *testing.T) {
	rows := []recorder.HistoryRow{{
		RecordedAt: time.Date(2025, 3, 1, 0, 30, 0, 0, time.UTC), Purchase: "02-01", Sale: "03-20", WinRatePercent: 70, TrialCount: 10,
	}}
	got := FormatHistory("3382", rows)
	if !strings.Contains(got, "2025/03/01 09:30 | 02-01 → 03-20: 70.0% (10回)") {
		t.Errorf("unexpected history:\n%s", got)
	}
	if got := FormatHistory("3382", nil); !strings.Contains(got, "記録なし") {
		t.Errorf("empty history: %s", got)
	}
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("あいうえお\n", 10) // 16 bytes per line
	parts := splitMessage(text, 40)
	if strings.Join(parts, "") != text {
		t.Fatalf("parts do not reassemble")
	}
	for _, p := range parts {
		if len(p) > 40 {
			t.Errorf("part too long: %d", len(p))
		}
	}

	long := strings.Repeat("あ", 20) // one 60-byte line
	parts = splitMessage(long, 25)
	if strings.Join(parts, "") != long {
		t.Fatalf("long line does not reassemble")
	}
	for _, p := range parts {
		if !strings.HasPrefix(p, "あ") || len(p)%3 != 0 {
			t.Errorf("split inside a rune: %q", p)
		}
	}
}

func TestTelegramSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIURL = srv.URL
	if err := tn.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "hello" || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestTelegramSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIURL = srv.URL
	err := tn.Send("hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestStartPolling_FiltersChats(t *testing.T) {
	var (
		mu       sync.Mutex
		served   bool
		replies  []string
		received []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if served {
				cancel()
				w.Write([]byte(`{"ok":true,"result":[]}`))
				return
			}
			served = true
			w.Write([]byte(`{"ok":true,"result":[
				{"update_id":1,"message":{"text":"/rights","chat":{"id":42}}},
				{"update_id":2,"message":{"text":"/rights","chat":{"id":99}}}
			]}`))
		case "/botTOKEN/sendMessage":
			var p map[string]any
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &p)
			replies = append(replies, p["text"].(string))
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIURL = srv.URL
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(_ context.Context, cmd string) string {
			mu.Lock()
			received = append(received, cmd)
			mu.Unlock()
			return "ok " + cmd
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != "/rights" {
		t.Errorf("received %v", received)
	}
	if len(replies) != 1 || replies[0] != "ok /rights" {
		t.Errorf("replies %v", replies)
	}
}
