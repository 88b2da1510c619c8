package calculator

import (
	"testing"
	"time"

	"YuutaiSentinel/internal/model"
)

func bar(y int, m time.Month, d int, adj float64) model.PriceBar {
	return model.PriceBar{Date: model.Day(y, m, d), AdjClose: model.Float(adj)}
}

var march28 = model.CalendarAnchor{Month: time.March, Day: 28}

func TestMatchAnchor_ExactHit(t *testing.T) {
	series := model.PriceSeries{
		bar(2023, time.March, 27, 99),
		bar(2023, time.March, 28, 100),
		bar(2023, time.March, 29, 101),
	}
	got := MatchAnchor(series, march28)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Offset != 0 || *got[0].Bar.AdjClose != 100 {
		t.Errorf("expected exact bar, got offset %d adj %.0f", got[0].Offset, *got[0].Bar.AdjClose)
	}
}

func TestMatchAnchor_OffsetPriority(t *testing.T) {
	tests := []struct {
		name       string
		days       []int
		wantDay    int
		wantOffset int
	}{
		{"minus one beats plus one", []int{27, 29}, 27, -1},
		{"plus one when minus missing", []int{29, 30}, 29, 1},
		{"minus two beats plus two", []int{26, 30}, 26, -2},
		{"plus three is last resort", []int{31}, 31, 3},
	}
	for _, tt := range tests {
		var series model.PriceSeries
		for _, d := range tt.days {
			series = append(series, bar(2022, time.March, d, float64(d)))
		}
		got := MatchAnchor(series, march28)
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 match, got %d", tt.name, len(got))
		}
		if got[0].Bar.Date.Day() != tt.wantDay || got[0].Offset != tt.wantOffset {
			t.Errorf("%s: got day %d offset %d, want day %d offset %d",
				tt.name, got[0].Bar.Date.Day(), got[0].Offset, tt.wantDay, tt.wantOffset)
		}
	}
}

func TestMatchAnchor_NoMatchBeyondOffsets(t *testing.T) {
	series := model.PriceSeries{
		bar(2021, time.March, 24, 1),
		bar(2021, time.April, 1, 2),
	}
	if got := MatchAnchor(series, march28); len(got) != 0 {
		t.Errorf("expected no match at ±4 days, got %d", len(got))
	}
}

func TestMatchAnchor_UnsortedInputSortedOutput(t *testing.T) {
	series := model.PriceSeries{
		bar(2024, time.March, 28, 3),
		bar(2020, time.March, 27, 1),
		bar(2019, time.June, 1, 0), // year present, no bar near the anchor
		bar(2022, time.March, 28, 2),
	}
	got := MatchAnchor(series, march28)
	want := []int{2020, 2022, 2024}
	if len(got) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(got))
	}
	for i, y := range want {
		if got[i].Year != y {
			t.Errorf("index %d: expected year %d, got %d", i, y, got[i].Year)
		}
	}
}

func TestMatchAnchor_CrossesMonthBoundary(t *testing.T) {
	// Anchor 03-01 falls back to 02-28 (offset -1) before 03-02.
	series := model.PriceSeries{
		bar(2023, time.February, 28, 10),
		bar(2023, time.March, 2, 11),
	}
	got := MatchAnchor(series, model.CalendarAnchor{Month: time.March, Day: 1})
	if len(got) != 1 || got[0].Bar.Date.Month() != time.February {
		t.Fatalf("expected February 28 bar, got %+v", got)
	}
}

func TestMatchAnchor_Idempotent(t *testing.T) {
	series := model.PriceSeries{bar(2023, time.March, 29, 5), bar(2024, time.March, 27, 6)}
	a := MatchAnchor(series, march28)
	b := MatchAnchor(series, march28)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Year != b[i].Year || a[i].Offset != b[i].Offset || !a[i].Bar.Date.Equal(b[i].Bar.Date) {
			t.Errorf("index %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if series[0].Date.Day() != 29 {
		t.Error("input series was mutated")
	}
}
