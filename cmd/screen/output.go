package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"YuutaiSentinel/internal/model"
	"YuutaiSentinel/internal/strategy"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func opt(p *float64, format string) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf(format, *p)
}

type pairJSON struct {
	Year          int      `json:"year"`
	PurchaseDate  string   `json:"purchase_date"`
	PurchasePrice *float64 `json:"purchase_price"`
	SaleDate      string   `json:"sale_date,omitempty"`
	SalePrice     *float64 `json:"sale_price,omitempty"`
	IntervalHigh  *float64 `json:"interval_high,omitempty"`
	IntervalLow   *float64 `json:"interval_low,omitempty"`
	PercentChange *float64 `json:"percent_change,omitempty"`
}

type winRateJSON struct {
	model.StockWinRate
	Purchase string     `json:"purchase"`
	Sale     string     `json:"sale"`
	Pairs    []pairJSON `json:"pairs"`
}

func newWinRateJSON(r model.StockWinRate, purchase, sale model.CalendarAnchor) winRateJSON {
	out := winRateJSON{StockWinRate: r, Purchase: purchase.String(), Sale: sale.String()}
	for _, p := range r.Pairs {
		pj := pairJSON{
			Year:          p.Year,
			PurchaseDate:  p.Purchase.Bar.Date.Format("2006-01-02"),
			PurchasePrice: p.Purchase.Bar.AdjClose,
			IntervalHigh:  p.IntervalHigh,
			IntervalLow:   p.IntervalLow,
			PercentChange: p.PercentChange,
		}
		if p.Sale != nil {
			pj.SaleDate = p.Sale.Bar.Date.Format("2006-01-02")
			pj.SalePrice = p.Sale.Bar.AdjClose
		}
		out.Pairs = append(out.Pairs, pj)
	}
	return out
}

func printWinRate(w io.Writer, r model.StockWinRate, purchase, sale model.CalendarAnchor) error {
	fmt.Fprintf(w, "%s %s  %s -> %s  win %.1f%% (%d trials)\n\n",
		r.Code, r.Name, purchase, sale, r.Result.WinRatePercent, r.Result.TrialCount)
	tw := table(w)
	fmt.Fprintln(tw, "YEAR\tBUY\tSELL\tLOW\tHIGH\tCHANGE")
	for _, p := range r.Pairs {
		sell := "-"
		if p.Sale != nil {
			sell = opt(p.Sale.Bar.AdjClose, "%.1f")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.Year,
			opt(p.Purchase.Bar.AdjClose, "%.1f"), sell,
			opt(p.IntervalLow, "%.1f"), opt(p.IntervalHigh, "%.1f"), opt(p.PercentChange, "%+.2f%%"))
	}
	return tw.Flush()
}

func printWinRates(w io.Writer, rates []model.StockWinRate) error {
	tw := table(w)
	fmt.Fprintln(tw, "CODE\tNAME\tCREDIT\tWIN%\tTRIALS\t")
	for _, r := range rates {
		mark := ""
		if strategy.Favourable(r.Result) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%d\t%s\n",
			r.Code, r.Name, r.CreditType, r.Result.WinRatePercent, r.Result.TrialCount, mark)
	}
	return tw.Flush()
}

func printTrailing(w io.Writer, results []model.TrailingResult, s model.TrailingSummary) error {
	tw := table(w)
	fmt.Fprintln(tw, "CODE\tOUTCOME")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\n", r.Code, r.Outcome)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nwin %d  lose %d  undecided %d  error %d  lose ratio %.1f%%\n",
		s.Win, s.Lose, s.Undecided, s.Error, s.LoseRatio)
	return err
}

func printFCF(w io.Writer, recs []model.FCFYieldRecord) error {
	tw := table(w)
	fmt.Fprintln(tw, "CODE\tNAME\tYIELD%\tBAND\tDISCLOSED\tCLOSE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%.0f\n",
			r.Code, r.Name, r.FCFYieldPercent, strategy.BandFor(r).Label, r.DisclosedDate, r.ClosingPrice)
	}
	return tw.Flush()
}

func printSectors(w io.Writer, sectors []model.Sector33) error {
	tw := table(w)
	fmt.Fprintln(tw, "CODE\tSECTOR")
	for _, s := range sectors {
		fmt.Fprintf(tw, "%s\t%s\n", s.Code, s.Name)
	}
	return tw.Flush()
}

func printIPO(w io.Writer, stocks []model.IPOStock) error {
	tw := table(w)
	fmt.Fprintln(tw, "CODE\tNAME\tLISTED\tCHANGE\tPER")
	for _, s := range stocks {
		listed := "-"
		if !s.ListedOn.IsZero() {
			listed = s.ListedOn.In(model.JST).Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.Code, s.Name, listed, opt(s.SinceListing, "%+.2f%%"), opt(s.PER, "%.1f"))
	}
	return tw.Flush()
}

func printMomentum(w io.Writer, stocks []model.MomentumStock) error {
	tw := table(w)
	fmt.Fprintln(tw, "#\tCODE\tNAME\tOPEN\tNOW\tCHANGE")
	for i, s := range stocks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%+.2f%%\n", i+1, s.Code, s.Name, s.Open, s.Current, s.Change)
	}
	return tw.Flush()
}

func printRights(w io.Writer, days []time.Time) error {
	tw := table(w)
	fmt.Fprintln(tw, "MONTH\tLAST RIGHTS DAY")
	for _, d := range days {
		fmt.Fprintf(tw, "%d\t%s\n", int(d.Month()), d.Format("2006-01-02 Mon"))
	}
	return tw.Flush()
}
