package scrape

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"YuutaiSentinel/internal/breaker"
	"YuutaiSentinel/internal/model"
)

const (
	// DefaultYahooJPURL is the Yahoo! Finance Japan root.
	DefaultYahooJPURL = "https://finance.yahoo.co.jp"

	// DefaultKabuyohoURL serves forecast PER tables.
	DefaultKabuyohoURL = "https://kabuyoho.ifis.co.jp"

	rankingPath = "/stocks/ranking/tradingValueHigh?market=all&term=daily"
)

// YahooJP reads rankings, quotes and company summaries.
type YahooJP struct {
	source
	kabuyohoURL string
}

// NewYahooJP creates the scraper. kabuyohoURL may be empty for the default.
func NewYahooJP(kabuyohoURL string, opts ...Option) *YahooJP {
	if kabuyohoURL == "" {
		kabuyohoURL = DefaultKabuyohoURL
	}
	return &YahooJP{
		source:      newSource(DefaultYahooJPURL, opts),
		kabuyohoURL: strings.TrimRight(kabuyohoURL, "/"),
	}
}

func (y *YahooJP) quoteURL(code string) string {
	return strings.TrimRight(y.baseURL, "/") + "/quote/" + model.Symbol(code, model.MarketTokyo)
}

// RankingCodes returns the codes of the daily trading-value ranking, in rank order.
func (y *YahooJP) RankingCodes(ctx context.Context) ([]string, error) {
	doc, err := y.document(ctx, breaker.YahooJP, strings.TrimRight(y.baseURL, "/")+rankingPath)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	return ParseRankingCodes(doc), nil
}

// ParseRankingCodes reads the first item of every ranking supplement list.
func ParseRankingCodes(doc *goquery.Document) []string {
	var codes []string
	doc.Find("ul.RankingTable__supplements__15Cu").Each(func(_ int, ul *goquery.Selection) {
		if code := strings.TrimSpace(ul.Find("li").First().Text()); code != "" {
			codes = append(codes, code)
		}
	})
	return codes
}

// Quote reads name, current price and open from the quote page.
func (y *YahooJP) Quote(ctx context.Context, code string) (model.MomentumStock, error) {
	doc, err := y.document(ctx, breaker.YahooJP, y.quoteURL(code))
	if err != nil {
		return model.MomentumStock{}, fmt.Errorf("quote %s: %w", code, err)
	}
	return ParseQuote(doc, code), nil
}

// ParseQuote extracts a momentum quote. Missing prices read as 0 and a missing name as 不明.
func ParseQuote(doc *goquery.Document, code string) model.MomentumStock {
	name := strings.TrimSpace(doc.Find("h2.PriceBoard__name__166W").First().Text())
	if name == "" {
		name = "不明"
	}
	q := model.MomentumStock{
		Code:    code,
		Name:    name,
		Current: ParsePrice(doc.Find("span.StyledNumber__value__3rXW").First().Text()),
	}
	doc.Find("dl.DataListItem__38iJ").EachWithBreak(func(_ int, dl *goquery.Selection) bool {
		if !strings.Contains(dl.Find("dt.DataListItem__term__30Fb").Text(), "始値") {
			return true
		}
		q.Open = ParsePrice(dl.Find("dd span.DataListItem__value__11kV").Text())
		return false
	})
	return q
}

// ParsePrice strips thousands separators and keeps the integer part. Anything unparseable is 0.
func ParsePrice(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Overview returns the company summary from the financials page.
func (y *YahooJP) Overview(ctx context.Context, code string) (string, error) {
	doc, err := y.document(ctx, breaker.YahooJP, y.quoteURL(code)+"/financials")
	if err != nil {
		return "", fmt.Errorf("overview %s: %w", code, err)
	}
	text := strings.TrimSpace(doc.Find("section.styles_FinancialSummary__section__mVJS7 p.styles_FinancialSummary__sectionText__9ZYIc").First().Text())
	if text == "" {
		return "", fmt.Errorf("overview %s: %w", code, ErrNotFound)
	}
	return text, nil
}

// PER returns the forecast PER. A non-numeric cell such as "---" is ErrNotFound.
func (y *YahooJP) PER(ctx context.Context, code string) (float64, error) {
	url := fmt.Sprintf("%s/index.php?id=100&action=tp1&sa=report_per&bcode=%s", y.kabuyohoURL, code)
	doc, err := y.document(ctx, breaker.YahooJP, url)
	if err != nil {
		return 0, fmt.Errorf("per %s: %w", code, err)
	}
	text, ok := ParsePERCell(doc)
	if !ok {
		return 0, fmt.Errorf("per %s: %w", code, ErrNotFound)
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.ReplaceAll(text, ",", ""), "倍"), 64)
	if err != nil {
		return 0, fmt.Errorf("per %s: %q: %w", code, text, ErrNotFound)
	}
	return v, nil
}

// ParsePERCell returns the cell following the "PER (会予)" header.
func ParsePERCell(doc *goquery.Document) (string, bool) {
	var (
		text  string
		found bool
	)
	doc.Find("table.tb_stock_range th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if !strings.Contains(th.Text(), "PER (会予)") {
			return true
		}
		td := th.NextFiltered("td")
		if td.Length() > 0 {
			text = strings.TrimSpace(td.Text())
			found = true
		}
		return false
	})
	return text, found
}
