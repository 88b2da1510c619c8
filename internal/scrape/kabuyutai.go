package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"YuutaiSentinel/internal/breaker"
	"YuutaiSentinel/internal/httpclient"
	"YuutaiSentinel/internal/model"
)

// DefaultKabuyutaiURL is the per-month benefit listing root.
const DefaultKabuyutaiURL = "https://www.kabuyutai.com/yutai/"

// kabuyutaiNotFound is the body text of the site's soft 404 page.
const kabuyutaiNotFound = "お探しのページが見つかりませんでした"

// maxKabuyutaiPages bounds pagination when the site never returns a soft 404.
const maxKabuyutaiPages = 50

var kabuyutaiCode = regexp.MustCompile(`[（(]([A-Za-z0-9]{4})[）)]`)

// Kabuyutai lists shareholder-benefit candidates per rights month.
type Kabuyutai struct {
	source
}

// NewKabuyutai creates the scraper.
func NewKabuyutai(opts ...Option) *Kabuyutai {
	return &Kabuyutai{source: newSource(DefaultKabuyutaiURL, opts)}
}

// PageURL returns the listing URL for a month. Page 1 has no number suffix.
func (k *Kabuyutai) PageURL(month time.Month, page int) string {
	base := strings.TrimRight(k.baseURL, "/") + "/" + model.MonthKey(month)
	if page <= 1 {
		return base + ".html"
	}
	return fmt.Sprintf("%s%d.html", base, page)
}

// Candidates walks every page for month until a soft 404, an HTTP error or an empty page.
// Only a failure on the first page is returned as an error.
func (k *Kabuyutai) Candidates(ctx context.Context, month time.Month) ([]model.YuutaiCandidate, error) {
	if model.MonthKey(month) == "" {
		return nil, fmt.Errorf("kabuyutai: invalid month %d", month)
	}

	var out []model.YuutaiCandidate
	for page := 1; page <= maxKabuyutaiPages; page++ {
		rows, err := k.page(ctx, k.PageURL(month, page))
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("kabuyutai %s: %w", model.MonthKey(month), err)
			}
			if !errors.Is(err, ErrNotFound) {
				log.Printf("[WARN] kabuyutai %s page %d: %v", model.MonthKey(month), page, err)
			}
			break
		}
		if len(rows) == 0 {
			break
		}
		out = append(out, rows...)
	}
	log.Printf("[INFO] kabuyutai %s: %d candidates", model.MonthKey(month), len(out))
	return out, nil
}

func (k *Kabuyutai) page(ctx context.Context, url string) ([]model.YuutaiCandidate, error) {
	start := time.Now()
	rows, err := breaker.Do(ctx, k.breakers, breaker.Kabuyutai, func() ([]model.YuutaiCandidate, error) {
		c := colly.NewCollector(
			colly.StdlibContext(ctx),
			colly.UserAgent(httpclient.UserAgent),
		)
		c.SetClient(k.client)

		var (
			rows     []model.YuutaiCandidate
			notFound bool
		)
		c.OnResponse(func(r *colly.Response) {
			if strings.Contains(string(r.Body), kabuyutaiNotFound) {
				notFound = true
			}
		})
		c.OnHTML("div.table_tr_inner", func(e *colly.HTMLElement) {
			if notFound {
				return
			}
			if cand, ok := parseKabuyutaiRow(e.DOM); ok {
				rows = append(rows, cand)
			}
		})

		if err := c.Visit(url); err != nil {
			if strings.Contains(err.Error(), "Not Found") {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if notFound {
			return nil, ErrNotFound
		}
		return rows, nil
	})
	if k.metrics != nil {
		k.metrics.ObserveFetch(breaker.Kabuyutai, start, err)
	}
	return rows, err
}

// parseKabuyutaiRow reads one div.table_tr_inner. Rows without a name link or code are skipped.
func parseKabuyutaiRow(row *goquery.Selection) (model.YuutaiCandidate, bool) {
	info := row.Find("div.table_tr_info").First()
	first := info.Find("p").First()
	link := first.Find("a.kigyoumei").First()
	if link.Length() == 0 {
		return model.YuutaiCandidate{}, false
	}
	m := kabuyutaiCode.FindStringSubmatch(first.Text())
	if m == nil {
		return model.YuutaiCandidate{}, false
	}
	return model.YuutaiCandidate{
		Code:       m[1],
		Name:       strings.TrimSpace(link.Text()),
		CreditType: strings.TrimSpace(info.Find("p.taishaku b").First().Text()),
	}, true
}

// ParseKabuyutai extracts candidates from one listing page.
func ParseKabuyutai(doc *goquery.Document) []model.YuutaiCandidate {
	var out []model.YuutaiCandidate
	doc.Find("div.table_tr_inner").Each(func(_ int, row *goquery.Selection) {
		if cand, ok := parseKabuyutaiRow(row); ok {
			out = append(out, cand)
		}
	})
	return out
}
