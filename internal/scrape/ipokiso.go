package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"YuutaiSentinel/internal/breaker"
)

// DefaultIPOKisoURL is the IPO calendar site root.
const DefaultIPOKisoURL = "https://www.ipokiso.com"

// FirstIPOYear is the earliest year the calendar covers.
const FirstIPOYear = 2011

var (
	ipoCodeExact  = regexp.MustCompile(`^[A-Za-z0-9]{4}$`)
	ipoCodeLegacy = regexp.MustCompile(`[\(（]([0-9]{4})[\)）]`)
	ipoCodeTable  = regexp.MustCompile(`^[\dA-Za-z]{4,5}$`)
)

// IPOKiso lists the codes that listed in a given year.
type IPOKiso struct {
	source
}

// NewIPOKiso creates the scraper.
func NewIPOKiso(opts ...Option) *IPOKiso {
	return &IPOKiso{source: newSource(DefaultIPOKisoURL, opts)}
}

// Codes returns the listing codes for year, in page order without duplicates.
func (s *IPOKiso) Codes(ctx context.Context, year int) ([]string, error) {
	if year < FirstIPOYear {
		return nil, fmt.Errorf("ipokiso: no calendar before %d", FirstIPOYear)
	}
	url := fmt.Sprintf("%s/company/%d.html", strings.TrimRight(s.baseURL, "/"), year)
	doc, err := s.document(ctx, breaker.IPOKiso, url)
	if err != nil {
		return nil, fmt.Errorf("ipokiso %d: %w", year, err)
	}
	return ParseIPOCodes(doc, year)
}

// ParseIPOCodes picks the parser matching the page layout used in year.
func ParseIPOCodes(doc *goquery.Document, year int) ([]string, error) {
	switch {
	case year >= 2018:
		return parseIPOTableHead(doc), nil
	case year >= 2016:
		html, err := doc.Html()
		if err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return parseIPOLegacy(html), nil
	default:
		return parseIPOSchedule(doc), nil
	}
}

// parseIPOTableHead reads codes in parentheses from div.tableHead cells.
func parseIPOTableHead(doc *goquery.Document) []string {
	var codes []string
	doc.Find("div.tableHead td").Each(func(_ int, td *goquery.Selection) {
		parts := strings.FieldsFunc(strings.TrimSpace(td.Text()), func(r rune) bool {
			return r == '(' || r == ')' || r == '（' || r == '）'
		})
		for _, p := range parts {
			if ipoCodeExact.MatchString(p) {
				codes = append(codes, p)
			}
		}
	})
	return dedupe(codes)
}

func parseIPOLegacy(html string) []string {
	var codes []string
	for _, m := range ipoCodeLegacy.FindAllStringSubmatch(html, -1) {
		codes = append(codes, m[1])
	}
	return dedupe(codes)
}

// parseIPOSchedule reads the third column of table.sche.
func parseIPOSchedule(doc *goquery.Document) []string {
	var codes []string
	doc.Find("table.sche tbody tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 3 {
			return
		}
		code := strings.TrimSpace(tds.Eq(2).Text())
		if ipoCodeTable.MatchString(code) {
			codes = append(codes, code)
		}
	})
	return dedupe(codes)
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := codes[:0]
	for _, c := range codes {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
