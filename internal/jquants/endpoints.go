package jquants

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"YuutaiSentinel/internal/model"
)

const dateLayout = "2006-01-02"

// ListedInfo returns the listed-issue master. An empty code returns every issue.
func (c *Client) ListedInfo(ctx context.Context, code string) ([]model.ListedInfo, error) {
	params := url.Values{}
	if code != "" {
		params.Set("code", code)
	}
	var resp struct {
		Info []model.ListedInfo `json:"info"`
	}
	if err := c.get(ctx, "/v1/listed/info", params, &resp); err != nil {
		return nil, fmt.Errorf("listed info %s: %w", code, err)
	}
	return resp.Info, nil
}

// Statements returns every disclosed financial statement for a code.
func (c *Client) Statements(ctx context.Context, code string) ([]model.Statement, error) {
	var out []model.Statement
	params := url.Values{"code": {code}}
	for {
		var resp struct {
			Statements    []model.Statement `json:"statements"`
			PaginationKey string            `json:"pagination_key"`
		}
		if err := c.get(ctx, "/v1/fins/statements", params, &resp); err != nil {
			return nil, fmt.Errorf("statements %s: %w", code, err)
		}
		out = append(out, resp.Statements...)
		if resp.PaginationKey == "" {
			return out, nil
		}
		params.Set("pagination_key", resp.PaginationKey)
	}
}

// DailyQuotes returns daily bars for code between from and to inclusive.
func (c *Client) DailyQuotes(ctx context.Context, code string, from, to time.Time) ([]model.DailyQuote, error) {
	var out []model.DailyQuote
	params := url.Values{
		"code": {code},
		"from": {from.In(model.JST).Format(dateLayout)},
		"to":   {to.In(model.JST).Format(dateLayout)},
	}
	for {
		var resp struct {
			Quotes        []model.DailyQuote `json:"daily_quotes"`
			PaginationKey string             `json:"pagination_key"`
		}
		if err := c.get(ctx, "/v1/prices/daily_quotes", params, &resp); err != nil {
			return nil, fmt.Errorf("daily quotes %s: %w", code, err)
		}
		out = append(out, resp.Quotes...)
		if resp.PaginationKey == "" {
			return out, nil
		}
		params.Set("pagination_key", resp.PaginationKey)
	}
}

// ToSeries converts daily quotes into a price series. Rows with an unparseable date are skipped.
func ToSeries(quotes []model.DailyQuote) model.PriceSeries {
	series := make(model.PriceSeries, 0, len(quotes))
	for _, q := range quotes {
		d, err := time.ParseInLocation(dateLayout, q.Date, model.JST)
		if err != nil {
			continue
		}
		bar := model.PriceBar{
			Date:     d,
			Open:     q.Open,
			High:     q.High,
			Low:      q.Low,
			Close:    q.Close,
			AdjClose: q.AdjustmentClose,
		}
		if q.Volume != nil {
			bar.Volume = model.Int(int64(*q.Volume))
		}
		series = append(series, bar)
	}
	return series
}
