package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"YuutaiSentinel/internal/breaker"
	"YuutaiSentinel/internal/httpclient"
	"YuutaiSentinel/internal/metrics"
	"YuutaiSentinel/internal/model"
)

// DefaultYahooURL is the chart API root.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL  string
	Client   *http.Client
	Breakers *breaker.Registry
	Metrics  *metrics.Metrics
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: DefaultYahooURL,
		Client:  httpclient.New(proxyURL, httpclient.DefaultTimeout),
	}
}

func (f *YahooFetcher) Name() string { return breaker.Yahoo }

// yahooChart is the response structure from the chart API. Nulls stay nil.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vs []*float64, i int) *float64 {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}

// FetchDailyBars requests [from, to] inclusive. period2 is exclusive upstream, so one day is added.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) (model.PriceSeries, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&events=history&period1=%d&period2=%d",
		f.BaseURL, url.PathEscape(symbol),
		model.DayOf(from).Unix(), model.DayOf(to).AddDate(0, 0, 1).Unix())

	start := time.Now()
	series, err := breaker.Do(ctx, f.Breakers, breaker.Yahoo, func() (model.PriceSeries, error) {
		return f.fetchChart(ctx, u)
	})
	if f.Metrics != nil {
		f.Metrics.ObserveFetch(breaker.Yahoo, start, err)
	}
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	return series, nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, u string) (model.PriceSeries, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, ErrNoData
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	series := make(model.PriceSeries, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar := model.PriceBar{
			Date:     model.DayOf(time.Unix(ts, 0)),
			Open:     at(quote.Open, i),
			High:     at(quote.High, i),
			Low:      at(quote.Low, i),
			Close:    at(quote.Close, i),
			AdjClose: at(adj, i),
		}
		if bar.Open == nil && bar.High == nil && bar.Low == nil && bar.Close == nil && bar.AdjClose == nil {
			continue // holiday placeholder
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = model.Int(int64(*v))
		}
		series = append(series, bar)
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return series, nil
}
