package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"LiveChart/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
			"NDX":    "^NDX",
			"DJI":    "^DJI",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooIntervals lists the bar sizes the chart API accepts, smallest first.
var yahooIntervals = []struct {
	d    time.Duration
	name string
}{
	{time.Minute, "1m"},
	{2 * time.Minute, "2m"},
	{5 * time.Minute, "5m"},
	{15 * time.Minute, "15m"},
	{30 * time.Minute, "30m"},
	{time.Hour, "60m"},
	{90 * time.Minute, "90m"},
	{24 * time.Hour, "1d"},
	{5 * 24 * time.Hour, "5d"},
	{7 * 24 * time.Hour, "1wk"},
	{30 * 24 * time.Hour, "1mo"},
}

// yahooInterval returns the smallest supported bar size not below d.
func yahooInterval(d time.Duration) string {
	for _, iv := range yahooIntervals {
		if d <= iv.d {
			return iv.name
		}
	}
	return yahooIntervals[len(yahooIntervals)-1].name
}

func yahooRange(period model.Period) string {
	if period == model.PeriodLong {
		return "max"
	}
	return "1d"
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(values []interface{}, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return toFloat(values[i])
}

// Fetch downloads the chart for symbol. period "intraday" covers the current
// session, "long" the full daily history.
func (f *YahooFetcher) Fetch(ctx context.Context, symbol string, period model.Period, interval time.Duration) (*model.Series, error) {
	bars, err := f.fetchChart(ctx, symbol, yahooInterval(interval), yahooRange(period))
	if err != nil {
		return nil, err
	}
	return &model.Series{
		Symbol:    symbol,
		Period:    period,
		Interval:  interval,
		Bars:      bars,
		FetchedAt: time.Now(),
	}, nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.OHLCV, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		strings.TrimRight(f.BaseURL, "/"), url.PathEscape(f.yahooSymbol(symbol)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &ProviderError{Provider: f.Name(), Op: "build request", Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		op := "request"
		if errors.Is(err, context.DeadlineExceeded) {
			op = "timeout"
		}
		return nil, &ProviderError{Provider: f.Name(), Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: f.Name(), Op: "read body", StatusCode: resp.StatusCode, Err: err}
	}

	var chart yahooChart
	decodeErr := json.Unmarshal(body, &chart)

	// Unknown tickers come back as 404 with a chart.error payload.
	if decodeErr == nil && chart.Chart.Error != nil {
		if resp.StatusCode == http.StatusNotFound || strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return nil, &DataUnavailableError{Symbol: symbol, Reason: chart.Chart.Error.Description}
		}
		return nil, &ProviderError{Provider: f.Name(), Op: "api", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &DataUnavailableError{Symbol: symbol, Reason: "not found"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: f.Name(), Op: "status", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("body: %s", truncate(string(body), 200))}
	}
	if decodeErr != nil {
		return nil, &ProviderError{Provider: f.Name(), Op: "decode", StatusCode: resp.StatusCode, Err: decodeErr}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &DataUnavailableError{Symbol: symbol, Reason: "no data returned"}
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // halts and pre-open placeholders carry no close
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  at(quote.Close, i),
			Volume: at(quote.Volume, i),
		})
	}
	return bars, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
