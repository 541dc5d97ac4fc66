package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"LiveChart/internal/model"
)

// BarsAPIFetcher implements Fetcher against a generic REST bars endpoint:
//
//	GET {BaseURL}/api/v1/bars?symbol=NVDA&period=intraday&interval=60
//
// which answers with a JSON array of bars (unix seconds timestamps).
type BarsAPIFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewBarsAPIFetcher creates a new fetcher with optional proxy support.
func NewBarsAPIFetcher(baseURL, apiKey, proxyURL string) *BarsAPIFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &BarsAPIFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *BarsAPIFetcher) Name() string { return "barsapi" }

// apiBar is the expected JSON shape from the bars API.
type apiBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *BarsAPIFetcher) Fetch(ctx context.Context, symbol string, period model.Period, interval time.Duration) (*model.Series, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("period", string(period))
	q.Set("interval", strconv.FormatInt(int64(interval/time.Second), 10))
	endpoint := fmt.Sprintf("%s/api/v1/bars?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ProviderError{Provider: f.Name(), Op: "build request", Err: err}
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		op := "request"
		if errors.Is(err, context.DeadlineExceeded) {
			op = "timeout"
		}
		return nil, &ProviderError{Provider: f.Name(), Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &DataUnavailableError{Symbol: symbol, Reason: "not found"}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ProviderError{Provider: f.Name(), Op: "status", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("body: %s", string(body))}
	}

	var raw []apiBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ProviderError{Provider: f.Name(), Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}
	if len(raw) == 0 {
		return nil, &DataUnavailableError{Symbol: symbol, Reason: "no data returned"}
	}
	bars := make([]model.OHLCV, len(raw))
	for i, b := range raw {
		bars[i] = model.OHLCV{
			Time:   time.Unix(b.Timestamp, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return &model.Series{
		Symbol:    symbol,
		Period:    period,
		Interval:  interval,
		Bars:      bars,
		FetchedAt: time.Now(),
	}, nil
}
