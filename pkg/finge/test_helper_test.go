package finge

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// setupTestDB creates a temporary database for testing and returns a Core instance.
// The caller should defer cleanup() to remove the temp file.
func setupTestDB(t *testing.T) (*Core, func()) {
	t.Helper()
	return setupTestCore(t, Options{})
}

// setupTestCore opens a Core in a temp dir. Unset upstreams default to a
// quote mock that knows AAPL, a vision fake answering "AAPL" and a local
// image store inside the temp dir.
func setupTestCore(t *testing.T, opts Options) (*Core, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "finge-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	opts.DBPath = filepath.Join(tmpDir, "test.db")
	if opts.HTTPClient == nil {
		opts.HTTPClient = newQuoteMock("AAPL")
	}
	if opts.Extractor == nil {
		opts.Extractor = &fakeExtractor{answer: "AAPL"}
	}
	if opts.Images == nil {
		opts.Images = NewLocalImageStore(filepath.Join(tmpDir, "images"))
	}
	core, err := OpenWithOptions(opts)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open test db: %v", err)
	}

	cleanup := func() {
		core.Close()
		os.RemoveAll(tmpDir)
	}

	return core, cleanup
}

// fakeExtractor implements TickerExtractor for testing.
type fakeExtractor struct {
	answer string
	err    error
	calls  int
}

func (f *fakeExtractor) ExtractTicker(ctx context.Context, img Image) (string, error) {
	f.calls++
	return f.answer, f.err
}

// mockHTTPClient implements HTTPDoer for testing.
type mockHTTPClient struct {
	status int
	body   string

	mu    sync.Mutex
	calls int
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
		Header:     make(http.Header),
	}, nil
}

func (m *mockHTTPClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// quoteMock answers Nasdaq and Yahoo requests for a fixed set of tickers.
type quoteMock struct {
	known map[string]bool
	// nasdaqDown makes every Nasdaq call fail with 503.
	nasdaqDown bool

	mu    sync.Mutex
	calls map[string]int
}

func newQuoteMock(tickers ...string) *quoteMock {
	known := map[string]bool{}
	for _, ticker := range tickers {
		known[ticker] = true
	}
	return &quoteMock{known: known, calls: map[string]int{}}
}

func (m *quoteMock) Do(req *http.Request) (*http.Response, error) {
	path := req.URL.Path
	m.mu.Lock()
	m.calls[path]++
	m.mu.Unlock()

	isNasdaq := strings.HasPrefix(path, "/api/")
	if isNasdaq && m.nasdaqDown {
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	}
	ticker := tickerFromPath(path)
	known := m.known[ticker]

	switch {
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		if !known {
			return jsonResponse(http.StatusNotFound, yahooNotFoundBody), nil
		}
		return jsonResponse(http.StatusOK, yahooChartBody), nil
	case !known:
		return jsonResponse(http.StatusOK, nasdaqNoDataBody), nil
	case strings.HasSuffix(path, "/info"):
		return jsonResponse(http.StatusOK, nasdaqInfoBody), nil
	case strings.HasSuffix(path, "/summary"):
		return jsonResponse(http.StatusOK, nasdaqSummaryBody), nil
	case strings.HasSuffix(path, "/company-profile"):
		return jsonResponse(http.StatusOK, nasdaqProfileBody), nil
	}
	return jsonResponse(http.StatusNotFound, `{}`), nil
}

func (m *quoteMock) callCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// tickerFromPath pulls the ticker out of /api/quote/{t}/..., /api/company/{t}/...
// and /v8/finance/chart/{t}.
func tickerFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 3 && parts[0] == "api":
		return strings.ToUpper(parts[2])
	case len(parts) >= 4 && parts[0] == "v8":
		return strings.ToUpper(parts[3])
	}
	return ""
}

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     header,
	}
}

func newTestQuoteFetcher(client HTTPDoer, failThreshold int) *quoteFetcher {
	return newQuoteFetcher(quoteFetcherOptions{
		CacheTTL:      time.Minute,
		FailThreshold: failThreshold,
		Cooldown:      time.Hour,
		HTTPTimeout:   time.Second,
		HTTPClient:    client,
	})
}

const nasdaqInfoBody = `{
	"data": {
		"symbol": "AAPL",
		"companyName": "Apple Inc. Common Stock",
		"exchange": "NASDAQ-GS",
		"marketStatus": "Closed",
		"primaryData": {
			"lastSalePrice": "$227.48",
			"netChange": "+2.61",
			"percentageChange": "+1.16%",
			"volume": "44,123,456",
			"lastTradeTimestamp": "Oct 16, 2025"
		},
		"keyStats": {
			"fiftyTwoWeekHighLow": {"label": "52 Week Range:", "value": "164.08 - 237.23"}
		}
	},
	"status": {"rCode": 200}
}`

const nasdaqSummaryBody = `{
	"data": {
		"symbol": "aapl",
		"summaryData": {
			"Sector": {"label": "Sector", "value": "Technology"},
			"Industry": {"label": "Industry", "value": "Computer Manufacturing"},
			"MarketCap": {"label": "Market Cap", "value": "3,450,123,456,789"},
			"PERatio": {"label": "P/E Ratio", "value": 37.5},
			"EarningsPerShare": {"label": "Earnings Per Share(EPS)", "value": "$6.08"},
			"Yield": {"label": "Current Yield", "value": "0.44%"},
			"OneYrTarget": {"label": "1 Year Target", "value": "$240.00"},
			"AverageVolume": {"label": "Average Volume", "value": "52,310,000"}
		}
	},
	"status": {"rCode": 200}
}`

const nasdaqProfileBody = `{
	"data": {
		"CompanyName": {"label": "Company Name", "value": "Apple Inc."},
		"CompanyDescription": {"label": "Company Description", "value": "Apple designs, manufactures and markets smartphones, personal computers, tablets, wearables and accessories."},
		"Sector": {"label": "Sector", "value": "Technology"},
		"Industry": {"label": "Industry", "value": "Computer Manufacturing"},
		"CompanyUrl": {"label": "Company Url", "value": "https://www.apple.com"}
	},
	"status": {"rCode": 200}
}`

const nasdaqNoDataBody = `{
	"data": null,
	"status": {"rCode": 400, "bCodeMessage": [{"code": 1001, "errorMessage": "Symbol not exists."}]}
}`

const yahooChartBody = `{
	"chart": {
		"result": [{
			"meta": {
				"symbol": "AAPL",
				"currency": "USD",
				"exchangeName": "NMS",
				"fullExchangeName": "NasdaqGS",
				"shortName": "Apple Inc.",
				"gmtoffset": -14400,
				"regularMarketPrice": 227.48,
				"chartPreviousClose": 224.87,
				"regularMarketDayHigh": 228.5,
				"regularMarketDayLow": 225.1,
				"regularMarketVolume": 44123456
			},
			"timestamp": [1760621400, 1760707800],
			"indicators": {
				"quote": [{
					"open": [225.0, 226.1],
					"high": [226.0, 228.5],
					"low": [224.0, 225.1],
					"close": [224.87, 227.48],
					"volume": [40000000, 44123456]
				}]
			}
		}],
		"error": null
	}
}`

const yahooNotFoundBody = `{
	"chart": {
		"result": null,
		"error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
	}
}`
