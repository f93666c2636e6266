package finge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultNasdaqBaseURL = "https://api.nasdaq.com"
	defaultYahooBaseURL  = "https://query1.finance.yahoo.com"

	sourceNasdaq = "nasdaq"
	sourceYahoo  = "yahoo"
)

// maxResponseSize limits external API responses to 1MB to prevent memory exhaustion.
const maxResponseSize = 1 << 20

// HTTPDoer is an interface for making HTTP requests. It enables dependency
// injection for testing without network calls.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type quoteFetcherOptions struct {
	Logger        *slog.Logger
	CacheTTL      time.Duration
	FailThreshold int
	Cooldown      time.Duration
	HTTPTimeout   time.Duration
	HTTPClient    HTTPDoer // Optional: inject custom client for testing
	NasdaqBaseURL string
	YahooBaseURL  string
	Observe       QuoteObserver
}

// Quote fetch outcomes reported to a QuoteObserver.
const (
	QuoteOutcomeCached   = "cached"
	QuoteOutcomeOK       = "ok"
	QuoteOutcomeNotFound = "not_found"
	QuoteOutcomeError    = "error"
	QuoteOutcomeOpen     = "circuit_open"
)

// QuoteObserver is told about every upstream quote lookup.
type QuoteObserver func(source, outcome string)

type quoteFetcher struct {
	logger     *slog.Logger
	cacheTTL   time.Duration
	client     HTTPDoer
	nasdaqBase string
	yahooBase  string
	breakers   map[string]*gobreaker.CircuitBreaker[[]byte]
	observe    QuoteObserver

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	body []byte
	ts   time.Time
}

// httpStatusError is a non-2xx upstream reply.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.status)
}

func newQuoteFetcher(opts quoteFetcherOptions) *quoteFetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.HTTPTimeout,
		}
	}
	qf := &quoteFetcher{
		logger:     logger,
		cacheTTL:   opts.CacheTTL,
		client:     client,
		nasdaqBase: strings.TrimRight(firstNonEmpty(opts.NasdaqBaseURL, defaultNasdaqBaseURL), "/"),
		yahooBase:  strings.TrimRight(firstNonEmpty(opts.YahooBaseURL, defaultYahooBaseURL), "/"),
		breakers:   map[string]*gobreaker.CircuitBreaker[[]byte]{},
		cache:      map[string]cacheEntry{},
		observe:    opts.Observe,
	}
	if qf.observe == nil {
		qf.observe = func(string, string) {}
	}
	threshold := uint32(defaultInt(opts.FailThreshold, 3))
	for _, source := range []string{sourceNasdaq, sourceYahoo} {
		qf.breakers[source] = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        source,
			MaxRequests: 1,
			Timeout:     opts.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// A 404 is an answer about the ticker and a canceled request says
			// nothing about the service; neither counts as a failure.
			IsSuccessful: func(err error) bool {
				if err == nil || errors.Is(err, context.Canceled) {
					return true
				}
				var statusErr *httpStatusError
				return errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("quote source circuit changed", "source", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return qf
}

// get fetches a URL through the source's circuit breaker, serving fresh cache
// entries without touching the network.
func (qf *quoteFetcher) get(ctx context.Context, source, rawURL string, headers map[string]string) ([]byte, error) {
	if body, ok := qf.getCached(rawURL); ok {
		qf.observe(source, QuoteOutcomeCached)
		return body, nil
	}
	breaker, ok := qf.breakers[source]
	if !ok {
		return nil, fmt.Errorf("unknown quote source %q", source)
	}
	body, err := breaker.Execute(func() ([]byte, error) {
		return qf.httpGet(ctx, rawURL, headers)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			qf.observe(source, QuoteOutcomeOpen)
			return nil, WrapError(ErrCodeUpstream, source+" is cooling down", err)
		}
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound {
			qf.observe(source, QuoteOutcomeNotFound)
			return nil, WrapError(ErrCodeNotFound, source+" has no data", err)
		}
		qf.observe(source, QuoteOutcomeError)
		return nil, WrapError(ErrCodeUpstream, source+" request failed", err)
	}
	qf.observe(source, QuoteOutcomeOK)
	qf.setCached(rawURL, body)
	return body, nil
}

func (qf *quoteFetcher) getCached(key string) ([]byte, bool) {
	qf.cacheMu.RLock()
	defer qf.cacheMu.RUnlock()
	entry, ok := qf.cache[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.ts) <= qf.cacheTTL {
		return entry.body, true
	}
	return nil, false
}

// setCached stores body and drops expired entries.
func (qf *quoteFetcher) setCached(key string, body []byte) {
	qf.cacheMu.Lock()
	defer qf.cacheMu.Unlock()
	now := time.Now()
	for k, entry := range qf.cache {
		if now.Sub(entry.ts) > qf.cacheTTL {
			delete(qf.cache, k)
		}
	}
	qf.cache[key] = cacheEntry{body: body, ts: now}
}

func (qf *quoteFetcher) httpGet(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := qf.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

var nasdaqHeaders = map[string]string{
	"Accept":     "application/json",
	"User-Agent": "Mozilla/5.0",
}

func (qf *quoteFetcher) nasdaqURL(path string, query url.Values) string {
	u := qf.nasdaqBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// nasdaqEnvelope is the wrapper every Nasdaq API reply shares.
type nasdaqEnvelope[T any] struct {
	Data   *T `json:"data"`
	Status struct {
		RCode        int `json:"rCode"`
		BCodeMessage []struct {
			Code         int    `json:"code"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"bCodeMessage"`
	} `json:"status"`
}

type nasdaqLabelValue struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

func (lv nasdaqLabelValue) String() string {
	switch v := lv.Value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return NewAmount(v).String()
	default:
		return fmt.Sprint(v)
	}
}

type nasdaqInfoData struct {
	Symbol       string `json:"symbol"`
	CompanyName  string `json:"companyName"`
	Exchange     string `json:"exchange"`
	MarketStatus string `json:"marketStatus"`
	PrimaryData  *struct {
		LastSalePrice      string `json:"lastSalePrice"`
		NetChange          string `json:"netChange"`
		PercentageChange   string `json:"percentageChange"`
		Volume             string `json:"volume"`
		LastTradeTimestamp string `json:"lastTradeTimestamp"`
	} `json:"primaryData"`
	KeyStats map[string]nasdaqLabelValue `json:"keyStats"`
}

func decodeNasdaq[T any](body []byte, ticker string) (*T, error) {
	var envelope nasdaqEnvelope[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, WrapError(ErrCodeUpstream, "decode nasdaq response", err)
	}
	if envelope.Data == nil {
		message := "no data available"
		if len(envelope.Status.BCodeMessage) > 0 && envelope.Status.BCodeMessage[0].ErrorMessage != "" {
			message = envelope.Status.BCodeMessage[0].ErrorMessage
		}
		return nil, Errorf(ErrCodeNotFound, "nasdaq: %s: %s", ticker, message)
	}
	return envelope.Data, nil
}

// FetchSnapshot returns the Nasdaq quote snapshot reduced to the fields the
// app displays. Missing fields read "N/A".
func (c *Core) FetchSnapshot(ctx context.Context, ticker string) (*NasdaqSnapshot, error) {
	return c.quotes.fetchSnapshot(ctx, ticker)
}

func (qf *quoteFetcher) fetchSnapshot(ctx context.Context, ticker string) (*NasdaqSnapshot, error) {
	rawURL := qf.nasdaqURL("/api/quote/"+url.PathEscape(ticker)+"/info", url.Values{"assetclass": {"stocks"}})
	body, err := qf.get(ctx, sourceNasdaq, rawURL, nasdaqHeaders)
	if err != nil {
		return nil, err
	}
	data, err := decodeNasdaq[nasdaqInfoData](body, ticker)
	if err != nil {
		return nil, err
	}
	return extractSnapshot(data), nil
}

func extractSnapshot(data *nasdaqInfoData) *NasdaqSnapshot {
	snapshot := &NasdaqSnapshot{
		Symbol:            orNA(data.Symbol),
		CompanyName:       orNA(data.CompanyName),
		Exchange:          orNA(data.Exchange),
		MarketStatus:      orNA(data.MarketStatus),
		LastSalePrice:     notAvailable,
		NetChange:         notAvailable,
		PercentageChange:  notAvailable,
		Volume:            notAvailable,
		LastTradeDate:     notAvailable,
		FiftyTwoWeekRange: notAvailable,
	}
	if p := data.PrimaryData; p != nil {
		snapshot.LastSalePrice = orNA(p.LastSalePrice)
		snapshot.NetChange = orNA(p.NetChange)
		snapshot.PercentageChange = orNA(p.PercentageChange)
		snapshot.Volume = orNA(p.Volume)
		snapshot.LastTradeDate = orNA(p.LastTradeTimestamp)
	}
	if stat, ok := data.KeyStats["fiftyTwoWeekHighLow"]; ok {
		snapshot.FiftyTwoWeekRange = orNA(stat.String())
	}
	return snapshot
}

type nasdaqSummaryData struct {
	Symbol      string                      `json:"symbol"`
	SummaryData map[string]nasdaqLabelValue `json:"summaryData"`
}

// FetchFundamentals returns sector, valuation and dividend figures from the
// Nasdaq summary endpoint.
func (c *Core) FetchFundamentals(ctx context.Context, ticker string) (*Fundamentals, error) {
	return c.quotes.fetchFundamentals(ctx, ticker)
}

func (qf *quoteFetcher) fetchFundamentals(ctx context.Context, ticker string) (*Fundamentals, error) {
	rawURL := qf.nasdaqURL("/api/quote/"+url.PathEscape(ticker)+"/summary", url.Values{"assetclass": {"stocks"}})
	body, err := qf.get(ctx, sourceNasdaq, rawURL, nasdaqHeaders)
	if err != nil {
		return nil, err
	}
	data, err := decodeNasdaq[nasdaqSummaryData](body, ticker)
	if err != nil {
		return nil, err
	}
	field := func(key string) string {
		return data.SummaryData[key].String()
	}
	return &Fundamentals{
		Symbol:             strings.ToUpper(firstNonEmpty(data.Symbol, ticker)),
		Sector:             field("Sector"),
		Industry:           field("Industry"),
		MarketCap:          field("MarketCap"),
		PERatio:            field("PERatio"),
		ForwardPE:          field("ForwardPE1Yr"),
		EarningsPerShare:   field("EarningsPerShare"),
		AnnualizedDividend: field("AnnualizedDividend"),
		Yield:              field("Yield"),
		OneYearTarget:      field("OneYrTarget"),
		AverageVolume:      field("AverageVolume"),
	}, nil
}

// FetchProfile returns the company description from Nasdaq.
func (c *Core) FetchProfile(ctx context.Context, ticker string) (*CompanyProfile, error) {
	return c.quotes.fetchProfile(ctx, ticker)
}

func (qf *quoteFetcher) fetchProfile(ctx context.Context, ticker string) (*CompanyProfile, error) {
	rawURL := qf.nasdaqURL("/api/company/"+url.PathEscape(ticker)+"/company-profile", nil)
	body, err := qf.get(ctx, sourceNasdaq, rawURL, nasdaqHeaders)
	if err != nil {
		return nil, err
	}
	data, err := decodeNasdaq[map[string]nasdaqLabelValue](body, ticker)
	if err != nil {
		return nil, err
	}
	fields := *data
	return &CompanyProfile{
		Symbol:      ticker,
		CompanyName: fields["CompanyName"].String(),
		Description: fields["CompanyDescription"].String(),
		Sector:      fields["Sector"].String(),
		Industry:    fields["Industry"].String(),
		Website:     fields["CompanyUrl"].String(),
	}, nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta       yahooChartMeta `json:"meta"`
			Timestamp  []int64        `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartMeta struct {
	Symbol               string   `json:"symbol"`
	Currency             string   `json:"currency"`
	ExchangeName         string   `json:"exchangeName"`
	FullExchangeName     string   `json:"fullExchangeName"`
	ShortName            string   `json:"shortName"`
	LongName             string   `json:"longName"`
	GMTOffset            int64    `json:"gmtoffset"`
	RegularMarketPrice   *float64 `json:"regularMarketPrice"`
	ChartPreviousClose   *float64 `json:"chartPreviousClose"`
	PreviousClose        *float64 `json:"previousClose"`
	RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
	RegularMarketVolume  *float64 `json:"regularMarketVolume"`
}

// FetchYahooQuote returns quote metadata and the last five daily bars from
// the Yahoo chart API.
func (c *Core) FetchYahooQuote(ctx context.Context, ticker string) (*StockMetadata, []HistoricalBar, error) {
	return c.quotes.fetchYahooQuote(ctx, ticker)
}

func (qf *quoteFetcher) fetchYahooQuote(ctx context.Context, ticker string) (*StockMetadata, []HistoricalBar, error) {
	rawURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=5d", qf.yahooBase, url.PathEscape(ticker))
	body, err := qf.get(ctx, sourceYahoo, rawURL, map[string]string{"User-Agent": "Mozilla/5.0"})
	if err != nil {
		return nil, nil, err
	}
	var payload yahooChartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, WrapError(ErrCodeUpstream, "decode yahoo response", err)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil, NewError(ErrCodeNotFound, "Ticker not found or no data available.")
	}
	result := payload.Chart.Result[0]
	meta := result.Meta
	if meta.RegularMarketPrice == nil {
		return nil, nil, NewError(ErrCodeNotFound, "Ticker not found or no data available.")
	}

	metadata := &StockMetadata{
		Ticker:        firstNonEmpty(meta.Symbol, ticker),
		Name:          firstNonEmpty(meta.ShortName, meta.LongName),
		Currency:      meta.Currency,
		Exchange:      firstNonEmpty(meta.FullExchangeName, meta.ExchangeName),
		CurrentPrice:  amountOrZero(meta.RegularMarketPrice),
		PreviousClose: amountOrZero(firstNonNil(meta.PreviousClose, meta.ChartPreviousClose)),
		DayLow:        amountOrZero(meta.RegularMarketDayLow),
		DayHigh:       amountOrZero(meta.RegularMarketDayHigh),
		Volume:        amountOrZero(meta.RegularMarketVolume),
	}

	var historical []HistoricalBar
	if len(result.Indicators.Quote) > 0 {
		quote := result.Indicators.Quote[0]
		for i, ts := range result.Timestamp {
			bar, ok := historicalBarAt(i, quote.Open, quote.High, quote.Low, quote.Close, quote.Volume)
			if !ok {
				continue
			}
			bar.Date = time.Unix(ts+meta.GMTOffset, 0).UTC().Format("2006-01-02")
			historical = append(historical, bar)
		}
		if n := len(quote.Open); n > 0 && quote.Open[n-1] != nil {
			metadata.Open = NewAmount(*quote.Open[n-1])
		}
	}
	return metadata, historical, nil
}

func historicalBarAt(i int, open, high, low, closes, volume []*float64) (HistoricalBar, bool) {
	at := func(values []*float64) (float64, bool) {
		if i >= len(values) || values[i] == nil {
			return 0, false
		}
		return *values[i], true
	}
	c, ok := at(closes)
	if !ok {
		return HistoricalBar{}, false
	}
	o, _ := at(open)
	h, _ := at(high)
	l, _ := at(low)
	v, _ := at(volume)
	return HistoricalBar{
		Open:   NewAmount(o),
		High:   NewAmount(h),
		Low:    NewAmount(l),
		Close:  NewAmount(c),
		Volume: NewAmount(v),
	}, true
}

// CheckAvailable reports whether live quote data exists for ticker, trying
// Nasdaq first and Yahoo second.
func (c *Core) CheckAvailable(ctx context.Context, ticker string) bool {
	snapshot, err := c.quotes.fetchSnapshot(ctx, ticker)
	if err == nil && snapshot.LastSalePrice != notAvailable {
		return true
	}
	if err != nil {
		c.logger.Debug("nasdaq availability check failed", "ticker", ticker, "err", err)
	}
	if _, _, err := c.quotes.fetchYahooQuote(ctx, ticker); err != nil {
		c.logger.Debug("yahoo availability check failed", "ticker", ticker, "err", err)
		return false
	}
	return true
}

const notAvailable = "N/A"

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func amountOrZero(v *float64) Amount {
	if v == nil {
		return NewAmount(0)
	}
	return NewAmount(*v)
}
