package finge

// NasdaqSnapshot is the subset of a Nasdaq quote the app shows after a scan.
type NasdaqSnapshot struct {
	Symbol            string `json:"symbol"`
	CompanyName       string `json:"companyName"`
	Exchange          string `json:"exchange"`
	LastSalePrice     string `json:"lastSalePrice"`
	NetChange         string `json:"netChange"`
	PercentageChange  string `json:"percentageChange"`
	Volume            string `json:"volume"`
	MarketStatus      string `json:"marketStatus"`
	LastTradeDate     string `json:"lastTradeDate"`
	FiftyTwoWeekRange string `json:"fiftyTwoWeekRange"`
}

// Fundamentals holds display strings from the Nasdaq summary endpoint.
type Fundamentals struct {
	Symbol             string `json:"symbol"`
	Sector             string `json:"sector"`
	Industry           string `json:"industry"`
	MarketCap          string `json:"marketCap"`
	PERatio            string `json:"peRatio"`
	ForwardPE          string `json:"forwardPE"`
	EarningsPerShare   string `json:"earningsPerShare"`
	AnnualizedDividend string `json:"annualizedDividend"`
	Yield              string `json:"yield"`
	OneYearTarget      string `json:"oneYearTarget"`
	AverageVolume      string `json:"averageVolume"`
}

type CompanyProfile struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`
	Website     string `json:"website"`
}

// StockMetadata is the quote summary returned by GET /stock/{ticker}.
type StockMetadata struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Sector        string `json:"sector"`
	Industry      string `json:"industry"`
	MarketCap     Amount `json:"marketCap"`
	CurrentPrice  Amount `json:"currentPrice"`
	PreviousClose Amount `json:"previousClose"`
	Open          Amount `json:"open"`
	DayLow        Amount `json:"dayLow"`
	DayHigh       Amount `json:"dayHigh"`
	Volume        Amount `json:"volume"`
	Currency      string `json:"currency"`
	Exchange      string `json:"exchange"`
}

// HistoricalBar is one daily OHLCV bar.
type HistoricalBar struct {
	Date   string `json:"date"`
	Open   Amount `json:"open"`
	High   Amount `json:"high"`
	Low    Amount `json:"low"`
	Close  Amount `json:"close"`
	Volume Amount `json:"volume"`
}

// StockQuote bundles Yahoo metadata with recent history.
type StockQuote struct {
	Metadata   *StockMetadata  `json:"metadata"`
	Historical []HistoricalBar `json:"historical"`
}

// CardStat is a label/value pair rendered on a swipe card.
type CardStat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type ContentCard struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// DeckCard is the swipe card rendered by the mobile deck.
type DeckCard struct {
	Key             string        `json:"key"`
	CompanyName     string        `json:"companyName"`
	SubTitle        string        `json:"subTitle"`
	Price           string        `json:"price"`
	PriceChange     string        `json:"priceChange"`
	Stats           []CardStat    `json:"stats"`
	AdditionalStats []string      `json:"additionalStats"`
	Tabs            []string      `json:"tabs"`
	ContentCards    []ContentCard `json:"contentCards"`
}

// Scan statuses.
const (
	ScanStatusOK        = "ok"
	ScanStatusNotPublic = "not_public"
	ScanStatusFailed    = "failed"
)

// Scan is a persisted image scan.
type Scan struct {
	ID            int64     `json:"id"`
	Ticker        string    `json:"ticker"`
	RawTicker     string    `json:"raw_ticker"`
	Status        string    `json:"status"`
	ImageKey      string    `json:"image_key"`
	ImageURL      string    `json:"image_url"`
	ContentType   string    `json:"content_type"`
	CompanyName   *string   `json:"company_name"`
	LastSalePrice *string   `json:"last_sale_price"`
	Card          *DeckCard `json:"card,omitempty"`
	Error         *string   `json:"error"`
	CreatedAt     string    `json:"created_at"`
}

// ScanResult is everything a successful scan produced.
type ScanResult struct {
	ScanID       int64           `json:"scan_id"`
	Ticker       string          `json:"ticker"`
	Image        StoredImage     `json:"image"`
	Nasdaq       *NasdaqSnapshot `json:"nasdaq"`
	YahooFinance *YahooSummary   `json:"yahooFinance"`
	Card         *DeckCard       `json:"card"`
}

// YahooSummary is the short Yahoo block the camera screen reads.
type YahooSummary struct {
	CompanyName string `json:"companyName"`
	Price       Amount `json:"price"`
}

// TickerRecommendation is a live ticker picked for the deck.
type TickerRecommendation struct {
	Ticker string    `json:"ticker"`
	Card   *DeckCard `json:"card"`
}
