package finge

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const maxCardTextRunes = 280

var hundred = decimal.NewFromInt(100)

// BuildDeckCard renders quote data as a swipe card. Any argument may be nil;
// the Nasdaq snapshot wins over Yahoo where both carry a figure.
func BuildDeckCard(snapshot *NasdaqSnapshot, fundamentals *Fundamentals, profile *CompanyProfile, yahoo *StockMetadata) *DeckCard {
	if snapshot == nil {
		snapshot = &NasdaqSnapshot{}
	}
	if fundamentals == nil {
		fundamentals = &Fundamentals{}
	}
	if profile == nil {
		profile = &CompanyProfile{}
	}

	ticker := cleanField(snapshot.Symbol)
	name := cleanField(snapshot.CompanyName)
	if yahoo != nil {
		ticker = firstNonEmpty(ticker, yahoo.Ticker)
		name = firstNonEmpty(name, yahoo.Name)
	}
	ticker = strings.ToUpper(firstNonEmpty(ticker, fundamentals.Symbol, profile.Symbol))
	name = firstNonEmpty(name, profile.CompanyName, ticker)

	card := &DeckCard{
		Key:             strings.ToLower(ticker),
		CompanyName:     name,
		SubTitle:        ticker,
		Stats:           []CardStat{},
		AdditionalStats: []string{},
		Tabs:            []string{"All"},
		ContentCards:    []ContentCard{},
	}

	if price, ok := parseDisplayNumber(snapshot.LastSalePrice); ok {
		card.Price = formatPrice(price)
	} else if yahoo != nil && !yahoo.CurrentPrice.IsZero() {
		card.Price = formatPrice(yahoo.CurrentPrice.Decimal)
	}
	card.PriceChange = priceChange(snapshot, yahoo)

	if volume, ok := cardVolume(snapshot, yahoo); ok {
		card.Stats = append(card.Stats, CardStat{Label: "Vol", Value: abbreviate(volume)})
	}
	if pe, ok := parseDisplayNumber(fundamentals.PERatio); ok {
		card.Stats = append(card.Stats, CardStat{Label: "P/E", Value: pe.StringFixed(2)})
	}
	if marketCap, ok := parseDisplayNumber(fundamentals.MarketCap); ok {
		card.Stats = append(card.Stats, CardStat{Label: "Mkt Cap", Value: abbreviate(marketCap)})
	}

	addStat := func(label, value string) {
		if v := cleanField(value); v != "" {
			card.AdditionalStats = append(card.AdditionalStats, label+": "+v)
		}
	}
	addStat("52 Week Range", snapshot.FiftyTwoWeekRange)
	addStat("EPS", fundamentals.EarningsPerShare)
	addStat("Dividend Yield", fundamentals.Yield)
	addStat("1 Year Target", fundamentals.OneYearTarget)
	if avg, ok := parseDisplayNumber(fundamentals.AverageVolume); ok {
		addStat("Average Volume", abbreviate(avg))
	}

	if overview := dayOverview(yahoo); overview != "" {
		card.ContentCards = append(card.ContentCards, ContentCard{Title: name + " Overview", Text: overview})
	}
	industry := firstNonEmpty(cleanField(fundamentals.Industry), cleanField(profile.Industry))
	sector := firstNonEmpty(cleanField(fundamentals.Sector), cleanField(profile.Sector))
	if industry != "" || sector != "" {
		card.Tabs = append(card.Tabs, "Industry")
		card.ContentCards = append(card.ContentCards, ContentCard{
			Title: "Industry",
			Text:  strings.Join(nonEmpty(sector, industry), " / "),
		})
	}
	if description := cleanField(profile.Description); description != "" {
		card.Tabs = append(card.Tabs, "Profile")
		card.ContentCards = append(card.ContentCards, ContentCard{
			Title: "About " + name,
			Text:  truncateRunes(description, maxCardTextRunes),
		})
	}
	return card
}

// GetStockCard fetches everything known about ticker and renders its card.
// Fundamentals and profile are optional; the card fails only when neither
// Nasdaq nor Yahoo has a quote.
func (c *Core) GetStockCard(ctx context.Context, ticker string) (*DeckCard, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "invalid ticker", err)
	}
	snapshot, yahoo, err := c.fetchQuotes(ctx, ticker)
	if err != nil {
		return nil, err
	}
	fundamentals, err := c.quotes.fetchFundamentals(ctx, ticker)
	if err != nil {
		c.logger.Debug("fundamentals unavailable", "ticker", ticker, "err", err)
	}
	profile, err := c.quotes.fetchProfile(ctx, ticker)
	if err != nil {
		c.logger.Debug("company profile unavailable", "ticker", ticker, "err", err)
	}
	return BuildDeckCard(snapshot, fundamentals, profile, yahoo), nil
}

// fetchQuotes loads the Nasdaq snapshot and Yahoo metadata. Either may be
// nil, but not both.
func (c *Core) fetchQuotes(ctx context.Context, ticker string) (*NasdaqSnapshot, *StockMetadata, error) {
	snapshot, nasdaqErr := c.quotes.fetchSnapshot(ctx, ticker)
	if nasdaqErr != nil {
		c.logger.Warn("nasdaq snapshot failed", "ticker", ticker, "err", nasdaqErr)
	}
	yahoo, _, yahooErr := c.quotes.fetchYahooQuote(ctx, ticker)
	if yahooErr != nil {
		c.logger.Warn("yahoo quote failed", "ticker", ticker, "err", yahooErr)
	}
	if nasdaqErr != nil && yahooErr != nil {
		if IsErrorCode(nasdaqErr, ErrCodeNotFound) && IsErrorCode(yahooErr, ErrCodeNotFound) {
			return nil, nil, Errorf(ErrCodeNotFound, "no quote data for %s", ticker)
		}
		return nil, nil, WrapError(ErrCodeUpstream, "quote sources unavailable for "+ticker, yahooErr)
	}
	return snapshot, yahoo, nil
}

func priceChange(snapshot *NasdaqSnapshot, yahoo *StockMetadata) string {
	change, okChange := parseDisplayNumber(snapshot.NetChange)
	percent, okPercent := parseDisplayNumber(snapshot.PercentageChange)
	if okChange && okPercent {
		return formatChange(change, percent)
	}
	if yahoo == nil || yahoo.PreviousClose.IsZero() || yahoo.CurrentPrice.IsZero() {
		return ""
	}
	change = yahoo.CurrentPrice.Sub(yahoo.PreviousClose.Decimal)
	percent = change.Div(yahoo.PreviousClose.Decimal).Mul(hundred)
	return formatChange(change, percent)
}

func cardVolume(snapshot *NasdaqSnapshot, yahoo *StockMetadata) (decimal.Decimal, bool) {
	if volume, ok := parseDisplayNumber(snapshot.Volume); ok {
		return volume, true
	}
	if yahoo != nil && !yahoo.Volume.IsZero() {
		return yahoo.Volume.Decimal, true
	}
	return decimal.Zero, false
}

func dayOverview(yahoo *StockMetadata) string {
	if yahoo == nil {
		return ""
	}
	var parts []string
	add := func(label string, value Amount) {
		if !value.IsZero() {
			parts = append(parts, label+": $"+formatPrice(value.Decimal))
		}
	}
	add("Open", yahoo.Open)
	add("High", yahoo.DayHigh)
	add("Low", yahoo.DayLow)
	add("Previous Close", yahoo.PreviousClose)
	return strings.Join(parts, ", ")
}

// cleanField drops the "N/A" placeholder.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == notAvailable {
		return ""
	}
	return s
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;.") + "..."
}
