package finge

import "context"

// GetStock returns Yahoo metadata and recent daily bars for ticker. Sector,
// industry and market cap come from Nasdaq when it has them.
func (c *Core) GetStock(ctx context.Context, ticker string) (*StockQuote, error) {
	normalized, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "invalid ticker", err)
	}
	metadata, historical, err := c.quotes.fetchYahooQuote(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if historical == nil {
		historical = []HistoricalBar{}
	}

	fundamentals, err := c.quotes.fetchFundamentals(ctx, normalized)
	if err != nil {
		c.logger.Debug("fundamentals unavailable", "ticker", normalized, "err", err)
	} else {
		metadata.Sector = cleanField(fundamentals.Sector)
		metadata.Industry = cleanField(fundamentals.Industry)
		if marketCap, ok := parseDisplayNumber(fundamentals.MarketCap); ok {
			metadata.MarketCap = Amount{marketCap}
		}
	}
	return &StockQuote{Metadata: metadata, Historical: historical}, nil
}
