package finge

import (
	"context"
	"strings"
)

var defaultRecommendTickers = []string{"AAPL", "MSFT", "AMZN", "TSLA", "GOOGL", "NVDA", "META", "NFLX"}

// RecommendTicker draws tickers from the configured list in random order and
// returns the first one with live quote data, with its card.
func (c *Core) RecommendTicker(ctx context.Context, rng Rand) (*TickerRecommendation, error) {
	if rng == nil {
		return nil, NewError(ErrCodeInvalidInput, "random source is required")
	}
	remaining := append([]string(nil), c.tickers...)
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i := rng.IntN(len(remaining))
		ticker := strings.ToUpper(strings.TrimSpace(remaining[i]))
		remaining[i] = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]

		if !c.CheckAvailable(ctx, ticker) {
			c.logger.Info("recommended ticker unavailable", "ticker", ticker)
			continue
		}
		card, err := c.GetStockCard(ctx, ticker)
		if err != nil {
			c.logger.Warn("build card for recommendation failed", "ticker", ticker, "err", err)
			continue
		}
		return &TickerRecommendation{Ticker: ticker, Card: card}, nil
	}
	return nil, NewError(ErrCodeUpstream, "no recommended ticker has live data")
}
