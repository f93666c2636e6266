package finge

import (
	"context"
	"testing"
)

func TestGetStock(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	quote, err := core.GetStock(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	if quote.Metadata.Ticker != "AAPL" || len(quote.Historical) != 2 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.Metadata.Sector != "Technology" || quote.Metadata.MarketCap.String() != "3450123456789" {
		t.Fatalf("expected nasdaq fundamentals merged, got %+v", quote.Metadata)
	}

	_, err = core.GetStock(context.Background(), "ZZZZ")
	if !IsErrorCode(err, ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
