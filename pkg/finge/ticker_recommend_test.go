package finge

import (
	"context"
	"math/rand/v2"
	"testing"
)

func TestRecommendTickerSkipsUnavailable(t *testing.T) {
	mock := newQuoteMock("NFLX")
	core, cleanup := setupTestCore(t, Options{
		HTTPClient: mock,
		Tickers:    []string{"AAPL", "MSFT", "NFLX", "TSLA"},
	})
	defer cleanup()

	rec, err := core.RecommendTicker(context.Background(), rand.New(rand.NewPCG(7, 7)))
	if err != nil {
		t.Fatalf("RecommendTicker: %v", err)
	}
	if rec.Ticker != "NFLX" {
		t.Fatalf("ticker = %q, want the only available one", rec.Ticker)
	}
	if rec.Card == nil || rec.Card.SubTitle == "" {
		t.Fatalf("expected a card, got %+v", rec.Card)
	}
}

func TestRecommendTickerTriesEachOnce(t *testing.T) {
	mock := newQuoteMock()
	core, cleanup := setupTestCore(t, Options{HTTPClient: mock})
	defer cleanup()

	_, err := core.RecommendTicker(context.Background(), rand.New(rand.NewPCG(1, 2)))
	if !IsErrorCode(err, ErrCodeUpstream) {
		t.Fatalf("expected UPSTREAM_ERROR, got %v", err)
	}
	for _, ticker := range defaultRecommendTickers {
		if got := mock.callCount("/v8/finance/chart/" + ticker); got != 1 {
			t.Fatalf("%s checked %d times, want 1", ticker, got)
		}
	}
}

func TestRecommendTickerFollowsRand(t *testing.T) {
	core, cleanup := setupTestCore(t, Options{
		HTTPClient: newQuoteMock("AAPL", "MSFT", "AMZN"),
		Tickers:    []string{"AAPL", "MSFT", "AMZN"},
	})
	defer cleanup()

	rec, err := core.RecommendTicker(context.Background(), fixedRand{n: 1})
	if err != nil {
		t.Fatalf("RecommendTicker: %v", err)
	}
	if rec.Ticker != "MSFT" {
		t.Fatalf("ticker = %q, want MSFT", rec.Ticker)
	}
}

func TestRecommendTickerNilRand(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := core.RecommendTicker(context.Background(), nil); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}
