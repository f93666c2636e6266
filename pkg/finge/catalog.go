package finge

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"strings"
)

// ListCandidates returns the stored catalog in insertion order.
func (c *Core) ListCandidates(ctx context.Context) ([]Candidate, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT ticker, popularity, industry, features FROM candidates ORDER BY id")
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "list candidates", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func scanCandidates(rows *sql.Rows) ([]Candidate, error) {
	candidates := []Candidate{}
	for rows.Next() {
		var candidate Candidate
		var features string
		if err := rows.Scan(&candidate.Ticker, &candidate.Popularity, &candidate.Industry, &features); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan candidate", err)
		}
		if err := json.Unmarshal([]byte(features), &candidate.Features); err != nil {
			return nil, WrapError(ErrCodeDatabase, "decode candidate features", err)
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "list candidates", err)
	}
	return candidates, nil
}

// UpsertCandidate inserts or replaces a catalog entry keyed by ticker. The
// entry must match the dimensionality of the rest of the catalog.
func (c *Core) UpsertCandidate(ctx context.Context, candidate Candidate) (Candidate, error) {
	ticker, err := NormalizeTicker(candidate.Ticker)
	if err != nil {
		return Candidate{}, WrapError(ErrCodeInvalidInput, "invalid ticker", err)
	}
	candidate.Ticker = ticker
	candidate.Industry = strings.TrimSpace(candidate.Industry)
	if math.IsNaN(candidate.Popularity) || candidate.Popularity < 0 || candidate.Popularity > 1 {
		return Candidate{}, Errorf(ErrCodeInvalidInput, "popularity must be within [0, 1], got %v", candidate.Popularity)
	}
	if !allFinite(candidate.Features) {
		return Candidate{}, NewError(ErrCodeInvalidInput, "features must be finite")
	}
	if candidate.Features == nil {
		candidate.Features = []float64{}
	}
	features, err := json.Marshal(candidate.Features)
	if err != nil {
		return Candidate{}, WrapError(ErrCodeInvalidInput, "encode features", err)
	}

	err = c.WithTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, "SELECT features FROM candidates WHERE ticker != ? ORDER BY id LIMIT 1", ticker).Scan(&existing)
		if err != nil && err != sql.ErrNoRows {
			return WrapError(ErrCodeDatabase, "load catalog dimensionality", err)
		}
		if err == nil {
			var other []float64
			if err := json.Unmarshal([]byte(existing), &other); err != nil {
				return WrapError(ErrCodeDatabase, "decode candidate features", err)
			}
			if len(other) != len(candidate.Features) {
				return Errorf(ErrCodeInvalidInput, "candidate has %d features, catalog has %d", len(candidate.Features), len(other))
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO candidates (ticker, popularity, industry, features, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(ticker) DO UPDATE SET
				popularity = excluded.popularity,
				industry = excluded.industry,
				features = excluded.features,
				updated_at = CURRENT_TIMESTAMP
		`, ticker, candidate.Popularity, candidate.Industry, string(features))
		if err != nil {
			return WrapError(ErrCodeDatabase, "upsert candidate", err)
		}
		return nil
	})
	if err != nil {
		return Candidate{}, err
	}
	return candidate, nil
}

// DeleteCandidate removes a catalog entry.
func (c *Core) DeleteCandidate(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	result, err := c.db.ExecContext(ctx, "DELETE FROM candidates WHERE ticker = ?", ticker)
	if err != nil {
		return WrapError(ErrCodeDatabase, "delete candidate", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError(ErrCodeDatabase, "delete candidate", err)
	}
	if affected == 0 {
		return Errorf(ErrCodeNotFound, "candidate %s not found", ticker)
	}
	return nil
}

// RecommendFromCatalog runs Select over the stored catalog.
func (c *Core) RecommendFromCatalog(ctx context.Context, profile UserProfile, epsilon float64, rng Rand) (Candidate, error) {
	catalog, err := c.ListCandidates(ctx)
	if err != nil {
		return Candidate{}, err
	}
	selected, err := Select(profile, catalog, epsilon, rng)
	if err != nil {
		return Candidate{}, err
	}
	c.logger.Info("recommendation selected",
		"ticker", selected.Ticker,
		"industry", selected.Industry,
		"epsilon", epsilon,
		"catalog_size", len(catalog),
	)
	return selected, nil
}
