package mobile

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"finge/pkg/finge"
)

// Core wraps the finge core for gomobile bindings.
type Core struct {
	core *finge.Core
}

// Open initializes the core with a database path.
func Open(dbPath string) (*Core, error) {
	core, err := finge.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Core{core: core}, nil
}

// Close releases resources.
func (c *Core) Close() error {
	if c == nil || c.core == nil {
		return nil
	}
	return c.core.Close()
}

// ListCandidatesJSON returns the stored catalog as JSON.
func (c *Core) ListCandidatesJSON() (string, error) {
	data, err := c.core.ListCandidates(context.Background())
	if err != nil {
		return "", err
	}
	return marshalJSON(data)
}

// UpsertCandidateJSON stores one catalog entry given as JSON.
func (c *Core) UpsertCandidateJSON(candidateJSON string) (string, error) {
	var candidate finge.Candidate
	if err := json.Unmarshal([]byte(candidateJSON), &candidate); err != nil {
		return "", err
	}
	saved, err := c.core.UpsertCandidate(context.Background(), candidate)
	if err != nil {
		return "", err
	}
	return marshalJSON(saved)
}

// DeleteCandidate removes a catalog entry.
func (c *Core) DeleteCandidate(ticker string) error {
	return c.core.DeleteCandidate(context.Background(), ticker)
}

// RecommendJSON runs the epsilon-greedy selection over the stored catalog.
// The same seed always yields the same pick for the same catalog.
func (c *Core) RecommendJSON(profileJSON string, epsilon float64, seed int64) (string, error) {
	profile, err := parseProfile(profileJSON)
	if err != nil {
		return "", err
	}
	selected, err := c.core.RecommendFromCatalog(context.Background(), profile, epsilon, seededRand(seed))
	if err != nil {
		return "", err
	}
	return marshalJSON(selected)
}

// StockCardJSON fetches live quote data and returns the swipe card as JSON.
func (c *Core) StockCardJSON(ticker string) (string, error) {
	card, err := c.core.GetStockCard(context.Background(), ticker)
	if err != nil {
		return "", err
	}
	return marshalJSON(card)
}

// SelectJSON picks one candidate from catalogJSON without touching storage,
// so the app can score a downloaded catalog offline.
func SelectJSON(profileJSON, catalogJSON string, epsilon float64, seed int64) (string, error) {
	profile, err := parseProfile(profileJSON)
	if err != nil {
		return "", err
	}
	var catalog []finge.Candidate
	if err := json.Unmarshal([]byte(catalogJSON), &catalog); err != nil {
		return "", fmt.Errorf("decode catalog: %w", err)
	}
	selected, err := finge.Select(profile, catalog, epsilon, seededRand(seed))
	if err != nil {
		return "", err
	}
	return marshalJSON(selected)
}

// CosineSimilarity compares two feature vectors given as JSON arrays.
func CosineSimilarity(aJSON, bJSON string) (float64, error) {
	var a, b []float64
	if err := json.Unmarshal([]byte(aJSON), &a); err != nil {
		return 0, fmt.Errorf("decode first vector: %w", err)
	}
	if err := json.Unmarshal([]byte(bJSON), &b); err != nil {
		return 0, fmt.Errorf("decode second vector: %w", err)
	}
	return finge.CosineSimilarity(a, b)
}

func parseProfile(profileJSON string) (finge.UserProfile, error) {
	var profile finge.UserProfile
	if profileJSON == "" {
		return profile, nil
	}
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		return profile, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func seededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func marshalJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
