package finge

import "math"

// Exploitation score weights.
const (
	popularityWeight = 0.5
	similarityWeight = 0.5
)

// DefaultEpsilon is the exploration rate used when a caller does not pick one.
const DefaultEpsilon = 0.1

// Candidate is one catalog entry available for recommendation.
type Candidate struct {
	Ticker     string    `json:"ticker"`
	Popularity float64   `json:"popularity"`
	Industry   string    `json:"industry"`
	Features   []float64 `json:"features"`
}

// UserProfile carries the caller's preferences. An empty PreferredIndustry
// means no industry preference; nil Features means no similarity signal.
type UserProfile struct {
	PreferredIndustry string    `json:"preferred_industry,omitempty"`
	Features          []float64 `json:"features,omitempty"`
}

// Rand is the randomness used by Select. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Select picks one candidate with an epsilon-greedy policy: with probability
// epsilon a uniformly random catalog entry, otherwise the best-scoring entry
// of the preferred industry (or of the whole catalog when nothing matches).
//
// It fails with ErrCodeInvalidInput on an empty catalog, an epsilon outside
// [0, 1], non-finite popularity or features, and feature vectors of differing
// dimensionality.
func Select(profile UserProfile, catalog []Candidate, epsilon float64, rng Rand) (Candidate, error) {
	if err := validateSelectInput(profile, catalog, epsilon); err != nil {
		return Candidate{}, err
	}
	if rng == nil {
		return Candidate{}, NewError(ErrCodeInvalidInput, "random source is required")
	}

	if rng.Float64() < epsilon {
		return explore(catalog, rng), nil
	}
	return exploit(profile, catalog), nil
}

func explore(catalog []Candidate, rng Rand) Candidate {
	return catalog[rng.IntN(len(catalog))]
}

func exploit(profile UserProfile, catalog []Candidate) Candidate {
	pool := filterByIndustry(catalog, profile.PreferredIndustry)

	best := -1
	bestScore := 0.0
	for i, candidate := range pool {
		score := ExploitationScore(profile, candidate)
		if math.IsNaN(score) {
			score = math.Inf(-1)
		}
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	return pool[best]
}

// filterByIndustry keeps candidates of the given industry. No preference, or
// a preference nothing matches, yields the full catalog.
func filterByIndustry(catalog []Candidate, industry string) []Candidate {
	if industry == "" {
		return catalog
	}
	filtered := make([]Candidate, 0, len(catalog))
	for _, candidate := range catalog {
		if candidate.Industry == industry {
			filtered = append(filtered, candidate)
		}
	}
	if len(filtered) == 0 {
		return catalog
	}
	return filtered
}

// ExploitationScore blends popularity and profile similarity equally.
func ExploitationScore(profile UserProfile, candidate Candidate) float64 {
	return popularityWeight*candidate.Popularity + similarityWeight*profileSimilarity(profile, candidate)
}

// profileSimilarity is 0 without a profile vector and for zero-norm vectors.
func profileSimilarity(profile UserProfile, candidate Candidate) float64 {
	if len(profile.Features) == 0 {
		return 0
	}
	sim, err := CosineSimilarity(profile.Features, candidate.Features)
	if err != nil {
		return 0
	}
	return sim
}

func validateSelectInput(profile UserProfile, catalog []Candidate, epsilon float64) error {
	if len(catalog) == 0 {
		return NewError(ErrCodeInvalidInput, "catalog must not be empty")
	}
	if math.IsNaN(epsilon) || epsilon < 0 || epsilon > 1 {
		return Errorf(ErrCodeInvalidInput, "epsilon must be within [0, 1], got %v", epsilon)
	}
	if !allFinite(profile.Features) {
		return NewError(ErrCodeInvalidInput, "profile features must be finite")
	}
	for i, candidate := range catalog {
		if math.IsNaN(candidate.Popularity) || math.IsInf(candidate.Popularity, 0) {
			return Errorf(ErrCodeInvalidInput, "candidate %d (%q) has non-finite popularity", i, candidate.Ticker)
		}
		if !allFinite(candidate.Features) {
			return Errorf(ErrCodeInvalidInput, "candidate %d (%q) has non-finite features", i, candidate.Ticker)
		}
	}
	return validateDimensions(profile.Features, catalog)
}

// validateDimensions checks that every candidate vector, and the profile
// vector when present, share one dimensionality.
func validateDimensions(profileFeatures []float64, catalog []Candidate) error {
	dim := len(catalog[0].Features)
	for i, candidate := range catalog {
		if len(candidate.Features) != dim {
			return Errorf(ErrCodeInvalidInput,
				"candidate %d (%q) has %d features, expected %d", i, candidate.Ticker, len(candidate.Features), dim)
		}
	}
	if len(profileFeatures) > 0 && len(profileFeatures) != dim {
		return Errorf(ErrCodeInvalidInput, "profile has %d features, catalog has %d", len(profileFeatures), dim)
	}
	return nil
}
