package finge

import (
	"math"
	"math/rand/v2"
	"testing"
)

// fixedRand returns preset values so each policy branch can be forced.
type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int   { return r.n % n }

func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(42, 1024))
}

func sampleCatalog() []Candidate {
	return []Candidate{
		{Ticker: "", Popularity: 0.9, Industry: "Tech", Features: []float64{1.0, 0.5, 0.3}},
		{Ticker: "GOOGL", Popularity: 0.85, Industry: "Tech", Features: []float64{1.0, 0.6, 0.2}},
		{Ticker: "TSLA", Popularity: 0.95, Industry: "Automotive", Features: []float64{0.7, 0.2, 1.0}},
		{Ticker: "AMZN", Popularity: 0.8, Industry: "Retail", Features: []float64{0.9, 0.4, 0.5}},
	}
}

func TestSelectConcreteScenario(t *testing.T) {
	catalog := []Candidate{
		{Ticker: "T1", Popularity: 0.9, Industry: "Tech", Features: []float64{1, 0}},
		{Ticker: "T2", Popularity: 0.5, Industry: "Tech", Features: []float64{0, 1}},
	}
	profile := UserProfile{PreferredIndustry: "Tech", Features: []float64{1, 0}}

	got, err := Select(profile, catalog, 0, seededRand())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Ticker != "T1" {
		t.Fatalf("expected T1, got %q", got.Ticker)
	}
	if score := ExploitationScore(profile, catalog[0]); math.Abs(score-0.95) > 1e-9 {
		t.Fatalf("expected T1 score 0.95, got %v", score)
	}
	if score := ExploitationScore(profile, catalog[1]); math.Abs(score-0.25) > 1e-9 {
		t.Fatalf("expected T2 score 0.25, got %v", score)
	}
}

func TestSelectEmptyCatalog(t *testing.T) {
	for _, eps := range []float64{0, 0.5, 1} {
		if _, err := Select(UserProfile{}, nil, eps, seededRand()); !IsErrorCode(err, ErrCodeInvalidInput) {
			t.Fatalf("epsilon %v: expected invalid input, got %v", eps, err)
		}
	}
}

func TestSelectRejectsEpsilonOutOfRange(t *testing.T) {
	for _, eps := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		if _, err := Select(UserProfile{}, sampleCatalog(), eps, seededRand()); !IsErrorCode(err, ErrCodeInvalidInput) {
			t.Fatalf("epsilon %v: expected invalid input, got %v", eps, err)
		}
	}
}

func TestSelectRejectsDimensionMismatch(t *testing.T) {
	profile := UserProfile{Features: []float64{1, 0}}
	if _, err := Select(profile, sampleCatalog(), 0, seededRand()); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input for profile mismatch, got %v", err)
	}

	catalog := sampleCatalog()
	catalog[2].Features = []float64{1}
	if _, err := Select(UserProfile{}, catalog, 0, seededRand()); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input for catalog mismatch, got %v", err)
	}
}

func TestSelectRequiresRand(t *testing.T) {
	if _, err := Select(UserProfile{}, sampleCatalog(), 0, nil); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input without rand, got %v", err)
	}
}

func TestSelectExploitationIsDeterministic(t *testing.T) {
	profile := UserProfile{PreferredIndustry: "Tech", Features: []float64{1.0, 0.55, 0.25}}
	catalog := sampleCatalog()

	first, err := Select(profile, catalog, 0, seededRand())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 200; i++ {
		got, err := Select(profile, catalog, 0, rng)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if got.Ticker != first.Ticker {
			t.Fatalf("iteration %d: expected %q, got %q", i, first.Ticker, got.Ticker)
		}
	}

	// The placeholder entry wins: popularity 0.9 and near-identical direction.
	if first.Ticker != "" {
		t.Fatalf("expected placeholder ticker to win, got %q", first.Ticker)
	}
}

func TestSelectExplorationIsUniform(t *testing.T) {
	catalog := sampleCatalog()
	for i := range catalog {
		catalog[i].Ticker = string(rune('A' + i))
	}
	rng := seededRand()
	const trials = 40000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		got, err := Select(UserProfile{PreferredIndustry: "Tech"}, catalog, 1, rng)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		counts[got.Ticker]++
	}

	expected := float64(trials) / float64(len(catalog))
	for _, c := range catalog {
		got := float64(counts[c.Ticker])
		if math.Abs(got-expected)/expected > 0.05 {
			t.Fatalf("ticker %s drawn %v times, expected about %v (counts %v)", c.Ticker, got, expected, counts)
		}
	}
}

func TestSelectExplorationIgnoresPreferences(t *testing.T) {
	profile := UserProfile{PreferredIndustry: "Tech", Features: []float64{1.0, 0.55, 0.25}}
	got, err := Select(profile, sampleCatalog(), 0.2, fixedRand{f: 0.1, n: 3})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Ticker != "AMZN" {
		t.Fatalf("expected exploration to pick index 3 (AMZN), got %q", got.Ticker)
	}

	// r == epsilon is not below epsilon: exploit.
	got, err = Select(profile, sampleCatalog(), 0.2, fixedRand{f: 0.2, n: 3})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Industry != "Tech" {
		t.Fatalf("expected exploitation within Tech, got %+v", got)
	}
}

func TestSelectFallsBackWhenIndustryMissing(t *testing.T) {
	profile := UserProfile{PreferredIndustry: "Energy"}
	got, err := Select(profile, sampleCatalog(), 0, seededRand())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Ticker != "TSLA" {
		t.Fatalf("expected fallback to full catalog picking TSLA, got %q", got.Ticker)
	}
}

func TestSelectWithoutFeaturesRanksByPopularity(t *testing.T) {
	catalog := []Candidate{
		{Ticker: "LOW", Popularity: 0.1, Industry: "Tech", Features: []float64{1, 0}},
		{Ticker: "HIGH", Popularity: 0.7, Industry: "Tech", Features: []float64{0, 1}},
		{Ticker: "MID", Popularity: 0.4, Industry: "Tech", Features: []float64{1, 1}},
	}
	profile := UserProfile{}
	for _, c := range catalog {
		if got := ExploitationScore(profile, c); math.Abs(got-0.5*c.Popularity) > 1e-12 {
			t.Fatalf("%s: expected popularity-only score %v, got %v", c.Ticker, 0.5*c.Popularity, got)
		}
	}

	got, err := Select(profile, catalog, 0, seededRand())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Ticker != "HIGH" {
		t.Fatalf("expected HIGH, got %q", got.Ticker)
	}
}

func TestSelectZeroProfileVectorScoresPopularityOnly(t *testing.T) {
	profile := UserProfile{Features: []float64{0, 0, 0}}
	got, err := Select(profile, sampleCatalog(), 0, seededRand())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Ticker != "TSLA" {
		t.Fatalf("expected TSLA by popularity, got %q", got.Ticker)
	}
}

func TestSelectTieKeepsFirst(t *testing.T) {
	catalog := []Candidate{
		{Ticker: "FIRST", Popularity: 0.5, Industry: "Tech"},
		{Ticker: "SECOND", Popularity: 0.5, Industry: "Tech"},
	}
	got, err := Select(UserProfile{}, catalog, 0, seededRand())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Ticker != "FIRST" {
		t.Fatalf("expected FIRST on tie, got %q", got.Ticker)
	}
}

func TestSelectDoesNotMutateCatalog(t *testing.T) {
	catalog := sampleCatalog()
	before := sampleCatalog()
	if _, err := Select(UserProfile{PreferredIndustry: "Tech", Features: []float64{1, 1, 1}}, catalog, 0, seededRand()); err != nil {
		t.Fatalf("Select: %v", err)
	}
	for i := range catalog {
		if catalog[i].Ticker != before[i].Ticker || catalog[i].Popularity != before[i].Popularity {
			t.Fatalf("catalog entry %d changed: %+v", i, catalog[i])
		}
	}
}

func TestSelectLargeMagnitudeFeaturesRankByScore(t *testing.T) {
	catalog := []Candidate{
		{Ticker: "A", Popularity: 0.1, Industry: "Tech", Features: []float64{1e200, 0}},
		{Ticker: "B", Popularity: 0.9, Industry: "Tech", Features: []float64{1, 0}},
	}
	profile := UserProfile{Features: []float64{1e200, 0}}

	for _, c := range catalog {
		if score := ExploitationScore(profile, c); math.IsNaN(score) {
			t.Fatalf("%s: score is NaN", c.Ticker)
		}
	}
	got, err := Select(profile, catalog, 0, seededRand())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Ticker != "B" {
		t.Fatalf("expected B (score 0.95), got %q", got.Ticker)
	}
}

func TestSelectRejectsNonFiniteInput(t *testing.T) {
	tests := []struct {
		name    string
		profile UserProfile
		catalog []Candidate
	}{
		{
			name:    "profile NaN",
			profile: UserProfile{Features: []float64{math.NaN(), 0}},
			catalog: []Candidate{{Ticker: "A", Features: []float64{1, 0}}},
		},
		{
			name:    "candidate Inf feature",
			profile: UserProfile{Features: []float64{1, 0}},
			catalog: []Candidate{{Ticker: "A", Features: []float64{1, 0}}, {Ticker: "B", Features: []float64{math.Inf(1), 0}}},
		},
		{
			name:    "candidate NaN popularity",
			catalog: []Candidate{{Ticker: "A", Popularity: math.NaN()}},
		},
		{
			name:    "candidate Inf popularity",
			catalog: []Candidate{{Ticker: "A", Popularity: math.Inf(1)}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Select(tc.profile, tc.catalog, 0, seededRand()); !IsErrorCode(err, ErrCodeInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestExploitSkipsNaNScores(t *testing.T) {
	catalog := []Candidate{
		{Ticker: "NAN", Popularity: math.NaN(), Industry: "Tech"},
		{Ticker: "REAL", Popularity: 0.2, Industry: "Tech"},
	}
	if got := exploit(UserProfile{}, catalog); got.Ticker != "REAL" {
		t.Fatalf("expected REAL, got %q", got.Ticker)
	}
}
