package finge

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|), in [-1, 1].
//
// Vectors of different length or with NaN/Inf components fail with
// ErrCodeInvalidInput. A zero-norm
// vector fails with ErrCodeDegenerateVector and a similarity of 0; callers
// that rank candidates treat that as "no signal" rather than aborting.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, Errorf(ErrCodeInvalidInput, "vector length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, NewError(ErrCodeDegenerateVector, "empty vector")
	}
	if !allFinite(a) || !allFinite(b) {
		return 0, NewError(ErrCodeInvalidInput, "vector has non-finite components")
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, NewError(ErrCodeDegenerateVector, "zero-norm vector")
	}
	// Dot the unit vectors so large magnitudes cannot overflow.
	sim := floats.Dot(unit(a, na), unit(b, nb))
	if math.IsNaN(sim) {
		return 0, NewError(ErrCodeDegenerateVector, "similarity is not a number")
	}
	// Rounding can push parallel vectors a hair past the unit interval.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

func unit(v []float64, norm float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
