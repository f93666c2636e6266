package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"finge/pkg/finge"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type profilePayload struct {
	PreferredIndustry string    `json:"preferred_industry"`
	Features          []float64 `json:"features"`
}

type candidatePayload struct {
	Ticker     string    `json:"ticker"`
	Popularity float64   `json:"popularity" validate:"gte=0,lte=1"`
	Industry   string    `json:"industry" validate:"max=120"`
	Features   []float64 `json:"features"`
}

type selectPayload struct {
	Profile profilePayload `json:"profile"`
	// Epsilon falls back to the router default when omitted.
	Epsilon *float64 `json:"epsilon" validate:"omitempty,gte=0,lte=1"`
	// Catalog replaces the stored catalog for this request when present.
	Catalog []candidatePayload `json:"catalog" validate:"omitempty,dive"`
}

type catalogEntryPayload struct {
	Popularity float64   `json:"popularity" validate:"gte=0,lte=1"`
	Industry   string    `json:"industry" validate:"max=120"`
	Features   []float64 `json:"features"`
}

type scansResponse struct {
	Items  []finge.Scan `json:"items"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type selectResponse struct {
	Selected finge.Candidate `json:"selected"`
	Epsilon  float64         `json:"epsilon"`
	Source   string          `json:"source"`
}

func (p profilePayload) toProfile() finge.UserProfile {
	return finge.UserProfile{
		PreferredIndustry: strings.TrimSpace(p.PreferredIndustry),
		Features:          p.Features,
	}
}

func (p candidatePayload) toCandidate() finge.Candidate {
	return finge.Candidate{
		Ticker:     p.Ticker,
		Popularity: p.Popularity,
		Industry:   p.Industry,
		Features:   p.Features,
	}
}

// validatePayload runs the struct's validate tags and reports failures as
// VALIDATION_ERROR.
func validatePayload(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return finge.WrapError(finge.ErrCodeValidation, "invalid payload", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return finge.NewError(finge.ErrCodeValidation, strings.Join(fields, "; "))
}
