package finge

import (
	"regexp"
	"strings"
)

// reTicker is the allow-list for listed equity tickers: 1-5 letters with an
// optional share-class suffix (BRK.B, BF-B).
var reTicker = regexp.MustCompile(`^[A-Z]{1,5}([.-][A-Z]{1,2})?$`)

// Model answers meaning "no listed company".
var notPublicAnswers = map[string]struct{}{
	"NULL": {},
	"NONE": {},
	"N/A":  {},
	"NA":   {},
}

// NormalizeTicker cleans a ticker as typed by a user or returned by a model
// and checks it against the allow-list. Failures carry ErrCodeNotPublic.
func NormalizeTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	ticker = strings.Trim(ticker, "\"'`*")
	ticker = strings.TrimPrefix(ticker, "$")
	ticker = strings.TrimRight(ticker, ".")
	if idx := strings.LastIndex(ticker, ":"); idx >= 0 {
		// "NASDAQ: AAPL"
		ticker = strings.TrimSpace(ticker[idx+1:])
	}
	if ticker == "" {
		return "", NewError(ErrCodeNotPublic, "no ticker identified")
	}
	if _, ok := notPublicAnswers[ticker]; ok {
		return "", NewError(ErrCodeNotPublic, "the identified brand is not publicly traded")
	}
	if !reTicker.MatchString(ticker) {
		return "", Errorf(ErrCodeNotPublic, "unrecognized ticker %q", raw)
	}
	return ticker, nil
}
