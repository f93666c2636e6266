package finge

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDisplayNumber(t *testing.T) {
	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{"$227.48", "227.48", true},
		{"+1.22", "1.22", true},
		{"-0.54%", "-0.54", true},
		{"44,123,456", "44123456", true},
		{"N/A", "0", false},
		{"", "0", false},
		{"abc", "0", false},
	}
	for _, tc := range cases {
		got, ok := parseDisplayNumber(tc.input)
		if ok != tc.ok {
			t.Fatalf("%q: ok=%v want %v", tc.input, ok, tc.ok)
		}
		if ok && !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%q: got %s want %s", tc.input, got, tc.want)
		}
	}
}

func TestAbbreviate(t *testing.T) {
	cases := map[string]string{
		"827500000":     "827.5M",
		"2950000000000": "2.95T",
		"45600000000":   "45.60B",
		"12345":         "12.3K",
		"999":           "999",
		"-2500000":      "-2.5M",
	}
	for input, want := range cases {
		if got := abbreviate(decimal.RequireFromString(input)); got != want {
			t.Fatalf("abbreviate(%s) = %q want %q", input, got, want)
		}
	}
}

func TestFormatChange(t *testing.T) {
	got := formatChange(decimal.RequireFromString("1.22"), decimal.RequireFromString("1.16"))
	if got != "+1.22 (1.16%)" {
		t.Fatalf("unexpected change %q", got)
	}
	got = formatChange(decimal.RequireFromString("-0.5"), decimal.RequireFromString("-0.25"))
	if got != "-0.50 (0.25%)" {
		t.Fatalf("unexpected negative change %q", got)
	}
}

func TestAmountJSON(t *testing.T) {
	data, err := json.Marshal(NewAmount(105.971234))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "105.9712" {
		t.Fatalf("unexpected JSON %s", data)
	}
	var a Amount
	if err := json.Unmarshal([]byte(`"12.5"`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !a.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount %s", a)
	}
}
