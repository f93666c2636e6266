package finge

import "testing"

func TestNormalizeTicker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "AAPL", want: "AAPL"},
		{name: "lower with spaces", input: "  msft \n", want: "MSFT"},
		{name: "quoted", input: "\"TSLA\"", want: "TSLA"},
		{name: "dollar", input: "$NVDA", want: "NVDA"},
		{name: "trailing period", input: "GOOGL.", want: "GOOGL"},
		{name: "exchange prefix", input: "NASDAQ: AMZN", want: "AMZN"},
		{name: "share class", input: "brk.b", want: "BRK.B"},
		{name: "null sentinel", input: "NULL", wantErr: true},
		{name: "null lower", input: "null", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "sentence", input: "The ticker is AAPL", wantErr: true},
		{name: "too long", input: "ABCDEFG", wantErr: true},
		{name: "digits", input: "1234", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeTicker(tc.input)
			if tc.wantErr {
				if !IsErrorCode(err, ErrCodeNotPublic) {
					t.Fatalf("expected not public error, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
