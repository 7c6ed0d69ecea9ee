package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "plain integer",
			input: "150",
			want:  "150",
		},
		{
			name:  "dot decimal separator",
			input: "12.34",
			want:  "12.34",
		},
		{
			name:  "comma decimal separator",
			input: "12,34",
			want:  "12.34",
		},
		{
			name:  "rounds to two digits",
			input: "12.345",
			want:  "12.35",
		},
		{
			name:  "surrounding whitespace",
			input: "  10 ",
			want:  "10",
		},
		{
			name:  "zero is allowed",
			input: "0",
			want:  "0",
		},
		{
			name:    "negative rejected",
			input:   "-5",
			wantErr: true,
		},
		{
			name:    "not a number",
			input:   "abc",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestCentsRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		cents  int64
	}{
		{name: "whole euros", amount: "150", cents: 15000},
		{name: "with fraction", amount: "12.34", cents: 1234},
		{name: "zero", amount: "0", cents: 0},
		{name: "single cent", amount: "0.01", cents: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			if got := Cents(d); got != tt.cents {
				t.Errorf("Cents(%s) = %d, want %d", tt.amount, got, tt.cents)
			}
			if back := FromCents(tt.cents); !back.Equal(d) {
				t.Errorf("FromCents(%d) = %s, want %s", tt.cents, back.String(), tt.amount)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{name: "whole amount drops fraction", amount: "150", want: "150"},
		{name: "whole amount from cents", amount: "150.00", want: "150"},
		{name: "fractional amount keeps two digits", amount: "12.5", want: "12.50"},
		{name: "two fractional digits", amount: "12.34", want: "12.34"},
		{name: "zero", amount: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAmount(decimal.RequireFromString(tt.amount))
			if got != tt.want {
				t.Errorf("FormatAmount(%s) = %q, want %q", tt.amount, got, tt.want)
			}
		})
	}
}
