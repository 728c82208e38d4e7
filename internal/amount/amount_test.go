package amount

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"one fractional digit", "1234.5", "1234.50"},
		{"zero", "0", "0.00"},
		{"already two digits", "99.99", "99.99"},
		{"rounds half away from zero", "0.125", "0.13"},
		{"negative correction", "-3.456", "-3.46"},
		{"surrounding whitespace", "  12 ", "12.00"},
		{"integer with many digits", "1000000", "1000000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.in)
			if err != nil {
				t.Fatalf("Format(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatMalformed(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "12,50", "1.2.3"} {
		if _, err := Format(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("Format(%q) error = %v, want ErrMalformed", in, err)
		}
	}
}

func TestLineVAT(t *testing.T) {
	tests := []struct {
		name       string
		net, gross string
		want       string
	}{
		{"standard rate", "100.00", "123.00", "23.00"},
		{"rounding", "10.005", "12.31", "2.31"},
		{"zero rated", "50", "50", "0.00"},
		{"unparseable gross", "100", "n/a", ""},
		{"unparseable net", "", "123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LineVAT(tt.net, tt.gross); got != tt.want {
				t.Errorf("LineVAT(%q, %q) = %q, want %q", tt.net, tt.gross, got, tt.want)
			}
		})
	}
}
