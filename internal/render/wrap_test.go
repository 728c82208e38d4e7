package render

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  []string
	}{
		{"empty", "", 36, []string{""}},
		{"whitespace only", "   \t ", 36, []string{""}},
		{"fits", "Jan Kowalski", 36, []string{"Jan Kowalski"}},
		{"exact width", "abcd efgh", 9, []string{"abcd efgh"}},
		{"breaks at space", "abcd efgh", 8, []string{"abcd", "efgh"}},
		{"collapses whitespace", "a   b\tc", 36, []string{"a b c"}},
		{"long word kept whole", "Przedsiębiorstwowielobranżowe sp", 10, []string{"Przedsiębiorstwowielobranżowe", "sp"}},
		{"counts runes not bytes", "żółć gęśl", 9, []string{"żółć gęśl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Wrap(tt.in, tt.width))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Wrap(%q, %d) mismatch (-want +got):\n%s", tt.in, tt.width, diff)
			}
		})
	}
}

func TestWrapNeverSplitsWords(t *testing.T) {
	in := "Spółka Handlowo Usługowa Przykład Technologie Informatyczne Polska"
	for line := range Wrap(in, 12) {
		for _, word := range strings.Fields(line) {
			if !strings.Contains(in, word) {
				t.Fatalf("line %q contains a fragment %q not present in the input", line, word)
			}
		}
	}
}

func TestWrapLinesCap(t *testing.T) {
	short := strings.Repeat("x", 20)
	if got := WrapLines(short, wrapWidth, maxBuyerLines); len(got) != 1 {
		t.Errorf("text under the column width wrapped to %d lines, want 1", len(got))
	}

	long := strings.Repeat("word ", 40)
	got := WrapLines(long, wrapWidth, maxBuyerLines)
	if len(got) != 2 {
		t.Fatalf("long text wrapped to %d lines, want capped 2", len(got))
	}
	for _, line := range got {
		if len(line) > wrapWidth {
			t.Errorf("line %q exceeds width %d", line, wrapWidth)
		}
	}
}

func TestWrapStopsEarly(t *testing.T) {
	n := 0
	for range Wrap("a b c d e f", 1) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d lines, want 2", n)
	}
}
