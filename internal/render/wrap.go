package render

import (
	"iter"
	"strings"
	"unicode/utf8"
)

// Wrap splits s into lines of at most width characters using greedy word
// wrapping. Lines break only at whitespace, never inside a word; a single word
// longer than width gets a line of its own. Runs of whitespace collapse to one
// space.
//
// The sequence is computed lazily on every iteration. Empty input yields
// exactly one empty line.
func Wrap(s string, width int) iter.Seq[string] {
	return func(yield func(string) bool) {
		words := strings.Fields(s)
		if len(words) == 0 {
			yield("")
			return
		}

		var line strings.Builder
		n := 0
		for _, word := range words {
			wl := utf8.RuneCountInString(word)
			if n > 0 && n+1+wl > width {
				if !yield(line.String()) {
					return
				}
				line.Reset()
				n = 0
			}
			if n > 0 {
				line.WriteByte(' ')
				n++
			}
			line.WriteString(word)
			n += wl
		}
		yield(line.String())
	}
}

// WrapLines collects at most limit lines of Wrap(s, width). Lines beyond limit are
// dropped without being computed.
func WrapLines(s string, width, limit int) []string {
	lines := make([]string, 0, limit)
	for line := range Wrap(s, width) {
		if len(lines) == limit {
			break
		}
		lines = append(lines, line)
	}
	return lines
}
