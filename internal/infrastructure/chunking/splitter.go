// Package chunking cuts redacted text into overlapping windows sized for the
// search-index collaborator.
package chunking

import (
	"regexp"
	"strings"
	"unicode"
)

var placeholderRe = regexp.MustCompile(`\[REDACTED:[A-Z_]+\]`)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split returns windows of at most ChunkSize runes. A window ends at the last
// paragraph break, else the last whitespace, in its second half. Neither end
// of a window falls inside a redaction placeholder; a placeholder that does
// not fit is carried whole, which may stretch that window.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	spans := placeholderSpans(text)

	var out []string
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = clearOfSpans(spans, start, s.boundary(runes, start, end))
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := clearOfSpans(spans, start, end-s.Overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (s *Splitter) boundary(runes []rune, start, end int) int {
	floor := start + s.ChunkSize/2
	for i := end; i > floor && i-2 >= start; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

type span struct{ from, to int }

// placeholderSpans returns placeholder positions in rune offsets.
func placeholderSpans(text string) []span {
	locs := placeholderRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make([]span, 0, len(locs))
	for _, loc := range locs {
		from := len([]rune(text[:loc[0]]))
		spans = append(spans, span{from: from, to: from + len([]rune(text[loc[0]:loc[1]]))})
	}
	return spans
}

// clearOfSpans moves pos out of any placeholder it splits: back to the
// placeholder start when that stays after lo, forward past it otherwise.
func clearOfSpans(spans []span, lo, pos int) int {
	for _, sp := range spans {
		if sp.from < pos && pos < sp.to {
			if sp.from > lo {
				return sp.from
			}
			return sp.to
		}
	}
	return pos
}
