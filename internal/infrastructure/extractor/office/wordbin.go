package office

import (
	"errors"
	"strings"
	"unicode/utf16"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const minBinaryRun = 4

// extractWordBinary salvages text from a legacy compound-file document.
// Word 97-2003 stores body text either as UTF-16LE or as 8-bit runs inside
// the WordDocument stream; both are collected and the richer one wins.
func extractWordBinary(raw []byte) (domain.ExtractedText, error) {
	wide := wideRuns(raw)
	narrow := narrowRuns(raw)
	text := wide
	if len(narrow) > len(wide) {
		text = narrow
	}
	if strings.TrimSpace(text) == "" {
		return domain.ExtractedText{}, errors.New("no text runs in legacy word document")
	}
	return domain.ExtractedText{Text: text, PageCount: 1}, nil
}

func wideRuns(raw []byte) string {
	var runs []string
	var current []uint16
	flush := func() {
		if len(current) >= minBinaryRun {
			runs = append(runs, string(utf16.Decode(current)))
		}
		current = current[:0]
	}
	for i := 0; i+1 < len(raw); i += 2 {
		u := uint16(raw[i]) | uint16(raw[i+1])<<8
		if isTextUnit(u) {
			current = append(current, u)
			continue
		}
		flush()
	}
	flush()
	return joinRuns(runs)
}

func narrowRuns(raw []byte) string {
	var runs []string
	start := -1
	for i, c := range raw {
		if c >= 0x20 && c < 0x7F || c == '\r' || c == '\t' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minBinaryRun*4 {
			runs = append(runs, string(raw[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(raw)-start >= minBinaryRun*4 {
		runs = append(runs, string(raw[start:]))
	}
	return joinRuns(runs)
}

func isTextUnit(u uint16) bool {
	switch {
	case u == '\r' || u == '\t':
		return true
	case u < 0x20 || u == 0x7F:
		return false
	case u < 0x0250:
		return true
	case u >= 0x2010 && u <= 0x2027:
		return true
	}
	return false
}

func joinRuns(runs []string) string {
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		run = strings.TrimSpace(strings.ReplaceAll(run, "\r", "\n"))
		if run != "" {
			out = append(out, run)
		}
	}
	return strings.Join(out, "\n")
}
