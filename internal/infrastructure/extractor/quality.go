package extractor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinQualityLength     = 200
	MinAlphabeticRatio   = 0.30
	MinQualityWordCount  = 10
	containerProbeLength = 64
)

// Container signatures that mean a parser handed back the file itself
// instead of its text.
var containerPrefixes = []string{
	"%PDF-",
	"PK\x03\x04",
	"\xD0\xCF\x11\xE0",
	"{\\rtf",
	"<<",
	"\x89PNG",
	"\xFF\xD8\xFF",
	"GIF8",
}

type Verdict struct {
	OK     bool
	Reason string
}

// Validate decides whether text is usable downstream.
func Validate(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	length := utf8.RuneCountInString(trimmed)
	if length < MinQualityLength {
		return Verdict{Reason: fmt.Sprintf("too short: %d chars", length)}
	}

	if prefix, ok := containerMarkup(trimmed); ok {
		return Verdict{Reason: fmt.Sprintf("starts with container markup %q", prefix)}
	}

	alpha := 0
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	ratio := float64(alpha) / float64(length)
	if ratio < MinAlphabeticRatio {
		return Verdict{Reason: fmt.Sprintf("alphabetic ratio %.2f below %.2f", ratio, MinAlphabeticRatio)}
	}

	if words := len(strings.Fields(trimmed)); words < MinQualityWordCount {
		return Verdict{Reason: fmt.Sprintf("only %d words", words)}
	}

	return Verdict{OK: true}
}

func containerMarkup(text string) (string, bool) {
	for _, prefix := range containerPrefixes {
		if strings.HasPrefix(text, prefix) {
			return prefix, true
		}
	}
	probe := text
	if len(probe) > containerProbeLength {
		probe = probe[:containerProbeLength]
	}
	// "1 0 obj" object headers at the very start of the text
	firstLine, _, _ := strings.Cut(probe, "\n")
	fields := strings.Fields(firstLine)
	if len(fields) >= 3 && fields[2] == "obj" && isDigits(fields[0]) && isDigits(fields[1]) {
		return "obj", true
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
