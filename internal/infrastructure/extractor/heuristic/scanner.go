// Package heuristic recovers readable fragments from a byte buffer whose
// container could not be parsed.
package heuristic

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const DefaultMaxMatches = 100

var (
	literalShowRe = regexp.MustCompile(`\(((?:[^()\\]|\\.){3,})\)\s*Tj`)
	arrayShowRe   = regexp.MustCompile(`\[((?:\s*\((?:[^()\\]|\\.)*\)\s*-?[0-9.]*)+)\s*\]\s*TJ`)
	arrayPartRe   = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
	printableRe   = regexp.MustCompile(`[\x20-\x7E]{30,}`)
	sentenceRe    = regexp.MustCompile(`[A-Z][a-z]+(?:[ ,;:'\-]+[A-Za-z][a-z']*){3,}[.!?]`)
	headingRe     = regexp.MustCompile(`\b(?:[A-Z]{2,}[ \t]+){0,6}(?:NOTICE|COURT|ORDER|MOTION|COMPLAINT|PETITION|APPLICATION|AGREEMENT|AFFIDAVIT|DECLARATION|SUBPOENA|JUDGMENT|ALLEGATIONS?)(?:[ \t]+[A-Z]{2,}){0,6}\b`)
	keywordLineRe = regexp.MustCompile(`(?im)^[^\n\r]{0,160}\b(?:notice|court|allegations?|alleges?|plaintiff|defendant|respondent|petitioner|hearing|judge)\b[^\n\r]{0,160}$`)
	pageObjRe     = regexp.MustCompile(`/Type\s*/Page[^s]`)
	operatorRe    = regexp.MustCompile(`\bT[jJfdDmL*]\b|\bBT\b|\bendobj\b|\bobj\b`)
)

var syntaxNoise = []string{
	"endobj", "endstream", "xref", "trailer", "startxref",
	"<<", ">>", "/Type", "/Filter", "/Length", "/Font", "/Resources",
}

type Scanner struct {
	maxMatches int
}

// NewScanner caps every pattern at maxMatches fragments.
func NewScanner(maxMatches int) *Scanner {
	if maxMatches <= 0 {
		maxMatches = DefaultMaxMatches
	}
	return &Scanner{maxMatches: maxMatches}
}

func (s *Scanner) Name() string { return domain.MethodHeuristicScan }

func (s *Scanner) Extract(ctx context.Context, raw []byte) (domain.ExtractedText, error) {
	if len(raw) == 0 {
		return domain.ExtractedText{}, errors.New("empty document")
	}
	buf := latin1(raw)

	collector := newCollector()
	collector.addAll(s.literalStrings(buf))

	for _, re := range []*regexp.Regexp{printableRe, sentenceRe, headingRe, keywordLineRe} {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedText{}, err
		}
		collector.addAll(re.FindAllString(buf, s.maxMatches))
	}

	if len(collector.fragments) == 0 {
		return domain.ExtractedText{}, errors.New("no readable fragments")
	}

	pages := len(pageObjRe.FindAllStringIndex(buf, -1))
	if pages == 0 {
		pages = 1
	}
	return domain.ExtractedText{
		Text:      strings.Join(collector.fragments, "\n"),
		PageCount: pages,
	}, nil
}

func (s *Scanner) literalStrings(buf string) []string {
	out := make([]string, 0)
	for _, m := range literalShowRe.FindAllStringSubmatch(buf, s.maxMatches) {
		out = append(out, unescapeLiteral(m[1]))
	}
	for _, m := range arrayShowRe.FindAllStringSubmatch(buf, s.maxMatches) {
		var b strings.Builder
		for _, part := range arrayPartRe.FindAllStringSubmatch(m[1], -1) {
			b.WriteString(unescapeLiteral(part[1]))
		}
		out = append(out, b.String())
	}
	return out
}

type collector struct {
	fragments []string
	keys      []string
	seen      map[string]struct{}
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

func (c *collector) addAll(candidates []string) {
	for _, candidate := range candidates {
		c.add(candidate)
	}
}

// add keeps a fragment unless it is container syntax or a near-duplicate of
// something already collected.
func (c *collector) add(fragment string) {
	fragment = strings.Join(strings.Fields(fragment), " ")
	if fragment == "" || isSyntaxNoise(fragment) || !mostlyPrintable(fragment) {
		return
	}
	key := dedupeKey(fragment)
	if len(key) < 8 {
		return
	}
	if _, ok := c.seen[key]; ok {
		return
	}
	for _, existing := range c.keys {
		if strings.Contains(existing, key) {
			return
		}
	}
	c.seen[key] = struct{}{}
	c.keys = append(c.keys, key)
	c.fragments = append(c.fragments, fragment)
}

func dedupeKey(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case !space && b.Len() > 0:
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func isSyntaxNoise(s string) bool {
	for _, token := range syntaxNoise {
		if strings.Contains(s, token) {
			return true
		}
	}
	return operatorRe.MatchString(s)
}

func mostlyPrintable(s string) bool {
	total, printable := 0, 0
	for _, r := range s {
		total++
		if r >= 0x20 && r < 0x7F {
			printable++
		}
	}
	return total > 0 && float64(printable)/float64(total) >= 0.9
}

func latin1(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

func unescapeLiteral(s string) string {
	r := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, " ", `\r`, " ", `\t`, " ")
	return r.Replace(s)
}
