// Package classifier assigns a taxonomy document type to redacted text using
// weighted, explainable evidence rules. Classification is a pure function of
// (filename, content).
package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const (
	MinConfidence = 0.5
	MaxConfidence = 0.98
	// UndeterminedCeiling keeps undetermined verdicts below the acceptance floor.
	UndeterminedCeiling = 0.49
	TieEpsilon          = 0.01
)

var (
	separatorRe  = regexp.MustCompile(`[_.\s]+`)
	dashRe       = regexp.MustCompile(`-+([^0-9]|$)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

type compiledRule struct {
	rule        domain.EvidenceRule
	re          *regexp.Regexp
	specificity int
}

type compiledEntry struct {
	entry    domain.TaxonomyEntry
	rules    []compiledRule
	maxScore float64
}

type Engine struct {
	entries []compiledEntry
}

// NewEngine validates and compiles a taxonomy. Entry order is preserved and
// acts as the last tie-breaker.
func NewEngine(entries []domain.TaxonomyEntry) (*Engine, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}
	compiled := make([]compiledEntry, 0, len(entries))
	for _, entry := range entries {
		ce := compiledEntry{entry: entry, rules: make([]compiledRule, 0, len(entry.Rules))}
		for _, rule := range entry.Rules {
			re, err := compileRule(rule)
			if err != nil {
				return nil, fmt.Errorf("taxonomy entry %q: %w", entry.ID, err)
			}
			ce.rules = append(ce.rules, compiledRule{rule: rule, re: re, specificity: specificity(rule)})
			ce.maxScore += rule.Weight
		}
		compiled = append(compiled, ce)
	}
	return &Engine{entries: compiled}, nil
}

type score struct {
	entry       *compiledEntry
	raw         float64
	normalized  float64
	confidence  float64
	cleared     bool
	specificity int
	evidence    []string
	fired       []string
}

func (e *Engine) Classify(filename, content string) domain.ClassificationResult {
	name := NormalizeFilename(filename)
	body := strings.ToLower(content)

	scores := make([]score, 0, len(e.entries))
	for i := range e.entries {
		scores = append(scores, e.score(&e.entries[i], name, body))
	}

	winner, runnerUp := pick(scores)
	if winner == nil {
		return undetermined(scores)
	}

	return domain.ClassificationResult{
		DocumentType:     winner.entry.entry.ID,
		Confidence:       round(winner.confidence),
		Evidence:         winner.evidence,
		Reasoning:        reasoning(winner, runnerUp),
		TaxonomyCategory: winner.entry.entry.Category,
	}
}

func (e *Engine) score(ce *compiledEntry, name, body string) score {
	s := score{entry: ce, evidence: make([]string, 0)}
	for _, cr := range ce.rules {
		inName, inBody := false, false
		if cr.rule.AppliesTo != domain.ScopeContent {
			inName = cr.re.MatchString(name)
		}
		if cr.rule.AppliesTo != domain.ScopeFilename {
			inBody = cr.re.MatchString(body)
		}
		if !inName && !inBody {
			continue
		}
		s.raw += cr.rule.Weight
		s.evidence = append(s.evidence, describe(cr.rule, inName, inBody))
		s.fired = append(s.fired, fmt.Sprintf("%q(+%g)", cr.rule.Pattern, cr.rule.Weight))
		if cr.specificity > s.specificity {
			s.specificity = cr.specificity
		}
	}
	if ce.maxScore > 0 {
		s.normalized = s.raw / ce.maxScore
	}
	s.cleared = s.raw > 0 && s.raw >= ce.entry.MinEvidence
	if s.cleared {
		s.confidence = clamp(s.normalized, MinConfidence, MaxConfidence)
	}
	return s
}

// pick scans in taxonomy order. A later entry replaces the leader only when
// it is more confident by more than TieEpsilon, or ties within TieEpsilon
// with a more specific matched rule.
func pick(scores []score) (winner, runnerUp *score) {
	for i := range scores {
		s := &scores[i]
		if !s.cleared {
			continue
		}
		if winner == nil {
			winner = s
			continue
		}
		diff := s.confidence - winner.confidence
		if diff > TieEpsilon || (math.Abs(diff) <= TieEpsilon && s.specificity > winner.specificity) {
			runnerUp, winner = winner, s
			continue
		}
		if runnerUp == nil || s.confidence > runnerUp.confidence {
			runnerUp = s
		}
	}
	return winner, runnerUp
}

func undetermined(scores []score) domain.ClassificationResult {
	var best *score
	for i := range scores {
		if best == nil || scores[i].normalized > best.normalized {
			best = &scores[i]
		}
	}

	reason := "no taxonomy entry matched any evidence rule"
	confidence := 0.0
	if best != nil && best.raw > 0 {
		confidence = math.Min(best.normalized, UndeterminedCeiling)
		reason = fmt.Sprintf("no taxonomy entry reached its minimum evidence; closest was %s with %g of %g required from %s",
			best.entry.entry.ID, best.raw, best.entry.entry.MinEvidence, strings.Join(best.fired, ", "))
	}
	return domain.ClassificationResult{
		DocumentType: domain.Undetermined,
		Confidence:   round(confidence),
		Evidence:     []string{},
		Reasoning:    reason,
	}
}

func reasoning(winner, runnerUp *score) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s scored %g of %g (%.2f) from %s", winner.entry.entry.ID, winner.raw,
		winner.entry.maxScore, winner.normalized, strings.Join(winner.fired, ", "))
	switch {
	case runnerUp == nil:
		b.WriteString("; no other entry reached its minimum evidence")
	case winner.confidence-runnerUp.confidence > TieEpsilon:
		fmt.Fprintf(&b, "; beat %s at %.2f on confidence", runnerUp.entry.entry.ID, runnerUp.confidence)
	case winner.specificity > runnerUp.specificity:
		fmt.Fprintf(&b, "; tied with %s at %.2f and won on a more specific rule", runnerUp.entry.entry.ID, runnerUp.confidence)
	default:
		fmt.Fprintf(&b, "; tied with %s at %.2f and won on taxonomy order", runnerUp.entry.entry.ID, runnerUp.confidence)
	}
	return b.String()
}

func describe(rule domain.EvidenceRule, inName, inBody bool) string {
	where := "content"
	switch {
	case inName && inBody:
		where = "filename and content"
	case inName:
		where = "filename"
	}
	label := rule.Description
	if label == "" {
		label = string(rule.Kind)
	}
	return fmt.Sprintf("%s: %q in %s", label, strings.ToLower(rule.Pattern), where)
}

// specificity ranks how literal a rule is: form numbers outrank plain
// keywords, which outrank free regexes; longer patterns break remaining ties.
func specificity(rule domain.EvidenceRule) int {
	s := len(rule.Pattern)
	if strings.ContainsAny(rule.Pattern, "0123456789") {
		s += 100
	}
	if rule.Kind == domain.RuleKeyword {
		s += 10
	}
	return s
}

// NormalizeFilename lower-cases a filename and turns separator runs into
// spaces. Dashes survive only when a digit follows, so "I-589" stays a form
// number.
func NormalizeFilename(filename string) string {
	name := strings.ToLower(filename)
	name = separatorRe.ReplaceAllString(name, " ")
	name = dashRe.ReplaceAllString(name, " $1")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(name, " "))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
