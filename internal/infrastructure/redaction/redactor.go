// Package redaction removes personally identifying spans from canonical text
// and reports what was removed per category.
package redaction

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

var (
	placeholderRe  = regexp.MustCompile(`\[REDACTED:[A-Z_]+\]`)
	categoryNameRe = regexp.MustCompile(`[^A-Z_]+`)
)

// Placeholder returns the replacement token for a category. Tokens hold no
// digits and no lower-case letters, so no detector can match one.
func Placeholder(category string) string {
	return "[REDACTED:" + category + "]"
}

// CustomPattern is an operator-supplied detector appended after the catalog.
type CustomPattern struct {
	Category string
	Pattern  string
}

type Options struct {
	// IncludeLegal adds case and docket number detectors.
	IncludeLegal bool
	Custom       []CustomPattern
}

func DefaultOptions() Options {
	return Options{IncludeLegal: true}
}

type Redactor struct {
	detectors []detector
	logger    *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Redactor {
	if logger == nil {
		logger = slog.Default()
	}
	detectors := baseCatalog()
	if opts.IncludeLegal {
		detectors = append(detectors, legalCatalog()...)
	}
	for _, custom := range opts.Custom {
		category := normalizeCategory(custom.Category)
		re, err := regexp.Compile(custom.Pattern)
		if err != nil || category == "" {
			logger.Warn("redaction_pattern_skipped", "category", custom.Category, "pattern", custom.Pattern, "error", err)
			continue
		}
		if re.MatchString("") {
			logger.Warn("redaction_pattern_skipped", "category", category, "pattern", custom.Pattern, "error", "matches empty string")
			continue
		}
		detectors = append(detectors, detector{category: category, re: re})
	}
	return &Redactor{detectors: detectors, logger: logger}
}

// Categories lists detector categories in application order, without repeats.
func (r *Redactor) Categories() []string {
	seen := make(map[string]bool, len(r.detectors))
	out := make([]string, 0, len(r.detectors))
	for _, d := range r.detectors {
		if !seen[d.category] {
			seen[d.category] = true
			out = append(out, d.category)
		}
	}
	return out
}

// maxPasses bounds the catalog loop. Every productive pass turns at least one
// character into a placeholder, so real text settles within a few passes.
const maxPasses = 16

// Redact applies every detector in catalog order to the progressively
// redacted text and repeats the catalog until a full pass changes nothing.
// A later detector can free a span for an earlier one, as in a name glued to
// a phone number, and the settled output is what makes a second call a no-op.
// The filename is accepted for hinting; the catalog does not use it.
func (r *Redactor) Redact(text, _ string) domain.RedactionResult {
	counts := make(map[string]int)
	order := make([]string, 0)

	out := text
	for pass := 0; ; pass++ {
		if pass == maxPasses {
			r.logger.Warn("redaction_not_settled", "passes", pass)
			break
		}
		changed := false
		for _, d := range r.detectors {
			next, n := r.apply(d, out)
			if n == 0 {
				continue
			}
			out = next
			changed = true
			if _, ok := counts[d.category]; !ok {
				order = append(order, d.category)
			}
			counts[d.category] += n
		}
		if !changed {
			break
		}
	}

	items := make([]domain.RedactedItem, 0, len(order))
	total := 0
	for _, category := range order {
		items = append(items, domain.RedactedItem{
			Category:    category,
			Count:       counts[category],
			Placeholder: Placeholder(category),
		})
		total += counts[category]
	}

	return domain.RedactionResult{
		RedactedContent: out,
		Items:           items,
		Summary:         fmt.Sprintf("%d items redacted across %d categories", total, len(items)),
	}
}

// apply runs one detector over the text between existing placeholders. A
// panicking detector leaves the text untouched.
func (r *Redactor) apply(d detector, text string) (out string, count int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("redaction_detector_failed", "category", d.category, "panic", fmt.Sprint(rec))
			out, count = text, 0
		}
	}()

	placeholder := Placeholder(d.category)
	replace := func(segment string) string {
		if !d.keepPrefix {
			return d.re.ReplaceAllStringFunc(segment, func(string) string {
				count++
				return placeholder
			})
		}
		return d.re.ReplaceAllStringFunc(segment, func(match string) string {
			groups := d.re.FindStringSubmatch(match)
			if len(groups) < 2 {
				return match
			}
			count++
			return groups[1] + placeholder
		})
	}
	return outsidePlaceholders(text, replace), count
}

// outsidePlaceholders rewrites only the spans between placeholders, so
// operator patterns cannot eat into earlier replacements.
func outsidePlaceholders(text string, fn func(string) string) string {
	locs := placeholderRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return fn(text)
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		b.WriteString(fn(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(fn(text[last:]))
	return b.String()
}

func normalizeCategory(category string) string {
	category = strings.ToUpper(strings.TrimSpace(category))
	category = strings.ReplaceAll(category, " ", "_")
	return categoryNameRe.ReplaceAllString(category, "")
}
