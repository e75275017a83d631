// Package extractor turns uploaded bytes into canonical text by walking a
// per-mime fallback chain of strategies, each gated by the quality validator.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	FirstStrategyMinChars    = 100
	FallbackStrategyMinChars = 50
)

type Family string

const (
	FamilyPDF     Family = "pdf"
	FamilyOffice  Family = "office"
	FamilyImage   Family = "image"
	FamilyHTML    Family = "html"
	FamilyText    Family = "text"
	FamilyUnknown Family = "unknown"
)

var officeMimes = map[string]struct{}{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"application/vnd.oasis.opendocument.text":                                 {},
	"application/msword": {},
	"application/rtf":    {},
	"text/rtf":           {},
}

// Strategies bundles the concrete strategies the default plans are built from.
type Strategies struct {
	PDF       ports.ExtractionStrategy
	Heuristic ports.ExtractionStrategy
	Office    ports.ExtractionStrategy
	OCR       ports.ExtractionStrategy
	HTML      ports.ExtractionStrategy
	Plain     ports.ExtractionStrategy
}

type Coordinator struct {
	plans  map[Family][]ports.ExtractionStrategy
	logger *slog.Logger
}

// NewCoordinator wires the default plans. PDFs never go to OCR: a whole PDF
// container is not an image and tesseract fails on it unpredictably.
func NewCoordinator(s Strategies, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		plans: map[Family][]ports.ExtractionStrategy{
			FamilyPDF:     compact(s.PDF, s.Heuristic),
			FamilyOffice:  compact(s.Office),
			FamilyImage:   compact(s.OCR),
			FamilyHTML:    compact(s.HTML, s.Plain),
			FamilyText:    compact(s.Plain),
			FamilyUnknown: compact(s.Plain),
		},
		logger: logger,
	}
}

// WithPlan overrides the strategy order for a family.
func (c *Coordinator) WithPlan(family Family, strategies ...ports.ExtractionStrategy) *Coordinator {
	c.plans[family] = compact(strategies...)
	return c
}

func (c *Coordinator) Plan(family Family) []string {
	names := make([]string, 0, len(c.plans[family]))
	for _, s := range c.plans[family] {
		names = append(names, s.Name())
	}
	return names
}

func (c *Coordinator) Extract(ctx context.Context, doc domain.Document) domain.ExtractionResult {
	family := ResolveFamily(doc.MimeType, doc.Filename)
	plan := c.plans[family]
	attempts := make([]domain.ExtractionAttempt, 0, len(plan))
	lastReason := "no extraction strategy for " + string(family)

	for i, strategy := range plan {
		minChars := FallbackStrategyMinChars
		if i == 0 {
			minChars = FirstStrategyMinChars
		}

		out, err := runStrategy(ctx, strategy, doc.Raw)
		attempt := domain.ExtractionAttempt{Method: strategy.Name()}
		switch {
		case err != nil:
			attempt.Reason = err.Error()
		case utf8.RuneCountInString(strings.TrimSpace(out.Text)) <= minChars:
			attempt.Reason = fmt.Sprintf("output below %d chars", minChars)
		default:
			if verdict := Validate(out.Text); !verdict.OK {
				attempt.Reason = "quality: " + verdict.Reason
			} else {
				attempt.Passed = true
			}
		}
		attempts = append(attempts, attempt)

		if !attempt.Passed {
			lastReason = strategy.Name() + ": " + attempt.Reason
			c.logger.Debug("extraction_strategy_rejected",
				"filename", doc.Filename,
				"family", family,
				"method", strategy.Name(),
				"reason", attempt.Reason,
			)
			continue
		}

		result := domain.ExtractionResult{
			Text:      strings.TrimSpace(out.Text),
			PageCount: out.PageCount,
			Method:    strategy.Name(),
			Success:   true,
			Attempts:  attempts,
		}
		if !out.Metadata.IsZero() {
			meta := out.Metadata
			result.Metadata = &meta
		}
		c.logger.Info("extraction_succeeded",
			"filename", doc.Filename,
			"method", result.Method,
			"pages", result.PageCount,
			"chars", utf8.RuneCountInString(result.Text),
		)
		return result
	}

	c.logger.Warn("extraction_failed", "filename", doc.Filename, "family", family, "reason", lastReason)
	return domain.ExtractionResult{
		Method:   domain.MethodAllFailed,
		Success:  false,
		Error:    lastReason,
		Attempts: attempts,
	}
}

// runStrategy converts a strategy panic into an ordinary failure so one
// malformed file cannot take down the batch.
func runStrategy(ctx context.Context, s ports.ExtractionStrategy, raw []byte) (out domain.ExtractedText, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.ExtractedText{}
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Extract(ctx, raw)
}

// ResolveFamily maps a declared mime type to a strategy family, falling back
// to the filename extension for empty or generic declarations.
func ResolveFamily(mimeType, filename string) Family {
	mt := normalizeMime(mimeType)
	if mt == "" || mt == "application/octet-stream" {
		mt = normalizeMime(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))))
		if mt == "" {
			mt = mimeByExtension(filename)
		}
	}

	switch {
	case mt == "application/pdf":
		return FamilyPDF
	case isOffice(mt):
		return FamilyOffice
	case strings.HasPrefix(mt, "image/"):
		return FamilyImage
	case mt == "text/html" || mt == "application/xhtml+xml":
		return FamilyHTML
	case strings.HasPrefix(mt, "text/"):
		return FamilyText
	default:
		return FamilyUnknown
	}
}

func normalizeMime(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	base, _, _ := strings.Cut(mt, ";")
	return strings.TrimSpace(base)
}

func isOffice(mt string) bool {
	_, ok := officeMimes[mt]
	return ok
}

// mimeByExtension covers types the system mime table often lacks.
func mimeByExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".odt":
		return "application/vnd.oasis.opendocument.text"
	case ".doc":
		return "application/msword"
	case ".rtf":
		return "application/rtf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".htm", ".html":
		return "text/html"
	case ".txt", ".md":
		return "text/plain"
	default:
		return ""
	}
}

func compact(strategies ...ports.ExtractionStrategy) []ports.ExtractionStrategy {
	out := make([]ports.ExtractionStrategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
