// Package ports declares the contracts between the intake core and its adapters.
package ports

import (
	"context"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// ExtractionStrategy is one way of turning raw bytes into text.
type ExtractionStrategy interface {
	Name() string
	Extract(ctx context.Context, raw []byte) (domain.ExtractedText, error)
}

// TextExtractor runs the fallback chain for a document. It never returns an
// error: exhaustion is reported through ExtractionResult.Success.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document) domain.ExtractionResult
}

// Redactor removes personally identifying spans from canonical text.
type Redactor interface {
	Redact(text, filename string) domain.RedactionResult
}

// DocumentClassifier scores redacted text against the taxonomy.
type DocumentClassifier interface {
	Classify(filename, content string) domain.ClassificationResult
}

// DocumentSealer encrypts and verifies original document bytes.
type DocumentSealer interface {
	Seal(raw []byte, meta domain.SealMetadata) (domain.EncryptedDocument, error)
	Open(enc domain.EncryptedDocument) (*domain.DecryptedContent, error)
	Verify(enc domain.EncryptedDocument) (bool, error)
}
