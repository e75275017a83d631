package ports

import (
	"context"
	"io"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// JobRepository persists jobs and the per-stage results linked to them.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	UpdateProgress(ctx context.Context, id string, status domain.JobStatus, progress int, errMessage string) error
	SaveExtraction(ctx context.Context, id string, result domain.ExtractionResult) error
	SaveRedaction(ctx context.Context, id string, result domain.RedactionResult) error
	SaveClassification(ctx context.Context, id string, result domain.ClassificationResult) error
	GetReport(ctx context.Context, id string) (*domain.JobReport, error)
	Delete(ctx context.Context, id string) error
}

// EncryptedDocumentStore persists sealed originals keyed by job id.
type EncryptedDocumentStore interface {
	SaveEncrypted(ctx context.Context, id string, enc domain.EncryptedDocument) error
	GetEncrypted(ctx context.Context, id string) (*domain.EncryptedDocument, error)
}

// ObjectStorage stages raw uploads until they are sealed.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes batch ingestion events.
type MessageQueue interface {
	PublishBatchIngested(ctx context.Context, event domain.BatchEvent) error
	SubscribeBatchIngested(ctx context.Context, handler func(context.Context, domain.BatchEvent) error) error
}

// TextHandoff delivers redacted text to downstream summarization/search.
type TextHandoff interface {
	HandOffRedacted(ctx context.Context, event domain.RedactedTextEvent) error
}

// PipelineObserver receives per-document pipeline signals (metrics).
type PipelineObserver interface {
	ObserveExtraction(result domain.ExtractionResult)
	ObserveRedaction(result domain.RedactionResult)
	ObserveClassification(result domain.ClassificationResult)
}
