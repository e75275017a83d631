package ports

import (
	"context"
	"io"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// Upload is a single file of an upload request.
type Upload struct {
	Filename string
	MimeType string
	Body     io.Reader
}

// DocumentIngestor is the inbound contract for upload orchestration.
type DocumentIngestor interface {
	UploadBatch(ctx context.Context, uploads []Upload) (string, []domain.Job, error)
}

// JobReader is the inbound read model for job state and results.
type JobReader interface {
	GetReport(ctx context.Context, id string) (*domain.JobReport, error)
}

// JobDeleter removes a job with all linked results.
type JobDeleter interface {
	DeleteJob(ctx context.Context, id string) error
}

// DocumentProcessor runs the intake pipeline for one job.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// BatchProcessor runs a batch of jobs through a bounded worker pool.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, event domain.BatchEvent) domain.BatchReport
}

// DocumentVault is the persistence-facing encryption contract.
type DocumentVault interface {
	StoreEncryptedDocument(ctx context.Context, id string, raw []byte, meta domain.SealMetadata) error
	GetDecryptedContent(ctx context.Context, id string) (*domain.DecryptedContent, error)
	VerifyIntegrity(ctx context.Context, id string) (bool, error)
}
