package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// Progress checkpoints reported while a job moves through the pipeline.
const (
	ProgressStarted    = 10
	ProgressExtracted  = 40
	ProgressRedacted   = 60
	ProgressClassified = 80
	ProgressDone       = 100
)

const extractionFailedMessage = "could not extract text"

type noopObserver struct{}

func (noopObserver) ObserveExtraction(domain.ExtractionResult)         {}
func (noopObserver) ObserveRedaction(domain.RedactionResult)           {}
func (noopObserver) ObserveClassification(domain.ClassificationResult) {}

type ProcessDocumentUseCase struct {
	repo       ports.JobRepository
	storage    ports.ObjectStorage
	extractor  ports.TextExtractor
	redactor   ports.Redactor
	classifier ports.DocumentClassifier
	vault      ports.DocumentVault
	handoff    ports.TextHandoff
	observer   ports.PipelineObserver
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	redactor ports.Redactor,
	classifier ports.DocumentClassifier,
	vault ports.DocumentVault,
	handoff ports.TextHandoff,
	observer ports.PipelineObserver,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:       repo,
		storage:    storage,
		extractor:  extractor,
		redactor:   redactor,
		classifier: classifier,
		vault:      vault,
		handoff:    handoff,
		observer:   observer,
		logger:     logger,
	}
}

// ProcessByID runs extraction, redaction and classification in order while
// the original bytes are sealed concurrently. Jobs already in a terminal
// state are skipped so redelivered batch events are harmless.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job by id: %w", err)
	}
	if job.Terminal() {
		uc.logger.Info("job_already_terminal", "job_id", jobID, "status", job.Status)
		return nil
	}

	if err := uc.markProgress(ctx, jobID, domain.StatusProcessing, ProgressStarted); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	raw, err := uc.loadRaw(ctx, job)
	if err != nil {
		return uc.fail(ctx, jobID, err, err.Error())
	}

	var sealing errgroup.Group
	sealing.Go(func() error {
		return uc.vault.StoreEncryptedDocument(ctx, jobID, raw, domain.SealMetadata{
			Filename:   job.FileName,
			MimeType:   job.MimeType,
			UploadedAt: job.CreatedAt,
		})
	})

	verdict, pipelineErr := uc.runTextPipeline(ctx, job, raw)

	if err := sealing.Wait(); err != nil {
		sealErr := fmt.Errorf("seal original: %w", err)
		if pipelineErr != nil {
			sealErr = errors.Join(pipelineErr, sealErr)
		}
		return uc.fail(ctx, jobID, sealErr, sealErr.Error())
	}
	uc.releaseStaging(ctx, job)

	if pipelineErr != nil {
		message := pipelineErr.Error()
		if domain.IsKind(pipelineErr, domain.ErrExtractionFailed) {
			message = extractionFailedMessage
		}
		return uc.fail(ctx, jobID, pipelineErr, message)
	}

	uc.handOff(ctx, job, verdict)

	if err := uc.markProgress(ctx, jobID, domain.StatusDone, ProgressDone); err != nil {
		return fmt.Errorf("set status=done: %w", err)
	}
	return nil
}

type textVerdict struct {
	redacted       string
	classification domain.ClassificationResult
}

func (uc *ProcessDocumentUseCase) runTextPipeline(ctx context.Context, job *domain.Job, raw []byte) (textVerdict, error) {
	extraction := uc.extractor.Extract(ctx, domain.Document{
		Filename: job.FileName,
		MimeType: job.MimeType,
		Size:     int64(len(raw)),
		Raw:      raw,
	})
	uc.observer.ObserveExtraction(extraction)
	if err := uc.repo.SaveExtraction(ctx, job.ID, extraction); err != nil {
		return textVerdict{}, fmt.Errorf("save extraction: %w", err)
	}
	if !extraction.Success {
		return textVerdict{}, domain.WrapError(domain.ErrExtractionFailed, "extract text", errors.New(extraction.Error))
	}
	if err := uc.markProgress(ctx, job.ID, domain.StatusProcessing, ProgressExtracted); err != nil {
		return textVerdict{}, fmt.Errorf("set progress=extracted: %w", err)
	}

	redaction := uc.redactor.Redact(extraction.Text, job.FileName)
	uc.observer.ObserveRedaction(redaction)
	if err := uc.repo.SaveRedaction(ctx, job.ID, redaction); err != nil {
		return textVerdict{}, fmt.Errorf("save redaction: %w", err)
	}
	if err := uc.markProgress(ctx, job.ID, domain.StatusProcessing, ProgressRedacted); err != nil {
		return textVerdict{}, fmt.Errorf("set progress=redacted: %w", err)
	}

	classification := uc.classifier.Classify(job.FileName, redaction.RedactedContent)
	uc.observer.ObserveClassification(classification)
	if err := uc.repo.SaveClassification(ctx, job.ID, classification); err != nil {
		return textVerdict{}, fmt.Errorf("save classification: %w", err)
	}
	if err := uc.markProgress(ctx, job.ID, domain.StatusProcessing, ProgressClassified); err != nil {
		return textVerdict{}, fmt.Errorf("set progress=classified: %w", err)
	}

	return textVerdict{redacted: redaction.RedactedContent, classification: classification}, nil
}

func (uc *ProcessDocumentUseCase) loadRaw(ctx context.Context, job *domain.Job) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, job.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("open staged upload: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read staged upload: %w", err)
	}
	return raw, nil
}

// releaseStaging drops the plaintext copy once the sealed one is persisted.
func (uc *ProcessDocumentUseCase) releaseStaging(ctx context.Context, job *domain.Job) {
	if err := uc.storage.Delete(ctx, job.StorageKey); err != nil {
		uc.logger.Warn("staging_delete_failed", "job_id", job.ID, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) handOff(ctx context.Context, job *domain.Job, verdict textVerdict) {
	if uc.handoff == nil {
		return
	}
	event := domain.RedactedTextEvent{
		JobID:        job.ID,
		Filename:     job.FileName,
		Text:         verdict.redacted,
		DocumentType: verdict.classification.DocumentType,
	}
	if err := uc.handoff.HandOffRedacted(ctx, event); err != nil {
		uc.logger.Warn("redacted_handoff_failed", "job_id", job.ID, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) markProgress(ctx context.Context, jobID string, status domain.JobStatus, progress int) error {
	return uc.repo.UpdateProgress(ctx, jobID, status, progress, "")
}

func (uc *ProcessDocumentUseCase) fail(ctx context.Context, jobID string, processErr error, message string) error {
	if failErr := uc.repo.UpdateProgress(ctx, jobID, domain.StatusError, ProgressDone, message); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", processErr, failErr)
	}
	return processErr
}
