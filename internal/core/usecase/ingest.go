package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

type IngestBatchUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestBatchUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestBatchUseCase {
	return &IngestBatchUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// UploadBatch stages every upload, creates one PENDING job per file and
// publishes a single batch event. Any failure rolls the whole request back:
// staged plaintext is deleted and no PENDING job is left without an event.
func (uc *IngestBatchUseCase) UploadBatch(ctx context.Context, uploads []ports.Upload) (string, []domain.Job, error) {
	if len(uploads) == 0 {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "upload batch", errors.New("no files in request"))
	}

	batchID := uuid.NewString()
	now := time.Now().UTC()
	jobs := make([]domain.Job, 0, len(uploads))

	for _, upload := range uploads {
		if strings.TrimSpace(upload.Filename) == "" {
			uc.discard(ctx, jobs)
			return "", nil, domain.WrapError(domain.ErrInvalidInput, "upload batch", errors.New("file without name"))
		}

		id := uuid.NewString()
		storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(upload.Filename))
		counter := &countingReader{r: upload.Body}
		if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
			uc.discard(ctx, jobs)
			return "", nil, fmt.Errorf("save to object storage: %w", err)
		}

		jobs = append(jobs, domain.Job{
			ID:         id,
			BatchID:    batchID,
			FileName:   upload.Filename,
			MimeType:   upload.MimeType,
			FileSize:   counter.n,
			StorageKey: storageKey,
			Status:     domain.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	ids := make([]string, 0, len(jobs))
	for i := range jobs {
		if err := uc.repo.Create(ctx, &jobs[i]); err != nil {
			uc.rollback(ctx, jobs, ids)
			return "", nil, fmt.Errorf("create job: %w", err)
		}
		ids = append(ids, jobs[i].ID)
	}

	if err := uc.queue.PublishBatchIngested(ctx, domain.BatchEvent{BatchID: batchID, JobIDs: ids, IngestedAt: now}); err != nil {
		uc.rollback(ctx, jobs, ids)
		return "", nil, fmt.Errorf("publish batch event: %w", err)
	}

	return batchID, jobs, nil
}

// rollback removes the job rows already created and every staged file. It
// runs detached from ctx so a cancelled request still cleans up.
func (uc *IngestBatchUseCase) rollback(ctx context.Context, jobs []domain.Job, created []string) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range created {
		_ = uc.repo.Delete(ctx, id)
	}
	uc.discard(ctx, jobs)
}

func (uc *IngestBatchUseCase) discard(ctx context.Context, jobs []domain.Job) {
	for _, job := range jobs {
		_ = uc.storage.Delete(ctx, job.StorageKey)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
