package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const DefaultBatchConcurrency = 1

// BatchProcessUseCase feeds the jobs of a batch through a bounded pool,
// smallest file first. One failing job never stops its siblings.
type BatchProcessUseCase struct {
	repo        ports.JobRepository
	processor   ports.DocumentProcessor
	concurrency int
	logger      *slog.Logger
}

func NewBatchProcessUseCase(
	repo ports.JobRepository,
	processor ports.DocumentProcessor,
	concurrency int,
	logger *slog.Logger,
) *BatchProcessUseCase {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessUseCase{
		repo:        repo,
		processor:   processor,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (uc *BatchProcessUseCase) ProcessBatch(ctx context.Context, event domain.BatchEvent) domain.BatchReport {
	report := domain.BatchReport{BatchID: event.BatchID}

	jobs := make([]*domain.Job, 0, len(event.JobIDs))
	for _, id := range event.JobIDs {
		job, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			uc.logger.Error("batch_job_lookup_failed", "batch_id", event.BatchID, "job_id", id, "error", err)
			report.Failed++
			continue
		}
		jobs = append(jobs, job)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].FileSize < jobs[j].FileSize })

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(uc.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			err := uc.processor.ProcessByID(ctx, job.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				uc.logger.Error("job_processing_failed", "batch_id", event.BatchID, "job_id", job.ID, "error", err)
				return nil
			}
			report.Completed++
			return nil
		})
	}
	// Workers record failures in the report and never return an error.
	g.Wait()

	uc.logger.Info("batch_processed",
		"batch_id", report.BatchID,
		"completed", report.Completed,
		"failed", report.Failed,
	)
	return report
}
