package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

type JobService struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
}

func NewJobService(repo ports.JobRepository, storage ports.ObjectStorage) *JobService {
	return &JobService{repo: repo, storage: storage}
}

func (s *JobService) GetReport(ctx context.Context, id string) (*domain.JobReport, error) {
	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job report: %w", err)
	}
	return report, nil
}

// DeleteJob removes the job, every linked result and any staged upload.
func (s *JobService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch job by id: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if job.StorageKey != "" {
		if err := s.storage.Delete(ctx, job.StorageKey); err != nil {
			return fmt.Errorf("delete staged upload: %w", err)
		}
	}
	return nil
}
