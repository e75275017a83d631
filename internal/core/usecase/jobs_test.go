package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

func TestJobServiceDeleteRemovesJobAndStaging(t *testing.T) {
	repo := newJobRepoFake(domain.Job{ID: "job-1", StorageKey: "job-1_a.txt"})
	storage := newStorageFake()
	storage.files["job-1_a.txt"] = []byte("x")
	svc := NewJobService(repo, storage)

	if err := svc.DeleteJob(context.Background(), "job-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || len(storage.files) != 0 {
		t.Fatalf("job or staging left behind: deleted=%v files=%v", repo.deleted, storage.files)
	}
	if _, err := svc.GetReport(context.Background(), "job-1"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestJobServiceDeleteUnknownJob(t *testing.T) {
	svc := NewJobService(newJobRepoFake(), newStorageFake())
	if err := svc.DeleteJob(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
