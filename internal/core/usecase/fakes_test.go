package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type progressCall struct {
	status   domain.JobStatus
	progress int
	errMsg   string
}

type jobRepoFake struct {
	mu             sync.Mutex
	jobs           map[string]*domain.Job
	createErr      error
	progress       map[string][]progressCall
	extraction     map[string]domain.ExtractionResult
	redaction      map[string]domain.RedactionResult
	classification map[string]domain.ClassificationResult
	deleted        []string
}

func newJobRepoFake(jobs ...domain.Job) *jobRepoFake {
	f := &jobRepoFake{
		jobs:           make(map[string]*domain.Job),
		progress:       make(map[string][]progressCall),
		extraction:     make(map[string]domain.ExtractionResult),
		redaction:      make(map[string]domain.RedactionResult),
		classification: make(map[string]domain.ClassificationResult),
	}
	for i := range jobs {
		job := jobs[i]
		f.jobs[job.ID] = &job
	}
	return f
}

func (f *jobRepoFake) Create(_ context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyJob := *job
	f.jobs[job.ID] = &copyJob
	return nil
}

func (f *jobRepoFake) GetByID(_ context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get job", errors.New(id))
	}
	copyJob := *job
	return &copyJob, nil
}

func (f *jobRepoFake) UpdateProgress(_ context.Context, id string, status domain.JobStatus, progress int, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[id] = append(f.progress[id], progressCall{status: status, progress: progress, errMsg: errMessage})
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		job.Progress = progress
		job.Error = errMessage
	}
	return nil
}

func (f *jobRepoFake) SaveExtraction(_ context.Context, id string, result domain.ExtractionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extraction[id] = result
	return nil
}

func (f *jobRepoFake) SaveRedaction(_ context.Context, id string, result domain.RedactionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redaction[id] = result
	return nil
}

func (f *jobRepoFake) SaveClassification(_ context.Context, id string, result domain.ClassificationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classification[id] = result
	return nil
}

func (f *jobRepoFake) GetReport(ctx context.Context, id string) (*domain.JobReport, error) {
	job, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.JobReport{Job: *job}, nil
}

func (f *jobRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *jobRepoFake) lastProgress(id string) progressCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.progress[id]
	if len(calls) == 0 {
		return progressCall{}
	}
	return calls[len(calls)-1]
}

type storageFake struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
	deleted []string
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.files[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type queueFake struct {
	events []domain.BatchEvent
	err    error
}

func (f *queueFake) PublishBatchIngested(_ context.Context, event domain.BatchEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *queueFake) SubscribeBatchIngested(context.Context, func(context.Context, domain.BatchEvent) error) error {
	return nil
}
