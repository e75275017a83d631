package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type extractorFake struct {
	result domain.ExtractionResult
	seen   domain.Document
}

func (f *extractorFake) Extract(_ context.Context, doc domain.Document) domain.ExtractionResult {
	f.seen = doc
	return f.result
}

type redactorFake struct {
	calls int
}

func (f *redactorFake) Redact(text, _ string) domain.RedactionResult {
	f.calls++
	return domain.RedactionResult{
		RedactedContent: strings.ReplaceAll(text, "555-123-4567", "[REDACTED:PHONE]"),
		Items:           []domain.RedactedItem{{Category: "PHONE", Count: 1, Placeholder: "[REDACTED:PHONE]"}},
		Summary:         "1 items redacted across 1 categories",
	}
}

type classifierFake struct {
	calls   int
	content string
}

func (f *classifierFake) Classify(_ string, content string) domain.ClassificationResult {
	f.calls++
	f.content = content
	return domain.ClassificationResult{DocumentType: "affidavit", Confidence: 0.9, Evidence: []string{"x"}, TaxonomyCategory: "Evidence"}
}

type vaultFake struct {
	mu     sync.Mutex
	stored map[string][]byte
	meta   domain.SealMetadata
	err    error
}

func (f *vaultFake) StoreEncryptedDocument(_ context.Context, id string, raw []byte, meta domain.SealMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.stored == nil {
		f.stored = make(map[string][]byte)
	}
	f.stored[id] = append([]byte(nil), raw...)
	f.meta = meta
	return nil
}

func (f *vaultFake) GetDecryptedContent(context.Context, string) (*domain.DecryptedContent, error) {
	return nil, domain.ErrNotEncrypted
}

func (f *vaultFake) VerifyIntegrity(context.Context, string) (bool, error) {
	return false, domain.ErrNotEncrypted
}

type handoffFake struct {
	events []domain.RedactedTextEvent
	err    error
}

func (f *handoffFake) HandOffRedacted(_ context.Context, event domain.RedactedTextEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type observerFake struct {
	extractions, redactions, classifications int
}

func (f *observerFake) ObserveExtraction(domain.ExtractionResult)         { f.extractions++ }
func (f *observerFake) ObserveRedaction(domain.RedactionResult)           { f.redactions++ }
func (f *observerFake) ObserveClassification(domain.ClassificationResult) { f.classifications++ }

type processFixture struct {
	repo       *jobRepoFake
	storage    *storageFake
	extractor  *extractorFake
	redactor   *redactorFake
	classifier *classifierFake
	vault      *vaultFake
	handoff    *handoffFake
	observer   *observerFake
	uc         *ProcessDocumentUseCase
}

func newProcessFixture(job domain.Job, raw string, extraction domain.ExtractionResult) *processFixture {
	f := &processFixture{
		repo:       newJobRepoFake(job),
		storage:    newStorageFake(),
		extractor:  &extractorFake{result: extraction},
		redactor:   &redactorFake{},
		classifier: &classifierFake{},
		vault:      &vaultFake{},
		handoff:    &handoffFake{},
		observer:   &observerFake{},
	}
	f.storage.files[job.StorageKey] = []byte(raw)
	f.uc = NewProcessDocumentUseCase(f.repo, f.storage, f.extractor, f.redactor, f.classifier, f.vault, f.handoff, f.observer, nil)
	return f
}

func pendingJob() domain.Job {
	return domain.Job{
		ID:         "job-1",
		BatchID:    "batch-1",
		FileName:   "affidavit.txt",
		MimeType:   "text/plain",
		StorageKey: "job-1_affidavit.txt",
		Status:     domain.StatusPending,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProcessByIDRunsFullPipeline(t *testing.T) {
	raw := "Sworn statement. Call 555-123-4567."
	f := newProcessFixture(pendingJob(), raw, domain.ExtractionResult{
		Text: raw, PageCount: 1, Method: domain.MethodDirectDecode, Success: true,
	})

	if err := f.uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if got := string(f.extractor.seen.Raw); got != raw || f.extractor.seen.Filename != "affidavit.txt" {
		t.Fatalf("extractor received unexpected document %+v", f.extractor.seen)
	}
	if _, ok := f.repo.extraction["job-1"]; !ok {
		t.Fatalf("extraction not saved")
	}
	if got := f.repo.redaction["job-1"].RedactedContent; got != "Sworn statement. Call [REDACTED:PHONE]." {
		t.Fatalf("unexpected redacted content %q", got)
	}
	if f.classifier.content != "Sworn statement. Call [REDACTED:PHONE]." {
		t.Fatalf("classifier must see redacted text, got %q", f.classifier.content)
	}
	if f.repo.classification["job-1"].DocumentType != "affidavit" {
		t.Fatalf("classification not saved")
	}
	if string(f.vault.stored["job-1"]) != raw || f.vault.meta.Filename != "affidavit.txt" {
		t.Fatalf("original not sealed: %+v", f.vault.meta)
	}
	if len(f.storage.deleted) != 1 || f.storage.deleted[0] != "job-1_affidavit.txt" {
		t.Fatalf("staging copy not released: %v", f.storage.deleted)
	}
	if len(f.handoff.events) != 1 || f.handoff.events[0].DocumentType != "affidavit" {
		t.Fatalf("unexpected handoff %+v", f.handoff.events)
	}
	if f.observer.extractions != 1 || f.observer.redactions != 1 || f.observer.classifications != 1 {
		t.Fatalf("observer not notified: %+v", f.observer)
	}

	var progress []int
	for _, call := range f.repo.progress["job-1"] {
		progress = append(progress, call.progress)
	}
	want := []int{ProgressStarted, ProgressExtracted, ProgressRedacted, ProgressClassified, ProgressDone}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress = %v, want %v", progress, want)
		}
	}
	if last := f.repo.lastProgress("job-1"); last.status != domain.StatusDone {
		t.Fatalf("expected DONE, got %+v", last)
	}
}

func TestProcessByIDExtractionFailureStopsBeforeClassification(t *testing.T) {
	f := newProcessFixture(pendingJob(), "\x00\x01\x02", domain.ExtractionResult{
		Method: domain.MethodAllFailed, Error: "all extraction methods failed",
	})

	err := f.uc.ProcessByID(context.Background(), "job-1")
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
	last := f.repo.lastProgress("job-1")
	if last.status != domain.StatusError || last.progress != ProgressDone || last.errMsg != "could not extract text" {
		t.Fatalf("unexpected terminal progress %+v", last)
	}
	if f.redactor.calls != 0 || f.classifier.calls != 0 {
		t.Fatalf("redaction/classification must not run after failed extraction")
	}
	if _, ok := f.repo.classification["job-1"]; ok {
		t.Fatalf("classification must not be saved")
	}
	if _, ok := f.vault.stored["job-1"]; !ok {
		t.Fatalf("original must still be sealed")
	}
	if len(f.handoff.events) != 0 {
		t.Fatalf("failed job must not be handed off")
	}
}

func TestProcessByIDSealFailureMarksError(t *testing.T) {
	f := newProcessFixture(pendingJob(), "text body", domain.ExtractionResult{
		Text: "text body", Method: domain.MethodDirectDecode, Success: true,
	})
	f.vault.err = domain.ErrMissingKey

	err := f.uc.ProcessByID(context.Background(), "job-1")
	if !domain.IsKind(err, domain.ErrMissingKey) {
		t.Fatalf("expected missing key, got %v", err)
	}
	if last := f.repo.lastProgress("job-1"); last.status != domain.StatusError {
		t.Fatalf("expected ERROR, got %+v", last)
	}
	if len(f.storage.deleted) != 0 {
		t.Fatalf("staging copy must survive a failed seal")
	}
}

func TestProcessByIDSkipsTerminalJob(t *testing.T) {
	job := pendingJob()
	job.Status = domain.StatusDone
	f := newProcessFixture(job, "x", domain.ExtractionResult{})

	if err := f.uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.repo.progress["job-1"]) != 0 {
		t.Fatalf("terminal job must not be touched")
	}
}

func TestProcessByIDMissingStagedFile(t *testing.T) {
	f := newProcessFixture(pendingJob(), "", domain.ExtractionResult{})
	delete(f.storage.files, "job-1_affidavit.txt")

	if err := f.uc.ProcessByID(context.Background(), "job-1"); err == nil {
		t.Fatalf("expected error for missing staged upload")
	}
	if last := f.repo.lastProgress("job-1"); last.status != domain.StatusError {
		t.Fatalf("expected ERROR, got %+v", last)
	}
}

func TestProcessByIDHandoffFailureStillCompletes(t *testing.T) {
	f := newProcessFixture(pendingJob(), "body", domain.ExtractionResult{
		Text: "body", Method: domain.MethodDirectDecode, Success: true,
	})
	f.handoff.err = errors.New("nats unavailable")

	if err := f.uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if last := f.repo.lastProgress("job-1"); last.status != domain.StatusDone {
		t.Fatalf("expected DONE, got %+v", last)
	}
}
