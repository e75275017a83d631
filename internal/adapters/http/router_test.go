package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

type ingestFake struct {
	err     error
	uploads []ports.Upload
	bodies  []string
}

func (f *ingestFake) UploadBatch(_ context.Context, uploads []ports.Upload) (string, []domain.Job, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	f.uploads = uploads
	jobs := make([]domain.Job, 0, len(uploads))
	for i, u := range uploads {
		raw, err := io.ReadAll(u.Body)
		if err != nil {
			return "", nil, err
		}
		f.bodies = append(f.bodies, string(raw))
		jobs = append(jobs, domain.Job{
			ID:       string(rune('a' + i)),
			BatchID:  "batch-1",
			FileName: u.Filename,
			MimeType: u.MimeType,
			FileSize: int64(len(raw)),
			Status:   domain.StatusPending,
		})
	}
	return "batch-1", jobs, nil
}

type jobsFake struct {
	report  *domain.JobReport
	err     error
	deleted []string
}

func (f *jobsFake) GetReport(context.Context, string) (*domain.JobReport, error) {
	return f.report, f.err
}

func (f *jobsFake) DeleteJob(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type vaultFake struct {
	content  *domain.DecryptedContent
	verified bool
	err      error
}

func (f vaultFake) StoreEncryptedDocument(context.Context, string, []byte, domain.SealMetadata) error {
	return nil
}

func (f vaultFake) GetDecryptedContent(context.Context, string) (*domain.DecryptedContent, error) {
	return f.content, f.err
}

func (f vaultFake) VerifyIntegrity(context.Context, string) (bool, error) {
	return f.verified, f.err
}

func testConfig() config.Config {
	return config.Config{MaxUploadBytes: 1 << 20, MaxFilesPerRequest: 3}
}

func newTestHandler(cfg config.Config, ingest *ingestFake, jobs *jobsFake, vault vaultFake) http.Handler {
	return NewRouter(cfg, ingest, jobs, vault, metrics.NewHTTPServerMetrics(serviceName), nil).Handler()
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(testConfig(), &ingestFake{}, &jobsFake{}, vaultFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestUploadDocumentsAcceptsBatch(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestHandler(testConfig(), ingest, &jobsFake{}, vaultFake{})

	body, contentType := multipartBody(t, map[string]string{"nta.pdf": "%PDF-1.7", "notes.txt": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BatchID != "batch-1" || len(resp.Jobs) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	for _, u := range ingest.uploads {
		if strings.HasSuffix(u.Filename, ".pdf") && u.MimeType != "application/pdf" {
			t.Fatalf("mime type not resolved from extension: %q", u.MimeType)
		}
	}
}

func TestUploadDocumentsMissingMultipartField(t *testing.T) {
	handler := newTestHandler(testConfig(), &ingestFake{}, &jobsFake{}, vaultFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentsRejectsTooManyFiles(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFilesPerRequest = 1
	handler := newTestHandler(cfg, &ingestFake{}, &jobsFake{}, vaultFake{})

	body, contentType := multipartBody(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentsRejectsOversizedBody(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 1024
	handler := newTestHandler(cfg, &ingestFake{}, &jobsFake{}, vaultFake{})

	body, contentType := multipartBody(t, map[string]string{"big.txt": strings.Repeat("x", 4096)})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestGetJobReturnsReport(t *testing.T) {
	jobs := &jobsFake{report: &domain.JobReport{
		Job:            domain.Job{ID: "job-1", Status: domain.StatusDone, Progress: 100},
		Classification: &domain.ClassificationResult{DocumentType: "notice-to-appear", Evidence: []string{}},
		Encrypted:      true,
	}}
	handler := newTestHandler(testConfig(), &ingestFake{}, jobs, vaultFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var report domain.JobReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Job.ID != "job-1" || report.Classification.DocumentType != "notice-to-appear" || !report.Encrypted {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestDeleteJob(t *testing.T) {
	jobs := &jobsFake{}
	handler := newTestHandler(testConfig(), &ingestFake{}, jobs, vaultFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/jobs/job-9", nil))

	if res.Code != http.StatusNoContent || len(jobs.deleted) != 1 || jobs.deleted[0] != "job-9" {
		t.Fatalf("expected 204 and deletion, got %d %v", res.Code, jobs.deleted)
	}
}

func TestGetContentReturnsOriginalBytes(t *testing.T) {
	vault := vaultFake{content: &domain.DecryptedContent{
		Data:     []byte("sworn text"),
		Text:     "sworn text",
		IsText:   true,
		Metadata: domain.SealMetadata{Filename: "affidavit.txt", MimeType: "text/plain"},
	}}
	handler := newTestHandler(testConfig(), &ingestFake{}, &jobsFake{}, vault)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1/content", nil))

	if res.Code != http.StatusOK || res.Body.String() != "sworn text" {
		t.Fatalf("unexpected response %d %q", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	if res.Header().Get(integrityHeader) != integrityVerified {
		t.Fatalf("missing integrity header")
	}
}

func TestVerifyIntegrityReportsResult(t *testing.T) {
	handler := newTestHandler(testConfig(), &ingestFake{}, &jobsFake{}, vaultFake{verified: false})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1/integrity", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp integrityResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID != "job-1" || resp.Verified {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		path string
		want int
	}{
		{"not found", domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id")), "/v1/jobs/x", http.StatusNotFound},
		{"never encrypted", domain.WrapError(domain.ErrNotEncrypted, "get", errors.New("id")), "/v1/jobs/x/content", http.StatusNotFound},
		{"tampered", domain.WrapError(domain.ErrIntegrityMismatch, "open", errors.New("hash")), "/v1/jobs/x/content", http.StatusConflict},
		{"wrong key", domain.WrapError(domain.ErrDecryptionFailed, "open", errors.New("key")), "/v1/jobs/x/integrity", http.StatusInternalServerError},
		{"temporary", domain.WrapError(domain.ErrTemporary, "get", errors.New("db")), "/v1/jobs/x", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		handler := newTestHandler(testConfig(), &ingestFake{}, &jobsFake{err: tc.err}, vaultFake{err: tc.err})
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if res.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, res.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if resp.RequestID == "" {
			t.Fatalf("%s: expected request id in error body", tc.name)
		}
		if tc.want == http.StatusInternalServerError && strings.Contains(resp.Error, "key") {
			t.Fatalf("%s: internal details leaked: %q", tc.name, resp.Error)
		}
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	handler := newTestHandler(cfg, &ingestFake{}, &jobsFake{report: &domain.JobReport{}}, vaultFake{})

	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, httptest.NewRequest(http.MethodGet, "/v1/jobs/a", nil))
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/jobs/a", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}

	res3 := httptest.NewRecorder()
	handler.ServeHTTP(res3, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res3.Code != http.StatusOK {
		t.Fatalf("probes must bypass the limiter, got %d", res3.Code)
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/jobs/a", nil))
		done <- res.Code
	}()

	<-started

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/jobs/a", nil))
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}
