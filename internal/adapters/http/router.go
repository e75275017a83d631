package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

const (
	serviceName         = "intake-api"
	multipartMemoryMax  = 32 << 20
	defaultUploadMime   = "application/octet-stream"
	integrityHeader     = "X-Content-Integrity"
	integrityVerified   = "verified"
	contentDispositionF = "attachment; filename=%q"
)

// JobService is what the router needs from job state handling.
type JobService interface {
	ports.JobReader
	ports.JobDeleter
}

type Router struct {
	cfg     config.Config
	ingest  ports.DocumentIngestor
	jobs    JobService
	vault   ports.DocumentVault
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	jobs JobService,
	vault ports.DocumentVault,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:     cfg,
		ingest:  ingest,
		jobs:    jobs,
		vault:   vault,
		metrics: httpMetrics,
		logger:  logger,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type uploadResponse struct {
	BatchID string       `json:"batch_id"`
	Jobs    []domain.Job `json:"jobs"`
}

type integrityResponse struct {
	JobID    string `json:"job_id"`
	Verified bool   `json:"verified"`
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocuments)
	mux.HandleFunc("GET /v1/jobs/{id}", rt.getJob)
	mux.HandleFunc("DELETE /v1/jobs/{id}", rt.deleteJob)
	mux.HandleFunc("GET /v1/jobs/{id}/content", rt.getContent)
	mux.HandleFunc("GET /v1/jobs/{id}/integrity", rt.verifyIntegrity)

	var handler http.Handler = mux
	var onLimited func()
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
		onLimited = func() { rt.metrics.RecordRateLimited(serviceName) }
	}
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, time.Duration(rt.cfg.InFlightWaitMillis)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, onLimited)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryMax); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			rt.writeError(w, r, err)
			return
		}
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse upload", errors.New("multipart body with 'file' parts is required")))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse upload", errors.New("multipart field 'file' is required")))
		return
	}
	if rt.cfg.MaxFilesPerRequest > 0 && len(headers) > rt.cfg.MaxFilesPerRequest {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse upload",
			fmt.Errorf("at most %d files per request", rt.cfg.MaxFilesPerRequest)))
		return
	}

	uploads := make([]ports.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			rt.writeError(w, r, fmt.Errorf("open multipart file: %w", err))
			return
		}
		files = append(files, f)
		uploads = append(uploads, ports.Upload{
			Filename: header.Filename,
			MimeType: uploadMimeType(header),
			Body:     f,
		})
	}

	batchID, jobs, err := rt.ingest.UploadBatch(r.Context(), uploads)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		sizes := make([]int64, 0, len(jobs))
		for _, job := range jobs {
			sizes = append(sizes, job.FileSize)
		}
		rt.metrics.RecordUpload(serviceName, sizes)
	}
	writeJSON(w, http.StatusAccepted, uploadResponse{BatchID: batchID, Jobs: jobs})
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	report, err := rt.jobs.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := rt.jobs.DeleteJob(r.Context(), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getContent(w http.ResponseWriter, r *http.Request) {
	content, err := rt.vault.GetDecryptedContent(r.Context(), r.PathValue("id"))
	rt.recordVault("decrypt", err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	contentType := content.Metadata.MimeType
	if contentType == "" {
		contentType = defaultUploadMime
	}
	if content.IsText && !strings.Contains(contentType, "charset") && strings.HasPrefix(contentType, "text/") {
		contentType += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	if content.Metadata.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(contentDispositionF, filepath.Base(content.Metadata.Filename)))
	}
	w.Header().Set(integrityHeader, integrityVerified)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Data)
}

func (rt *Router) verifyIntegrity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := rt.vault.VerifyIntegrity(r.Context(), id)
	rt.recordVault("verify", err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, integrityResponse{JobID: id, Verified: ok})
}

func (rt *Router) recordVault(operation string, err error) {
	if rt.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case domain.IsKind(err, domain.ErrNotEncrypted):
		outcome = "not_encrypted"
	case domain.IsKind(err, domain.ErrIntegrityMismatch):
		outcome = "integrity_mismatch"
	case domain.IsKind(err, domain.ErrDecryptionFailed):
		outcome = "decryption_failed"
	default:
		outcome = "error"
	}
	rt.metrics.RecordVaultAccess(serviceName, operation, outcome)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{
		Error:     publicMessage(status, err),
		RequestID: requestIDFromContext(r.Context()),
	})
}

func uploadMimeType(header *multipart.FileHeader) string {
	declared := strings.TrimSpace(header.Header.Get("Content-Type"))
	if declared != "" && declared != defaultUploadMime {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
		return byExt
	}
	if declared != "" {
		return declared
	}
	return defaultUploadMime
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
