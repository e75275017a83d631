package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO jobs (
	id, batch_id, file_name, mime_type, file_size, storage_key, status, progress, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		job.ID, job.BatchID, job.FileName, job.MimeType, job.FileSize, job.StorageKey,
		string(job.Status), job.Progress, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, batch_id, file_name, mime_type, file_size, storage_key, status, progress, error_message, created_at, updated_at
FROM jobs
WHERE id = $1
`, id)

	var job domain.Job
	var status string
	err := row.Scan(
		&job.ID, &job.BatchID, &job.FileName, &job.MimeType, &job.FileSize, &job.StorageKey,
		&status, &job.Progress, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id string, status domain.JobStatus, progress int, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status = $2, progress = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), progress, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return requireAffected(res, "update job progress", id)
}

func (r *JobRepository) SaveExtraction(ctx context.Context, id string, result domain.ExtractionResult) error {
	var metadataJSON []byte
	if result.Metadata != nil {
		raw, err := json.Marshal(result.Metadata)
		if err != nil {
			return fmt.Errorf("marshal extraction metadata: %w", err)
		}
		metadataJSON = raw
	}
	attempts := result.Attempts
	if attempts == nil {
		attempts = []domain.ExtractionAttempt{}
	}
	attemptsJSON, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("marshal extraction attempts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extraction_results (job_id, text, page_count, method, success, error_message, metadata, attempts, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (job_id) DO UPDATE SET
	text = EXCLUDED.text, page_count = EXCLUDED.page_count, method = EXCLUDED.method,
	success = EXCLUDED.success, error_message = EXCLUDED.error_message,
	metadata = EXCLUDED.metadata, attempts = EXCLUDED.attempts, created_at = EXCLUDED.created_at
`, id, result.Text, result.PageCount, result.Method, result.Success, result.Error, metadataJSON, attemptsJSON, time.Now().UTC())
	return resultWriteError(err, "save extraction", id)
}

func (r *JobRepository) SaveRedaction(ctx context.Context, id string, result domain.RedactionResult) error {
	items := result.Items
	if items == nil {
		items = []domain.RedactedItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal redacted items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO redaction_results (job_id, redacted_content, items, summary, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (job_id) DO UPDATE SET
	redacted_content = EXCLUDED.redacted_content, items = EXCLUDED.items,
	summary = EXCLUDED.summary, created_at = EXCLUDED.created_at
`, id, result.RedactedContent, itemsJSON, result.Summary, time.Now().UTC())
	return resultWriteError(err, "save redaction", id)
}

func (r *JobRepository) SaveClassification(ctx context.Context, id string, result domain.ClassificationResult) error {
	evidence := result.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO classification_results (job_id, document_type, confidence, evidence, reasoning, taxonomy_category, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (job_id) DO UPDATE SET
	document_type = EXCLUDED.document_type, confidence = EXCLUDED.confidence,
	evidence = EXCLUDED.evidence, reasoning = EXCLUDED.reasoning,
	taxonomy_category = EXCLUDED.taxonomy_category, created_at = EXCLUDED.created_at
`, id, result.DocumentType, result.Confidence, evidenceJSON, result.Reasoning, result.TaxonomyCategory, time.Now().UTC())
	return resultWriteError(err, "save classification", id)
}

// GetReport assembles the job with whichever stage results exist so far.
func (r *JobRepository) GetReport(ctx context.Context, id string) (*domain.JobReport, error) {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	report := &domain.JobReport{Job: *job}

	if report.Extraction, err = r.getExtraction(ctx, id); err != nil {
		return nil, err
	}
	if report.Redaction, err = r.getRedaction(ctx, id); err != nil {
		return nil, err
	}
	if report.Classification, err = r.getClassification(ctx, id); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM encrypted_documents WHERE job_id = $1)`, id)
	if err := row.Scan(&report.Encrypted); err != nil {
		return nil, fmt.Errorf("check encrypted document: %w", err)
	}
	return report, nil
}

func (r *JobRepository) getExtraction(ctx context.Context, id string) (*domain.ExtractionResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT text, page_count, method, success, error_message, metadata, attempts
FROM extraction_results
WHERE job_id = $1
`, id)

	var out domain.ExtractionResult
	var metadataRaw, attemptsRaw []byte
	err := row.Scan(&out.Text, &out.PageCount, &out.Method, &out.Success, &out.Error, &metadataRaw, &attemptsRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan extraction: %w", err)
	}
	if len(metadataRaw) > 0 {
		var meta domain.DocumentMetadata
		if err := json.Unmarshal(metadataRaw, &meta); err != nil {
			return nil, fmt.Errorf("unmarshal extraction metadata: %w", err)
		}
		out.Metadata = &meta
	}
	if len(attemptsRaw) > 0 {
		if err := json.Unmarshal(attemptsRaw, &out.Attempts); err != nil {
			return nil, fmt.Errorf("unmarshal extraction attempts: %w", err)
		}
	}
	return &out, nil
}

func (r *JobRepository) getRedaction(ctx context.Context, id string) (*domain.RedactionResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT redacted_content, items, summary
FROM redaction_results
WHERE job_id = $1
`, id)

	var out domain.RedactionResult
	var itemsRaw []byte
	if err := row.Scan(&out.RedactedContent, &itemsRaw, &out.Summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan redaction: %w", err)
	}
	if err := json.Unmarshal(itemsRaw, &out.Items); err != nil {
		return nil, fmt.Errorf("unmarshal redacted items: %w", err)
	}
	return &out, nil
}

func (r *JobRepository) getClassification(ctx context.Context, id string) (*domain.ClassificationResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_type, confidence, evidence, reasoning, taxonomy_category
FROM classification_results
WHERE job_id = $1
`, id)

	var out domain.ClassificationResult
	var evidenceRaw []byte
	if err := row.Scan(&out.DocumentType, &out.Confidence, &evidenceRaw, &out.Reasoning, &out.TaxonomyCategory); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan classification: %w", err)
	}
	if err := json.Unmarshal(evidenceRaw, &out.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return &out, nil
}

// Delete removes the job; linked results go with it through the cascade.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return requireAffected(res, "delete job", id)
}

func requireAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}

func resultWriteError(err error, op, id string) error {
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return fmt.Errorf("%s: %w", op, err)
}
