package domain

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusDone       JobStatus = "DONE"
	StatusError      JobStatus = "ERROR"
)

// Document is an uploaded file as received. It is never modified after intake.
type Document struct {
	Filename string
	MimeType string
	Size     int64
	Raw      []byte
}

// Job tracks one document through the intake pipeline.
type Job struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	StorageKey string    `json:"-"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (j *Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

// JobReport is the read model returned to pollers: the job plus whatever
// results the pipeline has persisted so far.
type JobReport struct {
	Job            Job                   `json:"job"`
	Extraction     *ExtractionResult     `json:"extraction,omitempty"`
	Redaction      *RedactionResult      `json:"redaction,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Encrypted      bool                  `json:"encrypted"`
}

// BatchEvent is published once per upload request and consumed by the worker.
type BatchEvent struct {
	BatchID    string    `json:"batch_id"`
	JobIDs     []string  `json:"job_ids"`
	IngestedAt time.Time `json:"ingested_at,omitzero"`
}

type BatchReport struct {
	BatchID   string `json:"batch_id"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// RedactedTextEvent is handed to downstream summarization and search indexing.
type RedactedTextEvent struct {
	JobID        string   `json:"job_id"`
	Filename     string   `json:"filename"`
	Text         string   `json:"text"`
	DocumentType string   `json:"document_type"`
	Chunks       []string `json:"chunks,omitempty"`
}
