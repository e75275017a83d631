package domain

import "time"

// Extraction method identifiers credited on ExtractionResult.Method.
const (
	MethodPDFParse      = "pdf-parse"
	MethodHeuristicScan = "heuristic-scan"
	MethodOfficeParse   = "office-parse"
	MethodOCR           = "ocr"
	MethodHTMLParse     = "html-parse"
	MethodDirectDecode  = "direct-decode"
	MethodAllFailed     = "all-methods-failed"
)

type DocumentMetadata struct {
	Title    string     `json:"title,omitempty"`
	Author   string     `json:"author,omitempty"`
	Created  *time.Time `json:"created,omitempty"`
	Modified *time.Time `json:"modified,omitempty"`
}

func (m DocumentMetadata) IsZero() bool {
	return m.Title == "" && m.Author == "" && m.Created == nil && m.Modified == nil
}

// ExtractedText is the raw output of a single extraction strategy.
type ExtractedText struct {
	Text      string
	PageCount int
	Metadata  DocumentMetadata
}

type ExtractionAttempt struct {
	Method string `json:"method"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

type ExtractionResult struct {
	Text      string              `json:"text"`
	PageCount int                 `json:"page_count"`
	Method    string              `json:"method"`
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
	Metadata  *DocumentMetadata   `json:"metadata,omitempty"`
	Attempts  []ExtractionAttempt `json:"attempts,omitempty"`
}
