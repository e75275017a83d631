package domain

import "time"

const AlgorithmAES256CBC = "AES-256-CBC"

const (
	ContentText   = "text"
	ContentBinary = "binary"
)

// SealMetadata travels encrypted next to the ciphertext.
type SealMetadata struct {
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ContentType string    `json:"content_type"`
}

type EncryptedDocument struct {
	Ciphertext        []byte    `json:"-"`
	IV                []byte    `json:"-"`
	Algorithm         string    `json:"algorithm"`
	ContentHash       string    `json:"content_hash"`
	EncryptedMetadata []byte    `json:"-"`
	MetadataIV        []byte    `json:"-"`
	ContentType       string    `json:"content_type"`
	KeyID             string    `json:"key_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type DecryptedContent struct {
	Data     []byte
	Text     string
	IsText   bool
	Metadata SealMetadata
}
