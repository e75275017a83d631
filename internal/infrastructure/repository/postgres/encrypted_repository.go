package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// EncryptedDocumentRepository stores sealed originals, one row per job.
type EncryptedDocumentRepository struct {
	db *sql.DB
}

func NewEncryptedDocumentRepository(db *sql.DB) *EncryptedDocumentRepository {
	return &EncryptedDocumentRepository{db: db}
}

func (r *EncryptedDocumentRepository) SaveEncrypted(ctx context.Context, id string, enc domain.EncryptedDocument) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO encrypted_documents (
	job_id, ciphertext, iv, algorithm, content_hash, encrypted_metadata, metadata_iv, content_type, key_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (job_id) DO UPDATE SET
	ciphertext = EXCLUDED.ciphertext, iv = EXCLUDED.iv, algorithm = EXCLUDED.algorithm,
	content_hash = EXCLUDED.content_hash, encrypted_metadata = EXCLUDED.encrypted_metadata,
	metadata_iv = EXCLUDED.metadata_iv, content_type = EXCLUDED.content_type,
	key_id = EXCLUDED.key_id, created_at = EXCLUDED.created_at
`,
		id, enc.Ciphertext, enc.IV, enc.Algorithm, enc.ContentHash, enc.EncryptedMetadata,
		enc.MetadataIV, enc.ContentType, enc.KeyID, enc.CreatedAt,
	)
	return resultWriteError(err, "save encrypted document", id)
}

func (r *EncryptedDocumentRepository) GetEncrypted(ctx context.Context, id string) (*domain.EncryptedDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT ciphertext, iv, algorithm, content_hash, encrypted_metadata, metadata_iv, content_type, key_id, created_at
FROM encrypted_documents
WHERE job_id = $1
`, id)

	var enc domain.EncryptedDocument
	err := row.Scan(
		&enc.Ciphertext, &enc.IV, &enc.Algorithm, &enc.ContentHash, &enc.EncryptedMetadata,
		&enc.MetadataIV, &enc.ContentType, &enc.KeyID, &enc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotEncrypted, "get encrypted document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan encrypted document: %w", err)
	}
	return &enc, nil
}
