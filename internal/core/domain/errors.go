package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
	ErrExtractionFailed  = errors.New("could not extract text")
	ErrNotEncrypted      = errors.New("document was never encrypted")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrIntegrityMismatch = errors.New("integrity verification failed")
	ErrMissingKey        = errors.New("encryption key is not configured")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
