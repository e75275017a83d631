// Package encryption seals original document bytes with AES-256-CBC and a
// SHA-256 content hash, and opens or verifies them later.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const (
	KeySize = 32
	IVSize  = aes.BlockSize
)

var (
	errBadPadding    = errors.New("invalid padding")
	errBadBlockShape = errors.New("ciphertext is not a whole number of blocks")
)

// Sealer holds the process-wide key. It is safe for concurrent use: the key
// is never modified after construction.
type Sealer struct {
	block  cipher.Block
	keyID  string
	random io.Reader
	now    func() time.Time
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) == 0 {
		return nil, domain.ErrMissingKey
	}
	if len(key) != KeySize {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new sealer", fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	return &Sealer{
		block:  block,
		keyID:  Fingerprint(key),
		random: rand.Reader,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Fingerprint identifies a key without revealing it, so a wrong key can be
// told apart from a corrupt ciphertext.
func Fingerprint(key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("legal-intake/key-id/v1"))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

func (s *Sealer) KeyID() string { return s.keyID }

func (s *Sealer) Seal(raw []byte, meta domain.SealMetadata) (domain.EncryptedDocument, error) {
	if meta.ContentType == "" {
		meta.ContentType = DetectContentType(raw)
	}
	if meta.UploadedAt.IsZero() {
		meta.UploadedAt = s.now()
	}

	iv, ciphertext, err := s.encrypt(raw)
	if err != nil {
		return domain.EncryptedDocument{}, fmt.Errorf("encrypt content: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return domain.EncryptedDocument{}, fmt.Errorf("encode metadata: %w", err)
	}
	metaIV, metaCiphertext, err := s.encrypt(metaJSON)
	if err != nil {
		return domain.EncryptedDocument{}, fmt.Errorf("encrypt metadata: %w", err)
	}

	return domain.EncryptedDocument{
		Ciphertext:        ciphertext,
		IV:                iv,
		Algorithm:         domain.AlgorithmAES256CBC,
		ContentHash:       ContentHash(raw),
		EncryptedMetadata: metaCiphertext,
		MetadataIV:        metaIV,
		ContentType:       meta.ContentType,
		KeyID:             s.keyID,
		CreatedAt:         s.now(),
	}, nil
}

// Open decrypts content and metadata and checks the content hash.
func (s *Sealer) Open(enc domain.EncryptedDocument) (*domain.DecryptedContent, error) {
	if err := s.checkSealed(enc); err != nil {
		return nil, err
	}

	plain, err := s.decrypt(enc.IV, enc.Ciphertext)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDecryptionFailed, "decrypt content", err)
	}
	if !hashMatches(plain, enc.ContentHash) {
		return nil, domain.WrapError(domain.ErrIntegrityMismatch, "open", fmt.Errorf("content hash differs from %s", enc.ContentHash))
	}

	var meta domain.SealMetadata
	if len(enc.EncryptedMetadata) > 0 {
		metaJSON, err := s.decrypt(enc.MetadataIV, enc.EncryptedMetadata)
		if err != nil {
			return nil, domain.WrapError(domain.ErrDecryptionFailed, "decrypt metadata", err)
		}
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, domain.WrapError(domain.ErrDecryptionFailed, "decode metadata", err)
		}
	}

	out := &domain.DecryptedContent{Data: plain, Metadata: meta}
	if enc.ContentType == domain.ContentText {
		out.IsText = true
		out.Text = string(plain)
	}
	return out, nil
}

// Verify reports whether the stored hash matches the decrypted content.
// Corruption and hash mismatches yield false without an error; only a key
// mismatch or a never-sealed record is an error.
func (s *Sealer) Verify(enc domain.EncryptedDocument) (bool, error) {
	if err := s.checkSealed(enc); err != nil {
		return false, err
	}
	plain, err := s.decrypt(enc.IV, enc.Ciphertext)
	if err != nil {
		return false, nil
	}
	return hashMatches(plain, enc.ContentHash), nil
}

func (s *Sealer) checkSealed(enc domain.EncryptedDocument) error {
	if len(enc.Ciphertext) == 0 && len(enc.IV) == 0 {
		return domain.ErrNotEncrypted
	}
	if enc.Algorithm != "" && enc.Algorithm != domain.AlgorithmAES256CBC {
		return domain.WrapError(domain.ErrDecryptionFailed, "check algorithm", fmt.Errorf("unsupported algorithm %q", enc.Algorithm))
	}
	// Without a key id a wrong key would surface as a bad hash.
	if enc.KeyID == "" {
		return domain.WrapError(domain.ErrDecryptionFailed, "check key", errors.New("record has no key id"))
	}
	if subtle.ConstantTimeCompare([]byte(enc.KeyID), []byte(s.keyID)) != 1 {
		return domain.WrapError(domain.ErrDecryptionFailed, "check key", errors.New("sealed under a different key"))
	}
	return nil
}

func (s *Sealer) encrypt(plain []byte) (iv, ciphertext []byte, err error) {
	iv = make([]byte, IVSize)
	if _, err := io.ReadFull(s.random, iv); err != nil {
		return nil, nil, fmt.Errorf("generate iv: %w", err)
	}
	padded := pad(plain)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

func (s *Sealer) decrypt(iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", IVSize, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errBadBlockShape
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(plain, ciphertext)
	return unpad(plain)
}

// pad applies PKCS#7; empty input becomes one full padding block.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	copy(out[len(b):], bytes.Repeat([]byte{byte(n)}, n))
	return out
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, errBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}

func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashMatches(plain []byte, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(ContentHash(plain)), []byte(stored)) == 1
}

// DetectContentType tags valid UTF-8 without NUL bytes as text.
func DetectContentType(raw []byte) string {
	if utf8.Valid(raw) && bytes.IndexByte(raw, 0) < 0 {
		return domain.ContentText
	}
	return domain.ContentBinary
}
