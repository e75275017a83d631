package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("REDACTION_INCLUDE_LEGAL", "")
	t.Setenv("RATE_LIMIT_RPS", "")

	cfg := Load()
	if cfg.WorkerConcurrency != 1 {
		t.Fatalf("expected default concurrency 1, got %d", cfg.WorkerConcurrency)
	}
	if cfg.NATSSubject != "documents.batch" {
		t.Fatalf("expected default subject, got %q", cfg.NATSSubject)
	}
	if !cfg.RedactionIncludeLegal {
		t.Fatalf("expected legal detectors enabled by default")
	}
	if cfg.RateLimitRPS != 10 {
		t.Fatalf("expected default rate limit 10, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("OCR_ENABLED", "false")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("TESSERACT_PSM", "not-a-number")

	cfg := Load()
	if cfg.WorkerConcurrency != 4 || cfg.OCREnabled || cfg.RateLimitRPS != 2.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.TesseractPSM != 0 {
		t.Fatalf("invalid int must fall back, got %d", cfg.TesseractPSM)
	}
}

func TestValidateRequiresEncryptionKey(t *testing.T) {
	t.Setenv("DOCUMENT_ENCRYPTION_KEY", "")
	cfg := Load()
	if err := cfg.Validate(); !domain.IsKind(err, domain.ErrMissingKey) {
		t.Fatalf("expected missing key, got %v", err)
	}

	t.Setenv("DOCUMENT_ENCRYPTION_KEY", testHexKey)
	if err := Load().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestDecodeEncryptionKey(t *testing.T) {
	key, err := DecodeEncryptionKey(testHexKey)
	if err != nil || len(key) != 32 || key[31] != 0x1f {
		t.Fatalf("hex key: %v %x", err, key)
	}

	b64 := base64.StdEncoding.EncodeToString(key)
	fromB64, err := DecodeEncryptionKey(b64)
	if err != nil || string(fromB64) != string(key) {
		t.Fatalf("base64 key: %v", err)
	}

	for _, bad := range []string{"abc", strings.Repeat("z", 64), base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := DecodeEncryptionKey(bad); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("DecodeEncryptionKey(%q) expected invalid input, got %v", bad, err)
		}
	}
}

func TestLoadRedactionPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	body := "patterns:\n  - category: BAR_NUMBER\n    pattern: 'Bar No\\. \\d{6}'\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	patterns, err := LoadRedactionPatterns(path)
	if err != nil {
		t.Fatalf("LoadRedactionPatterns() error = %v", err)
	}
	if len(patterns) != 1 || patterns[0].Category != "BAR_NUMBER" || patterns[0].Pattern != `Bar No\. \d{6}` {
		t.Fatalf("unexpected patterns %+v", patterns)
	}

	none, err := LoadRedactionPatterns("")
	if err != nil || none != nil {
		t.Fatalf("empty path must yield nothing, got %v %v", none, err)
	}
}
