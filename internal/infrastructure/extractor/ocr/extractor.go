// Package ocr recognizes text in raster images with an external tesseract
// binary.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type Config struct {
	Binary      string
	Lang        string
	TessdataDir string
	PSM         int
	// Timeout bounds a single tesseract invocation.
	Timeout time.Duration
}

var (
	boxNoiseRe   = regexp.MustCompile(`(?m)^[ \t|_\-=~]{3,}$`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

type Extractor struct {
	cfg    Config
	runner Runner
}

func NewExtractor(cfg Config, runner Runner) *Extractor {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if runner == nil {
		runner = NewExecRunner(nil)
	}
	return &Extractor{cfg: cfg, runner: runner}
}

func (e *Extractor) Name() string { return domain.MethodOCR }

func (e *Extractor) Extract(ctx context.Context, raw []byte) (domain.ExtractedText, error) {
	if len(raw) == 0 {
		return domain.ExtractedText{}, errors.New("empty image")
	}

	tmp, err := os.CreateTemp("", "intake-ocr-*"+imageExtension(raw))
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return domain.ExtractedText{}, fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.ExtractedText{}, fmt.Errorf("close temp image: %w", err)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// tesseract <file> stdout -l <lang>
	args := []string{tmp.Name(), "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg != "" {
			return domain.ExtractedText{}, fmt.Errorf("tesseract: %w: %s", err, truncate(msg, 512))
		}
		return domain.ExtractedText{}, fmt.Errorf("tesseract: %w", err)
	}

	return domain.ExtractedText{Text: normalize(string(out)), PageCount: 1}, nil
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	s = boxNoiseRe.ReplaceAllString(s, "")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func imageExtension(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, []byte("\x89PNG")):
		return ".png"
	case bytes.HasPrefix(raw, []byte("\xFF\xD8\xFF")):
		return ".jpg"
	case bytes.HasPrefix(raw, []byte("GIF8")):
		return ".gif"
	case bytes.HasPrefix(raw, []byte("II*\x00")), bytes.HasPrefix(raw, []byte("MM\x00*")):
		return ".tif"
	case bytes.HasPrefix(raw, []byte("BM")):
		return ".bmp"
	case len(raw) > 12 && bytes.Equal(raw[8:12], []byte("WEBP")):
		return ".webp"
	}
	return ".img"
}
