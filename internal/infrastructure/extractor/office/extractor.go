// Package office extracts text from word-processing, spreadsheet and rich
// text containers. The concrete format is sniffed from the bytes, so a
// mislabelled upload still reaches the right parser.
package office

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type format string

const (
	formatDOCX    format = "docx"
	formatODT     format = "odt"
	formatXLSX    format = "xlsx"
	formatRTF     format = "rtf"
	formatWordBin format = "msword"
)

var oleHeader = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var errUnknownFormat = errors.New("unrecognized office container")

type Extractor struct {
	maxSheetRows int
}

// NewExtractor limits spreadsheet parsing to maxSheetRows rows per sheet;
// zero means unlimited.
func NewExtractor(maxSheetRows int) *Extractor {
	return &Extractor{maxSheetRows: maxSheetRows}
}

func (e *Extractor) Name() string { return domain.MethodOfficeParse }

func (e *Extractor) Extract(ctx context.Context, raw []byte) (domain.ExtractedText, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractedText{}, err
	}
	kind, archive, err := sniff(raw)
	if err != nil {
		return domain.ExtractedText{}, err
	}

	switch kind {
	case formatDOCX:
		return extractDOCX(archive)
	case formatODT:
		return extractODT(archive)
	case formatXLSX:
		return extractXLSX(raw, e.maxSheetRows)
	case formatRTF:
		return extractRTF(raw)
	case formatWordBin:
		return extractWordBinary(raw)
	default:
		return domain.ExtractedText{}, errUnknownFormat
	}
}

func sniff(raw []byte) (format, *zip.Reader, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n\xef\xbb\xbf")
	switch {
	case bytes.HasPrefix(trimmed, []byte(`{\rtf`)):
		return formatRTF, nil, nil
	case bytes.HasPrefix(raw, oleHeader):
		return formatWordBin, nil, nil
	case bytes.HasPrefix(raw, []byte("PK\x03\x04")):
	default:
		return "", nil, errUnknownFormat
	}

	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", nil, fmt.Errorf("open archive: %w", err)
	}
	names := make(map[string]struct{}, len(archive.File))
	for _, f := range archive.File {
		names[f.Name] = struct{}{}
	}
	switch {
	case has(names, "word/document.xml"):
		return formatDOCX, archive, nil
	case has(names, "xl/workbook.xml"):
		return formatXLSX, archive, nil
	case has(names, "content.xml"):
		return formatODT, archive, nil
	}
	return "", nil, errUnknownFormat
}

func has(names map[string]struct{}, name string) bool {
	_, ok := names[name]
	return ok
}
