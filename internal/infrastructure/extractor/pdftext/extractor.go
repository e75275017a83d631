// Package pdftext reads the text layer of a PDF with ledongthuc/pdf.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type Extractor struct {
	maxPages int
}

// NewExtractor returns a structured PDF parser; maxPages <= 0 reads every page.
func NewExtractor(maxPages int) *Extractor {
	return &Extractor{maxPages: maxPages}
}

func (e *Extractor) Name() string { return domain.MethodPDFParse }

func (e *Extractor) Extract(ctx context.Context, raw []byte) (out domain.ExtractedText, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			out = domain.ExtractedText{}
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	if len(raw) == 0 {
		return domain.ExtractedText{}, errors.New("empty document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	if pages <= 0 {
		return domain.ExtractedText{}, errors.New("pdf has no pages")
	}
	limit := pages
	if e.maxPages > 0 && limit > e.maxPages {
		limit = e.maxPages
	}

	var b strings.Builder
	var pageErrs int
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedText{}, err
		}
		text, err := pageText(reader, i)
		if err != nil {
			pageErrs++
			continue
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	if b.Len() == 0 {
		return domain.ExtractedText{}, fmt.Errorf("no text layer in %d pages (%d unreadable)", limit, pageErrs)
	}

	return domain.ExtractedText{
		Text:      b.String(),
		PageCount: pages,
		Metadata:  readInfo(reader),
	}, nil
}

func pageText(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()
	page := reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func readInfo(reader *pdf.Reader) (meta domain.DocumentMetadata) {
	defer func() {
		if recover() != nil {
			meta = domain.DocumentMetadata{}
		}
	}()
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	meta.Title = strings.TrimSpace(info.Key("Title").Text())
	meta.Author = strings.TrimSpace(info.Key("Author").Text())
	meta.Created = parseDate(info.Key("CreationDate").Text())
	meta.Modified = parseDate(info.Key("ModDate").Text())
	return meta
}

// parseDate handles the "D:YYYYMMDDHHmmSS" form, ignoring the zone suffix.
func parseDate(raw string) *time.Time {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "D:")
	if len(raw) < 8 {
		return nil
	}
	layouts := []struct {
		n      int
		layout string
	}{
		{14, "20060102150405"},
		{12, "200601021504"},
		{8, "20060102"},
	}
	for _, l := range layouts {
		if len(raw) < l.n {
			continue
		}
		if t, err := time.Parse(l.layout, raw[:l.n]); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
