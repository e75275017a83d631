package office

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const maxPartSize = 64 << 20

// layout describes how a word-processing XML part maps to plain text.
type layout struct {
	// textElems restricts character data to these elements; empty means all.
	textElems  map[string]bool
	blockElems map[string]bool
	breakElems map[string]bool
	tabElems   map[string]bool
	spaceElems map[string]bool
}

var ooxmlLayout = layout{
	textElems:  map[string]bool{"t": true},
	blockElems: map[string]bool{"p": true},
	breakElems: map[string]bool{"br": true, "cr": true},
	tabElems:   map[string]bool{"tab": true},
}

var odfLayout = layout{
	blockElems: map[string]bool{"p": true, "h": true, "list-item": true},
	breakElems: map[string]bool{"line-break": true},
	tabElems:   map[string]bool{"tab": true},
	spaceElems: map[string]bool{"s": true},
}

func extractDOCX(archive *zip.Reader) (domain.ExtractedText, error) {
	body, err := readPart(archive, "word/document.xml")
	if err != nil {
		return domain.ExtractedText{}, err
	}
	text, err := renderXML(body, ooxmlLayout)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("parse word/document.xml: %w", err)
	}

	out := domain.ExtractedText{Text: text, PageCount: 1}
	if core, err := readPart(archive, "docProps/core.xml"); err == nil {
		out.Metadata = parseProps(core)
	}
	if app, err := readPart(archive, "docProps/app.xml"); err == nil {
		if pages := parsePages(app); pages > 0 {
			out.PageCount = pages
		}
	}
	return out, nil
}

func extractODT(archive *zip.Reader) (domain.ExtractedText, error) {
	body, err := readPart(archive, "content.xml")
	if err != nil {
		return domain.ExtractedText{}, err
	}
	text, err := renderXML(body, odfLayout)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("parse content.xml: %w", err)
	}

	out := domain.ExtractedText{Text: text, PageCount: 1}
	if meta, err := readPart(archive, "meta.xml"); err == nil {
		out.Metadata = parseProps(meta)
	}
	return out, nil
}

func readPart(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxPartSize))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("archive has no %s", name)
}

func renderXML(body []byte, l layout) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.Strict = false

	var b strings.Builder
	depth := 0
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case l.textElems[name]:
				depth++
			case l.breakElems[name]:
				b.WriteByte('\n')
			case l.tabElems[name]:
				b.WriteByte('\t')
			case l.spaceElems[name]:
				b.WriteByte(' ')
			}
		case xml.EndElement:
			name := t.Name.Local
			switch {
			case l.textElems[name]:
				depth--
			case l.blockElems[name]:
				b.WriteByte('\n')
			}
		case xml.CharData:
			if len(l.textElems) == 0 || depth > 0 {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// parseProps reads OOXML core properties and ODF meta.xml alike by local
// element name.
func parseProps(body []byte) domain.DocumentMetadata {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.Strict = false

	var meta domain.DocumentMetadata
	var current string
	for {
		tok, err := decoder.Token()
		if err != nil {
			return meta
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.EndElement:
			current = ""
		case xml.CharData:
			value := strings.TrimSpace(string(t))
			if value == "" {
				continue
			}
			switch current {
			case "title":
				meta.Title = value
			case "creator", "initial-creator":
				if meta.Author == "" {
					meta.Author = value
				}
			case "created", "creation-date":
				meta.Created = parseW3CDate(value)
			case "modified", "date":
				meta.Modified = parseW3CDate(value)
			}
		}
	}
}

func parsePages(body []byte) int {
	var app struct {
		Pages string `xml:"Pages"`
	}
	if err := xml.Unmarshal(body, &app); err != nil {
		return 0
	}
	pages, err := strconv.Atoi(strings.TrimSpace(app.Pages))
	if err != nil {
		return 0
	}
	return pages
}

func parseW3CDate(value string) *time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
