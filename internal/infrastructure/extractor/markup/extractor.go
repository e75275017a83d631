// Package markup renders HTML documents to readable text.
package markup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/plaintext"
)

var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Template: true, atom.Svg: true, atom.Head: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Section: true, atom.Article: true, atom.Blockquote: true,
	atom.Pre: true, atom.Hr: true, atom.Ul: true, atom.Ol: true, atom.Header: true,
	atom.Footer: true, atom.Title: true,
}

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) Name() string { return domain.MethodHTMLParse }

func (e *Extractor) Extract(ctx context.Context, raw []byte) (domain.ExtractedText, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractedText{}, err
	}
	source, err := plaintext.Decode(raw)
	if err != nil {
		return domain.ExtractedText{}, err
	}
	tokenizer := html.NewTokenizer(strings.NewReader(source))

	var (
		b       strings.Builder
		meta    domain.DocumentMetadata
		skip    int
		inTitle bool
		title   bytes.Buffer
	)
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if err := tokenizer.Err(); !errors.Is(err, io.EOF) {
				return domain.ExtractedText{}, err
			}
			text := tidy(b.String())
			if text == "" {
				return domain.ExtractedText{}, errors.New("html has no visible text")
			}
			meta.Title = strings.TrimSpace(title.String())
			return domain.ExtractedText{Text: text, PageCount: 1, Metadata: meta}, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tokenizer.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = true
			case tok.DataAtom == atom.Meta:
				readMeta(tok, &meta)
			case skipped[tok.DataAtom] && tt == html.StartTagToken:
				skip++
			}
			if blocks[tok.DataAtom] {
				b.WriteByte('\n')
			}
			if tok.DataAtom == atom.Td || tok.DataAtom == atom.Th {
				b.WriteByte('\t')
			}
		case html.EndTagToken:
			tok := tokenizer.Token()
			if tok.DataAtom == atom.Title {
				inTitle = false
			}
			if skipped[tok.DataAtom] && skip > 0 {
				skip--
			}
			if blocks[tok.DataAtom] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			data := string(tokenizer.Text())
			if inTitle {
				title.WriteString(data)
				continue
			}
			if skip > 0 {
				continue
			}
			b.WriteString(data)
		}
	}
}

func readMeta(tok html.Token, meta *domain.DocumentMetadata) {
	var name, content string
	for _, attr := range tok.Attr {
		switch strings.ToLower(attr.Key) {
		case "name":
			name = strings.ToLower(attr.Val)
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}
	if name == "author" && content != "" {
		meta.Author = content
	}
}

// tidy collapses horizontal whitespace and runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
