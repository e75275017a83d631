package plaintext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Extractor decodes bytes directly as text. Invalid UTF-8 is read as
// Windows-1252, which never fails and keeps Latin-1 legal text readable.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string { return domain.MethodDirectDecode }

func (e *Extractor) Extract(_ context.Context, raw []byte) (domain.ExtractedText, error) {
	if len(raw) == 0 {
		return domain.ExtractedText{}, errors.New("empty document")
	}

	text, err := Decode(raw)
	if err != nil {
		return domain.ExtractedText{}, err
	}

	text = strings.TrimSpace(stripControl(text))
	if text == "" {
		return domain.ExtractedText{}, errors.New("no printable text")
	}
	return domain.ExtractedText{Text: text, PageCount: 1}, nil
}

// Decode converts raw bytes to a UTF-8 string.
func Decode(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return string(raw[len(bomUTF8):]), nil
	case bytes.HasPrefix(raw, bomUTF16LE):
		return decodeWith(xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM), raw)
	case bytes.HasPrefix(raw, bomUTF16BE):
		return decodeWith(xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM), raw)
	case utf8.Valid(raw):
		return string(raw), nil
	default:
		return decodeWith(charmap.Windows1252, raw)
	}
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

func stripControl(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case unicode.IsControl(r) || r == utf8.RuneError:
			return -1
		default:
			return r
		}
	}, s)
}
