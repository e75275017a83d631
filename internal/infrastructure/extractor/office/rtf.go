package office

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// Destinations whose content is never body text.
var skippedDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "footer": true, "listtable": true,
	"listoverridetable": true, "rsidtbl": true, "generator": true,
	"themedata": true, "colorschememapping": true, "latentstyles": true,
	"datastore": true, "xmlnstbl": true,
}

type rtfGroup struct {
	skip   bool
	ucSkip int
}

func extractRTF(raw []byte) (domain.ExtractedText, error) {
	text := stripRTF(string(raw))
	if strings.TrimSpace(text) == "" {
		return domain.ExtractedText{}, errors.New("rtf has no body text")
	}
	return domain.ExtractedText{Text: text, PageCount: 1}, nil
}

// stripRTF walks control words and groups, keeping body text only.
func stripRTF(src string) string {
	var b strings.Builder
	stack := []rtfGroup{{ucSkip: 1}}
	pendingSkip := 0
	decoder := charmap.Windows1252

	top := func() *rtfGroup { return &stack[len(stack)-1] }
	emit := func(s string) {
		if pendingSkip > 0 {
			pendingSkip--
			return
		}
		if !top().skip {
			b.WriteString(s)
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '{':
			stack = append(stack, *top())
		case '}':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case '\r', '\n':
		case '\\':
			if i+1 >= len(src) {
				continue
			}
			next := src[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				emit(string(next))
				i++
			case next == '*':
				top().skip = true
				i++
			case next == '~':
				emit(" ")
				i++
			case next == '\'' && i+3 < len(src):
				if v, err := strconv.ParseUint(src[i+2:i+4], 16, 8); err == nil {
					emit(string(decoder.DecodeByte(byte(v))))
				}
				i += 3
			case isLetter(next):
				j := i + 1
				for j < len(src) && isLetter(src[j]) {
					j++
				}
				word := src[i+1 : j]
				k := j
				if k < len(src) && (src[k] == '-' || isDigit(src[k])) {
					k++
					for k < len(src) && isDigit(src[k]) {
						k++
					}
				}
				param := src[j:k]
				if k < len(src) && src[k] == ' ' {
					k++
				}
				i = k - 1
				pendingSkip = applyControl(word, param, top(), &b, emit, pendingSkip)
			default:
				i++
			}
		default:
			emit(string(c))
		}
	}
	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func applyControl(word, param string, g *rtfGroup, b *strings.Builder, emit func(string), pendingSkip int) int {
	if skippedDestinations[word] {
		g.skip = true
		return pendingSkip
	}
	switch word {
	case "par", "line", "sect", "page", "row":
		emit("\n")
	case "tab", "cell":
		emit("\t")
	case "uc":
		if n, err := strconv.Atoi(param); err == nil && n >= 0 {
			g.ucSkip = n
		}
	case "u":
		n, err := strconv.Atoi(param)
		if err != nil {
			return pendingSkip
		}
		if n < 0 {
			n += 65536
		}
		if !g.skip {
			r := rune(n)
			if utf16.IsSurrogate(r) {
				r = '�'
			}
			b.WriteRune(r)
		}
		return g.ucSkip
	}
	return pendingSkip
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
