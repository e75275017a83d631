package classifier

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

type taxonomyFile struct {
	Version int                    `yaml:"version"`
	Entries []domain.TaxonomyEntry `yaml:"entries"`
}

// LoadTaxonomy reads a taxonomy file, or the built-in taxonomy when path is
// empty.
func LoadTaxonomy(path string) ([]domain.TaxonomyEntry, error) {
	if strings.TrimSpace(path) == "" {
		return ParseTaxonomy(defaultTaxonomy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return ParseTaxonomy(data)
}

func DefaultTaxonomy() []domain.TaxonomyEntry {
	entries, err := ParseTaxonomy(defaultTaxonomy)
	if err != nil {
		panic(fmt.Sprintf("built-in taxonomy is invalid: %v", err))
	}
	return entries
}

// ParseTaxonomy decodes YAML, fills rule defaults and validates the result.
func ParseTaxonomy(data []byte) ([]domain.TaxonomyEntry, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if len(file.Entries) == 0 {
		return nil, errors.New("taxonomy has no entries")
	}
	for i := range file.Entries {
		for j := range file.Entries[i].Rules {
			rule := &file.Entries[i].Rules[j]
			if rule.Kind == "" {
				rule.Kind = domain.RuleKeyword
			}
			if rule.AppliesTo == "" {
				rule.AppliesTo = domain.ScopeBoth
			}
		}
	}
	if err := Validate(file.Entries); err != nil {
		return nil, err
	}
	return file.Entries, nil
}

// Validate rejects taxonomies that could never yield a verdict or whose rules
// cannot be compiled.
func Validate(entries []domain.TaxonomyEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.ID) == "" {
			return errors.New("taxonomy entry without id")
		}
		if entry.ID == domain.Undetermined {
			return fmt.Errorf("taxonomy entry id %q is reserved", entry.ID)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("duplicate taxonomy entry %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		if len(entry.Rules) == 0 {
			return fmt.Errorf("taxonomy entry %q has no rules", entry.ID)
		}
		total := 0.0
		for _, rule := range entry.Rules {
			if rule.Weight <= 0 {
				return fmt.Errorf("taxonomy entry %q: rule %q has non-positive weight", entry.ID, rule.Pattern)
			}
			if _, err := compileRule(rule); err != nil {
				return fmt.Errorf("taxonomy entry %q: %w", entry.ID, err)
			}
			total += rule.Weight
		}
		if entry.MinEvidence <= 0 || entry.MinEvidence > total {
			return fmt.Errorf("taxonomy entry %q: min_evidence %.2f outside (0, %.2f]", entry.ID, entry.MinEvidence, total)
		}
	}
	return nil
}

func compileRule(rule domain.EvidenceRule) (*regexp.Regexp, error) {
	pattern := strings.TrimSpace(rule.Pattern)
	if pattern == "" {
		return nil, errors.New("rule with empty pattern")
	}
	switch rule.AppliesTo {
	case domain.ScopeFilename, domain.ScopeContent, domain.ScopeBoth:
	default:
		return nil, fmt.Errorf("rule %q: unknown applies_to %q", pattern, rule.AppliesTo)
	}

	switch rule.Kind {
	case domain.RuleKeyword:
		return regexp.Compile(keywordExpr(pattern))
	case domain.RuleRegex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", pattern, err)
		}
		return re, nil
	default:
		return nil, fmt.Errorf("rule %q: unknown kind %q", pattern, rule.Kind)
	}
}

// keywordExpr matches a literal phrase case-insensitively on word boundaries,
// letting any whitespace run separate its words.
func keywordExpr(keyword string) string {
	words := strings.Fields(strings.ToLower(keyword))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	expr := strings.Join(words, `\s+`)

	first, last := words[0][0], words[len(words)-1][len(words[len(words)-1])-1]
	if isWordByte(first) {
		expr = `\b` + expr
	}
	if isWordByte(last) {
		expr += `\b`
	}
	return "(?i)" + expr
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
