package domain

const Undetermined = "undetermined"

type RuleScope string

const (
	ScopeFilename RuleScope = "filename"
	ScopeContent  RuleScope = "content"
	ScopeBoth     RuleScope = "both"
)

type RuleKind string

const (
	RuleKeyword RuleKind = "keyword"
	RuleRegex   RuleKind = "regex"
)

type EvidenceRule struct {
	Pattern     string    `json:"pattern" yaml:"pattern"`
	Kind        RuleKind  `json:"kind" yaml:"kind"`
	Weight      float64   `json:"weight" yaml:"weight"`
	AppliesTo   RuleScope `json:"applies_to" yaml:"applies_to"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

type TaxonomyEntry struct {
	ID          string         `json:"id" yaml:"id"`
	Category    string         `json:"category" yaml:"category"`
	MinEvidence float64        `json:"min_evidence" yaml:"min_evidence"`
	Rules       []EvidenceRule `json:"rules" yaml:"rules"`
}

type ClassificationResult struct {
	DocumentType     string   `json:"document_type"`
	Confidence       float64  `json:"confidence"`
	Evidence         []string `json:"evidence"`
	Reasoning        string   `json:"reasoning"`
	TaxonomyCategory string   `json:"taxonomy_category"`
}

func (c ClassificationResult) Determined() bool {
	return c.DocumentType != "" && c.DocumentType != Undetermined
}
