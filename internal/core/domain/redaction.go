package domain

type RedactedItem struct {
	Category    string `json:"category"`
	Count       int    `json:"count"`
	Placeholder string `json:"placeholder"`
}

type RedactionResult struct {
	RedactedContent string         `json:"redacted_content"`
	Items           []RedactedItem `json:"redacted_items"`
	Summary         string         `json:"summary"`
}

func (r RedactionResult) TotalRedacted() int {
	total := 0
	for _, item := range r.Items {
		total += item.Count
	}
	return total
}
