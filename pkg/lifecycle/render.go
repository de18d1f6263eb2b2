package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// renderedDocument is the canonical artifact payload synthesized on submit.
// Field order is fixed; content keys are emitted sorted by encoding/json, so
// the same record always renders to the same bytes and the same checksum.
type renderedDocument struct {
	Type    string         `json:"type"`
	Content map[string]any `json:"content"`
}

// Render produces the canonical payload bytes for a content record: base
// fields merged with the extra-parameter document and the discount table,
// with null and blank entries pruned.
func Render(record *ContentRecord) ([]byte, error) {
	content := map[string]any{
		"fare": record.Fare,
	}
	if record.Parameter != "" {
		content["parameter"] = record.Parameter
	}

	if record.ExtraParams != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(record.ExtraParams), &extra); err != nil {
			return nil, fmt.Errorf("parse extra parameters: %w", err)
		}
		for k, v := range extra {
			if k == "" || isBlank(v) {
				continue
			}
			content[k] = v
		}
	}

	if record.Discounts != "" {
		var discounts []DiscountEntry
		if err := json.Unmarshal([]byte(record.Discounts), &discounts); err != nil {
			return nil, fmt.Errorf("parse discount table: %w", err)
		}
		kept := discounts[:0]
		for _, d := range discounts {
			if d.Code == "" || d.Amount == "" {
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) > 0 {
			content["discounts"] = kept
		}
	}

	return json.Marshal(renderedDocument{Type: record.TypeCode, Content: content})
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
