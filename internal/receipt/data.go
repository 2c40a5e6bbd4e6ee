// Package receipt extracts a best-effort draft transaction from a photo of
// a receipt using a Gemini model.
package receipt

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/shopspring/decimal"
)

// Data is what a scan could read off a receipt. Every field is optional:
// nil pointers and empty strings mean the model did not find the value.
type Data struct {
	Date        *civil.Date      `json:"date,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	Merchant    string           `json:"merchant,omitempty"`
	Items       []string         `json:"items,omitempty"`
	Category    string           `json:"category,omitempty"`
	Description string           `json:"description,omitempty"`
	Currency    domain.Currency  `json:"currency,omitempty"`
}

// IsEmpty reports whether the scan found nothing usable.
func (d Data) IsEmpty() bool {
	return d.Date == nil && d.Total == nil && d.Merchant == "" && len(d.Items) == 0 &&
		d.Category == "" && d.Description == "" && d.Currency == ""
}

// Decode parses the model's answer. It strips Markdown fences and drops
// any field whose value is malformed instead of failing the whole scan;
// only text that is not a JSON object at all is an error.
func Decode(raw string) (Data, error) {
	clean := cleanModelJSON(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return Data{}, fmt.Errorf("Decode: unmarshal JSON: %w", err)
	}

	var d Data
	if s, ok := stringField(fields, "date"); ok {
		if date, err := civil.ParseDate(s); err == nil {
			d.Date = &date
		}
	}
	if v, ok := fields["total"]; ok {
		var total decimal.Decimal
		if err := json.Unmarshal(v, &total); err == nil && total.IsPositive() {
			d.Total = &total
		}
	}
	if s, ok := stringField(fields, "currency"); ok {
		if c, err := domain.ParseCurrency(s); err == nil {
			d.Currency = c
		}
	}
	d.Merchant, _ = stringField(fields, "merchant")
	d.Category, _ = stringField(fields, "category")
	d.Description, _ = stringField(fields, "description")

	if v, ok := fields["items"]; ok {
		var items []string
		if err := json.Unmarshal(v, &items); err == nil {
			for _, it := range items {
				if it = strings.TrimSpace(it); it != "" {
					d.Items = append(d.Items, it)
				}
			}
		}
	}
	return d, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if the model added prose around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
