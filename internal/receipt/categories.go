package receipt

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/dvloznov/gastosmart/internal/domain"
)

// maxCategoryDistance is how many edits a suggested category may be away
// from a known one and still be accepted.
const maxCategoryDistance = 3

// SnapCategory maps a model-suggested category onto the known set: an exact
// or case-insensitive match first, then the closest name within
// maxCategoryDistance edits, otherwise "Otros". Transfer is never suggested
// for a receipt.
func SnapCategory(suggested string) string {
	norm := normalizeCategory(suggested)
	if norm == "" {
		return domain.CategoryOther
	}

	best, bestDist := domain.CategoryOther, maxCategoryDistance+1
	for _, c := range domain.Categories {
		if c == domain.CategoryTransfer {
			continue
		}
		cn := normalizeCategory(c)
		if cn == norm {
			return c
		}
		if d := levenshtein.ComputeDistance(cn, norm); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// normalizeCategory converts to uppercase and trims whitespace for
// case-insensitive comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
