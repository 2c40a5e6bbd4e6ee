// Package lifecycle validates and applies user edits: account and
// transaction creation, updates and deletion, including the cascade that
// removes an account's transactions with it.
//
// Nothing here mutates local state. Every change goes to the store and
// comes back through the subscription feed.
package lifecycle

import (
	"html"
	"strings"
	"time"

	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/microcosm-cc/bluemonday"
)

// Service applies validated edits to a store.
type Service struct {
	store  store.Store
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewService creates a Service writing to s.
func NewService(s store.Store) *Service {
	return &Service{
		store:  s,
		policy: bluemonday.StrictPolicy(), // Removes all HTML tags
		now:    time.Now,
	}
}

// clean strips markup and surrounding whitespace from free text. Entities
// escaped by the policy are decoded again since values are stored as plain
// text, not HTML.
func (s *Service) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
