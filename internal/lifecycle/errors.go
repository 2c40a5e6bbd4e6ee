package lifecycle

import (
	"fmt"
	"strings"
)

// ValidationError rejects user input before any store mutation. Message is
// meant to be shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// CascadeError reports an account deletion that only partly succeeded.
// Orphaned lists the transactions that still reference the account.
type CascadeError struct {
	AccountID      string
	Orphaned       []string
	AccountDeleted bool
	Err            error
}

func (e *CascadeError) Error() string {
	state := "account kept"
	if e.AccountDeleted {
		state = "account deleted"
	}
	return fmt.Sprintf("cascade delete of account %s incomplete (%s, %d orphaned transactions: %s): %v",
		e.AccountID, state, len(e.Orphaned), strings.Join(e.Orphaned, ","), e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
