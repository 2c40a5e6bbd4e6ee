// Package blobstore archives receipt images so scans can be retried and
// audited after the upload request returns.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the object does not exist.
var ErrNotFound = errors.New("blob not found")

// Store provides an interface for blob operations.
// This interface enables mocking and testing of storage functionality.
type Store interface {
	// Put stores data under a fresh object name for the user and returns its URI.
	Put(ctx context.Context, userID, filename, contentType string, data []byte) (string, error)

	// Get downloads the bytes and content type stored at uri.
	Get(ctx context.Context, uri string) ([]byte, string, error)
}

// ObjectName builds the object path a user's receipt is stored under.
// e.g. ("u1", "ticket.jpg") → "receipts/u1/<uuid>-ticket.jpg"
func ObjectName(userID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "receipt"
	}
	return path.Join("receipts", userID, uuid.NewString()+"-"+base)
}

// ParseURI splits "scheme://bucket/object" into its bucket and object.
func ParseURI(uri, scheme string) (bucket, object string, err error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("invalid %s URI: %s", scheme, uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, prefix), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid %s URI (no object path): %s", scheme, uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the filename from a blob URI.
// e.g., "gs://bucket/receipts/u1/x-ticket.jpg" → "x-ticket.jpg"
func Filename(uri string) string {
	if i := strings.Index(uri, "://"); i != -1 {
		uri = uri[i+3:]
	}

	parts := strings.SplitN(uri, "/", 2)
	if len(parts) < 2 {
		return uri
	}
	return path.Base(parts[1])
}
