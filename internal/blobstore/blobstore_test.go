package blobstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"valid", "gs://bucket/receipts/u1/a.jpg", "bucket", "receipts/u1/a.jpg", false},
		{"wrong scheme", "s3://bucket/a.jpg", "", "", true},
		{"no object", "gs://bucket", "", "", true},
		{"empty object", "gs://bucket/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri, "gs")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI() = (%q, %q), want (%q, %q)", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/receipts/u1/x-ticket.jpg": "x-ticket.jpg",
		"mem://local/a.png":                    "a.png",
		"bucket":                               "bucket",
	}
	for uri, want := range tests {
		if got := Filename(uri); got != want {
			t.Errorf("Filename(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestObjectName(t *testing.T) {
	name := ObjectName("u1", `C:\Users\me\ticket.jpg`)
	if !strings.HasPrefix(name, "receipts/u1/") || !strings.HasSuffix(name, "-ticket.jpg") {
		t.Errorf("ObjectName = %q", name)
	}
	if a, b := ObjectName("u1", "x.jpg"), ObjectName("u1", "x.jpg"); a == b {
		t.Errorf("ObjectName should be unique, got %q twice", a)
	}
	if name := ObjectName("u1", ""); !strings.HasSuffix(name, "-receipt") {
		t.Errorf("ObjectName with empty filename = %q", name)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")

	data := []byte{0xff, 0xd8, 0xff}
	uri, err := s.Put(ctx, "u1", "ticket.jpg", "image/jpeg", data)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(uri, "mem://local/receipts/u1/") {
		t.Errorf("uri = %q", uri)
	}

	// the stored copy must not alias the caller's slice
	data[0] = 0

	got, mime, err := s.Get(ctx, uri)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0xff, 0xd8, 0xff}) || mime != "image/jpeg" {
		t.Errorf("Get = (%v, %q)", got, mime)
	}

	if _, _, err := s.Get(ctx, "mem://local/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if _, _, err := s.Get(ctx, "mem://other/"+strings.TrimPrefix(uri, "mem://local/")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(other bucket) error = %v, want ErrNotFound", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}
