package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/gastosmart/internal/blobstore"
	"github.com/dvloznov/gastosmart/internal/jobs"
	"github.com/dvloznov/gastosmart/internal/jobs/inmemory"
)

func TestEnqueue(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "ticket.png")
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if err := os.WriteFile(local, png, 0o600); err != nil {
		t.Fatalf("writing image: %v", err)
	}

	blobs := blobstore.NewMemoryStore("local")
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(10, 1, store)
	defer queue.Close()

	input := strings.Join([]string{
		"# receipts from march",
		local,
		"",
		"gs://bucket/receipts/u1/a.jpg",
	}, "\n")

	ids, err := enqueue(context.Background(), strings.NewReader(input), "u1", blobs, queue)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("enqueue returned %d ids, want 2", len(ids))
	}
	if blobs.Len() != 1 {
		t.Errorf("blob store holds %d objects, want 1", blobs.Len())
	}

	first, err := store.GetJob(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	data, mime, err := blobs.Get(context.Background(), first.ImageURI)
	if err != nil {
		t.Fatalf("stored image missing: %v", err)
	}
	if !bytes.Equal(data, png) || mime != "image/png" {
		t.Errorf("stored %q as %s", data, mime)
	}

	second, _ := store.GetJob(context.Background(), ids[1])
	if second.ImageURI != "gs://bucket/receipts/u1/a.jpg" || second.UserID != "u1" {
		t.Errorf("second job = %+v", second)
	}
}

func TestEnqueue_MissingFile(t *testing.T) {
	queue := inmemory.NewQueue(10, 1, inmemory.NewStore())
	defer queue.Close()

	_, err := enqueue(context.Background(), strings.NewReader("/does/not/exist.jpg\n"), "u1", blobstore.NewMemoryStore("local"), queue)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	for _, j := range []*jobs.ScanReceiptJob{
		{JobID: "a", Status: jobs.JobStatusCompleted},
		{JobID: "b", Status: jobs.JobStatusRunning},
	} {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.UpdateJobStatus(ctx, "b", jobs.JobStatusFailed, "boom")
	}()

	var out bytes.Buffer
	failed, err := collect(ctx, store, []string{"a", "b"}, time.Millisecond, &out)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}

	var got []jobs.ScanReceiptJob
	dec := json.NewDecoder(&out)
	for dec.More() {
		var j jobs.ScanReceiptJob
		if err := dec.Decode(&j); err != nil {
			t.Fatalf("decoding output: %v", err)
		}
		got = append(got, j)
	}
	if len(got) != 2 || got[0].JobID != "a" || got[1].Status != jobs.JobStatusFailed || got[1].Error != "boom" {
		t.Errorf("output = %+v", got)
	}
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := inmemory.NewStore()
	_ = store.SaveJob(ctx, &jobs.ScanReceiptJob{JobID: "a", Status: jobs.JobStatusPending})
	cancel()

	if _, err := collect(ctx, store, []string{"a"}, time.Millisecond, &bytes.Buffer{}); err == nil {
		t.Error("expected an error after cancellation")
	}
}
