package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/gastosmart/internal/blobstore"
	"github.com/dvloznov/gastosmart/internal/receipt"
)

type mockScanner struct {
	ScanFunc func(ctx context.Context, image []byte, mimeType string) (receipt.Data, error)
}

func (m *mockScanner) Scan(ctx context.Context, image []byte, mimeType string) (receipt.Data, error) {
	return m.ScanFunc(ctx, image, mimeType)
}

type otherJob struct{}

func (otherJob) GetID() string        { return "x" }
func (otherJob) GetType() JobType     { return "other" }
func (otherJob) GetStatus() JobStatus { return JobStatusPending }

func TestScanReceiptHandler(t *testing.T) {
	ctx := context.Background()
	images := blobstore.NewMemoryStore("")
	uri, err := images.Put(ctx, "user-1", "ticket.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var gotMIME string
	scanner := &mockScanner{
		ScanFunc: func(ctx context.Context, image []byte, mimeType string) (receipt.Data, error) {
			gotMIME = mimeType
			return receipt.Data{Merchant: "Tienda Inglesa", Category: "salud"}, nil
		},
	}
	handler := NewScanReceiptHandler(receipt.NewScanPipeline(images, scanner))

	job := &ScanReceiptJob{JobID: "j1", UserID: "user-1", ImageURI: uri}
	if err := handler(ctx, job); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if gotMIME != "image/png" {
		t.Errorf("scanner got MIME %q, want the stored content type", gotMIME)
	}
	if job.Result == nil || job.Result.Merchant != "Tienda Inglesa" {
		t.Fatalf("Result = %+v", job.Result)
	}
	if job.Result.Category != "Salud" {
		t.Errorf("Category = %q, want it snapped to Salud", job.Result.Category)
	}
}

func TestScanReceiptHandler_Failures(t *testing.T) {
	ctx := context.Background()
	images := blobstore.NewMemoryStore("")
	uri, _ := images.Put(ctx, "user-1", "ticket.jpg", "image/jpeg", []byte("jpg"))

	scanErr := errors.New("model unavailable")
	scanner := &mockScanner{
		ScanFunc: func(ctx context.Context, image []byte, mimeType string) (receipt.Data, error) {
			return receipt.Data{}, scanErr
		},
	}
	handler := NewScanReceiptHandler(receipt.NewScanPipeline(images, scanner))

	tests := []struct {
		name          string
		job           Job
		wantPermanent bool
	}{
		{"scanner error is retried", &ScanReceiptJob{JobID: "j1", ImageURI: uri}, false},
		{"missing image is permanent", &ScanReceiptJob{JobID: "j2", ImageURI: "mem://local/receipts/nope"}, true},
		{"unknown job type is permanent", otherJob{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(ctx, tt.job)
			if err == nil {
				t.Fatal("expected an error")
			}
			if IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", err, IsPermanent(err), tt.wantPermanent)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	base := errors.New("bad input")
	err := Permanent(base)
	if !errors.Is(err, base) || err.Error() != "bad input" {
		t.Errorf("Permanent should wrap transparently, got %v", err)
	}
	if IsPermanent(base) {
		t.Error("plain errors are not permanent")
	}
}
