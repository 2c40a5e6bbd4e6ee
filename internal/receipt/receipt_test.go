package receipt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// mockGenerator implements ContentGenerator for testing.
type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

// mockScanner implements Scanner for testing.
type mockScanner struct {
	ScanFunc func(ctx context.Context, image []byte, mimeType string) (Data, error)
}

func (m *mockScanner) Scan(ctx context.Context, image []byte, mimeType string) (Data, error) {
	return m.ScanFunc(ctx, image, mimeType)
}

// mockSource implements ImageSource for testing.
type mockSource struct {
	GetFunc func(ctx context.Context, uri string) ([]byte, string, error)
}

func (m *mockSource) Get(ctx context.Context, uri string) ([]byte, string, error) {
	return m.GetFunc(ctx, uri)
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"total": 1}`, `{"total": 1}`},
		{"json fence", "```json\n{\"total\": 1}\n```", `{"total": 1}`},
		{"bare fence", "```\n{\"total\": 1}\n```", `{"total": 1}`},
		{"prose around", "Aquí está:\n{\"total\": 1}\nSaludos", `{"total": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	date := civil.Date{Year: 2024, Month: time.March, Day: 9}
	total := decimal.RequireFromString("1250.50")

	tests := []struct {
		name    string
		raw     string
		want    Data
		wantErr bool
	}{
		{
			name: "all fields",
			raw: "```json\n" + `{"total": 1250.50, "date": "2024-03-09", "merchant": "Tienda Inglesa",
				"items": ["pan", " ", "leche"], "category": "Alimentación",
				"description": "Compra supermercado", "currency": "uyu"}` + "\n```",
			want: Data{
				Date: &date, Total: &total, Merchant: "Tienda Inglesa", Items: []string{"pan", "leche"},
				Category: "Alimentación", Description: "Compra supermercado", Currency: domain.UYU,
			},
		},
		{
			name: "total as string",
			raw:  `{"total": "1250.50"}`,
			want: Data{Total: &total},
		},
		{
			name: "malformed fields dropped",
			raw:  `{"total": "mucho", "date": "09/03/2024", "currency": "EUR", "merchant": 42, "items": "pan", "description": "Cena"}`,
			want: Data{Description: "Cena"},
		},
		{
			name: "non-positive total dropped",
			raw:  `{"total": 0}`,
			want: Data{},
		},
		{
			name:    "not an object",
			raw:     "No pude leer la imagen",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			opts := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
			if diff := cmp.Diff(tt.want, got, opts); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestData_IsEmpty(t *testing.T) {
	if !(Data{}).IsEmpty() {
		t.Error("zero Data should be empty")
	}
	if (Data{Merchant: "x"}).IsEmpty() {
		t.Error("Data with merchant should not be empty")
	}
}

func TestSnapCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alimentación", domain.CategoryFood},
		{"alimentacion", domain.CategoryFood},
		{"  COMPRAS ", domain.CategoryShopping},
		{"Servicio", domain.CategoryUtilities},
		{"Transferencia", domain.CategoryOther},
		{"Electrodomésticos varios", domain.CategoryOther},
		{"", domain.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SnapCategory(tt.in); got != tt.want {
				t.Errorf("SnapCategory(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildExtractionPrompt(t *testing.T) {
	p := buildExtractionPrompt()
	if !strings.Contains(p, domain.CategoryFood) || strings.Contains(p, domain.CategoryTransfer) {
		t.Errorf("prompt categories wrong:\n%s", p)
	}
}

func TestGeminiScanner_Scan(t *testing.T) {
	var gotModel, gotMIME string
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotMIME = contents[0].Parts[0].InlineData.MIMEType
			return textResponse(`{"total": 99, "merchant": "Farmashop"}`), nil
		},
	}

	s := NewScannerWithGenerator(gen, "")
	data, err := s.Scan(context.Background(), []byte{1, 2, 3}, "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if gotModel != DefaultModelName || gotMIME != "image/jpeg" {
		t.Errorf("request model=%q mime=%q", gotModel, gotMIME)
	}
	if data.Merchant != "Farmashop" || data.Total == nil || !data.Total.Equal(decimal.NewFromInt(99)) {
		t.Errorf("Scan() = %+v", data)
	}
}

func TestGeminiScanner_Errors(t *testing.T) {
	modelErr := errors.New("quota exceeded")

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		image   []byte
		wantErr error
	}{
		{name: "empty image", image: nil},
		{name: "model error", image: []byte{1}, err: modelErr, wantErr: modelErr},
		{name: "empty text", image: []byte{1}, resp: textResponse(""), wantErr: ErrEmptyResponse},
		{name: "not json", image: []byte{1}, resp: textResponse("lo siento")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			_, err := NewScannerWithGenerator(gen, "m").Scan(context.Background(), tt.image, "image/png")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScanPipeline(t *testing.T) {
	source := &mockSource{
		GetFunc: func(ctx context.Context, uri string) ([]byte, string, error) {
			if uri != "mem://local/r.png" {
				t.Errorf("uri = %q", uri)
			}
			return []byte("png"), "image/png", nil
		},
	}
	scanner := &mockScanner{
		ScanFunc: func(ctx context.Context, image []byte, mimeType string) (Data, error) {
			if mimeType != "image/png" {
				t.Errorf("mimeType = %q", mimeType)
			}
			return Data{Category: "salud "}, nil
		},
	}

	state := &ScanState{ImageURI: "mem://local/r.png"}
	if err := NewScanPipeline(source, scanner).Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if state.Data.Category != domain.CategoryHealth {
		t.Errorf("Category = %q, want %q", state.Data.Category, domain.CategoryHealth)
	}
}

func TestScanPipeline_StopsOnFailure(t *testing.T) {
	fetchErr := errors.New("bucket gone")
	called := false
	source := &mockSource{
		GetFunc: func(ctx context.Context, uri string) ([]byte, string, error) { return nil, "", fetchErr },
	}
	scanner := &mockScanner{
		ScanFunc: func(ctx context.Context, image []byte, mimeType string) (Data, error) {
			called = true
			return Data{}, nil
		},
	}

	err := NewScanPipeline(source, scanner).Execute(context.Background(), &ScanState{ImageURI: "x"})
	if !errors.Is(err, fetchErr) {
		t.Errorf("error = %v, want %v", err, fetchErr)
	}
	if called {
		t.Error("scanner should not run after a fetch failure")
	}
	if err := NewPipeline().Execute(context.Background(), &ScanState{}); err == nil {
		t.Error("empty pipeline should fail")
	}
}
