package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/gastosmart/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Scanner reads a receipt image.
// This interface enables mocking and testing of the AI collaborator.
type Scanner interface {
	Scan(ctx context.Context, image []byte, mimeType string) (Data, error)
}

// ContentGenerator is the subset of *genai.Models the scanner calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiScanner is the Scanner implementation backed by Gemini.
type GeminiScanner struct {
	models ContentGenerator
	model  string
}

var _ Scanner = (*GeminiScanner)(nil)

// NewGeminiScanner creates a genai client. Credentials come from the
// environment (GOOGLE_API_KEY, or Vertex AI application default credentials).
func NewGeminiScanner(ctx context.Context, model string) (*GeminiScanner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiScanner: create genai client: %w", err)
	}
	return NewScannerWithGenerator(client.Models, model), nil
}

// NewScannerWithGenerator builds a scanner over any ContentGenerator.
func NewScannerWithGenerator(models ContentGenerator, model string) *GeminiScanner {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiScanner{models: models, model: model}
}

// Scan sends the image with the extraction prompt and decodes the answer.
func (s *GeminiScanner) Scan(ctx context.Context, image []byte, mimeType string) (Data, error) {
	if len(image) == 0 {
		return Data{}, errors.New("Scan: empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
				{Text: buildExtractionPrompt()},
			},
		},
	}

	resp, err := s.models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return Data{}, fmt.Errorf("Scan: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return Data{}, fmt.Errorf("Scan: %w", ErrEmptyResponse)
	}

	data, err := Decode(raw)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Str("raw_response", raw).Msg("Model returned non-JSON receipt")
		return Data{}, fmt.Errorf("Scan: %w", err)
	}
	return data, nil
}
