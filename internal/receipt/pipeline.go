package receipt

import (
	"context"
	"errors"
	"fmt"
)

// ImageSource downloads an archived receipt image.
type ImageSource interface {
	Get(ctx context.Context, uri string) ([]byte, string, error)
}

// ScanStep is a single step of the receipt scan pipeline.
type ScanStep interface {
	Execute(ctx context.Context, state *ScanState) error
}

// ScanState holds the state shared across steps.
type ScanState struct {
	ImageURI string
	MIMEType string
	Image    []byte
	Data     Data
}

// FetchImageStep loads the image bytes from the blob store.
type FetchImageStep struct {
	Source ImageSource
}

func (s *FetchImageStep) Execute(ctx context.Context, state *ScanState) error {
	data, mime, err := s.Source.Get(ctx, state.ImageURI)
	if err != nil {
		return fmt.Errorf("fetching image: %w", err)
	}
	state.Image = data
	if state.MIMEType == "" {
		state.MIMEType = mime
	}
	return nil
}

// ExtractStep runs the scanner over the image.
type ExtractStep struct {
	Scanner Scanner
}

func (s *ExtractStep) Execute(ctx context.Context, state *ScanState) error {
	data, err := s.Scanner.Scan(ctx, state.Image, state.MIMEType)
	if err != nil {
		return err
	}
	state.Data = data
	return nil
}

// SnapCategoryStep replaces the suggested category with a known one.
type SnapCategoryStep struct{}

func (s *SnapCategoryStep) Execute(ctx context.Context, state *ScanState) error {
	if state.Data.Category != "" {
		state.Data.Category = SnapCategory(state.Data.Category)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []ScanStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...ScanStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *ScanState) error {
	if len(p.steps) == 0 {
		return errors.New("pipeline has no steps")
	}
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewScanPipeline creates the standard fetch, extract, snap pipeline.
func NewScanPipeline(source ImageSource, scanner Scanner) *Pipeline {
	return NewPipeline(
		&FetchImageStep{Source: source},
		&ExtractStep{Scanner: scanner},
		&SnapCategoryStep{},
	)
}
