// Package docengine provides text extraction and document analysis engine
// implementations. Real OCR and analysis backends plug in behind the
// application layer's OCREngine and AnalysisEngine ports; the stub engines
// here keep the system runnable without an external provider.
package docengine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	documentapp "github.com/documind/backend/internal/application/document"
)

// Ensure StubOCREngine implements OCREngine
var _ documentapp.OCREngine = (*StubOCREngine)(nil)

// StubOCREngine is a deterministic OCREngine for development and tests.
// It returns placeholder text derived from the storage key instead of
// running real character recognition.
type StubOCREngine struct {
	// PagesPerDocument is the page count reported for every document.
	// Defaults to 1.
	PagesPerDocument int
	// Delay simulates engine latency when non-zero
	Delay time.Duration
}

// NewStubOCREngine creates a new StubOCREngine
func NewStubOCREngine() *StubOCREngine {
	return &StubOCREngine{
		PagesPerDocument: 1,
	}
}

// ExtractText returns placeholder text for the given document
func (e *StubOCREngine) ExtractText(ctx context.Context, req documentapp.OCRRequest) (*documentapp.OCRResult, error) {
	if req.StorageKey == "" {
		return nil, errors.New("storage key is required")
	}

	if e.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.Delay):
		}
	}

	text := fmt.Sprintf("Extracted text for %s.", path.Base(req.StorageKey))
	if req.LanguageHint != "" {
		text += fmt.Sprintf(" Language hint: %s.", req.LanguageHint)
	}

	pages := e.PagesPerDocument
	if pages < 1 {
		pages = 1
	}

	return &documentapp.OCRResult{
		Text:      text,
		PageCount: pages,
	}, nil
}
