package docengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	documentapp "github.com/documind/backend/internal/application/document"
	"github.com/documind/backend/internal/domain/document"
)

// Ensure StubAnalysisEngine implements AnalysisEngine
var _ documentapp.AnalysisEngine = (*StubAnalysisEngine)(nil)

// StubAnalysisEngine is a deterministic AnalysisEngine for development and
// tests. It returns a canned payload per analysis kind.
type StubAnalysisEngine struct {
	// Confidence is the score reported for every analysis. Defaults to 0.5.
	Confidence float64
	// Delay simulates engine latency when non-zero
	Delay time.Duration
}

// NewStubAnalysisEngine creates a new StubAnalysisEngine
func NewStubAnalysisEngine() *StubAnalysisEngine {
	return &StubAnalysisEngine{
		Confidence: 0.5,
	}
}

// Analyze returns a canned result for the requested analysis kind
func (e *StubAnalysisEngine) Analyze(ctx context.Context, req documentapp.AnalysisRequest) (*documentapp.AnalysisResult, error) {
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

	var payload map[string]any
	switch req.Kind {
	case document.AnalysisKindClassification:
		payload = map[string]any{
			"category": "uncategorized",
			"labels":   []string{},
		}
	case document.AnalysisKindExtraction:
		payload = map[string]any{
			"fields": map[string]any{},
			"source": req.StorageKey,
		}
	case document.AnalysisKindSummary:
		payload = map[string]any{
			"summary":    "No summary available in stub mode.",
			"word_count": 0,
		}
	default:
		return nil, fmt.Errorf("unsupported analysis kind: %s", req.Kind)
	}

	return &documentapp.AnalysisResult{
		Payload:    payload,
		Confidence: e.Confidence,
	}, nil
}
