package rendering

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StubRenderer is a placeholder implementation of PDFRenderer.
// It produces a minimal single-page PDF containing no real content.
// Use this for development and tests when no Chrome instance is available.
type StubRenderer struct{}

// NewStubRenderer creates a new StubRenderer
func NewStubRenderer() *StubRenderer {
	return &StubRenderer{}
}

// Render returns a minimal valid PDF regardless of the HTML input
func (r *StubRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "render request is nil", nil)
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}
	if !req.PaperSize.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(req.PaperSize), nil)
	}

	startTime := time.Now()

	width, height := req.PaperSize.Dimensions()
	pdf := fmt.Sprintf(`%%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] >>
endobj
trailer
<< /Root 1 0 R >>
%%%%EOF
`, mmToPoints(float64(width)), mmToPoints(float64(height)))

	return &RenderResult{
		PDFData:        []byte(pdf),
		PageCount:      1,
		RenderDuration: time.Since(startTime),
	}, nil
}

// Close is a no-op for the stub renderer
func (r *StubRenderer) Close() error {
	return nil
}

// mmToPoints converts millimeters to PDF points (72 points per inch)
func mmToPoints(mm float64) float64 {
	return mm / 25.4 * 72
}

// Ensure StubRenderer implements PDFRenderer
var _ PDFRenderer = (*StubRenderer)(nil)
