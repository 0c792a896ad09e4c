package rendering

import (
	"bytes"
	"context"
	"time"

	"github.com/documind/backend/internal/domain/document"
)

// RenderRequest contains everything needed to turn HTML into a PDF.
type RenderRequest struct {
	// HTML is the document body to render. A bare fragment is wrapped in a
	// minimal HTML document before printing.
	HTML string
	// PaperSize selects the page dimensions
	PaperSize document.PaperSize
	// Orientation selects portrait or landscape
	Orientation document.Orientation
	// Margins are the page margins in millimeters
	Margins document.Margins
	// Title becomes the document title in the PDF metadata
	Title string
	// Timeout overrides the renderer's default timeout when non-zero
	Timeout time.Duration
}

// RenderResult is the output of a successful render.
type RenderResult struct {
	// PDFData is the raw PDF bytes
	PDFData []byte
	// PageCount is the number of pages in the generated PDF
	PageCount int
	// RenderDuration is how long the render took
	RenderDuration time.Duration
}

// PDFRenderer converts HTML into PDF bytes.
type PDFRenderer interface {
	// Render converts the request's HTML into a PDF
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)

	// Close releases resources held by the renderer
	Close() error
}

// Render error codes
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeBrowserNotFound  = "BROWSER_NOT_FOUND"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
)

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// estimatePageCount counts pages by scanning the PDF object structure.
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	// "/Type /Page" also matches the parent "/Type /Pages" object
	parentCount := bytes.Count(pdfData, []byte("/Type /Pages"))
	count = count - parentCount
	return max(count, 1)
}
