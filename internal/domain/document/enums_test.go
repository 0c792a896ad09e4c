package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected bool
	}{
		{"valid PENDING", JobStatusPending, true},
		{"valid PROCESSING", JobStatusProcessing, true},
		{"valid COMPLETED", JobStatusCompleted, true},
		{"valid FAILED", JobStatusFailed, true},
		{"invalid empty", JobStatus(""), false},
		{"invalid unknown", JobStatus("QUEUED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsValid())
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     JobStatus
		to       JobStatus
		expected bool
	}{
		// From PENDING
		{"PENDING -> PROCESSING", JobStatusPending, JobStatusProcessing, true},
		{"PENDING -> FAILED", JobStatusPending, JobStatusFailed, true},
		{"PENDING -> COMPLETED", JobStatusPending, JobStatusCompleted, false},
		{"PENDING -> PENDING", JobStatusPending, JobStatusPending, false},

		// From PROCESSING
		{"PROCESSING -> COMPLETED", JobStatusProcessing, JobStatusCompleted, true},
		{"PROCESSING -> FAILED", JobStatusProcessing, JobStatusFailed, true},
		{"PROCESSING -> PENDING", JobStatusProcessing, JobStatusPending, false},
		{"PROCESSING -> PROCESSING", JobStatusProcessing, JobStatusProcessing, false},

		// From COMPLETED (terminal)
		{"COMPLETED -> PENDING", JobStatusCompleted, JobStatusPending, false},
		{"COMPLETED -> PROCESSING", JobStatusCompleted, JobStatusProcessing, false},
		{"COMPLETED -> FAILED", JobStatusCompleted, JobStatusFailed, false},

		// From FAILED (terminal)
		{"FAILED -> PENDING", JobStatusFailed, JobStatusPending, false},
		{"FAILED -> PROCESSING", JobStatusFailed, JobStatusProcessing, false},
		{"FAILED -> COMPLETED", JobStatusFailed, JobStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAnalysisKind_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		kind     AnalysisKind
		expected bool
	}{
		{"valid CLASSIFICATION", AnalysisKindClassification, true},
		{"valid EXTRACTION", AnalysisKindExtraction, true},
		{"valid SUMMARY", AnalysisKindSummary, true},
		{"invalid empty", AnalysisKind(""), false},
		{"invalid unknown", AnalysisKind("TRANSLATION"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.IsValid())
		})
	}
}

func TestAnalysisKind_DisplayName(t *testing.T) {
	tests := []struct {
		kind     AnalysisKind
		expected string
	}{
		{AnalysisKindClassification, "Classification"},
		{AnalysisKindExtraction, "Field Extraction"},
		{AnalysisKindSummary, "Summary"},
		{AnalysisKind("OTHER"), "OTHER"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.DisplayName())
		})
	}
}

func TestAllAnalysisKinds(t *testing.T) {
	kinds := AllAnalysisKinds()
	assert.Len(t, kinds, 3)
	for _, k := range kinds {
		assert.True(t, k.IsValid())
	}
}

func TestTemplateStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   TemplateStatus
		expected bool
	}{
		{"valid ACTIVE", TemplateStatusActive, true},
		{"valid INACTIVE", TemplateStatusInactive, true},
		{"invalid empty", TemplateStatus(""), false},
		{"invalid unknown", TemplateStatus("DRAFT"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsValid())
		})
	}
}

func TestPaperSize_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		paperSize PaperSize
		expected  bool
	}{
		{"valid A4", PaperSizeA4, true},
		{"valid A5", PaperSizeA5, true},
		{"valid LETTER", PaperSizeLetter, true},
		{"valid LEGAL", PaperSizeLegal, true},
		{"invalid empty", PaperSize(""), false},
		{"invalid unknown", PaperSize("TABLOID"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.paperSize.IsValid())
		})
	}
}

func TestPaperSize_Dimensions(t *testing.T) {
	tests := []struct {
		paperSize      PaperSize
		expectedWidth  int
		expectedHeight int
	}{
		{PaperSizeA4, 210, 297},
		{PaperSizeA5, 148, 210},
		{PaperSizeLetter, 216, 279},
		{PaperSizeLegal, 216, 356},
		{PaperSize("UNKNOWN"), 210, 297},
	}

	for _, tt := range tests {
		t.Run(tt.paperSize.String(), func(t *testing.T) {
			w, h := tt.paperSize.Dimensions()
			assert.Equal(t, tt.expectedWidth, w)
			assert.Equal(t, tt.expectedHeight, h)
		})
	}
}

func TestAllPaperSizes(t *testing.T) {
	paperSizes := AllPaperSizes()
	assert.Len(t, paperSizes, 4)
	for _, ps := range paperSizes {
		assert.True(t, ps.IsValid())
	}
}

func TestOrientation_IsValid(t *testing.T) {
	tests := []struct {
		name        string
		orientation Orientation
		expected    bool
	}{
		{"valid PORTRAIT", OrientationPortrait, true},
		{"valid LANDSCAPE", OrientationLandscape, true},
		{"invalid empty", Orientation(""), false},
		{"invalid unknown", Orientation("ROTATED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.orientation.IsValid())
		})
	}
}
