package document

// JobStatus represents the processing status of a document job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"    // Accepted, waiting for a worker
	JobStatusProcessing JobStatus = "PROCESSING" // Picked up by an engine
	JobStatusCompleted  JobStatus = "COMPLETED"  // Finished successfully
	JobStatusFailed     JobStatus = "FAILED"     // Finished with an error
)

// IsValid checks if the JobStatus is a valid value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal status (no further transitions)
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo checks if the status can transition to the target status
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		return target == JobStatusProcessing || target == JobStatusFailed
	case JobStatusProcessing:
		return target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return false // Terminal states
	}
	return false
}

// AnalysisKind represents the type of analysis performed on a document
type AnalysisKind string

const (
	AnalysisKindClassification AnalysisKind = "CLASSIFICATION" // Assign a document category
	AnalysisKindExtraction     AnalysisKind = "EXTRACTION"     // Extract structured fields
	AnalysisKindSummary        AnalysisKind = "SUMMARY"        // Produce a text summary
)

// IsValid checks if the AnalysisKind is a valid value
func (k AnalysisKind) IsValid() bool {
	switch k {
	case AnalysisKindClassification, AnalysisKindExtraction, AnalysisKindSummary:
		return true
	}
	return false
}

// String returns the string representation of AnalysisKind
func (k AnalysisKind) String() string {
	return string(k)
}

// DisplayName returns the human-readable name for AnalysisKind
func (k AnalysisKind) DisplayName() string {
	switch k {
	case AnalysisKindClassification:
		return "Classification"
	case AnalysisKindExtraction:
		return "Field Extraction"
	case AnalysisKindSummary:
		return "Summary"
	default:
		return string(k)
	}
}

// AllAnalysisKinds returns all valid AnalysisKind values
func AllAnalysisKinds() []AnalysisKind {
	return []AnalysisKind{AnalysisKindClassification, AnalysisKindExtraction, AnalysisKindSummary}
}

// TemplateStatus represents the status of a form template
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "ACTIVE"
	TemplateStatusInactive TemplateStatus = "INACTIVE"
)

// IsValid checks if the TemplateStatus is a valid value
func (s TemplateStatus) IsValid() bool {
	switch s {
	case TemplateStatusActive, TemplateStatusInactive:
		return true
	}
	return false
}

// String returns the string representation of TemplateStatus
func (s TemplateStatus) String() string {
	return string(s)
}

// PaperSize represents the page size for rendered forms
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"     // 210mm x 297mm
	PaperSizeA5     PaperSize = "A5"     // 148mm x 210mm
	PaperSizeLetter PaperSize = "LETTER" // 216mm x 279mm
	PaperSizeLegal  PaperSize = "LEGAL"  // 216mm x 356mm
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeLegal:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the page dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height int) {
	switch p {
	case PaperSizeA4:
		return 210, 297
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 216, 279
	case PaperSizeLegal:
		return 216, 356
	default:
		return 210, 297 // Default to A4
	}
}

// AllPaperSizes returns all valid PaperSize values
func AllPaperSizes() []PaperSize {
	return []PaperSize{PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeLegal}
}

// Orientation represents the page orientation for rendered forms
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// String returns the string representation of Orientation
func (o Orientation) String() string {
	return string(o)
}
