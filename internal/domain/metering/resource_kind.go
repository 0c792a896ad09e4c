package metering

// ResourceKind identifies a metered resource class
type ResourceKind string

const (
	// ResourceKindAnalysis tracks document analysis runs
	ResourceKindAnalysis ResourceKind = "analysis"

	// ResourceKindGeneration tracks generated forms
	ResourceKindGeneration ResourceKind = "generation"

	// ResourceKindOCR tracks OCR page extractions
	ResourceKindOCR ResourceKind = "ocr"
)

// String returns the string representation of ResourceKind
func (k ResourceKind) String() string {
	return string(k)
}

// IsValid returns true if the resource kind is valid
func (k ResourceKind) IsValid() bool {
	switch k {
	case ResourceKindAnalysis, ResourceKindGeneration, ResourceKindOCR:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the resource kind
func (k ResourceKind) DisplayName() string {
	switch k {
	case ResourceKindAnalysis:
		return "Document Analyses"
	case ResourceKindGeneration:
		return "Form Generations"
	case ResourceKindOCR:
		return "OCR Extractions"
	default:
		return string(k)
	}
}

// AllResourceKinds returns all valid resource kinds in stable order
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{
		ResourceKindAnalysis,
		ResourceKindGeneration,
		ResourceKindOCR,
	}
}

// ParseResourceKind parses a string into a ResourceKind
func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(s)
	if !k.IsValid() {
		return "", &InvalidResourceKindError{Kind: s}
	}
	return k, nil
}
