package document

import (
	"strings"
	"time"

	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// GeneratedForm represents one PDF generated from a form template with a
// set of field values
type GeneratedForm struct {
	shared.TenantAggregateRoot
	TemplateID    uuid.UUID      // Template the form was generated from
	TemplateCode  string         // Template code (for display)
	FieldValues   map[string]any // Values substituted into the template
	Status        JobStatus      // Current status
	OutputFileKey string         // Object storage key of the rendered PDF
	PageCount     int            // Number of pages in the rendered PDF
	ErrorMessage  string         // Error message if rendering failed
	RequestedBy   *uuid.UUID     // User who requested the form
	CompletedAt   *time.Time     // When rendering reached a terminal state
}

// NewGeneratedForm creates a new form generation request in pending state
func NewGeneratedForm(
	tenantID uuid.UUID,
	templateID uuid.UUID,
	templateCode string,
	fieldValues map[string]any,
	requestedBy uuid.UUID,
) (*GeneratedForm, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if templateID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TEMPLATE", "Template ID cannot be empty")
	}
	if strings.TrimSpace(templateCode) == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Template code cannot be empty")
	}
	if fieldValues == nil {
		fieldValues = make(map[string]any)
	}

	form := &GeneratedForm{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		TemplateID:          templateID,
		TemplateCode:        templateCode,
		FieldValues:         fieldValues,
		Status:              JobStatusPending,
	}
	if requestedBy != uuid.Nil {
		form.RequestedBy = &requestedBy
	}

	form.AddDomainEvent(NewFormRequestedEvent(form))

	return form, nil
}

// Start marks the form as picked up by the renderer
func (f *GeneratedForm) Start() error {
	if !f.Status.CanTransitionTo(JobStatusProcessing) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start rendering from status: "+f.Status.String())
	}

	f.Status = JobStatusProcessing
	f.UpdatedAt = time.Now()
	f.IncrementVersion()

	return nil
}

// Complete marks the form as rendered with the output location
func (f *GeneratedForm) Complete(outputFileKey string, pageCount int) error {
	if !f.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot complete from status: "+f.Status.String())
	}
	if strings.TrimSpace(outputFileKey) == "" {
		return shared.NewDomainError("INVALID_FILE_KEY", "Output file key cannot be empty")
	}
	if pageCount < 1 {
		return shared.NewDomainError("INVALID_PAGE_COUNT", "Page count must be at least 1")
	}

	f.Status = JobStatusCompleted
	f.OutputFileKey = outputFileKey
	f.PageCount = pageCount
	now := time.Now()
	f.CompletedAt = &now
	f.UpdatedAt = now
	f.IncrementVersion()

	f.AddDomainEvent(NewFormCompletedEvent(f))

	return nil
}

// Fail marks the form as failed with an error message
func (f *GeneratedForm) Fail(errorMessage string) error {
	if f.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail a form that is already in terminal status: "+f.Status.String())
	}

	f.Status = JobStatusFailed
	f.ErrorMessage = errorMessage
	now := time.Now()
	f.CompletedAt = &now
	f.UpdatedAt = now
	f.IncrementVersion()

	f.AddDomainEvent(NewFormFailedEvent(f))

	return nil
}

// IsCompleted returns true if the form was rendered successfully
func (f *GeneratedForm) IsCompleted() bool {
	return f.Status == JobStatusCompleted
}

// IsTerminal returns true if the form is in a terminal state
func (f *GeneratedForm) IsTerminal() bool {
	return f.Status.IsTerminal()
}

// HasPDF returns true if a rendered PDF is available
func (f *GeneratedForm) HasPDF() bool {
	return f.OutputFileKey != ""
}
