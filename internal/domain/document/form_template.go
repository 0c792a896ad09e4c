package document

import (
	"strings"
	"time"

	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FormTemplate represents an HTML template a tenant fills to generate
// PDF forms. It is the aggregate root for template operations.
type FormTemplate struct {
	shared.TenantAggregateRoot
	Code        string         // Unique template code within the tenant
	Name        string         // Template name
	Description string         // Template description
	Content     string         // HTML template content with field placeholders
	PaperSize   PaperSize      // Page size for the rendered PDF
	Orientation Orientation    // Page orientation
	Margins     Margins        // Page margins
	Status      TemplateStatus // Template status (active/inactive)
}

// NewFormTemplate creates a new form template
func NewFormTemplate(
	tenantID uuid.UUID,
	code string,
	name string,
	content string,
) (*FormTemplate, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if err := validateTemplateCode(code); err != nil {
		return nil, err
	}
	if err := validateTemplateName(name); err != nil {
		return nil, err
	}
	if err := validateTemplateContent(content); err != nil {
		return nil, err
	}

	template := &FormTemplate{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                strings.ToLower(strings.TrimSpace(code)),
		Name:                strings.TrimSpace(name),
		Content:             content,
		PaperSize:           PaperSizeA4,
		Orientation:         OrientationPortrait,
		Margins:             DefaultMargins(),
		Status:              TemplateStatusActive,
	}

	template.AddDomainEvent(NewFormTemplateCreatedEvent(template))

	return template, nil
}

// Update updates the template's basic information
func (t *FormTemplate) Update(name, description string) error {
	if err := validateTemplateName(name); err != nil {
		return err
	}

	t.Name = strings.TrimSpace(name)
	t.Description = strings.TrimSpace(description)
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewFormTemplateUpdatedEvent(t))

	return nil
}

// UpdateContent updates the template content
func (t *FormTemplate) UpdateContent(content string) error {
	if err := validateTemplateContent(content); err != nil {
		return err
	}

	t.Content = content
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewFormTemplateUpdatedEvent(t))

	return nil
}

// SetPaperSize sets the page size for rendered PDFs
func (t *FormTemplate) SetPaperSize(paperSize PaperSize) error {
	if !paperSize.IsValid() {
		return shared.NewDomainError("INVALID_PAPER_SIZE", "Invalid paper size")
	}

	t.PaperSize = paperSize
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// SetOrientation sets the page orientation
func (t *FormTemplate) SetOrientation(orientation Orientation) error {
	if !orientation.IsValid() {
		return shared.NewDomainError("INVALID_ORIENTATION", "Invalid orientation value")
	}

	t.Orientation = orientation
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// SetMargins sets the page margins
func (t *FormTemplate) SetMargins(margins Margins) {
	t.Margins = margins
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// Activate activates the template
func (t *FormTemplate) Activate() error {
	if t.Status == TemplateStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Template is already active")
	}

	t.Status = TemplateStatusActive
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// Deactivate deactivates the template
func (t *FormTemplate) Deactivate() error {
	if t.Status == TemplateStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Template is already inactive")
	}

	t.Status = TemplateStatusInactive
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// IsActive returns true if the template is active
func (t *FormTemplate) IsActive() bool {
	return t.Status == TemplateStatusActive
}

// CanBeUsed returns true if the template can be used for form generation
func (t *FormTemplate) CanBeUsed() bool {
	return t.Status == TemplateStatusActive && t.Content != ""
}

// Validation functions

func validateTemplateCode(code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return shared.NewDomainError("INVALID_CODE", "Template code cannot be empty")
	}
	if len(trimmed) > 64 {
		return shared.NewDomainError("INVALID_CODE", "Template code cannot exceed 64 characters")
	}
	if strings.ContainsAny(trimmed, " \t\n") {
		return shared.NewDomainError("INVALID_CODE", "Template code cannot contain whitespace")
	}
	return nil
}

func validateTemplateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return shared.NewDomainError("INVALID_NAME", "Template name cannot be empty")
	}
	if len(trimmed) > 100 {
		return shared.NewDomainError("INVALID_NAME", "Template name cannot exceed 100 characters")
	}
	return nil
}

func validateTemplateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return shared.NewDomainError("INVALID_CONTENT", "Template content cannot be empty")
	}
	if len(content) > 1024*1024 { // 1MB limit
		return shared.NewDomainError("INVALID_CONTENT", "Template content cannot exceed 1MB")
	}
	return nil
}
