package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appmetering "github.com/documind/backend/internal/application/metering"
	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/documind/backend/internal/infrastructure/rendering"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FormServiceConfig holds configuration for the form service
type FormServiceConfig struct {
	// RenderTimeout bounds one PDF render
	RenderTimeout time.Duration
	// DownloadURLExpiry is the validity window for PDF download URLs
	DownloadURLExpiry time.Duration
}

// DefaultFormServiceConfig returns the default configuration
func DefaultFormServiceConfig() FormServiceConfig {
	return FormServiceConfig{
		RenderTimeout:     30 * time.Second,
		DownloadURLExpiry: 1 * time.Hour,
	}
}

// FormService manages form templates and generates PDF forms from them.
// Generation is synchronous: the caller gets the finished form or an
// error. Template problems surface before the quota gate, render and
// storage problems after it leave a failed form row for audit.
type FormService struct {
	templateRepo   document.FormTemplateRepository
	formRepo       document.GeneratedFormRepository
	usage          UsageRecorder
	storage        DocumentStorage
	templateEngine *rendering.TemplateEngine
	pdfRenderer    rendering.PDFRenderer
	logger         *zap.Logger
	config         FormServiceConfig
}

// NewFormService creates a new FormService
func NewFormService(
	templateRepo document.FormTemplateRepository,
	formRepo document.GeneratedFormRepository,
	usage UsageRecorder,
	storage DocumentStorage,
	templateEngine *rendering.TemplateEngine,
	pdfRenderer rendering.PDFRenderer,
	logger *zap.Logger,
) *FormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormService{
		templateRepo:   templateRepo,
		formRepo:       formRepo,
		usage:          usage,
		storage:        storage,
		templateEngine: templateEngine,
		pdfRenderer:    pdfRenderer,
		logger:         logger,
		config:         DefaultFormServiceConfig(),
	}
}

// SetConfig sets the service configuration
func (s *FormService) SetConfig(config FormServiceConfig) {
	s.config = config
}

// =============================================================================
// Template Management
// =============================================================================

// CreateTemplate creates a new form template
func (s *FormService) CreateTemplate(ctx context.Context, tenantID uuid.UUID, req CreateTemplateRequest) (*TemplateResponse, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))

	exists, err := s.templateRepo.ExistsByCode(ctx, tenantID, code, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check template code: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("A template with code '%s' already exists", code))
	}

	if err := s.validateContent(code, req.Content); err != nil {
		return nil, err
	}

	template, err := document.NewFormTemplate(tenantID, req.Code, req.Name, req.Content)
	if err != nil {
		return nil, err
	}

	if req.Description != "" {
		if err := template.Update(req.Name, req.Description); err != nil {
			return nil, err
		}
	}
	if req.PaperSize != "" {
		if err := template.SetPaperSize(document.PaperSize(req.PaperSize)); err != nil {
			return nil, err
		}
	}
	if req.Orientation != "" {
		if err := template.SetOrientation(document.Orientation(req.Orientation)); err != nil {
			return nil, err
		}
	}
	if req.Margins != nil {
		margins, err := document.NewMargins(req.Margins.Top, req.Margins.Right, req.Margins.Bottom, req.Margins.Left)
		if err != nil {
			return nil, err
		}
		template.SetMargins(margins)
	}

	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("Form template created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("template_id", template.ID.String()),
		zap.String("code", template.Code),
	)

	response := toTemplateResponse(template)
	return &response, nil
}

// UpdateTemplate updates a form template. Nil fields are left unchanged.
func (s *FormService) UpdateTemplate(ctx context.Context, tenantID, templateID uuid.UUID, req UpdateTemplateRequest) (*TemplateResponse, error) {
	template, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.Description != nil {
		name := template.Name
		if req.Name != nil {
			name = *req.Name
		}
		description := template.Description
		if req.Description != nil {
			description = *req.Description
		}
		if err := template.Update(name, description); err != nil {
			return nil, err
		}
	}
	if req.Content != nil {
		if err := s.validateContent(template.Code, *req.Content); err != nil {
			return nil, err
		}
		if err := template.UpdateContent(*req.Content); err != nil {
			return nil, err
		}
	}
	if req.PaperSize != nil {
		if err := template.SetPaperSize(document.PaperSize(*req.PaperSize)); err != nil {
			return nil, err
		}
	}
	if req.Orientation != nil {
		if err := template.SetOrientation(document.Orientation(*req.Orientation)); err != nil {
			return nil, err
		}
	}
	if req.Margins != nil {
		margins, err := document.NewMargins(req.Margins.Top, req.Margins.Right, req.Margins.Bottom, req.Margins.Left)
		if err != nil {
			return nil, err
		}
		template.SetMargins(margins)
	}

	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	response := toTemplateResponse(template)
	return &response, nil
}

// GetTemplate returns one template scoped to the tenant
func (s *FormService) GetTemplate(ctx context.Context, tenantID, templateID uuid.UUID) (*TemplateResponse, error) {
	template, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	response := toTemplateResponse(template)
	return &response, nil
}

// GetTemplateByCode returns one template by its tenant-unique code
func (s *FormService) GetTemplateByCode(ctx context.Context, tenantID uuid.UUID, code string) (*TemplateResponse, error) {
	template, err := s.templateRepo.FindByCode(ctx, tenantID, strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	response := toTemplateResponse(template)
	return &response, nil
}

// ListTemplates returns the tenant's templates with pagination
func (s *FormService) ListTemplates(ctx context.Context, tenantID uuid.UUID, filter TemplateListFilter) (*ListTemplatesResponse, error) {
	domainFilter := buildListFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, filter.Search)
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}

	templates, err := s.templateRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.templateRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]TemplateResponse, 0, len(templates))
	for i := range templates {
		item := toTemplateResponse(&templates[i])
		// Content is omitted in listings to keep payloads small
		item.Content = ""
		items = append(items, item)
	}

	return &ListTemplatesResponse{
		Items: items,
		Total: total,
		Page:  domainFilter.Page,
		Size:  domainFilter.PageSize,
	}, nil
}

// ActivateTemplate makes a template usable for generation again
func (s *FormService) ActivateTemplate(ctx context.Context, tenantID, templateID uuid.UUID) (*TemplateResponse, error) {
	template, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	if err := template.Activate(); err != nil {
		return nil, err
	}
	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}
	response := toTemplateResponse(template)
	return &response, nil
}

// DeactivateTemplate retires a template from generation
func (s *FormService) DeactivateTemplate(ctx context.Context, tenantID, templateID uuid.UUID) (*TemplateResponse, error) {
	template, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	if err := template.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}
	response := toTemplateResponse(template)
	return &response, nil
}

// DeleteTemplate removes a template that no generated form references
func (s *FormService) DeleteTemplate(ctx context.Context, tenantID, templateID uuid.UUID) error {
	template, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, templateID)
	if err != nil {
		return err
	}

	forms, err := s.formRepo.FindByTemplate(ctx, tenantID, templateID)
	if err != nil {
		return fmt.Errorf("failed to check template usage: %w", err)
	}
	if len(forms) > 0 {
		return shared.NewDomainError("TEMPLATE_IN_USE",
			"Template has generated forms and cannot be deleted, deactivate it instead")
	}

	if err := s.templateRepo.Delete(ctx, template.ID); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	s.logger.Info("Form template deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("template_id", templateID.String()),
		zap.String("code", template.Code),
	)

	return nil
}

// =============================================================================
// Form Generation
// =============================================================================

// GenerateForm renders a PDF form from a template synchronously. The
// template must resolve and its HTML must render before the quota unit
// is consumed, a rejected request persists nothing. Failures past the
// quota gate leave a failed form row behind.
func (s *FormService) GenerateForm(
	ctx context.Context,
	tenantID uuid.UUID,
	req GenerateFormRequest,
	requestedBy *uuid.UUID,
) (*GenerateFormResponse, error) {
	template, err := s.resolveTemplate(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	if !template.CanBeUsed() {
		return nil, shared.NewDomainError("TEMPLATE_NOT_USABLE",
			fmt.Sprintf("Template '%s' is not active", template.Code))
	}

	actor := uuid.Nil
	if requestedBy != nil {
		actor = *requestedBy
	}
	form, err := document.NewGeneratedForm(tenantID, template.ID, template.Code, req.FieldValues, actor)
	if err != nil {
		return nil, err
	}

	// Bind the field values before consuming quota so template problems
	// cost the tenant nothing
	rendered, err := s.templateEngine.Render(ctx, &rendering.RenderTemplateRequest{
		Template: template,
		Data:     form.FieldValues,
	})
	if err != nil {
		return nil, toTemplateError(err)
	}

	usageResult, err := s.usage.RecordUsage(ctx, appmetering.RecordUsageInput{
		TenantID:       tenantID,
		Kind:           metering.ResourceKindGeneration,
		Count:          1,
		SourceType:     "generated_form",
		SourceID:       form.ID.String(),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         form.RequestedBy,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if usageResult.Deduplicated {
		return s.replayForm(ctx, tenantID, usageResult)
	}

	if err := form.Start(); err != nil {
		return nil, err
	}

	renderResult, err := s.pdfRenderer.Render(ctx, &rendering.RenderRequest{
		HTML:        rendered.HTML,
		PaperSize:   template.PaperSize,
		Orientation: template.Orientation,
		Margins:     template.Margins,
		Title:       template.Name,
		Timeout:     s.config.RenderTimeout,
	})
	if err != nil {
		return nil, s.failForm(ctx, form, "RENDER_FAILED", "PDF rendering failed", err)
	}

	outputKey := s.generateFormKey(tenantID, form.ID)
	if err := s.storage.Upload(ctx, outputKey, renderResult.PDFData, "application/pdf"); err != nil {
		return nil, s.failForm(ctx, form, "UPLOAD_FAILED", "Failed to store rendered PDF", err)
	}

	if err := form.Complete(outputKey, renderResult.PageCount); err != nil {
		return nil, err
	}
	if err := s.formRepo.Save(ctx, form); err != nil {
		// The usage unit is already consumed at this point
		s.logger.Error("Failed to persist form after usage was recorded",
			zap.String("tenant_id", tenantID.String()),
			zap.String("form_id", form.ID.String()),
			zap.Error(err),
		)
		if delErr := s.storage.DeleteObject(ctx, outputKey); delErr != nil {
			s.logger.Warn("Failed to clean up PDF of unpersisted form",
				zap.String("storage_key", outputKey),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	s.logger.Info("Form generated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("form_id", form.ID.String()),
		zap.String("template_code", template.Code),
		zap.Int("page_count", renderResult.PageCount),
		zap.Duration("render_duration", renderResult.RenderDuration),
		zap.Int64("quota_remaining", usageResult.Snapshot.Remaining),
	)

	return &GenerateFormResponse{
		Form:  toFormResponse(form),
		Quota: toQuotaSnapshotResponse(usageResult.Snapshot),
	}, nil
}

// GetForm returns one generated form scoped to the tenant
func (s *FormService) GetForm(ctx context.Context, tenantID, formID uuid.UUID) (*FormResponse, error) {
	form, err := s.formRepo.FindByIDForTenant(ctx, tenantID, formID)
	if err != nil {
		return nil, err
	}
	response := toFormResponse(form)
	return &response, nil
}

// ListForms returns the tenant's generated forms with pagination
func (s *FormService) ListForms(ctx context.Context, tenantID uuid.UUID, filter FormListFilter) (*ListFormsResponse, error) {
	domainFilter := buildListFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, "")
	if filter.TemplateID != "" {
		domainFilter.Filters["template_id"] = filter.TemplateID
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}

	forms, err := s.formRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.formRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]FormResponse, 0, len(forms))
	for i := range forms {
		items = append(items, toFormResponse(&forms[i]))
	}

	return &ListFormsResponse{
		Items: items,
		Total: total,
		Page:  domainFilter.Page,
		Size:  domainFilter.PageSize,
	}, nil
}

// GetFormDownloadURL returns a presigned URL for the rendered PDF
func (s *FormService) GetFormDownloadURL(ctx context.Context, tenantID, formID uuid.UUID) (*DownloadURLResponse, error) {
	form, err := s.formRepo.FindByIDForTenant(ctx, tenantID, formID)
	if err != nil {
		return nil, err
	}
	if !form.HasPDF() {
		return nil, shared.NewDomainError("PDF_NOT_READY", "Rendered PDF is not available for this form")
	}
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, form.OutputFileKey, s.config.DownloadURLExpiry)
	if err != nil {
		return nil, shared.NewDomainError("DOWNLOAD_URL_FAILED", "Failed to generate download URL")
	}
	return &DownloadURLResponse{URL: url, ExpiresAt: expiresAt}, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// resolveTemplate selects the template by ID or code, ID wins
func (s *FormService) resolveTemplate(ctx context.Context, tenantID uuid.UUID, req GenerateFormRequest) (*document.FormTemplate, error) {
	if req.TemplateID != nil && *req.TemplateID != uuid.Nil {
		template, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, *req.TemplateID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("TEMPLATE_NOT_FOUND", "Template not found")
			}
			return nil, err
		}
		return template, nil
	}
	if strings.TrimSpace(req.TemplateCode) != "" {
		template, err := s.templateRepo.FindByCode(ctx, tenantID, strings.ToLower(strings.TrimSpace(req.TemplateCode)))
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("TEMPLATE_NOT_FOUND", "Template not found")
			}
			return nil, err
		}
		return template, nil
	}
	return nil, shared.NewDomainError("INVALID_TEMPLATE",
		"One of template_id and template_code must be provided")
}

// failForm records the failure on the form row so the consumed quota
// unit stays accounted for
func (s *FormService) failForm(ctx context.Context, form *document.GeneratedForm, code, message string, cause error) error {
	if failErr := form.Fail(cause.Error()); failErr != nil {
		s.logger.Warn("Could not mark form as failed",
			zap.String("form_id", form.ID.String()),
			zap.Error(failErr),
		)
	} else if saveErr := s.formRepo.Save(ctx, form); saveErr != nil {
		s.logger.Error("Failed to persist failed form",
			zap.String("form_id", form.ID.String()),
			zap.Error(saveErr),
		)
	}

	s.logger.Error("Form generation failed",
		zap.String("tenant_id", form.TenantID.String()),
		zap.String("form_id", form.ID.String()),
		zap.String("template_code", form.TemplateCode),
		zap.Error(cause),
	)

	return shared.NewDomainError(code, message)
}

// replayForm resolves the form created by the original request that
// carried this idempotency key
func (s *FormService) replayForm(ctx context.Context, tenantID uuid.UUID, usageResult *appmetering.RecordUsageResult) (*GenerateFormResponse, error) {
	if usageResult.Event == nil || usageResult.Event.SourceType != "generated_form" {
		return nil, shared.NewDomainError("DUPLICATE_REQUEST",
			"Request with this idempotency key was already processed")
	}
	originalID, err := uuid.Parse(usageResult.Event.SourceID)
	if err != nil {
		return nil, shared.NewDomainError("DUPLICATE_REQUEST",
			"Request with this idempotency key was already processed")
	}
	original, err := s.formRepo.FindByIDForTenant(ctx, tenantID, originalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("DUPLICATE_REQUEST",
				"Request with this idempotency key was already processed")
		}
		return nil, err
	}
	return &GenerateFormResponse{
		Form:         toFormResponse(original),
		Quota:        toQuotaSnapshotResponse(usageResult.Snapshot),
		Deduplicated: true,
	}, nil
}

// validateContent checks that the template content parses
func (s *FormService) validateContent(name, content string) error {
	if err := s.templateEngine.Validate(name, content); err != nil {
		return toTemplateError(err)
	}
	return nil
}

// generateFormKey generates the storage key for a rendered PDF
func (s *FormService) generateFormKey(tenantID, formID uuid.UUID) string {
	now := time.Now().UTC()
	// Format: tenants/{tenantID}/forms/{yyyy}/{mm}/{formID}.pdf
	return fmt.Sprintf("tenants/%s/forms/%04d/%02d/%s.pdf",
		tenantID.String(),
		now.Year(),
		int(now.Month()),
		formID.String(),
	)
}

// toTemplateError converts a render error into the domain error the
// template author sees
func toTemplateError(err error) error {
	var renderErr *rendering.RenderError
	if errors.As(err, &renderErr) {
		return shared.NewDomainError("TEMPLATE_INVALID", renderErr.Error())
	}
	return shared.NewDomainError("TEMPLATE_INVALID", "Template could not be rendered")
}
