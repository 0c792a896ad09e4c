package handler

import (
	"errors"

	appdocument "github.com/documind/backend/internal/application/document"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FormTemplateHandler handles form template HTTP requests
type FormTemplateHandler struct {
	BaseHandler
	formService *appdocument.FormService
}

// NewFormTemplateHandler creates a new form template handler
func NewFormTemplateHandler(formService *appdocument.FormService) *FormTemplateHandler {
	return &FormTemplateHandler{formService: formService}
}

// Create godoc
//
//	@ID				createFormTemplate
//	@Summary		Create form template
//	@Description	Create a new form template with HTML content and field placeholders
//	@Tags			form-templates
//	@Accept			json
//	@Produce		json
//	@Param			request	body		document.CreateTemplateRequest	true	"Template definition"
//	@Success		201		{object}	APIResponse[document.TemplateResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/form-templates [post]
func (h *FormTemplateHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req appdocument.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	template, err := h.formService.CreateTemplate(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, template)
}

// GetByID godoc
//
//	@ID				getFormTemplate
//	@Summary		Get form template
//	@Description	Get a form template by ID, including its content
//	@Tags			form-templates
//	@Produce		json
//	@Param			id	path		string	true	"Template ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.TemplateResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/form-templates/{id} [get]
func (h *FormTemplateHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	template, err := h.formService.GetTemplate(c.Request.Context(), tenantID, templateID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Template not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, template)
}

// List godoc
//
//	@ID				listFormTemplates
//	@Summary		List form templates
//	@Description	Get a paginated list of the tenant's form templates
//	@Tags			form-templates
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Items per page"	default(20)
//	@Param			status		query		string	false	"Filter by status"	Enums(ACTIVE, INACTIVE)
//	@Param			search		query		string	false	"Search in code and name"
//	@Success		200			{object}	APIResponse[document.ListTemplatesResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/form-templates [get]
func (h *FormTemplateHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter appdocument.TemplateListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.formService.ListTemplates(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.Size)
}

// Update godoc
//
//	@ID				updateFormTemplate
//	@Summary		Update form template
//	@Description	Update a form template's name, description, content or layout
//	@Tags			form-templates
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Template ID"	format(uuid)
//	@Param			request	body		document.UpdateTemplateRequest	true	"Fields to update"
//	@Success		200		{object}	APIResponse[document.TemplateResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/form-templates/{id} [put]
func (h *FormTemplateHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	var req appdocument.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	template, err := h.formService.UpdateTemplate(c.Request.Context(), tenantID, templateID, req)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Template not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, template)
}

// Delete godoc
//
//	@ID				deleteFormTemplate
//	@Summary		Delete form template
//	@Description	Delete a form template. Templates referenced by generated forms cannot be deleted.
//	@Tags			form-templates
//	@Produce		json
//	@Param			id	path	string	true	"Template ID"	format(uuid)
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/form-templates/{id} [delete]
func (h *FormTemplateHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	if err := h.formService.DeleteTemplate(c.Request.Context(), tenantID, templateID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Template not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Activate godoc
//
//	@ID				activateFormTemplate
//	@Summary		Activate form template
//	@Description	Activate a template so it can be used for form generation
//	@Tags			form-templates
//	@Produce		json
//	@Param			id	path		string	true	"Template ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.TemplateResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/form-templates/{id}/activate [post]
func (h *FormTemplateHandler) Activate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	template, err := h.formService.ActivateTemplate(c.Request.Context(), tenantID, templateID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Template not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, template)
}

// Deactivate godoc
//
//	@ID				deactivateFormTemplate
//	@Summary		Deactivate form template
//	@Description	Deactivate a template so new forms can no longer be generated from it
//	@Tags			form-templates
//	@Produce		json
//	@Param			id	path		string	true	"Template ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.TemplateResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/form-templates/{id}/deactivate [post]
func (h *FormTemplateHandler) Deactivate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	template, err := h.formService.DeactivateTemplate(c.Request.Context(), tenantID, templateID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Template not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, template)
}
