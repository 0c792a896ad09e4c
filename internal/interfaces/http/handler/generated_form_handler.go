package handler

import (
	"errors"

	appdocument "github.com/documind/backend/internal/application/document"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GeneratedFormHandler handles generated form HTTP requests
type GeneratedFormHandler struct {
	BaseHandler
	formService *appdocument.FormService
}

// NewGeneratedFormHandler creates a new generated form handler
func NewGeneratedFormHandler(formService *appdocument.FormService) *GeneratedFormHandler {
	return &GeneratedFormHandler{formService: formService}
}

// Generate godoc
//
//	@ID				generateForm
//	@Summary		Generate a PDF form
//	@Description	Render a PDF from an active template and the supplied field values. Consumes one unit of the tenant's generation quota; pass an Idempotency-Key header to make retries safe.
//	@Tags			forms
//	@Accept			json
//	@Produce		json
//	@Param			request			body		document.GenerateFormRequest	true	"Generation request"
//	@Param			Idempotency-Key	header		string							false	"Dedup key for safe retries"
//	@Success		201				{object}	APIResponse[document.GenerateFormResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		404				{object}	ErrorResponse
//	@Failure		409				{object}	ErrorResponse
//	@Failure		422				{object}	ErrorResponse
//	@Failure		429				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/forms [post]
func (h *GeneratedFormHandler) Generate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req appdocument.GenerateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req.IdempotencyKey = c.GetHeader(idempotencyKeyHeader)
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.formService.GenerateForm(c.Request.Context(), tenantID, req, &userID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Created(c, result)
}

// GetByID godoc
//
//	@ID				getForm
//	@Summary		Get generated form
//	@Description	Get a generated form by ID, including its rendering status
//	@Tags			forms
//	@Produce		json
//	@Param			id	path		string	true	"Form ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.FormResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/forms/{id} [get]
func (h *GeneratedFormHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	formID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid form ID")
		return
	}

	form, err := h.formService.GetForm(c.Request.Context(), tenantID, formID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Form not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, form)
}

// List godoc
//
//	@ID				listForms
//	@Summary		List generated forms
//	@Description	Get a paginated list of the tenant's generated forms
//	@Tags			forms
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Items per page"	default(20)
//	@Param			template_id	query		string	false	"Filter by template"	format(uuid)
//	@Param			status		query		string	false	"Filter by status"	Enums(PENDING, COMPLETED, FAILED)
//	@Success		200			{object}	APIResponse[document.ListFormsResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/forms [get]
func (h *GeneratedFormHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter appdocument.FormListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.formService.ListForms(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.Size)
}

// Download godoc
//
//	@ID				downloadForm
//	@Summary		Get form download URL
//	@Description	Get a short-lived presigned URL for downloading the rendered PDF of a completed form
//	@Tags			forms
//	@Produce		json
//	@Param			id	path		string	true	"Form ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.DownloadURLResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/forms/{id}/download [get]
func (h *GeneratedFormHandler) Download(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	formID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid form ID")
		return
	}

	url, err := h.formService.GetFormDownloadURL(c.Request.Context(), tenantID, formID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Form not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, url)
}
