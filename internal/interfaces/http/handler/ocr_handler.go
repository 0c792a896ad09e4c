package handler

import (
	"errors"
	"io"
	"net/http"

	appdocument "github.com/documind/backend/internal/application/document"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/documind/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// idempotencyKeyHeader carries the client-supplied dedup key for metered
// submissions
const idempotencyKeyHeader = "Idempotency-Key"

// maxOCRUploadBytes mirrors the service-side cap so oversized uploads are
// rejected before the body is read into memory
const maxOCRUploadBytes = 20 * 1024 * 1024

// OCRHandler handles OCR job HTTP requests
type OCRHandler struct {
	BaseHandler
	ocrService *appdocument.OCRService
}

// NewOCRHandler creates a new OCR handler
func NewOCRHandler(ocrService *appdocument.OCRService) *OCRHandler {
	return &OCRHandler{ocrService: ocrService}
}

// Submit godoc
//
//	@ID				submitOCRJob
//	@Summary		Submit a document for OCR
//	@Description	Upload a document and queue it for text extraction. Consumes one unit of the tenant's OCR quota; pass an Idempotency-Key header to make retries safe.
//	@Tags			ocr
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file			formData	file	true	"Document to process (PDF or image)"
//	@Param			language_hint	formData	string	false	"Expected document language (BCP 47 tag)"
//	@Param			Idempotency-Key	header		string	false	"Dedup key for safe retries"
//	@Success		201				{object}	APIResponse[document.SubmitOCRJobResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		413				{object}	ErrorResponse
//	@Failure		415				{object}	ErrorResponse
//	@Failure		429				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/ocr/jobs [post]
func (h *OCRHandler) Submit(c *gin.Context) {
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

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxOCRUploadBytes {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeValidation,
			"file exceeds maximum size of 20MB")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.BadRequest(c, "failed to read uploaded file")
		return
	}

	req := appdocument.SubmitOCRJobRequest{
		Filename:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		LanguageHint:   c.PostForm("language_hint"),
		Data:           data,
		IdempotencyKey: c.GetHeader(idempotencyKeyHeader),
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	}

	result, err := h.ocrService.SubmitJob(c.Request.Context(), tenantID, req, &userID)
	if err != nil {
		h.handleUploadError(c, err)
		return
	}

	h.Created(c, result)
}

// GetByID godoc
//
//	@ID				getOCRJob
//	@Summary		Get OCR job
//	@Description	Get an OCR job by ID, including its processing status
//	@Tags			ocr
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.OCRJobResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/ocr/jobs/{id} [get]
func (h *OCRHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.ocrService.GetJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "OCR job not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}

// List godoc
//
//	@ID				listOCRJobs
//	@Summary		List OCR jobs
//	@Description	Get a paginated list of the tenant's OCR jobs
//	@Tags			ocr
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Items per page"	default(20)
//	@Param			status		query		string	false	"Filter by status"	Enums(PENDING, PROCESSING, COMPLETED, FAILED)
//	@Param			search		query		string	false	"Search in file names"
//	@Success		200			{object}	APIResponse[document.ListOCRJobsResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/ocr/jobs [get]
func (h *OCRHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter appdocument.OCRJobListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.ocrService.ListJobs(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.Size)
}

// GetText godoc
//
//	@ID				getOCRJobText
//	@Summary		Get extracted text download URL
//	@Description	Get a short-lived presigned URL for downloading the text extracted from a completed OCR job
//	@Tags			ocr
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.DownloadURLResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/ocr/jobs/{id}/text [get]
func (h *OCRHandler) GetText(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	url, err := h.ocrService.GetTextDownloadURL(c.Request.Context(), tenantID, jobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "OCR job not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, url)
}

// handleUploadError maps upload rejections onto their dedicated statuses
// before falling back to the shared metering mapping
func (h *OCRHandler) handleUploadError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case "FILE_TOO_LARGE":
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeValidation, domainErr.Message)
			return
		case "DISALLOWED_CONTENT_TYPE":
			h.Error(c, http.StatusUnsupportedMediaType, dto.ErrCodeValidation, domainErr.Message)
			return
		}
	}
	handleMeteringError(&h.BaseHandler, c, err)
}
