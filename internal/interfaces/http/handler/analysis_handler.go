package handler

import (
	"errors"

	appdocument "github.com/documind/backend/internal/application/document"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AnalysisHandler handles document analysis HTTP requests
type AnalysisHandler struct {
	BaseHandler
	analysisService *appdocument.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysisService *appdocument.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// Create godoc
//
//	@ID				createAnalysis
//	@Summary		Run a document analysis
//	@Description	Queue an analysis over a completed OCR job or an already stored file. Consumes one unit of the tenant's analysis quota; pass an Idempotency-Key header to make retries safe.
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			request			body		document.CreateAnalysisRequest	true	"Analysis request"
//	@Param			Idempotency-Key	header		string							false	"Dedup key for safe retries"
//	@Success		201				{object}	APIResponse[document.CreateAnalysisResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		404				{object}	ErrorResponse
//	@Failure		409				{object}	ErrorResponse
//	@Failure		422				{object}	ErrorResponse
//	@Failure		429				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/analyses [post]
func (h *AnalysisHandler) Create(c *gin.Context) {
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

	var req appdocument.CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	req.IdempotencyKey = c.GetHeader(idempotencyKeyHeader)
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.analysisService.CreateAnalysis(c.Request.Context(), tenantID, req, &userID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Created(c, result)
}

// GetByID godoc
//
//	@ID				getAnalysis
//	@Summary		Get analysis
//	@Description	Get a document analysis by ID, including its result once completed
//	@Tags			analysis
//	@Produce		json
//	@Param			id	path		string	true	"Analysis ID"	format(uuid)
//	@Success		200	{object}	APIResponse[document.AnalysisResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/analyses/{id} [get]
func (h *AnalysisHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid analysis ID")
		return
	}

	analysis, err := h.analysisService.GetAnalysis(c.Request.Context(), tenantID, analysisID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Analysis not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, analysis)
}

// List godoc
//
//	@ID				listAnalyses
//	@Summary		List analyses
//	@Description	Get a paginated list of the tenant's document analyses
//	@Tags			analysis
//	@Produce		json
//	@Param			page			query		int		false	"Page number"	default(1)
//	@Param			page_size		query		int		false	"Items per page"	default(20)
//	@Param			kind			query		string	false	"Filter by analysis kind"	Enums(CLASSIFICATION, EXTRACTION, SUMMARY)
//	@Param			status			query		string	false	"Filter by status"	Enums(PENDING, PROCESSING, COMPLETED, FAILED)
//	@Param			source_job_id	query		string	false	"Filter by source OCR job"	format(uuid)
//	@Success		200				{object}	APIResponse[document.ListAnalysesResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/analyses [get]
func (h *AnalysisHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter appdocument.AnalysisListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.analysisService.ListAnalyses(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.Size)
}
