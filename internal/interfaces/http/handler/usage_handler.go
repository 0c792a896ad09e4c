package handler

import (
	"net/http"
	"time"

	appmetering "github.com/documind/backend/internal/application/metering"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/interfaces/http/dto"
	"github.com/documind/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UsageHandler handles quota and usage accounting HTTP requests
type UsageHandler struct {
	BaseHandler
	meteringService *appmetering.MeteringService
	rolloverService *appmetering.RolloverService
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(
	meteringService *appmetering.MeteringService,
	rolloverService *appmetering.RolloverService,
) *UsageHandler {
	return &UsageHandler{
		meteringService: meteringService,
		rolloverService: rolloverService,
	}
}

// ============================================================================
// Request/Response DTOs
// ============================================================================

// QuotaStatusResponse represents a single resource kind checked against
// the plan limit
//
//	@Description	Quota status for one metered resource kind
type QuotaStatusResponse struct {
	Kind        string `json:"kind" example:"ocr"`
	Allowed     bool   `json:"allowed" example:"true"`
	Used        int64  `json:"used" example:"4"`
	Limit       int64  `json:"limit" example:"10"`
	Remaining   int64  `json:"remaining" example:"6"`
	IsUnlimited bool   `json:"is_unlimited" example:"false"`
}

// PeriodSnapshotResponse represents one archived accounting period
//
//	@Description	Archived usage counters for a closed accounting period
type PeriodSnapshotResponse struct {
	PeriodKey string           `json:"period_key" example:"2024-01"`
	Plan      string           `json:"plan" example:"personal"`
	Counts    map[string]int64 `json:"counts"`
}

// PlanChangeEntryResponse represents one entry in the plan change log
//
//	@Description	Single plan change audit entry
type PlanChangeEntryResponse struct {
	Plan      string    `json:"plan" example:"pro"`
	ChangedAt time.Time `json:"changed_at"`
	Reason    string    `json:"reason,omitempty" example:"upgrade"`
}

// UsageEventResponse represents a recorded usage event
//
//	@Description	Immutable record of one metered action
type UsageEventResponse struct {
	ID         uuid.UUID  `json:"id"`
	Kind       string     `json:"kind" example:"analysis"`
	Quantity   int64      `json:"quantity" example:"1"`
	PeriodKey  string     `json:"period_key" example:"2024-01"`
	RecordedAt time.Time  `json:"recorded_at"`
	SourceType string     `json:"source_type,omitempty" example:"ocr_job"`
	SourceID   string     `json:"source_id,omitempty"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
}

// UsageEventListQuery represents query parameters for listing usage events
type UsageEventListQuery struct {
	Kind       string `form:"kind" binding:"omitempty,oneof=analysis generation ocr"`
	PeriodKey  string `form:"period" binding:"omitempty,len=7"`
	SourceType string `form:"source_type" binding:"omitempty,max=50"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// UpdateTenantUsagePlanRequest represents an admin plan change request
type UpdateTenantUsagePlanRequest struct {
	Plan   string `json:"plan" binding:"required,oneof=free personal pro enterprise"`
	Reason string `json:"reason" binding:"omitempty,max=200"`
}

// PlanChangeResultResponse reports the transition performed by a plan change
//
//	@Description	Result of an administrative plan change
type PlanChangeResultResponse struct {
	TenantID string `json:"tenant_id"`
	OldPlan  string `json:"old_plan" example:"free"`
	NewPlan  string `json:"new_plan" example:"pro"`
}

// AdminTenantUsageResponse combines the live quota state with the
// archived period history for the admin view
//
//	@Description	Full usage state of a tenant for administrators
type AdminTenantUsageResponse struct {
	Overview *appmetering.QuotaOverviewDTO `json:"overview"`
	History  []PeriodSnapshotResponse      `json:"history"`
}

// ============================================================================
// Tenant-facing handlers
// ============================================================================

// GetQuotaOverview godoc
//
//	@ID				getQuotaOverview
//	@Summary		Get current tenant quota overview
//	@Description	Get the current accounting period's usage against plan limits for every metered resource kind
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	APIResponse[appmetering.QuotaOverviewDTO]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/tenants/current/quota [get]
func (h *UsageHandler) GetQuotaOverview(c *gin.Context) {
	tenantID, ok := h.tenantFromToken(c)
	if !ok {
		return
	}

	overview, err := h.meteringService.GetQuotaOverview(c.Request.Context(), tenantID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, overview)
}

// GetQuotaForKind godoc
//
//	@ID				getQuotaForKind
//	@Summary		Check quota for one resource kind
//	@Description	Check whether the current tenant can consume one more unit of the given resource kind
//	@Tags			usage
//	@Produce		json
//	@Param			kind	path		string	true	"Resource kind"	Enums(analysis, generation, ocr)
//	@Success		200		{object}	APIResponse[QuotaStatusResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/tenants/current/quota/{kind} [get]
func (h *UsageHandler) GetQuotaForKind(c *gin.Context) {
	tenantID, ok := h.tenantFromToken(c)
	if !ok {
		return
	}

	kind, err := metering.ParseResourceKind(c.Param("kind"))
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	check, err := h.meteringService.CheckQuota(c.Request.Context(), tenantID, kind)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, QuotaStatusResponse{
		Kind:        check.Kind.String(),
		Allowed:     check.Allowed,
		Used:        check.Used,
		Limit:       check.Limit,
		Remaining:   check.Remaining,
		IsUnlimited: check.IsUnlimited(),
	})
}

// GetUsageHistory godoc
//
//	@ID				getUsageHistory
//	@Summary		Get archived usage periods
//	@Description	Get the archived accounting periods for the current tenant, oldest first. The live period is not included; use the quota overview for it.
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]PeriodSnapshotResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/tenants/current/usage/history [get]
func (h *UsageHandler) GetUsageHistory(c *gin.Context) {
	tenantID, ok := h.tenantFromToken(c)
	if !ok {
		return
	}

	history, err := h.meteringService.GetHistory(c.Request.Context(), tenantID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, toPeriodSnapshotResponses(history))
}

// ListUsageEvents godoc
//
//	@ID				listUsageEvents
//	@Summary		List usage events
//	@Description	Get a paginated list of the current tenant's recorded usage events, newest first
//	@Tags			usage
//	@Produce		json
//	@Param			kind		query		string	false	"Resource kind"	Enums(analysis, generation, ocr)
//	@Param			period		query		string	false	"Accounting period (YYYY-MM)"	example(2024-01)
//	@Param			source_type	query		string	false	"Source type"	example(ocr_job)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Items per page"	default(20)	maximum(100)
//	@Success		200			{object}	APIResponse[[]UsageEventResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/tenants/current/usage/events [get]
func (h *UsageHandler) ListUsageEvents(c *gin.Context) {
	tenantID, ok := h.tenantFromToken(c)
	if !ok {
		return
	}

	var query UsageEventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	filter := metering.DefaultUsageEventFilter()
	if query.Kind != "" {
		kind, err := metering.ParseResourceKind(query.Kind)
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		filter.Kinds = []metering.ResourceKind{kind}
	}
	if query.PeriodKey != "" {
		filter.PeriodKey = query.PeriodKey
	}
	if query.SourceType != "" {
		filter.SourceType = query.SourceType
	}
	if query.Page > 0 {
		filter.Page = query.Page
	}
	if query.PageSize > 0 {
		filter.PageSize = query.PageSize
	}

	events, total, err := h.meteringService.ListUsageEvents(c.Request.Context(), tenantID, filter)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	responses := make([]UsageEventResponse, len(events))
	for i, event := range events {
		responses[i] = toUsageEventResponse(event)
	}

	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// GetPlanChanges godoc
//
//	@ID				getPlanChanges
//	@Summary		Get plan change log
//	@Description	Get the current tenant's plan change audit log in chronological order
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]PlanChangeEntryResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/tenants/current/plan/changes [get]
func (h *UsageHandler) GetPlanChanges(c *gin.Context) {
	tenantID, ok := h.tenantFromToken(c)
	if !ok {
		return
	}

	changes, err := h.meteringService.GetPlanChangeLog(c.Request.Context(), tenantID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	responses := make([]PlanChangeEntryResponse, len(changes))
	for i, change := range changes {
		responses[i] = PlanChangeEntryResponse{
			Plan:      change.Plan.String(),
			ChangedAt: change.ChangedAt,
			Reason:    change.Reason,
		}
	}

	h.Success(c, responses)
}

// ============================================================================
// Admin handlers
// ============================================================================

// GetTenantUsageByAdmin godoc
//
//	@ID				getTenantUsageByAdmin
//	@Summary		Get tenant usage (admin)
//	@Description	Admin endpoint to view the full usage state of a specific tenant, including archived periods
//	@Tags			usage
//	@Produce		json
//	@Param			id	path		string	true	"Tenant ID"	format(uuid)
//	@Success		200	{object}	APIResponse[AdminTenantUsageResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants/{id}/usage [get]
func (h *UsageHandler) GetTenantUsageByAdmin(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	ctx := c.Request.Context()
	overview, err := h.meteringService.GetQuotaOverview(ctx, tenantID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	history, err := h.meteringService.GetHistory(ctx, tenantID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, AdminTenantUsageResponse{
		Overview: overview,
		History:  toPeriodSnapshotResponses(history),
	})
}

// UpdateTenantPlan godoc
//
//	@ID				updateTenantPlan
//	@Summary		Change a tenant's plan (admin)
//	@Description	Admin endpoint to move a tenant to a different plan. Usage counters are kept; only the limits change.
//	@Tags			usage
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Tenant ID"	format(uuid)
//	@Param			request	body		UpdateTenantUsagePlanRequest	true	"Plan change request"
//	@Success		200		{object}	APIResponse[PlanChangeResultResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants/{id}/plan [put]
func (h *UsageHandler) UpdateTenantPlan(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req UpdateTenantUsagePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.meteringService.UpdatePlan(c.Request.Context(), tenantID, metering.Plan(req.Plan), req.Reason)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, PlanChangeResultResponse{
		TenantID: tenantID.String(),
		OldPlan:  result.OldPlan.String(),
		NewPlan:  result.NewPlan.String(),
	})
}

// ResetTenantUsage godoc
//
//	@ID				resetTenantUsage
//	@Summary		Reset a tenant's usage (admin)
//	@Description	Admin endpoint to close the tenant's current accounting period and start a fresh one with zero counters
//	@Tags			usage
//	@Produce		json
//	@Param			id	path		string	true	"Tenant ID"	format(uuid)
//	@Success		200	{object}	APIResponse[appmetering.ResetResultDTO]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants/{id}/usage/reset [post]
func (h *UsageHandler) ResetTenantUsage(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.meteringService.ResetMonthlyUsage(c.Request.Context(), tenantID)
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, result)
}

// RunRollover godoc
//
//	@ID				runRollover
//	@Summary		Roll over stale accounts (admin)
//	@Description	Admin endpoint to sweep all usage accounts and roll those still tracking a past month into the current accounting period
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	APIResponse[appmetering.RolloverSweepResult]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/usage/rollover [post]
func (h *UsageHandler) RunRollover(c *gin.Context) {
	result, err := h.rolloverService.RolloverAllStale(c.Request.Context())
	if err != nil {
		handleMeteringError(&h.BaseHandler, c, err)
		return
	}

	h.Success(c, result)
}

// ============================================================================
// Helper functions
// ============================================================================

// tenantFromToken extracts and parses the tenant ID from the JWT claims,
// responding with an error when it is missing or malformed
func (h *UsageHandler) tenantFromToken(c *gin.Context) (uuid.UUID, bool) {
	tenantIDStr := middleware.GetJWTTenantID(c)
	if tenantIDStr == "" {
		h.Unauthorized(c, "Tenant ID not found in token")
		return uuid.Nil, false
	}

	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return uuid.Nil, false
	}

	return tenantID, true
}

// handleMeteringError maps metering domain errors onto HTTP responses.
// Quota rejections carry 429 so clients can distinguish them from rate
// limiting applied by the gateway (same status, different code). Shared
// by every handler whose operations consume quota.
func handleMeteringError(h *BaseHandler, c *gin.Context, err error) {
	if metering.IsQuotaExceeded(err) {
		h.Error(c, http.StatusTooManyRequests, dto.ErrCodeQuotaExceeded, err.Error())
		return
	}
	if metering.IsInvalidResourceKind(err) || metering.IsInvalidIncrementAmount(err) {
		h.BadRequest(c, err.Error())
		return
	}
	h.HandleError(c, err)
}

func toPeriodSnapshotResponses(history []metering.PeriodSnapshot) []PeriodSnapshotResponse {
	responses := make([]PeriodSnapshotResponse, len(history))
	for i, snapshot := range history {
		counts := make(map[string]int64, len(snapshot.Counts))
		for kind, count := range snapshot.Counts {
			counts[kind.String()] = count
		}
		responses[i] = PeriodSnapshotResponse{
			PeriodKey: snapshot.PeriodKey,
			Plan:      snapshot.Plan.String(),
			Counts:    counts,
		}
	}
	return responses
}

func toUsageEventResponse(event *metering.UsageEvent) UsageEventResponse {
	return UsageEventResponse{
		ID:         event.ID,
		Kind:       event.Kind.String(),
		Quantity:   event.Quantity,
		PeriodKey:  event.PeriodKey,
		RecordedAt: event.RecordedAt,
		SourceType: event.SourceType,
		SourceID:   event.SourceID,
		UserID:     event.UserID,
	}
}
