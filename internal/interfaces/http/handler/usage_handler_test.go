package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	appmetering "github.com/documind/backend/internal/application/metering"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/documind/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// usageTestAccountRepo is an in-memory UsageAccountRepository. SaveWithLock
// accepts a write only when the stored version is exactly one behind the
// aggregate's, matching the database-backed implementation.
type usageTestAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*metering.UsageAccount
	order    []uuid.UUID
}

func newUsageTestAccountRepo() *usageTestAccountRepo {
	return &usageTestAccountRepo{accounts: make(map[uuid.UUID]*metering.UsageAccount)}
}

func copyUsageAccount(a *metering.UsageAccount) *metering.UsageAccount {
	clone := *a
	clone.Counts = make(map[metering.ResourceKind]int64, len(a.Counts))
	for k, v := range a.Counts {
		clone.Counts[k] = v
	}
	clone.History = make([]metering.PeriodSnapshot, len(a.History))
	for i, snapshot := range a.History {
		copied := snapshot
		copied.Counts = make(map[metering.ResourceKind]int64, len(snapshot.Counts))
		for k, v := range snapshot.Counts {
			copied.Counts[k] = v
		}
		clone.History[i] = copied
	}
	clone.PlanChangeLog = append([]metering.PlanChange(nil), a.PlanChangeLog...)
	clone.ClearDomainEvents()
	return &clone
}

func (r *usageTestAccountRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.UsageAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyUsageAccount(account), nil
}

func (r *usageTestAccountRepo) GetOrCreate(ctx context.Context, tenantID uuid.UUID, now time.Time) (*metering.UsageAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[tenantID]; ok {
		return copyUsageAccount(account), nil
	}
	account, err := metering.NewUsageAccount(tenantID, now)
	if err != nil {
		return nil, err
	}
	r.accounts[tenantID] = copyUsageAccount(account)
	r.order = append(r.order, tenantID)
	return account, nil
}

func (r *usageTestAccountRepo) Save(ctx context.Context, account *metering.UsageAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.TenantID]; !ok {
		r.order = append(r.order, account.TenantID)
	}
	r.accounts[account.TenantID] = copyUsageAccount(account)
	return nil
}

func (r *usageTestAccountRepo) SaveWithLock(ctx context.Context, account *metering.UsageAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.accounts[account.TenantID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != account.Version-1 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Usage account was modified by another transaction")
	}
	r.accounts[account.TenantID] = copyUsageAccount(account)
	return nil
}

func (r *usageTestAccountRepo) FindAll(ctx context.Context, offset, limit int) ([]*metering.UsageAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*metering.UsageAccount, 0)
	for i := offset; i < len(r.order) && len(result) < limit; i++ {
		result = append(result, copyUsageAccount(r.accounts[r.order[i]]))
	}
	return result, nil
}

func (r *usageTestAccountRepo) FindStale(ctx context.Context, periodKey string, offset, limit int) ([]*metering.UsageAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stale := make([]*metering.UsageAccount, 0)
	for _, id := range r.order {
		if account := r.accounts[id]; account.CurrentPeriodKey != periodKey {
			stale = append(stale, copyUsageAccount(account))
		}
	}
	if offset >= len(stale) {
		return nil, nil
	}
	end := offset + limit
	if end > len(stale) {
		end = len(stale)
	}
	return stale[offset:end], nil
}

func (r *usageTestAccountRepo) CountAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

func (r *usageTestAccountRepo) Delete(ctx context.Context, tenantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, tenantID)
	return nil
}

// usageTestEventRepo is an in-memory UsageEventRepository
type usageTestEventRepo struct {
	mu     sync.Mutex
	events []*metering.UsageEvent
}

func newUsageTestEventRepo() *usageTestEventRepo {
	return &usageTestEventRepo{}
}

func (r *usageTestEventRepo) Save(ctx context.Context, event *metering.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *usageTestEventRepo) SaveBatch(ctx context.Context, events []*metering.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *usageTestEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*metering.UsageEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *usageTestEventRepo) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*metering.UsageEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.TenantID == tenantID && e.IdempotencyKey == key {
			return e, nil
		}
	}
	return nil, nil
}

func (r *usageTestEventRepo) matches(e *metering.UsageEvent, tenantID uuid.UUID, filter metering.UsageEventFilter) bool {
	if e.TenantID != tenantID {
		return false
	}
	if len(filter.Kinds) > 0 {
		found := false
		for _, kind := range filter.Kinds {
			if e.Kind == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.PeriodKey != "" && e.PeriodKey != filter.PeriodKey {
		return false
	}
	if filter.SourceType != "" && e.SourceType != filter.SourceType {
		return false
	}
	return true
}

func (r *usageTestEventRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) ([]*metering.UsageEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]*metering.UsageEvent, 0)
	// newest first
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.matches(r.events[i], tenantID, filter) {
			matched = append(matched, r.events[i])
		}
	}
	offset := (filter.Page - 1) * filter.PageSize
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *usageTestEventRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, e := range r.events {
		if r.matches(e, tenantID, filter) {
			count++
		}
	}
	return count, nil
}

func (r *usageTestEventRepo) SumByTenantAndKind(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, periodKey string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.events {
		if e.TenantID == tenantID && e.Kind == kind && e.PeriodKey == periodKey {
			sum += e.Quantity
		}
	}
	return sum, nil
}

func (r *usageTestEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// usageHandlerFixture wires a real metering service over in-memory
// repositories so handler tests exercise the full request path
type usageHandlerFixture struct {
	handler         *UsageHandler
	meteringService *appmetering.MeteringService
	accountRepo     *usageTestAccountRepo
	eventRepo       *usageTestEventRepo
	clock           *metering.FakeClock
	tenantID        uuid.UUID
}

func newUsageHandlerFixture(t *testing.T) *usageHandlerFixture {
	t.Helper()
	accountRepo := newUsageTestAccountRepo()
	eventRepo := newUsageTestEventRepo()
	clock := metering.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	locks := appmetering.NewAccountLocks()
	meteringService := appmetering.NewMeteringService(
		accountRepo, eventRepo, nil, locks, clock, nil, appmetering.DefaultMeteringServiceConfig())
	rolloverService := appmetering.NewRolloverService(
		accountRepo, locks, clock, nil, appmetering.DefaultRolloverServiceConfig())
	return &usageHandlerFixture{
		handler:         NewUsageHandler(meteringService, rolloverService),
		meteringService: meteringService,
		accountRepo:     accountRepo,
		eventRepo:       eventRepo,
		clock:           clock,
		tenantID:        uuid.New(),
	}
}

// recordUsage seeds usage through the real service so counters and events
// stay consistent
func (f *usageHandlerFixture) recordUsage(t *testing.T, kind metering.ResourceKind, count int64, sourceType string) {
	t.Helper()
	_, err := f.meteringService.RecordUsage(context.Background(), appmetering.RecordUsageInput{
		TenantID:   f.tenantID,
		Kind:       kind,
		Count:      count,
		SourceType: sourceType,
	})
	require.NoError(t, err)
}

func (f *usageHandlerFixture) router() *gin.Engine {
	router := gin.New()

	authed := router.Group("")
	authed.Use(func(c *gin.Context) {
		c.Set(middleware.JWTTenantIDKey, f.tenantID.String())
		c.Next()
	})
	authed.GET("/tenants/current/quota", f.handler.GetQuotaOverview)
	authed.GET("/tenants/current/quota/:kind", f.handler.GetQuotaForKind)
	authed.GET("/tenants/current/usage/history", f.handler.GetUsageHistory)
	authed.GET("/tenants/current/usage/events", f.handler.ListUsageEvents)
	authed.GET("/tenants/current/plan/changes", f.handler.GetPlanChanges)

	// Admin routes identify the tenant from the path, not the token
	router.GET("/admin/tenants/:id/usage", f.handler.GetTenantUsageByAdmin)
	router.PUT("/admin/tenants/:id/plan", f.handler.UpdateTenantPlan)
	router.POST("/admin/tenants/:id/usage/reset", f.handler.ResetTenantUsage)
	router.POST("/admin/usage/rollover", f.handler.RunRollover)

	return router
}

func decodeUsageResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestUsageHandler_GetQuotaOverview(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindOCR, 3, "ocr_job")
	fixture.recordUsage(t, metering.ResourceKindAnalysis, 1, "analysis")
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/quota", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	assert.True(t, body["success"].(bool))

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "free", data["plan"])
	assert.Equal(t, "2024-03", data["period_key"])

	items := data["items"].([]interface{})
	require.Len(t, items, 3)
	byKind := make(map[string]map[string]interface{}, len(items))
	for _, raw := range items {
		item := raw.(map[string]interface{})
		byKind[item["kind"].(string)] = item
	}
	assert.Equal(t, float64(3), byKind["ocr"]["used"])
	assert.Equal(t, float64(10), byKind["ocr"]["limit"])
	assert.Equal(t, float64(7), byKind["ocr"]["remaining"])
	assert.Equal(t, float64(1), byKind["analysis"]["used"])
	assert.Equal(t, float64(0), byKind["generation"]["used"])
}

func TestUsageHandler_GetQuotaOverview_Unauthorized(t *testing.T) {
	fixture := newUsageHandlerFixture(t)

	// No claims middleware: the handler must reject the request
	router := gin.New()
	router.GET("/tenants/current/quota", fixture.handler.GetQuotaOverview)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/quota", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUsageHandler_GetQuotaForKind(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindGeneration, 1, "form")
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/quota/generation", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "generation", data["kind"])
	assert.Equal(t, true, data["allowed"])
	assert.Equal(t, float64(1), data["used"])
	assert.Equal(t, float64(2), data["limit"])
	assert.Equal(t, float64(1), data["remaining"])
	assert.Equal(t, false, data["is_unlimited"])
}

func TestUsageHandler_GetQuotaForKind_Exhausted(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindGeneration, 2, "form")
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/quota/generation", nil)
	router.ServeHTTP(w, req)

	// An exhausted quota is still a successful check
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, false, data["allowed"])
	assert.Equal(t, float64(0), data["remaining"])
}

func TestUsageHandler_GetQuotaForKind_UnknownKind(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/quota/telepathy", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeUsageResponse(t, w)
	assert.False(t, body["success"].(bool))
}

func TestUsageHandler_GetUsageHistory(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindOCR, 4, "ocr_job")

	// Cross the month boundary and close the period so it lands in history
	fixture.clock.Set(time.Date(2024, 4, 1, 0, 30, 0, 0, time.UTC))
	_, err := fixture.meteringService.ResetMonthlyUsage(context.Background(), fixture.tenantID)
	require.NoError(t, err)

	router := fixture.router()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/usage/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	periods := body["data"].([]interface{})
	require.Len(t, periods, 1)

	period := periods[0].(map[string]interface{})
	assert.Equal(t, "2024-03", period["period_key"])
	assert.Equal(t, "free", period["plan"])
	counts := period["counts"].(map[string]interface{})
	assert.Equal(t, float64(4), counts["ocr"])
}

func TestUsageHandler_ListUsageEvents(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindOCR, 1, "ocr_job")
	fixture.recordUsage(t, metering.ResourceKindOCR, 1, "ocr_job")
	fixture.recordUsage(t, metering.ResourceKindAnalysis, 1, "analysis")
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/usage/events", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	events := body["data"].([]interface{})
	assert.Len(t, events, 3)

	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["total"])
	assert.Equal(t, float64(1), meta["page"])
}

func TestUsageHandler_ListUsageEvents_FilterByKind(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindOCR, 1, "ocr_job")
	fixture.recordUsage(t, metering.ResourceKindAnalysis, 1, "analysis")
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/usage/events?kind=ocr", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	events := body["data"].([]interface{})
	require.Len(t, events, 1)
	event := events[0].(map[string]interface{})
	assert.Equal(t, "ocr", event["kind"])
	assert.Equal(t, "ocr_job", event["source_type"])
	assert.Equal(t, "2024-03", event["period_key"])
}

func TestUsageHandler_ListUsageEvents_InvalidKind(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/usage/events?kind=telepathy", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsageHandler_GetPlanChanges(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	_, err := fixture.meteringService.UpdatePlan(context.Background(), fixture.tenantID, metering.PlanPro, "upgrade")
	require.NoError(t, err)
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/current/plan/changes", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	changes := body["data"].([]interface{})
	require.Len(t, changes, 1)
	change := changes[0].(map[string]interface{})
	assert.Equal(t, "pro", change["plan"])
	assert.Equal(t, "upgrade", change["reason"])
}

func TestUsageHandler_GetTenantUsageByAdmin(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindAnalysis, 2, "analysis")
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/"+fixture.tenantID.String()+"/usage", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	data := body["data"].(map[string]interface{})
	overview := data["overview"].(map[string]interface{})
	assert.Equal(t, fixture.tenantID.String(), overview["tenant_id"])
	assert.Equal(t, "free", overview["plan"])
	history := data["history"].([]interface{})
	assert.Empty(t, history)
}

func TestUsageHandler_GetTenantUsageByAdmin_InvalidID(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/not-a-uuid/usage", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsageHandler_UpdateTenantPlan(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindOCR, 5, "ocr_job")
	router := fixture.router()

	reqBody := `{"plan": "pro", "reason": "sales deal"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/admin/tenants/"+fixture.tenantID.String()+"/plan", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "free", data["old_plan"])
	assert.Equal(t, "pro", data["new_plan"])

	// Counters survive the plan change; only the limits move
	stored, err := fixture.accountRepo.FindByTenant(context.Background(), fixture.tenantID)
	require.NoError(t, err)
	assert.Equal(t, metering.PlanPro, stored.Plan)
	assert.Equal(t, int64(5), stored.Counts[metering.ResourceKindOCR])
}

func TestUsageHandler_UpdateTenantPlan_InvalidPlan(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	router := fixture.router()

	reqBody := `{"plan": "platinum"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/admin/tenants/"+fixture.tenantID.String()+"/plan", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsageHandler_ResetTenantUsage(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindAnalysis, 3, "analysis")

	// A stale period is closed into history by the reset
	fixture.clock.Set(time.Date(2024, 4, 1, 0, 30, 0, 0, time.UTC))
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/tenants/"+fixture.tenantID.String()+"/usage/reset", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "2024-03", data["closed_period_key"])
	assert.Equal(t, "2024-04", data["new_period_key"])
	assert.Equal(t, true, data["archived"])

	stored, err := fixture.accountRepo.FindByTenant(context.Background(), fixture.tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Counts[metering.ResourceKindAnalysis])
	require.Len(t, stored.History, 1)
	assert.Equal(t, int64(3), stored.History[0].Counts[metering.ResourceKindAnalysis])
}

func TestUsageHandler_ResetTenantUsage_SamePeriod(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindAnalysis, 2, "analysis")
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/tenants/"+fixture.tenantID.String()+"/usage/reset", nil)
	router.ServeHTTP(w, req)

	// A mid-month reset zeroes counters without archiving
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "2024-03", data["closed_period_key"])
	assert.Equal(t, "2024-03", data["new_period_key"])
	assert.Equal(t, false, data["archived"])

	stored, err := fixture.accountRepo.FindByTenant(context.Background(), fixture.tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Counts[metering.ResourceKindAnalysis])
	assert.Empty(t, stored.History)
}

func TestUsageHandler_RunRollover(t *testing.T) {
	fixture := newUsageHandlerFixture(t)
	fixture.recordUsage(t, metering.ResourceKindOCR, 2, "ocr_job")

	// Cross the month boundary so the account becomes stale
	fixture.clock.Set(time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC))
	router := fixture.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/usage/rollover", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeUsageResponse(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "2024-04", data["period_key"])
	assert.Equal(t, float64(1), data["rolled_over"])
	assert.Equal(t, float64(0), data["failed"])

	stored, err := fixture.accountRepo.FindByTenant(context.Background(), fixture.tenantID)
	require.NoError(t, err)
	assert.Equal(t, "2024-04", stored.CurrentPeriodKey)
	assert.Equal(t, int64(0), stored.Counts[metering.ResourceKindOCR])
}

func TestUsageHandler_MeteringErrorMapping(t *testing.T) {
	fixture := newUsageHandlerFixture(t)

	t.Run("quota exceeded maps to 429", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

		err := metering.NewQuotaExceededError(metering.ResourceKindOCR, 10, 10)
		handleMeteringError(&fixture.handler.BaseHandler, c, err)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		body := decodeUsageResponse(t, w)
		errorInfo := body["error"].(map[string]interface{})
		assert.Equal(t, "ERR_QUOTA_EXCEEDED", errorInfo["code"])
	})

	t.Run("invalid kind maps to 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

		err := &metering.InvalidResourceKindError{Kind: "telepathy"}
		handleMeteringError(&fixture.handler.BaseHandler, c, err)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
