// Package integration provides integration testing for the DocuMind backend API.
// This file attacks the API the way a hostile tenant would: direct object
// references across tenants, privilege escalation onto admin routes, and
// header spoofing against token-derived scoping.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appdocument "github.com/documind/backend/internal/application/document"
	appmetering "github.com/documind/backend/internal/application/metering"
	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/infrastructure/auth"
	"github.com/documind/backend/internal/infrastructure/config"
	"github.com/documind/backend/internal/infrastructure/persistence"
	"github.com/documind/backend/internal/infrastructure/rendering"
	"github.com/documind/backend/internal/infrastructure/storage"
	"github.com/documind/backend/internal/interfaces/http/handler"
	"github.com/documind/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// penTestServer wires the document and metering stacks behind real JWT
// middleware so cross-tenant attacks exercise the full request path
type penTestServer struct {
	DB       *TestDB
	Engine   *gin.Engine
	JWT      *auth.JWTService
	TenantA  uuid.UUID
	TenantB  uuid.UUID
	OCRRepo  *persistence.GormOCRJobRepository
	TplRepo  *persistence.GormFormTemplateRepository
	AcctRepo *persistence.UsageAccountRepository
}

func newPenTestServer(t *testing.T) *penTestServer {
	t.Helper()

	gin.SetMode(gin.TestMode)
	testDB := NewTestDB(t)

	tenantA := uuid.New()
	tenantB := uuid.New()
	testDB.CreateTestTenantWithUUID(tenantA)
	testDB.CreateTestTenantWithUUID(tenantB)

	logger := zap.NewNop()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-for-pen-testing-1234567890",
		RefreshSecret:          "test-refresh-secret-key-for-pen-testing",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "documind-test",
		MaxRefreshCount:        10,
	})

	ocrRepo := persistence.NewGormOCRJobRepository(testDB.DB)
	tplRepo := persistence.NewGormFormTemplateRepository(testDB.DB)
	formRepo := persistence.NewGormGeneratedFormRepository(testDB.DB)
	acctRepo := persistence.NewUsageAccountRepository(testDB.DB)
	eventRepo := persistence.NewUsageEventRepository(testDB.DB)
	tenantRepo := persistence.NewGormTenantRepository(testDB.DB)

	locks := appmetering.NewAccountLocks()
	meteringService := appmetering.NewMeteringService(
		acctRepo, eventRepo, tenantRepo, locks, nil, logger,
		appmetering.DefaultMeteringServiceConfig(),
	)
	rolloverService := appmetering.NewRolloverService(
		acctRepo, locks, nil, logger,
		appmetering.DefaultRolloverServiceConfig(),
	)

	docStorage := storage.NewMemoryDocumentStorage()
	ocrService := appdocument.NewOCRService(
		ocrRepo, meteringService, docStorage, nil, nil, logger,
	)
	formService := appdocument.NewFormService(
		tplRepo, formRepo, meteringService, docStorage,
		rendering.NewTemplateEngine(), rendering.NewStubRenderer(), logger,
	)

	ocrHandler := handler.NewOCRHandler(ocrService)
	tplHandler := handler.NewFormTemplateHandler(formService)
	usageHandler := handler.NewUsageHandler(meteringService, rolloverService)

	engine := gin.New()
	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(jwtService))

	api.GET("/ocr/jobs", ocrHandler.List)
	api.GET("/ocr/jobs/:id", ocrHandler.GetByID)
	api.GET("/form-templates/:id", tplHandler.GetByID)
	api.GET("/tenants/current/quota", usageHandler.GetQuotaOverview)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/tenants/:id/usage", usageHandler.GetTenantUsageByAdmin)
	admin.PUT("/tenants/:id/plan", usageHandler.UpdateTenantPlan)

	return &penTestServer{
		DB:       testDB,
		Engine:   engine,
		JWT:      jwtService,
		TenantA:  tenantA,
		TenantB:  tenantB,
		OCRRepo:  ocrRepo,
		TplRepo:  tplRepo,
		AcctRepo: acctRepo,
	}
}

// token issues a signed access token for the given tenant and role
func (s *penTestServer) token(t *testing.T, tenantID uuid.UUID, username, role string) string {
	t.Helper()

	pair, err := s.JWT.GenerateTokenPair(auth.GenerateTokenInput{
		TenantID: tenantID,
		UserID:   uuid.New(),
		Username: username,
		Role:     role,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func (s *penTestServer) do(method, path, token string, body interface{}, headers ...map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, hs := range headers {
		for k, v := range hs {
			req.Header.Set(k, v)
		}
	}

	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	return w
}

func TestPenetration_CrossTenantObjectAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := newPenTestServer(t)
	ctx := context.Background()

	jobB, err := document.NewOCRJob(s.TenantB, "uploads/secret-b.pdf", "secret-b.pdf", uuid.New())
	require.NoError(t, err)
	require.NoError(t, s.OCRRepo.Save(ctx, jobB))

	tplB, err := document.NewFormTemplate(s.TenantB, "contract", "Contract", "<html><body>{{.party}}</body></html>")
	require.NoError(t, err)
	require.NoError(t, s.TplRepo.Save(ctx, tplB))

	attacker := s.token(t, s.TenantA, "attacker", "member")

	t.Run("guessing another tenant's OCR job ID yields 404", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/ocr/jobs/"+jobB.ID.String(), attacker, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("guessing another tenant's template ID yields 404", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/form-templates/"+tplB.ID.String(), attacker, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("job listing never includes foreign jobs", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/ocr/jobs", attacker, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), jobB.ID.String())
		assert.NotContains(t, w.Body.String(), "secret-b.pdf")
	})

	t.Run("the owning tenant still sees its own job", func(t *testing.T) {
		owner := s.token(t, s.TenantB, "owner", "member")
		w := s.do(http.MethodGet, "/api/v1/ocr/jobs/"+jobB.ID.String(), owner, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestPenetration_TenantHeaderSpoofing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := newPenTestServer(t)
	ctx := context.Background()

	// Tenant A has consumed quota; tenant B has not
	acctA, err := s.AcctRepo.GetOrCreate(ctx, s.TenantA, time.Now())
	require.NoError(t, err)
	_, err = acctA.IncrementUsage(metering.ResourceKindOCR, 5)
	require.NoError(t, err)
	require.NoError(t, s.AcctRepo.SaveWithLock(ctx, acctA))

	tokenB := s.token(t, s.TenantB, "spoofer", "member")

	// X-Tenant-ID header pointing at tenant A must not override the token
	w := s.do(http.MethodGet, "/api/v1/tenants/current/quota", tokenB, nil,
		map[string]string{"X-Tenant-ID": s.TenantA.String()})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appmetering.QuotaOverviewDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, s.TenantB, resp.Data.TenantID)
	for _, item := range resp.Data.Items {
		assert.Zero(t, item.Used, "spoofed request must not expose tenant A's %s usage", item.Kind)
	}
}

func TestPenetration_PrivilegeEscalation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := newPenTestServer(t)

	member := s.token(t, s.TenantA, "plain_member", "member")
	admin := s.token(t, s.TenantA, "real_admin", auth.RoleAdmin)
	planChange := map[string]string{"plan": "enterprise", "reason": "escalation attempt"}

	t.Run("member cannot reach admin usage view", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/admin/tenants/"+s.TenantA.String()+"/usage", member, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("member cannot change plans", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/v1/admin/tenants/"+s.TenantA.String()+"/plan", member, planChange)
		assert.Equal(t, http.StatusForbidden, w.Code)

		// The plan is untouched
		acct, err := s.AcctRepo.GetOrCreate(context.Background(), s.TenantA, time.Now())
		require.NoError(t, err)
		assert.Equal(t, metering.PlanFree, acct.Plan)
	})

	t.Run("self-issued admin token with a wrong key is rejected", func(t *testing.T) {
		foreignJWT := auth.NewJWTService(config.JWTConfig{
			Secret:                 "attacker-chosen-secret-value-1234567890",
			AccessTokenExpiration:  15 * time.Minute,
			RefreshTokenExpiration: time.Hour,
			Issuer:                 "documind-test",
			MaxRefreshCount:        10,
		})
		pair, err := foreignJWT.GenerateTokenPair(auth.GenerateTokenInput{
			TenantID: s.TenantA,
			UserID:   uuid.New(),
			Username: "fake_admin",
			Role:     auth.RoleAdmin,
		})
		require.NoError(t, err)

		w := s.do(http.MethodPut, "/api/v1/admin/tenants/"+s.TenantA.String()+"/plan", pair.AccessToken, planChange)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("admin token passes the same gate", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/v1/admin/tenants/"+s.TenantA.String()+"/plan", admin, planChange)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		acct, err := s.AcctRepo.GetOrCreate(context.Background(), s.TenantA, time.Now())
		require.NoError(t, err)
		assert.Equal(t, metering.PlanEnterprise, acct.Plan)
	})
}
