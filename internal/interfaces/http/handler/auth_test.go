package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appidentity "github.com/documind/backend/internal/application/identity"
	"github.com/documind/backend/internal/domain/identity"
	"github.com/documind/backend/internal/infrastructure/auth"
	"github.com/documind/backend/internal/infrastructure/config"
	"github.com/documind/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testJWTConfig returns a default JWT config for tests
func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret-key-32-characters-long",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
		MaxRefreshCount:        10,
	}
}

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByPhone(ctx context.Context, phone string) (*identity.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context, filter identity.UserFilter) ([]*identity.User, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*identity.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) FindByRole(ctx context.Context, tenantID uuid.UUID, role identity.UserRole) ([]*identity.User, error) {
	args := m.Called(ctx, tenantID, role)
	return args.Get(0).([]*identity.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func setupAuthRouter(handler *AuthHandler, jwtService *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// Auth routes (no JWT required for login/refresh)
	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/refresh", handler.RefreshToken)
	}

	// Protected auth routes (JWT required)
	protectedGroup := r.Group("/api/v1/auth")
	protectedGroup.Use(middleware.JWTAuthMiddleware(jwtService))
	{
		protectedGroup.POST("/logout", handler.Logout)
		protectedGroup.GET("/me", handler.GetCurrentUser)
		protectedGroup.PUT("/password", handler.ChangePassword)
	}

	return r
}

func createTestUserForHandler(tenantID uuid.UUID) *identity.User {
	user, _ := identity.NewActiveUser(tenantID, "testuser", "Password123")
	return user
}

func createAuthServiceForHandler(userRepo *MockUserRepository, jwtService *auth.JWTService) *appidentity.AuthService {
	logger := zap.NewNop()
	return appidentity.NewAuthService(
		userRepo,
		jwtService,
		appidentity.DefaultAuthServiceConfig(),
		logger,
	)
}

func loginForToken(t *testing.T, router *gin.Engine) (accessToken, refreshToken string) {
	t.Helper()

	loginReq := LoginRequest{
		Username: "testuser",
		Password: "Password123",
	}
	loginBody, _ := json.Marshal(loginReq)
	loginHttpReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(loginBody))
	loginHttpReq.Header.Set("Content-Type", "application/json")
	loginW := httptest.NewRecorder()
	router.ServeHTTP(loginW, loginHttpReq)
	require.Equal(t, http.StatusOK, loginW.Code)

	var loginResponse map[string]interface{}
	require.NoError(t, json.Unmarshal(loginW.Body.Bytes(), &loginResponse))
	loginData := loginResponse["data"].(map[string]interface{})
	loginToken := loginData["token"].(map[string]interface{})
	return loginToken["access_token"].(string), loginToken["refresh_token"].(string)
}

func TestAuthHandler_Login_Success(t *testing.T) {
	tenantID := uuid.New()
	userRepo := new(MockUserRepository)

	user := createTestUserForHandler(tenantID)

	userRepo.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)

	jwtService := auth.NewJWTService(testJWTConfig())
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	reqBody := LoginRequest{
		Username: "testuser",
		Password: "Password123",
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.True(t, response["success"].(bool))
	data := response["data"].(map[string]interface{})
	token := data["token"].(map[string]interface{})
	assert.NotEmpty(t, token["access_token"])
	assert.NotEmpty(t, token["refresh_token"])
	assert.Equal(t, "Bearer", token["token_type"])

	userData := data["user"].(map[string]interface{})
	assert.Equal(t, "testuser", userData["username"])
	assert.Equal(t, "member", userData["role"])
}

func TestAuthHandler_Login_AdminRole(t *testing.T) {
	tenantID := uuid.New()
	userRepo := new(MockUserRepository)

	user := createTestUserForHandler(tenantID)
	require.NoError(t, user.SetRole(identity.UserRoleAdmin))

	userRepo.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)

	jwtService := auth.NewJWTService(testJWTConfig())
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	accessToken, _ := loginForToken(t, router)

	claims, err := jwtService.ValidateAccessToken(accessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestAuthHandler_Login_InvalidRequestBody(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTConfig())

	userRepo := new(MockUserRepository)
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_RefreshToken_Success(t *testing.T) {
	tenantID := uuid.New()
	userRepo := new(MockUserRepository)

	user := createTestUserForHandler(tenantID)

	userRepo.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)
	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	jwtService := auth.NewJWTService(testJWTConfig())
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	_, refreshToken := loginForToken(t, router)

	refreshReq := RefreshTokenRequest{RefreshToken: refreshToken}
	refreshBody, _ := json.Marshal(refreshReq)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(refreshBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.True(t, response["success"].(bool))
	data := response["data"].(map[string]interface{})
	token := data["token"].(map[string]interface{})
	assert.NotEmpty(t, token["access_token"])
	assert.NotEmpty(t, token["refresh_token"])
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	tenantID := uuid.New()
	userRepo := new(MockUserRepository)

	user := createTestUserForHandler(tenantID)

	userRepo.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)

	jwtService := auth.NewJWTService(testJWTConfig())
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	accessToken, _ := loginForToken(t, router)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.True(t, response["success"].(bool))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "Logged out successfully", data["message"])
}

func TestAuthHandler_Logout_Unauthorized(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTConfig())

	userRepo := new(MockUserRepository)
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_GetCurrentUser_Success(t *testing.T) {
	tenantID := uuid.New()
	userRepo := new(MockUserRepository)

	user := createTestUserForHandler(tenantID)

	userRepo.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	userRepo.On("Update", mock.Anything, user).Return(nil)
	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	jwtService := auth.NewJWTService(testJWTConfig())
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	accessToken, _ := loginForToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.True(t, response["success"].(bool))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "member", data["role"])
	userData := data["user"].(map[string]interface{})
	assert.Equal(t, "testuser", userData["username"])
	assert.Equal(t, "member", userData["role"])
}

func TestAuthHandler_ChangePassword_Success(t *testing.T) {
	tenantID := uuid.New()
	userRepo := new(MockUserRepository)

	user := createTestUserForHandler(tenantID)

	userRepo.On("FindByUsername", mock.Anything, "testuser").Return(user, nil)
	userRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	jwtService := auth.NewJWTService(testJWTConfig())
	authService := createAuthServiceForHandler(userRepo, jwtService)
	handler := NewAuthHandler(authService)
	router := setupAuthRouter(handler, jwtService)

	accessToken, _ := loginForToken(t, router)

	changeReq := ChangePasswordRequest{
		OldPassword: "Password123",
		NewPassword: "NewPassword456",
	}
	changeBody, _ := json.Marshal(changeReq)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/auth/password", bytes.NewReader(changeBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.True(t, response["success"].(bool))
}
