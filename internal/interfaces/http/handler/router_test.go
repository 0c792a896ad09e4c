package handler

import (
	"github.com/documind/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// setupTestRouter returns a gin engine with the fixture tenant and user
// injected into the JWT context keys, mirroring what the JWT middleware
// does for an authenticated request.
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.JWTTenantIDKey, "00000000-0000-0000-0000-000000000001")
		c.Set(middleware.JWTUserIDKey, "00000000-0000-0000-0000-000000000002")
		c.Next()
	})
	return router
}
