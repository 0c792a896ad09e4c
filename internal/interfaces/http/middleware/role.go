package middleware

import (
	"net/http"

	"github.com/documind/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoleConfig holds configuration for role middleware
type RoleConfig struct {
	// Logger for middleware logging
	Logger *zap.Logger
	// OnDenied is called when access is denied (optional)
	OnDenied func(c *gin.Context, requiredRole string)
}

// RequireAdmin creates middleware that only lets tenant administrators through
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}

// RequireAdminWithConfig creates admin-only middleware with custom config
func RequireAdminWithConfig(cfg RoleConfig) gin.HandlerFunc {
	return RequireRoleWithConfig(auth.RoleAdmin, cfg)
}

// RequireRole creates middleware that requires a specific role
func RequireRole(role string) gin.HandlerFunc {
	return RequireRoleWithConfig(role, RoleConfig{})
}

// RequireRoleWithConfig creates role middleware with custom config.
// Administrators pass every role check; members only pass member checks.
func RequireRoleWithConfig(role string, cfg RoleConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			handleRoleDenied(c, cfg, role, "No authentication claims found")
			return
		}

		if !claims.HasRole(role) && !claims.IsAdmin() {
			handleRoleDenied(c, cfg, role, "User lacks required role")
			return
		}

		if cfg.Logger != nil {
			cfg.Logger.Debug("Role check passed",
				zap.String("user_id", claims.UserID),
				zap.String("required_role", role),
				zap.String("user_role", claims.Role),
			)
		}

		c.Next()
	}
}

// handleRoleDenied handles role denied scenarios
func handleRoleDenied(c *gin.Context, cfg RoleConfig, requiredRole string, reason string) {
	if cfg.OnDenied != nil {
		cfg.OnDenied(c, requiredRole)
		return
	}

	if cfg.Logger != nil {
		claims := GetJWTClaims(c)
		userID := ""
		userRole := ""
		if claims != nil {
			userID = claims.UserID
			userRole = claims.Role
		}

		cfg.Logger.Warn("Role check denied",
			zap.String("reason", reason),
			zap.String("user_id", userID),
			zap.String("required_role", requiredRole),
			zap.String("user_role", userRole),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
	}

	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "ERR_FORBIDDEN",
			"message": "Access denied: administrator role required",
		},
	})
}

// IsAdmin is a helper function to check the admin role in handlers
func IsAdmin(c *gin.Context) bool {
	claims := GetJWTClaims(c)
	if claims == nil {
		return false
	}
	return claims.IsAdmin()
}

// HasRole is a helper function to check a role in handlers
func HasRole(c *gin.Context, role string) bool {
	claims := GetJWTClaims(c)
	if claims == nil {
		return false
	}
	return claims.HasRole(role)
}

// MustBeAdmin aborts the request if the caller is not an administrator.
// Returns true if the caller is an admin, false if aborted.
func MustBeAdmin(c *gin.Context) bool {
	if !IsAdmin(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ERR_FORBIDDEN",
				"message": "Access denied: administrator role required",
			},
		})
		return false
	}
	return true
}
