package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/errors"
)

// Context keys for user information
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
)

// SessionSource is the part of the session service the middleware reads.
type SessionSource interface {
	IsReady() bool
	Current() *model.Session
}

// AuthMiddleware gates routes on the shell's own session. The browser never
// sends a bearer token; the credential stays inside the session service.
type AuthMiddleware struct {
	session SessionSource
}

func NewAuthMiddleware(session SessionSource) *AuthMiddleware {
	return &AuthMiddleware{
		session: session,
	}
}

// RequireReady answers 503 until the persisted session has been restored.
func (m *AuthMiddleware) RequireReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.session.IsReady() {
			GetLoggerFromContext(c).Debug("Session not ready yet", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			c.Header("Retry-After", "1")
			errors.RespondWithError(c, http.StatusServiceUnavailable, errors.AuthSessionNotReady, "still loading your session")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Authenticate requires a signed-in session; unauthenticated callers get a
// 401 carrying the login redirect back to the requested path.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		session := m.session.Current()
		if session == nil {
			log.Warn("No active session", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Unauthorized(c, "")
			c.Abort()
			return
		}

		setUser(c, session)
		log.Debug("User authenticated successfully", map[string]interface{}{
			"user_id": session.UserID,
			"role":    session.Role,
		})

		c.Next()
	}
}

// OptionalAuthenticate sets user info when a session exists and continues
// as guest otherwise.
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if session := m.session.Current(); session != nil {
			setUser(c, session)
		}
		c.Next()
	}
}

// RequireRole checks if user has required role
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, exists := GetUserRole(c)
		if !exists {
			log.Warn("Role information not found in context", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Unauthorized(c, "")
			c.Abort()
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		userID, _ := GetUserID(c)
		log.Warn("Insufficient permissions", map[string]interface{}{
			"user_id":        userID,
			"user_role":      role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		errors.RespondWithError(c, http.StatusForbidden, errors.AuthzAdminOnly, "only administrators can do this")
		c.Abort()
	}
}

func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.RequireRole(model.RoleAdmin)
}

func setUser(c *gin.Context, session *model.Session) {
	c.Set(UserIDKey, session.UserID)
	c.Set(UserEmailKey, session.Email)
	c.Set(UserRoleKey, session.Role)
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	e, ok := email.(string)
	return e, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(model.UserRole)
	return r, ok
}
