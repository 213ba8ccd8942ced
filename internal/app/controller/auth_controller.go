package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/internal/middleware"
)

type AuthController struct {
	session service.SessionService
}

func NewAuthController(session service.SessionService) *AuthController {
	return &AuthController{
		session: session,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// GetSession reports whether the session has been restored and who is signed in.
// GET /api/v1/session
func (ctrl *AuthController) GetSession(c *gin.Context) {
	ready := ctrl.session.IsReady()
	current := ctrl.session.Current()
	if current == nil {
		c.JSON(http.StatusOK, gin.H{"ready": ready, "authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ready":         ready,
		"authenticated": true,
		"session":       current.Public(),
	})
}

// Register handles user registration
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.ValidationInvalidInput))
		return
	}

	session, err := ctrl.session.Register(c.Request.Context(), gateway.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FullName,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	if session == nil {
		c.JSON(http.StatusAccepted, gin.H{
			"message":               "check your inbox to confirm your email",
			"confirmation_required": true,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"session": session.Public(),
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid login request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.ValidationInvalidInput))
		return
	}

	session, err := ctrl.session.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"session": session.Public(),
	})
}

// Logout always ends the local session; a failed remote call is only logged.
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if err := ctrl.session.Logout(c.Request.Context()); err != nil {
		log.Warn("Remote logout failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetMe returns the signed-in identity
// GET /api/v1/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	current := ctrl.session.Current()
	if current == nil {
		apperrors.Unauthorized(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": current.Public()})
}
