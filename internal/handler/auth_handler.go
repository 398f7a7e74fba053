package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/middleware"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/response"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
)

// AuthHandler handles admin authentication endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	auditService *service.AuditService
	cookieSecure bool
	log          zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, auditService *service.AuditService, cookieSecure bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		auditService: auditService,
		cookieSecure: cookieSecure,
		log:          log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/admin/auth/login
// Validates username + password, returns a JWT and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, claims, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		case errors.Is(err, service.ErrAccountInactive):
			response.Fail(c, http.StatusForbidden, response.ErrAccountInactive)
		default:
			internalError(c, h.log, err, "Admin login failed")
		}
		return
	}

	maxAge := int(time.Until(resp.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AdminSessionCookie, resp.Token, maxAge, "/", "", h.cookieSecure, true)

	entry := auditEntry(c, model.AuditLogin, "")
	entry.AdminID = &claims.AdminID
	entry.Username = &claims.Username
	h.auditService.Record(c.Request.Context(), entry)

	response.Success(c, http.StatusOK, resp)
}

// Logout godoc
// POST /api/v1/admin/auth/logout?all=true
// Revokes the current session, or every session of the admin with all=true.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ctx := c.Request.Context()
	desc := ""
	if c.Query("all") == "true" {
		n, err := h.authService.RevokeAll(ctx, claims.AdminID)
		if err != nil {
			internalError(c, h.log, err, "Failed to revoke admin sessions")
			return
		}
		desc = fmt.Sprintf("revoked %d sessions", n)
	} else if err := h.authService.Logout(ctx, claims); err != nil {
		internalError(c, h.log, err, "Failed to revoke admin session")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AdminSessionCookie, "", -1, "/", "", h.cookieSecure, true)
	h.auditService.Record(ctx, auditEntry(c, model.AuditLogout, desc))

	response.SuccessWithMessage(c, http.StatusOK, gin.H{}, "Logout berhasil")
}

// Me godoc
// GET /api/v1/admin/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	admin, err := h.authService.Me(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, service.ErrAdminNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		internalError(c, h.log, err, "Failed to load admin profile")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"admin": admin})
}

// Register godoc
// POST /api/v1/admin/auth/register
// Creates another admin account. Super admin only.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterAdminRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	admin, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrAdminExists) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		internalError(c, h.log, err, "Failed to register admin")
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, model.AuditRegisterAdmin,
		fmt.Sprintf("registered %s (%s)", admin.Username, admin.Role)))

	response.Success(c, http.StatusCreated, gin.H{"admin": admin})
}
