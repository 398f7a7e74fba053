package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/middleware"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/response"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
)

// TokenHandler handles access token administration.
type TokenHandler struct {
	tokenService *service.TokenService
	auditService *service.AuditService
	log          zerolog.Logger
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokenService *service.TokenService, auditService *service.AuditService, log zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
		auditService: auditService,
		log:          log.With().Str("component", "token_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/admin/tokens
func (h *TokenHandler) List(c *gin.Context) {
	tokens, err := h.tokenService.List(c.Request.Context())
	if err != nil {
		internalError(c, h.log, err, "Failed to list tokens")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tokens": tokens})
}

// Create godoc
// POST /api/v1/admin/tokens
// Issues a token with a generated 6-character code.
func (h *TokenHandler) Create(c *gin.Context) {
	var req model.CreateTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var createdBy *int64
	if claims := middleware.GetClaims(c); claims != nil {
		createdBy = &claims.AdminID
	}

	t, err := h.tokenService.Create(c.Request.Context(), req, createdBy)
	if err != nil {
		h.fail(c, err, "Failed to create token")
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, model.AuditCreateToken,
		fmt.Sprintf("token %s max_usage=%d", t.TokenCode, t.MaxUsage)))
	response.Success(c, http.StatusCreated, gin.H{"token": t})
}

// Get godoc
// GET /api/v1/admin/tokens/:code
func (h *TokenHandler) Get(c *gin.Context) {
	code, ok := tokenCodeParam(c)
	if !ok {
		return
	}

	t, err := h.tokenService.Get(c.Request.Context(), code)
	if err != nil {
		h.fail(c, err, "Failed to load token")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": t})
}

// Update godoc
// PATCH /api/v1/admin/tokens/:code
func (h *TokenHandler) Update(c *gin.Context) {
	code, ok := tokenCodeParam(c)
	if !ok {
		return
	}

	var req model.UpdateTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	t, err := h.tokenService.Update(c.Request.Context(), code, req)
	if err != nil {
		h.fail(c, err, "Failed to update token")
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, model.AuditUpdateToken, "token "+t.TokenCode))
	response.Success(c, http.StatusOK, gin.H{"token": t})
}

// Delete godoc
// DELETE /api/v1/admin/tokens/:code
func (h *TokenHandler) Delete(c *gin.Context) {
	code, ok := tokenCodeParam(c)
	if !ok {
		return
	}

	if err := h.tokenService.Delete(c.Request.Context(), code); err != nil {
		h.fail(c, err, "Failed to delete token")
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, model.AuditDeleteToken, "token "+code))
	response.SuccessWithMessage(c, http.StatusOK, gin.H{}, "Token berhasil dihapus")
}

func (h *TokenHandler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrValidation):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"expires_at": err.Error()})
	default:
		internalError(c, h.log, err, msg)
	}
}

func tokenCodeParam(c *gin.Context) (string, bool) {
	code := model.NormalizeTokenCode(c.Param("code"))
	if !model.IsTokenCode(code) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return code, true
}
