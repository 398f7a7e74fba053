package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/middleware"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/response"
)

// internalError logs err against the request and answers 500.
func internalError(c *gin.Context, log zerolog.Logger, err error, msg string) {
	_ = c.Error(err)
	log.Error().
		Err(err).
		Str("request_id", response.RequestID(c)).
		Str("path", c.FullPath()).
		Msg(msg)
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// paramID parses a positive int64 path parameter. It writes the 400 itself.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// auditEntry fills the actor and client fields of an audit entry from the request.
func auditEntry(c *gin.Context, action, description string) model.AdminLog {
	entry := model.AdminLog{Action: action}
	if claims := middleware.GetClaims(c); claims != nil {
		id, name := claims.AdminID, claims.Username
		entry.AdminID = &id
		entry.Username = &name
	}
	if description != "" {
		entry.Description = &description
	}
	if ip := c.ClientIP(); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		entry.UserAgent = &ua
	}
	return entry
}

func pageDefaults(page, perPage, fallback int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = fallback
	}
	return page, perPage
}
