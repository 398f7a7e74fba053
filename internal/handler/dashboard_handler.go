package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/response"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
)

const logsPerPage = 50

// DashboardHandler handles admin dashboard endpoints.
type DashboardHandler struct {
	dashboardService *service.DashboardService
	auditService     *service.AuditService
	log              zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService, auditService *service.AuditService, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		auditService:     auditService,
		log:              log.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard
// Returns the 30-day overview, level distribution, school ranking and daily trend.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	data, err := h.dashboardService.GetStats(c.Request.Context())
	if err != nil {
		internalError(c, h.log, err, "Failed to build dashboard stats")
		return
	}

	response.Success(c, http.StatusOK, data)
}

// GetAnalytics godoc
// GET /api/v1/admin/analytics
func (h *DashboardHandler) GetAnalytics(c *gin.Context) {
	data, err := h.dashboardService.GetAnalytics(c.Request.Context())
	if err != nil {
		internalError(c, h.log, err, "Failed to build analytics")
		return
	}

	response.Success(c, http.StatusOK, data)
}

// GetLogs godoc
// GET /api/v1/admin/logs?page=&per_page=
func (h *DashboardHandler) GetLogs(c *gin.Context) {
	var q model.ListLogsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	page, perPage := pageDefaults(q.Page, q.PerPage, logsPerPage)

	logs, total, err := h.auditService.List(c.Request.Context(), page, perPage)
	if err != nil {
		internalError(c, h.log, err, "Failed to list admin logs")
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"logs": logs}, response.NewPagination(page, perPage, total))
}
