package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/response"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
)

const resultsPerPage = 20

// ResultHandler serves the admin result views.
type ResultHandler struct {
	resultService *service.ResultService
	exportService *service.ExportService
	auditService  *service.AuditService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(
	resultService *service.ResultService,
	exportService *service.ExportService,
	auditService *service.AuditService,
	log zerolog.Logger,
) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		exportService: exportService,
		auditService:  auditService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/admin/results?level=&school=&status=&date_from=&date_to=&page=&per_page=
func (h *ResultHandler) List(c *gin.Context) {
	f, ok := bindResultFilter(c)
	if !ok {
		return
	}

	rows, total, err := h.resultService.List(c.Request.Context(), f)
	if err != nil {
		internalError(c, h.log, err, "Failed to list results")
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": rows},
		response.NewPagination(f.Page, f.PerPage, total))
}

// Export godoc
// GET /api/v1/admin/results/export?format=csv|xlsx
// Streams every result matching the filters as a download.
func (h *ResultHandler) Export(c *gin.Context) {
	f, ok := bindResultFilter(c)
	if !ok {
		return
	}

	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportCSV))))
	if format != service.ExportCSV && format != service.ExportXLSX {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFormat)
		return
	}

	// Rendered in memory first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	n, err := h.exportService.Export(c.Request.Context(), f, format, &buf)
	if err != nil {
		internalError(c, h.log, err, "Failed to export results")
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, model.AuditExportResults,
		fmt.Sprintf("%d rows as %s", n, format)))

	filename := fmt.Sprintf("hasil-kuis-%s.%s", time.Now().Format("20060102-150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Detail godoc
// GET /api/v1/admin/results/:session_id
func (h *ResultHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}

	detail, err := h.resultService.GetDetail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to load result detail")
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// Recompute godoc
// POST /api/v1/admin/results/:session_id/recompute
// Re-derives the stored aggregates from the session's answers.
func (h *ResultHandler) Recompute(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}

	summary, err := h.resultService.Recompute(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to recompute result")
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, model.AuditRecomputeResult,
		fmt.Sprintf("session %d total_score=%d", id, summary.TotalScore)))
	response.Success(c, http.StatusOK, gin.H{"summary": summary})
}

// DeleteSession godoc
// DELETE /api/v1/admin/sessions/:session_id
// Removes a session with its answers and summary. Super admin only.
func (h *ResultHandler) DeleteSession(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}

	if err := h.resultService.DeleteSession(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete session")
		return
	}

	h.auditService.Record(c.Request.Context(), auditEntry(c, model.AuditDeleteSession, fmt.Sprintf("session %d", id)))
	response.SuccessWithMessage(c, http.StatusOK, gin.H{}, "Sesi berhasil dihapus")
}

func (h *ResultHandler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrResultNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	default:
		internalError(c, h.log, err, msg)
	}
}

// bindResultFilter reads the shared listing query. Dates are whole days in server local time.
func bindResultFilter(c *gin.Context) (model.ResultFilter, bool) {
	var q model.ListResultsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return model.ResultFilter{}, false
	}

	f := model.ResultFilter{
		Level:  q.Level,
		School: strings.TrimSpace(q.School),
		Status: q.Status,
	}
	f.Page, f.PerPage = pageDefaults(q.Page, q.PerPage, resultsPerPage)

	if q.DateFrom != "" {
		t, err := time.ParseInLocation("2006-01-02", q.DateFrom, time.Local)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"date_from": err.Error()})
			return model.ResultFilter{}, false
		}
		f.DateFrom = &t
	}
	if q.DateTo != "" {
		t, err := time.ParseInLocation("2006-01-02", q.DateTo, time.Local)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"date_to": err.Error()})
			return model.ResultFilter{}, false
		}
		f.DateTo = &t
	}
	return f, true
}
