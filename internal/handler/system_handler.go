package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/response"
)

const checkTimeout = 5 * time.Second

// RowCounter reports table sizes for the status page.
type RowCounter interface {
	CountRows(ctx context.Context) (map[string]int64, error)
}

// SystemHandler reports database, Redis, queue and Go runtime state.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	rows      RowCounter
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. pool may be nil.
func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, rows RowCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		rows:      rows,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type dbStatus struct {
	Connected     bool             `json:"connected"`
	Error         string           `json:"error,omitempty"`
	TotalConns    int32            `json:"total_conns"`
	IdleConns     int32            `json:"idle_conns"`
	AcquiredConns int32            `json:"acquired_conns"`
	MaxConns      int32            `json:"max_conns"`
	Tables        map[string]int64 `json:"tables,omitempty"`
}

type redisStatus struct {
	Connected  bool   `json:"connected"`
	Error      string `json:"error,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	AuditQueue int64  `json:"audit_queue"`
}

type runtimeStatus struct {
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
}

type systemStatus struct {
	Timestamp int64         `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Database  dbStatus      `json:"database"`
	Redis     redisStatus   `json:"redis"`
	Runtime   runtimeStatus `json:"runtime"`
}

// Status godoc
// GET /api/v1/admin/system
// One-shot diagnostics. Check failures are reported in the body, not as errors.
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	response.Success(c, http.StatusOK, systemStatus{
		Timestamp: time.Now().Unix(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		Database:  h.database(ctx),
		Redis:     h.redis(ctx),
		Runtime:   readRuntime(),
	})
}

func (h *SystemHandler) database(ctx context.Context) dbStatus {
	var s dbStatus
	if h.pool != nil {
		st := h.pool.Stat()
		s.TotalConns = st.TotalConns()
		s.IdleConns = st.IdleConns()
		s.AcquiredConns = st.AcquiredConns()
		s.MaxConns = st.MaxConns()
	}

	tables, err := h.rows.CountRows(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Database check failed")
		s.Error = err.Error()
		return s
	}
	s.Connected = true
	s.Tables = tables
	return s
}

func (h *SystemHandler) redis(ctx context.Context) redisStatus {
	var s redisStatus
	start := time.Now()
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis check failed")
		s.Error = err.Error()
		return s
	}
	s.Connected = true
	s.LatencyMS = time.Since(start).Milliseconds()
	s.AuditQueue, _ = h.rdb.LLen(ctx, config.WorkerKey.PersistAuditLogQueue).Result()
	return s
}

func readRuntime() runtimeStatus {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return runtimeStatus{
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		StackInuse: ms.StackInuse,
		NumGC:      ms.NumGC,
	}
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	default:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
}
