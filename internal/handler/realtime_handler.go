package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/middleware"
	"github.com/ump-quiz/quiz-backend/internal/service"
	ws "github.com/ump-quiz/quiz-backend/internal/websocket"
)

const (
	heartbeatInterval = 10 * time.Second
	refreshInterval   = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keep slow queries from stalling the feed
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// RealtimeHandler pushes quiz activity and dashboard snapshots to admins
// over SSE or WebSocket. Both transports share one feed loop.
type RealtimeHandler struct {
	realtime  *service.RealtimeService
	dashboard *service.DashboardService
	upgrader  websocket.Upgrader
	log       zerolog.Logger

	heartbeat time.Duration
	refresh   time.Duration
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(realtime *service.RealtimeService, dashboard *service.DashboardService, allowedOrigins []string, log zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		realtime:  realtime,
		dashboard: dashboard,
		upgrader:  buildUpgrader(allowedOrigins),
		log:       log.With().Str("component", "realtime_handler").Logger(),
		heartbeat: heartbeatInterval,
		refresh:   refreshInterval,
	}
}

// StreamSSE godoc
// GET /api/v1/admin/realtime
func (h *RealtimeHandler) StreamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	emit := func(payload []byte) error {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	log := h.log.With().Int64("admin_id", claims.AdminID).Str("transport", "sse").Logger()
	log.Info().Msg("Admin attached to realtime feed")
	h.pump(c.Request.Context(), claims, emit, nil)
	log.Info().Msg("Admin detached from realtime feed")
}

// StreamWS godoc
// WS /ws/v1/admin/realtime?token=
// Same feed as StreamSSE. Clients may send {"action":"ping"} or {"action":"refresh"}.
func (h *RealtimeHandler) StreamWS(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Int64("admin_id", claims.AdminID).Str("transport", "ws").Logger()
	log.Info().Msg("Admin attached to realtime feed")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// gorilla allows one concurrent reader and one writer; the reader only
	// hands actions to the feed loop, which owns every write.
	actions := make(chan ws.Action, 8)
	go func() {
		defer cancel()
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			select {
			case actions <- msg.Action:
			case <-ctx.Done():
				return
			}
		}
	}()

	h.pump(ctx, claims, func(payload []byte) error { return ws.WriteRaw(conn, payload) }, actions)
	log.Info().Msg("Admin detached from realtime feed")
}

// pump writes the connected event and a first snapshot, then forwards
// published events, heartbeats and periodic snapshots until ctx ends or
// emit fails.
func (h *RealtimeHandler) pump(ctx context.Context, claims *service.Claims, emit func([]byte) error, actions <-chan ws.Action) {
	pubsub := h.realtime.Subscribe(ctx)
	defer pubsub.Close()
	events := pubsub.Channel()

	if err := h.emitEvent(emit, service.NewEvent(service.EventConnected, map[string]any{
		"admin_id": claims.AdminID,
		"username": claims.Username,
	})); err != nil {
		return
	}
	if err := h.emitDashboard(ctx, emit); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	refresh := time.NewTicker(h.refresh)
	defer refresh.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-events:
			if !ok {
				return
			}
			// Already JSON; forwarded as published.
			err = emit([]byte(msg.Payload))

		case <-heartbeat.C:
			err = h.emitEvent(emit, service.NewEvent(service.EventHeartbeat, nil))

		case <-refresh.C:
			err = h.emitDashboard(ctx, emit)

		case action := <-actions:
			switch action {
			case ws.ActionPing:
				err = h.emitJSON(emit, ws.PongResponse{Type: ws.EventPong, Timestamp: time.Now().Unix()})
			case ws.ActionRefresh:
				err = h.emitDashboard(ctx, emit)
			default:
				err = h.emitJSON(emit, ws.ErrorResponse{Type: ws.EventError, Error: "unknown action: " + string(action)})
			}
		}
		if err != nil {
			h.log.Debug().Err(err).Msg("Realtime client write failed")
			return
		}
	}
}

// emitDashboard sends a dashboard_update. A failed query is logged and skipped.
func (h *RealtimeHandler) emitDashboard(ctx context.Context, emit func([]byte) error) error {
	qctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	stats, err := h.dashboard.GetStats(qctx)
	if err != nil {
		if ctx.Err() == nil {
			h.log.Warn().Err(err).Msg("Dashboard snapshot failed")
		}
		return nil
	}
	return h.emitEvent(emit, service.NewEvent(service.EventDashboardUpdate, stats))
}

func (h *RealtimeHandler) emitEvent(emit func([]byte) error, evt service.Event) error {
	return h.emitJSON(emit, evt)
}

func (h *RealtimeHandler) emitJSON(emit func([]byte) error, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return emit(payload)
}
