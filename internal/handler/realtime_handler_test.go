package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/middleware"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/service"
	ws "github.com/ump-quiz/quiz-backend/internal/websocket"
)

type quietDashboard struct{}

func (quietDashboard) GetOverview(context.Context, time.Time) (*model.DashboardOverview, error) {
	return &model.DashboardOverview{ActiveSessions: 1}, nil
}
func (quietDashboard) GetLevelDistribution(context.Context, time.Time) ([]model.LevelCount, error) {
	return nil, nil
}
func (quietDashboard) GetTopSchools(context.Context, time.Time, int) ([]model.SchoolRanking, error) {
	return nil, nil
}
func (quietDashboard) GetDailyStats(context.Context, int) ([]model.DailyStat, error) {
	return nil, nil
}
func (quietDashboard) GetWeeklyStats(context.Context, int) ([]model.WeeklyStat, error) {
	return nil, nil
}
func (quietDashboard) GetLevelPerformance(context.Context, time.Time) ([]model.LevelPerformance, error) {
	return nil, nil
}

type feedMessage struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// newRealtimeServer serves both transports behind a fake auth step.
func newRealtimeServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis, *service.RealtimeService) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	realtime := service.NewRealtimeService(rdb, zerolog.Nop())
	h := NewRealtimeHandler(realtime, service.NewDashboardService(quietDashboard{}), nil, zerolog.Nop())
	h.heartbeat = 20 * time.Millisecond
	h.refresh = time.Hour

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{AdminID: 7, Username: "operator", Role: model.AdminRoleAdmin})
		c.Next()
	})
	r.GET("/sse", h.StreamSSE)
	r.GET("/ws", h.StreamWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mr, realtime
}

// waitForSubscriber blocks until the feed loop has subscribed to the channel.
func waitForSubscriber(t *testing.T, mr *miniredis.Miniredis) {
	t.Helper()
	channel := config.CacheKey.DashboardChannel()
	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub(channel)[channel] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("feed never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRealtimeSSEStream(t *testing.T) {
	srv, mr, realtime := newRealtimeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	next := func() feedMessage {
		t.Helper()
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var msg feedMessage
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
				t.Fatalf("decode %q: %v", line, err)
			}
			return msg
		}
		t.Fatalf("stream ended: %v", scanner.Err())
		return feedMessage{}
	}

	if msg := next(); msg.Type != string(service.EventConnected) || !strings.Contains(string(msg.Data), `"username":"operator"`) {
		t.Fatalf("first message = %+v", msg)
	}
	if msg := next(); msg.Type != string(service.EventDashboardUpdate) {
		t.Fatalf("second message = %+v", msg)
	}

	waitForSubscriber(t, mr)
	realtime.Publish(ctx, service.NewEvent(service.EventQuizCompleted, map[string]any{"session_id": 42}))

	var sawHeartbeat, sawEvent bool
	for !(sawHeartbeat && sawEvent) {
		msg := next()
		switch msg.Type {
		case string(service.EventHeartbeat):
			sawHeartbeat = true
		case string(service.EventQuizCompleted):
			if !strings.Contains(string(msg.Data), `"session_id":42`) {
				t.Fatalf("forwarded event = %s", msg.Data)
			}
			sawEvent = true
		}
	}
}

func TestRealtimeWebSocketActions(t *testing.T) {
	srv, mr, realtime := newRealtimeServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// read skips heartbeats so assertions only see the message under test.
	read := func() feedMessage {
		t.Helper()
		for {
			var msg feedMessage
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("read: %v", err)
			}
			if msg.Type != string(service.EventHeartbeat) {
				return msg
			}
		}
	}

	if msg := read(); msg.Type != string(service.EventConnected) {
		t.Fatalf("first message = %+v", msg)
	}
	if msg := read(); msg.Type != string(service.EventDashboardUpdate) {
		t.Fatalf("second message = %+v", msg)
	}

	if err := conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionPing}); err != nil {
		t.Fatalf("send ping: %v", err)
	}
	if msg := read(); msg.Type != string(ws.EventPong) {
		t.Fatalf("ping answered with %+v", msg)
	}

	if err := conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionRefresh}); err != nil {
		t.Fatalf("send refresh: %v", err)
	}
	if msg := read(); msg.Type != string(service.EventDashboardUpdate) {
		t.Fatalf("refresh answered with %+v", msg)
	}

	if err := conn.WriteJSON(ws.RequestEnvelope{Action: "subscribe"}); err != nil {
		t.Fatalf("send unknown action: %v", err)
	}
	if msg := read(); msg.Type != string(ws.EventError) || msg.Error != "unknown action: subscribe" {
		t.Fatalf("unknown action answered with %+v", msg)
	}

	waitForSubscriber(t, mr)
	realtime.Publish(context.Background(), service.NewEvent(service.EventAnswerSubmitted, map[string]any{"level": 3}))
	if msg := read(); msg.Type != string(service.EventAnswerSubmitted) {
		t.Fatalf("published event arrived as %+v", msg)
	}
}

func TestRealtimeRequiresClaims(t *testing.T) {
	h := NewRealtimeHandler(nil, nil, nil, zerolog.Nop())
	r := gin.New()
	r.GET("/sse", h.StreamSSE)

	rec, _ := serve(t, r, http.MethodGet, "/sse", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBuildUpgraderOrigins(t *testing.T) {
	up := buildUpgrader([]string{"https://admin.example.com"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://admin.example.com", true},
		{"HTTPS://ADMIN.EXAMPLE.COM", true},
		{"https://evil.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := up.CheckOrigin(req); got != tt.want {
			t.Errorf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	if open := buildUpgrader(nil); !open.CheckOrigin(httptest.NewRequest(http.MethodGet, "/ws", nil)) {
		t.Error("empty allow-list rejected a request")
	}
}
