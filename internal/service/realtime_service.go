package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
)

// EventType names a realtime feed event.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventSessionStarted  EventType = "session_started"
	EventAnswerSubmitted EventType = "answer_submitted"
	EventQuizCompleted   EventType = "quiz_completed"
	EventDashboardUpdate EventType = "dashboard_update"
	EventHeartbeat       EventType = "heartbeat"
)

// Event is one message on the admin realtime feed.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now().UTC()}
}

// RealtimeService publishes domain events on a Redis channel that every
// server instance's SSE and WebSocket handlers subscribe to.
type RealtimeService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRealtimeService creates a new RealtimeService.
func NewRealtimeService(rdb *redis.Client, log zerolog.Logger) *RealtimeService {
	return &RealtimeService{
		rdb: rdb,
		log: log.With().Str("component", "realtime_service").Logger(),
	}
}

// Publish serializes evt onto the dashboard channel. Errors are logged only.
func (s *RealtimeService) Publish(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		s.log.Error().Err(err).Str("type", string(evt.Type)).Msg("Failed to encode realtime event")
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.DashboardChannel(), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("type", string(evt.Type)).Msg("Failed to publish realtime event")
	}
}

// Subscribe attaches to the dashboard channel. The caller closes the subscription.
func (s *RealtimeService) Subscribe(ctx context.Context) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.DashboardChannel())
}
