package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing    Action = "ping"
	ActionRefresh Action = "refresh"
)

// RequestEnvelope is the only shape the admin feed reads from clients.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
// Domain events (session_started, answer_submitted, quiz_completed,
// dashboard_update, heartbeat) are forwarded as published on Redis.

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"
)

type ErrorResponse struct {
	Type  Event  `json:"type"`
	Error string `json:"error"`
}

type PongResponse struct {
	Type      Event `json:"type"`
	Timestamp int64 `json:"timestamp"`
}
