package model

import "time"

// SessionStatus enumerates quiz session states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusStopped   SessionStatus = "stopped"
	SessionStatusTimeout   SessionStatus = "timeout"
)

// QuizSession is one continuous quiz attempt by a student.
type QuizSession struct {
	ID              int64         `json:"id"`
	StudentID       int64         `json:"student_id"`
	SessionToken    string        `json:"session_token"`
	CurrentLevel    int           `json:"current_level"`
	CurrentQuestion int           `json:"current_question"`
	WrongCount      int           `json:"wrong_count"`
	Status          SessionStatus `json:"status"`
	TokenUsed       *string       `json:"token_used,omitempty"`
	IPAddress       *string       `json:"ip_address,omitempty"`
	UserAgent       *string       `json:"user_agent,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsActive reports whether the session still accepts answers.
func (s *QuizSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Advance applies one graded answer to the progress counters.
// The level never decreases and the question counter always moves by one.
func (s *QuizSession) Advance(level int, correct bool) {
	if level > s.CurrentLevel {
		s.CurrentLevel = level
	}
	s.CurrentQuestion++
	if !correct {
		s.WrongCount++
	}
}
