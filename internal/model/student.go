package model

import "time"

// Student is a quiz participant identified by (full name, class, school).
// The tuple is not unique; lookups take the most recently created row.
type Student struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	Class         string    `json:"class"`
	School        string    `json:"school"`
	StudentNumber *string   `json:"student_number,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Email         *string   `json:"email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserData identifies the student inside quiz requests.
type UserData struct {
	Name   string `json:"name" binding:"required,notblank,max=255"`
	Class  string `json:"class" binding:"required,notblank,max=100"`
	School string `json:"school" binding:"required,notblank,max=255"`
	Token  string `json:"token" binding:"omitempty,max=255"`
}

// StartSessionRequest is the payload for POST /quiz/sessions.
type StartSessionRequest struct {
	Name   string `json:"name" binding:"required,notblank,max=255"`
	Class  string `json:"class" binding:"required,notblank,max=100"`
	School string `json:"school" binding:"required,notblank,max=255"`
	Token  string `json:"token" binding:"omitempty,max=255"`
}

// StartSessionResponse is returned once a session is resolved.
type StartSessionResponse struct {
	StudentID    int64  `json:"student_id"`
	Name         string `json:"name"`
	Class        string `json:"class"`
	School       string `json:"school"`
	SessionID    int64  `json:"session_id"`
	SessionToken string `json:"session_token"`
	CurrentLevel int    `json:"current_level"`
	IsNewStudent bool   `json:"is_new_student"`
	Continued    bool   `json:"continued"`
}
