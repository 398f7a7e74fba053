package model

import "time"

// ResultStatus is how a quiz attempt ended.
type ResultStatus string

const (
	ResultStatusCompleted    ResultStatus = "completed"
	ResultStatusStoppedWrong ResultStatus = "stopped_wrong"
	ResultStatusTimeout      ResultStatus = "timeout"
)

// ParseResultStatus validates a client-supplied status. Empty means completed.
func ParseResultStatus(s string) (ResultStatus, bool) {
	switch ResultStatus(s) {
	case "":
		return ResultStatusCompleted, true
	case ResultStatusCompleted, ResultStatusStoppedWrong, ResultStatusTimeout:
		return ResultStatus(s), true
	default:
		return "", false
	}
}

// SessionStatus maps a result status onto the terminal session status.
func (s ResultStatus) SessionStatus() SessionStatus {
	switch s {
	case ResultStatusStoppedWrong:
		return SessionStatusStopped
	case ResultStatusTimeout:
		return SessionStatusTimeout
	default:
		return SessionStatusCompleted
	}
}

// ResultStatusFor is the inverse of ResultStatus.SessionStatus for terminal
// session statuses.
func ResultStatusFor(s SessionStatus) (ResultStatus, bool) {
	switch s {
	case SessionStatusCompleted:
		return ResultStatusCompleted, true
	case SessionStatusStopped:
		return ResultStatusStoppedWrong, true
	case SessionStatusTimeout:
		return ResultStatusTimeout, true
	default:
		return "", false
	}
}

// QuizResultSummary is the immutable aggregate of one finished session.
// At most one exists per session.
type QuizResultSummary struct {
	ID                      int64        `json:"id"`
	StudentID               int64        `json:"student_id"`
	SessionID               int64        `json:"session_id"`
	TotalQuestions          int          `json:"total_questions"`
	CorrectAnswers          int          `json:"correct_answers"`
	WrongAnswers            int          `json:"wrong_answers"`
	TotalScore              int          `json:"total_score"`
	Percentage              float64      `json:"percentage"`
	HighestLevelReached     int          `json:"highest_level_reached"`
	TimeSpent               int          `json:"time_spent"`
	Status                  ResultStatus `json:"status"`
	TotalAvailableQuestions int          `json:"total_available_questions"`
	QuestionsAnswered       int          `json:"questions_answered"`
	CompletionRate          float64      `json:"completion_rate"`
	CompletedAt             time.Time    `json:"completed_at"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

// ResultRow is a summary joined with its student and session for admin views.
type ResultRow struct {
	QuizResultSummary
	FullName     string  `json:"full_name"`
	Class        string  `json:"class"`
	School       string  `json:"school"`
	SessionToken string  `json:"session_token"`
	TokenUsed    *string `json:"token_used,omitempty"`
}

// ResultDetail is a summary with every answer of its session.
type ResultDetail struct {
	Result  ResultRow    `json:"result"`
	Session QuizSession  `json:"session"`
	Answers []QuizAnswer `json:"answers"`
}

// ResultFilter narrows the admin results listing.
type ResultFilter struct {
	Level    *int
	School   string
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PerPage  int
}

// CompleteQuizRequest is the payload for POST /quiz/complete.
// Aggregates are always computed server side; only the session and status are read.
type CompleteQuizRequest struct {
	SessionToken string `json:"session_token" binding:"omitempty,max=255"`
	SessionID    int64  `json:"session_id" binding:"omitempty,min=1"`
	Status       string `json:"status" binding:"omitempty,oneof=completed stopped_wrong timeout"`
}

// CompleteQuizResponse carries the stored summary and whether it already existed.
type CompleteQuizResponse struct {
	Summary   *QuizResultSummary `json:"summary"`
	Duplicate bool               `json:"duplicate"`
}

// ListResultsQuery is the query of GET /admin/results.
type ListResultsQuery struct {
	Level    *int   `form:"level" binding:"omitempty,min=0"`
	School   string `form:"school" binding:"omitempty,max=255"`
	Status   string `form:"status" binding:"omitempty,oneof=completed stopped_wrong timeout"`
	DateFrom string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PerPage  int    `form:"per_page" binding:"omitempty,min=1,max=500"`
	Format   string `form:"format" binding:"omitempty,max=10"`
}
