package model

import (
	"fmt"
	"time"
)

// PointsPerLevel is the score multiplier of a correct answer.
const PointsPerLevel = 10

// PointsFor returns the points a graded answer earns at a level.
func PointsFor(level int, correct bool) int {
	if !correct || level <= 0 {
		return 0
	}
	return PointsPerLevel * level
}

// PlaceholderQuestionText stands in for image-only questions with no text.
func PlaceholderQuestionText(questionID string) string {
	return fmt.Sprintf("[Soal bergambar] %s", questionID)
}

// QuizAnswer is one graded answer. Rows are append-only.
type QuizAnswer struct {
	ID             int64     `json:"id"`
	SessionID      int64     `json:"session_id"`
	StudentID      int64     `json:"student_id"`
	Level          int       `json:"level"`
	QuestionID     string    `json:"question_id"`
	QuestionText   string    `json:"question_text"`
	SelectedAnswer string    `json:"selected_answer"`
	CorrectAnswer  string    `json:"correct_answer"`
	IsCorrect      bool      `json:"is_correct"`
	PointsEarned   int       `json:"points_earned"`
	TimeTaken      *int      `json:"time_taken,omitempty"`
	AnsweredAt     time.Time `json:"answered_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubmitAnswerRequest is the payload for POST /quiz/answers.
// is_correct from older clients is accepted but ignored; grading is server side.
type SubmitAnswerRequest struct {
	Level          *int     `json:"level" binding:"required,min=0,max=100"`
	QuestionID     string   `json:"question_id" binding:"required,max=100"`
	QuestionText   string   `json:"question_text" binding:"max=10000"`
	SelectedAnswer string   `json:"selected_answer" binding:"required,max=500"`
	CorrectAnswer  string   `json:"correct_answer" binding:"required,max=500"`
	IsCorrect      *bool    `json:"is_correct"`
	TimeTaken      *int     `json:"time_taken" binding:"omitempty,min=0"`
	UserData       UserData `json:"user_data" binding:"required"`
}

// SubmitAnswerResponse reports the graded answer and the new progress.
type SubmitAnswerResponse struct {
	AnswerID        int64  `json:"answer_id"`
	StudentID       int64  `json:"student_id"`
	SessionID       int64  `json:"session_id"`
	SessionToken    string `json:"session_token"`
	IsCorrect       bool   `json:"is_correct"`
	PointsEarned    int    `json:"points_earned"`
	CurrentLevel    int    `json:"current_level"`
	CurrentQuestion int    `json:"current_question"`
	WrongCount      int    `json:"wrong_count"`
}
