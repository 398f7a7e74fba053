package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/response"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
)

// QuizHandler serves the public student endpoints.
type QuizHandler struct {
	tokens       *service.TokenService
	sessions     *service.SessionService
	answers      *service.AnswerService
	results      *service.ResultService
	requireToken bool
	log          zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(
	tokens *service.TokenService,
	sessions *service.SessionService,
	answers *service.AnswerService,
	results *service.ResultService,
	requireToken bool,
	log zerolog.Logger,
) *QuizHandler {
	return &QuizHandler{
		tokens:       tokens,
		sessions:     sessions,
		answers:      answers,
		results:      results,
		requireToken: requireToken,
		log:          log.With().Str("component", "quiz_handler").Logger(),
	}
}

// ValidateToken godoc
// GET /api/v1/quiz/validate-token?token=
// Redeems one use of an access token.
func (h *QuizHandler) ValidateToken(c *gin.Context) {
	var q model.ValidateTokenQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if strings.TrimSpace(q.Token) == "" {
		if h.requireToken {
			response.Fail(c, http.StatusBadRequest, response.ErrAccessTokenRequired)
			return
		}
		response.Success(c, http.StatusOK, model.ValidateTokenResponse{Valid: true})
		return
	}

	t, err := h.tokens.Redeem(c.Request.Context(), q.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidAccessToken)
			return
		}
		internalError(c, h.log, err, "Failed to redeem access token")
		return
	}

	response.Success(c, http.StatusOK, model.ValidateTokenResponse{
		Valid:         true,
		TokenRequired: true,
		Token:         t.TokenCode,
		TokenName:     t.TokenName,
		RemainingUses: t.RemainingUses(),
		ExpiresAt:     t.ExpiresAt,
	})
}

// StartSession godoc
// POST /api/v1/quiz/sessions
// Registers the student and opens a session, or continues the one bound to the token.
func (h *QuizHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	res, ok := h.resolve(c, req.Name, req.Class, req.School, req.Token)
	if !ok {
		return
	}

	status := http.StatusCreated
	if res.Continued {
		status = http.StatusOK
	}
	response.Success(c, status, model.StartSessionResponse{
		StudentID:    res.Student.ID,
		Name:         res.Student.FullName,
		Class:        res.Student.Class,
		School:       res.Student.School,
		SessionID:    res.Session.ID,
		SessionToken: res.Session.SessionToken,
		CurrentLevel: res.Session.CurrentLevel,
		IsNewStudent: res.IsNewStudent,
		Continued:    res.Continued,
	})
}

// SubmitAnswer godoc
// POST /api/v1/quiz/answers
// Grades one answer and advances the session.
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, ok := h.resolve(c, req.UserData.Name, req.UserData.Class, req.UserData.School, req.UserData.Token)
	if !ok {
		return
	}

	sess, ans, err := h.answers.Submit(c.Request.Context(), service.SubmitInput{
		SessionID:      res.Session.ID,
		Level:          *req.Level,
		QuestionID:     req.QuestionID,
		QuestionText:   req.QuestionText,
		SelectedAnswer: req.SelectedAnswer,
		CorrectAnswer:  req.CorrectAnswer,
		TimeTaken:      req.TimeTaken,
	})
	if err != nil {
		h.failQuiz(c, err, "Failed to record answer")
		return
	}

	response.Success(c, http.StatusCreated, model.SubmitAnswerResponse{
		AnswerID:        ans.ID,
		StudentID:       sess.StudentID,
		SessionID:       sess.ID,
		SessionToken:    sess.SessionToken,
		IsCorrect:       ans.IsCorrect,
		PointsEarned:    ans.PointsEarned,
		CurrentLevel:    sess.CurrentLevel,
		CurrentQuestion: sess.CurrentQuestion,
		WrongCount:      sess.WrongCount,
	})
}

// Complete godoc
// POST /api/v1/quiz/complete
// Writes the session summary once. Repeated calls return the stored summary.
func (h *QuizHandler) Complete(c *gin.Context) {
	var req model.CompleteQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.results.Finalize(c.Request.Context(), service.FinalizeInput{
		SessionToken: req.SessionToken,
		SessionID:    req.SessionID,
		Status:       req.Status,
	})
	if err != nil {
		h.failQuiz(c, err, "Failed to finalize quiz")
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	response.Success(c, status, model.CompleteQuizResponse{Summary: res.Summary, Duplicate: res.Duplicate})
}

func (h *QuizHandler) resolve(c *gin.Context, name, class, school, token string) (*service.Resolution, bool) {
	res, err := h.sessions.Resolve(c.Request.Context(), service.ResolveInput{
		Name:      name,
		Class:     class,
		School:    school,
		Token:     token,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.failQuiz(c, err, "Failed to resolve quiz session")
		return nil, false
	}
	return res, true
}

// failQuiz maps quiz service errors onto HTTP responses.
func (h *QuizHandler) failQuiz(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"request": err.Error()})
	case errors.Is(err, service.ErrAccessTokenRequired):
		response.Fail(c, http.StatusBadRequest, response.ErrAccessTokenRequired)
	case errors.Is(err, service.ErrInvalidToken):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAccessToken)
	case errors.Is(err, service.ErrInvalidStatus):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidQuizStatus)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrSessionClosed):
		response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
	default:
		internalError(c, h.log, err, msg)
	}
}
