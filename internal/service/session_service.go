package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
)

// ResolveInput identifies the caller of a quiz request.
type ResolveInput struct {
	Name      string
	Class     string
	School    string
	Token     string
	IPAddress string
	UserAgent string
}

// Resolution is the student and session a request runs against.
type Resolution struct {
	Student      *model.Student
	Session      *model.QuizSession
	IsNewStudent bool
	// Continued is true when an existing session was returned unchanged.
	Continued bool
}

// AccessChecker admits access tokens for new sessions.
type AccessChecker interface {
	CheckIssued(ctx context.Context, code string) error
}

// SessionService maps an incoming identity onto a student and a session.
type SessionService struct {
	students     StudentStore
	sessions     SessionStore
	events       EventPublisher
	access       AccessChecker
	initialLevel int
	log          zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(students StudentStore, sessions SessionStore, events EventPublisher, initialLevel int, log zerolog.Logger) *SessionService {
	if events == nil {
		events = NopPublisher{}
	}
	return &SessionService{
		students:     students,
		sessions:     sessions,
		events:       events,
		initialLevel: initialLevel,
		log:          log.With().Str("component", "session_service").Logger(),
	}
}

// RequireAccess makes Resolve refuse to open a session unless its token
// passes access. Continuing a session already bound to a token is unaffected.
func (s *SessionService) RequireAccess(access AccessChecker) *SessionService {
	s.access = access
	return s
}

// Resolve continues the session bound to in.Token when one exists. Otherwise
// it finds or creates the student and opens a fresh session for it.
func (s *SessionService) Resolve(ctx context.Context, in ResolveInput) (*Resolution, error) {
	name := strings.TrimSpace(in.Name)
	class := strings.TrimSpace(in.Class)
	school := strings.TrimSpace(in.School)
	token := strings.TrimSpace(in.Token)

	if token != "" {
		sess, err := s.sessions.GetByToken(ctx, token)
		switch {
		case err == nil:
			return s.continueSession(ctx, sess)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("lookup session by token: %w", err)
		}
	}

	if s.access != nil {
		if token == "" {
			return nil, ErrAccessTokenRequired
		}
		if err := s.access.CheckIssued(ctx, token); err != nil {
			return nil, err
		}
	}

	if name == "" || class == "" || school == "" {
		return nil, fmt.Errorf("%w: name, class and school are required", ErrValidation)
	}

	student, isNew, err := s.findOrCreateStudent(ctx, name, class, school)
	if err != nil {
		return nil, err
	}

	sess := &model.QuizSession{
		StudentID:    student.ID,
		SessionToken: token,
		CurrentLevel: s.initialLevel,
		Status:       model.SessionStatusActive,
		IPAddress:    optional(in.IPAddress),
		UserAgent:    optional(in.UserAgent),
	}
	if token == "" {
		sess.SessionToken = uuid.NewString()
	} else {
		sess.TokenUsed = &token
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		if token != "" && errors.Is(err, repository.ErrDuplicateSessionToken) {
			// Another request bound this token first; join its session.
			existing, gerr := s.sessions.GetByToken(ctx, token)
			if gerr != nil {
				return nil, fmt.Errorf("refetch session after conflict: %w", gerr)
			}
			return s.continueSession(ctx, existing)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionsResolved.WithLabelValues("created").Inc()
	s.log.Info().
		Int64("student_id", student.ID).
		Int64("session_id", sess.ID).
		Bool("new_student", isNew).
		Msg("Quiz session started")

	s.events.Publish(ctx, NewEvent(EventSessionStarted, map[string]any{
		"session_id": sess.ID,
		"student_id": student.ID,
		"name":       student.FullName,
		"class":      student.Class,
		"school":     student.School,
	}))

	return &Resolution{Student: student, Session: sess, IsNewStudent: isNew}, nil
}

func (s *SessionService) continueSession(ctx context.Context, sess *model.QuizSession) (*Resolution, error) {
	student, err := s.students.GetByID(ctx, sess.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load session student: %w", err)
	}
	metrics.SessionsResolved.WithLabelValues("continued").Inc()
	return &Resolution{Student: student, Session: sess, Continued: true}, nil
}

func (s *SessionService) findOrCreateStudent(ctx context.Context, name, class, school string) (*model.Student, bool, error) {
	student, err := s.students.FindLatest(ctx, name, class, school)
	if err == nil {
		return student, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup student: %w", err)
	}

	student = &model.Student{FullName: name, Class: class, School: school}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, false, fmt.Errorf("create student: %w", err)
	}
	return student, true, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
