package service

import (
	"context"
	"time"

	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
)

// The services depend on these narrow interfaces rather than on concrete
// repositories. internal/repository satisfies them against PostgreSQL and
// internal/repository/memory satisfies them in tests.

type StudentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Student, error)
	FindLatest(ctx context.Context, fullName, class, school string) (*model.Student, error)
	Create(ctx context.Context, s *model.Student) error
}

type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.QuizSession, error)
	GetByToken(ctx context.Context, token string) (*model.QuizSession, error)
	Create(ctx context.Context, s *model.QuizSession) error
	RecordAnswer(ctx context.Context, sessionID int64, apply repository.ApplyAnswerFunc) (*model.QuizSession, *model.QuizAnswer, error)
	Close(ctx context.Context, id int64, status model.SessionStatus, at time.Time) (*model.QuizSession, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]model.QuizSession, error)
	Delete(ctx context.Context, id int64) error
}

type AnswerStore interface {
	ListBySession(ctx context.Context, sessionID int64) ([]model.QuizAnswer, error)
	ListBriefBySessions(ctx context.Context, sessionIDs []int64) (map[int64][]repository.AnswerBrief, error)
}

type ResultStore interface {
	GetBySessionID(ctx context.Context, sessionID int64) (*model.QuizResultSummary, error)
	Create(ctx context.Context, s *model.QuizResultSummary) error
	UpdateAggregates(ctx context.Context, s *model.QuizResultSummary) error
	GetRow(ctx context.Context, sessionID int64) (*model.ResultRow, error)
	List(ctx context.Context, f model.ResultFilter) ([]model.ResultRow, int, error)
}

type TokenStore interface {
	GetByCode(ctx context.Context, code string) (*model.Token, error)
	GetUsable(ctx context.Context, code string) (*model.Token, error)
	Use(ctx context.Context, code string) (*model.Token, error)
	Create(ctx context.Context, t *model.Token) error
	List(ctx context.Context) ([]model.Token, error)
	Update(ctx context.Context, t *model.Token) error
	Delete(ctx context.Context, code string) error
}

type AdminStore interface {
	GetByID(ctx context.Context, id int64) (*model.Admin, error)
	GetByUsername(ctx context.Context, username string) (*model.Admin, error)
	Create(ctx context.Context, a *model.Admin) error
	TouchLastLogin(ctx context.Context, id int64) error
}

type AdminLogStore interface {
	Insert(ctx context.Context, l *model.AdminLog) error
	BulkInsert(ctx context.Context, logs []model.AdminLog) (int64, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]model.AdminLog, int, error)
}

type DashboardStore interface {
	GetOverview(ctx context.Context, since time.Time) (*model.DashboardOverview, error)
	GetLevelDistribution(ctx context.Context, since time.Time) ([]model.LevelCount, error)
	GetTopSchools(ctx context.Context, since time.Time, limit int) ([]model.SchoolRanking, error)
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStat, error)
	GetWeeklyStats(ctx context.Context, weeks int) ([]model.WeeklyStat, error)
	GetLevelPerformance(ctx context.Context, since time.Time) ([]model.LevelPerformance, error)
}

// EventPublisher fans domain events out to the admin realtime feed.
// Publishing is best effort and never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
