package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ump-quiz/quiz-backend/internal/model"
)

type stubDashboardStore struct {
	since     []time.Time
	failOn    string
	schoolCap int
}

func (s *stubDashboardStore) fail(name string) error {
	if s.failOn == name {
		return errors.New(name + " unavailable")
	}
	return nil
}

func (s *stubDashboardStore) GetOverview(_ context.Context, since time.Time) (*model.DashboardOverview, error) {
	s.since = append(s.since, since)
	return &model.DashboardOverview{TotalParticipants: 12, ActiveTokens: 2}, s.fail("overview")
}

func (s *stubDashboardStore) GetLevelDistribution(context.Context, time.Time) ([]model.LevelCount, error) {
	return []model.LevelCount{{Level: 1, Count: 3}}, s.fail("levels")
}

func (s *stubDashboardStore) GetTopSchools(_ context.Context, _ time.Time, limit int) ([]model.SchoolRanking, error) {
	s.schoolCap = limit
	return []model.SchoolRanking{{School: "SMA 1"}}, s.fail("schools")
}

func (s *stubDashboardStore) GetDailyStats(_ context.Context, days int) ([]model.DailyStat, error) {
	return make([]model.DailyStat, days), s.fail("daily")
}

func (s *stubDashboardStore) GetWeeklyStats(_ context.Context, weeks int) ([]model.WeeklyStat, error) {
	return make([]model.WeeklyStat, weeks), s.fail("weekly")
}

func (s *stubDashboardStore) GetLevelPerformance(context.Context, time.Time) ([]model.LevelPerformance, error) {
	return []model.LevelPerformance{{Level: 1, TotalAnswers: 4, CorrectAnswers: 3, Accuracy: 75}}, s.fail("performance")
}

func TestDashboardGetStats(t *testing.T) {
	store := &stubDashboardStore{}
	svc := NewDashboardService(store)
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats returned error: %v", err)
	}
	if stats.Overview.TotalParticipants != 12 || len(stats.LevelDistribution) != 1 || len(stats.TopSchools) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stats.DailyTrend) != 7 {
		t.Fatalf("daily trend days = %d, want 7", len(stats.DailyTrend))
	}
	if store.schoolCap != 10 {
		t.Fatalf("top schools limit = %d, want 10", store.schoolCap)
	}
	if !store.since[0].Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("window start = %v", store.since[0])
	}
	if !stats.GeneratedAt.Equal(now) {
		t.Fatalf("generated_at = %v, want %v", stats.GeneratedAt, now)
	}
}

func TestDashboardGetStatsPropagatesErrors(t *testing.T) {
	svc := NewDashboardService(&stubDashboardStore{failOn: "schools"})
	if _, err := svc.GetStats(context.Background()); err == nil {
		t.Fatalf("expected error when a section fails")
	}
}

func TestDashboardGetAnalytics(t *testing.T) {
	svc := NewDashboardService(&stubDashboardStore{})

	out, err := svc.GetAnalytics(context.Background())
	if err != nil {
		t.Fatalf("GetAnalytics returned error: %v", err)
	}
	if len(out.Daily) != 7 || len(out.Weekly) != 4 || len(out.Levels) != 1 {
		t.Fatalf("analytics = %+v", out)
	}

	if _, err := NewDashboardService(&stubDashboardStore{failOn: "weekly"}).GetAnalytics(context.Background()); err == nil {
		t.Fatalf("expected error when weekly stats fail")
	}
}
