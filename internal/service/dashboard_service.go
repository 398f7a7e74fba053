package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ump-quiz/quiz-backend/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardWindow    = 30 * 24 * time.Hour
	dashboardTrendDays = 7
	analyticsDays      = 7
	analyticsWeeks     = 4
	topSchoolsLimit    = 10
)

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo DashboardStore
	now  func() time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardStore) *DashboardService {
	return &DashboardService{repo: repo, now: time.Now}
}

// GetStats fetches every dashboard section concurrently.
func (s *DashboardService) GetStats(ctx context.Context) (*model.DashboardStats, error) {
	now := s.now()
	since := now.Add(-dashboardWindow)
	stats := &model.DashboardStats{GeneratedAt: now.UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := s.repo.GetOverview(gctx, since)
		if err != nil {
			return fmt.Errorf("overview: %w", err)
		}
		stats.Overview = *o
		return nil
	})
	g.Go(func() error {
		d, err := s.repo.GetLevelDistribution(gctx, since)
		if err != nil {
			return fmt.Errorf("level distribution: %w", err)
		}
		stats.LevelDistribution = d
		return nil
	})
	g.Go(func() error {
		t, err := s.repo.GetTopSchools(gctx, since, topSchoolsLimit)
		if err != nil {
			return fmt.Errorf("top schools: %w", err)
		}
		stats.TopSchools = t
		return nil
	})
	g.Go(func() error {
		d, err := s.repo.GetDailyStats(gctx, dashboardTrendDays)
		if err != nil {
			return fmt.Errorf("daily trend: %w", err)
		}
		stats.DailyTrend = d
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetAnalytics fetches the daily, weekly and per-level views concurrently.
func (s *DashboardService) GetAnalytics(ctx context.Context) (*model.Analytics, error) {
	now := s.now()
	out := &model.Analytics{GeneratedAt: now.UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.repo.GetDailyStats(gctx, analyticsDays)
		if err != nil {
			return fmt.Errorf("daily: %w", err)
		}
		out.Daily = d
		return nil
	})
	g.Go(func() error {
		w, err := s.repo.GetWeeklyStats(gctx, analyticsWeeks)
		if err != nil {
			return fmt.Errorf("weekly: %w", err)
		}
		out.Weekly = w
		return nil
	})
	g.Go(func() error {
		l, err := s.repo.GetLevelPerformance(gctx, now.Add(-dashboardWindow))
		if err != nil {
			return fmt.Errorf("levels: %w", err)
		}
		out.Levels = l
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
