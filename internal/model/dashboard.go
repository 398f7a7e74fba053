package model

import "time"

// DashboardOverview holds headline counts over the reporting window.
type DashboardOverview struct {
	TotalParticipants int     `json:"total_participants"`
	ActiveSessions    int     `json:"active_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	StoppedSessions   int     `json:"stopped_sessions"`
	TimeoutSessions   int     `json:"timeout_sessions"`
	AverageScore      float64 `json:"average_score"`
	AverageLevel      float64 `json:"average_level"`
	AveragePercentage float64 `json:"average_percentage"`
	ActiveTokens      int     `json:"active_tokens"`
}

// LevelCount is how many summaries peaked at a level.
type LevelCount struct {
	Level int `json:"level"`
	Count int `json:"count"`
}

// SchoolRanking ranks schools by average score.
type SchoolRanking struct {
	School            string  `json:"school"`
	Participants      int     `json:"participants"`
	AverageScore      float64 `json:"average_score"`
	AveragePercentage float64 `json:"average_percentage"`
}

// DailyStat is one calendar day of activity.
type DailyStat struct {
	Date         time.Time `json:"date"`
	Sessions     int       `json:"sessions"`
	Answers      int       `json:"answers"`
	AverageScore float64   `json:"average_score"`
}

// WeeklyStat is one ISO week of completions.
type WeeklyStat struct {
	Week         string  `json:"week"`
	Completions  int     `json:"completions"`
	AverageScore float64 `json:"average_score"`
}

// LevelPerformance is answer accuracy at one level.
type LevelPerformance struct {
	Level          int     `json:"level"`
	TotalAnswers   int     `json:"total_answers"`
	CorrectAnswers int     `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"`
	AveragePoints  float64 `json:"average_points"`
}

// DashboardStats is the payload of the admin dashboard and the realtime feed.
type DashboardStats struct {
	Overview          DashboardOverview `json:"overview"`
	LevelDistribution []LevelCount      `json:"level_distribution"`
	TopSchools        []SchoolRanking   `json:"top_schools"`
	DailyTrend        []DailyStat       `json:"daily_trend"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// Analytics is the payload of the admin analytics view.
type Analytics struct {
	Daily       []DailyStat        `json:"daily"`
	Weekly      []WeeklyStat       `json:"weekly"`
	Levels      []LevelPerformance `json:"levels"`
	GeneratedAt time.Time          `json:"generated_at"`
}
