package learning

import (
	"context"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/analytics"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// HealthStatus is the coarse operational picture of the learning loop.
type HealthStatus struct {
	OverallHealth    string            `json:"overall_health"` // EXCELLENT, GOOD, FAIR, POOR
	PerformanceScore float64           `json:"performance_score"`
	Subsystems       map[string]string `json:"subsystems"` // ACTIVE, DEGRADED, OFFLINE
	Alerts           []string          `json:"alerts,omitempty"`
	CheckedAt        time.Time         `json:"checked_at"`
}

// GetSystemHealthStatus grades the last 24 hours. Any collaborator failure
// collapses to a POOR/OFFLINE status rather than an error, so health checks
// never fail outright.
func (s *System) GetSystemHealthStatus(ctx context.Context) *HealthStatus {
	now := time.Now()
	from := now.Add(-24 * time.Hour)

	status := &HealthStatus{
		Subsystems: map[string]string{
			"decision_tracking":   "OFFLINE",
			"feedback_collection": "OFFLINE",
			"analytics":           "OFFLINE",
		},
		CheckedAt: now,
	}

	perf, err := s.analytics.AnalyzeSystemPerformance(ctx, from, now)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		status.OverallHealth = "POOR"
		status.Alerts = append(status.Alerts, "System health check failed")
		return status
	}
	status.Subsystems["analytics"] = "ACTIVE"
	status.PerformanceScore = perf.OverallScore
	status.OverallHealth = analytics.HealthGrade(perf.OverallScore)

	errorRateOK := perf.Performance.ErrorRate < 0.10

	decisions, err := s.trail.GetDecisionTrailByType(ctx, models.DecisionAssessment, &from, &now, 1)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		status.OverallHealth = "POOR"
		status.Alerts = append(status.Alerts, "System health check failed")
		return status
	}
	status.Subsystems["decision_tracking"] = subsystemStatus(len(decisions) > 0, errorRateOK)

	feedbackStats, err := s.feedback.GetFeedbackStatistics(ctx, from, now)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		status.OverallHealth = "POOR"
		status.Alerts = append(status.Alerts, "System health check failed")
		return status
	}
	status.Subsystems["feedback_collection"] = subsystemStatus(feedbackStats.Total > 0, errorRateOK)

	if perf.Performance.ErrorRate > 0.10 {
		status.Alerts = append(status.Alerts, "Serving error rate above 10%")
	}
	if perf.Accuracy.DataAvailable && perf.Accuracy.FalsePositiveRate > 0.15 {
		status.Alerts = append(status.Alerts, "False positive rate above 15%")
	}
	if feedbackStats.RatingCount > 0 && feedbackStats.AverageRating < 3.0 {
		status.Alerts = append(status.Alerts, "Average user rating below 3.0")
	}

	return status
}

func subsystemStatus(active, errorRateOK bool) string {
	if active && errorRateOK {
		return "ACTIVE"
	}
	return "DEGRADED"
}
