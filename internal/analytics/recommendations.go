package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Recommendation is one suggested improvement, prioritized and sized.
type Recommendation struct {
	Priority       string `json:"priority"` // HIGH, MEDIUM, LOW
	Category       string `json:"category"`
	Description    string `json:"description"`
	ExpectedImpact string `json:"expected_impact"`
	Effort         string `json:"effort"` // LOW, MEDIUM, HIGH
}

// ImprovementPlan is the prioritized recommendation set with quick wins and
// long-term initiatives split out.
type ImprovementPlan struct {
	GeneratedAt         time.Time        `json:"generated_at"`
	Recommendations     []Recommendation `json:"recommendations"`
	QuickWins           []Recommendation `json:"quick_wins"`
	LongTermInitiatives []Recommendation `json:"long_term_initiatives"`
}

var priorityRank = map[string]int{"HIGH": 0, "MEDIUM": 1, "LOW": 2}

// GenerateImprovementRecommendations derives recommendations from the scored
// window. Each rule fires independently; an empty plan means the system is
// within all thresholds.
func (a *Analyzer) GenerateImprovementRecommendations(ctx context.Context, from, to time.Time) (*ImprovementPlan, error) {
	perf, err := a.AnalyzeSystemPerformance(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("generating improvement recommendations: %w", err)
	}

	plan := &ImprovementPlan{GeneratedAt: time.Now()}

	if perf.Accuracy.AssessmentAccuracy < 0.85 {
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			Priority: "HIGH",
			Category: "model_accuracy",
			Description: fmt.Sprintf(
				"Assessment accuracy is %.1f%%; retrain the risk model with recent reviewer feedback",
				100*perf.Accuracy.AssessmentAccuracy),
			ExpectedImpact: "Fewer incorrect risk assessments reaching reviewers",
			Effort:         "MEDIUM",
		})
	}

	if perf.Accuracy.FalsePositiveRate > 0.10 {
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			Priority: "HIGH",
			Category: "false_positives",
			Description: fmt.Sprintf(
				"False positive rate is %.1f%%; tighten the detection model threshold",
				100*perf.Accuracy.FalsePositiveRate),
			ExpectedImpact: "Less reviewer time wasted on non-issues",
			Effort:         "LOW",
		})
	}

	if perf.Performance.AvgProcessingTimeMS > targetProcessingTimeMS {
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			Priority: "MEDIUM",
			Category: "performance",
			Description: fmt.Sprintf(
				"Average decision processing time is %.0fms; profile the assessment path and scale serving capacity",
				perf.Performance.AvgProcessingTimeMS),
			ExpectedImpact: "Faster finding-to-assessment turnaround",
			Effort:         "HIGH",
		})
	}

	if perf.Satisfaction.RatingCount > 0 && perf.Satisfaction.AverageRating < 4.0 {
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			Priority: "MEDIUM",
			Category: "user_satisfaction",
			Description: fmt.Sprintf(
				"Average user rating is %.1f/5; review recent low-rated feedback for recurring complaints",
				perf.Satisfaction.AverageRating),
			ExpectedImpact: "Higher reviewer trust in automated decisions",
			Effort:         "MEDIUM",
		})
	}

	if perf.Performance.ErrorRate > 0.05 {
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			Priority: "HIGH",
			Category: "reliability",
			Description: fmt.Sprintf(
				"Serving error rate is %.1f%%; inspect endpoint logs and roll back if a recent deployment regressed",
				100*perf.Performance.ErrorRate),
			ExpectedImpact: "Fewer failed predictions in the decision path",
			Effort:         "LOW",
		})
	}

	sort.SliceStable(plan.Recommendations, func(i, j int) bool {
		return priorityRank[plan.Recommendations[i].Priority] < priorityRank[plan.Recommendations[j].Priority]
	})

	for _, rec := range plan.Recommendations {
		if rec.Effort == "LOW" {
			plan.QuickWins = append(plan.QuickWins, rec)
		}
		if rec.Effort == "HIGH" {
			plan.LongTermInitiatives = append(plan.LongTermInitiatives, rec)
		}
	}

	return plan, nil
}

// ProgressGoal is one tracked improvement target.
type ProgressGoal struct {
	Name      string  `json:"name"`
	TargetPct float64 `json:"target_pct"`
	ActualPct float64 `json:"actual_pct"`
	Achieved  bool    `json:"achieved"`
}

// ProgressReport compares two seven-day windows ending at the baseline and
// current dates.
type ProgressReport struct {
	BaselineDate time.Time `json:"baseline_date"`
	CurrentDate  time.Time `json:"current_date"`

	Baseline *SystemPerformance `json:"baseline"`
	Current  *SystemPerformance `json:"current"`

	AccuracyChangePct     float64 `json:"accuracy_change_pct"`
	SpeedChangePct        float64 `json:"speed_change_pct"`
	SatisfactionChangePct float64 `json:"satisfaction_change_pct"`

	Goals     []ProgressGoal `json:"goals"`
	NewIssues []string       `json:"new_issues,omitempty"`
}

// TrackImprovementProgress measures movement between the week before
// baselineDate and the week before currentDate.
func (a *Analyzer) TrackImprovementProgress(ctx context.Context, baselineDate, currentDate time.Time) (*ProgressReport, error) {
	baseline, err := a.AnalyzeSystemPerformance(ctx, baselineDate.AddDate(0, 0, -7), baselineDate)
	if err != nil {
		return nil, fmt.Errorf("tracking improvement progress: %w", err)
	}
	current, err := a.AnalyzeSystemPerformance(ctx, currentDate.AddDate(0, 0, -7), currentDate)
	if err != nil {
		return nil, fmt.Errorf("tracking improvement progress: %w", err)
	}

	report := &ProgressReport{
		BaselineDate: baselineDate,
		CurrentDate:  currentDate,
		Baseline:     baseline,
		Current:      current,
	}

	if baseline.Accuracy.AssessmentAccuracy > 0 {
		report.AccuracyChangePct = 100 *
			(current.Accuracy.AssessmentAccuracy - baseline.Accuracy.AssessmentAccuracy) /
			baseline.Accuracy.AssessmentAccuracy
	}
	// Speed improves when processing time drops.
	if baseline.Performance.AvgProcessingTimeMS > 0 && current.Performance.AvgProcessingTimeMS > 0 {
		report.SpeedChangePct = 100 *
			(baseline.Performance.AvgProcessingTimeMS - current.Performance.AvgProcessingTimeMS) /
			baseline.Performance.AvgProcessingTimeMS
	}
	if baseline.Satisfaction.AverageRating > 0 {
		report.SatisfactionChangePct = 100 *
			(current.Satisfaction.AverageRating - baseline.Satisfaction.AverageRating) /
			baseline.Satisfaction.AverageRating
	}

	report.Goals = []ProgressGoal{
		{Name: "assessment_accuracy", TargetPct: 5, ActualPct: report.AccuracyChangePct,
			Achieved: report.AccuracyChangePct >= 5},
		{Name: "processing_speed", TargetPct: 20, ActualPct: report.SpeedChangePct,
			Achieved: report.SpeedChangePct >= 20},
		{Name: "user_satisfaction", TargetPct: 10, ActualPct: report.SatisfactionChangePct,
			Achieved: report.SatisfactionChangePct >= 10},
	}

	if baseline.Performance.ErrorRate > 0 &&
		current.Performance.ErrorRate > baseline.Performance.ErrorRate*1.2 {
		report.NewIssues = append(report.NewIssues, fmt.Sprintf(
			"Error rate regressed from %.2f%% to %.2f%%",
			100*baseline.Performance.ErrorRate, 100*current.Performance.ErrorRate))
	}
	if baseline.Accuracy.FalsePositiveRate > 0 &&
		current.Accuracy.FalsePositiveRate > baseline.Accuracy.FalsePositiveRate*1.1 {
		report.NewIssues = append(report.NewIssues, fmt.Sprintf(
			"False positive rate regressed from %.2f%% to %.2f%%",
			100*baseline.Accuracy.FalsePositiveRate, 100*current.Accuracy.FalsePositiveRate))
	}

	return report, nil
}

// HealthGrade buckets an overall score into a coarse grade.
func HealthGrade(overallScore float64) string {
	switch {
	case overallScore >= 80:
		return "EXCELLENT"
	case overallScore >= 60:
		return "GOOD"
	case overallScore >= 40:
		return "FAIR"
	default:
		return "POOR"
	}
}
