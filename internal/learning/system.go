package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/analytics"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/decisiontrail"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/feedback"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// Trail is the decision audit surface the learning loop records into.
type Trail interface {
	RecordAssessmentDecision(ctx context.Context, d decisiontrail.AssessmentDecision) (uuid.UUID, error)
	RecordRemediationDecision(ctx context.Context, d decisiontrail.RemediationDecision) (uuid.UUID, error)
	GetDecisionTrailByType(ctx context.Context, decisionType models.DecisionType, from, to *time.Time, limit int) ([]models.DecisionRecord, error)
}

// Feedback is the feedback collection surface.
type Feedback interface {
	CollectAssessmentFeedback(ctx context.Context, fb feedback.AssessmentFeedback) (uuid.UUID, error)
	CollectRemediationFeedback(ctx context.Context, fb feedback.RemediationFeedback) (uuid.UUID, error)
	CollectDetectionFeedback(ctx context.Context, fb feedback.DetectionFeedback) (uuid.UUID, error)
	GetUnprocessedFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error)
	MarkFeedbackProcessed(ctx context.Context, ids []uuid.UUID) (int, error)
	GetFeedbackStatistics(ctx context.Context, from, to time.Time) (*feedback.Statistics, error)
}

// Datasets regenerates training data from accumulated feedback.
type Datasets interface {
	BuildDataset(ctx context.Context, taskType models.TaskType, from, to time.Time) (*models.DatasetVersion, error)
}

// Analytics scores the system and produces improvement guidance.
type Analytics interface {
	AnalyzeSystemPerformance(ctx context.Context, from, to time.Time) (*analytics.SystemPerformance, error)
	AnalyzeModelPerformanceTrends(ctx context.Context, modelName string, from, to time.Time) (*analytics.ModelTrend, error)
	GenerateImprovementRecommendations(ctx context.Context, from, to time.Time) (*analytics.ImprovementPlan, error)
	TrackImprovementProgress(ctx context.Context, baselineDate, currentDate time.Time) (*analytics.ProgressReport, error)
}

// System is the continuous learning loop: it records workflows, folds human
// feedback back into training data and reports on system health.
type System struct {
	trail     Trail
	feedback  Feedback
	datasets  Datasets
	analytics Analytics
	logger    *slog.Logger
}

func NewSystem(trail Trail, fb Feedback, datasets Datasets, an Analytics, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{trail: trail, feedback: fb, datasets: datasets, analytics: an, logger: logger}
}

// WorkflowRecord is one completed assessment workflow: the finding, its
// assessment and the recommended remediations.
type WorkflowRecord struct {
	Finding          *models.Finding
	Assessment       *models.Assessment
	ModelUsed        string
	ProcessingTimeMS float64
}

// WorkflowTrail holds the decision trail ids written for one workflow.
type WorkflowTrail struct {
	AssessmentTrailID   uuid.UUID   `json:"assessment_trail_id"`
	RemediationTrailIDs []uuid.UUID `json:"remediation_trail_ids"`
}

// RecordComplianceWorkflow writes one assessment decision plus one
// remediation decision per recommendation to the trail.
func (s *System) RecordComplianceWorkflow(ctx context.Context, w WorkflowRecord) (*WorkflowTrail, error) {
	if w.Finding == nil || w.Assessment == nil {
		return nil, fmt.Errorf("workflow requires both finding and assessment")
	}

	assessmentID, err := s.trail.RecordAssessmentDecision(ctx, decisiontrail.AssessmentDecision{
		Finding:          w.Finding,
		Assessment:       w.Assessment,
		ModelUsed:        w.ModelUsed,
		ProcessingTimeMS: w.ProcessingTimeMS,
	})
	if err != nil {
		return nil, fmt.Errorf("recording compliance workflow: %w", err)
	}

	trail := &WorkflowTrail{AssessmentTrailID: assessmentID}
	for _, rec := range w.Assessment.Recommendations {
		remediationID, err := s.trail.RecordRemediationDecision(ctx, decisiontrail.RemediationDecision{
			FindingID:      w.Finding.ID,
			Recommendation: rec,
			ModelUsed:      w.ModelUsed,
		})
		if err != nil {
			return nil, fmt.Errorf("recording compliance workflow: %w", err)
		}
		trail.RemediationTrailIDs = append(trail.RemediationTrailIDs, remediationID)
	}

	s.logger.Debug("compliance workflow recorded",
		"finding_id", w.Finding.ID,
		"remediation_decisions", len(trail.RemediationTrailIDs))

	return trail, nil
}

// WorkflowFeedback bundles the feedback a reviewer gives after a workflow.
// Assessment feedback is required; the other sections are optional and
// independent.
type WorkflowFeedback struct {
	Assessment  *feedback.AssessmentFeedback
	Remediation *feedback.RemediationFeedback
	Detection   *feedback.DetectionFeedback
}

// WorkflowFeedbackIDs holds the stored feedback ids for one workflow.
type WorkflowFeedbackIDs struct {
	AssessmentFeedbackID  uuid.UUID  `json:"assessment_feedback_id"`
	RemediationFeedbackID *uuid.UUID `json:"remediation_feedback_id,omitempty"`
	DetectionFeedbackID   *uuid.UUID `json:"detection_feedback_id,omitempty"`
}

func (s *System) CollectWorkflowFeedback(ctx context.Context, wf WorkflowFeedback) (*WorkflowFeedbackIDs, error) {
	if wf.Assessment == nil {
		return nil, fmt.Errorf("workflow feedback requires the assessment section")
	}

	assessmentID, err := s.feedback.CollectAssessmentFeedback(ctx, *wf.Assessment)
	if err != nil {
		return nil, fmt.Errorf("collecting workflow feedback: %w", err)
	}
	ids := &WorkflowFeedbackIDs{AssessmentFeedbackID: assessmentID}

	if wf.Remediation != nil {
		remediationID, err := s.feedback.CollectRemediationFeedback(ctx, *wf.Remediation)
		if err != nil {
			return nil, fmt.Errorf("collecting workflow feedback: %w", err)
		}
		ids.RemediationFeedbackID = &remediationID
	}

	if wf.Detection != nil {
		detectionID, err := s.feedback.CollectDetectionFeedback(ctx, *wf.Detection)
		if err != nil {
			return nil, fmt.Errorf("collecting workflow feedback: %w", err)
		}
		ids.DetectionFeedbackID = &detectionID
	}

	return ids, nil
}

// LearningResult summarizes one feedback processing pass.
type LearningResult struct {
	ProcessedFeedbackCount     int                        `json:"processed_feedback_count"`
	TrainingDataGenerated      bool                       `json:"training_data_generated"`
	DatasetKeys                []string                   `json:"dataset_keys,omitempty"`
	ImprovementRecommendations []analytics.Recommendation `json:"improvement_recommendations,omitempty"`
}

// ProcessFeedbackForLearning drains pending feedback into new training data.
// An empty pending batch is a no-op: no datasets, no recommendations, nothing
// marked.
func (s *System) ProcessFeedbackForLearning(ctx context.Context) (*LearningResult, error) {
	pending, err := s.feedback.GetUnprocessedFeedback(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("processing feedback for learning: %w", err)
	}
	if len(pending) == 0 {
		return &LearningResult{}, nil
	}

	now := time.Now()
	result := &LearningResult{}

	// Regenerate datasets over the last 30 days so the new feedback labels
	// are folded in.
	for _, task := range []models.TaskType{models.TaskRiskPrediction, models.TaskFalsePositive} {
		version, err := s.datasets.BuildDataset(ctx, task, now.AddDate(0, 0, -30), now)
		if err != nil {
			s.logger.Warn("regenerating dataset from feedback", "task_type", task, "error", err)
			continue
		}
		result.DatasetKeys = append(result.DatasetKeys, version.Key)
	}
	result.TrainingDataGenerated = len(result.DatasetKeys) > 0

	plan, err := s.analytics.GenerateImprovementRecommendations(ctx, now.AddDate(0, 0, -30), now)
	if err != nil {
		return nil, fmt.Errorf("processing feedback for learning: %w", err)
	}
	for _, rec := range plan.Recommendations {
		if rec.Priority == "HIGH" {
			result.ImprovementRecommendations = append(result.ImprovementRecommendations, rec)
		}
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, fb := range pending {
		ids = append(ids, fb.ID)
	}
	processed, err := s.feedback.MarkFeedbackProcessed(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("processing feedback for learning: %w", err)
	}
	result.ProcessedFeedbackCount = processed

	s.logger.Info("feedback processed for learning",
		"processed", processed,
		"datasets", len(result.DatasetKeys),
		"high_priority_recommendations", len(result.ImprovementRecommendations))

	return result, nil
}

// LearningInsights is the combined periodic learning picture.
type LearningInsights struct {
	GeneratedAt         time.Time                        `json:"generated_at"`
	SystemPerformance   *analytics.SystemPerformance     `json:"system_performance"`
	ModelTrends         map[string]*analytics.ModelTrend `json:"model_trends"`
	ImprovementProgress *analytics.ProgressReport        `json:"improvement_progress"`
	FeedbackStatistics  *feedback.Statistics             `json:"feedback_statistics"`
	RecommendedActions  []analytics.Recommendation       `json:"recommended_actions,omitempty"`
}

// GenerateLearningInsights assembles performance, per-model trends, progress
// against a 30-day baseline and feedback statistics for one window.
func (s *System) GenerateLearningInsights(ctx context.Context, from, to time.Time) (*LearningInsights, error) {
	perf, err := s.analytics.AnalyzeSystemPerformance(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("generating learning insights: %w", err)
	}

	trends := make(map[string]*analytics.ModelTrend)
	for _, task := range []models.TaskType{
		models.TaskRiskPrediction, models.TaskFalsePositive, models.TaskRemediationSuccess,
	} {
		name := models.ModelNameForTask(task)
		trend, err := s.analytics.AnalyzeModelPerformanceTrends(ctx, name, from, to)
		if err != nil {
			return nil, fmt.Errorf("generating learning insights: %w", err)
		}
		trends[name] = trend
	}

	progress, err := s.analytics.TrackImprovementProgress(ctx, to.AddDate(0, 0, -30), to)
	if err != nil {
		return nil, fmt.Errorf("generating learning insights: %w", err)
	}

	feedbackStats, err := s.feedback.GetFeedbackStatistics(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("generating learning insights: %w", err)
	}

	plan, err := s.analytics.GenerateImprovementRecommendations(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("generating learning insights: %w", err)
	}

	return &LearningInsights{
		GeneratedAt:         time.Now(),
		SystemPerformance:   perf,
		ModelTrends:         trends,
		ImprovementProgress: progress,
		FeedbackStatistics:  feedbackStats,
		RecommendedActions:  plan.Recommendations,
	}, nil
}
