package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/analytics"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/decisiontrail"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/feedback"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type fakeTrail struct {
	assessments  []decisiontrail.AssessmentDecision
	remediations []decisiontrail.RemediationDecision
	recent       []models.DecisionRecord
	err          error
}

func (f *fakeTrail) RecordAssessmentDecision(_ context.Context, d decisiontrail.AssessmentDecision) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.assessments = append(f.assessments, d)
	return uuid.New(), nil
}

func (f *fakeTrail) RecordRemediationDecision(_ context.Context, d decisiontrail.RemediationDecision) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.remediations = append(f.remediations, d)
	return uuid.New(), nil
}

func (f *fakeTrail) GetDecisionTrailByType(_ context.Context, _ models.DecisionType, _, _ *time.Time, _ int) ([]models.DecisionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recent, nil
}

type fakeFeedback struct {
	collected []models.FeedbackType
	pending   []models.FeedbackRecord
	marked    [][]uuid.UUID
	stats     feedback.Statistics
}

func (f *fakeFeedback) CollectAssessmentFeedback(_ context.Context, _ feedback.AssessmentFeedback) (uuid.UUID, error) {
	f.collected = append(f.collected, models.FeedbackAssessment)
	return uuid.New(), nil
}

func (f *fakeFeedback) CollectRemediationFeedback(_ context.Context, _ feedback.RemediationFeedback) (uuid.UUID, error) {
	f.collected = append(f.collected, models.FeedbackRemediation)
	return uuid.New(), nil
}

func (f *fakeFeedback) CollectDetectionFeedback(_ context.Context, _ feedback.DetectionFeedback) (uuid.UUID, error) {
	f.collected = append(f.collected, models.FeedbackDetection)
	return uuid.New(), nil
}

func (f *fakeFeedback) GetUnprocessedFeedback(_ context.Context, _ int) ([]models.FeedbackRecord, error) {
	return f.pending, nil
}

func (f *fakeFeedback) MarkFeedbackProcessed(_ context.Context, ids []uuid.UUID) (int, error) {
	f.marked = append(f.marked, ids)
	return len(ids), nil
}

func (f *fakeFeedback) GetFeedbackStatistics(_ context.Context, _, _ time.Time) (*feedback.Statistics, error) {
	stats := f.stats
	return &stats, nil
}

type fakeDatasets struct {
	built []models.TaskType
	err   error
}

func (f *fakeDatasets) BuildDataset(_ context.Context, taskType models.TaskType, _, _ time.Time) (*models.DatasetVersion, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.built = append(f.built, taskType)
	return &models.DatasetVersion{Key: "training-data/" + string(taskType) + "/x"}, nil
}

type fakeAnalytics struct {
	perf    analytics.SystemPerformance
	perfErr error
	plan    analytics.ImprovementPlan
}

func (f *fakeAnalytics) AnalyzeSystemPerformance(_ context.Context, from, to time.Time) (*analytics.SystemPerformance, error) {
	if f.perfErr != nil {
		return nil, f.perfErr
	}
	perf := f.perf
	perf.From, perf.To = from, to
	return &perf, nil
}

func (f *fakeAnalytics) AnalyzeModelPerformanceTrends(_ context.Context, modelName string, _, _ time.Time) (*analytics.ModelTrend, error) {
	return &analytics.ModelTrend{ModelName: modelName}, nil
}

func (f *fakeAnalytics) GenerateImprovementRecommendations(_ context.Context, _, _ time.Time) (*analytics.ImprovementPlan, error) {
	plan := f.plan
	return &plan, nil
}

func (f *fakeAnalytics) TrackImprovementProgress(_ context.Context, baselineDate, currentDate time.Time) (*analytics.ProgressReport, error) {
	return &analytics.ProgressReport{BaselineDate: baselineDate, CurrentDate: currentDate}, nil
}

func sampleWorkflow() WorkflowRecord {
	finding := &models.Finding{
		ID:          uuid.New(),
		ResourceARN: "arn:aws:s3:::customer-data",
		FindingType: "public_bucket",
		Severity:    models.SeverityHigh,
	}
	return WorkflowRecord{
		Finding: finding,
		Assessment: &models.Assessment{
			ID:        uuid.New(),
			FindingID: finding.ID,
			RiskScore: 0.8,
			Recommendations: models.RecommendationList{
				{Action: "block_public_access", Automatable: true},
				{Action: "review_bucket_policy"},
			},
		},
		ModelUsed: "privacyguard-risk-prediction",
	}
}

func TestRecordComplianceWorkflow(t *testing.T) {
	trail := &fakeTrail{}
	system := NewSystem(trail, &fakeFeedback{}, &fakeDatasets{}, &fakeAnalytics{}, nil)

	result, err := system.RecordComplianceWorkflow(context.Background(), sampleWorkflow())
	if err != nil {
		t.Fatalf("RecordComplianceWorkflow: %v", err)
	}

	if result.AssessmentTrailID == uuid.Nil {
		t.Error("assessment trail id missing")
	}
	if len(result.RemediationTrailIDs) != 2 {
		t.Errorf("remediation trail ids = %d, want 2", len(result.RemediationTrailIDs))
	}
	if len(trail.assessments) != 1 || len(trail.remediations) != 2 {
		t.Errorf("trail writes = %d/%d, want 1/2", len(trail.assessments), len(trail.remediations))
	}
}

func TestRecordComplianceWorkflowRequiresParts(t *testing.T) {
	system := NewSystem(&fakeTrail{}, &fakeFeedback{}, &fakeDatasets{}, &fakeAnalytics{}, nil)

	w := sampleWorkflow()
	w.Assessment = nil
	if _, err := system.RecordComplianceWorkflow(context.Background(), w); err == nil {
		t.Error("expected error without assessment")
	}
}

func TestCollectWorkflowFeedbackOptionalSections(t *testing.T) {
	fb := &fakeFeedback{}
	system := NewSystem(&fakeTrail{}, fb, &fakeDatasets{}, &fakeAnalytics{}, nil)

	// Assessment only.
	ids, err := system.CollectWorkflowFeedback(context.Background(), WorkflowFeedback{
		Assessment: &feedback.AssessmentFeedback{FindingID: uuid.New(), UserID: "u1", Correct: true},
	})
	if err != nil {
		t.Fatalf("CollectWorkflowFeedback: %v", err)
	}
	if ids.RemediationFeedbackID != nil || ids.DetectionFeedbackID != nil {
		t.Error("optional sections should be nil when not supplied")
	}

	// All three sections.
	ids, err = system.CollectWorkflowFeedback(context.Background(), WorkflowFeedback{
		Assessment:  &feedback.AssessmentFeedback{FindingID: uuid.New(), UserID: "u1", Correct: true},
		Remediation: &feedback.RemediationFeedback{FindingID: uuid.New(), UserID: "u1", Effective: true},
		Detection:   &feedback.DetectionFeedback{FindingID: uuid.New(), UserID: "u1"},
	})
	if err != nil {
		t.Fatalf("CollectWorkflowFeedback: %v", err)
	}
	if ids.RemediationFeedbackID == nil || ids.DetectionFeedbackID == nil {
		t.Error("supplied optional sections should produce ids")
	}

	// Missing required assessment section.
	if _, err := system.CollectWorkflowFeedback(context.Background(), WorkflowFeedback{}); err == nil {
		t.Error("expected error without assessment feedback")
	}
}

func TestProcessFeedbackForLearningEmptyBatch(t *testing.T) {
	fb := &fakeFeedback{}
	datasets := &fakeDatasets{}
	system := NewSystem(&fakeTrail{}, fb, datasets, &fakeAnalytics{}, nil)

	result, err := system.ProcessFeedbackForLearning(context.Background())
	if err != nil {
		t.Fatalf("ProcessFeedbackForLearning: %v", err)
	}

	if result.ProcessedFeedbackCount != 0 {
		t.Errorf("processed = %d, want 0", result.ProcessedFeedbackCount)
	}
	if result.TrainingDataGenerated {
		t.Error("empty batch must not generate training data")
	}
	if len(datasets.built) != 0 {
		t.Error("empty batch must not build datasets")
	}
	if len(fb.marked) != 0 {
		t.Error("empty batch must not mark anything processed")
	}
}

func TestProcessFeedbackForLearning(t *testing.T) {
	pending := []models.FeedbackRecord{
		{ID: uuid.New(), FeedbackType: models.FeedbackAssessment},
		{ID: uuid.New(), FeedbackType: models.FeedbackDetection},
	}
	fb := &fakeFeedback{pending: pending}
	datasets := &fakeDatasets{}
	an := &fakeAnalytics{plan: analytics.ImprovementPlan{Recommendations: []analytics.Recommendation{
		{Priority: "HIGH", Category: "model_accuracy"},
		{Priority: "MEDIUM", Category: "performance"},
	}}}
	system := NewSystem(&fakeTrail{}, fb, datasets, an, nil)

	result, err := system.ProcessFeedbackForLearning(context.Background())
	if err != nil {
		t.Fatalf("ProcessFeedbackForLearning: %v", err)
	}

	if result.ProcessedFeedbackCount != 2 {
		t.Errorf("processed = %d, want 2", result.ProcessedFeedbackCount)
	}
	if !result.TrainingDataGenerated || len(result.DatasetKeys) != 2 {
		t.Errorf("datasets = %v", result.DatasetKeys)
	}
	if len(result.ImprovementRecommendations) != 1 {
		t.Errorf("recommendations = %d, want only the HIGH one", len(result.ImprovementRecommendations))
	}
	if len(fb.marked) != 1 || len(fb.marked[0]) != 2 {
		t.Errorf("marked = %v, want one batch of 2", fb.marked)
	}
}

func TestGenerateLearningInsights(t *testing.T) {
	an := &fakeAnalytics{perf: analytics.SystemPerformance{OverallScore: 72}}
	system := NewSystem(&fakeTrail{}, &fakeFeedback{}, &fakeDatasets{}, an, nil)

	insights, err := system.GenerateLearningInsights(context.Background(),
		time.Now().Add(-7*24*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("GenerateLearningInsights: %v", err)
	}

	if insights.SystemPerformance.OverallScore != 72 {
		t.Errorf("score = %f, want 72", insights.SystemPerformance.OverallScore)
	}
	if len(insights.ModelTrends) != 3 {
		t.Errorf("model trends = %d, want 3", len(insights.ModelTrends))
	}
	if _, ok := insights.ModelTrends["privacyguard-risk-prediction"]; !ok {
		t.Error("risk prediction trend missing")
	}
	if insights.ImprovementProgress == nil {
		t.Error("progress report missing")
	}
}

func TestGetSystemHealthStatus(t *testing.T) {
	now := time.Now()
	an := &fakeAnalytics{perf: analytics.SystemPerformance{
		OverallScore: 85,
		Performance:  analytics.PerformanceMetrics{ErrorRate: 0.02},
	}}
	trail := &fakeTrail{recent: []models.DecisionRecord{{ID: uuid.New(), Timestamp: now}}}
	fb := &fakeFeedback{stats: feedback.Statistics{Total: 5, RatingCount: 2, AverageRating: 4.5}}
	system := NewSystem(trail, fb, &fakeDatasets{}, an, nil)

	status := system.GetSystemHealthStatus(context.Background())

	if status.OverallHealth != "EXCELLENT" {
		t.Errorf("health = %s, want EXCELLENT", status.OverallHealth)
	}
	if status.Subsystems["decision_tracking"] != "ACTIVE" {
		t.Errorf("decision_tracking = %s, want ACTIVE", status.Subsystems["decision_tracking"])
	}
	if status.Subsystems["feedback_collection"] != "ACTIVE" {
		t.Errorf("feedback_collection = %s, want ACTIVE", status.Subsystems["feedback_collection"])
	}
	if len(status.Alerts) != 0 {
		t.Errorf("unexpected alerts: %v", status.Alerts)
	}
}

func TestGetSystemHealthStatusDegradedAndAlerts(t *testing.T) {
	an := &fakeAnalytics{perf: analytics.SystemPerformance{
		OverallScore: 45,
		Accuracy:     analytics.AccuracyMetrics{FalsePositiveRate: 0.2, DataAvailable: true},
		Performance:  analytics.PerformanceMetrics{ErrorRate: 0.15},
	}}
	// No decisions, no feedback in the last 24h.
	fb := &fakeFeedback{stats: feedback.Statistics{RatingCount: 1, AverageRating: 2.0}}
	system := NewSystem(&fakeTrail{}, fb, &fakeDatasets{}, an, nil)

	status := system.GetSystemHealthStatus(context.Background())

	if status.OverallHealth != "FAIR" {
		t.Errorf("health = %s, want FAIR", status.OverallHealth)
	}
	if status.Subsystems["decision_tracking"] != "DEGRADED" {
		t.Errorf("decision_tracking = %s, want DEGRADED", status.Subsystems["decision_tracking"])
	}
	if len(status.Alerts) != 3 {
		t.Errorf("alerts = %v, want 3", status.Alerts)
	}
}

func TestGetSystemHealthStatusCollapsesFailures(t *testing.T) {
	an := &fakeAnalytics{perfErr: errors.New("metrics store down")}
	system := NewSystem(&fakeTrail{}, &fakeFeedback{}, &fakeDatasets{}, an, nil)

	status := system.GetSystemHealthStatus(context.Background())

	if status.OverallHealth != "POOR" {
		t.Errorf("health = %s, want POOR", status.OverallHealth)
	}
	if status.Subsystems["analytics"] != "OFFLINE" {
		t.Errorf("analytics = %s, want OFFLINE", status.Subsystems["analytics"])
	}
	found := false
	for _, a := range status.Alerts {
		if a == "System health check failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("alerts = %v, want health check failure alert", status.Alerts)
	}
}
