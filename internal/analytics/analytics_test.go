package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type fakeStore struct {
	feedback  []models.FeedbackRecord
	decisions []models.DecisionRecord
}

func (f *fakeStore) ListFeedbackInRange(_ context.Context, from, to time.Time, _ []models.FeedbackType) ([]models.FeedbackRecord, error) {
	var out []models.FeedbackRecord
	for _, r := range f.feedback {
		if !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDecisionsInRange(_ context.Context, from, to time.Time, _ []models.DecisionType) ([]models.DecisionRecord, error) {
	var out []models.DecisionRecord
	for _, r := range f.decisions {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDecisionsByModel(_ context.Context, modelUsed string, from, to time.Time) ([]models.DecisionRecord, error) {
	var out []models.DecisionRecord
	for _, r := range f.decisions {
		if r.ModelUsed == modelUsed && !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeMetrics struct {
	points map[string][]compute.Datapoint
}

func (f *fakeMetrics) GetStatistics(_ context.Context, _, metricName string, _ time.Duration) ([]compute.Datapoint, error) {
	return f.points[metricName], nil
}

type fakeObjects struct {
	puts map[string][]byte
}

func (f *fakeObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[key] = data
	return nil
}

func newAnalyzer(store *fakeStore) *Analyzer {
	return NewAnalyzer(store, &fakeMetrics{}, &fakeObjects{}, Options{}, nil)
}

func assessmentFB(correct bool, at time.Time) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID: uuid.New(), FeedbackType: models.FeedbackAssessment,
		Payload: models.JSONB{"correct": correct}, CreatedAt: at,
	}
}

func detectionFB(falsePositive bool, at time.Time) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID: uuid.New(), FeedbackType: models.FeedbackDetection,
		Payload: models.JSONB{"false_positive": falsePositive, "false_negative": false}, CreatedAt: at,
	}
}

func TestAnalyzeSystemPerformanceColdStart(t *testing.T) {
	analyzer := newAnalyzer(&fakeStore{})

	perf, err := analyzer.AnalyzeSystemPerformance(context.Background(),
		time.Now().Add(-24*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("AnalyzeSystemPerformance: %v", err)
	}

	if perf.Accuracy.DataAvailable {
		t.Error("no feedback: DataAvailable must be false")
	}
	if perf.Accuracy.AssessmentAccuracy != 0.8 {
		t.Errorf("baseline accuracy = %f, want 0.8", perf.Accuracy.AssessmentAccuracy)
	}
	if perf.Accuracy.RemediationEffectiveness != 0.75 {
		t.Errorf("baseline effectiveness = %f, want 0.75", perf.Accuracy.RemediationEffectiveness)
	}
	if perf.Accuracy.FalsePositiveRate != 0.05 {
		t.Errorf("baseline fp rate = %f, want 0.05", perf.Accuracy.FalsePositiveRate)
	}
	if perf.OverallScore <= 0 || perf.OverallScore > 100 {
		t.Errorf("overall score = %f, want in (0, 100]", perf.OverallScore)
	}
}

func TestAnalyzeSystemPerformanceMeasured(t *testing.T) {
	now := time.Now()
	at := now.Add(-time.Hour)
	store := &fakeStore{
		feedback: []models.FeedbackRecord{
			assessmentFB(true, at), assessmentFB(true, at),
			assessmentFB(true, at), assessmentFB(false, at),
			detectionFB(true, at), detectionFB(false, at),
			{ID: uuid.New(), FeedbackType: models.FeedbackRemediation,
				Payload: models.JSONB{"effective": true}, CreatedAt: at},
			{ID: uuid.New(), FeedbackType: models.FeedbackSystem, Rating: 4, CreatedAt: at},
		},
		decisions: []models.DecisionRecord{
			{ID: uuid.New(), DecisionType: models.DecisionAssessment, ProcessingTimeMS: 20, Timestamp: at},
			{ID: uuid.New(), DecisionType: models.DecisionAssessment, ProcessingTimeMS: 40, Timestamp: at},
		},
	}
	analyzer := newAnalyzer(store)

	perf, err := analyzer.AnalyzeSystemPerformance(context.Background(), now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("AnalyzeSystemPerformance: %v", err)
	}

	if !perf.Accuracy.DataAvailable {
		t.Error("feedback present: DataAvailable must be true")
	}
	if perf.Accuracy.AssessmentAccuracy != 0.75 {
		t.Errorf("accuracy = %f, want 0.75", perf.Accuracy.AssessmentAccuracy)
	}
	if perf.Accuracy.FalsePositiveRate != 0.5 {
		t.Errorf("fp rate = %f, want 0.5", perf.Accuracy.FalsePositiveRate)
	}
	if perf.Accuracy.RemediationEffectiveness != 1.0 {
		t.Errorf("effectiveness = %f, want 1.0", perf.Accuracy.RemediationEffectiveness)
	}
	if perf.Performance.AvgProcessingTimeMS != 30 {
		t.Errorf("avg processing = %f, want 30", perf.Performance.AvgProcessingTimeMS)
	}
	if perf.Satisfaction.AverageRating != 4 {
		t.Errorf("rating = %f, want 4", perf.Satisfaction.AverageRating)
	}

	// accuracyScore = 0.4*0.75 + 0.3*1.0 + 0.3*0.5 = 0.75
	if got := perf.AccuracyScore; got < 0.749 || got > 0.751 {
		t.Errorf("accuracy score = %f, want 0.75", got)
	}
	// satisfactionScore = 4/5 = 0.8
	if got := perf.SatisfactionScore; got < 0.799 || got > 0.801 {
		t.Errorf("satisfaction score = %f, want 0.8", got)
	}
}

func TestHealthGradeBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "EXCELLENT"},
		{80, "EXCELLENT"},
		{79.9, "GOOD"},
		{60, "GOOD"},
		{59.9, "FAIR"},
		{40, "FAIR"},
		{39.9, "POOR"},
		{0, "POOR"},
	}
	for _, tt := range tests {
		if got := HealthGrade(tt.score); got != tt.want {
			t.Errorf("HealthGrade(%f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestGenerateImprovementRecommendations(t *testing.T) {
	now := time.Now()
	at := now.Add(-time.Hour)
	// Poor accuracy, high false positives, slow decisions, unhappy users.
	store := &fakeStore{
		feedback: []models.FeedbackRecord{
			assessmentFB(true, at), assessmentFB(false, at),
			detectionFB(true, at), detectionFB(true, at),
			{ID: uuid.New(), FeedbackType: models.FeedbackSystem, Rating: 2, CreatedAt: at},
		},
		decisions: []models.DecisionRecord{
			{ID: uuid.New(), ProcessingTimeMS: 120, Timestamp: at},
		},
	}
	analyzer := newAnalyzer(store)

	plan, err := analyzer.GenerateImprovementRecommendations(context.Background(), now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("GenerateImprovementRecommendations: %v", err)
	}

	if len(plan.Recommendations) < 4 {
		t.Fatalf("expected at least 4 recommendations, got %d", len(plan.Recommendations))
	}

	// HIGH priorities must come first.
	for i := 1; i < len(plan.Recommendations); i++ {
		if priorityRank[plan.Recommendations[i-1].Priority] > priorityRank[plan.Recommendations[i].Priority] {
			t.Error("recommendations not sorted by priority")
		}
	}

	for _, rec := range plan.QuickWins {
		if rec.Effort != "LOW" {
			t.Errorf("quick win with effort %s", rec.Effort)
		}
	}
	for _, rec := range plan.LongTermInitiatives {
		if rec.Effort != "HIGH" {
			t.Errorf("long-term initiative with effort %s", rec.Effort)
		}
	}
}

func TestGenerateImprovementRecommendationsHealthySystem(t *testing.T) {
	now := time.Now()
	at := now.Add(-time.Hour)
	store := &fakeStore{
		feedback: []models.FeedbackRecord{
			assessmentFB(true, at), assessmentFB(true, at), assessmentFB(true, at),
			{ID: uuid.New(), FeedbackType: models.FeedbackSystem, Rating: 5, CreatedAt: at},
		},
		decisions: []models.DecisionRecord{
			{ID: uuid.New(), ProcessingTimeMS: 10, Timestamp: at},
		},
	}
	analyzer := newAnalyzer(store)

	plan, err := analyzer.GenerateImprovementRecommendations(context.Background(), now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("GenerateImprovementRecommendations: %v", err)
	}
	if len(plan.Recommendations) != 0 {
		t.Errorf("healthy system produced %d recommendations: %v",
			len(plan.Recommendations), plan.Recommendations)
	}
}

func TestAnalyzeModelPerformanceTrends(t *testing.T) {
	day1 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	model := "privacyguard-risk-prediction"
	store := &fakeStore{decisions: []models.DecisionRecord{
		{ID: uuid.New(), ModelUsed: model, Confidence: 0.9, ProcessingTimeMS: 50, Timestamp: day1},
		{ID: uuid.New(), ModelUsed: model, Confidence: 0.8, ProcessingTimeMS: 50, Timestamp: day1.Add(time.Hour)},
		{ID: uuid.New(), ModelUsed: model, Confidence: 0.6, ProcessingTimeMS: 80, Timestamp: day2},
	}}
	analyzer := newAnalyzer(store)

	trend, err := analyzer.AnalyzeModelPerformanceTrends(context.Background(), model,
		day1.Add(-24*time.Hour), day2.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("AnalyzeModelPerformanceTrends: %v", err)
	}

	if trend.TotalPredictions != 3 {
		t.Errorf("total = %d, want 3", trend.TotalPredictions)
	}
	if len(trend.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(trend.Days))
	}
	// First day avg confidence 0.85, last day 0.6: about -29.4% change.
	if trend.ConfidenceChangePct > -29.0 || trend.ConfidenceChangePct < -29.9 {
		t.Errorf("confidence change = %f, want about -29.4", trend.ConfidenceChangePct)
	}
	if len(trend.Recommendations) == 0 {
		t.Error("declining confidence should produce a retraining recommendation")
	}
}

func TestTrackImprovementProgress(t *testing.T) {
	now := time.Now()
	baselineDate := now.AddDate(0, 0, -14)
	store := &fakeStore{
		feedback: []models.FeedbackRecord{
			// Baseline week: 50% accuracy.
			assessmentFB(true, baselineDate.Add(-24*time.Hour)),
			assessmentFB(false, baselineDate.Add(-25*time.Hour)),
			// Current week: 100% accuracy.
			assessmentFB(true, now.Add(-24*time.Hour)),
			assessmentFB(true, now.Add(-25*time.Hour)),
		},
	}
	analyzer := newAnalyzer(store)

	report, err := analyzer.TrackImprovementProgress(context.Background(), baselineDate, now)
	if err != nil {
		t.Fatalf("TrackImprovementProgress: %v", err)
	}

	if got := report.AccuracyChangePct; got < 99.9 || got > 100.1 {
		t.Errorf("accuracy change = %f%%, want 100%%", got)
	}
	var accuracyGoal *ProgressGoal
	for i := range report.Goals {
		if report.Goals[i].Name == "assessment_accuracy" {
			accuracyGoal = &report.Goals[i]
		}
	}
	if accuracyGoal == nil || !accuracyGoal.Achieved {
		t.Error("100% accuracy gain should achieve the 5% goal")
	}
}

func TestGeneratePerformanceReport(t *testing.T) {
	objects := &fakeObjects{}
	analyzer := NewAnalyzer(&fakeStore{}, &fakeMetrics{}, objects, Options{}, nil)

	key, err := analyzer.GeneratePerformanceReport(context.Background(),
		time.Now().Add(-7*24*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("GeneratePerformanceReport: %v", err)
	}

	if _, ok := objects.puts[key]; !ok {
		t.Errorf("JSON report not stored under %s", key)
	}
	pdfKey := key[:len(key)-len(".json")] + ".pdf"
	pdfData, ok := objects.puts[pdfKey]
	if !ok {
		t.Fatalf("PDF report not stored under %s", pdfKey)
	}
	if len(pdfData) == 0 || string(pdfData[:4]) != "%PDF" {
		t.Error("stored PDF artifact is not a PDF document")
	}
}
