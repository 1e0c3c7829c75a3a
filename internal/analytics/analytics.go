package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type Store interface {
	ListFeedbackInRange(ctx context.Context, from, to time.Time, types []models.FeedbackType) ([]models.FeedbackRecord, error)
	ListDecisionsInRange(ctx context.Context, from, to time.Time, types []models.DecisionType) ([]models.DecisionRecord, error)
	ListDecisionsByModel(ctx context.Context, modelUsed string, from, to time.Time) ([]models.DecisionRecord, error)
}

type Metrics interface {
	GetStatistics(ctx context.Context, endpointName, metricName string, window time.Duration) ([]compute.Datapoint, error)
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Options configures where operational metrics are read from.
type Options struct {
	// MetricsEndpoint is the serving endpoint whose uptime and error metrics
	// stand in for platform availability.
	MetricsEndpoint string
}

// Analyzer derives system-level performance scores, improvement
// recommendations and progress reports from the decision trail and feedback.
type Analyzer struct {
	store   Store
	metrics Metrics
	objects ObjectStore
	opts    Options
	logger  *slog.Logger
}

func NewAnalyzer(store Store, metrics Metrics, objects ObjectStore, opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{store: store, metrics: metrics, objects: objects, opts: opts, logger: logger}
}

// Baseline values used until enough feedback has accumulated to measure the
// real rates. DataAvailable distinguishes measured values from these.
const (
	baselineAssessmentAccuracy       = 0.8
	baselineRemediationEffectiveness = 0.75
	baselineFalsePositiveRate        = 0.05
	baselineFalseNegativeRate        = 0.03

	baselineUptime             = 0.99
	baselineErrorRate          = 0.01
	baselineSatisfactionRating = 3.5

	targetProcessingTimeMS = 30
)

// AccuracyMetrics is the feedback-derived quality picture.
type AccuracyMetrics struct {
	AssessmentAccuracy       float64 `json:"assessment_accuracy"`
	RemediationEffectiveness float64 `json:"remediation_effectiveness"`
	FalsePositiveRate        float64 `json:"false_positive_rate"`
	FalseNegativeRate        float64 `json:"false_negative_rate"`
	DataAvailable            bool    `json:"data_available"`
}

// PerformanceMetrics is the operational picture.
type PerformanceMetrics struct {
	AvgProcessingTimeMS float64 `json:"avg_processing_time_ms"`
	DecisionsPerHour    float64 `json:"decisions_per_hour"`
	Uptime              float64 `json:"uptime"`
	ErrorRate           float64 `json:"error_rate"`
}

// SatisfactionMetrics summarizes system feedback ratings.
type SatisfactionMetrics struct {
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

// SystemPerformance is the full scored picture over one window.
type SystemPerformance struct {
	From         time.Time           `json:"from"`
	To           time.Time           `json:"to"`
	Accuracy     AccuracyMetrics     `json:"accuracy"`
	Performance  PerformanceMetrics  `json:"performance"`
	Satisfaction SatisfactionMetrics `json:"satisfaction"`

	AccuracyScore     float64 `json:"accuracy_score"`
	PerformanceScore  float64 `json:"performance_score"`
	SatisfactionScore float64 `json:"satisfaction_score"`
	// OverallScore is on a 0-100 scale.
	OverallScore      float64 `json:"overall_score"`
}

// AnalyzeSystemPerformance scores the system over [from, to). Accuracy falls
// back to documented baselines when the window has no feedback.
func (a *Analyzer) AnalyzeSystemPerformance(ctx context.Context, from, to time.Time) (*SystemPerformance, error) {
	feedbackRecords, err := a.store.ListFeedbackInRange(ctx, from, to, nil)
	if err != nil {
		return nil, fmt.Errorf("analyzing system performance: %w", err)
	}

	decisions, err := a.store.ListDecisionsInRange(ctx, from, to, nil)
	if err != nil {
		return nil, fmt.Errorf("analyzing system performance: %w", err)
	}

	perf := &SystemPerformance{
		From:         from,
		To:           to,
		Accuracy:     accuracyFromFeedback(feedbackRecords),
		Performance:  a.performanceFromDecisions(ctx, decisions, from, to),
		Satisfaction: satisfactionFromFeedback(feedbackRecords),
	}

	perf.AccuracyScore = 0.4*perf.Accuracy.AssessmentAccuracy +
		0.3*perf.Accuracy.RemediationEffectiveness +
		0.3*(1-perf.Accuracy.FalsePositiveRate)

	speedComponent := 1.0
	if perf.Performance.AvgProcessingTimeMS > 0 {
		speedComponent = min(1, targetProcessingTimeMS/perf.Performance.AvgProcessingTimeMS)
	}
	perf.PerformanceScore = 0.4*perf.Performance.Uptime +
		0.3*(1-perf.Performance.ErrorRate) +
		0.3*speedComponent

	perf.SatisfactionScore = perf.Satisfaction.AverageRating / 5

	perf.OverallScore = 100 * (0.5*perf.AccuracyScore +
		0.3*perf.PerformanceScore +
		0.2*perf.SatisfactionScore)

	return perf, nil
}

func accuracyFromFeedback(records []models.FeedbackRecord) AccuracyMetrics {
	var (
		assessTotal, assessCorrect     int
		remTotal, remEffective         int
		detectTotal, falsePos, falseNeg int
	)

	for _, r := range records {
		switch r.FeedbackType {
		case models.FeedbackAssessment:
			assessTotal++
			if correct, ok := r.Payload["correct"].(bool); ok && correct {
				assessCorrect++
			}
		case models.FeedbackRemediation:
			remTotal++
			if effective, ok := r.Payload["effective"].(bool); ok && effective {
				remEffective++
			}
		case models.FeedbackDetection:
			detectTotal++
			if fp, ok := r.Payload["false_positive"].(bool); ok && fp {
				falsePos++
			}
			if fn, ok := r.Payload["false_negative"].(bool); ok && fn {
				falseNeg++
			}
		}
	}

	if assessTotal == 0 && remTotal == 0 && detectTotal == 0 {
		return AccuracyMetrics{
			AssessmentAccuracy:       baselineAssessmentAccuracy,
			RemediationEffectiveness: baselineRemediationEffectiveness,
			FalsePositiveRate:        baselineFalsePositiveRate,
			FalseNegativeRate:        baselineFalseNegativeRate,
			DataAvailable:            false,
		}
	}

	m := AccuracyMetrics{
		AssessmentAccuracy:       baselineAssessmentAccuracy,
		RemediationEffectiveness: baselineRemediationEffectiveness,
		FalsePositiveRate:        baselineFalsePositiveRate,
		FalseNegativeRate:        baselineFalseNegativeRate,
		DataAvailable:            true,
	}
	if assessTotal > 0 {
		m.AssessmentAccuracy = float64(assessCorrect) / float64(assessTotal)
	}
	if remTotal > 0 {
		m.RemediationEffectiveness = float64(remEffective) / float64(remTotal)
	}
	if detectTotal > 0 {
		m.FalsePositiveRate = float64(falsePos) / float64(detectTotal)
		m.FalseNegativeRate = float64(falseNeg) / float64(detectTotal)
	}
	return m
}

func (a *Analyzer) performanceFromDecisions(ctx context.Context, decisions []models.DecisionRecord, from, to time.Time) PerformanceMetrics {
	m := PerformanceMetrics{
		Uptime:    baselineUptime,
		ErrorRate: baselineErrorRate,
	}

	if len(decisions) > 0 {
		var timeSum float64
		for _, d := range decisions {
			timeSum += d.ProcessingTimeMS
		}
		m.AvgProcessingTimeMS = timeSum / float64(len(decisions))

		hours := to.Sub(from).Hours()
		if hours > 0 {
			m.DecisionsPerHour = float64(len(decisions)) / hours
		}
	}

	if a.metrics != nil && a.opts.MetricsEndpoint != "" {
		window := to.Sub(from)
		invocations := a.sumMetric(ctx, "Invocations", window)
		errors := a.sumMetric(ctx, "Invocation4XXErrors", window) +
			a.sumMetric(ctx, "Invocation5XXErrors", window)
		if invocations > 0 {
			m.ErrorRate = errors / invocations
			m.Uptime = 1 - min(1, errors/invocations)
		}
	}

	return m
}

func (a *Analyzer) sumMetric(ctx context.Context, metricName string, window time.Duration) float64 {
	points, err := a.metrics.GetStatistics(ctx, a.opts.MetricsEndpoint, metricName, window)
	if err != nil {
		a.logger.Warn("reading operational metric", "metric", metricName, "error", err)
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Average
	}
	return sum
}

func satisfactionFromFeedback(records []models.FeedbackRecord) SatisfactionMetrics {
	var sum, count int
	for _, r := range records {
		if r.FeedbackType == models.FeedbackSystem && r.Rating > 0 {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return SatisfactionMetrics{AverageRating: baselineSatisfactionRating}
	}
	return SatisfactionMetrics{
		AverageRating: float64(sum) / float64(count),
		RatingCount:   count,
	}
}

// DailyModelMetrics is one day of a model's prediction activity.
type DailyModelMetrics struct {
	Date                string  `json:"date"`
	Predictions         int     `json:"predictions"`
	AvgConfidence       float64 `json:"avg_confidence"`
	AvgProcessingTimeMS float64 `json:"avg_processing_time_ms"`
}

// ModelTrend compares a model's first and last day of activity in a window.
type ModelTrend struct {
	ModelName           string              `json:"model_name"`
	Days                []DailyModelMetrics `json:"days"`
	ConfidenceChangePct float64             `json:"confidence_change_pct"`
	LatencyChangePct    float64             `json:"latency_change_pct"`
	TotalPredictions    int                 `json:"total_predictions"`
	Recommendations     []string            `json:"recommendations,omitempty"`
}

// AnalyzeModelPerformanceTrends buckets a model's predictions by day and
// reports first-versus-last movement.
func (a *Analyzer) AnalyzeModelPerformanceTrends(ctx context.Context, modelName string, from, to time.Time) (*ModelTrend, error) {
	records, err := a.store.ListDecisionsByModel(ctx, modelName, from, to)
	if err != nil {
		return nil, fmt.Errorf("analyzing model trends for %s: %w", modelName, err)
	}

	trend := &ModelTrend{ModelName: modelName, TotalPredictions: len(records)}
	if len(records) == 0 {
		return trend, nil
	}

	type bucket struct {
		count      int
		confidence float64
		latency    float64
	}
	daily := make(map[string]*bucket)
	for _, r := range records {
		day := r.Timestamp.UTC().Format("2006-01-02")
		b := daily[day]
		if b == nil {
			b = &bucket{}
			daily[day] = b
		}
		b.count++
		b.confidence += r.Confidence
		b.latency += r.ProcessingTimeMS
	}

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		b := daily[day]
		trend.Days = append(trend.Days, DailyModelMetrics{
			Date:                day,
			Predictions:         b.count,
			AvgConfidence:       b.confidence / float64(b.count),
			AvgProcessingTimeMS: b.latency / float64(b.count),
		})
	}

	first := trend.Days[0]
	last := trend.Days[len(trend.Days)-1]
	if first.AvgConfidence > 0 {
		trend.ConfidenceChangePct = 100 * (last.AvgConfidence - first.AvgConfidence) / first.AvgConfidence
	}
	if first.AvgProcessingTimeMS > 0 {
		trend.LatencyChangePct = 100 * (last.AvgProcessingTimeMS - first.AvgProcessingTimeMS) / first.AvgProcessingTimeMS
	}

	if trend.ConfidenceChangePct < -5 {
		trend.Recommendations = append(trend.Recommendations,
			"Prediction confidence is declining; schedule retraining with recent data")
	}
	if trend.LatencyChangePct > 20 {
		trend.Recommendations = append(trend.Recommendations,
			"Prediction latency is rising; review endpoint capacity")
	}

	return trend, nil
}
