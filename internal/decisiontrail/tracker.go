package decisiontrail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// Store defines the persistence the tracker needs. All write paths are
// append-only; a decision record is never mutated or deleted once stored.
type Store interface {
	AppendDecision(ctx context.Context, record *models.DecisionRecord) error
	ListDecisionsByFinding(ctx context.Context, findingID uuid.UUID) ([]models.DecisionRecord, error)
	ListDecisionsByType(ctx context.Context, decisionType models.DecisionType, from, to *time.Time, limit int) ([]models.DecisionRecord, error)
	ListDecisionsInRange(ctx context.Context, from, to time.Time, types []models.DecisionType) ([]models.DecisionRecord, error)
}

// ObjectStore holds the large reasoning blobs and exported snapshots,
// keeping the structured record compact.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Tracker is the append-only audit log of every assessment, remediation,
// prediction and system decision.
type Tracker struct {
	store   Store
	objects ObjectStore
	logger  *slog.Logger
}

func NewTracker(store Store, objects ObjectStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, objects: objects, logger: logger}
}

// AssessmentDecision captures an automated risk assessment of one finding.
type AssessmentDecision struct {
	Finding          *models.Finding
	Assessment       *models.Assessment
	ModelUsed        string
	ProcessingTimeMS float64
}

// RemediationDecision captures one recommended remediation for a finding.
type RemediationDecision struct {
	FindingID        uuid.UUID
	Recommendation   models.RemediationRecommendation
	ModelUsed        string
	Reasoning        string
	ProcessingTimeMS float64
}

// ModelPrediction captures one raw model inference.
type ModelPrediction struct {
	FindingID        *uuid.UUID
	ModelUsed        string
	Input            models.JSONB
	Output           models.JSONB
	Confidence       float64
	ProcessingTimeMS float64
}

// SystemDecision captures an automated platform decision (promotion gates,
// schedule firings and the like).
type SystemDecision struct {
	Component string
	Action    string
	Details   models.JSONB
	Reasoning string
}

func (t *Tracker) RecordAssessmentDecision(ctx context.Context, d AssessmentDecision) (uuid.UUID, error) {
	if d.Finding == nil || d.Assessment == nil {
		return uuid.Nil, fmt.Errorf("assessment decision requires both finding and assessment")
	}

	record := &models.DecisionRecord{
		ID:           uuid.New(),
		DecisionType: models.DecisionAssessment,
		FindingID:    &d.Finding.ID,
		ModelUsed:    d.ModelUsed,
		Input: models.JSONB{
			"finding_type": d.Finding.FindingType,
			"severity":     string(d.Finding.Severity),
			"resource_arn": d.Finding.ResourceARN,
		},
		Output: models.JSONB{
			"risk_score":           d.Assessment.RiskScore,
			"confidence_score":     d.Assessment.ConfidenceScore,
			"legal_mapping_count":  len(d.Assessment.LegalMappings),
			"recommendation_count": len(d.Assessment.Recommendations),
		},
		Confidence:       d.Assessment.ConfidenceScore,
		RiskScore:        d.Assessment.RiskScore,
		ProcessingTimeMS: d.ProcessingTimeMS,
		Timestamp:        time.Now(),
	}

	if err := t.append(ctx, record, d.Assessment.Reasoning); err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

func (t *Tracker) RecordRemediationDecision(ctx context.Context, d RemediationDecision) (uuid.UUID, error) {
	record := &models.DecisionRecord{
		ID:           uuid.New(),
		DecisionType: models.DecisionRemediation,
		FindingID:    &d.FindingID,
		ModelUsed:    d.ModelUsed,
		Input: models.JSONB{
			"finding_id": d.FindingID.String(),
		},
		Output: models.JSONB{
			"action":      d.Recommendation.Action,
			"priority":    d.Recommendation.Priority,
			"automatable": d.Recommendation.Automatable,
		},
		ProcessingTimeMS: d.ProcessingTimeMS,
		Timestamp:        time.Now(),
	}

	if err := t.append(ctx, record, d.Reasoning); err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

func (t *Tracker) RecordModelPrediction(ctx context.Context, p ModelPrediction) (uuid.UUID, error) {
	record := &models.DecisionRecord{
		ID:               uuid.New(),
		DecisionType:     models.DecisionPrediction,
		FindingID:        p.FindingID,
		ModelUsed:        p.ModelUsed,
		Input:            p.Input,
		Output:           p.Output,
		Confidence:       p.Confidence,
		ProcessingTimeMS: p.ProcessingTimeMS,
		Timestamp:        time.Now(),
	}

	if err := t.append(ctx, record, ""); err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

func (t *Tracker) RecordSystemDecision(ctx context.Context, d SystemDecision) (uuid.UUID, error) {
	record := &models.DecisionRecord{
		ID:           uuid.New(),
		DecisionType: models.DecisionSystem,
		ModelUsed:    d.Component,
		Input:        models.JSONB{"component": d.Component},
		Output: models.JSONB{
			"action":  d.Action,
			"details": map[string]interface{}(d.Details),
		},
		Timestamp: time.Now(),
	}

	if err := t.append(ctx, record, d.Reasoning); err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

func (t *Tracker) append(ctx context.Context, record *models.DecisionRecord, reasoning string) error {
	if reasoning != "" {
		key := fmt.Sprintf("decision-reasoning/%s.txt", record.ID)
		if err := t.objects.Put(ctx, key, []byte(reasoning), "text/plain"); err != nil {
			return fmt.Errorf("storing decision reasoning: %w", err)
		}
		record.ReasoningRef = key
	}

	if err := t.store.AppendDecision(ctx, record); err != nil {
		return fmt.Errorf("appending decision record: %w", err)
	}

	t.logger.Debug("decision recorded",
		"decision_id", record.ID,
		"decision_type", record.DecisionType,
		"model_used", record.ModelUsed)

	return nil
}

// GetDecisionTrailForFinding returns every record referencing the finding,
// oldest first.
func (t *Tracker) GetDecisionTrailForFinding(ctx context.Context, findingID uuid.UUID) ([]models.DecisionRecord, error) {
	records, err := t.store.ListDecisionsByFinding(ctx, findingID)
	if err != nil {
		return nil, fmt.Errorf("listing decision trail for finding: %w", err)
	}
	return records, nil
}

// GetDecisionTrailByType returns filtered records, most recent first.
func (t *Tracker) GetDecisionTrailByType(ctx context.Context, decisionType models.DecisionType, from, to *time.Time, limit int) ([]models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	records, err := t.store.ListDecisionsByType(ctx, decisionType, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("listing decision trail by type: %w", err)
	}
	return records, nil
}

// ProcessingTimeStats summarizes decision processing latency.
type ProcessingTimeStats struct {
	MinMS     float64 `json:"min_ms"`
	MedianMS  float64 `json:"median_ms"`
	AverageMS float64 `json:"average_ms"`
	MaxMS     float64 `json:"max_ms"`
}

// DailyCounts is one day of the decision trend, keyed by decision type.
type DailyCounts struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

// PatternAnalysis aggregates the decision trail over a window.
type PatternAnalysis struct {
	TotalDecisions      int                 `json:"total_decisions"`
	CountsByType        map[string]int      `json:"counts_by_type"`
	AvgConfidenceByType map[string]float64  `json:"avg_confidence_by_type"`
	ModelUsage          map[string]int      `json:"model_usage"`
	ProcessingTime      ProcessingTimeStats `json:"processing_time"`
	DailyTrend          []DailyCounts       `json:"daily_trend"`
}

func (t *Tracker) AnalyzeDecisionPatterns(ctx context.Context, from, to time.Time) (*PatternAnalysis, error) {
	records, err := t.store.ListDecisionsInRange(ctx, from, to, nil)
	if err != nil {
		return nil, fmt.Errorf("analyzing decision patterns: %w", err)
	}

	analysis := &PatternAnalysis{
		TotalDecisions:      len(records),
		CountsByType:        make(map[string]int),
		AvgConfidenceByType: make(map[string]float64),
		ModelUsage:          make(map[string]int),
	}
	if len(records) == 0 {
		return analysis, nil
	}

	confidenceSums := make(map[string]float64)
	times := make([]float64, 0, len(records))
	daily := make(map[string]map[string]int)

	for _, r := range records {
		typ := string(r.DecisionType)
		analysis.CountsByType[typ]++
		confidenceSums[typ] += r.Confidence
		if r.ModelUsed != "" {
			analysis.ModelUsage[r.ModelUsed]++
		}
		times = append(times, r.ProcessingTimeMS)

		day := r.Timestamp.UTC().Format("2006-01-02")
		if daily[day] == nil {
			daily[day] = make(map[string]int)
		}
		daily[day][typ]++
	}

	for typ, sum := range confidenceSums {
		analysis.AvgConfidenceByType[typ] = sum / float64(analysis.CountsByType[typ])
	}

	sort.Float64s(times)
	var total float64
	for _, v := range times {
		total += v
	}
	analysis.ProcessingTime = ProcessingTimeStats{
		MinMS:     times[0],
		MedianMS:  median(times),
		AverageMS: total / float64(len(times)),
		MaxMS:     times[len(times)-1],
	}

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		analysis.DailyTrend = append(analysis.DailyTrend, DailyCounts{Date: day, Counts: daily[day]})
	}

	return analysis, nil
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// ExportDecisionTrail writes a filtered snapshot to the object store and
// returns its key.
func (t *Tracker) ExportDecisionTrail(ctx context.Context, from, to time.Time, types []models.DecisionType) (string, error) {
	records, err := t.store.ListDecisionsInRange(ctx, from, to, types)
	if err != nil {
		return "", fmt.Errorf("exporting decision trail: %w", err)
	}

	snapshot := struct {
		ExportedAt time.Time              `json:"exported_at"`
		From       time.Time              `json:"from"`
		To         time.Time              `json:"to"`
		Count      int                    `json:"count"`
		Records    []models.DecisionRecord `json:"records"`
	}{
		ExportedAt: time.Now(),
		From:       from,
		To:         to,
		Count:      len(records),
		Records:    records,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshaling decision trail export: %w", err)
	}

	key := fmt.Sprintf("decision-trail-exports/%s.json", time.Now().UTC().Format("20060102T150405Z"))
	if err := t.objects.Put(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("exporting decision trail: %w", err)
	}

	t.logger.Info("decision trail exported", "key", key, "records", len(records))
	return key, nil
}
