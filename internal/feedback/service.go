package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type Store interface {
	CreateFeedback(ctx context.Context, record *models.FeedbackRecord) error
	ListUnprocessedFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error)
	MarkFeedbackProcessed(ctx context.Context, ids []uuid.UUID) (int, error)
	ListFeedbackInRange(ctx context.Context, from, to time.Time, types []models.FeedbackType) ([]models.FeedbackRecord, error)
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Service collects human feedback on assessments, remediations and detections,
// and hands unprocessed batches to the learning loop.
type Service struct {
	store   Store
	objects ObjectStore
	logger  *slog.Logger
}

func NewService(store Store, objects ObjectStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, objects: objects, logger: logger}
}

// AssessmentFeedback is a reviewer's verdict on one automated assessment.
type AssessmentFeedback struct {
	FindingID          uuid.UUID
	DecisionID         *uuid.UUID
	UserID             string
	Correct            bool
	CorrectedRiskScore *float64
	Comments           string
}

// RemediationFeedback reports whether an applied remediation actually fixed
// the issue.
type RemediationFeedback struct {
	FindingID   uuid.UUID
	UserID      string
	Effective   bool
	SideEffects string
	Comments    string
}

// DetectionFeedback flags a finding as a false positive, or reports issues the
// detector missed.
type DetectionFeedback struct {
	FindingID     uuid.UUID
	UserID        string
	FalsePositive bool
	FalseNegative bool
	MissedIssues  []string
	Comments      string
}

// SystemFeedback is a general satisfaction rating for the platform.
type SystemFeedback struct {
	UserID   string
	Rating   int
	Category string
	Comments string
}

func (s *Service) CollectAssessmentFeedback(ctx context.Context, fb AssessmentFeedback) (uuid.UUID, error) {
	payload := models.JSONB{
		"correct": fb.Correct,
	}
	if fb.CorrectedRiskScore != nil {
		payload["corrected_risk_score"] = *fb.CorrectedRiskScore
	}
	if fb.Comments != "" {
		payload["comments"] = fb.Comments
	}

	record := &models.FeedbackRecord{
		ID:           uuid.New(),
		FeedbackType: models.FeedbackAssessment,
		FindingID:    &fb.FindingID,
		DecisionID:   fb.DecisionID,
		UserID:       fb.UserID,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
	return s.create(ctx, record)
}

func (s *Service) CollectRemediationFeedback(ctx context.Context, fb RemediationFeedback) (uuid.UUID, error) {
	payload := models.JSONB{
		"effective": fb.Effective,
	}
	if fb.SideEffects != "" {
		payload["side_effects"] = fb.SideEffects
	}
	if fb.Comments != "" {
		payload["comments"] = fb.Comments
	}

	record := &models.FeedbackRecord{
		ID:           uuid.New(),
		FeedbackType: models.FeedbackRemediation,
		FindingID:    &fb.FindingID,
		UserID:       fb.UserID,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
	return s.create(ctx, record)
}

func (s *Service) CollectDetectionFeedback(ctx context.Context, fb DetectionFeedback) (uuid.UUID, error) {
	payload := models.JSONB{
		"false_positive": fb.FalsePositive,
		"false_negative": fb.FalseNegative,
	}
	if len(fb.MissedIssues) > 0 {
		payload["missed_issues"] = fb.MissedIssues
	}
	if fb.Comments != "" {
		payload["comments"] = fb.Comments
	}

	record := &models.FeedbackRecord{
		ID:           uuid.New(),
		FeedbackType: models.FeedbackDetection,
		FindingID:    &fb.FindingID,
		UserID:       fb.UserID,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
	return s.create(ctx, record)
}

func (s *Service) CollectSystemFeedback(ctx context.Context, fb SystemFeedback) (uuid.UUID, error) {
	if fb.Rating < 1 || fb.Rating > 5 {
		return uuid.Nil, fmt.Errorf("rating must be between 1 and 5, got %d", fb.Rating)
	}

	payload := models.JSONB{}
	if fb.Category != "" {
		payload["category"] = fb.Category
	}
	if fb.Comments != "" {
		payload["comments"] = fb.Comments
	}

	record := &models.FeedbackRecord{
		ID:           uuid.New(),
		FeedbackType: models.FeedbackSystem,
		UserID:       fb.UserID,
		Payload:      payload,
		Rating:       fb.Rating,
		CreatedAt:    time.Now(),
	}
	return s.create(ctx, record)
}

func (s *Service) create(ctx context.Context, record *models.FeedbackRecord) (uuid.UUID, error) {
	if err := s.store.CreateFeedback(ctx, record); err != nil {
		return uuid.Nil, fmt.Errorf("storing %s: %w", record.FeedbackType, err)
	}
	s.logger.Debug("feedback collected",
		"feedback_id", record.ID,
		"feedback_type", record.FeedbackType,
		"user_id", record.UserID)
	return record.ID, nil
}

// GetUnprocessedFeedback returns pending feedback, oldest first.
func (s *Service) GetUnprocessedFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	records, err := s.store.ListUnprocessedFeedback(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed feedback: %w", err)
	}
	return records, nil
}

// MarkFeedbackProcessed transitions the given feedback to processed. Ids that
// were already processed are skipped, so repeating a batch is safe. Returns
// how many records actually transitioned.
func (s *Service) MarkFeedbackProcessed(ctx context.Context, ids []uuid.UUID) (int, error) {
	n, err := s.store.MarkFeedbackProcessed(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("marking feedback processed: %w", err)
	}
	return n, nil
}

// DailyFeedbackCount is one day of the submission trend.
type DailyFeedbackCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Statistics summarizes feedback collected over a window.
type Statistics struct {
	Total            int                  `json:"total"`
	ByType           map[string]int       `json:"by_type"`
	ByUser           map[string]int       `json:"by_user"`
	AverageRating    float64              `json:"average_rating"`
	RatingCount      int                  `json:"rating_count"`
	ProcessedCount   int                  `json:"processed_count"`
	UnprocessedCount int                  `json:"unprocessed_count"`
	DailyTrend       []DailyFeedbackCount `json:"daily_trend"`
}

// GetFeedbackStatistics aggregates feedback in [from, to). The daily trend
// covers the last seven days of the window.
func (s *Service) GetFeedbackStatistics(ctx context.Context, from, to time.Time) (*Statistics, error) {
	records, err := s.store.ListFeedbackInRange(ctx, from, to, nil)
	if err != nil {
		return nil, fmt.Errorf("computing feedback statistics: %w", err)
	}

	stats := &Statistics{
		Total:  len(records),
		ByType: make(map[string]int),
		ByUser: make(map[string]int),
	}

	var ratingSum int
	daily := make(map[string]int)
	for _, r := range records {
		stats.ByType[string(r.FeedbackType)]++
		if r.UserID != "" {
			stats.ByUser[r.UserID]++
		}
		if r.Rating > 0 {
			ratingSum += r.Rating
			stats.RatingCount++
		}
		if r.Processed {
			stats.ProcessedCount++
		} else {
			stats.UnprocessedCount++
		}
		daily[r.CreatedAt.UTC().Format("2006-01-02")]++
	}

	if stats.RatingCount > 0 {
		stats.AverageRating = float64(ratingSum) / float64(stats.RatingCount)
	}

	for i := 6; i >= 0; i-- {
		day := to.AddDate(0, 0, -i).UTC().Format("2006-01-02")
		stats.DailyTrend = append(stats.DailyTrend, DailyFeedbackCount{Date: day, Count: daily[day]})
	}

	return stats, nil
}

// ExportFeedbackData writes a filtered snapshot to the object store and
// returns its key.
func (s *Service) ExportFeedbackData(ctx context.Context, from, to time.Time, types []models.FeedbackType) (string, error) {
	records, err := s.store.ListFeedbackInRange(ctx, from, to, types)
	if err != nil {
		return "", fmt.Errorf("exporting feedback data: %w", err)
	}

	snapshot := struct {
		ExportedAt time.Time               `json:"exported_at"`
		From       time.Time               `json:"from"`
		To         time.Time               `json:"to"`
		Count      int                     `json:"count"`
		Records    []models.FeedbackRecord `json:"records"`
	}{
		ExportedAt: time.Now(),
		From:       from,
		To:         to,
		Count:      len(records),
		Records:    records,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshaling feedback export: %w", err)
	}

	key := fmt.Sprintf("feedback-exports/%s.json", time.Now().UTC().Format("20060102T150405Z"))
	if err := s.objects.Put(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("exporting feedback data: %w", err)
	}

	s.logger.Info("feedback data exported", "key", key, "records", len(records))
	return key, nil
}
