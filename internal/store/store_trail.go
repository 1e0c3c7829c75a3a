package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// Decision trail rows are append-only: there is deliberately no update or
// delete path for decision_records.

func (s *Store) AppendDecision(ctx context.Context, record *models.DecisionRecord) error {
	query := `
		INSERT INTO decision_records (
			id, decision_type, finding_id, model_used, input, output,
			confidence, risk_score, processing_time_ms, reasoning_ref, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.DecisionType, record.FindingID, record.ModelUsed,
		record.Input, record.Output, record.Confidence, record.RiskScore,
		record.ProcessingTimeMS, record.ReasoningRef, record.Timestamp,
	)
	return err
}

func (s *Store) ListDecisionsByFinding(ctx context.Context, findingID uuid.UUID) ([]models.DecisionRecord, error) {
	var records []models.DecisionRecord
	query := `SELECT * FROM decision_records WHERE finding_id = $1 ORDER BY timestamp ASC`
	err := s.db.SelectContext(ctx, &records, query, findingID)
	return records, err
}

func (s *Store) ListDecisionsByType(ctx context.Context, decisionType models.DecisionType, from, to *time.Time, limit int) ([]models.DecisionRecord, error) {
	query := `SELECT * FROM decision_records WHERE decision_type = $1`
	args := []interface{}{decisionType}
	argIdx := 2

	if from != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		query += fmt.Sprintf(" AND timestamp < $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	var records []models.DecisionRecord
	err := s.db.SelectContext(ctx, &records, query, args...)
	return records, err
}

func (s *Store) ListDecisionsInRange(ctx context.Context, from, to time.Time, types []models.DecisionType) ([]models.DecisionRecord, error) {
	query := `SELECT * FROM decision_records WHERE timestamp >= $1 AND timestamp < $2`
	args := []interface{}{from, to}

	if len(types) > 0 {
		typeStrs := make([]string, 0, len(types))
		for _, t := range types {
			typeStrs = append(typeStrs, string(t))
		}
		query += " AND decision_type = ANY($3)"
		args = append(args, pq.Array(typeStrs))
	}

	query += " ORDER BY timestamp ASC"

	var records []models.DecisionRecord
	err := s.db.SelectContext(ctx, &records, query, args...)
	return records, err
}

func (s *Store) ListDecisionsByModel(ctx context.Context, modelUsed string, from, to time.Time) ([]models.DecisionRecord, error) {
	var records []models.DecisionRecord
	query := `
		SELECT * FROM decision_records
		WHERE model_used = $1 AND decision_type = $2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC
	`
	err := s.db.SelectContext(ctx, &records, query, modelUsed, models.DecisionPrediction, from, to)
	return records, err
}

func (s *Store) CreateFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	query := `
		INSERT INTO feedback_records (
			id, feedback_type, finding_id, decision_id, user_id, payload,
			rating, processed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.Processed = false

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.FeedbackType, record.FindingID, record.DecisionID,
		record.UserID, record.Payload, record.Rating, record.CreatedAt,
	)
	return err
}

func (s *Store) ListUnprocessedFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error) {
	var records []models.FeedbackRecord
	query := `SELECT * FROM feedback_records WHERE processed = false ORDER BY created_at ASC LIMIT $1`
	err := s.db.SelectContext(ctx, &records, query, limit)
	return records, err
}

// MarkFeedbackProcessed flips pending feedback to processed. Already-processed
// ids are skipped, making re-submission idempotent. Returns the number of rows
// actually transitioned.
func (s *Store) MarkFeedbackProcessed(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	idStrs := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrs = append(idStrs, id.String())
	}

	query := `
		UPDATE feedback_records
		SET processed = true, processed_at = $1
		WHERE id = ANY($2) AND processed = false
	`
	result, err := s.db.ExecContext(ctx, query, time.Now(), pq.Array(idStrs))
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	return int(affected), err
}

func (s *Store) ListFeedbackInRange(ctx context.Context, from, to time.Time, types []models.FeedbackType) ([]models.FeedbackRecord, error) {
	query := `SELECT * FROM feedback_records WHERE created_at >= $1 AND created_at < $2`
	args := []interface{}{from, to}

	if len(types) > 0 {
		typeStrs := make([]string, 0, len(types))
		for _, t := range types {
			typeStrs = append(typeStrs, string(t))
		}
		query += " AND feedback_type = ANY($3)"
		args = append(args, pq.Array(typeStrs))
	}

	query += " ORDER BY created_at ASC"

	var records []models.FeedbackRecord
	err := s.db.SelectContext(ctx, &records, query, args...)
	return records, err
}
