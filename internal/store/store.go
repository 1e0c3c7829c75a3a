package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type Store struct {
	db *sqlx.DB
}

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

func New(cfg Config) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateFinding(ctx context.Context, finding *models.Finding) error {
	query := `
		INSERT INTO findings (id, resource_arn, finding_type, severity, description, raw_payload, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if finding.ID == uuid.Nil {
		finding.ID = uuid.New()
	}
	if finding.DetectedAt.IsZero() {
		finding.DetectedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		finding.ID, finding.ResourceARN, finding.FindingType, finding.Severity,
		finding.Description, finding.RawPayload, finding.DetectedAt,
	)
	return err
}

func (s *Store) GetFinding(ctx context.Context, id uuid.UUID) (*models.Finding, error) {
	var finding models.Finding
	query := `SELECT * FROM findings WHERE id = $1`
	err := s.db.GetContext(ctx, &finding, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &finding, err
}

func (s *Store) ListFindingsInRange(ctx context.Context, from, to time.Time) ([]models.Finding, error) {
	var findings []models.Finding
	query := `SELECT * FROM findings WHERE detected_at >= $1 AND detected_at < $2 ORDER BY detected_at ASC`
	err := s.db.SelectContext(ctx, &findings, query, from, to)
	return findings, err
}

func (s *Store) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	query := `
		INSERT INTO assessments (
			id, finding_id, risk_score, confidence_score, legal_mappings,
			recommendations, reasoning, assessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if assessment.ID == uuid.Nil {
		assessment.ID = uuid.New()
	}
	if assessment.AssessedAt.IsZero() {
		assessment.AssessedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		assessment.ID, assessment.FindingID, assessment.RiskScore, assessment.ConfidenceScore,
		assessment.LegalMappings, assessment.Recommendations, assessment.Reasoning, assessment.AssessedAt,
	)
	return err
}

func (s *Store) GetAssessmentByFinding(ctx context.Context, findingID uuid.UUID) (*models.Assessment, error) {
	var assessment models.Assessment
	query := `SELECT * FROM assessments WHERE finding_id = $1 ORDER BY assessed_at DESC LIMIT 1`
	err := s.db.GetContext(ctx, &assessment, query, findingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &assessment, err
}

func (s *Store) ListAssessmentsInRange(ctx context.Context, from, to time.Time) ([]models.Assessment, error) {
	var assessments []models.Assessment
	query := `SELECT * FROM assessments WHERE assessed_at >= $1 AND assessed_at < $2 ORDER BY assessed_at ASC`
	err := s.db.SelectContext(ctx, &assessments, query, from, to)
	return assessments, err
}

func (s *Store) CreateRemediationResult(ctx context.Context, result *models.RemediationResult) error {
	query := `
		INSERT INTO remediation_results (id, finding_id, action, outcome, rollback_available, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.ExecutedAt.IsZero() {
		result.ExecutedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		result.ID, result.FindingID, result.Action, result.Outcome,
		result.RollbackAvailable, result.ExecutedAt,
	)
	return err
}

func (s *Store) ListRemediationResultsInRange(ctx context.Context, from, to time.Time) ([]models.RemediationResult, error) {
	var results []models.RemediationResult
	query := `SELECT * FROM remediation_results WHERE executed_at >= $1 AND executed_at < $2 ORDER BY executed_at ASC`
	err := s.db.SelectContext(ctx, &results, query, from, to)
	return results, err
}
