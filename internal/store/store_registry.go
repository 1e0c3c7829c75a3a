package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// RegisterModelVersion stores a newly promoted model. Versions are immutable
// once registered.
func (s *Store) RegisterModelVersion(ctx context.Context, version *models.ModelVersion) error {
	query := `
		INSERT INTO model_versions (
			id, model_name, version, task_type, algorithm, metrics,
			approval_status, artifacts_url, registered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	if version.RegisteredAt.IsZero() {
		version.RegisteredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		version.ID, version.ModelName, version.Version, version.TaskType,
		version.Algorithm, version.Metrics, version.ApprovalStatus,
		version.ArtifactsURL, version.RegisteredAt,
	)
	return err
}

func (s *Store) ListModelVersions(ctx context.Context, taskType *models.TaskType) ([]models.ModelVersion, error) {
	query := `SELECT * FROM model_versions`
	args := make([]interface{}, 0)

	if taskType != nil {
		query += " WHERE task_type = $1"
		args = append(args, *taskType)
	}
	query += " ORDER BY registered_at DESC"

	var versions []models.ModelVersion
	err := s.db.SelectContext(ctx, &versions, query, args...)
	return versions, err
}

func (s *Store) GetModelVersion(ctx context.Context, modelName, version string) (*models.ModelVersion, error) {
	var mv models.ModelVersion
	query := `SELECT * FROM model_versions WHERE model_name = $1 AND version = $2`
	err := s.db.GetContext(ctx, &mv, query, modelName, version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &mv, err
}

func (s *Store) CreateDeployment(ctx context.Context, record *models.DeploymentRecord) error {
	query := `
		INSERT INTO deployments (
			id, model_name, model_version, endpoint_name, status,
			validation_results, error_message, deployed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.DeployedAt.IsZero() {
		record.DeployedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.ModelName, record.ModelVersion, record.EndpointName,
		record.Status, record.ValidationResults, record.ErrorMessage, record.DeployedAt,
	)
	return err
}

func (s *Store) UpdateDeployment(ctx context.Context, record *models.DeploymentRecord) error {
	query := `
		UPDATE deployments
		SET status = $1, validation_results = $2, error_message = $3
		WHERE id = $4
	`
	_, err := s.db.ExecContext(ctx, query,
		record.Status, record.ValidationResults, record.ErrorMessage, record.ID,
	)
	return err
}

func (s *Store) ListDeploymentsByEndpoint(ctx context.Context, endpointName string) ([]models.DeploymentRecord, error) {
	var records []models.DeploymentRecord
	query := `SELECT * FROM deployments WHERE endpoint_name = $1 ORDER BY deployed_at DESC`
	err := s.db.SelectContext(ctx, &records, query, endpointName)
	return records, err
}

// ListActiveEndpoints returns the endpoints with at least one successful
// deployment, for drift monitoring sweeps.
func (s *Store) ListActiveEndpoints(ctx context.Context) ([]string, error) {
	var endpoints []string
	query := `SELECT DISTINCT endpoint_name FROM deployments WHERE status = 'SUCCESS' ORDER BY endpoint_name`
	err := s.db.SelectContext(ctx, &endpoints, query)
	return endpoints, err
}

func (s *Store) CreateSchedule(ctx context.Context, schedule *models.RetrainingSchedule) error {
	query := `
		INSERT INTO retraining_schedules (
			id, task_type, frequency, pipeline_config, next_execution,
			enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		schedule.ID, schedule.TaskType, schedule.Frequency, schedule.PipelineConfig,
		schedule.NextExecution, schedule.Enabled, schedule.CreatedAt, schedule.UpdatedAt,
	)
	return err
}

func (s *Store) GetSchedule(ctx context.Context, id uuid.UUID) (*models.RetrainingSchedule, error) {
	var schedule models.RetrainingSchedule
	query := `SELECT * FROM retraining_schedules WHERE id = $1`
	err := s.db.GetContext(ctx, &schedule, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &schedule, err
}

func (s *Store) ListActiveSchedules(ctx context.Context) ([]models.RetrainingSchedule, error) {
	var schedules []models.RetrainingSchedule
	query := `SELECT * FROM retraining_schedules WHERE enabled = true ORDER BY next_execution ASC`
	err := s.db.SelectContext(ctx, &schedules, query)
	return schedules, err
}

func (s *Store) ListDueSchedules(ctx context.Context, now time.Time) ([]models.RetrainingSchedule, error) {
	var schedules []models.RetrainingSchedule
	query := `SELECT * FROM retraining_schedules WHERE enabled = true AND next_execution <= $1 ORDER BY next_execution ASC`
	err := s.db.SelectContext(ctx, &schedules, query, now)
	return schedules, err
}

// UpdateScheduleAfterRun records the run that just happened and the single
// recomputed pending execution time.
func (s *Store) UpdateScheduleAfterRun(ctx context.Context, id uuid.UUID, lastExecution, nextExecution time.Time) error {
	query := `
		UPDATE retraining_schedules
		SET last_execution = $1, next_execution = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := s.db.ExecContext(ctx, query, lastExecution, nextExecution, time.Now(), id)
	return err
}

func (s *Store) SetScheduleEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	query := `UPDATE retraining_schedules SET enabled = $1, updated_at = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, enabled, time.Now(), id)
	return err
}

func (s *Store) CreateExecution(ctx context.Context, exec *models.PipelineExecution) error {
	query := `
		INSERT INTO pipeline_executions (
			pipeline_id, task_type, training_result, deployment_result,
			overall_status, error_message, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if exec.StartedAt.IsZero() {
		exec.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		exec.PipelineID, exec.TaskType, exec.TrainingResult, exec.DeploymentResult,
		exec.OverallStatus, exec.ErrorMessage, exec.StartedAt, exec.CompletedAt,
	)
	return err
}

func (s *Store) GetExecution(ctx context.Context, pipelineID string) (*models.PipelineExecution, error) {
	var exec models.PipelineExecution
	query := `SELECT * FROM pipeline_executions WHERE pipeline_id = $1`
	err := s.db.GetContext(ctx, &exec, query, pipelineID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &exec, err
}

func (s *Store) ListExecutions(ctx context.Context, taskType *models.TaskType, limit int) ([]models.PipelineExecution, error) {
	query := `SELECT * FROM pipeline_executions`
	args := make([]interface{}, 0)
	argIdx := 1

	if taskType != nil {
		query += fmt.Sprintf(" WHERE task_type = $%d", argIdx)
		args = append(args, *taskType)
		argIdx++
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	var execs []models.PipelineExecution
	err := s.db.SelectContext(ctx, &execs, query, args...)
	return execs, err
}
