package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/deployment"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/locks"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/trainingpipeline"
)

// Trainer runs one training pass.
type Trainer interface {
	Execute(ctx context.Context, cfg trainingpipeline.RunConfig) (*trainingpipeline.Result, error)
}

// Deployer rolls trained models out to serving endpoints.
type Deployer interface {
	DeployModel(ctx context.Context, cfg deployment.DeployConfig) (*models.DeploymentRecord, error)
}

// Store persists executions and retraining schedules.
type Store interface {
	CreateExecution(ctx context.Context, exec *models.PipelineExecution) error
	GetExecution(ctx context.Context, pipelineID string) (*models.PipelineExecution, error)
	ListExecutions(ctx context.Context, taskType *models.TaskType, limit int) ([]models.PipelineExecution, error)
	CreateSchedule(ctx context.Context, schedule *models.RetrainingSchedule) error
	ListActiveSchedules(ctx context.Context) ([]models.RetrainingSchedule, error)
	ListDueSchedules(ctx context.Context, now time.Time) ([]models.RetrainingSchedule, error)
	UpdateScheduleAfterRun(ctx context.Context, id uuid.UUID, lastExecution, nextExecution time.Time) error
	SetScheduleEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// Metrics reads serving metrics for drift monitoring.
type Metrics interface {
	GetStatistics(ctx context.Context, endpointName, metricName string, window time.Duration) ([]compute.Datapoint, error)
}

// Options tunes lock TTLs and drift detection.
type Options struct {
	LockTTL        time.Duration
	DriftThreshold float64
	RecentWindow   time.Duration
	BaselineWindow time.Duration
}

// Orchestrator drives the full model lifecycle: train, deploy, monitor and
// retrain on schedule. Runs are serialized per task type through the locker.
type Orchestrator struct {
	trainer  Trainer
	deployer Deployer
	store    Store
	metrics  Metrics
	locker   locks.Locker
	opts     Options
	logger   *slog.Logger
}

func New(trainer Trainer, deployer Deployer, store Store, metrics Metrics, locker locks.Locker, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = 2 * time.Hour
	}
	if opts.DriftThreshold == 0 {
		opts.DriftThreshold = 0.05
	}
	if opts.RecentWindow == 0 {
		opts.RecentWindow = 24 * time.Hour
	}
	if opts.BaselineWindow == 0 {
		opts.BaselineWindow = 7 * 24 * time.Hour
	}
	return &Orchestrator{
		trainer:  trainer,
		deployer: deployer,
		store:    store,
		metrics:  metrics,
		locker:   locker,
		opts:     opts,
		logger:   logger,
	}
}

// DeployTarget names where a freshly trained model should be served.
type DeployTarget struct {
	EndpointName  string `json:"endpoint_name"`
	InstanceType  string `json:"instance_type,omitempty"`
	InstanceCount int    `json:"instance_count,omitempty"`
	ServingImage  string `json:"serving_image,omitempty"`
}

// RunRequest describes one orchestrated pipeline run. It round-trips through
// JSON so retraining schedules can carry it as their pipeline config.
type RunRequest struct {
	TaskType        models.TaskType   `json:"task_type"`
	Algorithm       string            `json:"algorithm"`
	Window          time.Duration     `json:"window,omitempty"`
	Hyperparameters map[string]string `json:"hyperparameters,omitempty"`
	MinAccuracy     *float64          `json:"min_accuracy,omitempty"`
	MinPrecision    *float64          `json:"min_precision,omitempty"`
	MinRecall       *float64          `json:"min_recall,omitempty"`
	Deploy          *DeployTarget     `json:"deploy,omitempty"`
}

func (r *RunRequest) thresholds() trainingpipeline.Thresholds {
	return trainingpipeline.Thresholds{
		MinAccuracy:  r.MinAccuracy,
		MinPrecision: r.MinPrecision,
		MinRecall:    r.MinRecall,
	}
}

// ExecuteCompletePipeline trains and, when a model is promoted and a deploy
// target is set, deploys. Concurrent runs for the same task type are rejected
// with locks.ErrAlreadyHeld.
func (o *Orchestrator) ExecuteCompletePipeline(ctx context.Context, req RunRequest) (*models.PipelineExecution, error) {
	return o.run(ctx, req, req.Deploy != nil)
}

// ExecuteTrainingOnlyPipeline trains and registers without touching serving.
func (o *Orchestrator) ExecuteTrainingOnlyPipeline(ctx context.Context, req RunRequest) (*models.PipelineExecution, error) {
	return o.run(ctx, req, false)
}

func (o *Orchestrator) run(ctx context.Context, req RunRequest, deploy bool) (*models.PipelineExecution, error) {
	if !models.ValidTaskType(req.TaskType) {
		return nil, fmt.Errorf("invalid task type: %s", req.TaskType)
	}

	release, err := o.locker.Acquire(ctx, string(req.TaskType), o.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(ctx); err != nil {
			o.logger.Warn("releasing pipeline lock", "task_type", req.TaskType, "error", err)
		}
	}()

	started := time.Now()
	exec := &models.PipelineExecution{
		PipelineID: fmt.Sprintf("pipeline-%s-%d", req.TaskType, started.Unix()),
		TaskType:   req.TaskType,
		StartedAt:  started,
	}

	o.logger.Info("pipeline started",
		"pipeline_id", exec.PipelineID,
		"task_type", req.TaskType,
		"deploy", deploy)

	trainingResult, err := o.trainer.Execute(ctx, trainingpipeline.RunConfig{
		TaskType:        req.TaskType,
		Algorithm:       req.Algorithm,
		Window:          req.Window,
		Hyperparameters: req.Hyperparameters,
		Thresholds:      req.thresholds(),
	})
	if err != nil {
		o.finishExecution(ctx, exec, models.PipelineFailed, err.Error())
		return exec, fmt.Errorf("pipeline %s: %w", exec.PipelineID, err)
	}

	exec.TrainingResult = trainingResultJSONB(trainingResult)

	if trainingResult.TrainingStatus == models.JobFailed {
		o.finishExecution(ctx, exec, models.PipelineFailed, trainingResult.FailureReason)
		return exec, nil
	}

	if !deploy || trainingResult.ModelVersion == nil {
		o.finishExecution(ctx, exec, models.PipelineTrainingCompleted, "")
		return exec, nil
	}

	record, err := o.deployer.DeployModel(ctx, deployment.DeployConfig{
		ModelName:     trainingResult.ModelVersion.ModelName,
		ModelVersion:  trainingResult.ModelVersion.Version,
		EndpointName:  req.Deploy.EndpointName,
		TaskType:      req.TaskType,
		InstanceType:  req.Deploy.InstanceType,
		InstanceCount: req.Deploy.InstanceCount,
		ServingImage:  req.Deploy.ServingImage,
	})
	if err != nil {
		o.finishExecution(ctx, exec, models.PipelineFailed, err.Error())
		return exec, fmt.Errorf("pipeline %s: %w", exec.PipelineID, err)
	}

	exec.DeploymentResult = models.JSONB{
		"deployment_id":      record.ID.String(),
		"endpoint_name":      record.EndpointName,
		"status":             string(record.Status),
		"validation_results": map[string]interface{}(record.ValidationResults),
	}
	o.finishExecution(ctx, exec, models.PipelineDeployed, "")
	return exec, nil
}

func trainingResultJSONB(r *trainingpipeline.Result) models.JSONB {
	out := models.JSONB{
		"job_name":        r.JobName,
		"dataset_key":     r.DatasetKey,
		"training_status": string(r.TrainingStatus),
	}
	if r.FailureReason != "" {
		out["failure_reason"] = r.FailureReason
	}
	if r.Evaluation != nil {
		out["metrics"] = r.Evaluation.Metrics
		out["meets_performance_criteria"] = r.Evaluation.MeetsPerformanceCriteria
		if len(r.Evaluation.FailedCriteria) > 0 {
			out["failed_criteria"] = r.Evaluation.FailedCriteria
		}
	}
	if r.ModelVersion != nil {
		out["model_name"] = r.ModelVersion.ModelName
		out["model_version"] = r.ModelVersion.Version
	}
	return out
}

func (o *Orchestrator) finishExecution(ctx context.Context, exec *models.PipelineExecution, status models.PipelineStatus, errMsg string) {
	now := time.Now()
	exec.OverallStatus = status
	exec.ErrorMessage = errMsg
	exec.CompletedAt = &now

	if err := o.store.CreateExecution(ctx, exec); err != nil {
		o.logger.Error("recording pipeline execution",
			"pipeline_id", exec.PipelineID, "error", err)
	}

	o.logger.Info("pipeline finished",
		"pipeline_id", exec.PipelineID,
		"status", status,
		"duration", now.Sub(exec.StartedAt))
}

// PerformanceStatus is the drift verdict for one serving endpoint.
type PerformanceStatus struct {
	EndpointName          string    `json:"endpoint_name"`
	PerformanceTrend      string    `json:"performance_trend"` // improving, stable, degrading
	AccuracyDrift         float64   `json:"accuracy_drift"`
	RecentErrorRate       float64   `json:"recent_error_rate"`
	BaselineErrorRate     float64   `json:"baseline_error_rate"`
	RetrainingRecommended bool      `json:"retraining_recommended"`
	CheckedAt             time.Time `json:"checked_at"`
}

// MonitorModelPerformance compares recent accuracy against the baseline
// window and recommends retraining when drift exceeds the threshold.
func (o *Orchestrator) MonitorModelPerformance(ctx context.Context, endpointName string) (*PerformanceStatus, error) {
	recentAccuracy, err := o.avgMetric(ctx, endpointName, "ModelAccuracy", o.opts.RecentWindow)
	if err != nil {
		return nil, fmt.Errorf("monitoring endpoint %s: %w", endpointName, err)
	}
	baselineAccuracy, err := o.avgMetric(ctx, endpointName, "ModelAccuracy", o.opts.BaselineWindow)
	if err != nil {
		return nil, fmt.Errorf("monitoring endpoint %s: %w", endpointName, err)
	}

	recentErrors, err := o.errorRate(ctx, endpointName, o.opts.RecentWindow)
	if err != nil {
		return nil, fmt.Errorf("monitoring endpoint %s: %w", endpointName, err)
	}
	baselineErrors, err := o.errorRate(ctx, endpointName, o.opts.BaselineWindow)
	if err != nil {
		return nil, fmt.Errorf("monitoring endpoint %s: %w", endpointName, err)
	}

	status := &PerformanceStatus{
		EndpointName:      endpointName,
		AccuracyDrift:     recentAccuracy - baselineAccuracy,
		RecentErrorRate:   recentErrors,
		BaselineErrorRate: baselineErrors,
		CheckedAt:         time.Now(),
	}

	threshold := o.opts.DriftThreshold
	switch {
	case status.AccuracyDrift > threshold/2:
		status.PerformanceTrend = "improving"
	case status.AccuracyDrift < -threshold/2:
		status.PerformanceTrend = "degrading"
	default:
		status.PerformanceTrend = "stable"
	}

	status.RetrainingRecommended = status.AccuracyDrift < -threshold ||
		(baselineErrors > 0 && recentErrors > 2*baselineErrors)

	if status.RetrainingRecommended {
		o.logger.Warn("model drift detected",
			"endpoint", endpointName,
			"accuracy_drift", status.AccuracyDrift,
			"recent_error_rate", recentErrors)
	}

	return status, nil
}

func (o *Orchestrator) avgMetric(ctx context.Context, endpointName, metricName string, window time.Duration) (float64, error) {
	points, err := o.metrics.GetStatistics(ctx, endpointName, metricName, window)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	var sum float64
	for _, p := range points {
		sum += p.Average
	}
	return sum / float64(len(points)), nil
}

func (o *Orchestrator) errorRate(ctx context.Context, endpointName string, window time.Duration) (float64, error) {
	invocations, err := o.sumMetric(ctx, endpointName, "Invocations", window)
	if err != nil {
		return 0, err
	}
	if invocations == 0 {
		return 0, nil
	}
	errors5xx, err := o.sumMetric(ctx, endpointName, "Invocation5XXErrors", window)
	if err != nil {
		return 0, err
	}
	return errors5xx / invocations, nil
}

func (o *Orchestrator) sumMetric(ctx context.Context, endpointName, metricName string, window time.Duration) (float64, error) {
	points, err := o.metrics.GetStatistics(ctx, endpointName, metricName, window)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, p := range points {
		sum += p.Average
	}
	return sum, nil
}

// ScheduleRequest creates a recurring retraining trigger.
type ScheduleRequest struct {
	TaskType  models.TaskType
	Frequency models.ScheduleFrequency
	Run       RunRequest
}

// SchedulePeriodicRetraining stores an enabled schedule with a single pending
// execution time derived from the frequency.
func (o *Orchestrator) SchedulePeriodicRetraining(ctx context.Context, req ScheduleRequest) (*models.RetrainingSchedule, error) {
	if !models.ValidTaskType(req.TaskType) {
		return nil, fmt.Errorf("invalid task type: %s", req.TaskType)
	}

	next, err := nextExecution(time.Now(), req.Frequency)
	if err != nil {
		return nil, err
	}

	runConfig, err := json.Marshal(req.Run)
	if err != nil {
		return nil, fmt.Errorf("encoding schedule run config: %w", err)
	}
	var pipelineConfig models.JSONB
	if err := json.Unmarshal(runConfig, &pipelineConfig); err != nil {
		return nil, fmt.Errorf("encoding schedule run config: %w", err)
	}

	schedule := &models.RetrainingSchedule{
		ID:             uuid.New(),
		TaskType:       req.TaskType,
		Frequency:      req.Frequency,
		PipelineConfig: pipelineConfig,
		NextExecution:  next,
		Enabled:        true,
	}
	if err := o.store.CreateSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("creating retraining schedule: %w", err)
	}

	o.logger.Info("retraining scheduled",
		"schedule_id", schedule.ID,
		"task_type", req.TaskType,
		"frequency", req.Frequency,
		"next_execution", next)

	return schedule, nil
}

func nextExecution(after time.Time, frequency models.ScheduleFrequency) (time.Time, error) {
	switch frequency {
	case models.FrequencyDaily:
		return after.AddDate(0, 0, 1), nil
	case models.FrequencyWeekly:
		return after.AddDate(0, 0, 7), nil
	case models.FrequencyMonthly:
		return after.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("invalid schedule frequency: %s", frequency)
	}
}

// SetScheduleEnabled pauses or resumes a schedule.
func (o *Orchestrator) SetScheduleEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	if err := o.store.SetScheduleEnabled(ctx, id, enabled); err != nil {
		return fmt.Errorf("updating schedule %s: %w", id, err)
	}
	return nil
}

// GetActiveRetrainingSchedules lists enabled schedules, soonest first.
func (o *Orchestrator) GetActiveRetrainingSchedules(ctx context.Context) ([]models.RetrainingSchedule, error) {
	schedules, err := o.store.ListActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active schedules: %w", err)
	}
	return schedules, nil
}

// GetPipelineExecutionHistory lists past runs, newest first.
func (o *Orchestrator) GetPipelineExecutionHistory(ctx context.Context, taskType *models.TaskType, limit int) ([]models.PipelineExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	execs, err := o.store.ListExecutions(ctx, taskType, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pipeline executions: %w", err)
	}
	return execs, nil
}

// GetPipelineStatus returns one execution by pipeline id, or nil when
// unknown.
func (o *Orchestrator) GetPipelineStatus(ctx context.Context, pipelineID string) (*models.PipelineExecution, error) {
	exec, err := o.store.GetExecution(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("getting pipeline status: %w", err)
	}
	return exec, nil
}
