package trainingpipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// DatasetBuilder produces a versioned train/validation dataset for a task.
type DatasetBuilder interface {
	BuildDataset(ctx context.Context, taskType models.TaskType, from, to time.Time) (*models.DatasetVersion, error)
}

// TrainingCompute runs managed training jobs.
type TrainingCompute interface {
	CreateTrainingJob(ctx context.Context, spec compute.TrainingJobSpec) error
	DescribeTrainingJob(ctx context.Context, jobName string) (*compute.TrainingJobState, error)
}

// Registry persists promoted model versions.
type Registry interface {
	RegisterModelVersion(ctx context.Context, version *models.ModelVersion) error
	ListModelVersions(ctx context.Context, taskType *models.TaskType) ([]models.ModelVersion, error)
}

// Thresholds is the promotion gate. Only supplied (non-nil) thresholds are
// checked; an omitted threshold passes vacuously.
type Thresholds struct {
	MinAccuracy  *float64
	MinPrecision *float64
	MinRecall    *float64
}

// Options carries compute and storage settings shared by all pipeline runs.
type Options struct {
	RoleARN        string
	ArtifactBucket string
	InstanceType   string
	InstanceCount  int
	VolumeSizeGB   int
	PollInterval   time.Duration
	MaxRuntime     time.Duration
}

// RunConfig describes one training run.
type RunConfig struct {
	TaskType        models.TaskType
	Algorithm       string
	Window          time.Duration
	Hyperparameters map[string]string
	Thresholds      Thresholds
}

// Evaluation is the promotion gate verdict for a completed job. Failing the
// gate is a normal outcome, not an error.
type Evaluation struct {
	Metrics                  map[string]float64 `json:"metrics"`
	MeetsPerformanceCriteria bool               `json:"meets_performance_criteria"`
	FailedCriteria           []string           `json:"failed_criteria,omitempty"`
}

// Result is the outcome of one pipeline run. ModelVersion is nil unless the
// job completed and passed the gate.
type Result struct {
	JobName        string                   `json:"job_name"`
	DatasetKey     string                   `json:"dataset_key"`
	TrainingStatus models.TrainingJobStatus `json:"training_status"`
	FailureReason  string                   `json:"failure_reason,omitempty"`
	Evaluation     *Evaluation              `json:"evaluation,omitempty"`
	ModelVersion   *models.ModelVersion     `json:"model_version,omitempty"`
}

// Pipeline runs collect, train, evaluate and register for one task type.
type Pipeline struct {
	datasets DatasetBuilder
	compute  TrainingCompute
	registry Registry
	opts     Options
	logger   *slog.Logger
}

var trainingImages = map[string]string{
	"xgboost":        "683313688378.dkr.ecr.us-east-1.amazonaws.com/sagemaker-xgboost:1.7-1",
	"linear-learner": "382416733822.dkr.ecr.us-east-1.amazonaws.com/linear-learner:1",
}

func defaultHyperparameters(algorithm string, taskType models.TaskType) map[string]string {
	classification := taskType != models.TaskRiskPrediction
	switch algorithm {
	case "xgboost":
		hp := map[string]string{
			"num_round": "100",
			"max_depth": "6",
			"eta":       "0.3",
			"objective": "reg:squarederror",
		}
		if classification {
			hp["objective"] = "binary:logistic"
		}
		return hp
	case "linear-learner":
		hp := map[string]string{
			"predictor_type": "regressor",
			"epochs":         "15",
		}
		if classification {
			hp["predictor_type"] = "binary_classifier"
		}
		return hp
	}
	return nil
}

func New(datasets DatasetBuilder, trainingCompute TrainingCompute, registry Registry, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.MaxRuntime == 0 {
		opts.MaxRuntime = time.Hour
	}
	return &Pipeline{
		datasets: datasets,
		compute:  trainingCompute,
		registry: registry,
		opts:     opts,
		logger:   logger,
	}
}

// Execute runs one end-to-end training pass. A job that finishes but fails
// the promotion gate yields a Result with no ModelVersion and no error.
func (p *Pipeline) Execute(ctx context.Context, cfg RunConfig) (*Result, error) {
	if !models.ValidTaskType(cfg.TaskType) {
		return nil, fmt.Errorf("invalid task type: %s", cfg.TaskType)
	}
	image, ok := trainingImages[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported algorithm: %s", cfg.Algorithm)
	}

	window := cfg.Window
	if window == 0 {
		window = 30 * 24 * time.Hour
	}
	now := time.Now()

	dataset, err := p.datasets.BuildDataset(ctx, cfg.TaskType, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("building training dataset: %w", err)
	}

	jobName := fmt.Sprintf("%s-%s",
		strings.ReplaceAll(string(cfg.TaskType), "_", "-"),
		now.UTC().Format("20060102-150405"))

	hyperparameters := defaultHyperparameters(cfg.Algorithm, cfg.TaskType)
	for k, v := range cfg.Hyperparameters {
		hyperparameters[k] = v
	}

	spec := compute.TrainingJobSpec{
		JobName:         jobName,
		RoleARN:         p.opts.RoleARN,
		TrainingImage:   image,
		Hyperparameters: hyperparameters,
		InputS3URI:      fmt.Sprintf("s3://%s/%s/train.json", p.opts.ArtifactBucket, dataset.Key),
		ValidationS3URI: fmt.Sprintf("s3://%s/%s/validation.json", p.opts.ArtifactBucket, dataset.Key),
		OutputS3URI:     fmt.Sprintf("s3://%s/model-artifacts/%s", p.opts.ArtifactBucket, jobName),
		InstanceType:    p.opts.InstanceType,
		InstanceCount:   int32(p.opts.InstanceCount),
		VolumeSizeGB:    int32(p.opts.VolumeSizeGB),
		MaxRuntime:      p.opts.MaxRuntime,
	}

	if err := p.compute.CreateTrainingJob(ctx, spec); err != nil {
		return nil, fmt.Errorf("submitting training job %s: %w", jobName, err)
	}

	p.logger.Info("training job submitted",
		"job_name", jobName,
		"task_type", cfg.TaskType,
		"algorithm", cfg.Algorithm,
		"dataset_key", dataset.Key)

	state, err := p.waitForJob(ctx, jobName)
	if err != nil {
		return nil, err
	}

	result := &Result{
		JobName:        jobName,
		DatasetKey:     dataset.Key,
		TrainingStatus: state.Status,
		FailureReason:  state.FailureReason,
	}

	if state.Status != models.JobCompleted {
		p.logger.Warn("training job failed",
			"job_name", jobName,
			"failure_reason", state.FailureReason)
		return result, nil
	}

	result.Evaluation = evaluate(state.Metrics, cfg.Thresholds)
	if !result.Evaluation.MeetsPerformanceCriteria {
		p.logger.Info("model did not meet promotion criteria",
			"job_name", jobName,
			"failed_criteria", result.Evaluation.FailedCriteria)
		return result, nil
	}

	version := &models.ModelVersion{
		ModelName:      models.ModelNameForTask(cfg.TaskType),
		Version:        jobName,
		TaskType:       cfg.TaskType,
		Algorithm:      cfg.Algorithm,
		Metrics:        metricsJSONB(state.Metrics),
		ApprovalStatus: models.ApprovalApproved,
		ArtifactsURL:   state.ModelDataURL,
		RegisteredAt:   time.Now(),
	}
	if err := p.registry.RegisterModelVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("registering model version %s: %w", jobName, err)
	}
	result.ModelVersion = version

	p.logger.Info("model version registered",
		"model_name", version.ModelName,
		"version", version.Version,
		"metrics", state.Metrics)

	return result, nil
}

// waitForJob polls until the job reaches a terminal status or the max runtime
// expires. Context cancellation aborts the wait.
func (p *Pipeline) waitForJob(ctx context.Context, jobName string) (*compute.TrainingJobState, error) {
	deadline := time.Now().Add(p.opts.MaxRuntime)
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		state, err := p.compute.DescribeTrainingJob(ctx, jobName)
		if err != nil {
			return nil, fmt.Errorf("polling training job %s: %w", jobName, err)
		}
		if state.Status != models.JobInProgress {
			return state, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("training job %s did not finish within %s", jobName, p.opts.MaxRuntime)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for training job %s: %w", jobName, ctx.Err())
		case <-ticker.C:
		}
	}
}

// evaluate applies the promotion gate: every supplied threshold must be met.
func evaluate(metrics map[string]float64, thresholds Thresholds) *Evaluation {
	eval := &Evaluation{
		Metrics:                  metrics,
		MeetsPerformanceCriteria: true,
	}

	check := func(name string, min *float64) {
		if min == nil {
			return
		}
		if metrics[name] < *min {
			eval.MeetsPerformanceCriteria = false
			eval.FailedCriteria = append(eval.FailedCriteria,
				fmt.Sprintf("%s %.4f below minimum %.4f", name, metrics[name], *min))
		}
	}
	check("accuracy", thresholds.MinAccuracy)
	check("precision", thresholds.MinPrecision)
	check("recall", thresholds.MinRecall)

	return eval
}

func metricsJSONB(metrics map[string]float64) models.JSONB {
	out := make(models.JSONB, len(metrics))
	for k, v := range metrics {
		out[k] = v
	}
	return out
}

// ListAvailableModels returns registered versions, optionally filtered by
// task type, newest first.
func (p *Pipeline) ListAvailableModels(ctx context.Context, taskType *models.TaskType) ([]models.ModelVersion, error) {
	versions, err := p.registry.ListModelVersions(ctx, taskType)
	if err != nil {
		return nil, fmt.Errorf("listing model versions: %w", err)
	}
	return versions, nil
}
