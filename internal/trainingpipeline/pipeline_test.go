package trainingpipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type fakeDatasets struct {
	err error
}

func (f *fakeDatasets) BuildDataset(_ context.Context, taskType models.TaskType, _, _ time.Time) (*models.DatasetVersion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.DatasetVersion{
		Key:             "training-data/" + string(taskType) + "/20260831T000000Z",
		TaskType:        taskType,
		TotalSamples:    100,
		TrainCount:      80,
		ValidationCount: 20,
	}, nil
}

type fakeCompute struct {
	submitted *compute.TrainingJobSpec
	state     compute.TrainingJobState
	describes int
}

func (f *fakeCompute) CreateTrainingJob(_ context.Context, spec compute.TrainingJobSpec) error {
	f.submitted = &spec
	return nil
}

func (f *fakeCompute) DescribeTrainingJob(_ context.Context, _ string) (*compute.TrainingJobState, error) {
	f.describes++
	// One InProgress poll before the terminal state.
	if f.describes == 1 {
		return &compute.TrainingJobState{Status: models.JobInProgress}, nil
	}
	state := f.state
	return &state, nil
}

type fakeRegistry struct {
	registered []models.ModelVersion
	versions   []models.ModelVersion
}

func (f *fakeRegistry) RegisterModelVersion(_ context.Context, version *models.ModelVersion) error {
	f.registered = append(f.registered, *version)
	return nil
}

func (f *fakeRegistry) ListModelVersions(_ context.Context, _ *models.TaskType) ([]models.ModelVersion, error) {
	return f.versions, nil
}

func testOptions() Options {
	return Options{
		RoleARN:        "arn:aws:iam::123456789012:role/training",
		ArtifactBucket: "artifacts",
		InstanceType:   "ml.m5.large",
		InstanceCount:  1,
		VolumeSizeGB:   30,
		PollInterval:   time.Millisecond,
		MaxRuntime:     time.Second,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestExecuteRegistersPassingModel(t *testing.T) {
	computeFake := &fakeCompute{state: compute.TrainingJobState{
		Status:       models.JobCompleted,
		Metrics:      map[string]float64{"accuracy": 0.92, "precision": 0.90, "recall": 0.88},
		ModelDataURL: "s3://artifacts/model-artifacts/job/model.tar.gz",
	}}
	registry := &fakeRegistry{}
	pipeline := New(&fakeDatasets{}, computeFake, registry, testOptions(), nil)

	result, err := pipeline.Execute(context.Background(), RunConfig{
		TaskType:  models.TaskRiskPrediction,
		Algorithm: "xgboost",
		Thresholds: Thresholds{
			MinAccuracy:  floatPtr(0.85),
			MinPrecision: floatPtr(0.80),
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.TrainingStatus != models.JobCompleted {
		t.Errorf("status = %s, want Completed", result.TrainingStatus)
	}
	if result.Evaluation == nil || !result.Evaluation.MeetsPerformanceCriteria {
		t.Fatal("expected promotion gate to pass")
	}
	if result.ModelVersion == nil {
		t.Fatal("expected a registered model version")
	}
	if result.ModelVersion.ModelName != "privacyguard-risk-prediction" {
		t.Errorf("model name = %s", result.ModelVersion.ModelName)
	}
	if result.ModelVersion.ApprovalStatus != models.ApprovalApproved {
		t.Errorf("approval = %s, want Approved", result.ModelVersion.ApprovalStatus)
	}
	if len(registry.registered) != 1 {
		t.Errorf("registered %d versions, want 1", len(registry.registered))
	}

	if computeFake.submitted == nil {
		t.Fatal("no training job submitted")
	}
	if computeFake.submitted.Hyperparameters["objective"] != "reg:squarederror" {
		t.Errorf("risk prediction should default to regression, got %s",
			computeFake.submitted.Hyperparameters["objective"])
	}
}

func TestExecuteGateBlocksWeakModel(t *testing.T) {
	computeFake := &fakeCompute{state: compute.TrainingJobState{
		Status:  models.JobCompleted,
		Metrics: map[string]float64{"accuracy": 0.92, "precision": 0.90, "recall": 0.88},
	}}
	registry := &fakeRegistry{}
	pipeline := New(&fakeDatasets{}, computeFake, registry, testOptions(), nil)

	result, err := pipeline.Execute(context.Background(), RunConfig{
		TaskType:   models.TaskFalsePositive,
		Algorithm:  "xgboost",
		Thresholds: Thresholds{MinAccuracy: floatPtr(0.99)},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Evaluation == nil {
		t.Fatal("expected an evaluation")
	}
	if result.Evaluation.MeetsPerformanceCriteria {
		t.Error("gate should fail with min accuracy 0.99")
	}
	if len(result.Evaluation.FailedCriteria) != 1 {
		t.Errorf("failed criteria = %v, want 1 entry", result.Evaluation.FailedCriteria)
	}
	if result.ModelVersion != nil {
		t.Error("weak model must not be registered")
	}
	if len(registry.registered) != 0 {
		t.Error("registry should be untouched")
	}
}

func TestExecuteOmittedThresholdsPassVacuously(t *testing.T) {
	computeFake := &fakeCompute{state: compute.TrainingJobState{
		Status:  models.JobCompleted,
		Metrics: map[string]float64{"accuracy": 0.10},
	}}
	registry := &fakeRegistry{}
	pipeline := New(&fakeDatasets{}, computeFake, registry, testOptions(), nil)

	result, err := pipeline.Execute(context.Background(), RunConfig{
		TaskType:  models.TaskRiskPrediction,
		Algorithm: "linear-learner",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Evaluation.MeetsPerformanceCriteria {
		t.Error("no thresholds supplied, gate must pass")
	}
	if result.ModelVersion == nil {
		t.Error("expected registration when gate passes vacuously")
	}
}

func TestExecuteFailedJobSkipsEvaluation(t *testing.T) {
	computeFake := &fakeCompute{state: compute.TrainingJobState{
		Status:        models.JobFailed,
		FailureReason: "AlgorithmError: bad input shape",
	}}
	registry := &fakeRegistry{}
	pipeline := New(&fakeDatasets{}, computeFake, registry, testOptions(), nil)

	result, err := pipeline.Execute(context.Background(), RunConfig{
		TaskType:   models.TaskRemediationSuccess,
		Algorithm:  "xgboost",
		Thresholds: Thresholds{MinAccuracy: floatPtr(0.5)},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.TrainingStatus != models.JobFailed {
		t.Errorf("status = %s, want Failed", result.TrainingStatus)
	}
	if result.FailureReason == "" {
		t.Error("failure reason should be carried through")
	}
	if result.Evaluation != nil {
		t.Error("failed job must not be evaluated")
	}
	if len(registry.registered) != 0 {
		t.Error("failed job must not register a model")
	}
}

func TestExecuteValidation(t *testing.T) {
	pipeline := New(&fakeDatasets{}, &fakeCompute{}, &fakeRegistry{}, testOptions(), nil)

	if _, err := pipeline.Execute(context.Background(), RunConfig{
		TaskType: models.TaskType("bogus"), Algorithm: "xgboost",
	}); err == nil {
		t.Error("expected error for invalid task type")
	}

	if _, err := pipeline.Execute(context.Background(), RunConfig{
		TaskType: models.TaskRiskPrediction, Algorithm: "random-forest",
	}); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestExecuteDatasetFailurePropagates(t *testing.T) {
	boom := errors.New("db down")
	pipeline := New(&fakeDatasets{err: boom}, &fakeCompute{}, &fakeRegistry{}, testOptions(), nil)

	_, err := pipeline.Execute(context.Background(), RunConfig{
		TaskType: models.TaskRiskPrediction, Algorithm: "xgboost",
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped dataset error, got %v", err)
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	// Compute that never leaves InProgress.
	computeFake := &fakeCompute{state: compute.TrainingJobState{Status: models.JobInProgress}}
	opts := testOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.MaxRuntime = time.Minute
	pipeline := New(&fakeDatasets{}, computeFake, &fakeRegistry{}, opts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := pipeline.Execute(ctx, RunConfig{
		TaskType: models.TaskRiskPrediction, Algorithm: "xgboost",
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}
