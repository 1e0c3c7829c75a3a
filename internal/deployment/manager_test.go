package deployment

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type fakeServing struct {
	models         []compute.ModelSpec
	configs        []compute.EndpointConfigSpec
	created        []string
	updated        []string
	deleted        []string
	endpointStatus string
	invokeResponse []byte
	invokeErr      error
	invocations    int
	createModelErr error
	describeCalls  int
	inServiceAfter int
}

func (f *fakeServing) CreateModel(_ context.Context, spec compute.ModelSpec) error {
	if f.createModelErr != nil {
		return f.createModelErr
	}
	f.models = append(f.models, spec)
	return nil
}

func (f *fakeServing) CreateEndpointConfig(_ context.Context, spec compute.EndpointConfigSpec) error {
	f.configs = append(f.configs, spec)
	return nil
}

func (f *fakeServing) CreateEndpoint(_ context.Context, endpointName, configName string) error {
	f.created = append(f.created, endpointName+"/"+configName)
	return nil
}

func (f *fakeServing) UpdateEndpoint(_ context.Context, endpointName, configName string) error {
	f.updated = append(f.updated, endpointName+"/"+configName)
	return nil
}

func (f *fakeServing) DescribeEndpoint(_ context.Context, _ string) (string, error) {
	f.describeCalls++
	if f.inServiceAfter > 0 && f.describeCalls > f.inServiceAfter {
		return "InService", nil
	}
	return f.endpointStatus, nil
}

func (f *fakeServing) DeleteEndpoint(_ context.Context, endpointName string) error {
	f.deleted = append(f.deleted, endpointName)
	return nil
}

func (f *fakeServing) UpdateVariantCapacity(_ context.Context, _, _ string, _ int32) error {
	return nil
}

func (f *fakeServing) InvokeEndpoint(_ context.Context, _ string, _ []byte) ([]byte, error) {
	f.invocations++
	return f.invokeResponse, f.invokeErr
}

type fakeRegistry struct {
	versions    map[string]*models.ModelVersion
	deployments []models.DeploymentRecord
}

func (f *fakeRegistry) GetModelVersion(_ context.Context, modelName, version string) (*models.ModelVersion, error) {
	return f.versions[modelName+"/"+version], nil
}

func (f *fakeRegistry) CreateDeployment(_ context.Context, record *models.DeploymentRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.deployments = append(f.deployments, *record)
	return nil
}

func (f *fakeRegistry) UpdateDeployment(_ context.Context, record *models.DeploymentRecord) error {
	for i := range f.deployments {
		if f.deployments[i].ID == record.ID {
			f.deployments[i] = *record
		}
	}
	return nil
}

func (f *fakeRegistry) ListDeploymentsByEndpoint(_ context.Context, endpointName string) ([]models.DeploymentRecord, error) {
	var out []models.DeploymentRecord
	for _, d := range f.deployments {
		if d.EndpointName == endpointName {
			out = append(out, d)
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

func testManager(serving *fakeServing, registry *fakeRegistry, metrics *fakeMetrics) *Manager {
	return NewManager(serving, metrics, registry, Options{
		RoleARN:      "arn:aws:iam::123456789012:role/serving",
		ServingImage: "serving:latest",
		InstanceType: "ml.m5.large",
		WaitTimeout:  time.Second,
		PollInterval: time.Millisecond,
	}, nil)
}

func registryWith(modelName, version string) *fakeRegistry {
	return &fakeRegistry{versions: map[string]*models.ModelVersion{
		modelName + "/" + version: {
			ID:           uuid.New(),
			ModelName:    modelName,
			Version:      version,
			ArtifactsURL: "s3://artifacts/model.tar.gz",
		},
	}}
}

func TestDeployModelCreatesNewEndpoint(t *testing.T) {
	serving := &fakeServing{
		endpointStatus: "", // endpoint does not exist yet
		inServiceAfter: 1,
		invokeResponse: []byte(`{"risk_score": 0.7, "confidence": 0.9}`),
	}
	registry := registryWith("privacyguard-risk-prediction", "v1")
	manager := testManager(serving, registry, &fakeMetrics{})

	record, err := manager.DeployModel(context.Background(), DeployConfig{
		ModelName:    "privacyguard-risk-prediction",
		ModelVersion: "v1",
		EndpointName: "risk-endpoint",
		TaskType:     models.TaskRiskPrediction,
	})
	if err != nil {
		t.Fatalf("DeployModel: %v", err)
	}

	if record.Status != models.DeploymentSuccess {
		t.Errorf("status = %s, want SUCCESS", record.Status)
	}
	if len(serving.models) != 1 {
		t.Fatalf("created %d serving models, want 1", len(serving.models))
	}
	if len(serving.created) != 1 || len(serving.updated) != 0 {
		t.Errorf("expected create (not update), got created=%v updated=%v", serving.created, serving.updated)
	}
	if serving.invocations != 3 {
		t.Errorf("validation ran %d invocations, want 3", serving.invocations)
	}
	if record.ValidationResults["passed_tests"] != 3 {
		t.Errorf("validation results = %v", record.ValidationResults)
	}
	if len(registry.deployments) != 1 {
		t.Errorf("recorded %d deployments, want 1", len(registry.deployments))
	}
}

func TestDeployModelUpdatesExistingEndpoint(t *testing.T) {
	serving := &fakeServing{
		endpointStatus: "InService",
		invokeResponse: []byte(`{"risk_score": 0.5, "confidence": 0.8}`),
	}
	registry := registryWith("privacyguard-risk-prediction", "v2")
	manager := testManager(serving, registry, &fakeMetrics{})

	_, err := manager.DeployModel(context.Background(), DeployConfig{
		ModelName:    "privacyguard-risk-prediction",
		ModelVersion: "v2",
		EndpointName: "risk-endpoint",
		TaskType:     models.TaskRiskPrediction,
	})
	if err != nil {
		t.Fatalf("DeployModel: %v", err)
	}

	if len(serving.updated) != 1 || len(serving.created) != 0 {
		t.Errorf("expected update (not create), got created=%v updated=%v", serving.created, serving.updated)
	}
}

func TestDeployModelValidationFailureStillSucceeds(t *testing.T) {
	serving := &fakeServing{
		endpointStatus: "InService",
		// Missing the confidence field required by the schema.
		invokeResponse: []byte(`{"risk_score": 0.7}`),
	}
	registry := registryWith("privacyguard-risk-prediction", "v1")
	manager := testManager(serving, registry, &fakeMetrics{})

	record, err := manager.DeployModel(context.Background(), DeployConfig{
		ModelName:    "privacyguard-risk-prediction",
		ModelVersion: "v1",
		EndpointName: "risk-endpoint",
		TaskType:     models.TaskRiskPrediction,
	})
	if err != nil {
		t.Fatalf("DeployModel: %v", err)
	}

	if record.Status != models.DeploymentSuccess {
		t.Errorf("validation failures must not fail the deployment, status = %s", record.Status)
	}
	if record.ValidationResults["failed_tests"] != 3 {
		t.Errorf("failed_tests = %v, want 3", record.ValidationResults["failed_tests"])
	}
}

func TestDeployModelUnregisteredVersion(t *testing.T) {
	serving := &fakeServing{}
	registry := &fakeRegistry{versions: map[string]*models.ModelVersion{}}
	manager := testManager(serving, registry, &fakeMetrics{})

	_, err := manager.DeployModel(context.Background(), DeployConfig{
		ModelName:    "privacyguard-risk-prediction",
		ModelVersion: "ghost",
		EndpointName: "risk-endpoint",
	})
	if err == nil {
		t.Fatal("expected error for unregistered version")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Errorf("error = %v", err)
	}

	// The failed attempt must still be recorded.
	if len(registry.deployments) != 1 {
		t.Fatalf("recorded %d deployments, want 1", len(registry.deployments))
	}
	if registry.deployments[0].Status != models.DeploymentFailed {
		t.Errorf("status = %s, want FAILED", registry.deployments[0].Status)
	}
	if registry.deployments[0].ErrorMessage == "" {
		t.Error("error message missing on failed deployment record")
	}
}

func TestValidationAggregates(t *testing.T) {
	serving := &fakeServing{
		invokeResponse: []byte(`{"false_positive_probability": 0.1, "confidence": 0.9}`),
	}
	manager := testManager(serving, &fakeRegistry{}, &fakeMetrics{})

	results := manager.validateEndpoint(context.Background(), "fp-endpoint", models.TaskFalsePositive)
	if results.TotalTests != 3 {
		t.Errorf("total = %d, want 3", results.TotalTests)
	}
	if results.PassedTests+results.FailedTests != results.TotalTests {
		t.Errorf("passed %d + failed %d != total %d",
			results.PassedTests, results.FailedTests, results.TotalTests)
	}
	if results.PassedTests != 3 {
		t.Errorf("passed = %d, want 3, errors: %v", results.PassedTests, results.Errors)
	}
}

func TestCheckSchema(t *testing.T) {
	schema := expectedSchema{"risk_score": "number", "confidence": "number"}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"risk_score": 0.5, "confidence": 0.9}`, false},
		{"missing field", `{"risk_score": 0.5}`, true},
		{"wrong type", `{"risk_score": "high", "confidence": 0.9}`, true},
		{"not json", `risk: high`, true},
	}
	for _, tt := range tests {
		err := checkSchema([]byte(tt.body), schema)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr = %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestSetupABTestingWeightValidation(t *testing.T) {
	serving := &fakeServing{endpointStatus: "InService"}
	manager := testManager(serving, &fakeRegistry{}, &fakeMetrics{})

	err := manager.SetupABTesting(context.Background(), ABConfig{
		EndpointName: "risk-endpoint",
		VariantA:     ABVariant{ModelName: "m", ModelVersion: "v1", Weight: 0.7},
		VariantB:     ABVariant{ModelName: "m", ModelVersion: "v2", Weight: 0.7},
	})
	if err == nil {
		t.Fatal("expected error for weights summing to 1.4")
	}

	err = manager.SetupABTesting(context.Background(), ABConfig{
		EndpointName: "risk-endpoint",
		VariantA:     ABVariant{ModelName: "m", ModelVersion: "v1", Weight: 0.7},
		VariantB:     ABVariant{ModelName: "m", ModelVersion: "v2", Weight: 0.3},
	})
	if err != nil {
		t.Fatalf("SetupABTesting: %v", err)
	}

	if len(serving.configs) != 1 {
		t.Fatalf("created %d configs, want 1", len(serving.configs))
	}
	if len(serving.configs[0].Variants) != 2 {
		t.Errorf("variants = %d, want 2", len(serving.configs[0].Variants))
	}
}

func TestRollbackModel(t *testing.T) {
	serving := &fakeServing{endpointStatus: "InService"}
	registry := &fakeRegistry{deployments: []models.DeploymentRecord{
		{ID: uuid.New(), ModelName: "privacyguard-risk-prediction", ModelVersion: "v2",
			EndpointName: "risk-endpoint", Status: models.DeploymentSuccess},
		{ID: uuid.New(), ModelName: "privacyguard-risk-prediction", ModelVersion: "v1",
			EndpointName: "risk-endpoint", Status: models.DeploymentSuccess},
	}}
	manager := testManager(serving, registry, &fakeMetrics{})

	if err := manager.RollbackModel(context.Background(), "risk-endpoint", "v1"); err != nil {
		t.Fatalf("RollbackModel: %v", err)
	}
	if len(serving.updated) != 1 {
		t.Errorf("expected one endpoint update, got %v", serving.updated)
	}

	if err := manager.RollbackModel(context.Background(), "risk-endpoint", "v9"); err == nil {
		t.Error("expected error for unknown rollback target")
	}
}

func TestScaleEndpointValidation(t *testing.T) {
	manager := testManager(&fakeServing{}, &fakeRegistry{}, &fakeMetrics{})

	if err := manager.ScaleEndpoint(context.Background(), "risk-endpoint", 0); err == nil {
		t.Error("expected error for zero instance count")
	}
	if err := manager.ScaleEndpoint(context.Background(), "risk-endpoint", 3); err != nil {
		t.Errorf("ScaleEndpoint: %v", err)
	}
}

func TestGetEndpointMetrics(t *testing.T) {
	metrics := &fakeMetrics{points: map[string][]compute.Datapoint{
		"Invocations":         {{Average: 100}, {Average: 200}},
		"ModelLatency":        {{Average: 50000}, {Average: 70000}}, // microseconds
		"Invocation4XXErrors": {{Average: 3}},
		"Invocation5XXErrors": {{Average: 3}},
		"CPUUtilization":      {{Average: 40}, {Average: 60}},
		"MemoryUtilization":   {{Average: 55}},
	}}
	manager := testManager(&fakeServing{}, &fakeRegistry{}, metrics)

	em, err := manager.GetEndpointMetrics(context.Background(), "risk-endpoint")
	if err != nil {
		t.Fatalf("GetEndpointMetrics: %v", err)
	}

	if em.Invocations != 300 {
		t.Errorf("invocations = %f, want 300", em.Invocations)
	}
	if em.AverageLatencyMS != 60 {
		t.Errorf("latency = %f ms, want 60", em.AverageLatencyMS)
	}
	if em.ErrorRate != 0.02 {
		t.Errorf("error rate = %f, want 0.02", em.ErrorRate)
	}
	if em.CPUUtilization != 50 {
		t.Errorf("cpu = %f, want 50", em.CPUUtilization)
	}
}

func TestValidationResultsJSONRoundTrip(t *testing.T) {
	results := &ValidationResults{TotalTests: 3, PassedTests: 2, FailedTests: 1, Errors: []string{"x"}}
	jb := results.toJSONB()

	data, err := json.Marshal(jb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"passed_tests":2`) {
		t.Errorf("unexpected serialization: %s", data)
	}
}
