package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// ServingCompute manages serving models and endpoints.
type ServingCompute interface {
	CreateModel(ctx context.Context, spec compute.ModelSpec) error
	CreateEndpointConfig(ctx context.Context, spec compute.EndpointConfigSpec) error
	CreateEndpoint(ctx context.Context, endpointName, configName string) error
	UpdateEndpoint(ctx context.Context, endpointName, configName string) error
	DescribeEndpoint(ctx context.Context, endpointName string) (string, error)
	DeleteEndpoint(ctx context.Context, endpointName string) error
	UpdateVariantCapacity(ctx context.Context, endpointName, variantName string, instanceCount int32) error
	InvokeEndpoint(ctx context.Context, endpointName string, payload []byte) ([]byte, error)
}

// Registry persists deployment attempts and resolves registered versions.
type Registry interface {
	GetModelVersion(ctx context.Context, modelName, version string) (*models.ModelVersion, error)
	CreateDeployment(ctx context.Context, record *models.DeploymentRecord) error
	UpdateDeployment(ctx context.Context, record *models.DeploymentRecord) error
	ListDeploymentsByEndpoint(ctx context.Context, endpointName string) ([]models.DeploymentRecord, error)
}

// Metrics reads endpoint operational metrics.
type Metrics interface {
	GetStatistics(ctx context.Context, endpointName, metricName string, window time.Duration) ([]compute.Datapoint, error)
}

// Options carries serving defaults shared by all deployments.
type Options struct {
	RoleARN       string
	ServingImage  string
	InstanceType  string
	InstanceCount int
	CaptureS3URI  string
	WaitTimeout   time.Duration
	PollInterval  time.Duration
}

// Manager deploys registered model versions to serving endpoints and manages
// their lifecycle.
type Manager struct {
	serving  ServingCompute
	metrics  Metrics
	registry Registry
	opts     Options
	logger   *slog.Logger
}

func NewManager(serving ServingCompute, metrics Metrics, registry Registry, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = 10 * time.Minute
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.InstanceCount == 0 {
		opts.InstanceCount = 1
	}
	return &Manager{serving: serving, metrics: metrics, registry: registry, opts: opts, logger: logger}
}

// DeployConfig describes one deployment attempt.
type DeployConfig struct {
	ModelName     string
	ModelVersion  string
	EndpointName  string
	TaskType      models.TaskType
	InstanceType  string
	InstanceCount int
	ServingImage  string
}

func resourceName(modelName, version string) string {
	name := fmt.Sprintf("%s-%s", modelName, version)
	return strings.ReplaceAll(name, "_", "-")
}

// DeployModel creates the serving resources for a registered version and
// routes the endpoint to them. Validation failure does not fail the
// deployment; any resource failure records a FAILED attempt before returning.
func (m *Manager) DeployModel(ctx context.Context, cfg DeployConfig) (*models.DeploymentRecord, error) {
	record := &models.DeploymentRecord{
		ModelName:    cfg.ModelName,
		ModelVersion: cfg.ModelVersion,
		EndpointName: cfg.EndpointName,
		DeployedAt:   time.Now(),
	}

	if err := m.deploy(ctx, cfg, record); err != nil {
		record.Status = models.DeploymentFailed
		record.ErrorMessage = err.Error()
		if storeErr := m.registry.CreateDeployment(ctx, record); storeErr != nil {
			m.logger.Error("recording failed deployment", "error", storeErr)
		}
		return nil, fmt.Errorf("deploying %s %s: %w", cfg.ModelName, cfg.ModelVersion, err)
	}

	record.Status = models.DeploymentSuccess
	if err := m.registry.CreateDeployment(ctx, record); err != nil {
		return nil, fmt.Errorf("recording deployment: %w", err)
	}

	m.logger.Info("model deployed",
		"model_name", cfg.ModelName,
		"model_version", cfg.ModelVersion,
		"endpoint", cfg.EndpointName)

	return record, nil
}

func (m *Manager) deploy(ctx context.Context, cfg DeployConfig, record *models.DeploymentRecord) error {
	version, err := m.registry.GetModelVersion(ctx, cfg.ModelName, cfg.ModelVersion)
	if err != nil {
		return fmt.Errorf("resolving model version: %w", err)
	}
	if version == nil {
		return fmt.Errorf("model version %s %s is not registered", cfg.ModelName, cfg.ModelVersion)
	}

	image := cfg.ServingImage
	if image == "" {
		image = m.opts.ServingImage
	}
	instanceType := cfg.InstanceType
	if instanceType == "" {
		instanceType = m.opts.InstanceType
	}
	instanceCount := cfg.InstanceCount
	if instanceCount == 0 {
		instanceCount = m.opts.InstanceCount
	}

	modelResource := resourceName(cfg.ModelName, cfg.ModelVersion)
	if err := m.serving.CreateModel(ctx, compute.ModelSpec{
		ModelName:    modelResource,
		Image:        image,
		ModelDataURL: version.ArtifactsURL,
		RoleARN:      m.opts.RoleARN,
	}); err != nil {
		return err
	}

	configName := fmt.Sprintf("%s-%s", modelResource, time.Now().UTC().Format("20060102150405"))
	if err := m.serving.CreateEndpointConfig(ctx, compute.EndpointConfigSpec{
		ConfigName: configName,
		Variants: []compute.VariantSpec{{
			VariantName:   "primary",
			ModelName:     modelResource,
			InstanceType:  instanceType,
			InstanceCount: int32(instanceCount),
			Weight:        1.0,
		}},
		CaptureS3URI: m.opts.CaptureS3URI,
	}); err != nil {
		return err
	}

	status, err := m.serving.DescribeEndpoint(ctx, cfg.EndpointName)
	if err != nil {
		return err
	}
	if status == "" {
		if err := m.serving.CreateEndpoint(ctx, cfg.EndpointName, configName); err != nil {
			return err
		}
	} else {
		if err := m.serving.UpdateEndpoint(ctx, cfg.EndpointName, configName); err != nil {
			return err
		}
	}

	if err := m.waitForInService(ctx, cfg.EndpointName); err != nil {
		return err
	}

	results := m.validateEndpoint(ctx, cfg.EndpointName, cfg.TaskType)
	record.ValidationResults = results.toJSONB()
	if results.FailedTests > 0 {
		m.logger.Warn("endpoint validation reported failures",
			"endpoint", cfg.EndpointName,
			"passed", results.PassedTests,
			"failed", results.FailedTests)
	}

	return nil
}

func (m *Manager) waitForInService(ctx context.Context, endpointName string) error {
	deadline := time.Now().Add(m.opts.WaitTimeout)
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := m.serving.DescribeEndpoint(ctx, endpointName)
		if err != nil {
			return err
		}
		switch status {
		case "InService":
			return nil
		case "Failed":
			return fmt.Errorf("endpoint %s entered Failed state", endpointName)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("endpoint %s not InService within %s", endpointName, m.opts.WaitTimeout)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for endpoint %s: %w", endpointName, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ScaleEndpoint changes the instance count behind the primary variant.
func (m *Manager) ScaleEndpoint(ctx context.Context, endpointName string, instanceCount int) error {
	if instanceCount < 1 {
		return fmt.Errorf("instance count must be at least 1, got %d", instanceCount)
	}
	if err := m.serving.UpdateVariantCapacity(ctx, endpointName, "primary", int32(instanceCount)); err != nil {
		return fmt.Errorf("scaling endpoint %s: %w", endpointName, err)
	}
	m.logger.Info("endpoint scaled", "endpoint", endpointName, "instance_count", instanceCount)
	return nil
}

// RollbackModel repoints the endpoint at a previously deployed version. The
// target must have a successful deployment on this endpoint.
func (m *Manager) RollbackModel(ctx context.Context, endpointName, targetVersion string) error {
	deployments, err := m.registry.ListDeploymentsByEndpoint(ctx, endpointName)
	if err != nil {
		return fmt.Errorf("rolling back endpoint %s: %w", endpointName, err)
	}

	var target *models.DeploymentRecord
	for i := range deployments {
		d := deployments[i]
		if d.ModelVersion == targetVersion && d.Status == models.DeploymentSuccess {
			target = &d
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no successful deployment of version %s on endpoint %s", targetVersion, endpointName)
	}

	configName := fmt.Sprintf("%s-rollback-%s",
		resourceName(target.ModelName, target.ModelVersion),
		time.Now().UTC().Format("20060102150405"))

	if err := m.serving.CreateEndpointConfig(ctx, compute.EndpointConfigSpec{
		ConfigName: configName,
		Variants: []compute.VariantSpec{{
			VariantName:   "primary",
			ModelName:     resourceName(target.ModelName, target.ModelVersion),
			InstanceType:  m.opts.InstanceType,
			InstanceCount: int32(m.opts.InstanceCount),
			Weight:        1.0,
		}},
		CaptureS3URI: m.opts.CaptureS3URI,
	}); err != nil {
		return fmt.Errorf("rolling back endpoint %s: %w", endpointName, err)
	}

	if err := m.serving.UpdateEndpoint(ctx, endpointName, configName); err != nil {
		return fmt.Errorf("rolling back endpoint %s: %w", endpointName, err)
	}

	m.logger.Info("endpoint rolled back", "endpoint", endpointName, "target_version", targetVersion)
	return nil
}

// DeleteEndpoint removes the serving endpoint.
func (m *Manager) DeleteEndpoint(ctx context.Context, endpointName string) error {
	if err := m.serving.DeleteEndpoint(ctx, endpointName); err != nil {
		return fmt.Errorf("deleting endpoint %s: %w", endpointName, err)
	}
	m.logger.Info("endpoint deleted", "endpoint", endpointName)
	return nil
}

// ABVariant is one side of a traffic split.
type ABVariant struct {
	ModelName    string
	ModelVersion string
	Weight       float64
}

// ABConfig describes a two-variant traffic split on one endpoint.
type ABConfig struct {
	EndpointName  string
	VariantA      ABVariant
	VariantB      ABVariant
	InstanceType  string
	InstanceCount int
}

// SetupABTesting routes endpoint traffic across two registered versions.
// Variant weights must sum to 1.0.
func (m *Manager) SetupABTesting(ctx context.Context, cfg ABConfig) error {
	if math.Abs(cfg.VariantA.Weight+cfg.VariantB.Weight-1.0) > 1e-9 {
		return fmt.Errorf("variant weights must sum to 1.0, got %.4f",
			cfg.VariantA.Weight+cfg.VariantB.Weight)
	}

	instanceType := cfg.InstanceType
	if instanceType == "" {
		instanceType = m.opts.InstanceType
	}
	instanceCount := cfg.InstanceCount
	if instanceCount == 0 {
		instanceCount = m.opts.InstanceCount
	}

	configName := fmt.Sprintf("%s-ab-%s", cfg.EndpointName, time.Now().UTC().Format("20060102150405"))
	if err := m.serving.CreateEndpointConfig(ctx, compute.EndpointConfigSpec{
		ConfigName: configName,
		Variants: []compute.VariantSpec{
			{
				VariantName:   "variant-a",
				ModelName:     resourceName(cfg.VariantA.ModelName, cfg.VariantA.ModelVersion),
				InstanceType:  instanceType,
				InstanceCount: int32(instanceCount),
				Weight:        float32(cfg.VariantA.Weight),
			},
			{
				VariantName:   "variant-b",
				ModelName:     resourceName(cfg.VariantB.ModelName, cfg.VariantB.ModelVersion),
				InstanceType:  instanceType,
				InstanceCount: int32(instanceCount),
				Weight:        float32(cfg.VariantB.Weight),
			},
		},
		CaptureS3URI: m.opts.CaptureS3URI,
	}); err != nil {
		return fmt.Errorf("setting up A/B test on %s: %w", cfg.EndpointName, err)
	}

	status, err := m.serving.DescribeEndpoint(ctx, cfg.EndpointName)
	if err != nil {
		return fmt.Errorf("setting up A/B test on %s: %w", cfg.EndpointName, err)
	}
	if status == "" {
		err = m.serving.CreateEndpoint(ctx, cfg.EndpointName, configName)
	} else {
		err = m.serving.UpdateEndpoint(ctx, cfg.EndpointName, configName)
	}
	if err != nil {
		return fmt.Errorf("setting up A/B test on %s: %w", cfg.EndpointName, err)
	}

	m.logger.Info("A/B test configured",
		"endpoint", cfg.EndpointName,
		"weight_a", cfg.VariantA.Weight,
		"weight_b", cfg.VariantB.Weight)
	return nil
}

// EndpointMetrics summarizes recent endpoint health.
type EndpointMetrics struct {
	EndpointName      string  `json:"endpoint_name"`
	Invocations       float64 `json:"invocations"`
	AverageLatencyMS  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	CPUUtilization    float64 `json:"cpu_utilization"`
	MemoryUtilization float64 `json:"memory_utilization"`
	Window            string  `json:"window"`
}

// GetEndpointMetrics reads invocation, latency, error and resource metrics
// over the last hour.
func (m *Manager) GetEndpointMetrics(ctx context.Context, endpointName string) (*EndpointMetrics, error) {
	const window = time.Hour

	invocations, err := m.sumMetric(ctx, endpointName, "Invocations", window)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint metrics for %s: %w", endpointName, err)
	}
	latency, err := m.avgMetric(ctx, endpointName, "ModelLatency", window)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint metrics for %s: %w", endpointName, err)
	}
	errors4xx, err := m.sumMetric(ctx, endpointName, "Invocation4XXErrors", window)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint metrics for %s: %w", endpointName, err)
	}
	errors5xx, err := m.sumMetric(ctx, endpointName, "Invocation5XXErrors", window)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint metrics for %s: %w", endpointName, err)
	}
	cpu, err := m.avgMetric(ctx, endpointName, "CPUUtilization", window)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint metrics for %s: %w", endpointName, err)
	}
	memory, err := m.avgMetric(ctx, endpointName, "MemoryUtilization", window)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint metrics for %s: %w", endpointName, err)
	}

	metrics := &EndpointMetrics{
		EndpointName: endpointName,
		Invocations:  invocations,
		// ModelLatency is reported in microseconds.
		AverageLatencyMS:  latency / 1000,
		CPUUtilization:    cpu,
		MemoryUtilization: memory,
		Window:            window.String(),
	}
	if invocations > 0 {
		metrics.ErrorRate = (errors4xx + errors5xx) / invocations
	}
	return metrics, nil
}

func (m *Manager) sumMetric(ctx context.Context, endpointName, metricName string, window time.Duration) (float64, error) {
	points, err := m.metrics.GetStatistics(ctx, endpointName, metricName, window)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, p := range points {
		sum += p.Average
	}
	return sum, nil
}

func (m *Manager) avgMetric(ctx context.Context, endpointName, metricName string, window time.Duration) (float64, error) {
	points, err := m.metrics.GetStatistics(ctx, endpointName, metricName, window)
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
