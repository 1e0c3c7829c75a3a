package compute

import (
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// TrainingJobSpec describes a managed training job submission.
type TrainingJobSpec struct {
	JobName         string
	RoleARN         string
	TrainingImage   string
	Hyperparameters map[string]string
	InputS3URI      string
	ValidationS3URI string
	OutputS3URI     string
	InstanceType    string
	InstanceCount   int32
	VolumeSizeGB    int32
	MaxRuntime      time.Duration
}

// TrainingJobState is the observed state of a submitted job.
type TrainingJobState struct {
	Status        models.TrainingJobStatus
	Metrics       map[string]float64
	ModelDataURL  string
	FailureReason string
}

// ModelSpec describes a serving model resource.
type ModelSpec struct {
	ModelName    string
	Image        string
	ModelDataURL string
	RoleARN      string
}

// VariantSpec is one production variant behind an endpoint.
type VariantSpec struct {
	VariantName   string
	ModelName     string
	InstanceType  string
	InstanceCount int32
	Weight        float32
}

// EndpointConfigSpec describes an endpoint configuration. CaptureS3URI, when
// set, enables 100% request/response data capture.
type EndpointConfigSpec struct {
	ConfigName   string
	Variants     []VariantSpec
	CaptureS3URI string
}

// Datapoint is one metric observation from the metrics collaborator.
type Datapoint struct {
	Timestamp time.Time
	Average   float64
}
