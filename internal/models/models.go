package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// StringArray is an alias for pq.StringArray to handle PostgreSQL arrays
type StringArray = pq.StringArray

type TaskType string

const (
	TaskRiskPrediction     TaskType = "risk_prediction"
	TaskFalsePositive      TaskType = "false_positive_detection"
	TaskRemediationSuccess TaskType = "remediation_success_prediction"
)

// ValidTaskType reports whether t names one of the supported prediction tasks.
func ValidTaskType(t TaskType) bool {
	switch t {
	case TaskRiskPrediction, TaskFalsePositive, TaskRemediationSuccess:
		return true
	}
	return false
}

// ModelNameForTask maps a task type to its registered model family name.
func ModelNameForTask(t TaskType) string {
	return "privacyguard-" + strings.ReplaceAll(string(t), "_", "-")
}

type FindingSeverity string

const (
	SeverityCritical FindingSeverity = "CRITICAL"
	SeverityHigh     FindingSeverity = "HIGH"
	SeverityMedium   FindingSeverity = "MEDIUM"
	SeverityLow      FindingSeverity = "LOW"
	SeverityInfo     FindingSeverity = "INFO"
)

type RemediationOutcome string

const (
	RemediationSuccess RemediationOutcome = "SUCCESS"
	RemediationPartial RemediationOutcome = "PARTIAL"
	RemediationFailure RemediationOutcome = "FAILURE"
)

type TrainingJobStatus string

const (
	JobInProgress TrainingJobStatus = "InProgress"
	JobCompleted  TrainingJobStatus = "Completed"
	JobFailed     TrainingJobStatus = "Failed"
)

type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalPending  ApprovalStatus = "PendingManualApproval"
	ApprovalRejected ApprovalStatus = "Rejected"
)

type DeploymentStatus string

const (
	DeploymentSuccess DeploymentStatus = "SUCCESS"
	DeploymentFailed  DeploymentStatus = "FAILED"
)

type PipelineStatus string

const (
	PipelineTrainingCompleted PipelineStatus = "TRAINING_COMPLETED"
	PipelineDeployed          PipelineStatus = "DEPLOYED"
	PipelineFailed            PipelineStatus = "FAILED"
)

type DecisionType string

const (
	DecisionAssessment  DecisionType = "assessment_decision"
	DecisionRemediation DecisionType = "remediation_decision"
	DecisionPrediction  DecisionType = "model_prediction"
	DecisionSystem      DecisionType = "system_decision"
)

type FeedbackType string

const (
	FeedbackAssessment  FeedbackType = "assessment_feedback"
	FeedbackRemediation FeedbackType = "remediation_feedback"
	FeedbackDetection   FeedbackType = "detection_feedback"
	FeedbackSystem      FeedbackType = "system_feedback"
)

type ScheduleFrequency string

const (
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// LegalMapping ties a finding to the regulation article it implicates.
type LegalMapping struct {
	Regulation    string `json:"regulation"`
	Article       string `json:"article"`
	Applicability string `json:"applicability"`
}

type LegalMappingList []LegalMapping

func (l LegalMappingList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *LegalMappingList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, l)
}

// RemediationRecommendation is a proposed fix attached to an assessment.
type RemediationRecommendation struct {
	Action      string `json:"action"`
	Priority    string `json:"priority"`
	Automatable bool   `json:"automatable"`
	Parameters  JSONB  `json:"parameters,omitempty"`
}

type RecommendationList []RemediationRecommendation

func (r RecommendationList) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *RecommendationList) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, r)
}

// Finding is a detected compliance issue on a resource. Findings are produced
// by an external detector and are immutable once recorded.
type Finding struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ResourceARN string          `json:"resource_arn" db:"resource_arn"`
	FindingType string          `json:"finding_type" db:"finding_type"`
	Severity    FindingSeverity `json:"severity" db:"severity"`
	Description string          `json:"description" db:"description"`
	RawPayload  JSONB           `json:"raw_payload" db:"raw_payload"`
	DetectedAt  time.Time       `json:"detected_at" db:"detected_at"`
}

// Assessment is the risk/legal analysis of a single finding.
type Assessment struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	FindingID       uuid.UUID          `json:"finding_id" db:"finding_id"`
	RiskScore       float64            `json:"risk_score" db:"risk_score"`
	ConfidenceScore float64            `json:"confidence_score" db:"confidence_score"`
	LegalMappings   LegalMappingList   `json:"legal_mappings" db:"legal_mappings"`
	Recommendations RecommendationList `json:"recommendations" db:"recommendations"`
	Reasoning       string             `json:"reasoning" db:"reasoning"`
	AssessedAt      time.Time          `json:"assessed_at" db:"assessed_at"`
}

// RemediationResult records the outcome of an executed remediation.
type RemediationResult struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	FindingID         uuid.UUID          `json:"finding_id" db:"finding_id"`
	Action            string             `json:"action" db:"action"`
	Outcome           RemediationOutcome `json:"outcome" db:"outcome"`
	RollbackAvailable bool               `json:"rollback_available" db:"rollback_available"`
	ExecutedAt        time.Time          `json:"executed_at" db:"executed_at"`
}

// SampleOutcome is the label side of a training sample.
type SampleOutcome struct {
	RemediationSuccess bool `json:"remediation_success"`
	FalsePositive      bool `json:"false_positive"`
}

// HumanFeedback is the condensed feedback attached to a training sample.
type HumanFeedback struct {
	AssessmentCorrect  bool     `json:"assessment_correct"`
	CorrectedRiskScore *float64 `json:"corrected_risk_score,omitempty"`
}

// TrainingSample is one labeled example assembled from a finding, its
// assessment, remediation outcomes and human feedback.
type TrainingSample struct {
	FindingID          uuid.UUID              `json:"finding_id"`
	Features           map[string]interface{} `json:"features"`
	HumanFeedback      *HumanFeedback         `json:"human_feedback,omitempty"`
	RemediationOutcome *RemediationOutcome    `json:"remediation_outcome,omitempty"`
	Outcome            SampleOutcome          `json:"outcome"`
}

// DatasetVersion describes a stored train/validation split. Immutable once
// written to the object store.
type DatasetVersion struct {
	Key             string    `json:"key" db:"key"`
	TaskType        TaskType  `json:"task_type" db:"task_type"`
	TotalSamples    int       `json:"total_samples" db:"total_samples"`
	TrainCount      int       `json:"train_count" db:"train_count"`
	ValidationCount int       `json:"validation_count" db:"validation_count"`
	FeatureNames    []string  `json:"feature_names" db:"-"`
	Config          JSONB     `json:"config" db:"config"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// TrainingJob mirrors the managed compute job. Terminal once Completed or
// Failed.
type TrainingJob struct {
	JobName   string             `json:"job_name"`
	TaskType  TaskType           `json:"task_type"`
	Algorithm string             `json:"algorithm"`
	Status    TrainingJobStatus  `json:"status"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// ModelVersion is a registered, immutable model. Registration happens only
// when the promotion gate passes.
type ModelVersion struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	ModelName      string         `json:"model_name" db:"model_name"`
	Version        string         `json:"version" db:"version"`
	TaskType       TaskType       `json:"task_type" db:"task_type"`
	Algorithm      string         `json:"algorithm" db:"algorithm"`
	Metrics        JSONB          `json:"metrics" db:"metrics"`
	ApprovalStatus ApprovalStatus `json:"approval_status" db:"approval_status"`
	ArtifactsURL   string         `json:"artifacts_url" db:"artifacts_url"`
	RegisteredAt   time.Time      `json:"registered_at" db:"registered_at"`
}

// DeploymentRecord captures one deploy attempt against a serving endpoint.
type DeploymentRecord struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	ModelName         string           `json:"model_name" db:"model_name"`
	ModelVersion      string           `json:"model_version" db:"model_version"`
	EndpointName      string           `json:"endpoint_name" db:"endpoint_name"`
	Status            DeploymentStatus `json:"status" db:"status"`
	ValidationResults JSONB            `json:"validation_results" db:"validation_results"`
	ErrorMessage      string           `json:"error_message,omitempty" db:"error_message"`
	DeployedAt        time.Time        `json:"deployed_at" db:"deployed_at"`
}

// RetrainingSchedule is a recurring trigger re-running the full pipeline for
// one task type. Exactly one pending NextExecution at a time.
type RetrainingSchedule struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	TaskType       TaskType          `json:"task_type" db:"task_type"`
	Frequency      ScheduleFrequency `json:"frequency" db:"frequency"`
	PipelineConfig JSONB             `json:"pipeline_config" db:"pipeline_config"`
	NextExecution  time.Time         `json:"next_execution" db:"next_execution"`
	LastExecution  *time.Time        `json:"last_execution,omitempty" db:"last_execution"`
	Enabled        bool              `json:"enabled" db:"enabled"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// PipelineExecution tracks one end-to-end pipeline run. Terminal once
// OverallStatus is set.
type PipelineExecution struct {
	PipelineID       string         `json:"pipeline_id" db:"pipeline_id"`
	TaskType         TaskType       `json:"task_type" db:"task_type"`
	TrainingResult   JSONB          `json:"training_result" db:"training_result"`
	DeploymentResult JSONB          `json:"deployment_result,omitempty" db:"deployment_result"`
	OverallStatus    PipelineStatus `json:"overall_status" db:"overall_status"`
	ErrorMessage     string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt        time.Time      `json:"started_at" db:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// DecisionRecord is one append-only audit entry. Detailed reasoning lives in
// the object store under ReasoningRef to keep the row compact.
type DecisionRecord struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	DecisionType     DecisionType `json:"decision_type" db:"decision_type"`
	FindingID        *uuid.UUID   `json:"finding_id,omitempty" db:"finding_id"`
	ModelUsed        string       `json:"model_used" db:"model_used"`
	Input            JSONB        `json:"input" db:"input"`
	Output           JSONB        `json:"output" db:"output"`
	Confidence       float64      `json:"confidence" db:"confidence"`
	RiskScore        float64      `json:"risk_score" db:"risk_score"`
	ProcessingTimeMS float64      `json:"processing_time_ms" db:"processing_time_ms"`
	ReasoningRef     string       `json:"reasoning_ref,omitempty" db:"reasoning_ref"`
	Timestamp        time.Time    `json:"timestamp" db:"timestamp"`
}

// FeedbackRecord is one piece of human feedback. Processed transitions
// pending -> processed exactly once and never reverses.
type FeedbackRecord struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	FeedbackType FeedbackType `json:"feedback_type" db:"feedback_type"`
	FindingID    *uuid.UUID   `json:"finding_id,omitempty" db:"finding_id"`
	DecisionID   *uuid.UUID   `json:"decision_id,omitempty" db:"decision_id"`
	UserID       string       `json:"user_id" db:"user_id"`
	Payload      JSONB        `json:"payload" db:"payload"`
	Rating       int          `json:"rating" db:"rating"`
	Processed    bool         `json:"processed" db:"processed"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty" db:"processed_at"`
}
