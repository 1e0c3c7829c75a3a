package trainingdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

type Store interface {
	ListFindingsInRange(ctx context.Context, from, to time.Time) ([]models.Finding, error)
	ListAssessmentsInRange(ctx context.Context, from, to time.Time) ([]models.Assessment, error)
	ListRemediationResultsInRange(ctx context.Context, from, to time.Time) ([]models.RemediationResult, error)
	ListFeedbackInRange(ctx context.Context, from, to time.Time, types []models.FeedbackType) ([]models.FeedbackRecord, error)
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Collector assembles labeled training samples from findings, assessments,
// remediation outcomes and human feedback, and publishes versioned datasets
// to the object store.
type Collector struct {
	store     Store
	objects   ObjectStore
	splitSeed int64
	logger    *slog.Logger
}

func NewCollector(store Store, objects ObjectStore, splitSeed int64, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{store: store, objects: objects, splitSeed: splitSeed, logger: logger}
}

// CollectTrainingData joins findings with their assessments, remediation
// results and feedback over [from, to). Findings without an assessment are
// skipped since the feature vector cannot be built without one.
func (c *Collector) CollectTrainingData(ctx context.Context, from, to time.Time) ([]models.TrainingSample, error) {
	findings, err := c.store.ListFindingsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("collecting training data: listing findings: %w", err)
	}

	assessments, err := c.store.ListAssessmentsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("collecting training data: listing assessments: %w", err)
	}

	remediations, err := c.store.ListRemediationResultsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("collecting training data: listing remediation results: %w", err)
	}

	feedbackRecords, err := c.store.ListFeedbackInRange(ctx, from, to,
		[]models.FeedbackType{models.FeedbackAssessment, models.FeedbackDetection})
	if err != nil {
		return nil, fmt.Errorf("collecting training data: listing feedback: %w", err)
	}

	assessmentByFinding := make(map[uuid.UUID]models.Assessment)
	for _, a := range assessments {
		assessmentByFinding[a.FindingID] = a
	}

	remediationByFinding := make(map[uuid.UUID]models.RemediationResult)
	for _, r := range remediations {
		// Lists come back oldest first, so later results overwrite earlier ones.
		remediationByFinding[r.FindingID] = r
	}

	assessmentFeedback := make(map[uuid.UUID]models.FeedbackRecord)
	detectionFeedback := make(map[uuid.UUID]models.FeedbackRecord)
	for _, fb := range feedbackRecords {
		if fb.FindingID == nil {
			continue
		}
		switch fb.FeedbackType {
		case models.FeedbackAssessment:
			assessmentFeedback[*fb.FindingID] = fb
		case models.FeedbackDetection:
			detectionFeedback[*fb.FindingID] = fb
		}
	}

	samples := make([]models.TrainingSample, 0, len(findings))
	skipped := 0
	for _, finding := range findings {
		assessment, ok := assessmentByFinding[finding.ID]
		if !ok {
			skipped++
			continue
		}

		sample := models.TrainingSample{
			FindingID: finding.ID,
			Features:  ExtractFeatures(finding, assessment),
		}

		if fb, ok := assessmentFeedback[finding.ID]; ok {
			sample.HumanFeedback = humanFeedbackFromPayload(fb.Payload)
		}
		if fb, ok := detectionFeedback[finding.ID]; ok {
			if fp, ok := fb.Payload["false_positive"].(bool); ok {
				sample.Outcome.FalsePositive = fp
			}
		}
		if rem, ok := remediationByFinding[finding.ID]; ok {
			outcome := rem.Outcome
			sample.RemediationOutcome = &outcome
			sample.Outcome.RemediationSuccess = outcome == models.RemediationSuccess
		}

		samples = append(samples, sample)
	}

	c.logger.Info("training data collected",
		"samples", len(samples),
		"skipped_without_assessment", skipped,
		"from", from,
		"to", to)

	return samples, nil
}

func humanFeedbackFromPayload(payload models.JSONB) *models.HumanFeedback {
	hf := &models.HumanFeedback{}
	if correct, ok := payload["correct"].(bool); ok {
		hf.AssessmentCorrect = correct
	}
	if corrected, ok := payload["corrected_risk_score"].(float64); ok {
		hf.CorrectedRiskScore = &corrected
	}
	return hf
}

// LabeledExample is one training row after task-specific projection.
type LabeledExample struct {
	Features map[string]interface{} `json:"features"`
	Target   float64                `json:"target"`
}

// PrepareDataForTask projects samples into task-specific labeled examples.
// Tasks that need a label source the sample lacks drop that sample.
func (c *Collector) PrepareDataForTask(samples []models.TrainingSample, taskType models.TaskType) ([]LabeledExample, error) {
	if !models.ValidTaskType(taskType) {
		return nil, fmt.Errorf("unsupported task type: %s", taskType)
	}

	var examples []LabeledExample
	for _, s := range samples {
		switch taskType {
		case models.TaskRiskPrediction:
			target, _ := s.Features["risk_score"].(float64)
			if s.HumanFeedback != nil && s.HumanFeedback.CorrectedRiskScore != nil {
				target = *s.HumanFeedback.CorrectedRiskScore
			}
			features := copyWithout(s.Features, "risk_score")
			examples = append(examples, LabeledExample{Features: features, Target: target})

		case models.TaskFalsePositive:
			if s.HumanFeedback == nil {
				continue
			}
			examples = append(examples, LabeledExample{
				Features: copyFeatures(s.Features),
				Target:   boolTarget(s.Outcome.FalsePositive),
			})

		case models.TaskRemediationSuccess:
			if s.RemediationOutcome == nil {
				continue
			}
			examples = append(examples, LabeledExample{
				Features: copyFeatures(s.Features),
				Target:   boolTarget(s.Outcome.RemediationSuccess),
			})
		}
	}

	return examples, nil
}

func boolTarget(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func copyFeatures(features map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(features))
	for k, v := range features {
		out[k] = v
	}
	return out
}

func copyWithout(features map[string]interface{}, drop string) map[string]interface{} {
	out := copyFeatures(features)
	delete(out, drop)
	return out
}

// StoreTrainingDataset shuffles the examples with the configured seed, splits
// them 80/20 and writes train, validation and metadata artifacts under a
// versioned key. The seeded shuffle makes a given input set reproducible.
func (c *Collector) StoreTrainingDataset(ctx context.Context, examples []LabeledExample, taskType models.TaskType) (*models.DatasetVersion, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("storing training dataset: no examples for task %s", taskType)
	}

	shuffled := make([]LabeledExample, len(examples))
	copy(shuffled, examples)
	rng := rand.New(rand.NewSource(c.splitSeed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	trainCount := int(float64(len(shuffled)) * 0.8)
	train := shuffled[:trainCount]
	validation := shuffled[trainCount:]

	key := fmt.Sprintf("training-data/%s/%s", taskType, time.Now().UTC().Format("20060102T150405Z"))

	trainData, err := json.Marshal(train)
	if err != nil {
		return nil, fmt.Errorf("storing training dataset: marshaling train split: %w", err)
	}
	if err := c.objects.Put(ctx, key+"/train.json", trainData, "application/json"); err != nil {
		return nil, fmt.Errorf("storing training dataset: %w", err)
	}

	validationData, err := json.Marshal(validation)
	if err != nil {
		return nil, fmt.Errorf("storing training dataset: marshaling validation split: %w", err)
	}
	if err := c.objects.Put(ctx, key+"/validation.json", validationData, "application/json"); err != nil {
		return nil, fmt.Errorf("storing training dataset: %w", err)
	}

	distribution := make(map[string]int)
	for _, ex := range shuffled {
		if ft, ok := ex.Features["finding_type"].(string); ok {
			distribution[ft]++
		}
	}

	version := &models.DatasetVersion{
		Key:             key,
		TaskType:        taskType,
		TotalSamples:    len(shuffled),
		TrainCount:      len(train),
		ValidationCount: len(validation),
		FeatureNames:    featureNames(shuffled[0].Features),
		Config: models.JSONB{
			"split_seed":                c.splitSeed,
			"train_ratio":               0.8,
			"finding_type_distribution": distribution,
		},
		CreatedAt: time.Now(),
	}

	metadata, err := json.Marshal(version)
	if err != nil {
		return nil, fmt.Errorf("storing training dataset: marshaling metadata: %w", err)
	}
	if err := c.objects.Put(ctx, key+"/metadata.json", metadata, "application/json"); err != nil {
		return nil, fmt.Errorf("storing training dataset: %w", err)
	}

	c.logger.Info("training dataset stored",
		"key", key,
		"task_type", taskType,
		"train", len(train),
		"validation", len(validation))

	return version, nil
}

func featureNames(features map[string]interface{}) []string {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildDataset runs the full collect, prepare and store sequence for one task.
func (c *Collector) BuildDataset(ctx context.Context, taskType models.TaskType, from, to time.Time) (*models.DatasetVersion, error) {
	samples, err := c.CollectTrainingData(ctx, from, to)
	if err != nil {
		return nil, err
	}

	examples, err := c.PrepareDataForTask(samples, taskType)
	if err != nil {
		return nil, err
	}

	return c.StoreTrainingDataset(ctx, examples, taskType)
}

// DatasetStats summarizes what a collection window would yield.
type DatasetStats struct {
	TotalSamples         int            `json:"total_samples"`
	WithHumanFeedback    int            `json:"with_human_feedback"`
	WithRemediationLabel int            `json:"with_remediation_label"`
	ByFindingType        map[string]int `json:"by_finding_type"`
	BySeverity           map[string]int `json:"by_severity"`
	MeanRiskScore        float64        `json:"mean_risk_score"`
	MeanConfidence       float64        `json:"mean_confidence"`
}

func (c *Collector) GetTrainingDataStats(ctx context.Context, from, to time.Time) (*DatasetStats, error) {
	samples, err := c.CollectTrainingData(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &DatasetStats{
		TotalSamples:  len(samples),
		ByFindingType: make(map[string]int),
		BySeverity:    make(map[string]int),
	}

	var riskSum, confSum float64
	for _, s := range samples {
		if s.HumanFeedback != nil {
			stats.WithHumanFeedback++
		}
		if s.RemediationOutcome != nil {
			stats.WithRemediationLabel++
		}
		if ft, ok := s.Features["finding_type"].(string); ok {
			stats.ByFindingType[ft]++
		}
		if sev, ok := s.Features["severity"].(string); ok {
			stats.BySeverity[sev]++
		}
		if rs, ok := s.Features["risk_score"].(float64); ok {
			riskSum += rs
		}
		if cs, ok := s.Features["confidence_score"].(float64); ok {
			confSum += cs
		}
	}

	if len(samples) > 0 {
		stats.MeanRiskScore = riskSum / float64(len(samples))
		stats.MeanConfidence = confSum / float64(len(samples))
	}

	return stats, nil
}
