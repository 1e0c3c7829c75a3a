package trainingdata

import (
	"encoding/json"
	"strings"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// ExtractFeatures derives the model feature vector from a finding and its
// assessment. It is pure: the same inputs always yield the same map, which
// keeps stored datasets reproducible.
func ExtractFeatures(finding models.Finding, assessment models.Assessment) map[string]interface{} {
	features := map[string]interface{}{
		"finding_type":  finding.FindingType,
		"severity":      string(finding.Severity),
		"resource_type": resourceTypeFromARN(finding.ResourceARN),

		"risk_score":       assessment.RiskScore,
		"confidence_score": assessment.ConfidenceScore,

		"legal_mapping_count":             len(assessment.LegalMappings),
		"recommendation_count":            len(assessment.Recommendations),
		"automatable_recommendation_count": countAutomatable(assessment.Recommendations),

		"detection_hour":        finding.DetectedAt.UTC().Hour(),
		"detection_day_of_week": int(finding.DetectedAt.UTC().Weekday()),
		"assessment_latency_ms": assessment.AssessedAt.Sub(finding.DetectedAt).Milliseconds(),

		"payload_complexity": payloadComplexity(finding.RawPayload),
	}

	for regulation, count := range countMappingsByRegulation(assessment.LegalMappings) {
		features["mappings_"+regulation] = count
	}

	return features
}

func resourceTypeFromARN(arn string) string {
	// arn:partition:service:region:account:resource
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 3 || parts[2] == "" {
		return "unknown"
	}
	return parts[2]
}

func countAutomatable(recs models.RecommendationList) int {
	n := 0
	for _, r := range recs {
		if r.Automatable {
			n++
		}
	}
	return n
}

func countMappingsByRegulation(mappings models.LegalMappingList) map[string]int {
	counts := make(map[string]int)
	for _, m := range mappings {
		counts[strings.ToLower(m.Regulation)]++
	}
	return counts
}

// payloadComplexity is the serialized length of the raw detector payload.
// json.Marshal sorts map keys, so the measure is stable per payload.
func payloadComplexity(payload models.JSONB) int {
	if payload == nil {
		return 0
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(data)
}
