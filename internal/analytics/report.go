package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PerformanceReport is the persisted report payload. The same content is
// stored as JSON and rendered as PDF.
type PerformanceReport struct {
	GeneratedAt time.Time          `json:"generated_at"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	HealthGrade string             `json:"health_grade"`
	Performance *SystemPerformance `json:"performance"`
	Plan        *ImprovementPlan   `json:"improvement_plan"`
	KeyFindings []string           `json:"key_findings"`
}

// GeneratePerformanceReport scores the window, renders JSON and PDF artifacts
// to the object store and returns the JSON key.
func (a *Analyzer) GeneratePerformanceReport(ctx context.Context, from, to time.Time) (string, error) {
	perf, err := a.AnalyzeSystemPerformance(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("generating performance report: %w", err)
	}
	plan, err := a.GenerateImprovementRecommendations(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("generating performance report: %w", err)
	}

	report := &PerformanceReport{
		GeneratedAt: time.Now(),
		From:        from,
		To:          to,
		HealthGrade: HealthGrade(perf.OverallScore),
		Performance: perf,
		Plan:        plan,
		KeyFindings: keyFindings(perf, plan),
	}

	base := fmt.Sprintf("reports/performance/%s", time.Now().UTC().Format("20060102T150405Z"))

	jsonData, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("generating performance report: marshaling: %w", err)
	}
	jsonKey := base + ".json"
	if err := a.objects.Put(ctx, jsonKey, jsonData, "application/json"); err != nil {
		return "", fmt.Errorf("generating performance report: %w", err)
	}

	pdfData, err := renderReportPDF(report)
	if err != nil {
		return "", fmt.Errorf("generating performance report: %w", err)
	}
	if err := a.objects.Put(ctx, base+".pdf", pdfData, "application/pdf"); err != nil {
		return "", fmt.Errorf("generating performance report: %w", err)
	}

	a.logger.Info("performance report generated",
		"key", jsonKey,
		"health_grade", report.HealthGrade,
		"overall_score", perf.OverallScore)

	return jsonKey, nil
}

func keyFindings(perf *SystemPerformance, plan *ImprovementPlan) []string {
	findings := []string{
		fmt.Sprintf("Overall system score is %.0f/100 (%s)", perf.OverallScore, HealthGrade(perf.OverallScore)),
	}
	if !perf.Accuracy.DataAvailable {
		findings = append(findings,
			"Accuracy figures use baseline estimates; not enough feedback collected in this window")
	} else {
		findings = append(findings, fmt.Sprintf(
			"Assessment accuracy %.1f%%, false positive rate %.1f%%",
			100*perf.Accuracy.AssessmentAccuracy, 100*perf.Accuracy.FalsePositiveRate))
	}
	if perf.Performance.DecisionsPerHour > 0 {
		findings = append(findings, fmt.Sprintf(
			"%.0f decisions per hour at %.0fms average processing time",
			perf.Performance.DecisionsPerHour, perf.Performance.AvgProcessingTimeMS))
	}
	if len(plan.Recommendations) > 0 {
		findings = append(findings, fmt.Sprintf(
			"%d improvement recommendations, %d of them quick wins",
			len(plan.Recommendations), len(plan.QuickWins)))
	}
	return findings
}

func renderReportPDF(report *PerformanceReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(33, 37, 41)
	pdf.CellFormat(0, 15, "Model Lifecycle Performance Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(108, 117, 125)
	pdf.CellFormat(0, 8, fmt.Sprintf("Window: %s to %s",
		report.From.Format("2006-01-02"), report.To.Format("2006-01-02")), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	section := func(title string) {
		pdf.SetFont("Arial", "B", 14)
		pdf.SetTextColor(33, 37, 41)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
		pdf.Ln(3)
	}
	line := func(label, value string) {
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(108, 117, 125)
		pdf.CellFormat(70, 7, label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(33, 37, 41)
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}

	section("System Health")
	gradeColor := map[string][3]int{
		"EXCELLENT": {40, 167, 69},
		"GOOD":      {66, 133, 244},
		"FAIR":      {255, 193, 7},
		"POOR":      {220, 53, 69},
	}[report.HealthGrade]
	pdf.SetFillColor(gradeColor[0], gradeColor[1], gradeColor[2])
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(60, 10, fmt.Sprintf("%s  %.0f/100", report.HealthGrade, report.Performance.OverallScore),
		"", 1, "C", true, 0, "")
	pdf.Ln(5)

	section("Accuracy")
	acc := report.Performance.Accuracy
	line("Assessment accuracy", fmt.Sprintf("%.1f%%", 100*acc.AssessmentAccuracy))
	line("Remediation effectiveness", fmt.Sprintf("%.1f%%", 100*acc.RemediationEffectiveness))
	line("False positive rate", fmt.Sprintf("%.1f%%", 100*acc.FalsePositiveRate))
	if !acc.DataAvailable {
		pdf.SetFont("Arial", "I", 9)
		pdf.SetTextColor(108, 117, 125)
		pdf.CellFormat(0, 6, "Baseline estimates: insufficient feedback in window", "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	section("Operations")
	ops := report.Performance.Performance
	line("Avg processing time", fmt.Sprintf("%.0f ms", ops.AvgProcessingTimeMS))
	line("Decisions per hour", fmt.Sprintf("%.0f", ops.DecisionsPerHour))
	line("Uptime", fmt.Sprintf("%.2f%%", 100*ops.Uptime))
	line("Error rate", fmt.Sprintf("%.2f%%", 100*ops.ErrorRate))
	pdf.Ln(5)

	if len(report.Plan.Recommendations) > 0 {
		section("Recommendations")
		for _, rec := range report.Plan.Recommendations {
			pdf.SetFont("Arial", "B", 10)
			pdf.SetTextColor(33, 37, 41)
			pdf.CellFormat(0, 7, fmt.Sprintf("[%s] %s", rec.Priority, rec.Category), "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "", 9)
			pdf.SetTextColor(108, 117, 125)
			pdf.MultiCell(0, 5, rec.Description, "", "L", false)
			pdf.Ln(2)
		}
	}

	section("Key Findings")
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(33, 37, 41)
	for _, f := range report.KeyFindings {
		pdf.MultiCell(0, 6, "- "+f, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering report PDF: %w", err)
	}
	return buf.Bytes(), nil
}
