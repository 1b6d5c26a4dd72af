package assessment

import "fmt"

// FallbackConfidence is the confidence reported for answer-only results.
const FallbackConfidence = 0.6

// GenericFinding is used when no answer raised a finding flag.
const GenericFinding = "Assessment based on questionnaire responses"

// SynthesizeFallback builds a photo-shaped result from the answers alone. It
// is used whenever no real photo result exists: the step was skipped, the
// analyzer failed, or the analysis was abandoned. Its severity always equals
// the set's cascade severity.
func SynthesizeFallback(set QuestionSet, a SymptomAnswers, reason string) *PhotoAnalysisResult {
	sev := CalculateSeverity(set, a)

	var findings []string
	for _, f := range set.FindingFlags {
		if a.IsYes(f.Key) {
			findings = append(findings, f.Finding)
		}
	}
	if len(findings) == 0 {
		findings = []string{GenericFinding}
	}

	detail := "Symptom-based analysis of questionnaire responses; no photo analysis was available."
	if reason != "" {
		detail = fmt.Sprintf("Symptom-based analysis of questionnaire responses (%s).", reason)
	}

	return &PhotoAnalysisResult{
		Severity:         SeverityPtr(sev),
		Findings:         DistinctStrings(findings),
		Recommendations:  RecommendationsFor(sev),
		Confidence:       FallbackConfidence,
		DetailedAnalysis: detail,
		RiskFactors:      RiskFactorsFrom(a),
		TreatmentUrgency: UrgencyFor(sev),
		Source:           SourceFallback,
	}
}

// Fallback reasons recorded in DetailedAnalysis.
const (
	ReasonSkipped   = "photo skipped"
	ReasonFailed    = "photo analysis failed"
	ReasonAbandoned = "photo analysis abandoned"
	ReasonDisabled  = "photo step disabled"
)
