package assessment

import (
	"fmt"
	"strings"
)

// MergeStrategy combines the questionnaire severity with a photo result.
type MergeStrategy interface {
	Merge(base Severity, photo *PhotoAnalysisResult) Severity
}

// OverrideMerge lets a photo severity replace the questionnaire severity
// outright, even when it is lower.
type OverrideMerge struct{}

func (OverrideMerge) Merge(base Severity, photo *PhotoAnalysisResult) Severity {
	if photo.HasSeverity() {
		return *photo.Severity
	}
	return base
}

// AdditiveMerge treats the photo as an adjustment to the questionnaire
// severity. A photo severity of 4 or an ulcer finding still wins outright.
type AdditiveMerge struct{}

func (AdditiveMerge) Merge(base Severity, photo *PhotoAnalysisResult) Severity {
	if photo == nil {
		return base
	}
	if photo.HasSeverity() && *photo.Severity == MaxSeverity {
		return MaxSeverity
	}
	if !photo.IsFallback() && photo.hasFinding("ulcer") {
		return MaxSeverity
	}
	return (base + Severity(photo.Adjustment(base))).Clamp()
}

// Adjustment is the delta the additive strategy applies to base. A delta the
// provider reported wins. Otherwise a graded photo above base raises it one
// level and never lowers it. Fallback results carry no delta of their own.
func (r *PhotoAnalysisResult) Adjustment(base Severity) int {
	if r == nil {
		return 0
	}
	if r.SeverityAdjustment != 0 || r.IsFallback() {
		return r.SeverityAdjustment
	}
	if r.HasSeverity() && *r.Severity > base {
		return 1
	}
	return 0
}

func (r *PhotoAnalysisResult) hasFinding(word string) bool {
	for _, f := range r.Findings {
		if strings.Contains(strings.ToLower(f), word) {
			return true
		}
	}
	return false
}

const (
	MergeOverride = "override"
	MergeAdditive = "additive"
)

func MergeStrategyFor(name string) (MergeStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MergeOverride:
		return OverrideMerge{}, nil
	case MergeAdditive:
		return AdditiveMerge{}, nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", name)
	}
}

// EffectiveSeverity scores the answers and applies the photo result.
func EffectiveSeverity(set QuestionSet, a SymptomAnswers, photo *PhotoAnalysisResult, m MergeStrategy) Severity {
	if m == nil {
		m = OverrideMerge{}
	}
	return m.Merge(CalculateSeverity(set, a), photo)
}
