package assessment

import (
	"errors"
	"fmt"
	"strings"
)

// Severity is the ordinal condition level shown to the patient. The table
// covers 0..4; the simplified cascade never produces 0.
type Severity int

const (
	MinSeverity Severity = 0
	MaxSeverity Severity = 4
)

func (s Severity) Clamp() Severity {
	if s < MinSeverity {
		return MinSeverity
	}
	if s > MaxSeverity {
		return MaxSeverity
	}
	return s
}

func (s Severity) Valid() bool { return s >= MinSeverity && s <= MaxSeverity }

// Symptom question keys shared by both question sets and the record schema.
const (
	KeyVisibleVeins       = "visible_veins"
	KeyUlcers             = "ulcers"
	KeyPreviousTreatment  = "previous_treatment"
	KeySpiderVeins        = "spider_veins"
	KeyPainAndHeaviness   = "pain_and_heaviness"
	KeyBulgingVeins       = "bulging_veins"
	KeySkinDiscoloration  = "skin_discoloration"
	KeyDuration           = "duration"
	KeyLongHours          = "long_hours"
	KeyDVTHistory         = "dvt_history"
	KeyFamilyHistory      = "family_history"
	KeyPreviousTreatments = "previous_treatments"
	KeyExistingConditions = "existing_conditions"
	KeyMedications        = "medications"
)

const (
	OptionYes  = "Yes"
	OptionNo   = "No"
	OptionNone = "None"

	// NotAsked fills record columns the active question set does not cover.
	NotAsked = "not_asked"
)

type PatientInfo struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Location string `json:"location"`
}

// Answer holds either a single-select value or a multi-select set.
type Answer struct {
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// SymptomAnswers is the answer store keyed by question key.
type SymptomAnswers map[string]Answer

// Set writes an answer; the last write for a key wins.
func (a SymptomAnswers) Set(key string, ans Answer) {
	a[key] = ans
}

func (a SymptomAnswers) Value(key string) string {
	return a[key].Value
}

// IsYes reports whether a boolean-style key was answered yes. Missing keys are not yes.
func (a SymptomAnswers) IsYes(key string) bool {
	return strings.EqualFold(strings.TrimSpace(a[key].Value), OptionYes)
}

func (a SymptomAnswers) Selected(key string) []string {
	ans, ok := a[key]
	if !ok {
		return nil
	}
	out := make([]string, len(ans.Values))
	copy(out, ans.Values)
	return out
}

func (a SymptomAnswers) Includes(key, option string) bool {
	for _, v := range a[key].Values {
		if strings.EqualFold(v, option) {
			return true
		}
	}
	return false
}

func (a SymptomAnswers) Clone() SymptomAnswers {
	out := make(SymptomAnswers, len(a))
	for k, v := range a {
		out[k] = Answer{Value: v.Value, Values: append([]string(nil), v.Values...)}
	}
	return out
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) Valid() bool {
	switch u {
	case "", UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// Analysis sources.
const (
	SourceVision   = "vision"
	SourceExternal = "external"
	SourceEdge     = "edge"
	SourceFallback = "fallback"
)

// PhotoAnalysisResult is the contract every photo analyzer produces, including
// the locally synthesized fallback.
type PhotoAnalysisResult struct {
	Severity           *Severity `json:"severity,omitempty"`
	Findings           []string  `json:"findings"`
	Recommendations    []string  `json:"recommendations"`
	Confidence         float64   `json:"confidence"`
	DetailedAnalysis   string    `json:"detailed_analysis,omitempty"`
	RiskFactors        []string  `json:"risk_factors,omitempty"`
	TreatmentUrgency   Urgency   `json:"treatment_urgency,omitempty"`
	SeverityAdjustment int       `json:"severity_adjustment,omitempty"`
	Source             string    `json:"source"`
	AnalysisID         string    `json:"analysis_id,omitempty"`
	ReportURL          string    `json:"report_url,omitempty"`
	ImageURL           string    `json:"image_url,omitempty"`
}

var ErrInvalidAnalysis = errors.New("invalid photo analysis result")

// Validate rejects results outside the documented ranges. Analyzers treat a
// failed validation like any other collaborator error.
func (r *PhotoAnalysisResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrInvalidAnalysis)
	}
	if r.Severity != nil && !r.Severity.Valid() {
		return fmt.Errorf("%w: severity %d out of range", ErrInvalidAnalysis, *r.Severity)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidAnalysis, r.Confidence)
	}
	if !r.TreatmentUrgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidAnalysis, r.TreatmentUrgency)
	}
	return nil
}

func (r *PhotoAnalysisResult) HasSeverity() bool {
	return r != nil && r.Severity != nil
}

// IsFallback reports whether the result was synthesized from answers alone.
func (r *PhotoAnalysisResult) IsFallback() bool {
	return r != nil && r.Source == SourceFallback
}

// SeverityPtr is a helper for building results.
func SeverityPtr(s Severity) *Severity { return &s }

// DistinctStrings keeps the first occurrence of each non-empty string.
func DistinctStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
