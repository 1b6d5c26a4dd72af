package assessment

import "time"

// recordSymptomKeys are the flattened symptom columns, in export order.
var recordSymptomKeys = []string{
	KeySpiderVeins,
	KeyPainAndHeaviness,
	KeyBulgingVeins,
	KeySkinDiscoloration,
	KeyUlcers,
	KeyDuration,
	KeyLongHours,
	KeyDVTHistory,
	KeyFamilyHistory,
	KeyVisibleVeins,
	KeyPreviousTreatment,
}

// RecordSymptomKeys returns the flattened symptom columns in export order.
func RecordSymptomKeys() []string {
	return append([]string(nil), recordSymptomKeys...)
}

// AssessmentRecord is the persisted, never-updated result of one session.
type AssessmentRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PatientName     string  `json:"patient_name"`
	PatientAge      int     `json:"patient_age"`
	PatientLocation string  `json:"patient_location"`
	Variant         Variant `json:"variant"`

	Symptoms           map[string]string `json:"symptoms"`
	PreviousTreatments []string          `json:"previous_treatments"`
	ExistingConditions []string          `json:"existing_conditions"`
	Medications        []string          `json:"medications"`

	SeverityLevel  Severity `json:"severity_level"`
	StageTitle     string   `json:"stage_title"`
	Urgency        string   `json:"urgency"`
	Recommendation string   `json:"recommendation"`
	Treatments     []string `json:"treatments"`

	RiskLevel     RiskLevel     `json:"risk_level"`
	AIConfidence  float64       `json:"ai_confidence_score"`
	TreatmentPlan TreatmentPlan `json:"treatment_plan"`

	PhotoAnalyzed           bool                 `json:"photo_analyzed"`
	PhotoAnalysis           *PhotoAnalysisResult `json:"photo_analysis,omitempty"`
	ImageAnalysisConfidence float64              `json:"image_analysis_confidence"`
	ImageURL                string               `json:"image_url,omitempty"`
}

// Symptom returns a flattened symptom column.
func (r AssessmentRecord) Symptom(key string) string {
	if v, ok := r.Symptoms[key]; ok {
		return v
	}
	return NotAsked
}

// HasImage reports whether a real photo was analyzed.
func (r AssessmentRecord) HasImage() bool {
	return r.PhotoAnalyzed || r.ImageURL != ""
}

type AssembleInput struct {
	ID        string
	CreatedAt time.Time
	Patient   PatientInfo
	Set       QuestionSet
	Answers   SymptomAnswers
	Severity  Severity
	Bundle    RecommendationBundle
	Photo     *PhotoAnalysisResult
}

// Assemble flattens a finished session into its record.
func Assemble(in AssembleInput) AssessmentRecord {
	risk := ClassifyRisk(in.Answers)
	rec := AssessmentRecord{
		ID:              in.ID,
		CreatedAt:       in.CreatedAt.UTC(),
		PatientName:     in.Patient.Name,
		PatientAge:      in.Patient.Age,
		PatientLocation: in.Patient.Location,
		Variant:         in.Set.Variant,
		Symptoms:        flattenSymptoms(in.Set, in.Answers),
		SeverityLevel:   in.Severity,
		StageTitle:      in.Bundle.Title,
		Urgency:         in.Bundle.Urgency,
		Recommendation:  in.Bundle.Description,
		Treatments:      append([]string(nil), in.Bundle.Treatments...),
		RiskLevel:       risk.Level,
		AIConfidence:    risk.Confidence,
		TreatmentPlan:   TreatmentPlanFor(risk.Level),
	}

	rec.PreviousTreatments = listColumn(in.Set, in.Answers, KeyPreviousTreatments)
	if in.Set.Variant == VariantSimplified {
		rec.PreviousTreatments = []string{OptionNone}
		if in.Answers.IsYes(KeyPreviousTreatment) {
			rec.PreviousTreatments = []string{"Previous treatment"}
		}
	}
	rec.ExistingConditions = listColumn(in.Set, in.Answers, KeyExistingConditions)
	rec.Medications = listColumn(in.Set, in.Answers, KeyMedications)

	if in.Photo != nil {
		p := *in.Photo
		rec.PhotoAnalysis = &p
		rec.PhotoAnalyzed = !p.IsFallback()
		rec.ImageAnalysisConfidence = p.Confidence
		rec.ImageURL = p.ImageURL
	}
	return rec
}

func flattenSymptoms(set QuestionSet, a SymptomAnswers) map[string]string {
	out := make(map[string]string, len(recordSymptomKeys))
	for _, k := range recordSymptomKeys {
		src := k
		if alias, ok := set.Aliases[k]; ok {
			src = alias
		}
		if !set.Asks(src) {
			out[k] = NotAsked
			continue
		}
		out[k] = a.Value(src)
	}
	return out
}

func listColumn(set QuestionSet, a SymptomAnswers, key string) []string {
	if !set.Asks(key) {
		return []string{}
	}
	v := a.Selected(key)
	if v == nil {
		return []string{}
	}
	return v
}
