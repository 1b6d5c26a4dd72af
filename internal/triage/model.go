package triage

import (
	"time"

	"vein-assessment/internal/assessment"
)

// Phase is where a session sits in the flow.
type Phase string

const (
	PhaseQuestionnaire Phase = "questionnaire"
	PhasePhoto         Phase = "photo"
	PhaseAnalyzing     Phase = "analyzing"
	PhaseResults       Phase = "results"
)

// Session is the aggregate root for one patient walk-through. It is stored as
// a single JSON document and only mutated under the session's lock.
type Session struct {
	ID        string                 `json:"id"`
	Patient   assessment.PatientInfo `json:"patient"`
	Variant   assessment.Variant     `json:"variant"`
	PhotoStep bool                   `json:"photo_step"`
	Phase     Phase                  `json:"phase"`
	Sequence  assessment.Snapshot    `json:"sequence"`
	ImageURL  string                 `json:"image_url,omitempty"`
	Result    *Result                `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Result is what the patient sees once the flow is over.
type Result struct {
	RecordID      string                          `json:"record_id"`
	Severity      assessment.Severity             `json:"severity"`
	Bundle        assessment.RecommendationBundle `json:"recommendation"`
	Photo         *assessment.PhotoAnalysisResult `json:"photo_analysis"`
	Risk          assessment.RiskAssessment       `json:"risk"`
	TreatmentPlan assessment.TreatmentPlan        `json:"treatment_plan"`
}

// View is the API shape of a session.
type View struct {
	ID              string                 `json:"id"`
	Phase           Phase                  `json:"phase"`
	Patient         assessment.PatientInfo `json:"patient"`
	Variant         assessment.Variant     `json:"variant"`
	Transcript      []assessment.Message   `json:"transcript"`
	CurrentQuestion *assessment.Question   `json:"current_question,omitempty"`
	Answered        int                    `json:"answered"`
	Total           int                    `json:"total"`
	Result          *Result                `json:"result,omitempty"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalAssessments int     `json:"total_assessments"`
	HighSeverity     int     `json:"high_severity"`
	AverageAge       float64 `json:"average_age"`
	WithImages       int     `json:"with_images"`
}

// HighSeverityThreshold is the level from which an assessment counts as high severity.
const HighSeverityThreshold assessment.Severity = 3

// ComputeStats summarizes records. AverageAge is rounded to one decimal.
func ComputeStats(records []assessment.AssessmentRecord) Stats {
	var s Stats
	ageSum := 0
	for _, r := range records {
		s.TotalAssessments++
		if r.SeverityLevel >= HighSeverityThreshold {
			s.HighSeverity++
		}
		if r.HasImage() {
			s.WithImages++
		}
		ageSum += r.PatientAge
	}
	if s.TotalAssessments > 0 {
		avg := float64(ageSum) / float64(s.TotalAssessments)
		s.AverageAge = float64(int(avg*10+0.5)) / 10
	}
	return s
}

// ListFilter narrows the admin record listing. It is decoded from the query string.
type ListFilter struct {
	Limit       int    `schema:"limit"`
	Offset      int    `schema:"offset"`
	MinSeverity int    `schema:"min_severity"`
	Variant     string `schema:"variant"`
	Location    string `schema:"location"`
}
