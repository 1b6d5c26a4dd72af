package assessment

import "math"

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

type symptomWeight struct {
	key    string
	weight int
}

var riskWeights = []symptomWeight{
	{KeyUlcers, 5},
	{KeySkinDiscoloration, 4},
	{KeyBulgingVeins, 3},
	{KeyPainAndHeaviness, 3},
	{KeySpiderVeins, 2},
	{KeyLongHours, 1},
	{KeyDVTHistory, 4},
	{KeyFamilyHistory, 2},
}

// RiskAssessment is the informational weighted-sum classification. It is not
// reconciled with the cascade severity and the two may disagree.
type RiskAssessment struct {
	Level      RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`
	Severity   Severity  `json:"severity"`
	TotalScore int       `json:"total_score"`
	MaxScore   int       `json:"max_score"`
}

// ClassifyRisk sums the weights of every yes-answered key.
func ClassifyRisk(a SymptomAnswers) RiskAssessment {
	total, maxScore, hits := 0, 0, 0
	for _, w := range riskWeights {
		if a.IsYes(w.key) {
			total += w.weight
			hits++
		}
		maxScore += w.weight
	}

	sev := Severity(math.Floor(float64(total) / float64(maxScore) * 4)).Clamp()
	confidence := math.Round(float64(hits)/float64(len(riskWeights))*100) / 100

	level := RiskLow
	switch {
	case float64(total) >= float64(maxScore)*0.7:
		level = RiskHigh
	case float64(total) >= float64(maxScore)*0.4:
		level = RiskMedium
	}

	return RiskAssessment{
		Level:      level,
		Confidence: confidence,
		Severity:   sev,
		TotalScore: total,
		MaxScore:   maxScore,
	}
}

type TreatmentPlan struct {
	RecommendedTreatments []string `json:"recommended_treatments"`
	LifestyleChanges      []string `json:"lifestyle_changes"`
	Medications           []string `json:"medications"`
	FollowUpSchedule      string   `json:"follow_up_schedule"`
}

// TreatmentPlanFor returns the plan attached to a risk level.
func TreatmentPlanFor(level RiskLevel) TreatmentPlan {
	plan := TreatmentPlan{
		LifestyleChanges: []string{
			"Regular exercise",
			"Maintain healthy weight",
			"Avoid prolonged standing/sitting",
			"Elevate legs when resting",
		},
	}
	switch level {
	case RiskHigh:
		plan.RecommendedTreatments = []string{
			"Endovenous Laser Treatment (EVLT)",
			"VenaSeal Closure System",
			"Radiofrequency Ablation (RFA)",
		}
		plan.Medications = []string{"Prescribed compression stockings", "Anti-inflammatory medication"}
		plan.FollowUpSchedule = "2 weeks"
	case RiskMedium:
		plan.RecommendedTreatments = []string{"Sclerotherapy", "Ambulatory Phlebectomy"}
		plan.Medications = []string{"Compression stockings", "Over-the-counter pain relievers"}
		plan.FollowUpSchedule = "1 month"
	default:
		plan.RecommendedTreatments = []string{"Conservative management", "Compression therapy"}
		plan.Medications = []string{"Compression stockings"}
		plan.FollowUpSchedule = "3 months"
	}
	return plan
}
