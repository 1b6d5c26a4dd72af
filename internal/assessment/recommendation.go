package assessment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRecommendation means a severity has no table entry. It is an internal
// consistency failure, never a user error.
var ErrNoRecommendation = errors.New("no recommendation defined for severity")

type Action struct {
	Label   string `json:"label"`
	Primary bool   `json:"primary"`
}

type RecommendationBundle struct {
	Level       Severity `json:"level"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Urgency     string   `json:"urgency"`
	Treatments  []string `json:"treatments"`
	Actions     []Action `json:"actions"`
}

const (
	photoAnalysisLabel = "AI Photo Analysis"
	symptomLabel       = "Symptom-Based Analysis"
)

var recommendationTable = map[Severity]RecommendationBundle{
	0: {
		Title:       "Stage 0 – Healthy Legs / No Visible Signs",
		Description: "Great news! Based on your assessment, your legs appear healthy with no visible signs of vein problems. Continue with preventive care to maintain good vein health.",
		Color:       "green",
		Urgency:     "Low",
		Treatments:  []string{"Continue regular exercise and walking", "Maintain healthy weight", "Elevate legs when resting"},
		Actions:     []Action{{"Schedule Preventive Check-up", true}, {"Learn Prevention Tips", false}},
	},
	1: {
		Title:       "Stage 1 – Early Assessment / Prevention",
		Description: "Based on your responses, you may be in the early stages or at risk. Regular monitoring and preventive care are recommended.",
		Color:       "blue",
		Urgency:     "Low",
		Treatments:  []string{"Lifestyle changes (walking, leg elevation)", "Preventive compression stockings", "Regular monitoring"},
		Actions:     []Action{{"Book Consultation", true}, {"Learn Prevention Tips", false}},
	},
	2: {
		Title:       "Stage 2 – Visible Veins Present",
		Description: "You have visible veins on your legs. Early intervention can prevent progression to more severe stages.",
		Color:       "yellow",
		Urgency:     "Medium",
		Treatments:  []string{"Sclerotherapy or foam injections", "Endovenous Laser Therapy (EVLT)", "Compression stockings"},
		Actions:     []Action{{"Book Video Consultation", true}, {"Get Doppler Ultrasound", false}, {"Visit Clinic", false}},
	},
	3: {
		Title:       "Stage 3 – Advanced Varicose Veins with Previous Treatment",
		Description: "You have visible veins and have tried treatments before. This suggests a more complex condition that may require advanced intervention.",
		Color:       "orange",
		Urgency:     "High",
		Treatments:  []string{"Endovenous ablation (laser/RFA)", "Phlebectomy (removal of affected veins)", "Advanced compression therapy"},
		Actions:     []Action{{"Book In-Person Consultation", true}, {"Get Treatment Plan", false}, {"Schedule Within 2-3 Weeks", false}},
	},
	4: {
		Title:       "Stage 4 – Non-Healing Ulcers or Chronic Venous Insufficiency",
		Description: "You have leg ulcers, open wounds, or venous eczema. This is the most serious stage and needs immediate medical attention.",
		Color:       "red",
		Urgency:     "Urgent",
		Treatments:  []string{"Wound care and ulcer management", "Laser or surgical vein treatment", "Long-term compression therapy & monitoring"},
		Actions:     []Action{{"Book Urgent Care Consult", true}, {"Find Nearest Clinic", false}, {"Begin Wound Care Protocol", false}},
	},
}

// Resolve returns the bundle for a level, augmented with the photo findings
// when there are any. The table itself is never mutated.
func Resolve(level Severity, photo *PhotoAnalysisResult) (RecommendationBundle, error) {
	base, ok := recommendationTable[level]
	if !ok {
		return RecommendationBundle{}, fmt.Errorf("%w: %d", ErrNoRecommendation, level)
	}

	out := RecommendationBundle{
		Level:       level,
		Title:       base.Title,
		Description: base.Description,
		Color:       base.Color,
		Urgency:     base.Urgency,
		Treatments:  append([]string(nil), base.Treatments...),
		Actions:     append([]Action(nil), base.Actions...),
	}

	if photo != nil && len(photo.Findings) > 0 {
		label := photoAnalysisLabel
		if photo.IsFallback() {
			label = symptomLabel
		}
		out.Description = base.Description + "\n\n" + label + ": " + strings.Join(photo.Findings, ", ")
		out.Treatments = append(out.Treatments, photo.Recommendations...)
	}
	return out, nil
}

// ResolveNearest clamps an out-of-range level before resolving and reports
// whether it had to.
func ResolveNearest(level Severity, photo *PhotoAnalysisResult) (RecommendationBundle, bool, error) {
	clamped := level.Clamp()
	b, err := Resolve(clamped, photo)
	return b, clamped != level, err
}

// PrimaryAction returns the first action flagged primary.
func (b RecommendationBundle) PrimaryAction() (Action, bool) {
	for _, a := range b.Actions {
		if a.Primary {
			return a, true
		}
	}
	return Action{}, false
}
