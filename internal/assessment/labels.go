package assessment

import "strings"

var labelPatterns = []struct {
	level    Severity
	patterns []string
}{
	{4, []string{"stage 4", "severe", "ulcer"}},
	{3, []string{"stage 3", "advanced", "significant"}},
	{2, []string{"stage 2", "moderate"}},
	{1, []string{"stage 1", "mild", "early", "spider"}},
	{0, []string{"stage 0", "no visible", "healthy", "normal"}},
}

// DefaultLabelSeverity is returned for text no pattern recognizes.
const DefaultLabelSeverity Severity = 1

// ParseSeverityLabel maps free text to a severity. Patterns are checked from
// most to least severe, so "severe spider veins" is 4. It never fails.
func ParseSeverityLabel(text string) Severity {
	t := strings.ToLower(text)
	for _, p := range labelPatterns {
		for _, s := range p.patterns {
			if strings.Contains(t, s) {
				return p.level
			}
		}
	}
	return DefaultLabelSeverity
}

func UrgencyFor(s Severity) Urgency {
	switch {
	case s >= 4:
		return UrgencyUrgent
	case s == 3:
		return UrgencyHigh
	case s == 2:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// RecommendationsFor returns the photo-analysis recommendations for a severity.
func RecommendationsFor(s Severity) []string {
	switch s {
	case 4:
		return []string{
			"Immediate medical consultation required",
			"Wound care and ulcer management",
			"Consider surgical intervention",
			"Compression therapy under medical supervision",
		}
	case 3:
		return []string{
			"Schedule consultation within 2-3 weeks",
			"Endovenous laser treatment (EVLT)",
			"Radiofrequency ablation (RFA)",
			"Medical-grade compression stockings",
		}
	case 2:
		return []string{
			"Sclerotherapy treatment",
			"Lifestyle modifications",
			"Regular exercise program",
			"Compression therapy",
		}
	case 1:
		return []string{
			"Monitor symptoms regularly",
			"Lifestyle changes and exercise",
			"Consider cosmetic sclerotherapy",
			"Preventive compression stockings",
		}
	default:
		return []string{"Continue healthy lifestyle", "Regular monitoring", "Preventive measures"}
	}
}

var textFindings = []struct{ needle, finding string }{
	{"varicose", "Varicose veins detected"},
	{"spider", "Spider veins present"},
	{"discolor", "Skin discoloration observed"},
	{"swell", "Swelling detected"},
	{"ulcer", "Ulcers or wounds present"},
}

// FindingsFromText pulls known findings out of an unstructured analysis.
func FindingsFromText(text string) []string {
	t := strings.ToLower(text)
	var out []string
	for _, f := range textFindings {
		if strings.Contains(t, f.needle) {
			out = append(out, f.finding)
		}
	}
	return out
}

// RiskFactorsFrom lists the answer-derived risk factors. Keys the active
// question set never asked simply do not contribute.
func RiskFactorsFrom(a SymptomAnswers) []string {
	var out []string
	if a.IsYes(KeyFamilyHistory) {
		out = append(out, "Family history of varicose veins")
	}
	if a.IsYes(KeyLongHours) {
		out = append(out, "Prolonged standing or sitting")
	}
	if a.IsYes(KeyDVTHistory) {
		out = append(out, "Previous DVT history")
	}
	if a.Includes(KeyExistingConditions, "Obesity") {
		out = append(out, "Obesity")
	}
	if a.Includes(KeyExistingConditions, "Diabetes") {
		out = append(out, "Diabetes")
	}
	return out
}
