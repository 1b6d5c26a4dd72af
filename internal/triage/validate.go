package triage

import (
	"fmt"
	"sort"
	"strings"

	"vein-assessment/internal/assessment"
)

// DefaultCities are the clinic locations patients can pick from.
var DefaultCities = []string{
	"Ahmedabad", "Bangalore", "Bhopal", "Chandigarh", "Chennai", "Delhi",
	"Hyderabad", "Indore", "Jaipur", "Kolkata", "Lucknow", "Mumbai",
	"Nagpur", "Pune", "Surat", "Thane", "Vadodara", "Visakhapatnam",
}

// FieldErrors maps a patient field to its validation message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "invalid patient: " + strings.Join(parts, "; ")
}

// ValidatePatient trims input and canonicalizes the city. With freeText set
// any non-empty location is accepted.
func ValidatePatient(p assessment.PatientInfo, cities []string, freeText bool) (assessment.PatientInfo, error) {
	out := assessment.PatientInfo{
		Name:     strings.TrimSpace(p.Name),
		Age:      p.Age,
		Location: strings.TrimSpace(p.Location),
	}
	errs := FieldErrors{}

	if out.Name == "" {
		errs["name"] = "name is required"
	}
	if out.Age < 1 || out.Age > 120 {
		errs["age"] = "age must be between 1 and 120"
	}

	switch {
	case out.Location == "":
		errs["location"] = "location is required"
	case !freeText:
		city, ok := matchCity(out.Location, cities)
		if !ok {
			errs["location"] = "please select a city from the list"
		}
		out.Location = city
	}

	if len(errs) > 0 {
		return assessment.PatientInfo{}, errs
	}
	return out, nil
}

func matchCity(v string, cities []string) (string, bool) {
	for _, c := range cities {
		if strings.EqualFold(c, v) {
			return c, true
		}
	}
	return "", false
}
