package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverityLabel(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"Stage 4", 4},
		{"SEVERE venous insufficiency", 4},
		{"venous ulcer on the ankle", 4},
		{"severe spider veins", 4},
		{"stage 3 disease", 3},
		{"Advanced varicosities", 3},
		{"significant reflux", 3},
		{"Moderate", 2},
		{"stage 2", 2},
		{"mild", 1},
		{"early changes", 1},
		{"spider veins", 1},
		{"Stage 0", 0},
		{"no visible veins", 0},
		{"healthy legs", 0},
		{"normal", 0},
		{"", 1},
		{"unclear image", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeverityLabel(tt.in))
		})
	}
}

func TestUrgencyFor(t *testing.T) {
	assert.Equal(t, UrgencyLow, UrgencyFor(0))
	assert.Equal(t, UrgencyLow, UrgencyFor(1))
	assert.Equal(t, UrgencyMedium, UrgencyFor(2))
	assert.Equal(t, UrgencyHigh, UrgencyFor(3))
	assert.Equal(t, UrgencyUrgent, UrgencyFor(4))
}

func TestFindingsFromText(t *testing.T) {
	got := FindingsFromText("Visible varicose veins with some swelling and skin discoloration near the ankle.")
	assert.Equal(t, []string{"Varicose veins detected", "Skin discoloration observed", "Swelling detected"}, got)
	assert.Empty(t, FindingsFromText("nothing of note"))
}

func TestRecommendationsFor(t *testing.T) {
	assert.Equal(t, "Immediate medical consultation required", RecommendationsFor(4)[0])
	assert.Len(t, RecommendationsFor(0), 3)
	assert.Equal(t, RecommendationsFor(0), RecommendationsFor(-2))
}
