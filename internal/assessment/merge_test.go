package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideMergePhotoAlwaysWins(t *testing.T) {
	m := OverrideMerge{}
	for base := MinSeverity; base <= MaxSeverity; base++ {
		for photo := MinSeverity; photo <= MaxSeverity; photo++ {
			got := m.Merge(base, &PhotoAnalysisResult{Severity: SeverityPtr(photo)})
			require.Equal(t, photo, got, "base %d photo %d", base, photo)
		}
		assert.Equal(t, base, m.Merge(base, nil))
		assert.Equal(t, base, m.Merge(base, &PhotoAnalysisResult{Findings: []string{"x"}}))
	}
}

// A lower photo severity still replaces a higher questionnaire severity.
func TestOverrideMergeCanLower(t *testing.T) {
	a := answers(KeyUlcers, "Yes")
	got := EffectiveSeverity(DetailedSet(), a, &PhotoAnalysisResult{Severity: SeverityPtr(1)}, nil)
	assert.Equal(t, Severity(1), got)
}

func TestAdditiveMerge(t *testing.T) {
	m := AdditiveMerge{}
	tests := []struct {
		name  string
		base  Severity
		photo *PhotoAnalysisResult
		want  Severity
	}{
		{"no photo", 2, nil, 2},
		{"adjust up", 2, &PhotoAnalysisResult{SeverityAdjustment: 1}, 3},
		{"clamped high", 3, &PhotoAnalysisResult{SeverityAdjustment: 3}, 4},
		{"clamped low", 1, &PhotoAnalysisResult{SeverityAdjustment: -3}, 0},
		{"photo severity 4 wins", 1, &PhotoAnalysisResult{Severity: SeverityPtr(4)}, 4},
		{"lower photo severity ignored", 3, &PhotoAnalysisResult{Severity: SeverityPtr(1)}, 3},
		{"higher photo severity steps up one", 1, &PhotoAnalysisResult{Severity: SeverityPtr(3), Source: SourceVision}, 2},
		{"equal photo severity keeps base", 2, &PhotoAnalysisResult{Severity: SeverityPtr(2), Source: SourceVision}, 2},
		{"reported delta wins over grade", 1, &PhotoAnalysisResult{Severity: SeverityPtr(3), SeverityAdjustment: 2, Source: SourceEdge}, 3},
		{"ulcer finding wins", 1, &PhotoAnalysisResult{Severity: SeverityPtr(2), Findings: []string{"Ulcers or wounds present"}, Source: SourceEdge}, 4},
		{"fallback ulcer finding does not force", 2, &PhotoAnalysisResult{Severity: SeverityPtr(2), Findings: []string{"Ulcers or wounds reported by patient"}, Source: SourceFallback}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Merge(tt.base, tt.photo))
		})
	}
}

func TestAdditiveMergeRaisesStageForVisionResult(t *testing.T) {
	a := answers(KeyVisibleVeins, "No", KeyUlcers, "No", KeyPreviousTreatment, "No")
	photo := &PhotoAnalysisResult{
		Severity: SeverityPtr(3),
		Findings: []string{"Varicose veins detected"},
		Source:   SourceVision,
	}
	got := EffectiveSeverity(SimplifiedSet(), a, photo, AdditiveMerge{})
	assert.Equal(t, Severity(2), got)
}

func TestMergeStrategyFor(t *testing.T) {
	m, err := MergeStrategyFor("")
	require.NoError(t, err)
	assert.IsType(t, OverrideMerge{}, m)

	m, err = MergeStrategyFor("Additive")
	require.NoError(t, err)
	assert.IsType(t, AdditiveMerge{}, m)

	_, err = MergeStrategyFor("average")
	assert.Error(t, err)
}
