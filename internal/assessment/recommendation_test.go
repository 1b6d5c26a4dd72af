package assessment

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEveryLevel(t *testing.T) {
	colors := []string{"green", "blue", "yellow", "orange", "red"}
	for lvl := MinSeverity; lvl <= MaxSeverity; lvl++ {
		b, err := Resolve(lvl, nil)
		require.NoError(t, err)
		assert.Equal(t, lvl, b.Level)
		assert.True(t, strings.HasPrefix(b.Title, "Stage "))
		assert.Equal(t, colors[lvl], b.Color)
		assert.Len(t, b.Treatments, 3)
		primary, ok := b.PrimaryAction()
		require.True(t, ok)
		assert.Equal(t, b.Actions[0], primary)
	}
}

func TestResolveUnknownLevel(t *testing.T) {
	_, err := Resolve(5, nil)
	assert.ErrorIs(t, err, ErrNoRecommendation)
	_, err = Resolve(-1, nil)
	assert.ErrorIs(t, err, ErrNoRecommendation)
}

func TestResolveNearest(t *testing.T) {
	b, clamped, err := ResolveNearest(9, nil)
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, Severity(4), b.Level)

	b, clamped, err = ResolveNearest(2, nil)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, Severity(2), b.Level)
}

func TestResolveIsPure(t *testing.T) {
	photo := &PhotoAnalysisResult{
		Severity:        SeverityPtr(3),
		Findings:        []string{"Bulging veins"},
		Recommendations: []string{"Endovenous laser treatment (EVLT)"},
		Source:          SourceVision,
	}
	for _, p := range []*PhotoAnalysisResult{nil, photo} {
		first, err := Resolve(3, p)
		require.NoError(t, err)
		second, err := Resolve(3, p)
		require.NoError(t, err)

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		assert.Equal(t, string(a), string(b))
	}

	// mutating a returned bundle does not leak into the table
	b, _ := Resolve(3, photo)
	b.Treatments[0] = "changed"
	again, _ := Resolve(3, nil)
	assert.Equal(t, "Endovenous ablation (laser/RFA)", again.Treatments[0])
	assert.Len(t, again.Treatments, 3)
}

func TestResolveAugmentation(t *testing.T) {
	photo := &PhotoAnalysisResult{
		Findings:        []string{"Spider veins present", "Swelling detected"},
		Recommendations: []string{"Sclerotherapy treatment"},
		Source:          SourceExternal,
	}
	b, err := Resolve(2, photo)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(b.Description, "\n\nAI Photo Analysis: Spider veins present, Swelling detected"))
	assert.Equal(t, []string{
		"Sclerotherapy or foam injections",
		"Endovenous Laser Therapy (EVLT)",
		"Compression stockings",
		"Sclerotherapy treatment",
	}, b.Treatments)

	fb := SynthesizeFallback(SimplifiedSet(), answers(KeyVisibleVeins, "Yes"), ReasonSkipped)
	b, err = Resolve(2, fb)
	require.NoError(t, err)
	assert.Contains(t, b.Description, "Symptom-Based Analysis: Visible veins reported")

	// empty findings leave the bundle as authored
	plain, _ := Resolve(2, nil)
	b, _ = Resolve(2, &PhotoAnalysisResult{Recommendations: []string{"x"}})
	assert.Equal(t, plain, b)
}

func TestScenarioA_HealthyDetailed(t *testing.T) {
	set := DetailedSet()
	a := answers(KeySpiderVeins, "No", KeyPainAndHeaviness, "No", KeyBulgingVeins, "No", KeySkinDiscoloration, "No", KeyUlcers, "No")

	sev := EffectiveSeverity(set, a, nil, OverrideMerge{})
	require.Equal(t, Severity(0), sev)

	b, err := Resolve(sev, nil)
	require.NoError(t, err)
	assert.Contains(t, b.Title, "Healthy Legs")
	assert.Contains(t, b.Title, "No Visible Signs")
}

func TestScenarioB_UlcersWithoutPhoto(t *testing.T) {
	set := DetailedSet()
	a := answers(KeySpiderVeins, "No", KeyPainAndHeaviness, "No", KeyBulgingVeins, "No", KeySkinDiscoloration, "No", KeyUlcers, "Yes")

	fb := SynthesizeFallback(set, a, ReasonSkipped)
	sev := EffectiveSeverity(set, a, fb, OverrideMerge{})
	require.Equal(t, Severity(4), sev)

	b, err := Resolve(sev, fb)
	require.NoError(t, err)
	assert.Equal(t, "red", b.Color)
	assert.Equal(t, "Urgent", b.Urgency)
	assert.Contains(t, b.Treatments, "Wound care and ulcer management")
}

func TestScenarioC_SimplifiedVisibleAndTreated(t *testing.T) {
	a := answers(KeyVisibleVeins, "Yes", KeyUlcers, "No", KeyPreviousTreatment, "Yes")
	assert.Equal(t, Severity(3), CalculateSeverity(SimplifiedSet(), a))
}

func TestScenarioD_PhotoOverridesHealthyAnswers(t *testing.T) {
	set := DetailedSet()
	a := answers(KeySpiderVeins, "No", KeyPainAndHeaviness, "No", KeyBulgingVeins, "No", KeySkinDiscoloration, "No", KeyUlcers, "No")
	require.Equal(t, Severity(0), CalculateSeverity(set, a))

	photo := &PhotoAnalysisResult{Severity: SeverityPtr(2), Findings: []string{"Spider veins present"}, Confidence: 0.8, Source: SourceVision}
	sev := EffectiveSeverity(set, a, photo, OverrideMerge{})
	require.Equal(t, Severity(2), sev)

	b, err := Resolve(sev, photo)
	require.NoError(t, err)
	assert.Equal(t, "Stage 2 – Visible Veins Present", b.Title)
	assert.Contains(t, b.Description, "Spider veins present")
}
