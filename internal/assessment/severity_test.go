package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answers(kv ...string) SymptomAnswers {
	a := SymptomAnswers{}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i], Answer{Value: kv[i+1]})
	}
	return a
}

func TestSimplifiedCascade(t *testing.T) {
	set := SimplifiedSet()
	tests := []struct {
		name string
		in   SymptomAnswers
		want Severity
	}{
		{"nothing answered", SymptomAnswers{}, 1},
		{"all no", answers(KeyVisibleVeins, "No", KeyUlcers, "No", KeyPreviousTreatment, "No"), 1},
		{"visible only", answers(KeyVisibleVeins, "Yes", KeyUlcers, "No", KeyPreviousTreatment, "No"), 2},
		{"visible and treated", answers(KeyVisibleVeins, "Yes", KeyUlcers, "No", KeyPreviousTreatment, "Yes"), 3},
		{"treated without visible veins", answers(KeyVisibleVeins, "No", KeyUlcers, "No", KeyPreviousTreatment, "Yes"), 1},
		{"ulcers beat everything", answers(KeyVisibleVeins, "Yes", KeyUlcers, "Yes", KeyPreviousTreatment, "Yes"), 4},
		{"ulcers alone", answers(KeyUlcers, "yes"), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateSeverity(set, tt.in))
		})
	}
}

func TestDetailedCascade(t *testing.T) {
	set := DetailedSet()
	tests := []struct {
		name string
		in   SymptomAnswers
		want Severity
	}{
		{"nothing answered", SymptomAnswers{}, 0},
		{"spider only", answers(KeySpiderVeins, "Yes"), 1},
		{"pain beats spider", answers(KeySpiderVeins, "Yes", KeyPainAndHeaviness, "Yes"), 2},
		{"bulging", answers(KeyBulgingVeins, "Yes"), 3},
		{"discoloration", answers(KeySkinDiscoloration, "Yes", KeyPainAndHeaviness, "Yes"), 3},
		{"ulcers", answers(KeyUlcers, "Yes", KeyBulgingVeins, "Yes"), 4},
		{"risk factors do not score", answers(KeyDVTHistory, "Yes", KeyFamilyHistory, "Yes", KeyLongHours, "Yes"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateSeverity(set, tt.in))
		})
	}
}

func TestUlcersAlwaysMaximum(t *testing.T) {
	others := []string{KeyVisibleVeins, KeyPreviousTreatment, KeySpiderVeins, KeyPainAndHeaviness, KeyBulgingVeins, KeySkinDiscoloration}
	for _, set := range []QuestionSet{SimplifiedSet(), DetailedSet()} {
		// every combination of the other boolean symptoms
		for mask := 0; mask < 1<<len(others); mask++ {
			a := answers(KeyUlcers, "Yes")
			for i, k := range others {
				v := "No"
				if mask&(1<<i) != 0 {
					v = "Yes"
				}
				a.Set(k, Answer{Value: v})
			}
			require.Equal(t, MaxSeverity, CalculateSeverity(set, a), "variant %s mask %b", set.Variant, mask)
		}
	}
}

func TestAllNoGivesVariantMinimum(t *testing.T) {
	simplified := answers(KeyVisibleVeins, "No", KeyUlcers, "No", KeyPreviousTreatment, "No")
	detailed := answers(KeySpiderVeins, "No", KeyPainAndHeaviness, "No", KeyBulgingVeins, "No", KeySkinDiscoloration, "No", KeyUlcers, "No")

	assert.Equal(t, Severity(1), CalculateSeverity(SimplifiedSet(), simplified))
	assert.Equal(t, Severity(0), CalculateSeverity(DetailedSet(), detailed))
}

// The two variants disagree on the floor of the range; both are kept.
func TestVariantRangesDiffer(t *testing.T) {
	empty := SymptomAnswers{}
	assert.NotEqual(t, CalculateSeverity(SimplifiedSet(), empty), CalculateSeverity(DetailedSet(), empty))
}

func TestRuleTableValidate(t *testing.T) {
	require.NoError(t, SimplifiedRules().Validate())
	require.NoError(t, DetailedRules().Validate())

	bad := RuleTable{Rules: []Rule{{Name: "x", Level: 7, AnyOf: []Condition{yes(KeyUlcers)}}}}
	assert.Error(t, bad.Validate())

	empty := RuleTable{Rules: []Rule{{Name: "x", Level: 2}}}
	assert.Error(t, empty.Validate())

	assert.Error(t, RuleTable{Default: -1}.Validate())
}

func TestEmptyConditionNeverMatches(t *testing.T) {
	assert.False(t, Condition{}.Matches(answers(KeyUlcers, "Yes")))
}
