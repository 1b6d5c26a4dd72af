package assessment

import "fmt"

// Condition matches when every listed key was answered yes.
type Condition struct {
	AllYes []string `yaml:"all_yes" json:"all_yes"`
}

func (c Condition) Matches(a SymptomAnswers) bool {
	if len(c.AllYes) == 0 {
		return false
	}
	for _, k := range c.AllYes {
		if !a.IsYes(k) {
			return false
		}
	}
	return true
}

// Rule yields Level when any of its conditions matches.
type Rule struct {
	Name  string      `yaml:"name" json:"name"`
	Level Severity    `yaml:"level" json:"level"`
	AnyOf []Condition `yaml:"any_of" json:"any_of"`
}

func (r Rule) Matches(a SymptomAnswers) bool {
	for _, c := range r.AnyOf {
		if c.Matches(a) {
			return true
		}
	}
	return false
}

// RuleTable is an ordered cascade: the first matching rule wins, otherwise
// Default. It is never a weighted sum.
type RuleTable struct {
	Rules   []Rule   `yaml:"rules" json:"rules"`
	Default Severity `yaml:"default" json:"default"`
}

func (t RuleTable) Evaluate(a SymptomAnswers) Severity {
	for _, r := range t.Rules {
		if r.Matches(a) {
			return r.Level
		}
	}
	return t.Default
}

// Validate checks that every level the table can produce has a recommendation.
func (t RuleTable) Validate() error {
	if !t.Default.Valid() {
		return fmt.Errorf("rule table default %d out of range", t.Default)
	}
	for i, r := range t.Rules {
		if !r.Level.Valid() {
			return fmt.Errorf("rule %d (%s): level %d out of range", i, r.Name, r.Level)
		}
		if len(r.AnyOf) == 0 {
			return fmt.Errorf("rule %d (%s): no conditions", i, r.Name)
		}
	}
	return nil
}

func yes(keys ...string) Condition { return Condition{AllYes: keys} }

// SimplifiedRules is the 3-question cascade. Its range is 1..4.
func SimplifiedRules() RuleTable {
	return RuleTable{
		Rules: []Rule{
			{Name: "ulcers", Level: 4, AnyOf: []Condition{yes(KeyUlcers)}},
			{Name: "visible_and_treated", Level: 3, AnyOf: []Condition{yes(KeyVisibleVeins, KeyPreviousTreatment)}},
			{Name: "visible", Level: 2, AnyOf: []Condition{yes(KeyVisibleVeins)}},
		},
		Default: 1,
	}
}

// DetailedRules is the full questionnaire cascade. Its range is 0..4.
func DetailedRules() RuleTable {
	return RuleTable{
		Rules: []Rule{
			{Name: "ulcers", Level: 4, AnyOf: []Condition{yes(KeyUlcers)}},
			{Name: "bulging_or_discoloration", Level: 3, AnyOf: []Condition{yes(KeyBulgingVeins), yes(KeySkinDiscoloration)}},
			{Name: "pain", Level: 2, AnyOf: []Condition{yes(KeyPainAndHeaviness)}},
			{Name: "spider", Level: 1, AnyOf: []Condition{yes(KeySpiderVeins)}},
		},
		Default: 0,
	}
}

// CalculateSeverity runs the set's cascade over the answers.
func CalculateSeverity(set QuestionSet, a SymptomAnswers) Severity {
	return set.Rules.Evaluate(a)
}
