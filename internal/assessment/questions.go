package assessment

import (
	"fmt"
	"strings"
)

type Variant string

const (
	VariantSimplified Variant = "simplified"
	VariantDetailed   Variant = "detailed"
)

type QuestionKind string

const (
	KindSingle QuestionKind = "single"
	KindMulti  QuestionKind = "multi"
)

type Question struct {
	Key     string       `json:"key"`
	Prompt  string       `json:"prompt"`
	Kind    QuestionKind `json:"kind"`
	Options []string     `json:"options"`
}

// HasOption matches case-insensitively and returns the canonical spelling.
func (q Question) HasOption(v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, o := range q.Options {
		if strings.EqualFold(o, v) {
			return o, true
		}
	}
	return "", false
}

// FindingFlag turns a yes-answer into a fallback finding.
type FindingFlag struct {
	Key     string
	Finding string
}

// QuestionSet bundles everything that varies between the two flows.
type QuestionSet struct {
	Variant   Variant
	Questions []Question
	Rules     RuleTable
	// FindingFlags are checked in order: ulcers, bulging/discoloration,
	// pain/heaviness, spider/visible veins.
	FindingFlags []FindingFlag
	// Aliases maps record columns to the key that answers them.
	Aliases map[string]string
}

func (s QuestionSet) Question(key string) (Question, bool) {
	for _, q := range s.Questions {
		if q.Key == key {
			return q, true
		}
	}
	return Question{}, false
}

func (s QuestionSet) Asks(key string) bool {
	_, ok := s.Question(key)
	return ok
}

var yesNo = []string{OptionYes, OptionNo}

func SimplifiedSet() QuestionSet {
	return QuestionSet{
		Variant: VariantSimplified,
		Questions: []Question{
			{Key: KeyVisibleVeins, Prompt: "Do you see any veins visible on your legs?", Kind: KindSingle, Options: yesNo},
			{Key: KeyUlcers, Prompt: "Do you have open sores, ulcers, or non-healing wounds on your legs?", Kind: KindSingle, Options: yesNo},
			{Key: KeyPreviousTreatment, Prompt: "Have you done any treatment for varicose veins previously?", Kind: KindSingle, Options: yesNo},
		},
		Rules: SimplifiedRules(),
		FindingFlags: []FindingFlag{
			{Key: KeyUlcers, Finding: "Ulcers or wounds reported by patient"},
			{Key: KeyVisibleVeins, Finding: "Visible veins reported"},
		},
		Aliases: map[string]string{
			KeySpiderVeins:  KeyVisibleVeins,
			KeyBulgingVeins: KeyVisibleVeins,
		},
	}
}

func DetailedSet() QuestionSet {
	return QuestionSet{
		Variant: VariantDetailed,
		Questions: []Question{
			{Key: KeySpiderVeins, Prompt: "Do you notice small red, blue, or purple spider veins on your legs?", Kind: KindSingle, Options: yesNo},
			{Key: KeyPainAndHeaviness, Prompt: "Do your legs often feel painful, heavy, or tired, especially at the end of the day?", Kind: KindSingle, Options: yesNo},
			{Key: KeyBulgingVeins, Prompt: "Do you have bulging, twisted, or rope-like veins on your legs?", Kind: KindSingle, Options: yesNo},
			{Key: KeySkinDiscoloration, Prompt: "Have you noticed darkening, discoloration, or hardening of the skin around your ankles?", Kind: KindSingle, Options: yesNo},
			{Key: KeyUlcers, Prompt: "Do you have open sores, ulcers, or non-healing wounds on your legs?", Kind: KindSingle, Options: yesNo},
			{Key: KeyDuration, Prompt: "How long have you had these symptoms?", Kind: KindSingle, Options: []string{
				"Less than 6 months", "6-12 months", "1-5 years", "More than 5 years",
			}},
			{Key: KeyLongHours, Prompt: "Does your daily routine involve standing or sitting for long hours?", Kind: KindSingle, Options: yesNo},
			{Key: KeyDVTHistory, Prompt: "Have you ever been diagnosed with deep vein thrombosis (DVT) or a blood clot?", Kind: KindSingle, Options: yesNo},
			{Key: KeyFamilyHistory, Prompt: "Does anyone in your family have varicose veins?", Kind: KindSingle, Options: yesNo},
			{Key: KeyPreviousTreatments, Prompt: "Which treatments have you tried before? Select all that apply.", Kind: KindMulti, Options: []string{
				OptionNone, "Compression stockings", "Sclerotherapy", "Laser treatment (EVLT)", "Radiofrequency ablation", "Surgery",
			}},
			{Key: KeyExistingConditions, Prompt: "Do you have any of these conditions? Select all that apply.", Kind: KindMulti, Options: []string{
				OptionNone, "Diabetes", "Obesity", "Hypertension", "Heart disease", "Pregnancy",
			}},
			{Key: KeyMedications, Prompt: "Are you currently taking any of these medications? Select all that apply.", Kind: KindMulti, Options: []string{
				OptionNone, "Blood thinners", "Hormonal therapy or birth control", "Blood pressure medication", "Pain relievers",
			}},
		},
		Rules: DetailedRules(),
		FindingFlags: []FindingFlag{
			{Key: KeyUlcers, Finding: "Ulcers or wounds reported by patient"},
			{Key: KeyBulgingVeins, Finding: "Bulging veins reported"},
			{Key: KeySkinDiscoloration, Finding: "Skin discoloration noted"},
			{Key: KeyPainAndHeaviness, Finding: "Pain and heaviness symptoms"},
			{Key: KeySpiderVeins, Finding: "Spider veins reported"},
		},
	}
}

// QuestionSetFor returns the built-in set for a variant.
func QuestionSetFor(v Variant) (QuestionSet, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(string(v)))) {
	case VariantSimplified, "":
		return SimplifiedSet(), nil
	case VariantDetailed:
		return DetailedSet(), nil
	default:
		return QuestionSet{}, fmt.Errorf("unknown questionnaire variant %q", v)
	}
}

// Chat copy used by the sequencer and the session service.
const (
	PhotoPromptMessage = "Great! Now I'd like to analyze a photo of your legs to provide the most accurate assessment possible. This will help me give you personalized recommendations based on visual analysis combined with your symptoms."
	SkipPhotoMessage   = "No problem! I'll proceed with your assessment based on your questionnaire responses."
	AnalysisFailedMsg  = "I couldn't analyze your photo, so I'll continue with your answers."
)

func greeting(name string, count int, first Question) string {
	return fmt.Sprintf("Hi %s! I'm your AI health assistant. I'll help assess your vein health with just %d simple questions. Let's begin!\n\n%s",
		name, count, first.Prompt)
}
