package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/logger"
)

// PhotoRequest is everything an analyzer may send upstream. ImageURL is only
// set once the photo has been stored.
type PhotoRequest struct {
	Image       []byte
	ContentType string
	ImageURL    string
	Patient     assessment.PatientInfo
	Answers     assessment.SymptomAnswers
}

// Analyzer turns a leg photo into a validated analysis result.
type Analyzer interface {
	Analyze(ctx context.Context, req PhotoRequest) (*assessment.PhotoAnalysisResult, error)
	// NeedsImageURL reports whether the photo must be stored before Analyze.
	NeedsImageURL() bool
}

const (
	ProviderVision   = "vision"
	ProviderExternal = "external"
	ProviderEdge     = "edge"
)

type Config struct {
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

func NewAnalyzer(cfg Config, log *logger.Logger) (Analyzer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderVision, "":
		return NewVisionAnalyzer(cfg, log), nil
	case ProviderExternal:
		return NewExternalAnalyzer(cfg, log), nil
	case ProviderEdge:
		return NewEdgeAnalyzer(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", cfg.Provider)
	}
}

// reportedAdjustment rounds an optional provider severity delta into the scale's span.
func reportedAdjustment(v *float64) int {
	if v == nil {
		return 0
	}
	span := float64(assessment.MaxSeverity - assessment.MinSeverity)
	return int(math.Round(math.Max(-span, math.Min(span, *v))))
}

// finish stamps the source and validates. Every analyzer returns through here.
func finish(res *assessment.PhotoAnalysisResult, source string) (*assessment.PhotoAnalysisResult, error) {
	res.Source = source
	res.Findings = assessment.DistinctStrings(res.Findings)
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// symptomPayload is the camelCase symptom document the upstream services expect.
func symptomPayload(a assessment.SymptomAnswers) map[string]interface{} {
	list := func(key string) []string {
		v := a.Selected(key)
		if v == nil {
			return []string{}
		}
		return v
	}
	return map[string]interface{}{
		"spiderVeins":        a.Value(assessment.KeySpiderVeins),
		"painAndHeaviness":   a.Value(assessment.KeyPainAndHeaviness),
		"bulgingVeins":       a.Value(assessment.KeyBulgingVeins),
		"skinDiscoloration":  a.Value(assessment.KeySkinDiscoloration),
		"ulcers":             a.Value(assessment.KeyUlcers),
		"duration":           a.Value(assessment.KeyDuration),
		"longHours":          a.Value(assessment.KeyLongHours),
		"dvtHistory":         a.Value(assessment.KeyDVTHistory),
		"familyHistory":      a.Value(assessment.KeyFamilyHistory),
		"visibleVeins":       a.Value(assessment.KeyVisibleVeins),
		"previousTreatment":  a.Value(assessment.KeyPreviousTreatment),
		"previousTreatments": list(assessment.KeyPreviousTreatments),
		"existingConditions": list(assessment.KeyExistingConditions),
		"medications":        list(assessment.KeyMedications),
	}
}
