package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vein-assessment/internal/assessment"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "veincheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
questionnaire:
  variant: detailed
  merge: additive
analysis:
  provider: edge
  base_url: https://edge.example.com
  deadline: 20s
notify:
  alert_min_severity: 3
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "detailed", cfg.Questionnaire.Variant)
	assert.True(t, cfg.Questionnaire.PhotoStep)
	assert.Equal(t, "edge", cfg.Analysis.Provider)
	assert.Equal(t, "https://edge.example.com", cfg.Analysis.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 20*time.Second, cfg.Analysis.Deadline)

	opts, err := cfg.TriageOptions()
	require.NoError(t, err)
	assert.Equal(t, assessment.VariantDetailed, opts.Set.Variant)
	assert.Equal(t, assessment.AdditiveMerge{}, opts.Merge)
	assert.Equal(t, assessment.Severity(3), opts.AlertMinSeverity)
	assert.Equal(t, 20*time.Second, opts.AnalysisTimeout)
}

func TestLoadConfigMalformed(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestRuleOverride(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
questionnaire:
  rules:
    default: 0
    rules:
      - name: ulcers
        level: 4
        any_of:
          - all_yes: [ulcers]
      - name: visible
        level: 1
        any_of:
          - all_yes: [visible_veins]
`))
	require.NoError(t, err)
	set, err := cfg.QuestionSet()
	require.NoError(t, err)

	a := assessment.SymptomAnswers{}
	a.Set(assessment.KeyVisibleVeins, assessment.Answer{Value: "Yes"})
	assert.Equal(t, assessment.Severity(1), assessment.CalculateSeverity(set, a))
	assert.Equal(t, assessment.Severity(0), assessment.CalculateSeverity(set, assessment.SymptomAnswers{}))
}

func TestRuleOverrideRejectsUnknownKeys(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
questionnaire:
  rules:
    default: 1
    rules:
      - name: pain
        level: 2
        any_of:
          - all_yes: [pain_and_heaviness]
`))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Questionnaire.Variant = "detailed"
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"PORT":                  "7000",
		"DATABASE_URL":          "postgres://u:p@db/vein?sslmode=disable",
		"OPENAI_API_KEY":        "sk-live",
		"CLINIC_CHAT_ID":        "-100123",
		"QUESTIONNAIRE_VARIANT": "detailed",
		"PHOTO_STEP":            "false",
	})))
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db/vein?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "sk-live", cfg.Analysis.APIKey)
	assert.Equal(t, int64(-100123), cfg.Notify.ClinicChatID)
	assert.Equal(t, "detailed", cfg.Questionnaire.Variant)
	assert.False(t, cfg.Questionnaire.PhotoStep)

	assert.Error(t, DefaultConfig().ApplyEnv(envMap(map[string]string{"CLINIC_CHAT_ID": "clinic"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown variant", func(c *Config) { c.Questionnaire.Variant = "long" }},
		{"unknown merge", func(c *Config) { c.Questionnaire.Merge = "max" }},
		{"alert level", func(c *Config) { c.Notify.AlertMinSeverity = 5 }},
		{"log mode", func(c *Config) { c.Log.Mode = "verbose" }},
		{"no database", func(c *Config) { c.Database.SQLitePath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
