package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vein-assessment/internal/agent"
	"vein-assessment/internal/assessment"
	"vein-assessment/internal/triage"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	// Mode is "dev" or "prod".
	Mode string `yaml:"mode"`
}

// DatabaseConfig selects the record store. A non-empty URL means Postgres,
// otherwise records go to the SQLite file at SQLitePath.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	SQLitePath      string `yaml:"sqlite_path"`
	MigrationsDir   string `yaml:"migrations_dir"`
	AutoMigrate     bool   `yaml:"auto_migrate"`
	ConnectAttempts int    `yaml:"connect_attempts"`
}

// SessionConfig selects the session store. Empty RedisAddr keeps sessions in memory.
type SessionConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// StorageConfig selects the photo store. A bucket means GCS.
type StorageConfig struct {
	Dir       string `yaml:"dir"`
	BaseURL   string `yaml:"base_url"`
	GCSBucket string `yaml:"gcs_bucket"`
}

type QuestionnaireConfig struct {
	Variant               string   `yaml:"variant"`
	PhotoStep             bool     `yaml:"photo_step"`
	Merge                 string   `yaml:"merge"`
	StrictRecommendations bool     `yaml:"strict_recommendations"`
	FreeTextLocation      bool     `yaml:"free_text_location"`
	Cities                []string `yaml:"cities"`
	// Rules replaces the variant's built-in cascade when set.
	Rules *assessment.RuleTable `yaml:"rules"`
}

type AnalysisConfig struct {
	agent.Config `yaml:",inline"`
	Enabled      bool          `yaml:"enabled"`
	Deadline     time.Duration `yaml:"deadline"`
}

type NotifyConfig struct {
	TelegramToken    string   `yaml:"telegram_token"`
	ClinicChatID     int64    `yaml:"clinic_chat_id"`
	AlertMinSeverity int      `yaml:"alert_min_severity"`
	FontPaths        []string `yaml:"font_paths"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Database      DatabaseConfig      `yaml:"database"`
	Sessions      SessionConfig       `yaml:"sessions"`
	Storage       StorageConfig       `yaml:"storage"`
	Questionnaire QuestionnaireConfig `yaml:"questionnaire"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Notify        NotifyConfig        `yaml:"notify"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Mode: "dev"},
		Database: DatabaseConfig{
			SQLitePath:      "veincheck.db",
			MigrationsDir:   "migrations",
			AutoMigrate:     true,
			ConnectAttempts: 10,
		},
		Sessions: SessionConfig{TTL: 24 * time.Hour},
		Storage:  StorageConfig{Dir: "data/photos"},
		Questionnaire: QuestionnaireConfig{
			Variant:   string(assessment.VariantSimplified),
			PhotoStep: true,
			Merge:     assessment.MergeOverride,
		},
		Analysis: AnalysisConfig{
			Config: agent.Config{
				Provider:   agent.ProviderVision,
				Timeout:    60 * time.Second,
				MaxRetries: 2,
			},
			Enabled:  true,
			Deadline: 60 * time.Second,
		},
		Notify: NotifyConfig{AlertMinSeverity: 4},
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an
// error; a malformed one is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load is the full startup sequence: .env, YAML file, environment overrides,
// validation.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with the deployment environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Server.Port)
	str("LOG_MODE", &c.Log.Mode)
	str("DATABASE_URL", &c.Database.URL)
	str("SQLITE_PATH", &c.Database.SQLitePath)
	str("REDIS_ADDR", &c.Sessions.RedisAddr)
	str("GCS_BUCKET", &c.Storage.GCSBucket)
	str("PHOTO_BASE_URL", &c.Storage.BaseURL)
	str("QUESTIONNAIRE_VARIANT", &c.Questionnaire.Variant)
	str("MERGE_STRATEGY", &c.Questionnaire.Merge)
	str("ANALYSIS_PROVIDER", &c.Analysis.Provider)
	str("ANALYSIS_BASE_URL", &c.Analysis.BaseURL)
	str("OPENAI_API_KEY", &c.Analysis.APIKey)
	str("TELEGRAM_BOT_TOKEN", &c.Notify.TelegramToken)

	if v := strings.TrimSpace(getenv("CLINIC_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CLINIC_CHAT_ID %q: %w", v, err)
		}
		c.Notify.ClinicChatID = id
	}
	if v := strings.TrimSpace(getenv("PHOTO_STEP")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PHOTO_STEP %q: %w", v, err)
		}
		c.Questionnaire.PhotoStep = b
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port cannot be empty")
	}
	mode := strings.ToLower(c.Log.Mode)
	if mode != "dev" && mode != "prod" && mode != "production" {
		return fmt.Errorf("invalid log.mode %q, must be one of: dev, prod", c.Log.Mode)
	}
	if c.Database.URL == "" && c.Database.SQLitePath == "" {
		return fmt.Errorf("database.url or database.sqlite_path is required")
	}
	if _, err := c.QuestionSet(); err != nil {
		return err
	}
	if _, err := assessment.MergeStrategyFor(c.Questionnaire.Merge); err != nil {
		return err
	}
	if sev := assessment.Severity(c.Notify.AlertMinSeverity); !sev.Valid() {
		return fmt.Errorf("notify.alert_min_severity must be between 0 and 4, got %d", c.Notify.AlertMinSeverity)
	}
	if c.Analysis.Deadline < 0 {
		return fmt.Errorf("analysis.deadline must be >= 0, got %v", c.Analysis.Deadline)
	}
	return nil
}

// QuestionSet builds the configured question set, applying the rule override.
func (c *Config) QuestionSet() (assessment.QuestionSet, error) {
	set, err := assessment.QuestionSetFor(assessment.Variant(c.Questionnaire.Variant))
	if err != nil {
		return assessment.QuestionSet{}, err
	}
	if c.Questionnaire.Rules != nil {
		if err := c.Questionnaire.Rules.Validate(); err != nil {
			return assessment.QuestionSet{}, fmt.Errorf("questionnaire.rules: %w", err)
		}
		for _, r := range c.Questionnaire.Rules.Rules {
			for _, cond := range r.AnyOf {
				for _, k := range cond.AllYes {
					if !set.Asks(k) {
						return assessment.QuestionSet{}, fmt.Errorf("questionnaire.rules: rule %s uses %q, which the %s questionnaire does not ask", r.Name, k, set.Variant)
					}
				}
			}
		}
		set.Rules = *c.Questionnaire.Rules
	}
	return set, nil
}

// TriageOptions maps the config onto the session service options.
func (c *Config) TriageOptions() (triage.Options, error) {
	set, err := c.QuestionSet()
	if err != nil {
		return triage.Options{}, err
	}
	merge, err := assessment.MergeStrategyFor(c.Questionnaire.Merge)
	if err != nil {
		return triage.Options{}, err
	}
	return triage.Options{
		Set:                   set,
		Merge:                 merge,
		PhotoStep:             c.Questionnaire.PhotoStep && c.Analysis.Enabled,
		Cities:                c.Questionnaire.Cities,
		FreeTextLocation:      c.Questionnaire.FreeTextLocation,
		StrictRecommendations: c.Questionnaire.StrictRecommendations,
		AnalysisTimeout:       c.Analysis.Deadline,
		AlertMinSeverity:      assessment.Severity(c.Notify.AlertMinSeverity),
	}, nil
}
