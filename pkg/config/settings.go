package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/scenario-config/pkg/logger"
	"github.com/picogrid/scenario-config/pkg/scenario"
)

// Settings holds the CLI defaults read from $HOME/.scenario/config.yaml,
// SCENARIO_* environment variables and flags.
type Settings struct {
	LogLevel      string `yaml:"log_level" mapstructure:"log_level"`
	NoColor       bool   `yaml:"no_color" mapstructure:"no_color"`
	Strict        bool   `yaml:"strict" mapstructure:"strict"`
	EpsStepPolicy string `yaml:"eps_step_policy" mapstructure:"eps_step_policy"`
	MaxInputBytes int64  `yaml:"max_input_bytes" mapstructure:"max_input_bytes"`
	AuditDB       string `yaml:"audit_db,omitempty" mapstructure:"audit_db"`
}

// Keys lists the settings keys in file order
var Keys = []string{"log_level", "no_color", "strict", "eps_step_policy", "max_input_bytes", "audit_db"}

// Dir returns the per-user settings directory
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".scenario"), nil
}

// DefaultPath returns the default settings file location
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultAuditPath returns the default audit database location
func DefaultAuditPath() string {
	dir, err := Dir()
	if err != nil {
		return "scenario-history.db"
	}
	return filepath.Join(dir, "history.db")
}

// DefaultSettings returns the built-in defaults
func DefaultSettings() Settings {
	return Settings{
		LogLevel:      "info",
		EpsStepPolicy: scenario.EpsStepWarn.String(),
		MaxInputBytes: scenario.DefaultMaxInputSize,
	}
}

// SetDefaults registers the built-in defaults with v
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("no_color", d.NoColor)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("eps_step_policy", d.EpsStepPolicy)
	v.SetDefault("max_input_bytes", d.MaxInputBytes)
	v.SetDefault("audit_db", "")
}

// FromViper decodes and validates the settings held by v
func FromViper(v *viper.Viper) (Settings, error) {
	s := DefaultSettings()
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettingsFromFile loads settings from path; a missing file yields the defaults
func LoadSettingsFromFile(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &s, nil
}

// SaveSettings writes s to path, creating its directory
func SaveSettings(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the settings values
func (s Settings) Validate() error {
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", s.LogLevel)
	}
	if _, err := scenario.ParseEpsStepPolicy(s.EpsStepPolicy); err != nil {
		return fmt.Errorf("eps_step_policy: %w", err)
	}
	if s.MaxInputBytes <= 0 {
		return fmt.Errorf("max_input_bytes must be positive, got %d", s.MaxInputBytes)
	}
	return nil
}

// AuditPath returns the configured audit database or the default location
func (s Settings) AuditPath() string {
	if s.AuditDB != "" {
		return s.AuditDB
	}
	return DefaultAuditPath()
}

// ValidateOptions translates the settings into validator options
func (s Settings) ValidateOptions() (scenario.ValidateOptions, error) {
	policy, err := scenario.ParseEpsStepPolicy(s.EpsStepPolicy)
	if err != nil {
		return scenario.ValidateOptions{}, fmt.Errorf("eps_step_policy: %w", err)
	}
	return scenario.ValidateOptions{Strict: s.Strict, EpsStep: policy}, nil
}

// LoaderOptions translates the settings into scenario loader options
func (s Settings) LoaderOptions(log logger.Logger) ([]scenario.Option, error) {
	opts, err := s.ValidateOptions()
	if err != nil {
		return nil, err
	}
	return []scenario.Option{
		scenario.WithStrict(opts.Strict),
		scenario.WithEpsStepPolicy(opts.EpsStep),
		scenario.WithMaxInputSize(s.MaxInputBytes),
		scenario.WithLogger(log),
	}, nil
}

// String returns a human-readable rendering of the settings
func (s Settings) String() string {
	return fmt.Sprintf(`Settings:
  Log Level: %s
  No Color: %t
  Strict: %t
  Eps Step Policy: %s
  Max Input Bytes: %d
  Audit DB: %s`,
		s.LogLevel,
		s.NoColor,
		s.Strict,
		s.EpsStepPolicy,
		s.MaxInputBytes,
		s.AuditPath(),
	)
}
