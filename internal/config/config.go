// Package config loads sis-import configuration.
//
// Precedence, lowest first: DefaultConfig, the YAML config file, a .env file,
// process environment, then command-line flags (applied by cmd/sis-import).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sisimport/internal/browser"
)

// Config holds all sis-import configuration.
type Config struct {
	// Snapshot batch to import (positional argument on the CLI)
	SnapshotPath string `yaml:"snapshot_path" validate:"required"`

	// Upload file attachments and link them from descriptions
	Files bool `yaml:"files"`

	// Log unmatched assignments instead of halting
	IgnoreErrors bool `yaml:"ignore_errors"`

	// IANA zone used for snapshot due dates without an offset
	TimeZone string `yaml:"time_zone"`

	// Concurrent uploads per assignment or page
	UploadConcurrency int `yaml:"upload_concurrency" validate:"min=1,max=16"`

	Blackbaud BlackbaudConfig `yaml:"blackbaud"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Lookups   LookupsConfig   `yaml:"lookups"`
	Journal   JournalConfig   `yaml:"journal"`
	Browser   browser.Config  `yaml:"browser"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BlackbaudConfig identifies the legacy SIS instance.
type BlackbaudConfig struct {
	InstanceID string `yaml:"instance_id"`
}

// CanvasConfig configures the target LMS.
type CanvasConfig struct {
	InstanceURL string `yaml:"instance_url" validate:"required,url"`
	AccessToken string `yaml:"access_token" validate:"required"`
	Timeout     string `yaml:"timeout"`
}

// LookupsConfig points at the OneRoster CSV exports.
type LookupsConfig struct {
	TermsPath                  string `yaml:"terms_path" validate:"required"`
	DepartmentAccountMapPath   string `yaml:"department_account_map_path" validate:"required"`
	CoursesWithDepartmentsPath string `yaml:"courses_with_departments_path" validate:"required"`
}

// JournalConfig configures the SQLite run journal. Empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File       string          `yaml:"file"`
	JSON       bool            `yaml:"json"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Files:             true,
		IgnoreErrors:      false,
		TimeZone:          "Local",
		UploadConcurrency: 4,
		Canvas: CanvasConfig{
			Timeout: "60s",
		},
		Browser: browser.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file and applies environment overrides.
// A missing file is not an error; defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without replacing variables that are already set. Missing files
// are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// envOverrides lists the environment variables read on top of the file.
// Booleans are strings so that "unset" and "false" stay distinguishable.
type envOverrides struct {
	SnapshotPath               string `env:"SNAPSHOT_PATH"`
	Files                      string `env:"SIS_IMPORT_FILES"`
	IgnoreErrors               string `env:"SIS_IMPORT_IGNORE_ERRORS"`
	TimeZone                   string `env:"SIS_IMPORT_TIME_ZONE"`
	JournalPath                string `env:"SIS_IMPORT_JOURNAL"`
	LogLevel                   string `env:"SIS_IMPORT_LOG_LEVEL"`
	BlackbaudInstanceID        string `env:"BLACKBAUD_INSTANCE_ID"`
	CanvasInstanceURL          string `env:"CANVAS_INSTANCE_URL"`
	CanvasAccessToken          string `env:"CANVAS_ACCESS_TOKEN"`
	TermsPath                  string `env:"TERMS_CSV"`
	DepartmentAccountMapPath   string `env:"DEPARTMENT_ACCOUNT_MAP_CSV"`
	CoursesWithDepartmentsPath string `env:"COURSES_WITH_DEPARTMENTS_CSV"`
}

func (c *Config) applyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	setString(&c.SnapshotPath, o.SnapshotPath)
	setString(&c.TimeZone, o.TimeZone)
	setString(&c.Journal.Path, o.JournalPath)
	setString(&c.Logging.Level, o.LogLevel)
	setString(&c.Blackbaud.InstanceID, o.BlackbaudInstanceID)
	setString(&c.Canvas.InstanceURL, o.CanvasInstanceURL)
	setString(&c.Canvas.AccessToken, o.CanvasAccessToken)
	setString(&c.Lookups.TermsPath, o.TermsPath)
	setString(&c.Lookups.DepartmentAccountMapPath, o.DepartmentAccountMapPath)
	setString(&c.Lookups.CoursesWithDepartmentsPath, o.CoursesWithDepartmentsPath)

	if err := setBool(&c.Files, "SIS_IMPORT_FILES", o.Files); err != nil {
		return err
	}
	return setBool(&c.IgnoreErrors, "SIS_IMPORT_IGNORE_ERRORS", o.IgnoreErrors)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, name, v string) error {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	*dst = b
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml names so messages match what the operator wrote.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks everything needed to read and plan a snapshot batch.
// Canvas settings are not required here; see ValidateImport.
func (c *Config) Validate() error {
	return describe(validate.StructExcept(c, "Canvas"))
}

// ValidateImport checks everything needed to write to Canvas.
func (c *Config) ValidateImport() error {
	return describe(validate.Struct(c))
}

func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Config.canvas.instance_url"; drop the root.
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// GetCanvasTimeout returns the Canvas request timeout.
func (c *Config) GetCanvasTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Canvas.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// Location returns the time zone for snapshot due dates.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// SnapshotRoot returns the directory local attachment paths are relative to.
func (c *Config) SnapshotRoot() string {
	return filepath.Dir(c.SnapshotPath)
}
