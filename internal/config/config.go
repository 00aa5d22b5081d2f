// Package config handles loading and resolving athmon configuration.
// Resolution order (later layers win):
//  1. built-in defaults
//  2. athmon.yaml in the current working directory, or the --config file
//  3. environment variables prefixed ATHMON_ (ATHMON_ACUTE, ATHMON_DB_PATH, ...)
//  4. CLI flags, passed in as overrides
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/grid"
	"github.com/derickschaefer/athmon/internal/posthoc"
	"github.com/derickschaefer/athmon/internal/prepare"
	"github.com/derickschaefer/athmon/internal/util"
)

const (
	DefaultConfigFile  = "athmon.yaml"
	DefaultFormat      = "table"
	DefaultConcurrency = 4
	DefaultLogLevel    = "warn"
	EnvPrefix          = "ATHMON_"
)

// ErrInvalidConfig is wrapped by every load and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the fully-resolved runtime configuration.
type Config struct {
	Format      string `koanf:"format" validate:"oneof=table json jsonl csv tsv md"`
	Concurrency int    `koanf:"concurrency" validate:"min=1,max=256"`
	DBPath      string `koanf:"db_path"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Columns grid.Columns `koanf:"columns"`

	Acute           int      `koanf:"acute" validate:"min=1"`
	Chronic         int      `koanf:"chronic" validate:"min=1"`
	DayAggregate    string   `koanf:"day_aggregate" validate:"oneof=sum mean max min"`
	Estimators      []string `koanf:"estimators" validate:"min=1,dive,required"`
	GroupEstimators []string `koanf:"group_estimators" validate:"min=1,dive,required"`
	Posthoc         string   `koanf:"posthoc" validate:"omitempty,oneof=none ratios"`
	NASession       string   `koanf:"na_session" validate:"na_or_number"`
	NADay           string   `koanf:"na_day" validate:"na_or_number"`
	RollingFill     string   `koanf:"rolling_fill" validate:"na_or_number"`
	UseCounts       bool     `koanf:"use_counts"`
	MaxLevels       int      `koanf:"max_levels" validate:"min=0"`

	// ConfigPath is the file that was loaded (empty if none found).
	ConfigPath string `koanf:"-"`

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool `koanf:"-"`
	Verbose bool `koanf:"-"`
}

// Defaults returns the built-in configuration as a flat key map.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"format":           DefaultFormat,
		"concurrency":      DefaultConcurrency,
		"db_path":          defaultDBPath(),
		"log_level":        DefaultLogLevel,
		"columns.athlete":  "athlete",
		"columns.date":     "date",
		"columns.variable": "variable",
		"columns.value":    "value",
		"acute":            7,
		"chronic":          28,
		"day_aggregate":    "sum",
		"estimators":       []string{"mean", "sd", "cv"},
		"group_estimators": []string{"median", "lower", "upper"},
		"posthoc":          "none",
		"na_session":       "NA",
		"na_day":           "NA",
		"rolling_fill":     "NA",
		"use_counts":       false,
		"max_levels":       50,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "athmon.db"
	}
	return filepath.Join(home, ".athmon", "athmon.db")
}

// Load resolves configuration from all sources. path is the --config value;
// when empty, athmon.yaml in the working directory is used if present.
// overrides holds flag values keyed like the YAML file and wins over
// everything else.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")
	for key, v := range Defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("%w: default %s: %v", ErrInvalidConfig, key, err)
		}
	}

	loaded := ""
	switch {
	case path != "":
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfig, path, err)
		}
		loaded = path
	default:
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			if err := k.Load(file.Provider(DefaultConfigFile), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfig, DefaultConfigFile, err)
			}
			loaded = DefaultConfigFile
		}
	}

	// ATHMON_DB_PATH -> db_path, ATHMON_COLUMNS_VALUE -> columns.value
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if rest, ok := strings.CutPrefix(s, "columns_"); ok {
			return "columns." + rest
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}

	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("%w: flag %s: %v", ErrInvalidConfig, key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if loaded != "" {
		if abs, err := filepath.Abs(loaded); err == nil {
			loaded = abs
		}
	}
	cfg.ConfigPath = loaded
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("na_or_number", func(fl validator.FieldLevel) bool {
		_, ok := util.ParseValue(fl.Field().String())
		return ok
	})
	return v
}

// Validate checks field constraints, window sizes and that every named
// estimator exists. All problems are reported together; window problems
// unwrap to model.ErrInvalidWindowSize.
func (c *Config) Validate() error {
	var errs util.MultiError
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs.Add(fmt.Errorf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs.Add(err)
		}
	}
	errs.Add(prepare.Options{Acute: c.Acute, Chronic: c.Chronic}.Validate())
	if _, err := estimator.Parse(c.Estimators); err != nil {
		errs.Add(fmt.Errorf("estimators: %w", err))
	}
	if _, err := estimator.Parse(c.GroupEstimators); err != nil {
		errs.Add(fmt.Errorf("group_estimators: %w", err))
	}
	if err := errs.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// PrepareOptions converts the configuration into pipeline options.
func (c *Config) PrepareOptions() (prepare.Options, error) {
	opts := prepare.DefaultOptions()
	opts.Acute = c.Acute
	opts.Chronic = c.Chronic
	opts.UseCounts = c.UseCounts
	opts.MaxLevels = c.MaxLevels
	opts.Concurrency = c.Concurrency
	opts.NASession = naValue(c.NASession)
	opts.NADay = naValue(c.NADay)
	opts.RollingFill = naValue(c.RollingFill)

	var err error
	if opts.DayAggregate, err = estimator.Aggregate(c.DayAggregate); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if opts.RollingEstimators, err = estimator.Parse(c.Estimators); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if opts.GroupSummaryEstimators, err = estimator.Parse(c.GroupEstimators); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if opts.Posthoc, err = posthoc.Lookup(c.Posthoc); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return opts, nil
}

func naValue(s string) float64 {
	v, ok := util.ParseValue(s)
	if !ok {
		return math.NaN()
	}
	return v
}

// ─── Template ─────────────────────────────────────────────────────────────────

// Template returns the YAML document written by `athmon config init`.
func Template() ([]byte, error) {
	d := Defaults()
	delete(d, "db_path")
	columns := map[string]interface{}{}
	for key, v := range d {
		if rest, ok := strings.CutPrefix(key, "columns."); ok {
			columns[rest] = v
			delete(d, key)
		}
	}
	d["columns"] = columns
	return yaml.Parser().Marshal(d)
}

// WriteFile writes the template to path, refusing to overwrite unless force
// is set.
func WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := Template()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
