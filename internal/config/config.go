// Package config loads harness settings from defaults, a YAML file and
// HPYHARNESS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/hpyharness/pkg/adapters/process"
	"github.com/aretw0/hpyharness/pkg/domain"
)

// Devel locates the HPy development tree.
type Devel struct {
	IncludeDir string   `yaml:"include_dir" mapstructure:"include_dir" env:"INCLUDE_DIR"`
	SourceDir  string   `yaml:"source_dir" mapstructure:"source_dir" env:"SOURCE_DIR"`
	Sources    []string `yaml:"sources" mapstructure:"sources" env:"SOURCES" envSeparator:","`
}

// RuntimeSources returns Sources resolved against SourceDir.
func (d Devel) RuntimeSources() []string {
	out := make([]string, 0, len(d.Sources))
	for _, s := range d.Sources {
		if d.SourceDir != "" && !filepath.IsAbs(s) {
			s = filepath.Join(d.SourceDir, s)
		}
		out = append(out, s)
	}
	return out
}

// Redis enables cross-process build locks and build history.
// An empty Addr disables both.
type Redis struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	Prefix       string        `yaml:"prefix" env:"PREFIX"`
	LockTTL      time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
	HistoryLimit int           `yaml:"history_limit" env:"HISTORY_LIMIT"`
}

// Config holds every harness setting.
type Config struct {
	// CC is the compiler driver.
	CC string `yaml:"cc" env:"CC"`
	// Toolchain names a preset from ToolchainsFile; it overrides CC.
	Toolchain      string `yaml:"toolchain" env:"TOOLCHAIN"`
	ToolchainsFile string `yaml:"toolchains_file" env:"TOOLCHAINS_FILE"`

	ABI       domain.ABI `yaml:"abi" env:"ABI"`
	Debug     bool       `yaml:"debug" env:"DEBUG"`
	Force     bool       `yaml:"force" env:"FORCE"`
	OutputDir string     `yaml:"output_dir" env:"OUTPUT_DIR"`
	Verbose   bool       `yaml:"verbose" env:"VERBOSE"`

	// ExtraIncludeDirs are searched before every other include directory.
	ExtraIncludeDirs []string          `yaml:"extra_include_dirs" env:"EXTRA_INCLUDE_DIRS" envSeparator:":"`
	ModuleSuffix     string            `yaml:"module_suffix" env:"MODULE_SUFFIX"`
	Devel            Devel             `yaml:"devel" envPrefix:"DEVEL_"`
	Env              map[string]string `yaml:"env"`
	Redis            Redis             `yaml:"redis" envPrefix:"REDIS_"`

	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HPYHARNESS_"

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CC:           process.DefaultCompiler,
		ABI:          domain.ABICPython,
		Force:        true,
		ModuleSuffix: process.DefaultModuleSuffix,
		LogLevel:     "info",
		LogFormat:    "text",
		Redis: Redis{
			Prefix:       "hpyharness:",
			LockTTL:      2 * time.Minute,
			HistoryLimit: 50,
		},
	}
}

// Load applies the YAML file at path (if any) and the environment on top of Default.
// An empty path or a missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
			}
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize rewrites values accepted in several spellings to their
// canonical form. The ABI is matched case-insensitively.
func (c *Config) Normalize() error {
	abi, err := domain.ParseABI(string(c.ABI))
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	c.ABI = abi
	return nil
}

// ParseEnv loads HPYHARNESS_* variables into target. Unset variables leave fields untouched.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := domain.ParseABI(string(c.ABI)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.CC == "" && c.Toolchain == "" {
		return errors.New("invalid config: cc must not be empty")
	}
	return nil
}

// BuildOptions are the recognised per-build options.
type BuildOptions struct {
	Debug     bool       `mapstructure:"debug"`
	Force     bool       `mapstructure:"force"`
	OutputDir string     `mapstructure:"output_dir"`
	ABI       domain.ABI `mapstructure:"abi"`
	Verbose   bool       `mapstructure:"verbose"`
}

// BuildOptions returns the per-build options implied by the config.
func (c Config) BuildOptions() BuildOptions {
	return BuildOptions{
		Debug:     c.Debug,
		Force:     c.Force,
		OutputDir: c.OutputDir,
		ABI:       c.ABI,
		Verbose:   c.Verbose,
	}
}

// DecodeOptions overlays a loosely typed option map onto base.
// Unknown keys are rejected so misspelt options do not pass silently.
func DecodeOptions(base BuildOptions, raw map[string]any) (BuildOptions, error) {
	out := base
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       abiHook,
	})
	if err != nil {
		return BuildOptions{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return BuildOptions{}, fmt.Errorf("decode build options: %w", err)
	}
	if out.ABI != "" && !out.ABI.Valid() {
		return BuildOptions{}, fmt.Errorf("decode build options: unknown abi %q", out.ABI)
	}
	return out, nil
}

func abiHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(domain.ABI("")) || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseABI(data.(string))
}
