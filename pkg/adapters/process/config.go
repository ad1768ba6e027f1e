package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToolchainConfig is a named compiler preset.
type ToolchainConfig struct {
	Name         string            `yaml:"name" json:"name"`
	Command      string            `yaml:"command" json:"command"`
	Args         []string          `yaml:"args" json:"args"`
	Environment  map[string]string `yaml:"env" json:"env"`
	ModuleSuffix string            `yaml:"module_suffix" json:"module_suffix"`
	Description  string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of toolchains.yaml
type ConfigFile struct {
	Toolchains []ToolchainConfig `yaml:"toolchains" json:"toolchains"`
}

// LoadToolchains reads a preset file (YAML or JSON) and returns presets by name.
// A missing file yields no presets.
func LoadToolchains(path string) (map[string]ToolchainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ToolchainConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read toolchains config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	presets := make(map[string]ToolchainConfig)
	for _, tc := range cfg.Toolchains {
		if tc.Name == "" {
			continue
		}
		presets[tc.Name] = tc
	}
	return presets, nil
}

// Options turns a preset into toolchain options.
func (c ToolchainConfig) Options() []ToolchainOption {
	return []ToolchainOption{
		WithCompiler(c.Command, c.Args...),
		WithModuleSuffix(c.ModuleSuffix),
		WithEnv(c.Environment),
	}
}
