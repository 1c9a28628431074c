package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the parsed configuration the core consumes. Reading it from
// disk (TOML or otherwise) is out of scope for the core per spec section 1;
// LoadFile below is a convenience used only by the CLI layer (internal/cmd,
// shared by cmd/pickme and cmd/pickmed).
type Config struct {
	Namespaces map[string]NamespaceValue `yaml:"namespaces"`
	Index      IndexConfig               `yaml:"index"`
	Weights    WeightsConfig             `yaml:"weights"`
	Daemon     DaemonConfig              `yaml:"daemon"`
}

// NamespaceValue is either a single root or a list of roots (spec 4.C).
type NamespaceValue struct {
	Roots []string
}

// UnmarshalYAML accepts either a scalar string or a sequence of strings.
func (n *NamespaceValue) UnmarshalYAML(value *yaml.Node) error {
	var single string
	if err := value.Decode(&single); err == nil {
		n.Roots = []string{single}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return fmt.Errorf("namespace value must be a string or list of strings: %w", err)
	}
	n.Roots = many
	return nil
}

// DepthOverride configures a non-default max_depth for one root.
type DepthOverride struct {
	Root  string `yaml:"root"`
	Depth int    `yaml:"depth"`
}

// ExcludeConfig configures what the external walker skips.
type ExcludeConfig struct {
	Patterns         []string `yaml:"patterns"`
	GitignoredFiles  bool     `yaml:"gitignored_files"`
}

// LimitsConfig bounds how much a single root scan may produce.
type LimitsConfig struct {
	MaxFilesPerRoot int `yaml:"max_files_per_root"`
}

// IndexConfig configures index roots and walker behavior.
type IndexConfig struct {
	Roots          []string        `yaml:"roots"`
	IncludeHidden  bool            `yaml:"include_hidden"`
	Exclude        ExcludeConfig   `yaml:"exclude"`
	DepthDefault   int             `yaml:"depth_default"`
	DepthOverrides []DepthOverride `yaml:"depth_overrides"`
	Limits         LimitsConfig    `yaml:"limits"`
}

// DepthFor resolves the effective max_depth for a root, honoring overrides.
func (c IndexConfig) DepthFor(root string) int {
	for _, o := range c.DepthOverrides {
		if o.Root == root {
			return o.Depth
		}
	}
	if c.DepthDefault > 0 {
		return c.DepthDefault
	}
	return 10
}

// WeightsConfig holds frecency blending weights. No code in this module
// reads them: the SQL ranker in internal/store hardcodes 1.0/0.1/1.0 per
// spec section 4.A; this struct exists for callers that re-score in memory
// (spec section 9, "Weight application").
type WeightsConfig struct {
	GitRecency   float64 `yaml:"git_recency"`
	GitFrequency float64 `yaml:"git_frequency"`
	GitStatus    float64 `yaml:"git_status"`
}

// DefaultWeights returns the weights matching the hardcoded SQL coefficients.
func DefaultWeights() WeightsConfig {
	return WeightsConfig{GitRecency: 1.0, GitFrequency: 0.1, GitStatus: 1.0}
}

// DaemonConfig configures the daemon's IPC surface.
type DaemonConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SocketPath      string `yaml:"socket_path"`
	FallbackToCLI   bool   `yaml:"fallback_to_cli"`
}

// Default returns a Config with the documented defaults applied.
func Default() *Config {
	return &Config{
		Namespaces: map[string]NamespaceValue{},
		Index: IndexConfig{
			DepthDefault: 10,
			Limits:       LimitsConfig{MaxFilesPerRoot: 50000},
		},
		Weights: DefaultWeights(),
		Daemon: DaemonConfig{
			Enabled:       true,
			FallbackToCLI: true,
		},
	}
}

// LoadFile reads and parses a YAML config file, returning Default() when
// the file does not exist. Used only by the CLI layer (internal/cmd);
// the core packages (store, picker, daemon server) only ever see the
// resulting *Config value, never the file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path supplied by the user via flag/env
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ExpandHome expands a leading "~/" in p to the user's home directory,
// matching spec section 4.C's namespace-root expansion rule.
func ExpandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
