package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-bytecode-flow/internal/log"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".gbf"

// Config holds all configuration for gbf
type Config struct {
	// HierarchyFiles lists YAML class tables merged over the builtin one
	HierarchyFiles []string `yaml:"hierarchy_files" env:"GBF_HIERARCHY_FILES"`

	// BuiltinHierarchy enables the embedded JDK class subset
	BuiltinHierarchy bool `yaml:"builtin_hierarchy" env:"GBF_BUILTIN_HIERARCHY"`

	// OracleCacheSize bounds the memoized common-supertype answers
	OracleCacheSize int `yaml:"oracle_cache_size" env:"GBF_ORACLE_CACHE_SIZE"`

	// MaxVisitsPerBlock scales the fixed-point visit budget
	MaxVisitsPerBlock int `yaml:"max_visits_per_block" env:"GBF_MAX_VISITS_PER_BLOCK"`

	// Strict makes wonky frames fail the check command
	Strict bool `yaml:"strict" env:"GBF_STRICT"`

	// Workers is the number of files checked concurrently
	Workers int `yaml:"workers" env:"GBF_WORKERS"`

	// CacheDir holds persisted check results
	CacheDir string `yaml:"cache_dir" env:"GBF_CACHE_DIR"`

	// Extensions selects method files when scanning a directory
	Extensions []string `yaml:"extensions" env:"GBF_EXTENSIONS"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GBF_LOG_LEVEL"`
	JSONLogs bool   `yaml:"json_logs" env:"GBF_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HierarchyFiles:    nil,
		BuiltinHierarchy:  true,
		OracleCacheSize:   4096,
		MaxVisitsPerBlock: 64,
		Strict:            false,
		Workers:           runtime.NumCPU(),
		CacheDir:          filepath.Join(DirName, "cache"),
		Extensions:        []string{".yaml", ".yml", ".json"},
		LogLevel:          "info",
		JSONLogs:          false,
	}
}

// GlobalConfigPath returns the global config file path (~/.gbf/config.yaml)
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DirName, "config.yaml")
	}
	return filepath.Join(home, DirName, "config.yaml")
}

// ProjectConfigPath returns the project-level config file path under dir
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, DirName, "config.yaml")
}

// Load reads configuration for the current directory.
func Load() (*Config, error) {
	return LoadDir(".")
}

// LoadDir reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (<dir>/.gbf/config.yaml)
// 3. Global config (~/.gbf/config.yaml)
// 4. Defaults
//
// Relative hierarchy files and cache directories in the project config are
// resolved against dir.
func LoadDir(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, GlobalConfigPath(), ""); err != nil {
		return nil, err
	}
	if err := mergeFile(cfg, ProjectConfigPath(dir), dir); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile overlays an optional YAML file onto cfg.
func mergeFile(cfg *Config, path, base string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	layer := *cfg
	layer.HierarchyFiles = nil
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if base != "" {
		for i, f := range layer.HierarchyFiles {
			layer.HierarchyFiles[i] = resolve(base, f)
		}
		if layer.CacheDir != cfg.CacheDir {
			layer.CacheDir = resolve(base, layer.CacheDir)
		}
	}
	layer.HierarchyFiles = append(append([]string(nil), cfg.HierarchyFiles...), layer.HierarchyFiles...)
	*cfg = layer
	return nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GBF_HIERARCHY_FILES"); v != "" {
		cfg.HierarchyFiles = splitList(v)
	}
	if v := os.Getenv("GBF_BUILTIN_HIERARCHY"); v != "" {
		cfg.BuiltinHierarchy = parseBool(v)
	}
	if v := os.Getenv("GBF_ORACLE_CACHE_SIZE"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("GBF_ORACLE_CACHE_SIZE: %w", err)
		}
		cfg.OracleCacheSize = i
	}
	if v := os.Getenv("GBF_MAX_VISITS_PER_BLOCK"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("GBF_MAX_VISITS_PER_BLOCK: %w", err)
		}
		cfg.MaxVisitsPerBlock = i
	}
	if v := os.Getenv("GBF_STRICT"); v != "" {
		cfg.Strict = parseBool(v)
	}
	if v := os.Getenv("GBF_WORKERS"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("GBF_WORKERS: %w", err)
		}
		cfg.Workers = i
	}
	if v := os.Getenv("GBF_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("GBF_EXTENSIONS"); v != "" {
		cfg.Extensions = splitList(v)
	}
	if v := os.Getenv("GBF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GBF_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.OracleCacheSize <= 0 {
		return fmt.Errorf("oracle_cache_size must be positive")
	}
	if c.MaxVisitsPerBlock <= 0 {
		return fmt.Errorf("max_visits_per_block must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level. Validate guarantees it parses.
func (c *Config) Level() log.Level {
	l, _ := log.ParseLevel(c.LogLevel)
	return l
}

// splitList splits a comma separated environment value
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBool accepts the usual truthy spellings
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, error) {
	var i int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &i); err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return i, nil
}
