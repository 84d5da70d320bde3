// Package config loads environment-keyed YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the manrec service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ranker    RankerConfig    `yaml:"ranker"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig locates the golden catalog snapshot produced by the ETL.
type CatalogConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
}

// ArtifactsConfig locates the persisted index artifacts.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig holds the optional Redis embedding-cache settings.
// With no addrs configured the cache is disabled and every query
// embedding hits the provider.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider and vectorization settings.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	BatchSize           int    `yaml:"batch_size"`
	FitWorkers          int    `yaml:"fit_workers"`
}

// RankerConfig exposes the hybrid blend as tunable parameters. The defaults
// are the hand-tuned originals; keeping them in config lets them be re-tuned
// without code changes.
type RankerConfig struct {
	DenseWeight       float64 `yaml:"dense_weight"`
	SparseWeight      float64 `yaml:"sparse_weight"`
	DirectTitleBoost  float64 `yaml:"direct_title_boost"`
	KeywordTitleBoost float64 `yaml:"keyword_title_boost"`
	KeywordThreshold  float64 `yaml:"keyword_reason_threshold"`
	CandidatePool     int     `yaml:"candidate_pool"`
	TitleTokenMinLen  int     `yaml:"title_token_min_len"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 128
	}
	if c.Embedding.FitWorkers <= 0 {
		c.Embedding.FitWorkers = 4
	}
	if c.Ranker.DenseWeight == 0 {
		c.Ranker.DenseWeight = 0.5
	}
	if c.Ranker.SparseWeight == 0 {
		c.Ranker.SparseWeight = 0.3
	}
	if c.Ranker.DirectTitleBoost == 0 {
		c.Ranker.DirectTitleBoost = 0.5
	}
	if c.Ranker.KeywordTitleBoost == 0 {
		c.Ranker.KeywordTitleBoost = 0.2
	}
	if c.Ranker.KeywordThreshold == 0 {
		c.Ranker.KeywordThreshold = 0.4
	}
	if c.Ranker.CandidatePool <= 0 {
		c.Ranker.CandidatePool = 200
	}
	if c.Ranker.TitleTokenMinLen <= 0 {
		c.Ranker.TitleTokenMinLen = 4
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "data/artifacts"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.SnapshotPath == "" {
		return fmt.Errorf("catalog.snapshot_path is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Ranker.DenseWeight < 0 || c.Ranker.SparseWeight < 0 {
		return fmt.Errorf("ranker weights must be non-negative")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
