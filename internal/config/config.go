// Package config loads the guardrag configuration from YAML with
// environment variable substitution.
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

// Config holds the guardrag API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Cache      CacheConfig      `yaml:"cache"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Query      QueryConfig      `yaml:"query"`
	Security   SecurityConfig   `yaml:"security"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CacheConfig holds the optional Redis embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLHours         int      `yaml:"ttl_hours"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// GenerationConfig holds the generation provider settings.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TopP        float32 `yaml:"top_p"`
}

// IngestionConfig holds document chunking settings.
type IngestionConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// QueryConfig holds retrieval settings.
type QueryConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// PatternRule is one hard filter rule.
type PatternRule struct {
	Name       string `yaml:"name"`
	Pattern    string `yaml:"pattern"`
	Flags      string `yaml:"flags"` // "IGNORECASE" or empty
	Tag        string `yaml:"tag"`
	ForceAdmin bool   `yaml:"force_admin"`
}

// SecurityConfig holds the security pipeline settings.
type SecurityConfig struct {
	HardPatterns      []PatternRule `yaml:"hard_patterns"`
	SensitiveKeywords []string      `yaml:"sensitive_keywords"`
	PublicKeywords    []string      `yaml:"public_keywords"`
	SentinelThreshold float64       `yaml:"sentinel_threshold"`
	SentinelLabels    []string      `yaml:"sentinel_labels"`
	SensitiveLabels   []string      `yaml:"sensitive_labels"`
}

// StorageConfig holds corpus persistence settings.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// DefaultHardPatterns is the built-in rule set used when the config carries none.
func DefaultHardPatterns() []PatternRule {
	return []PatternRule{
		{Name: "project_chimera", Pattern: `\bProject\s+Chimera\b`, Flags: "IGNORECASE", Tag: "project_chimera", ForceAdmin: true},
		{Name: "ssn", Pattern: `\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`, Tag: "ssn", ForceAdmin: true},
		{Name: "credit_card", Pattern: `\b(?:\d[ -]*?){13,16}\b`, Tag: "credit_card", ForceAdmin: true},
		{Name: "confidential", Pattern: `\bconfidential\b`, Flags: "IGNORECASE", Tag: "confidential", ForceAdmin: true},
		{Name: "internal_use_only", Pattern: `\binternal\s+use\s+only\b`, Flags: "IGNORECASE", Tag: "internal", ForceAdmin: true},
		{Name: "trade_secret", Pattern: `\btrade\s+secret\b`, Flags: "IGNORECASE", Tag: "trade_secret", ForceAdmin: true},
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Generation calls are long-running
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 256
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Generation.TopP <= 0 {
		c.Generation.TopP = 0.9
	}
	if c.Ingestion.ChunkSize <= 0 {
		c.Ingestion.ChunkSize = 500
	}
	if c.Ingestion.ChunkOverlap <= 0 {
		c.Ingestion.ChunkOverlap = 50
	}
	if c.Query.TopK <= 0 {
		c.Query.TopK = 3
	}
	if c.Query.SimilarityThreshold <= 0 {
		c.Query.SimilarityThreshold = 0.55
	}
	if len(c.Security.HardPatterns) == 0 {
		c.Security.HardPatterns = DefaultHardPatterns()
	}
	if c.Security.SentinelThreshold <= 0 {
		c.Security.SentinelThreshold = 0.85
	}
	if len(c.Security.SentinelLabels) == 0 {
		c.Security.SentinelLabels = []string{"public", "internal", "confidential", "pii", "financial", "legal"}
	}
	if len(c.Security.SensitiveLabels) == 0 {
		c.Security.SensitiveLabels = []string{"confidential", "pii", "financial", "legal"}
	}
	if len(c.Security.SensitiveKeywords) == 0 {
		c.Security.SensitiveKeywords = []string{
			"salary", "merger", "acquisition", "lawsuit", "settlement",
			"password", "secret", "restricted", "proprietary",
		}
	}
	if len(c.Security.PublicKeywords) == 0 {
		c.Security.PublicKeywords = []string{
			"policy", "holiday", "vacation", "guide", "faq", "handbook", "public",
		}
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize)
	}
	if c.Query.SimilarityThreshold < 0 || c.Query.SimilarityThreshold > 1 {
		return fmt.Errorf("query.similarity_threshold must be in [0, 1], got %f", c.Query.SimilarityThreshold)
	}
	if c.Security.SentinelThreshold < 0 || c.Security.SentinelThreshold > 1 {
		return fmt.Errorf("security.sentinel_threshold must be in [0, 1], got %f", c.Security.SentinelThreshold)
	}
	for i, p := range c.Security.HardPatterns {
		if p.Name == "" || p.Pattern == "" {
			return fmt.Errorf("security.hard_patterns[%d]: name and pattern are required", i)
		}
		switch p.Flags {
		case "", "IGNORECASE":
			// ok
		default:
			return fmt.Errorf("security.hard_patterns[%d]: unknown flags %q", i, p.Flags)
		}
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
