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

// Config holds the cinedex API configuration.
type Config struct {
	HTTP      HTTPConfig               `yaml:"http"`
	Database  DatabaseConfig           `yaml:"database"`
	Embedding EmbeddingConfig          `yaml:"embedding"`
	Backends  map[string]BackendConfig `yaml:"backends"`
	Search    SearchConfig             `yaml:"search"`
	Intent    IntentConfig             `yaml:"intent"`
	Auth      AuthConfig               `yaml:"auth"`
	Index     IndexConfig              `yaml:"index"`
	Logging   LoggingConfig            `yaml:"logging"`
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

// DatabaseConfig holds database connection settings. The database is
// required only when a redis backend or the embedding cache is configured.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a database connection is configured.
func (d DatabaseConfig) Enabled() bool {
	return len(d.Addrs) > 0
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig `yaml:"providers"`
	CacheTTLSec int                       `yaml:"cache_ttl_sec"` // 0 disables caching
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// BackendConfig describes one searchable corpus.
type BackendConfig struct {
	Type       string `yaml:"type"`     // "local" or "redis"
	Provider   string `yaml:"provider"` // embedding provider name; "local" for the hashing embedder
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	IndexDir   string `yaml:"index_dir"`  // local type: directory with index artifacts
	KeyPrefix  string `yaml:"key_prefix"` // redis type: hash key prefix
	IndexName  string `yaml:"index_name"` // redis type: FT index name
	Default    bool   `yaml:"default"`
}

// SearchConfig holds ranking defaults.
type SearchConfig struct {
	DefaultTopK     int `yaml:"default_top_k"`
	MaxTopK         int `yaml:"max_top_k"`
	DefaultPoolSize int `yaml:"default_pool_size"`
	MaxPoolSize     int `yaml:"max_pool_size"`
	Workers         int `yaml:"workers"`
}

// IntentConfig holds natural-language intent extraction settings.
type IntentConfig struct {
	Provider string `yaml:"provider"` // embedding provider supplying the chat API
	Model    string `yaml:"model"`
}

// IndexConfig holds HNSW index build settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
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

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 10
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 100
	}
	if c.Search.DefaultPoolSize <= 0 {
		c.Search.DefaultPoolSize = 200
	}
	if c.Search.MaxPoolSize <= 0 {
		c.Search.MaxPoolSize = 2000
	}
	if c.Search.Workers <= 0 {
		c.Search.Workers = 8
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}

	for name, b := range c.Backends {
		if b.Type == "redis" {
			if b.KeyPrefix == "" {
				b.KeyPrefix = fmt.Sprintf("cinedex:%s:", name)
			}
			if b.IndexName == "" {
				b.IndexName = fmt.Sprintf("cinedex:%s:idx", name)
			}
		}
		c.Backends[name] = b
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}

	defaults := 0
	for name, b := range c.Backends {
		switch b.Type {
		case "local":
			if b.IndexDir == "" {
				return fmt.Errorf("backends.%s.index_dir is required for local backends", name)
			}
		case "redis":
			if !c.Database.Enabled() {
				return fmt.Errorf("backends.%s requires database.addrs", name)
			}
		default:
			return fmt.Errorf("backends.%s.type must be \"local\" or \"redis\", got %q", name, b.Type)
		}
		if b.Dimensions <= 0 {
			return fmt.Errorf("backends.%s.dimensions must be positive", name)
		}
		if b.Provider != "local" {
			if _, ok := c.Embedding.Providers[b.Provider]; !ok {
				return fmt.Errorf("backends.%s references unknown provider %q", name, b.Provider)
			}
		}
		if b.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("at most one backend may be marked default, got %d", defaults)
	}

	if c.Intent.Provider != "" {
		if _, ok := c.Embedding.Providers[c.Intent.Provider]; !ok {
			return fmt.Errorf("intent.provider references unknown provider %q", c.Intent.Provider)
		}
	}

	return nil
}

// DefaultBackend returns the backend marked default, or an arbitrary single
// backend when only one is configured.
func (c *Config) DefaultBackend() string {
	for name, b := range c.Backends {
		if b.Default {
			return name
		}
	}
	if len(c.Backends) == 1 {
		for name := range c.Backends {
			return name
		}
	}
	return ""
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
