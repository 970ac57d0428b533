package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{
			Providers: map[string]ProviderConfig{
				"openai": {APIKey: "test-key"},
			},
		},
		Backends: map[string]BackendConfig{
			"movies": {
				Type:       "redis",
				Provider:   "openai",
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
				Default:    true,
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_NoBackends(t *testing.T) {
	cfg := validConfig()
	cfg.Backends = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing backends")
	}
}

func TestValidate_UnknownBackendType(t *testing.T) {
	cfg := validConfig()
	b := cfg.Backends["movies"]
	b.Type = "mongo"
	cfg.Backends["movies"] = b

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend type")
	}
}

func TestValidate_RedisBackendWithoutDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis backend without database.addrs")
	}
}

func TestValidate_LocalBackendRequiresIndexDir(t *testing.T) {
	cfg := validConfig()
	cfg.Backends["faiss"] = BackendConfig{
		Type:       "local",
		Provider:   "local",
		Dimensions: 256,
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for local backend without index_dir")
	}
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := validConfig()
	b := cfg.Backends["movies"]
	b.Provider = "mystery"
	cfg.Backends["movies"] = b

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestValidate_LocalProviderNeedsNoEntry(t *testing.T) {
	cfg := validConfig()
	cfg.Backends["hashed"] = BackendConfig{
		Type:       "local",
		Provider:   "local",
		Dimensions: 256,
		IndexDir:   "/data/index",
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Backends["second"] = BackendConfig{
		Type:       "local",
		Provider:   "local",
		Dimensions: 256,
		IndexDir:   "/data/index",
		Default:    true,
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for two default backends")
	}
}

func TestValidate_IntentUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Intent = IntentConfig{Provider: "mystery", Model: "gpt-4o-mini"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown intent provider")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		Backends: map[string]BackendConfig{
			"movies": {Type: "redis"},
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Search.DefaultTopK != 10 {
		t.Errorf("expected DefaultTopK=10, got %d", cfg.Search.DefaultTopK)
	}
	if cfg.Search.MaxTopK != 100 {
		t.Errorf("expected MaxTopK=100, got %d", cfg.Search.MaxTopK)
	}
	if cfg.Search.DefaultPoolSize != 200 {
		t.Errorf("expected DefaultPoolSize=200, got %d", cfg.Search.DefaultPoolSize)
	}
	if cfg.Search.MaxPoolSize != 2000 {
		t.Errorf("expected MaxPoolSize=2000, got %d", cfg.Search.MaxPoolSize)
	}
	if cfg.Search.Workers != 8 {
		t.Errorf("expected Workers=8, got %d", cfg.Search.Workers)
	}
	if cfg.Index.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Index.HNSWM)
	}
	if cfg.Index.HNSWEFConstruct != 400 {
		t.Errorf("expected HNSWEFConstruct=400, got %d", cfg.Index.HNSWEFConstruct)
	}

	b := cfg.Backends["movies"]
	if b.KeyPrefix != "cinedex:movies:" {
		t.Errorf("expected derived key prefix, got %q", b.KeyPrefix)
	}
	if b.IndexName != "cinedex:movies:idx" {
		t.Errorf("expected derived index name, got %q", b.IndexName)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Search:   SearchConfig{DefaultTopK: 5, MaxTopK: 50, DefaultPoolSize: 100, MaxPoolSize: 500, Workers: 4},
		Backends: map[string]BackendConfig{
			"movies": {Type: "redis", KeyPrefix: "custom:", IndexName: "custom:idx"},
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.DefaultTopK != 5 {
		t.Errorf("expected DefaultTopK=5, got %d", cfg.Search.DefaultTopK)
	}
	if cfg.Backends["movies"].KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Backends["movies"].KeyPrefix)
	}
	if cfg.Backends["movies"].IndexName != "custom:idx" {
		t.Errorf("expected IndexName='custom:idx', got %q", cfg.Backends["movies"].IndexName)
	}
}

func TestDefaultBackend(t *testing.T) {
	cfg := validConfig()
	if got := cfg.DefaultBackend(); got != "movies" {
		t.Errorf("expected 'movies', got %q", got)
	}

	// Single backend without the default flag is still the default.
	b := cfg.Backends["movies"]
	b.Default = false
	cfg.Backends["movies"] = b
	if got := cfg.DefaultBackend(); got != "movies" {
		t.Errorf("expected 'movies' for single backend, got %q", got)
	}

	// Two backends and no flag: no default.
	cfg.Backends["other"] = BackendConfig{Type: "local", Provider: "local", Dimensions: 8, IndexDir: "/tmp"}
	if got := cfg.DefaultBackend(); got != "" {
		t.Errorf("expected empty default, got %q", got)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("CINEDEX_TEST_KEY", "secret")
	defer os.Unsetenv("CINEDEX_TEST_KEY")

	tests := []struct {
		in   string
		want string
	}{
		{"api_key: ${CINEDEX_TEST_KEY}", "api_key: secret"},
		{"port: ${CINEDEX_TEST_MISSING:-8080}", "port: 8080"},
		{"addr: ${CINEDEX_TEST_MISSING}", "addr: "},
		{"plain: value", "plain: value"},
	}
	for _, tc := range tests {
		got := string(expandEnvVars([]byte(tc.in)))
		if got != tc.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
