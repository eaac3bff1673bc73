package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testClient struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type testConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Client        testClient `mapstructure:"client"`
	Wait          bool       `mapstructure:"wait"`
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if cfg.Logging.ServiceName != "svc" {
			t.Errorf("expected logging service name to follow name, got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("debug raises log level", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Debug: true}
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug level, got %q", cfg.Logging.Level)
		}
	})

	t.Run("explicit level wins over debug", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Debug: true}
		cfg.Logging.Level = "warn"
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "warn" {
			t.Errorf("expected warn level, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", ServiceConfig{Name: "svc", Environment: "development"}, false, ""},
		{"valid production", ServiceConfig{Name: "svc", Environment: "production"}, false, ""},
		{"missing name", ServiceConfig{Environment: "production"}, true, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "invalid"}, true, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: pipedeploy
environment: staging
client:
  endpoint: http://feldera:8080
  timeout: 5s
wait: false
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	err := LoadConfig("pipedeploy", &cfg,
		WithConfigFile(configPath),
		WithEnvPrefix("PDTEST_NONE"),
		WithDefaults(map[string]any{"wait": true, "client.endpoint": "http://localhost:28080"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "pipedeploy" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.Client.Endpoint != "http://feldera:8080" {
		t.Errorf("expected file endpoint, got %q", cfg.Client.Endpoint)
	}
	if cfg.Client.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Client.Timeout)
	}
	if cfg.Wait {
		t.Error("config file false should override default true")
	}
}

func TestLoadConfigDefaultsOnly(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("pipedeploy", &cfg,
		WithFileSystem(&mockFS{}),
		WithEnvPrefix("PDTEST_NONE"),
		WithDefaults(map[string]any{"wait": true, "client.endpoint": "http://localhost:28080"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Wait || cfg.Client.Endpoint != "http://localhost:28080" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigEnvPrefixOverrides(t *testing.T) {
	t.Setenv("PDTEST_CLIENT_ENDPOINT", "http://from-env:1234")
	t.Setenv("PDTEST_CLIENT_API_KEY", "apikey:secret")
	t.Setenv("CLIENT_ENDPOINT", "http://unprefixed-is-ignored")

	var cfg testConfig
	err := LoadConfig("pipedeploy", &cfg,
		WithFileSystem(&mockFS{}),
		WithEnvPrefix("PDTEST"),
		WithDefaults(map[string]any{"client.endpoint": "http://localhost:28080"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Client.Endpoint != "http://from-env:1234" {
		t.Errorf("expected env endpoint, got %q", cfg.Client.Endpoint)
	}
	if cfg.Client.APIKey != "apikey:secret" {
		t.Errorf("expected env api key, got %q", cfg.Client.APIKey)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("pipedeploy", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PDENV_CLIENT_ENDPOINT=http://dotenv:9\n"), 0644); err != nil {
		t.Fatalf("failed to write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PDENV_CLIENT_ENDPOINT") })

	var cfg testConfig
	err := LoadConfig("pipedeploy", &cfg, WithEnvFile(envPath), WithEnvPrefix("PDENV"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Client.Endpoint != "http://dotenv:9" {
		t.Errorf("expected endpoint from .env, got %q", cfg.Client.Endpoint)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/pipedeploy/config.yml": true,
		"./.env":                      true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("pipedeploy", LoaderConfig{})
	if files.ConfigFile != "./cmd/pipedeploy/config.yml" {
		t.Errorf("expected config file at ./cmd/pipedeploy/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected env file ./.env, got %q", files.EnvFile)
	}
}

func TestResolverPrefersNamedFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./pipedeploy.yml": true,
		"./config.yml":     true,
	}}
	files := (&Resolver{FileSystem: fs}).ResolveFiles("pipedeploy", LoaderConfig{})
	if files.ConfigFile != "./pipedeploy.yml" {
		t.Errorf("expected ./pipedeploy.yml, got %q", files.ConfigFile)
	}
}

func TestResolverExplicitPaths(t *testing.T) {
	files := (&Resolver{FileSystem: &mockFS{}}).ResolveFiles("pipedeploy", LoaderConfig{
		ConfigFile: "/etc/pd.yml",
		EnvFile:    "/etc/pd.env",
	})
	if files.ConfigFile != "/etc/pd.yml" || files.EnvFile != "/etc/pd.env" {
		t.Errorf("explicit paths should be kept, got %+v", files)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("CLIENT_API_KEY")
	want := []string{"client_api_key", "client.api.key", "client.api_key", "client_api.key"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := generateEnvKeyVariants("NAME"); len(got) != 1 || got[0] != "name" {
		t.Errorf("single segment should map to itself, got %v", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	WithEnvPrefix("pipedeploy_")(&lc)
	WithDefaults(map[string]any{"a": 1})(&lc)
	WithDefaults(map[string]any{"b": 2})(&lc)

	if lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("unexpected paths %+v", lc)
	}
	if lc.EnvPrefix != "PIPEDEPLOY" {
		t.Errorf("expected normalized prefix, got %q", lc.EnvPrefix)
	}
	if lc.Defaults["a"] != 1 || lc.Defaults["b"] != 2 {
		t.Errorf("expected merged defaults, got %v", lc.Defaults)
	}
}
