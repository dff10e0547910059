package config_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/skillswap/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Addr:          ":8080",
		JWTSecret:     "strongsecret",
		APITimeout:    5 * time.Second,
		DatabasePath:  "skillswap.db",
		TokenDuration: 1 * time.Hour,
		BcryptCost:    10,
		RateLimit:     config.RateLimit{Requests: 10, Window: time.Minute},
	}
}

func TestValidate_InsecureJWT_FailsWhenNotDevelopment(t *testing.T) {
	t.Setenv("SKILLSWAP_ENV", "production")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for insecure JWT in non-development env")
	}
}

func TestValidate_InsecureJWT_AllowsDevelopment(t *testing.T) {
	t.Setenv("SKILLSWAP_ENV", "development")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Validate to succeed in development env, got: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("SKILLSWAP_ENV", "development")

	cfg := validConfig()
	cfg.Addr = ""
	cfg.BcryptCost = 99
	cfg.TokenDuration = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected Validate to fail")
	}
	for _, want := range []string{"addr", "bcrypt_cost", "token_duration"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_OK(t *testing.T) {
	t.Setenv("SKILLSWAP_ENV", "production")

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate failed unexpectedly: %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Ensure environment does not interfere
	for _, k := range []string{"SKILLSWAP_ADDR", "SKILLSWAP_JWT_SECRET", "SKILLSWAP_DATABASE_PATH", "SKILLSWAP_TOKEN_DURATION", "SKILLSWAP_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error for empty path: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":8080")
	}
	if cfg.JWTSecret != "supersecretkey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "supersecretkey")
	}
	if cfg.DatabasePath != "skillswap.db" {
		t.Fatalf("unexpected DatabasePath: got %q want %q", cfg.DatabasePath, "skillswap.db")
	}
	if cfg.APITimeout != 15*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 15*time.Second)
	}
	if cfg.TokenDuration != 7*24*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 7*24*time.Hour)
	}
	if cfg.BcryptCost != 12 {
		t.Fatalf("unexpected BcryptCost: got %d want 12", cfg.BcryptCost)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SKILLSWAP_ADDR", ":7070")
	t.Setenv("SKILLSWAP_TOKEN_DURATION", "90m")
	t.Setenv("SKILLSWAP_WORKERS", "7")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("unexpected Addr: %q", cfg.Addr)
	}
	if cfg.TokenDuration != 90*time.Minute {
		t.Fatalf("unexpected TokenDuration: %v", cfg.TokenDuration)
	}
	if cfg.Workers.Count != 7 {
		t.Fatalf("unexpected worker count: %d", cfg.Workers.Count)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	f.Close()

	content := []byte("addr: \":9090\"\njwt_secret: \"filekey\"\ntimeout: \"30s\"\ndatabase_path: \"test.db\"\ntoken_duration: \"2h\"\nrate_limit:\n  requests: 3\n  window: \"10s\"\n")
	if err := os.WriteFile(f.Name(), content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := config.LoadConfig(f.Name())
	if err != nil {
		t.Fatalf("LoadConfig returned error for file: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":9090")
	}
	if cfg.JWTSecret != "filekey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "filekey")
	}
	if cfg.DatabasePath != "test.db" {
		t.Fatalf("unexpected DatabasePath: got %q want %q", cfg.DatabasePath, "test.db")
	}
	if cfg.APITimeout != 30*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 30*time.Second)
	}
	if cfg.TokenDuration != 2*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 2*time.Hour)
	}
	if cfg.RateLimit.Requests != 3 || cfg.RateLimit.Window != 10*time.Second {
		t.Fatalf("unexpected RateLimit: %+v", cfg.RateLimit)
	}
}

func TestLoadConfig_BadPath(t *testing.T) {
	if _, err := config.LoadConfig("/path/that/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent path, got nil")
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "bad-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	f.Close()

	if err := os.WriteFile(f.Name(), []byte("addr: [unclosed"), 0o600); err != nil {
		t.Fatalf("failed to write bad yaml: %v", err)
	}

	if _, err := config.LoadConfig(f.Name()); err == nil {
		t.Fatalf("expected YAML decode error, got nil")
	}
}
