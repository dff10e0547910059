package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// insecureJWTSecret is the development default; Validate refuses it outside development.
const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	LogLevel      string        `yaml:"log_level"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	Workers       WorkerConfig  `yaml:"workers"`
}

// RateLimit bounds requests per client IP on the open auth endpoints.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type WorkerConfig struct {
	Count int `yaml:"count"`
}

// LoadConfig builds the configuration from defaults, an optional .env file,
// SKILLSWAP_* environment variables and finally the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg := &Config{
		Addr:          getEnv("SKILLSWAP_ADDR", ":8080"),
		JWTSecret:     getEnv("SKILLSWAP_JWT_SECRET", insecureJWTSecret),
		APITimeout:    getEnvDuration("SKILLSWAP_TIMEOUT", 15*time.Second),
		DatabasePath:  getEnv("SKILLSWAP_DATABASE_PATH", "skillswap.db"),
		TokenDuration: getEnvDuration("SKILLSWAP_TOKEN_DURATION", 7*24*time.Hour),
		BcryptCost:    getEnvInt("SKILLSWAP_BCRYPT_COST", 12),
		LogLevel:      getEnv("SKILLSWAP_LOG_LEVEL", "info"),
		RateLimit: RateLimit{
			Requests: getEnvInt("SKILLSWAP_RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("SKILLSWAP_RATE_LIMIT_WINDOW", time.Minute),
		},
		Workers: WorkerConfig{
			Count: getEnvInt("SKILLSWAP_WORKERS", 2),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.JWTSecret == insecureJWTSecret && !IsDevelopment() {
		errs = append(errs, errors.New("jwt_secret uses the insecure default; set SKILLSWAP_JWT_SECRET"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token_duration must be positive"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt_cost %d out of range [4,31]", c.BcryptCost))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit requests and window must be positive"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether SKILLSWAP_ENV selects the development environment.
func IsDevelopment() bool {
	env := os.Getenv("SKILLSWAP_ENV")
	return env == "development" || env == "dev"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}

	return def
}
