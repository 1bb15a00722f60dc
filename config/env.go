package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "TSKIT"

// EnvFileVar names the variable overriding the .env path.
const EnvFileVar = "TSKIT_ENV_FILE"

// Env is the process configuration read from TSKIT_* variables.
type Env struct {
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string        `envconfig:"LOG_FORMAT" default:"console"`
	Proxy     string        `envconfig:"PROXY" default:""`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"30s"`
	HTTPAddr  string        `envconfig:"HTTP_ADDR" default:"127.0.0.1:8765"`
}

// LoadEnv reads and validates the TSKIT_* environment.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, err
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &env, nil
}

// Validate checks value ranges.
func (e *Env) Validate() error {
	switch strings.ToLower(e.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("TSKIT_LOG_FORMAT must be console or json, got %q", e.LogFormat)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("TSKIT_TIMEOUT must be positive")
	}
	if strings.TrimSpace(e.HTTPAddr) == "" {
		return fmt.Errorf("TSKIT_HTTP_ADDR is required")
	}
	return nil
}

// LoadDotEnv loads variables from a .env file without overriding variables
// already set. TSKIT_ENV_FILE takes precedence over path; an empty path
// means ".env". A missing file is not an error and yields "".
func LoadDotEnv(path string) (string, error) {
	if custom := strings.TrimSpace(os.Getenv(EnvFileVar)); custom != "" {
		if err := godotenv.Load(custom); err != nil {
			return "", fmt.Errorf("loading %s=%s: %w", EnvFileVar, custom, err)
		}
		return custom, nil
	}
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("loading %s: %w", path, err)
	}
	return path, nil
}
