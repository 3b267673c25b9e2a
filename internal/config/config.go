package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	BackendConfig
	OAuthConfig
	StorageConfig
}

type EnvConfig interface {
	GetEnv() string
	GetLogLevel() string
	GetAppName() string
	GetAppURL() string
}

type BackendConfig interface {
	GetAPIURL() string
	GetHTTPTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Backend
	OAuth
	Storage
}

func New() Config {
	return mainConfig{}
}

// LoadDotEnv loads environment variables from an env file. Variables already
// present in the environment are not overwritten.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("[config LoadDotEnv] %s: %w", path, err)
	}
	return nil
}
