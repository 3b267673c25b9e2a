package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envVar         = "ENV"
	logLevelVar    = "LOG_LEVEL"
	appNameVar     = "APP_NAME"
	appURLVar      = "APP_URL"
	apiURLVar      = "API_URL"
	httpTimeoutVar = "HTTP_TIMEOUT"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "CryptoAirdrop")
}

// GetAppURL returns the public frontend URL browsers are sent back to once an
// OAuth flow resolves (e.g., "https://airdrop.example.com").
func (EnvVars) GetAppURL() string {
	return strings.TrimSuffix(GetEnv(appURLVar, "http://localhost:3000"), "/")
}

type Backend struct{}

var _ BackendConfig = Backend{}

// GetAPIURL returns the backend base URL without a trailing slash
func (Backend) GetAPIURL() string {
	return strings.TrimSuffix(GetEnv(apiURLVar, "http://localhost:8000"), "/")
}

func (Backend) GetHTTPTimeout() time.Duration {
	return GetDuration(httpTimeoutVar, 15*time.Second)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses envVar as a time.Duration ("8s", "250ms"). A bare integer
// is read as seconds. Invalid values fall back to defaultValue.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
