package config

import (
	"os"
	"path/filepath"
)

type StorageConfig interface {
	GetStorageDriver() string
	GetStoragePath() string
	GetStorageKey() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageDriver returns one of "file", "redis" or "memory"
func (Storage) GetStorageDriver() string {
	return GetEnv("STORAGE_DRIVER", "file")
}

func (Storage) GetStoragePath() string {
	if p := os.Getenv("STORAGE_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".airdrop", "session.json")
	}
	return filepath.Join(home, ".airdrop", "session.json")
}

// GetStorageKey returns the hex encoded 32 byte key used to seal the file
// store. Empty means the file is stored in plain JSON.
func (Storage) GetStorageKey() string {
	return GetEnv("STORAGE_KEY", "")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetInt("REDIS_DB", 0)
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "airdrop:")
}
