package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// Workers returns the number of concurrent workers
func (c *ConfigHelpers) Workers() int {
	return c.config.Workers
}

// CacheDir returns the absolute path to the download cache directory
func (c *ConfigHelpers) CacheDir() (string, error) {
	return filepath.Abs(c.config.CacheDir)
}

// StorageDir returns the absolute path to the unpacked extensions directory
func (c *ConfigHelpers) StorageDir() (string, error) {
	return filepath.Abs(c.config.StorageDir)
}

// TempDir returns the temporary directory path
func (c *ConfigHelpers) TempDir() string {
	if c.config.TempDir == "" {
		return os.TempDir()
	}
	return c.config.TempDir
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// DownloadTimeout returns the per-request timeout for downloads
func (c *ConfigHelpers) DownloadTimeout() time.Duration {
	d, _ := c.config.downloadTimeout()
	return d
}

// AutoUpdateInterval returns the period of the watch loop
func (c *ConfigHelpers) AutoUpdateInterval() time.Duration {
	d, _ := c.config.autoUpdateInterval()
	return d
}

// GetConfig returns the underlying global config (for advanced usage)
func (c *ConfigHelpers) GetConfig() *GlobalConfig {
	return c.config
}

// CreateCacheDir ensures the cache directory exists
func (c *ConfigHelpers) CreateCacheDir() (string, error) {
	cacheDir, err := c.CacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return cacheDir, createDirIfNotExists(cacheDir)
}

// CreateStorageDir ensures the storage directory exists
func (c *ConfigHelpers) CreateStorageDir() (string, error) {
	storageDir, err := c.StorageDir()
	if err != nil {
		return "", fmt.Errorf("resolving storage directory: %w", err)
	}
	return storageDir, createDirIfNotExists(storageDir)
}

// CreateTempDir ensures a temp subdirectory exists
func (c *ConfigHelpers) CreateTempDir(subdir string) (string, error) {
	tempDir := filepath.Join(c.TempDir(), subdir)
	err := createDirIfNotExists(tempDir)
	return tempDir, err
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
