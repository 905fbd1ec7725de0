package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

// DefaultConfigFile is looked up in the working directory when --config is not given.
const DefaultConfigFile = "cx-fetcher.yml"

// DefaultURLTemplate downloads a CRX from the Chrome Web Store.
const DefaultURLTemplate = "https://clients2.google.com/service/update2/crx?response=redirect&prodversion={prodversion}&acceptformat=crx2,crx3&x=id%3D{id}%26uc"

// GlobalConfig holds the tool-wide settings loaded from cx-fetcher.yml.
type GlobalConfig struct {
	Workers    int              `yaml:"workers"`
	CacheDir   string           `yaml:"cache_dir"`
	StorageDir string           `yaml:"storage_dir"`
	TempDir    string           `yaml:"temp_dir"`
	ReportDir  string           `yaml:"report_dir"`
	Logging    LoggingConfig    `yaml:"logging"`
	Download   DownloadConfig   `yaml:"download"`
	AutoUpdate AutoUpdateConfig `yaml:"auto_update"`
	Verify     VerifyConfig     `yaml:"verify"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DownloadConfig controls how artifacts and update manifests are fetched.
type DownloadConfig struct {
	URLTemplate     string `yaml:"url_template"`
	ProdVersion     string `yaml:"prod_version"`
	Timeout         string `yaml:"timeout"`
	FetchSignatures bool   `yaml:"fetch_signatures"`
	Progress        bool   `yaml:"progress"`
}

// AutoUpdateConfig controls the periodic update loop of the watch command.
type AutoUpdateConfig struct {
	Interval string `yaml:"interval"`
}

// VerifyConfig enables OpenPGP verification of downloaded artifacts.
type VerifyConfig struct {
	Keyring string `yaml:"keyring"`
}

var configSchema = jsonschema.MustCompileString("cx-fetcher.schema.json", schemaJSON)

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *GlobalConfig {
	c := &GlobalConfig{}
	c.applyDefaults()
	return c
}

// LoadConfig reads path, validates it against the config schema and fills
// unset fields with defaults. A missing default file yields DefaultConfig.
func LoadConfig(path string) (*GlobalConfig, error) {
	if path == "" {
		path = DefaultConfigFile
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (*GlobalConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return DefaultConfig(), nil
	}

	if err := validateConfig(data); err != nil {
		return nil, err
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	cfg.applyDefaults()

	if _, err := cfg.downloadTimeout(); err != nil {
		return nil, err
	}
	if _, err := cfg.autoUpdateInterval(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateConfig converts the YAML document to JSON and checks it against the schema.
func validateConfig(data []byte) error {
	jsonData, err := k8syaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("converting YAML to JSON: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decoding config JSON: %w", err)
	}

	if err := configSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (c *GlobalConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache"
	}
	if c.StorageDir == "" {
		c.StorageDir = "./extensions"
	}
	if c.ReportDir == "" {
		c.ReportDir = "builds"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Download.URLTemplate == "" {
		c.Download.URLTemplate = DefaultURLTemplate
	}
	if c.Download.ProdVersion == "" {
		c.Download.ProdVersion = "120.0"
	}
	if c.Download.Timeout == "" {
		c.Download.Timeout = "5m"
	}
	if c.AutoUpdate.Interval == "" {
		c.AutoUpdate.Interval = "6h"
	}
}

func (c *GlobalConfig) downloadTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Download.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid download.timeout %q", c.Download.Timeout)
	}
	return d, nil
}

func (c *GlobalConfig) autoUpdateInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.AutoUpdate.Interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid auto_update.interval %q", c.AutoUpdate.Interval)
	}
	return d, nil
}
