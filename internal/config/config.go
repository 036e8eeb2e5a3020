package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/spf13/viper"
)

const (
	appDirName     = ".ghupdater"
	configFileName = "config.yaml"
	envPrefix      = "GHUPDATER"
)

// Config holds all application configuration
type Config struct {
	// General settings
	Theme    string `mapstructure:"theme"`
	LogLevel string `mapstructure:"log_level"`

	// GitHub API settings
	GitHub GitHubConfig `mapstructure:"github"`

	// Download worker settings
	Download DownloadConfig `mapstructure:"download"`

	// Storage settings
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics settings
	Metrics MetricsConfig `mapstructure:"metrics"`

	v    *viper.Viper
	path string
}

// GitHubConfig holds release query configuration
type GitHubConfig struct {
	APIURL         string `mapstructure:"api_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DownloadConfig holds download worker configuration
type DownloadConfig struct {
	ChunkSize          int    `mapstructure:"chunk_size"`
	ProgressIntervalMS int    `mapstructure:"progress_interval_ms"`
	TempDir            string `mapstructure:"temp_dir"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	RepositoriesFile string `mapstructure:"repositories_file"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from ~/.ghupdater, falling back to ./.ghupdater
// when the home directory is not writable
func Load() (*Config, error) {
	homeDir, _ := os.UserHomeDir()
	primaryDir := ""
	if homeDir != "" {
		primaryDir = filepath.Join(homeDir, appDirName)
	}

	configDir := primaryDir
	if configDir == "" || os.MkdirAll(configDir, 0755) != nil {
		_ = os.MkdirAll(appDirName, 0755)
		configDir = appDirName
	}
	return LoadFrom(configDir)
}

// LoadFrom loads configuration from config.yaml in configDir, creating the
// file with defaults when it does not exist
func LoadFrom(configDir string) (*Config, error) {
	configFile := filepath.Join(configDir, configFileName)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	setDefaults(v, configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		// Best-effort; defaults apply when the file cannot be written
		_ = createDefaultConfig(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
			}
		}
	}

	config := &Config{v: v, path: configFile}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper, configDir string) {
	// General defaults
	v.SetDefault("theme", "dark")
	v.SetDefault("log_level", "info")

	// GitHub defaults
	v.SetDefault("github.api_url", envy.Get("GITHUB_API_URL", "https://api.github.com/"))
	v.SetDefault("github.timeout_seconds", 30)

	// Download defaults
	v.SetDefault("download.chunk_size", 8192)
	v.SetDefault("download.progress_interval_ms", 100)
	v.SetDefault("download.temp_dir", "")
	v.SetDefault("download.http_timeout_seconds", 0)

	// Storage defaults
	v.SetDefault("storage.repositories_file", filepath.Join(configDir, "repositories.json"))

	// Metrics are off unless an address is given
	v.SetDefault("metrics.addr", "")
}

// createDefaultConfig creates a default configuration file
func createDefaultConfig(configFile string) error {
	defaultConfig := `# ghupdater configuration

# General Settings
theme: dark        # light or dark
log_level: info

# GitHub API
github:
  timeout_seconds: 30

# Download worker
download:
  chunk_size: 8192
  progress_interval_ms: 100
  http_timeout_seconds: 0   # 0 keeps the transport defaults

# Metrics (Prometheus), e.g. ":9090"
metrics:
  addr: ""
`
	return os.WriteFile(configFile, []byte(defaultConfig), 0644)
}

// Path returns the config file in use
func (c *Config) Path() string {
	return c.path
}

// ProgressInterval returns the worker's progress rate limit
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Download.ProgressIntervalMS) * time.Millisecond
}

// HTTPTimeout returns the overall download timeout, zero for none
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Download.HTTPTimeoutSeconds) * time.Second
}

// APITimeout returns the timeout for release queries
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// SetTheme records the theme so it is persisted on the next Save
func (c *Config) SetTheme(name string) {
	c.Theme = name
	if c.v != nil {
		c.v.Set("theme", name)
	}
}

// Save saves the current configuration to file
func (c *Config) Save() error {
	if c.v == nil {
		return fmt.Errorf("config was not loaded from a file")
	}
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
