package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level projectlens configuration.
type Config struct {
	ProjectRoot  string    `mapstructure:"project_root"`
	ReportPath   string    `mapstructure:"report_path"`
	ReportFormat string    `mapstructure:"report_format"`
	ProfileFile  string    `mapstructure:"profile_file"`
	MaxFileBytes int64     `mapstructure:"max_file_bytes"`
	Concurrency  int       `mapstructure:"concurrency"`
	Analytics    Analytics `mapstructure:"analytics"`
	History      History   `mapstructure:"history"`
	Output       Output    `mapstructure:"output"`

	// EnvFile is an optional dotenv file holding credentials.
	EnvFile string `mapstructure:"env_file"`
}

// Analytics configures the strategic analytics chain.
type Analytics struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Operation     string        `mapstructure:"operation"`

	// APIKey is never read from the config file, only from the environment
	// or EnvFile.
	APIKey string `mapstructure:"-"`
}

// Remote reports whether the remote provider has everything it needs.
func (a Analytics) Remote() bool {
	return a.Enabled && strings.TrimSpace(a.Endpoint) != "" && strings.TrimSpace(a.APIKey) != ""
}

// History configures the local run history.
type History struct {
	Enabled bool `mapstructure:"enabled"`

	// Path overrides the database location.
	Path string `mapstructure:"path"`

	// Keep bounds the number of runs kept per project. Zero keeps all.
	Keep int `mapstructure:"keep"`
}

// Output defines output preferences.
type Output struct {
	Color     bool   `mapstructure:"color"`
	Width     int    `mapstructure:"width"`
	LogFormat string `mapstructure:"log_format"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied. Every key can also be set
// through a PROJECTLENS_ environment variable, for example
// PROJECTLENS_ANALYTICS_ENDPOINT.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("project_root", DefaultProjectRoot)
	v.SetDefault("report_path", DefaultReportPath)
	v.SetDefault("report_format", DefaultReportFormat)
	v.SetDefault("profile_file", "")
	v.SetDefault("max_file_bytes", DefaultMaxFileBytes)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("analytics.enabled", DefaultAnalytics.Enabled)
	v.SetDefault("analytics.endpoint", DefaultAnalytics.Endpoint)
	v.SetDefault("analytics.timeout", DefaultAnalytics.Timeout)
	v.SetDefault("analytics.rate_per_second", DefaultAnalytics.RatePerSecond)
	v.SetDefault("analytics.operation", DefaultAnalytics.Operation)
	v.SetDefault("history.enabled", DefaultHistory.Enabled)
	v.SetDefault("history.path", "")
	v.SetDefault("history.keep", DefaultHistory.Keep)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)
	v.SetDefault("output.log_format", DefaultOutput.LogFormat)
	v.SetDefault("env_file", "")

	v.SetEnvPrefix("PROJECTLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.ProjectRoot = expandPath(cfg.ProjectRoot)
	cfg.ProfileFile = expandPath(cfg.ProfileFile)
	cfg.EnvFile = expandPath(cfg.EnvFile)
	cfg.History.Path = expandPath(cfg.History.Path)

	key, err := loadAPIKey(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	cfg.Analytics.APIKey = key

	return &cfg, nil
}

// loadAPIKey returns the analytics API key from the environment, falling
// back to the dotenv file. A missing file or key yields "".
func loadAPIKey(envFile string) (string, error) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, nil
	}
	if envFile == "" {
		return "", nil
	}

	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading env file %s: %w", envFile, err)
	}
	return v.GetString(APIKeyEnv), nil
}

// ResolveReportPath returns the report path, joined to root when relative.
func (c *Config) ResolveReportPath(root string) string {
	p := expandPath(c.ReportPath)
	if p == "" {
		p = DefaultReportPath
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DBPath()
}

// DBPath returns the full path to the default SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
