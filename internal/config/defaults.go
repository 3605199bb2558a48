// Package config provides configuration loading and defaults for projectlens.
package config

import "time"

// DefaultConfigDir is the default location for projectlens configuration.
const DefaultConfigDir = "~/.config/projectlens"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultDBName is the filename for the run history database.
const DefaultDBName = "history.db"

// DefaultProjectRoot is analyzed when no root is given.
const DefaultProjectRoot = "."

// DefaultReportPath is resolved against the project root when relative.
const DefaultReportPath = "projectlens-report.json"

// DefaultReportFormat is used when the report path has no known extension.
const DefaultReportFormat = "json"

// DefaultMaxFileBytes caps how much of each artifact is read.
const DefaultMaxFileBytes int64 = 1 << 20

// DefaultConcurrency bounds the number of subsystem pipelines run at once.
const DefaultConcurrency = 4

// APIKeyEnv names the environment variable holding the analytics API key.
const APIKeyEnv = "PROJECTLENS_ANALYTICS_API_KEY"

// DefaultAnalytics holds the default analytics settings. The remote provider
// stays disabled until an endpoint and key are configured.
var DefaultAnalytics = Analytics{
	Enabled:       true,
	Endpoint:      "",
	Timeout:       15 * time.Second,
	RatePerSecond: 2,
	Operation:     "comprehensive",
}

// DefaultHistory holds the default run history settings.
var DefaultHistory = History{
	Enabled: true,
	Keep:    200,
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color:     true,
	Width:     80,
	LogFormat: "json",
}
