// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for vigil.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Server    ServerConfig    `yaml:"server"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Database  DatabaseConfig  `yaml:"database"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Search    SearchConfig    `yaml:"search"`
	Agent     AgentConfig     `yaml:"agent"`
	Trace     TraceConfig     `yaml:"trace"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Reports   ReportsConfig   `yaml:"reports"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	// Listen is the bind address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// AuthToken protects the API endpoints. Empty disables auth, which is
	// only sensible on a loopback bind.
	AuthToken string `yaml:"auth_token"`
}

// OracleConfig configures the reasoning backend.
type OracleConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DatabaseConfig locates the read-only case database.
type DatabaseConfig struct {
	// Path is the SQLite file holding the case table.
	Path string `yaml:"path"`

	// Table is the analytical table the firewall allow-list is scoped to.
	Table string `yaml:"table"`

	// MaxRows caps oracle-facing query results.
	MaxRows int `yaml:"max_rows"`
}

// ArtifactsConfig locates the chart artifact directory.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// SearchConfig configures the web search tool. An empty APIKey leaves the
// tool unregistered.
type SearchConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	MaxSteps                   int           `yaml:"max_steps"`
	OracleRetries              int           `yaml:"oracle_retries"`
	OracleTimeout              time.Duration `yaml:"oracle_timeout"`
	ExecTimeout                time.Duration `yaml:"exec_timeout"`
	ExemptToolErrorsFromBudget bool          `yaml:"exempt_tool_errors_from_budget"`
	ToolErrorRetryQuota        int           `yaml:"tool_error_retry_quota"`
	SystemPrompt               string        `yaml:"system_prompt"`

	// MaxInputChars bounds inbound request length. Zero uses the
	// guardrail default.
	MaxInputChars int `yaml:"max_input_chars"`
}

// TraceConfig configures run trace persistence.
type TraceConfig struct {
	// JSONLPath is the trace file. Empty disables file persistence.
	JSONLPath string `yaml:"jsonl_path"`

	// Buffer is the async emitter's enqueue capacity.
	Buffer int `yaml:"buffer"`
}

// TelemetryConfig configures the OTLP trace exporter. An empty endpoint
// disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// ReportsConfig configures scheduled executive reports.
type ReportsConfig struct {
	// Schedule is a cron expression. Empty disables the job.
	Schedule string `yaml:"schedule"`

	// Focus narrows scheduled reports to one area.
	Focus string `yaml:"focus"`

	// Dir is where scheduled reports are written.
	Dir string `yaml:"dir"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// Defaults fills zero fields with sensible values.
func (c *Config) Defaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Database.Table == "" {
		c.Database.Table = "srag_cases"
	}
	if c.Database.MaxRows <= 0 {
		c.Database.MaxRows = 20
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "data/plots"
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = "data/reports"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
