package openai

import "time"

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
)

// Config configures the OpenAI-backed oracle.
type Config struct {
	// APIKey authenticates requests. Required.
	APIKey string `yaml:"api_key"`

	// BaseURL allows pointing at a compatible endpoint (proxy, Azure,
	// local server). Defaults to the public API.
	BaseURL string `yaml:"base_url"`

	// Model is the chat model identifier.
	Model string `yaml:"model"`

	// Temperature, if set, overrides the model default.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps the completion length. Zero means the model default.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds each API call.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}
