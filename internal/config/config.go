package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for modeld.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Providers  ProvidersConfig  `koanf:"providers"`
	MarketData MarketDataConfig `koanf:"marketdata"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Output     OutputConfig     `koanf:"output"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ProvidersConfig holds reasoning-provider settings. Providers are tried in
// cost order: Ollama (local), then Gemini, then Groq. A provider with no
// usable configuration is skipped at startup rather than failing requests.
type ProvidersConfig struct {
	Timeout Duration     `koanf:"timeout"`
	Ollama  OllamaConfig `koanf:"ollama"`
	Gemini  GeminiConfig `koanf:"gemini"`
	Groq    GroqConfig   `koanf:"groq"`
}

// OllamaConfig configures the local Ollama provider.
type OllamaConfig struct {
	Enabled   bool   `koanf:"enabled"`
	ServerURL string `koanf:"server_url"`
	Model     string `koanf:"model"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey  Secret `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// GroqConfig configures the Groq provider (OpenAI wire format).
type GroqConfig struct {
	APIKey  Secret `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// MarketDataConfig configures the financial-data fetcher.
type MarketDataConfig struct {
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// PipelineConfig configures pipeline behavior.
type PipelineConfig struct {
	// AutoConfirm skips the awaiting_confirmation wait state and builds
	// immediately once a recommendation exists.
	AutoConfirm bool `koanf:"auto_confirm"`

	// StatusLogWindow is how many trailing log entries the status endpoint
	// returns.
	StatusLogWindow int `koanf:"status_log_window"`
}

// OutputConfig configures artifact output.
type OutputConfig struct {
	Dir string `koanf:"dir"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Providers.Timeout == 0 {
		cfg.Providers.Timeout = Duration(30 * time.Second)
	}
	if cfg.Providers.Ollama.ServerURL == "" {
		cfg.Providers.Ollama.ServerURL = "http://localhost:11434"
	}
	if cfg.Providers.Ollama.Model == "" {
		cfg.Providers.Ollama.Model = "llama3.1"
	}
	if cfg.Providers.Gemini.BaseURL == "" {
		cfg.Providers.Gemini.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Providers.Gemini.Model == "" {
		cfg.Providers.Gemini.Model = "gemini-1.5-flash"
	}
	if cfg.Providers.Groq.BaseURL == "" {
		cfg.Providers.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Providers.Groq.Model == "" {
		cfg.Providers.Groq.Model = "llama-3.1-70b-versatile"
	}

	if cfg.MarketData.BaseURL == "" {
		cfg.MarketData.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.MarketData.Timeout == 0 {
		cfg.MarketData.Timeout = Duration(15 * time.Second)
	}

	if cfg.Pipeline.StatusLogWindow == 0 {
		cfg.Pipeline.StatusLogWindow = 20
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "outputs"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Providers.Timeout.Duration() <= 0 {
		return fmt.Errorf("provider timeout must be > 0")
	}
	if c.MarketData.Timeout.Duration() <= 0 {
		return fmt.Errorf("marketdata timeout must be > 0")
	}
	if c.Pipeline.StatusLogWindow < 1 {
		return fmt.Errorf("status log window must be >= 1, got %d", c.Pipeline.StatusLogWindow)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	return nil
}
