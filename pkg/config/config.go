package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"

	DefaultGreeting = "Hi, how can I be of assistance?"
	DefaultEndpoint = "http://localhost:3000/api/chat"
)

// Config represents the application configuration
type Config struct {
	Endpoint              string       `json:"endpoint"`
	Theme                 string       `json:"theme"`
	Greeting              string       `json:"greeting"`
	RequestTimeoutSeconds int          `json:"request_timeout_seconds"` // 0 disables the timeout
	LogLevel              string       `json:"log_level"`
	LogFormat             string       `json:"log_format"`
	LogFile               string       `json:"log_file"`
	Server                ServerConfig `json:"server"`
}

// ServerConfig configures the development /api/chat endpoint.
type ServerConfig struct {
	Addr      string          `json:"addr"`
	Provider  string          `json:"provider"`
	Providers ProvidersConfig `json:"providers"`
}

// ProvidersConfig holds per-backend settings for the development endpoint.
type ProvidersConfig struct {
	Google GoogleConfig `json:"google"`
	OpenAI OpenAIConfig `json:"openai"`
}

// GoogleConfig holds the Gemini API configuration
type GoogleConfig struct {
	APIKey            string  `json:"api_key"`
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	APITimeoutSeconds int     `json:"api_timeout_seconds"`
}

// OpenAIConfig holds the configuration for any OpenAI-compatible API
type OpenAIConfig struct {
	APIKey            string  `json:"api_key"`
	APIURL            string  `json:"api_url"`
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	APITimeoutSeconds int     `json:"api_timeout_seconds"`
}

// Default returns a configuration with default values
func Default() Config {
	return Config{
		Endpoint:              DefaultEndpoint,
		Theme:                 ThemeDark,
		Greeting:              DefaultGreeting,
		RequestTimeoutSeconds: 0,
		LogLevel:              "info",
		LogFormat:             "json",
		LogFile:               "",
		Server: ServerConfig{
			Addr:     ":3000",
			Provider: "google",
			Providers: ProvidersConfig{
				Google: GoogleConfig{
					Model:             "gemini-2.5-flash",
					Temperature:       0.7,
					MaxTokens:         2048,
					APITimeoutSeconds: 60,
				},
				OpenAI: OpenAIConfig{
					APIURL:            "https://api.openai.com/v1",
					Model:             "gpt-4o-mini",
					Temperature:       0.7,
					MaxTokens:         2048,
					APITimeoutSeconds: 60,
				},
			},
		},
	}
}

// Load loads configuration from the specified path.
// If the file doesn't exist, creates one with default values.
// Keys missing from an existing file keep their default values.
func Load(configPath string) (Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return Config{}, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(configPath, cfg); err != nil {
				return Config{}, fmt.Errorf("failed to create default config: %w", err)
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the specified path
func Save(configPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with environment variables.
func ApplyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("NIGHTSHADE_ENDPOINT")); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		cfg.Server.Providers.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Server.Providers.OpenAI.APIKey = v
	}
	return cfg
}

// Validate checks the client-side settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an http(s) URL, got: %q", c.Endpoint)
	}

	switch c.Theme {
	case ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("theme must be %q or %q, got: %q", ThemeDark, ThemeLight, c.Theme)
	}

	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("request_timeout_seconds must not be negative, got: %d", c.RequestTimeoutSeconds)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}

	return nil
}

// ValidateServer checks the development endpoint settings.
func (c Config) ValidateServer() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if strings.TrimSpace(c.Server.Provider) == "" {
		return fmt.Errorf("server.provider is required")
	}

	google := c.Server.Providers.Google
	if google.Temperature < 0 || google.Temperature > 2 {
		return fmt.Errorf("google temperature must be between 0 and 2, got: %f", google.Temperature)
	}
	openai := c.Server.Providers.OpenAI
	if openai.Temperature < 0 || openai.Temperature > 2 {
		return fmt.Errorf("openai temperature must be between 0 and 2, got: %f", openai.Temperature)
	}
	if openai.APIURL != "" {
		if _, err := url.ParseRequestURI(openai.APIURL); err != nil {
			return fmt.Errorf("openai api_url is invalid: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".nightshade", "config.json")
	}
	return filepath.Join(homeDir, ".nightshade", "config.json")
}
