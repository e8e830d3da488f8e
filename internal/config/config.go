// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/complaints-proxy/config.toml",
	"configs/config.toml",
}

// reservedRoutes are paths served by the proxy itself; the metrics endpoint must not shadow them.
var reservedRoutes = []string{
	"/send-email", "/map", "/info", "/openai", "/anthropic", "/firebase",
	"/healthz", "/proxy/status",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config       string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host         string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port         int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BrevoAPIKey  string `kong:"name='brevo-api-key',help='Brevo API key (overrides config).',env='BREVO_API_KEY'"`
	ResendAPIKey string `kong:"name='resend-api-key',help='Resend API key (overrides config).',env='RESEND_API_KEY'"`
	FirebaseURL  string `kong:"name='firebase-url',help='Firebase Realtime Database URL (overrides config).',env='FIREBASE_URL'"`
	LogLevel     string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Email    EmailConfig    `toml:"email"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds the relay targets and connection settings.
type UpstreamConfig struct {
	AnthropicURL    string `toml:"anthropic_url"`
	OpenAIURL       string `toml:"openai_url"`
	FirebaseURL     string `toml:"firebase_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// EmailConfig holds the transactional email providers, tried in order: Brevo, then Resend.
type EmailConfig struct {
	FromName           string         `toml:"from_name"`
	FromAddress        string         `toml:"from_address"`
	TimeoutSeconds     int            `toml:"timeout_seconds"`
	BreakerFailures    int            `toml:"breaker_failures"`
	BreakerOpenSeconds int            `toml:"breaker_open_seconds"`
	Brevo              ProviderConfig `toml:"brevo"`
	Resend             ProviderConfig `toml:"resend"`
}

// ProviderConfig holds one email provider's credentials. An empty APIKey disables the provider.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/complaints-proxy/config.toml then configs/config.toml. If neither
// exists the built-in defaults are used, so the proxy can run from
// environment variables alone.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BrevoAPIKey != "" {
		c.Email.Brevo.APIKey = cli.BrevoAPIKey
	}
	if cli.ResendAPIKey != "" {
		c.Email.Resend.APIKey = cli.ResendAPIKey
	}
	if cli.FirebaseURL != "" {
		c.Upstream.FirebaseURL = cli.FirebaseURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	for _, p := range []ProviderConfig{c.Email.Brevo, c.Email.Resend} {
		if p.APIKey == "YOUR_API_KEY_HERE" {
			return fmt.Errorf("email provider api_key contains placeholder value; set a real key or leave empty to disable the provider")
		}
	}

	// Upstream URLs must be HTTPS. The Firebase URL is optional.
	upstreams := []struct {
		name     string
		value    string
		required bool
	}{
		{"upstream.anthropic_url", c.Upstream.AnthropicURL, true},
		{"upstream.openai_url", c.Upstream.OpenAIURL, true},
		{"upstream.firebase_url", c.Upstream.FirebaseURL, false},
		{"email.brevo.base_url", c.Email.Brevo.BaseURL, true},
		{"email.resend.base_url", c.Email.Resend.BaseURL, true},
	}
	for _, u := range upstreams {
		if u.value == "" {
			if u.required {
				return fmt.Errorf("%s is required", u.name)
			}
			continue
		}
		if err := requireHTTPS(u.name, u.value); err != nil {
			return err
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Email.TimeoutSeconds < 0 {
		return fmt.Errorf("email.timeout_seconds must be non-negative; got %d", c.Email.TimeoutSeconds)
	}
	if c.Email.BreakerFailures < 0 || c.Email.BreakerOpenSeconds < 0 {
		return fmt.Errorf("email.breaker_failures and email.breaker_open_seconds must be non-negative")
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if !strings.Contains(c.Email.FromAddress, "@") {
		return fmt.Errorf("email.from_address must be an email address; got %q", c.Email.FromAddress)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func requireHTTPS(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute HTTPS URL; got %q", name, raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.AnthropicURL == "" {
		c.Upstream.AnthropicURL = "https://api.anthropic.com"
	}
	if c.Upstream.OpenAIURL == "" {
		c.Upstream.OpenAIURL = "https://api.openai.com"
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Civic Complaints"
	}
	if c.Email.FromAddress == "" {
		c.Email.FromAddress = "noreply@civic-complaints.app"
	}
	if c.Email.TimeoutSeconds == 0 {
		c.Email.TimeoutSeconds = 10
	}
	if c.Email.BreakerFailures == 0 {
		c.Email.BreakerFailures = 5
	}
	if c.Email.BreakerOpenSeconds == 0 {
		c.Email.BreakerOpenSeconds = 60
	}
	if c.Email.Brevo.BaseURL == "" {
		c.Email.Brevo.BaseURL = "https://api.brevo.com"
	}
	if c.Email.Resend.BaseURL == "" {
		c.Email.Resend.BaseURL = "https://api.resend.com"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
// The file may hold email provider API keys.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

// FilePath returns the config file that was loaded, or "" when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}
