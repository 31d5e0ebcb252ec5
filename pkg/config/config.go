package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath    = "DUALBOT_CONFIG"
	envVKAccessToken = "VK_ACCESS_TOKEN"
	envVKGroupID     = "VK_GROUP_ID"
	envTGAccessToken = "TG_ACCESS_TOKEN"
	envAllowFrom     = "DUALBOT_ALLOW_FROM"
)

const (
	DefaultVKAPIVersion           = "5.199"
	DefaultVKAPIServer            = "https://api.vk.com"
	DefaultTelegramAPIServer      = "https://api.telegram.org"
	DefaultQueueSize              = 100
	DefaultWorkers                = 4
	DefaultRefreshIntervalSeconds = 600
	DefaultWaitSeconds            = 25
	DefaultPollLimit              = 100
	DefaultErrorBackoffMillis     = 1000
	DefaultRequestTimeoutSeconds  = 10
)

// Config is the root runtime configuration loaded from config.json or config.yaml.
//
// It is validated once at startup and treated as read-only afterwards.
type Config struct {
	VK        VKConfig       `json:"vk" yaml:"vk"`
	Telegram  TelegramConfig `json:"telegram" yaml:"telegram"`
	Webhook   *WebhookConfig `json:"webhook,omitempty" yaml:"webhook,omitempty"`
	Dispatch  DispatchConfig `json:"dispatch" yaml:"dispatch"`
	Polling   PollingConfig  `json:"polling" yaml:"polling"`
	Status    StatusConfig   `json:"status" yaml:"status"`
	AllowFrom []string       `json:"allow_from,omitempty" yaml:"allow_from,omitempty"`
	Logging   LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// VKConfig holds the community credentials used for the VK API.
type VKConfig struct {
	AccessToken           string `json:"access_token" yaml:"access_token"`
	GroupID               int64  `json:"group_id" yaml:"group_id"`
	APIVersion            string `json:"api_version" yaml:"api_version"`
	APIServer             string `json:"api_server,omitempty" yaml:"api_server,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`
}

// TelegramConfig holds the bot credentials used for the Telegram Bot API.
type TelegramConfig struct {
	Token                 string `json:"token" yaml:"token"`
	APIServer             string `json:"api_server,omitempty" yaml:"api_server,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`
}

// WebhookConfig configures push delivery. Its presence is required by webhook mode only.
type WebhookConfig struct {
	Host        string `json:"host,omitempty" yaml:"host,omitempty"`
	Port        int    `json:"port" yaml:"port"`
	CallbackURL string `json:"callback_url" yaml:"callback_url"`
	Secret      string `json:"secret" yaml:"secret"`
	Path        string `json:"path" yaml:"path"`
}

// DispatchConfig sizes the dispatch queue and worker pool.
type DispatchConfig struct {
	QueueSize int `json:"queue_size" yaml:"queue_size"`
	Workers   int `json:"workers" yaml:"workers"`
}

// PollingConfig tunes the long-poll loops.
type PollingConfig struct {
	RefreshIntervalSeconds int `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds"`
	WaitSeconds            int `json:"wait_seconds" yaml:"wait_seconds"`
	Limit                  int `json:"limit" yaml:"limit"`
	ErrorBackoffMillis     int `json:"error_backoff_ms" yaml:"error_backoff_ms"`
}

// StatusConfig configures the optional status server. A zero port disables it.
type StatusConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// RefreshInterval returns the session refresh period for long polling.
func (p PollingConfig) RefreshInterval() time.Duration {
	return time.Duration(p.RefreshIntervalSeconds) * time.Second
}

// ErrorBackoff returns the pause applied after a failed fetch.
func (p PollingConfig) ErrorBackoff() time.Duration {
	return time.Duration(p.ErrorBackoffMillis) * time.Millisecond
}

// Address returns the host:port the webhook server binds to.
func (w WebhookConfig) Address() string {
	host := strings.TrimSpace(w.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + strconv.Itoa(w.Port)
}

// RoutePrefix returns the path segment wrapped in slashes, for example "/hook".
func (w WebhookConfig) RoutePrefix() string {
	return "/" + strings.Trim(strings.TrimSpace(w.Path), "/")
}

// TelegramURL returns the public URL Telegram should push updates to.
func (w WebhookConfig) TelegramURL() string {
	return strings.TrimRight(strings.TrimSpace(w.CallbackURL), "/") + w.RoutePrefix() + "/telegram"
}

// LoadConfig resolves the config file, unmarshals it, and applies environment overrides.
//
// An explicit path wins over DUALBOT_CONFIG and the cwd-local fallbacks.
func LoadConfig(path string) (*Config, error) {
	configPath, err := findConfigPath(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate applies defaults and rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	var problems []string

	c.VK.AccessToken = strings.TrimSpace(c.VK.AccessToken)
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	if c.VK.AccessToken == "" {
		problems = append(problems, "vk.access_token is required")
	}
	if c.VK.GroupID <= 0 {
		problems = append(problems, "vk.group_id must be a positive community id")
	}
	if c.Telegram.Token == "" {
		problems = append(problems, "telegram.token is required")
	}

	if strings.TrimSpace(c.VK.APIVersion) == "" {
		c.VK.APIVersion = DefaultVKAPIVersion
	}
	if c.VK.APIServer == "" {
		c.VK.APIServer = DefaultVKAPIServer
	}
	if c.VK.RequestTimeoutSeconds <= 0 {
		c.VK.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if c.Telegram.APIServer == "" {
		c.Telegram.APIServer = DefaultTelegramAPIServer
	}
	if c.Telegram.RequestTimeoutSeconds <= 0 {
		c.Telegram.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	if c.Dispatch.QueueSize <= 0 {
		c.Dispatch.QueueSize = DefaultQueueSize
	}
	if c.Dispatch.Workers <= 0 {
		c.Dispatch.Workers = DefaultWorkers
	}

	if c.Polling.RefreshIntervalSeconds <= 0 {
		c.Polling.RefreshIntervalSeconds = DefaultRefreshIntervalSeconds
	}
	if c.Polling.WaitSeconds <= 0 {
		c.Polling.WaitSeconds = DefaultWaitSeconds
	}
	if c.Polling.Limit <= 0 || c.Polling.Limit > DefaultPollLimit {
		c.Polling.Limit = DefaultPollLimit
	}
	if c.Polling.ErrorBackoffMillis <= 0 {
		c.Polling.ErrorBackoffMillis = DefaultErrorBackoffMillis
	}

	if c.Status.Port < 0 || c.Status.Port > 65535 {
		problems = append(problems, "status.port must be between 0 and 65535")
	}

	if c.Webhook != nil {
		problems = append(problems, c.Webhook.problems()...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}

	return nil
}

// RequireWebhook validates the config and additionally demands a webhook block.
func (c *Config) RequireWebhook() error {
	if c != nil && c.Webhook == nil {
		return errors.New("invalid config: webhook block is required in webhook mode")
	}
	return c.Validate()
}

func (w *WebhookConfig) problems() []string {
	var problems []string

	if w.Port <= 0 || w.Port > 65535 {
		problems = append(problems, "webhook.port must be between 1 and 65535")
	}

	w.Secret = strings.TrimSpace(w.Secret)
	if w.Secret == "" {
		problems = append(problems, "webhook.secret is required")
	}

	w.Path = strings.Trim(strings.TrimSpace(w.Path), "/")
	if w.Path == "" {
		problems = append(problems, "webhook.path is required")
	}

	parsed, err := url.Parse(strings.TrimSpace(w.CallbackURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		problems = append(problems, "webhook.callback_url must be an absolute http(s) URL")
	}

	return problems
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if token := strings.TrimSpace(os.Getenv(envVKAccessToken)); token != "" {
		cfg.VK.AccessToken = token
	}

	if rawGroupID := strings.TrimSpace(os.Getenv(envVKGroupID)); rawGroupID != "" {
		groupID, err := strconv.ParseInt(rawGroupID, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envVKGroupID, err)
		}
		cfg.VK.GroupID = groupID
	}

	if token := strings.TrimSpace(os.Getenv(envTGAccessToken)); token != "" {
		cfg.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envAllowFrom)); rawAllowFrom != "" {
		cfg.AllowFrom = parseCSV(rawAllowFrom)
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is the explicit path, then DUALBOT_CONFIG, then cwd-local fallback paths.
func findConfigPath(explicit string) (string, error) {
	if value := strings.TrimSpace(explicit); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("config path does not point to a file: %s", value)
	}

	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config file not found (checked %s)", strings.Join(candidates, ", "))
}
