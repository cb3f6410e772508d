package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

type Config struct {
	Port         string
	LogLevel     string
	LogFormat    string
	Environment  string
	SlashCommand string

	SlackBotToken           string
	SlackAppToken           string
	SlackWorkspaceSubdomain string
	SlackEventTimeout       time.Duration

	VectaraAppID       string
	VectaraAppSecret   string
	VectaraCustomerID  string
	VectaraCorpusID    string
	VectaraAuthURL     string
	VectaraServingURL  string
	VectaraIndexingURL string
	VectaraRerankerID  string
	VectaraUseReranker bool
	VectaraTimeout     time.Duration
}

// Load reads the configuration from the environment. Production defaults
// to JSON logs; other environments log text.
func Load() *Config {
	cfg := &Config{
		Port:         getEnvOrDefault("PORT", "8080"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "INFO"),
		LogFormat:    os.Getenv("LOG_FORMAT"),
		Environment:  getEnvOrDefault("ENVIRONMENT", "development"),
		SlashCommand: getEnvOrDefault("SLASH_COMMAND", "/vectara"),

		SlackBotToken:           os.Getenv("SLACK_BOT_TOKEN"),
		SlackAppToken:           os.Getenv("SLACK_APP_TOKEN"),
		SlackWorkspaceSubdomain: os.Getenv("SLACK_WORKSPACE_SUBDOMAIN"),
		SlackEventTimeout:       getDurationOrDefault("SLACK_EVENT_TIMEOUT", 30*time.Second),

		VectaraAppID:       os.Getenv("VECTARA_APP_ID"),
		VectaraAppSecret:   os.Getenv("VECTARA_APP_SECRET"),
		VectaraCustomerID:  os.Getenv("VECTARA_CUSTOMER_ID"),
		VectaraCorpusID:    os.Getenv("VECTARA_CORPUS_ID"),
		VectaraAuthURL:     os.Getenv("VECTARA_AUTH_URL"),
		VectaraServingURL:  os.Getenv("VECTARA_SERVING_URL"),
		VectaraIndexingURL: os.Getenv("VECTARA_INDEXING_URL"),
		VectaraRerankerID:  os.Getenv("VECTARA_RERANKER_ID"),
		VectaraUseReranker: strings.EqualFold(os.Getenv("VECTARA_USE_RERANKER"), "true"),
		VectaraTimeout:     getDurationOrDefault("VECTARA_TIMEOUT", 15*time.Second),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}
	return cfg
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	required := map[string]string{
		"SLACK_BOT_TOKEN":           c.SlackBotToken,
		"SLACK_APP_TOKEN":           c.SlackAppToken,
		"SLACK_WORKSPACE_SUBDOMAIN": c.SlackWorkspaceSubdomain,
		"VECTARA_APP_ID":            c.VectaraAppID,
		"VECTARA_APP_SECRET":        c.VectaraAppSecret,
		"VECTARA_CUSTOMER_ID":       c.VectaraCustomerID,
		"VECTARA_CORPUS_ID":         c.VectaraCorpusID,
	}
	for _, name := range []string{
		"SLACK_BOT_TOKEN", "SLACK_APP_TOKEN", "SLACK_WORKSPACE_SUBDOMAIN",
		"VECTARA_APP_ID", "VECTARA_APP_SECRET", "VECTARA_CUSTOMER_ID", "VECTARA_CORPUS_ID",
	} {
		if required[name] == "" {
			result = multierror.Append(result, fmt.Errorf("%s is required", name))
		}
	}

	if c.SlackBotToken != "" && !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		result = multierror.Append(result, fmt.Errorf("SLACK_BOT_TOKEN must start with 'xoxb-'"))
	}

	if c.SlackAppToken != "" && !strings.HasPrefix(c.SlackAppToken, "xapp-") {
		result = multierror.Append(result, fmt.Errorf("SLACK_APP_TOKEN must start with 'xapp-'"))
	}

	for name, value := range map[string]string{
		"VECTARA_CUSTOMER_ID": c.VectaraCustomerID,
		"VECTARA_CORPUS_ID":   c.VectaraCorpusID,
		"VECTARA_RERANKER_ID": c.VectaraRerankerID,
	} {
		if value == "" {
			continue
		}
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s must be an integer, got %q", name, value))
		}
	}

	if c.VectaraTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("VECTARA_TIMEOUT must be greater than 0"))
	}

	if c.SlackEventTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("SLACK_EVENT_TIMEOUT must be greater than 0"))
	}

	if !strings.HasPrefix(c.SlashCommand, "/") {
		result = multierror.Append(result, fmt.Errorf("SLASH_COMMAND must start with '/', got %q", c.SlashCommand))
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if !contains(validLogLevels, strings.ToUpper(c.LogLevel)) {
		result = multierror.Append(result, fmt.Errorf("LOG_LEVEL must be one of: DEBUG, INFO, WARN, ERROR"))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		result = multierror.Append(result, fmt.Errorf("LOG_FORMAT must be one of: text, json"))
	}

	return result.ErrorOrNil()
}

// CustomerID is the numeric VECTARA_CUSTOMER_ID. Only valid after Validate.
func (c *Config) CustomerID() int64 {
	id, _ := strconv.ParseInt(c.VectaraCustomerID, 10, 64)
	return id
}

// CorpusID is the numeric VECTARA_CORPUS_ID. Only valid after Validate.
func (c *Config) CorpusID() int64 {
	id, _ := strconv.ParseInt(c.VectaraCorpusID, 10, 64)
	return id
}

// RerankerID is the numeric VECTARA_RERANKER_ID, zero when unset.
func (c *Config) RerankerID() int64 {
	id, _ := strconv.ParseInt(c.VectaraRerankerID, 10, 64)
	return id
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationOrDefault accepts Go durations ("15s") or whole seconds ("15").
// Unparseable values yield zero so that Validate reports them.
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
