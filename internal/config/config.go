package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return NewWithFile("")
}

// NewWithFile creates a configuration instance reading path, or the
// standard search locations when path is empty
func NewWithFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/phish-alert/")
		v.AddConfigPath("$HOME/.phish-alert")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_ALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Classifier defaults
	v.SetDefault("classifier.provider", "http")
	v.SetDefault("classifier.url_endpoint", "http://localhost:8000/predict")
	v.SetDefault("classifier.email_endpoint", "http://localhost:8000/predict_email")
	v.SetDefault("classifier.health_endpoint", "http://localhost:8000/health")
	v.SetDefault("classifier.timeout", "0s")
	v.SetDefault("classifier.max_body_size", 4096)

	// Pipeline defaults
	v.SetDefault("pipeline.reserved_schemes", []string{
		"chrome", "chrome-extension", "chrome-search", "chrome-untrusted", "devtools",
		"edge", "about", "moz-extension", "view-source", "file", "data", "javascript", "blob",
	})
	v.SetDefault("pipeline.trusted_domains", []string{"mail.google.com"})
	v.SetDefault("pipeline.persist_unknown_urls", true)
	v.SetDefault("pipeline.email_policy", "all")
	v.SetDefault("pipeline.excerpt_size", 500)

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.sqlite_path", "/data/phish_alert.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/phish_alert?parseTime=true")
	v.SetDefault("store.redis_address", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "phish-alert:")

	// Server defaults
	v.SetDefault("server.listen_address", "127.0.0.1:8787")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// SMTP intake defaults
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "127.0.0.1:10025")
	v.SetDefault("smtp.verdict_header", "X-Phish-Verdict")
	v.SetDefault("smtp.forward.enabled", false)
	v.SetDefault("smtp.forward.address", "localhost")
	v.SetDefault("smtp.forward.port", 10026)

	// Notification defaults
	v.SetDefault("notify.channels", []string{"log", "inbox"})
	v.SetDefault("notify.inbox_size", 50)
	v.SetDefault("notify.smtp.address", "localhost")
	v.SetDefault("notify.smtp.port", 25)
	v.SetDefault("notify.smtp.from", "phish-alert@localhost")
	v.SetDefault("notify.smtp.to", []string{})

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
