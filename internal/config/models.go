package config

import (
	"fmt"
	"time"
)

// ClassifierConfig represents the configuration for the classification backend
type ClassifierConfig struct {
	Provider       string
	URLEndpoint    string
	EmailEndpoint  string
	HealthEndpoint string
	Timeout        time.Duration
	MaxBodySize    int
}

// PipelineConfig represents the configuration for the classification pipeline
type PipelineConfig struct {
	ReservedSchemes    []string
	TrustedDomains     []string
	PersistUnknownURLs bool
	EmailPolicy        string
	ExcerptSize        int
}

// StoreConfig represents the configuration for the record store
type StoreConfig struct {
	Type          string
	SQLitePath    string
	MySQLDSN      string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// ServerConfig represents the configuration for the extension-facing HTTP API
type ServerConfig struct {
	ListenAddress  string
	AllowedOrigins []string
}

// SMTPConfig represents the configuration for the SMTP intake watcher
type SMTPConfig struct {
	Enabled        bool
	ListenAddress  string
	VerdictHeader  string
	ForwardEnabled bool
	ForwardAddress string
	ForwardPort    int
}

// NotifyConfig represents the configuration for notification channels
type NotifyConfig struct {
	Channels    []string
	InboxSize   int
	SMTPAddress string
	SMTPPort    int
	SMTPFrom    string
	SMTPTo      []string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() (ClassifierConfig, error) {
	timeout, err := c.GetDuration("classifier.timeout")
	if err != nil {
		return ClassifierConfig{}, fmt.Errorf("invalid classifier timeout: %w", err)
	}
	return ClassifierConfig{
		Provider:       c.GetString("classifier.provider"),
		URLEndpoint:    c.GetString("classifier.url_endpoint"),
		EmailEndpoint:  c.GetString("classifier.email_endpoint"),
		HealthEndpoint: c.GetString("classifier.health_endpoint"),
		Timeout:        timeout,
		MaxBodySize:    c.GetInt("classifier.max_body_size"),
	}, nil
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() PipelineConfig {
	return PipelineConfig{
		ReservedSchemes:    c.GetStringSlice("pipeline.reserved_schemes"),
		TrustedDomains:     c.GetStringSlice("pipeline.trusted_domains"),
		PersistUnknownURLs: c.GetBool("pipeline.persist_unknown_urls"),
		EmailPolicy:        c.GetString("pipeline.email_policy"),
		ExcerptSize:        c.GetInt("pipeline.excerpt_size"),
	}
}

// GetStore returns the store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:          c.GetString("store.type"),
		SQLitePath:    c.GetString("store.sqlite_path"),
		MySQLDSN:      c.GetString("store.mysql_dsn"),
		RedisAddress:  c.GetString("store.redis_address"),
		RedisPassword: c.GetString("store.redis_password"),
		RedisDB:       c.GetInt("store.redis_db"),
		RedisPrefix:   c.GetString("store.redis_prefix"),
	}
}

// GetServer returns the HTTP API configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:  c.GetString("server.listen_address"),
		AllowedOrigins: c.GetStringSlice("server.allowed_origins"),
	}
}

// GetSMTP returns the SMTP intake configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:        c.GetBool("smtp.enabled"),
		ListenAddress:  c.GetString("smtp.listen_address"),
		VerdictHeader:  c.GetString("smtp.verdict_header"),
		ForwardEnabled: c.GetBool("smtp.forward.enabled"),
		ForwardAddress: c.GetString("smtp.forward.address"),
		ForwardPort:    c.GetInt("smtp.forward.port"),
	}
}

// GetNotify returns the notification configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{
		Channels:    c.GetStringSlice("notify.channels"),
		InboxSize:   c.GetInt("notify.inbox_size"),
		SMTPAddress: c.GetString("notify.smtp.address"),
		SMTPPort:    c.GetInt("notify.smtp.port"),
		SMTPFrom:    c.GetString("notify.smtp.from"),
		SMTPTo:      c.GetStringSlice("notify.smtp.to"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}
