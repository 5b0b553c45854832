package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/config"
	"github.com/mikey/phish-alert/internal/logging"
)

// CLIFlags contains the command line flags shared by the scanner commands
type CLIFlags struct {
	// Classifier flags
	Provider       string
	URLEndpoint    string
	EmailEndpoint  string
	HealthEndpoint string
	Timeout        string
	MaxBodySize    int

	// LLM provider flags
	MaxTokens       int
	Temperature     float64
	TopP            float64
	BedrockRegion   string
	BedrockModelID  string
	GeminiAPIKey    string
	GeminiModelName string
	OpenAIAPIKey    string
	OpenAIModelName string

	// Store flags
	StoreType  string
	SQLitePath string
	RedisAddr  string

	// Output flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewWithFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("notify.channels", []string{"log"})
	v.Set("logging.format", "console")

	// Set classifier
	v.Set("classifier.provider", flags.Provider)
	v.Set("classifier.url_endpoint", flags.URLEndpoint)
	v.Set("classifier.email_endpoint", flags.EmailEndpoint)
	v.Set("classifier.health_endpoint", flags.HealthEndpoint)
	v.Set("classifier.timeout", flags.Timeout)
	v.Set("classifier.max_body_size", flags.MaxBodySize)

	// Provider credentials and model
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
	}
	for _, llm := range []string{"bedrock", "gemini", "openai"} {
		v.Set(llm+".max_tokens", flags.MaxTokens)
		v.Set(llm+".temperature", flags.Temperature)
		v.Set(llm+".top_p", flags.TopP)
	}

	// Set store
	v.Set("store.type", flags.StoreType)
	v.Set("store.sqlite_path", flags.SQLitePath)
	v.Set("store.redis_address", flags.RedisAddr)

	return config.NewFromViper(v)
}
