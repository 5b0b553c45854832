// Package cli implements the phish-scan command line scanner.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"github.com/mikey/phish-alert/internal/di"
)

// containerBuilder builds the dependency container for a command run
type containerBuilder func(flags *di.CLIFlags) (*dig.Container, error)

// RootCmd returns the phish-scan root command with every subcommand attached
func RootCmd() *cobra.Command {
	return newRootCmd(di.BuildCLIContainer)
}

func newRootCmd(build containerBuilder) *cobra.Command {
	flags := &di.CLIFlags{}

	root := &cobra.Command{
		Use:   "phish-scan",
		Short: "Classify URLs and emails against the phishing backend",
		Long: `phish-scan runs URLs and emails through the same pipeline as the
phish-alert service and manages the stored classification records.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	// Classifier flags
	pf.StringVar(&flags.Provider, "provider", "http", "Classifier provider (http, openai, gemini, bedrock)")
	pf.StringVar(&flags.URLEndpoint, "url-endpoint", "http://localhost:8000/predict", "URL prediction endpoint")
	pf.StringVar(&flags.EmailEndpoint, "email-endpoint", "http://localhost:8000/predict_email", "Email prediction endpoint")
	pf.StringVar(&flags.HealthEndpoint, "health-endpoint", "http://localhost:8000/health", "Backend health endpoint")
	pf.StringVar(&flags.Timeout, "timeout", "30s", "Classifier request timeout (0s waits indefinitely)")
	pf.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum email body size sent to the classifier")

	// LLM provider flags
	pf.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for LLM response")
	pf.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for LLM generation")
	pf.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for LLM generation")
	pf.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	pf.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")
	pf.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	pf.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")
	pf.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	pf.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4", "OpenAI model name")

	// Store flags
	pf.StringVar(&flags.StoreType, "store", "sqlite", "Record store (memory, sqlite, redis)")
	pf.StringVar(&flags.SQLitePath, "sqlite-path", "phish_alert.db", "SQLite database path")
	pf.StringVar(&flags.RedisAddr, "redis-address", "localhost:6379", "Redis server address")

	root.AddCommand(urlCmd(flags, build))
	root.AddCommand(emailCmd(flags, build))
	root.AddCommand(listCmd(flags, build))
	root.AddCommand(clearCmd(flags, build))
	root.AddCommand(healthCmd(flags, build))

	return root
}

// invoke builds the container and runs fn with its dependencies injected,
// stopping the store and closing the classifier afterwards whether or not
// fn succeeded. The error from fn wins over a release failure.
func invoke(flags *di.CLIFlags, build containerBuilder, fn any) error {
	container, err := build(flags)
	if err != nil {
		return err
	}
	runErr := container.Invoke(fn)
	if err := container.Invoke(release); err != nil && runErr == nil {
		return err
	}
	return runErr
}
