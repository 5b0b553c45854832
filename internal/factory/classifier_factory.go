package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/bedrock"
	"github.com/mikey/phish-alert/internal/adapters/classifier"
	"github.com/mikey/phish-alert/internal/adapters/gemini"
	"github.com/mikey/phish-alert/internal/adapters/llm"
	"github.com/mikey/phish-alert/internal/adapters/openai"
	"github.com/mikey/phish-alert/internal/config"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/utils"
)

// ClassifierFactory creates classification backends
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a classifier for the configured provider
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	classifierCfg, err := f.cfg.GetClassifier()
	if err != nil {
		return nil, err
	}

	f.logger.Info("Creating classifier", zap.String("provider", classifierCfg.Provider))

	switch classifierCfg.Provider {
	case "http":
		return classifier.NewHTTPClient(
			classifierCfg.URLEndpoint,
			classifierCfg.EmailEndpoint,
			classifierCfg.HealthEndpoint,
			classifierCfg.Timeout,
			classifierCfg.MaxBodySize,
			f.logger,
			f.textProcessor,
		), nil
	case "openai":
		c := f.cfg.GetOpenAI()
		completer := openai.NewOpenAIClient(c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP, f.logger)
		return llm.NewClassifier(completer, classifierCfg.MaxBodySize, f.logger, f.textProcessor), nil
	case "gemini":
		c := f.cfg.GetGemini()
		completer, err := gemini.NewGeminiClient(c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP, f.logger)
		if err != nil {
			return nil, err
		}
		return llm.NewClassifier(completer, classifierCfg.MaxBodySize, f.logger, f.textProcessor), nil
	case "bedrock":
		c := f.cfg.GetBedrock()
		completer, err := bedrock.NewBedrockClientForRegion(
			context.Background(), c.Region, c.ModelID, c.MaxTokens, c.Temperature, c.TopP, f.logger)
		if err != nil {
			return nil, err
		}
		return llm.NewClassifier(completer, classifierCfg.MaxBodySize, f.logger, f.textProcessor), nil
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", classifierCfg.Provider)
	}
}

// HealthCheck returns the backend health probe, or nil when the backend has none
func HealthCheck(c core.Classifier) func(ctx context.Context) error {
	if h, ok := c.(interface{ Health(context.Context) error }); ok {
		return h.Health
	}
	return nil
}
