package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/config"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/utils"
	"github.com/mikey/phish-alert/internal/whitelist"
)

// PipelineFactory creates the classification pipeline
type PipelineFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewPipelineFactory creates a new pipeline factory
func NewPipelineFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *PipelineFactory {
	return &PipelineFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreatePipeline creates a pipeline over the given backend, store and notifier
func (f *PipelineFactory) CreatePipeline(classifier core.Classifier, store core.Store, notifier core.Notifier) (*core.Pipeline, error) {
	pipelineCfg := f.cfg.GetPipeline()

	emailPolicy, err := core.ParseEmailPolicy(pipelineCfg.EmailPolicy)
	if err != nil {
		return nil, err
	}

	exclusions := whitelist.NewChecker(pipelineCfg.ReservedSchemes, pipelineCfg.TrustedDomains, f.logger)
	if len(pipelineCfg.TrustedDomains) > 0 {
		f.logger.Info("Loaded trusted domains", zap.Strings("domains", pipelineCfg.TrustedDomains))
	}

	return core.NewPipeline(classifier, store, notifier, exclusions, f.textProcessor, f.logger, core.Policy{
		PersistUnknownURLs: pipelineCfg.PersistUnknownURLs,
		EmailPolicy:        emailPolicy,
		ExcerptSize:        pipelineCfg.ExcerptSize,
	}), nil
}
