// Package llm answers classification questions with a large language model
// used as an opaque remote classifier.
package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/utils"
)

// Completer sends a prompt to a model and returns its text completion
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Classifier is an implementation of the Classifier interface on top of an LLM
type Classifier struct {
	completer     Completer
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifier creates a new LLM-backed classifier
func NewClassifier(completer Completer, maxBodySize int, logger *zap.Logger, textProcessor *utils.TextProcessor) *Classifier {
	return &Classifier{
		completer:     completer,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ClassifyURL asks the model whether url is a phishing site
func (c *Classifier) ClassifyURL(ctx context.Context, url string) core.Verdict {
	return c.classify(ctx, utils.URLPrompt(url), zap.String("url", url))
}

// ClassifyEmail asks the model whether the email is a phishing attempt
func (c *Classifier) ClassifyEmail(ctx context.Context, sender, subject, body string) core.Verdict {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	return c.classify(ctx, utils.EmailPrompt(sender, subject, processedBody), zap.String("sender", sender))
}

func (c *Classifier) classify(ctx context.Context, prompt string, subject zap.Field) core.Verdict {
	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("LLM classification failed",
			zap.Error(err), subject, zap.String("model", c.completer.ModelName()))
		return core.VerdictUnknown
	}

	resp, err := utils.ParsePrediction(text)
	if err != nil {
		c.logger.Warn("Malformed LLM classification",
			zap.Error(err), subject, zap.String("model", c.completer.ModelName()))
		return core.VerdictUnknown
	}

	verdict := core.VerdictFromPrediction(resp.Prediction)
	c.logger.Debug("LLM classification",
		subject,
		zap.String("verdict", string(verdict)),
		zap.Float64("confidence", resp.Confidence),
		zap.String("explanation", resp.Explanation),
		zap.String("model", c.completer.ModelName()))
	return verdict
}

// Close releases the completer's resources when it holds any
func (c *Classifier) Close() error {
	if closer, ok := c.completer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
