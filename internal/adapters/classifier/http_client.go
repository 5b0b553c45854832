package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/utils"
)

// maxResponseSize bounds how much of a classifier response is read
const maxResponseSize = 1 << 20

// HTTPClient is an implementation of the Classifier interface backed by the
// remote prediction service
type HTTPClient struct {
	client         *http.Client
	urlEndpoint    string
	emailEndpoint  string
	healthEndpoint string
	maxBodySize    int
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

type urlRequest struct {
	URL string `json:"url"`
}

type emailRequest struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// predictionResponse covers both the /predict answer and the legacy /check_url answer
type predictionResponse struct {
	Prediction     *string  `json:"prediction"`
	Classification *string  `json:"classification"`
	Confidence     *float64 `json:"confidence"`
}

func (r *predictionResponse) label() (string, bool) {
	switch {
	case r.Prediction != nil:
		return *r.Prediction, true
	case r.Classification != nil:
		return *r.Classification, true
	default:
		return "", false
	}
}

// NewHTTPClient creates a new prediction service client. A zero timeout waits
// for the service indefinitely.
func NewHTTPClient(
	urlEndpoint string,
	emailEndpoint string,
	healthEndpoint string,
	timeout time.Duration,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *HTTPClient {
	return &HTTPClient{
		client:         &http.Client{Timeout: timeout},
		urlEndpoint:    urlEndpoint,
		emailEndpoint:  emailEndpoint,
		healthEndpoint: healthEndpoint,
		maxBodySize:    maxBodySize,
		logger:         logger,
		textProcessor:  textProcessor,
	}
}

// ClassifyURL posts the URL to the prediction endpoint
func (c *HTTPClient) ClassifyURL(ctx context.Context, url string) core.Verdict {
	verdict, err := c.predict(ctx, c.urlEndpoint, urlRequest{URL: url})
	if err != nil {
		c.logger.Warn("URL classification failed",
			zap.Error(err),
			zap.String("url", url),
			zap.String("endpoint", c.urlEndpoint))
		return core.VerdictUnknown
	}
	c.logger.Debug("URL classified", zap.String("url", url), zap.String("verdict", string(verdict)))
	return verdict
}

// ClassifyEmail posts the email fields to the email prediction endpoint
func (c *HTTPClient) ClassifyEmail(ctx context.Context, sender, subject, body string) core.Verdict {
	req := emailRequest{
		Sender:  sender,
		Subject: subject,
		Body:    c.textProcessor.ProcessText(body, c.maxBodySize),
	}
	verdict, err := c.predict(ctx, c.emailEndpoint, req)
	if err != nil {
		c.logger.Warn("Email classification failed",
			zap.Error(err),
			zap.String("sender", sender),
			zap.String("endpoint", c.emailEndpoint))
		return core.VerdictUnknown
	}
	c.logger.Debug("Email classified", zap.String("sender", sender), zap.String("verdict", string(verdict)))
	return verdict
}

func (c *HTTPClient) predict(ctx context.Context, endpoint string, payload any) (core.Verdict, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return core.VerdictUnknown, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return core.VerdictUnknown, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return core.VerdictUnknown, fmt.Errorf("failed to reach classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return core.VerdictUnknown, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var pr predictionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&pr); err != nil {
		return core.VerdictUnknown, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	label, ok := pr.label()
	if !ok {
		return core.VerdictUnknown, fmt.Errorf("classifier response has no prediction")
	}

	verdict := core.VerdictFromPrediction(label)
	if verdict == core.VerdictUnknown {
		c.logger.Info("Unrecognised classifier label", zap.String("label", label))
	}
	return verdict, nil
}

// Health checks the prediction service health endpoint
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach classifier: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health returned status %d", resp.StatusCode)
	}
	return nil
}
