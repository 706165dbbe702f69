package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// HTTPClassifierConfig configures the HTTP classification backend.
type HTTPClassifierConfig struct {
	URL           string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RatePerSecond float64
	RateBurst     int
}

// HTTPClassifier talks JSON to a remote classification service. Requests are
// rate limited and retried with capped exponential backoff; a batch that
// still fails after retries returns an error and the caller degrades those
// items, leaving other batches untouched.
type HTTPClassifier struct {
	cfg     HTTPClassifierConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTPClassifier builds the backend. Zero-valued config fields get
// defaults: 30s timeout, 3 attempts, 5 req/s with burst 10.
func NewHTTPClassifier(cfg HTTPClassifierConfig, logger *slog.Logger) *HTTPClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &HTTPClassifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		logger:  logger,
	}
}

type classifyResponse struct {
	Results []ClassificationResult `json:"results"`
}

// Classify sends one batch, retrying transient failures. The result slice
// preserves the batch's item order.
func (c *HTTPClassifier) Classify(ctx context.Context, batch Batch) ([]ClassificationResult, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encoding classification request: %w", err)
	}

	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxRetries-1),
		retry.WithCappedDuration(10*time.Second, retry.NewExponential(500*time.Millisecond)))

	var results []ClassificationResult
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		res, attemptErr := c.post(ctx, payload)
		if attemptErr != nil {
			c.logger.Warn("classification attempt failed",
				slog.Int("batch_size", len(batch.Items)),
				slog.String("error", attemptErr.Error()))
			return attemptErr
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return alignResults(batch, results), nil
}

func (c *HTTPClassifier) post(ctx context.Context, payload []byte) ([]ClassificationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, retry.RetryableError(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.RetryableError(fmt.Errorf("classification service returned %d", resp.StatusCode))
	default:
		// 4xx other than 429 will not improve on retry
		return nil, fmt.Errorf("classification service returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var out classifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding classification response: %w", err)
	}
	return out.Results, nil
}

// alignResults reorders service results to the batch's item order, matching
// by ID. Items the service skipped come back with an empty category.
func alignResults(batch Batch, results []ClassificationResult) []ClassificationResult {
	byID := make(map[string]ClassificationResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	aligned := make([]ClassificationResult, len(batch.Items))
	for i, item := range batch.Items {
		if r, ok := byID[item.ID]; ok {
			aligned[i] = r
		} else {
			aligned[i] = ClassificationResult{ID: item.ID}
		}
	}
	return aligned
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
