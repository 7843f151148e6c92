// Package upstream implements the TikHub data API client. Fetch failures
// never cross the package boundary as errors: callers see absence of data
// and decide whether to fall back.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the upstream client.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
}

// Client performs authenticated GETs against the TikHub API.
type Client struct {
	doer    HTTPDoer
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates an upstream client. A nil doer falls back to a default
// http.Client; the caller is expected to set the request timeout on the
// doer it passes in.
func NewClient(doer HTTPDoer, cfg ClientConfig, logger *zap.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}

	return &Client{
		doer:    doer,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger,
	}
}

// Configured reports whether the client has an API key to authenticate with.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Fetch performs one GET against the given endpoint and returns the payload
// under the response's "data" field. The boolean result is false for every
// failure mode: missing token, transport error, non-2xx status, malformed
// body, or an absent data field.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, bool) {
	if c == nil || c.doer == nil {
		return nil, false
	}
	if c.apiKey == "" {
		c.logger.Warn("upstream api key is not set; skipping fetch", zap.String("endpoint", endpoint))
		return nil, false
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("rate limiter wait aborted", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false
	}

	requestURL, err := c.buildURL(endpoint, params)
	if err != nil {
		c.logger.Error("failed to build upstream url", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		c.logger.Error("failed to build upstream request", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("upstream returned non-2xx status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read upstream response body", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Warn("failed to decode upstream response", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		c.logger.Warn("upstream response has no data field", zap.String("endpoint", endpoint))
		return nil, false
	}

	return envelope.Data, true
}

func (c *Client) buildURL(endpoint string, params map[string]string) (string, error) {
	parsed, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}
	query := parsed.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
