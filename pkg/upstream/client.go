// Package upstream is the JSON-over-HTTP client used to relay requests to the carrier and
// customs APIs.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suteetoe/tradeflow/pkg/config"
	"github.com/suteetoe/tradeflow/prometheus"
	"go.uber.org/zap"
)

// ErrUnavailable wraps transport failures: no response was received
var ErrUnavailable = errors.New("upstream unavailable")

// StatusError is returned when the upstream answered with an unexpected status code
type StatusError struct {
	Service    string
	StatusCode int
	Detail     interface{}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api returned %d: %v", e.Service, e.StatusCode, e.Detail)
}

// Client calls one upstream API
type Client struct {
	Service    string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a client bounded by cfg.Timeout
func NewClient(service string, cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		Service:    service,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Do sends body as JSON and returns the raw response body when the status equals expected.
// Any other status yields a *StatusError carrying the upstream code.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}, expected int) (json.RawMessage, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		c.Logger.Error("Failed to create request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.Logger.Info("Calling upstream API",
		zap.String("service", c.Service),
		zap.String("method", method),
		zap.String("path", path))

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		prometheus.RecordUpstreamCall(c.Service, 0, start)
		c.Logger.Error("Upstream request failed",
			zap.String("service", c.Service),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.Service, err)
	}
	defer resp.Body.Close()
	prometheus.RecordUpstreamCall(c.Service, resp.StatusCode, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Logger.Error("Failed to read upstream response", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.Service, err)
	}

	if resp.StatusCode != expected {
		c.Logger.Warn("Upstream returned unexpected status",
			zap.String("service", c.Service),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.Int("expected", expected))
		return nil, &StatusError{
			Service:    c.Service,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(respBody),
		}
	}

	if !json.Valid(respBody) {
		return nil, fmt.Errorf("%w: %s returned a non-JSON body", ErrUnavailable, c.Service)
	}
	return respBody, nil
}

// errorDetail prefers the "detail" or "error" field of a JSON error body
func errorDetail(body []byte) interface{} {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if d, ok := parsed["detail"]; ok {
			return d
		}
		if d, ok := parsed["error"]; ok {
			return d
		}
		return parsed
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}
	return text
}
