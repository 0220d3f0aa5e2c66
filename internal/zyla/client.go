// Package zyla calls the Zyla Labs skin analysis API.
package zyla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

var ErrMissingAPIKey = errors.New("zyla: api key required")

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zyla: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Result is the provider's answer. Skin holds the analysis object when the
// provider wraps it in "result" or "data"; Raw is always the full body.
type Result struct {
	Skin json.RawMessage
	Raw  json.RawMessage
}

// Analyze submits imageURL for skin analysis.
func (c *Client) Analyze(ctx context.Context, imageURL string) (*Result, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(map[string]string{"image": imageURL})
	if err != nil {
		return nil, fmt.Errorf("zyla: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("zyla: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zyla: http error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("zyla: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("zyla: response is not JSON")
	}

	result := &Result{Raw: raw, Skin: raw}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		switch {
		case len(envelope.Result) > 0 && string(envelope.Result) != "null":
			result.Skin = envelope.Result
		case len(envelope.Data) > 0 && string(envelope.Data) != "null":
			result.Skin = envelope.Data
		}
	}
	return result, nil
}
