// Package openrouter talks to the OpenRouter chat completions API for
// multimodal analysis and image generation.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("openrouter: api key required")
	ErrEmptyContent  = errors.New("openrouter: empty content")
)

type Config struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
	Timeout time.Duration
}

// Client wraps the OpenRouter chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts (default 1, no retry).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Referer: strings.TrimSpace(cfg.Referer),
			Title:   strings.TrimSpace(cfg.Title),
			Timeout: timeout,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: 1,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openrouter: http %d: %s", e.StatusCode, summarize(e.Body))
}

// Request is a chat completion request. Content is either a string or []ContentPart.
type Request struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Modalities     []string          `json:"modalities,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// TextPart and ImagePart build multimodal message parts.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Choice struct {
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type ResponseMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Images  []ContentPart   `json:"images"`
	Refusal string          `json:"refusal"`
}

// Parts returns the message content as parts. A plain string content becomes
// one text part.
func (m ResponseMessage) Parts() []ContentPart {
	raw := bytes.TrimSpace(m.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []ContentPart{TextPart(text)}
	}
	var parts []ContentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		return parts
	}
	return nil
}

// Text joins the text parts of the first choice.
func (r *Response) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Choices[0].Message.Parts() {
		if part.Type == "text" && part.Text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// Complete sends req, retrying transient failures up to the configured attempts.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.sendOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("openrouter: failed after %d attempts: %w", attempts, lastErr)
}

// AnalyzeImage asks model to describe imageURL and returns the text answer.
func (c *Client) AnalyzeImage(ctx context.Context, model, systemPrompt, userPrompt, imageURL string) (string, error) {
	resp, err := c.Complete(ctx, Request{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []ContentPart{TextPart(userPrompt), ImagePart(imageURL)}},
		},
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// GenerateImage asks an image model to edit imageURL according to prompt.
func (c *Client) GenerateImage(ctx context.Context, model, prompt, imageURL string) (Image, error) {
	resp, err := c.Complete(ctx, Request{
		Model:      model,
		Modalities: []string{"image", "text"},
		Messages: []Message{
			{Role: "user", Content: []ContentPart{TextPart(prompt), ImagePart(imageURL)}},
		},
	})
	if err != nil {
		return Image{}, err
	}
	return ExtractImage(resp)
}

func (c *Client) sendOnce(ctx context.Context, payload Request) (*Response, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "")
	if err != nil {
		return nil, fmt.Errorf("openrouter: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openrouter: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("openrouter: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: http error (timeout=%s): %w", c.cfg.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openrouter: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion Response
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w (snippet: %s)", err, summarize(string(body)))
	}
	if completion.Error != nil {
		return nil, fmt.Errorf("openrouter: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return &completion, nil
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 -> base, 2 -> base*2, ...
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			return c.capDelay(c.retryMaxDelay)
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarize(content string) string {
	trimmed := strings.Join(strings.Fields(content), " ")
	if trimmed == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(trimmed)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return trimmed
}
