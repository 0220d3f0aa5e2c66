// Package rpcclient calls the /api/rpc procedures over HTTP.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	csrfCookieName  = "csrf_token"
	csrfHeader      = "X-CSRF-Token"
	sessionCookie   = "parallel_session"
	maxResponseSize = 10 << 20
)

// Error is an error envelope returned by the server.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// IsTerminal reports whether retrying the same call cannot succeed.
func (e *Error) IsTerminal() bool {
	switch e.Code {
	case "NOT_FOUND", "UNAUTHORIZED", "FORBIDDEN", "BAD_REQUEST":
		return true
	}
	return false
}

type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	pollInterval time.Duration
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			cp := *client
			c.httpClient = &cp
		}
	}
}

// WithPollInterval sets the WaitForCompletion interval. Default 2s.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New returns a client for the service at baseURL. A non-empty session is
// sent as the session cookie.
func New(baseURL, session string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if session != "" {
		jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: session, Path: "/"}})
	}

	c := &Client{
		baseURL:      u,
		httpClient:   &http.Client{Timeout: defaultTimeout, Jar: jar},
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Query calls a query procedure with GET and decodes the result into out.
func (c *Client) Query(ctx context.Context, procedure string, input, out any) error {
	endpoint := c.endpoint(procedure)
	if input != nil {
		raw, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("failed to encode input: %w", err)
		}
		endpoint += "?input=" + url.QueryEscape(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// Mutate calls a procedure with POST. The CSRF token is fetched on first use.
func (c *Client) Mutate(ctx context.Context, procedure string, input, out any) error {
	token, err := c.csrfToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader = http.NoBody
	if input != nil {
		raw, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("failed to encode input: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(procedure), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeader, token)
	return c.do(req, out)
}

func (c *Client) endpoint(procedure string) string {
	return c.baseURL.String() + "/api/rpc/" + url.PathEscape(procedure)
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if token := c.cookie(csrfCookieName); token != "" {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+"/healthz", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	token := c.cookie(csrfCookieName)
	if token == "" {
		return "", errors.New("server did not issue a csrf token")
	}
	return token, nil
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Result *struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unexpected response (http %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		if envelope.Error.HTTPStatus == 0 {
			envelope.Error.HTTPStatus = resp.StatusCode
		}
		return envelope.Error
	}
	if envelope.Result == nil {
		return fmt.Errorf("unexpected response (http %d): no result", resp.StatusCode)
	}
	if out == nil || len(envelope.Result.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result.Data, out)
}
