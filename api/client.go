package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// Options configures a Client. The zero value is usable.
type Options struct {
	// HTTPClient replaces the default client. Its Jar, when nil, is filled
	// with an in-memory cookie jar.
	HTTPClient *http.Client
	// Transport wraps outgoing requests, e.g. middleware.FeatureGateTransport.
	// Ignored when HTTPClient is set.
	Transport http.RoundTripper
	// Timeout bounds each request of the default client.
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// Client talks to the auth backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger

	mu          sync.RWMutex
	accessToken string
	cachedUser  *goSession.User
}

// NewClient returns a client rooted at baseURL, e.g. "https://api.example.com/api".
func NewClient(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base url required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout, Transport: opts.Transport}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		baseURL: baseURL,
		http:    hc,
		logger:  logger.With().Str("component", "api").Logger(),
	}, nil
}

// AccessToken returns the bearer token received with the last login.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken replaces the bearer token, e.g. after an external refresh.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// GetCachedUser returns the last user seen from the backend. No I/O.
func (c *Client) GetCachedUser() *goSession.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cachedUser.Clone()
}

func (c *Client) remember(u *goSession.User, token string) {
	c.mu.Lock()
	c.cachedUser = u.Clone()
	if token != "" {
		c.accessToken = token
	}
	c.mu.Unlock()
}

func (c *Client) forget() {
	c.mu.Lock()
	c.cachedUser = nil
	c.accessToken = ""
	c.mu.Unlock()
}

// doRequest performs an authenticated JSON request. Transport failures are
// classified as goSession.ErrNetwork.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("api: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &goSession.APIError{Kind: goSession.ErrNetwork, Err: err}
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request")
	return resp, nil
}

// errorBody is the backend's failure envelope.
type errorBody struct {
	Message   string `json:"message"`
	MessageEn string `json:"messageEn"`
	Code      string `json:"code"`
}

// Backend codes that override the status classification.
var codeKinds = map[string]error{
	"LOGIN_SESSION_EXPIRED": goSession.ErrLoginSessionExpired,
	"OTP_SESSION_EXPIRED":   goSession.ErrLoginSessionExpired,
	"INVALID_LOGIN_SESSION": goSession.ErrLoginSessionExpired,
	"RATE_LIMITED":          goSession.ErrRateLimited,
	"TOO_MANY_ATTEMPTS":     goSession.ErrRateLimited,
}

// parseResponse decodes a 2xx body into target and classifies anything else.
func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &goSession.APIError{
			Kind:   goSession.KindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
		}
		var body errorBody
		if err := json.Unmarshal(raw, &body); err == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.MessageEn
			if apiErr.Message == "" {
				apiErr.Message = body.Message
			}
			if kind, ok := codeKinds[body.Code]; ok {
				apiErr.Kind = kind
			}
		}
		return apiErr
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &goSession.APIError{
			Kind:   goSession.ErrInvalidResponse,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}
