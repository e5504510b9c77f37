// Package mediawiki is a small client for the MediaWiki Action API covering
// bot login, Cargo queries and page reads and edits.
package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
)

// DefaultUserAgent identifies the tool to wiki operators.
const DefaultUserAgent = "changelogged/0.2 (+https://github.com/EpicPuppy613/changelogged)"

// APIError is an error object returned by the API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediawiki: %s: %s", e.Code, e.Info)
}

// retryable API error codes; everything else is final.
var retryableCodes = map[string]bool{
	"maxlag":      true,
	"ratelimited": true,
	"readonly":    true,
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("mediawiki: http %d: %s", e.StatusCode, e.Body)
}

// Config holds client settings.
type Config struct {
	APIURL    string
	Username  string
	Password  string
	UserAgent string
	// RetryMaxElapsed bounds retries of transient failures. Zero disables retries.
	RetryMaxElapsed time.Duration
	// HTTPClient overrides the default client. Its Jar is replaced if nil.
	HTTPClient *http.Client
}

// Client talks to one wiki. It is safe for concurrent use.
type Client struct {
	apiURL          string
	username        string
	password        string
	userAgent       string
	retryMaxElapsed time.Duration
	client          *http.Client

	mu        sync.Mutex
	loggedIn  bool
	csrfToken string
}

// New creates a client. Nothing is sent until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("mediawiki: api url is required")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("mediawiki: invalid api url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{
		apiURL:          cfg.APIURL,
		username:        cfg.Username,
		password:        cfg.Password,
		userAgent:       ua,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		client:          hc,
	}, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	if c.retryMaxElapsed <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.retryMaxElapsed
	return backoff.WithContext(bo, ctx)
}

// call sends one API request and decodes the response into out. POST sends
// params as a form body. Transient failures are retried.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	params = cloneValues(params)
	params.Set("format", "json")
	params.Set("formatversion", "2")

	return backoff.Retry(func() error {
		body, err := c.do(ctx, method, params)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			var he *HTTPError
			if errors.As(err, &he) && he.StatusCode < 500 && he.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}

		var envelope struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return backoff.Permanent(fmt.Errorf("mediawiki: decode response: %w", err))
		}
		if envelope.Error != nil {
			if retryableCodes[envelope.Error.Code] {
				return envelope.Error
			}
			return backoff.Permanent(envelope.Error)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("mediawiki: decode response: %w", err))
		}
		return nil
	}, c.newBackOff(ctx))
}

func (c *Client) do(ctx context.Context, method string, params url.Values) ([]byte, error) {
	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediawiki request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mediawiki: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(b), 200)}
	}
	return b, nil
}

// Login authenticates with a bot password. Calling it again is a no-op.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	if c.username == "" || c.password == "" {
		return errors.New("mediawiki: username and password are required to log in")
	}

	token, err := c.token(ctx, "login")
	if err != nil {
		return fmt.Errorf("login token: %w", err)
	}

	var resp struct {
		Login struct {
			Result string `json:"result"`
			Reason string `json:"reason"`
		} `json:"login"`
	}
	err = c.call(ctx, http.MethodPost, url.Values{
		"action":     {"login"},
		"lgname":     {c.username},
		"lgpassword": {c.password},
		"lgtoken":    {token},
	}, &resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Login.Result != "Success" {
		return fmt.Errorf("login as %q: %s: %s", c.username, resp.Login.Result, resp.Login.Reason)
	}
	c.loggedIn = true
	return nil
}

func (c *Client) token(ctx context.Context, kind string) (string, error) {
	var resp struct {
		Query struct {
			Tokens map[string]string `json:"tokens"`
		} `json:"query"`
	}
	err := c.call(ctx, http.MethodGet, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {kind},
	}, &resp)
	if err != nil {
		return "", err
	}
	tok := resp.Query.Tokens[kind+"token"]
	if tok == "" {
		return "", fmt.Errorf("mediawiki: no %s token in response", kind)
	}
	return tok, nil
}

// editToken logs in if needed and returns the cached CSRF token.
func (c *Client) editToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loginLocked(ctx); err != nil {
		return "", err
	}
	if c.csrfToken != "" {
		return c.csrfToken, nil
	}
	tok, err := c.token(ctx, "csrf")
	if err != nil {
		return "", fmt.Errorf("csrf token: %w", err)
	}
	c.csrfToken = tok
	return tok, nil
}

func (c *Client) dropEditToken() {
	c.mu.Lock()
	c.csrfToken = ""
	c.mu.Unlock()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
