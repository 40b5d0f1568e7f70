package dkan

import (
	"bytes"
	"context"
	"crypto/tls"
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

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// MaxRetries is the maximum number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = time.Second

	// maxErrorBody limits how much of an error response is kept.
	maxErrorBody = 512
)

// Config holds the connection settings of a client.
type Config struct {
	BaseURL            string
	Username           string
	Password           string
	InsecureSkipVerify bool
	RequestsPerSecond  int
	Timeout            time.Duration
	RetryDelay         time.Duration
}

// ConfigFromSettings builds a client config from the portal settings.
func ConfigFromSettings(p domain.PortalSettings) Config {
	return Config{
		BaseURL:            p.URL,
		Username:           p.Username,
		Password:           p.Password,
		InsecureSkipVerify: p.InsecureSkipVerify,
		RequestsPerSecond:  p.RequestsPerSecond,
	}
}

// session is shared between a client and its cached view.
type session struct {
	mu       sync.Mutex
	token    string
	loggedIn bool
}

// Ensure Client implements the interfaces.
var (
	_ driven.Portal            = (*Client)(nil)
	_ driven.VocabularyFetcher = (*Client)(nil)
)

// Client talks to one DKAN instance.
type Client struct {
	cfg       Config
	base      *url.URL
	http      *http.Client
	limiter   *RateLimiter
	session   *session
	cache     driven.ResponseCache
	readCache bool
}

// NewClient creates a client for cfg.BaseURL. cache may be nil.
func NewClient(cfg Config, cache driven.ResponseCache) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: portal url %q", domain.ErrInvalidInput, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = RetryDelay
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: newTransport(cfg.InsecureSkipVerify),
		},
		limiter: NewRateLimiter(cfg.RequestsPerSecond),
		session: &session{},
		cache:   cache,
	}, nil
}

func newTransport(insecure bool) http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for portals with broken certificates
	}
	return transport
}

// Cached returns a view of the client that answers reads from the
// response cache when possible. Writes and the session are shared.
func (c *Client) Cached() *Client {
	cached := *c
	cached.readCache = c.cache != nil
	return &cached
}

// BaseURL returns the portal base url.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// getJSON fetches path and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.get(ctx, c.endpoint(path, query))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// get performs a GET with retries and the response cache.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.readCache {
		body, ok, err := c.cache.Get(ctx, rawURL)
		if err != nil {
			logger.Warn("Cache read failed: %v", err)
		} else if ok {
			logger.Debug("Cache hit: %s", rawURL)
			return body, nil
		}
	}

	var body []byte
	var err error
	delay := c.cfg.RetryDelay
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Retry %d for %s in %s: %v", attempt, rawURL, delay, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		body, err = c.do(ctx, http.MethodGet, rawURL, nil, "")
		if err == nil || !isRetryable(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, rawURL, body); err != nil {
			logger.Warn("Cache write failed: %v", err)
		}
	}
	return body, nil
}

// send performs a write request with a JSON body.
func (c *Client) send(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, c.endpoint(path, nil), body, "application/json")
}

// do executes one request. Network failures and 5xx responses wrap
// domain.ErrTransient.
func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method != http.MethodGet {
		req.Header.Set("Cache-Control", "no-cache")
	}
	c.session.mu.Lock()
	if c.session.token != "" {
		req.Header.Set("X-CSRF-Token", c.session.token)
	}
	c.session.mu.Unlock()

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, errors.Join(domain.ErrTransient, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, rawURL, errors.Join(domain.ErrTransient, err))
	}
	logger.Debug("HTTP %d | %.2fs %s %s", resp.StatusCode, time.Since(start).Seconds(), method, rawURL)

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Backoff(resp.Header.Get("Retry-After"), c.cfg.RetryDelay)
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data, resp.Status),
			URL:        rawURL,
		}
	}
	return data, nil
}

// errorMessage extracts a readable message from an error body.
func errorMessage(body []byte, status string) string {
	var list []string
	if json.Unmarshal(body, &list) == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	var obj struct {
		Error any `json:"error"`
		Form  any `json:"form_errors"`
	}
	if json.Unmarshal(body, &obj) == nil {
		if obj.Form != nil {
			return fmt.Sprint(obj.Form)
		}
		if obj.Error != nil {
			return fmt.Sprint(obj.Error)
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
