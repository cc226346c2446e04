// Package api is the JSON client for the MarketSim backend. It implements
// auth.Backend for login and signup and exposes the profile, stocks,
// predictions and trading endpoints the portal pages read from.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	auth "github.com/marketsim/portal-auth"
	"github.com/patrickmn/go-cache"
)

const (
	// DefaultBaseURL is the backend the portal talks to by default
	DefaultBaseURL = "http://127.0.0.1:5001/api"

	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = time.Minute
	maxErrorBody    = 64 << 10
)

var _ auth.Backend = (*Client)(nil)

// TextCodeRequestRejected marks a 4xx answer from a non auth endpoint
const TextCodeRequestRejected = "API_REQUEST_REJECTED"

// ErrRequestRejected is returned when the backend refuses a data request
// (unknown symbol, insufficient balance, duplicate watchlist entry).
var ErrRequestRejected = errors.New("backend rejected the request", errors.CategoryBadInput).
	WithTextCode(TextCodeRequestRejected).
	WithCode(errors.CodeBadRequest)

// Client talks to the backend REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  http.RoundTripper
	timeout    time.Duration
	cacheTTL   time.Duration
	cache      *cache.Cache
	logger     auth.Logger
	provider   auth.LoggerProvider
}

// Option customizes the client
type Option func(*Client)

// WithHTTPClient uses client as is, ignoring WithTransport and WithTimeout
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTransport sets the round tripper, usually an auth.BearerTransport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout sets the per request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCacheTTL sets how long cacheable lookups are kept. Zero or negative
// disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLoggerProvider resolves the client logger from a provider
func WithLoggerProvider(provider auth.LoggerProvider) Option {
	return func(c *Client) {
		c.provider, c.logger = auth.ResolveLogger("api.client", provider, c.logger)
	}
}

// New returns a client for baseURL (DefaultBaseURL when empty)
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:  baseURL,
		timeout:  defaultTimeout,
		cacheTTL: defaultCacheTTL,
	}
	c.provider, c.logger = auth.ResolveLogger("api.client", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: c.transport,
		}
	}

	if c.cacheTTL > 0 {
		c.cache = cache.New(c.cacheTTL, 2*c.cacheTTL)
	}

	return c
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FlushCache drops every cached lookup
func (c *Client) FlushCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// cachedGet serves path from the cache when possible. Only lookups that do
// not depend on the signed in user go through here.
func (c *Client) cachedGet(ctx context.Context, path string, query url.Values, out any) error {
	if c.cache == nil {
		return c.get(ctx, path, query, out)
	}

	key := path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}

	if raw, ok := c.cache.Get(key); ok {
		if data, ok := raw.([]byte); ok {
			c.logger.Trace("api cache hit", "key", key)
			return json.Unmarshal(data, out)
		}
	}

	var raw json.RawMessage
	if err := c.get(ctx, path, query, &raw); err != nil {
		return err
	}

	c.cache.Set(key, []byte(raw), cache.DefaultExpiration)
	return json.Unmarshal(raw, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "unable to encode request").
				WithTextCode(auth.TextCodeInvalidPayload)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if auth.HasTextCode(err, auth.TextCodeSessionInvalidated) {
			return err
		}
		c.logger.Warn("backend request failed", "method", method, "path", path, "error", err)
		return errors.Wrap(err, errors.CategoryAuth, auth.ErrBackendUnavailable.Message).
			WithTextCode(auth.TextCodeBackendUnavailable).
			WithCode(auth.ErrBackendUnavailable.Code).
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(method, path, resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryAuth, "backend returned an unreadable response").
			WithTextCode(auth.TextCodeBackendUnavailable).
			WithCode(auth.ErrBackendUnavailable.Code).
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	message := ""
	if err := json.Unmarshal(data, &body); err == nil {
		message = strings.TrimSpace(body.Error)
		if message == "" {
			message = strings.TrimSpace(body.Message)
		}
	}

	meta := map[string]any{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}
	if message != "" {
		meta["backend_error"] = message
	}

	c.logger.Debug("backend rejected request", "method", method, "path", path, "status", resp.StatusCode, "error", message)

	switch {
	case resp.StatusCode >= 500:
		return auth.DeriveError(auth.ErrBackendUnavailable, message, meta)
	case isCredentialPath(path):
		return auth.DeriveError(auth.ErrCredentialsRejected, message, meta)
	default:
		return auth.DeriveError(ErrRequestRejected, message, meta)
	}
}

func isCredentialPath(path string) bool {
	switch path {
	case loginPath, signupPath, changePasswordPath:
		return true
	}
	return false
}

// StatusCode returns the HTTP status a backend error carried, 0 otherwise
func StatusCode(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return 0
	}
	if status, ok := richErr.Metadata["status"].(int); ok {
		return status
	}
	return 0
}

func pathEscape(segment string) string {
	return url.PathEscape(strings.TrimSpace(segment))
}

func intQuery(name string, value int) url.Values {
	if value <= 0 {
		return nil
	}
	return url.Values{name: {fmt.Sprint(value)}}
}
