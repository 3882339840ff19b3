// Package fetch is the single way the service talks to third-party JSON APIs.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/benedict-erwin/geo-gateway/pkg/cache"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
)

const maxBodyBytes = 2 << 20

// ErrMalformedJSON marks a provider body that is not the JSON we asked for
var ErrMalformedJSON = errors.New("malformed JSON from provider")

// StatusError is returned by JSON when the provider answers outside 2xx
type StatusError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s returned status %d", e.URL, e.StatusCode)
}

// Options configures a Client
type Options struct {
	Timeout     time.Duration // per call, applied on top of the caller's context
	UserAgent   string
	RateLimit   float64 // requests per second per host for Request.RateLimit calls, 0 disables
	Burst       int
	Cache       cache.Cache // optional
	CachePrefix string
	HTTPClient  *http.Client
}

// Request describes one outbound call
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any // encoded as JSON when non-nil

	// CacheTTL > 0 lets a successful GET be served from and stored in the cache
	CacheTTL time.Duration

	// RateLimit makes the call wait for the per-host token bucket
	RateLimit bool
}

// Response is an upstream reply of any status
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cached     bool
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into out
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return nil
}

// Client performs outbound calls. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *hostLimiter
	cache     cache.Cache
	prefix    string
}

// New creates a Client
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		http:      httpClient,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		limiter:   newHostLimiter(opts.RateLimit, opts.Burst),
		cache:     opts.Cache,
		prefix:    opts.CachePrefix,
	}
}

// Do sends req. Transport failures are errors; any HTTP status is a Response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	log := logger.WithScope("fetch")

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	cacheable := c.cache != nil && method == http.MethodGet && req.CacheTTL > 0

	if cacheable {
		if body, found, err := c.cache.Get(ctx, cache.Key(c.prefix, req.URL)); err != nil {
			log.Warn().Err(err).Msg("Cache read failed, calling provider")
		} else if found {
			return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: body, Cached: true}, nil
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if req.RateLimit {
		if err := c.limiter.Wait(ctx, req.URL); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, httpReq.URL.Host, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("host", httpReq.URL.Host).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Provider call")

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}

	if cacheable && out.OK() {
		if err := c.cache.Set(ctx, cache.Key(c.prefix, req.URL), raw, req.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("Cache write failed")
		}
	}

	return out, nil
}

// JSON sends req, requires a 2xx status and decodes the body into out.
// It returns the raw Response so callers can echo the provider document.
func (c *Client) JSON(ctx context.Context, req Request, out any) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &StatusError{URL: req.URL, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	if out != nil {
		if err := resp.Decode(out); err != nil {
			return resp, err
		}
	} else if !json.Valid(resp.Body) {
		return resp, ErrMalformedJSON
	}
	return resp, nil
}
