// Package httpapi is the shared REST transport used by the GitLab,
// Bitbucket, and Gitea adapters: a single tuned *http.Client plus a
// small JSON-request helper and a cursor-pagination loop.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/retry"
)

// Config parameterizes the shared client: base URL, auth, and the
// timeout/header knobs every adapter shares.
type Config struct {
	BaseURL    string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	Headers    map[string]string
	BearerAuth bool // true: "Authorization: Bearer <token>"; false: provider-specific header set by caller

	// Retry overrides the default backoff discipline when MaxAttempts is
	// set; the zero value keeps the defaults.
	Retry retry.Config
}

// Client is a thin, provider-agnostic REST client. Each adapter owns one
// and is responsible for building request paths and decoding responses in
// its own shape.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	token     string
	headers   map[string]string
	bearer    bool
	retry     retry.Config
}

// New builds a Client with a tuned transport: bounded idle connections,
// a dial/keepalive timeout, and a generous overall request timeout so
// large tree listings don't get killed mid-pagination.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        50,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}
	return &Client{
		http:      &http.Client{Transport: transport, Timeout: timeout},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		token:     cfg.Token,
		headers:   cfg.Headers,
		bearer:    cfg.BearerAuth,
		retry:     retryCfg,
	}
}

// Get issues a GET to path (joined with the configured base URL and raw
// query), returning the raw status, body, and any transport-level error
// (not an HTTP-status error; callers classify the status themselves).
func (c *Client) Get(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	status, _, body, err := c.GetWithHeaders(ctx, path, query)
	return status, body, err
}

// GetWithHeaders is Get plus the response header set, needed by adapters
// (GitLab) whose pagination cursor rides in a response header rather than
// the JSON body. Transport failures and retryable statuses (429, 5xx)
// are retried under the shared backoff discipline; a retryable status
// that survives every attempt is returned as a plain status/body pair so
// the adapter classifies it the usual way.
func (c *Client) GetWithHeaders(ctx context.Context, path string, query url.Values) (int, http.Header, []byte, error) {
	var status int
	var hdr http.Header
	var body []byte
	err := retry.Do(ctx, c.retry, core.IsRetryable, func(ctx context.Context) error {
		status, hdr, body = 0, nil, nil
		s, h, b, err := c.get(ctx, path, query)
		if err != nil {
			return core.NewError(core.KindNetwork, "httpapi.get", err)
		}
		status, hdr, body = s, h, b
		if s == http.StatusTooManyRequests {
			return core.NewErrorf(core.KindRateLimited, "httpapi.get", "status %d", s)
		}
		if s >= 500 {
			return core.NewErrorf(core.KindNetwork, "httpapi.get", "status %d", s)
		}
		return nil
	})
	if err != nil && status == 0 {
		return 0, nil, nil, err
	}
	return status, hdr, body, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (int, http.Header, []byte, error) {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.token != "" && c.bearer {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// GetJSON issues a GET and decodes a 2xx body into out; non-2xx statuses
// are returned as the raw status/body pair for the caller to classify.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) (int, []byte, error) {
	status, body, err := c.Get(ctx, path, query)
	if err != nil {
		return status, body, err
	}
	if status >= 200 && status < 300 && out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return status, body, fmt.Errorf("decode json: %w", err)
		}
	}
	return status, body, nil
}

// PageFetcher fetches one page given a cursor (provider-specific encoding:
// a page number, an opaque token, or a "next" URL); it returns the decoded
// items for that page and the cursor for the following page, or an empty
// cursor when exhausted.
type PageFetcher func(ctx context.Context, cursor string) (status int, body []byte, nextCursor string, err error)

// Paginate drives fetch until it reports an empty next cursor, invoking
// decode on every page's body and accumulating its items. The REST-based
// adapters do not call it; each runs its own pagination loop.
func Paginate[T any](ctx context.Context, fetch PageFetcher, decode func([]byte) ([]T, error)) ([]T, int, []byte, error) {
	var all []T
	cursor := ""
	for {
		status, body, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, status, body, err
		}
		if status < 200 || status >= 300 {
			return nil, status, body, nil
		}
		items, err := decode(body)
		if err != nil {
			return nil, status, body, fmt.Errorf("decode page: %w", err)
		}
		all = append(all, items...)
		if next == "" {
			break
		}
		cursor = next
		select {
		case <-ctx.Done():
			return all, status, body, ctx.Err()
		default:
		}
	}
	return all, 200, nil, nil
}
