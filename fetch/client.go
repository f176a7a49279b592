// Package fetch provides the HTTP client used to retrieve feed
// documents, with client-side timeouts and optional proxy rewriting.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
)

// userAgent is a fixed browser-like header; some feed hosts refuse
// requests from obvious bot agents.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultTimeout is the per-request timeout for scheduled fetches.
const DefaultTimeout = 30 * time.Second

// TimeoutError indicates the request exceeded the client-side timeout.
type TimeoutError struct {
	URL string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch timed out: %s", e.URL)
}

// RequestError indicates any other transport failure: DNS, TLS,
// connection refused, or a non-2xx response.
type RequestError struct {
	URL    string
	Status int // 0 when the request never produced a response
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch failed: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch failed: %s: status %d", e.URL, e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Result holds a successful fetch: the raw body plus the metadata the
// parser and caller need.
type Result struct {
	Body       []byte
	Encoding   string // declared charset, "utf-8" when the server omits it
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
}

// Client fetches feed documents. It owns a single reusable http.Client
// so connections are pooled across fetches; construct one per run and
// pass it explicitly.
type Client struct {
	http  *http.Client
	proxy *Proxy
}

// NewClient creates a Client with the given per-request timeout. A nil
// proxy disables URL rewriting.
func NewClient(timeout time.Duration, proxy *Proxy) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		proxy: proxy,
	}
}

// Fetch performs a GET against feedURL and returns the response body
// and metadata. Failures are returned as *TimeoutError or
// *RequestError; Fetch never panics and a non-2xx status is a failure.
func (c *Client) Fetch(ctx context.Context, feedURL string) (*Result, error) {
	target := feedURL
	if c.proxy.Enabled() {
		target = c.proxy.Rewrite(feedURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &RequestError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: feedURL}
		}
		return nil, &RequestError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{URL: feedURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: feedURL}
		}
		return nil, &RequestError{URL: feedURL, Err: err}
	}

	return &Result{
		Body:       body,
		Encoding:   responseEncoding(resp.Header),
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}, nil
}

// isTimeout distinguishes timeout failures from other transport errors.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// responseEncoding extracts the declared charset from the Content-Type
// header, defaulting to utf-8.
func responseEncoding(h http.Header) string {
	ct := h.Get("Content-Type")
	if ct == "" {
		return "utf-8"
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "utf-8"
	}
	if cs := strings.TrimSpace(params["charset"]); cs != "" {
		return strings.ToLower(cs)
	}
	return "utf-8"
}
