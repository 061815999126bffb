package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUserAgent identifies streetgrab to upstream services. Nominatim's
// usage policy rejects requests without a meaningful User-Agent.
const DefaultUserAgent = "streetgrab/0.8.1 (+https://github.com/handiism/streetgrab)"

// Client wraps HTTP operations shared by the geocoder, the metadata client
// and the download scheduler.
//
// A single Client is constructed per run and injected into every component,
// so all requests share one connection pool. Call Close when the run ends.
//
// Client provides:
//   - Configured User-Agent header
//   - Per-request timeout
//   - Non-2xx responses surfaced as *StatusError (with Retry-After parsed)
//
// Example usage:
//
//	client := NewClient(WithTimeout(30*time.Second), WithMaxConnsPerHost(8))
//	defer client.Close()
//
//	var page searchPage
//	err := client.GetJSON(ctx, url, http.Header{"Authorization": {"OAuth " + token}}, &page)
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the whole-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxConnsPerHost sizes the idle pool so N concurrent workers can reuse
// connections to the same image host.
func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if t, ok := c.httpClient.Transport.(*http.Transport); ok && n > 0 {
			t.MaxIdleConnsPerHost = n
		}
	}
}

// WithHTTPClient replaces the underlying client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new Client.
//
// The client is configured with:
//   - 60 second timeout
//   - DefaultUserAgent
//   - A dedicated transport (not http.DefaultTransport) so Close only
//     affects this client's connections
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Get performs a GET request and returns the response body as bytes.
//
// The request includes the configured User-Agent header plus any extra
// headers given.
//
// Returns an error if:
//   - The request fails (network error, timeout, cancelled context)
//   - The response status is not 2xx (as *StatusError)
//   - Reading the body fails
//
// Example:
//
//	data, err := client.Get(ctx, "https://example.com/image.jpg", nil)
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Code:       resp.StatusCode,
			Status:     resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	return io.ReadAll(resp.Body)
}

// GetJSON performs a GET request and decodes the JSON body into v.
//
// A body that fails to decode is returned as *DecodeError, which Classify
// treats as permanent.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, v any) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	body, err := c.Get(ctx, url, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &DecodeError{URL: url, Err: err}
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code       int
	Status     string
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s: %s", e.Code, e.Status, e.Body)
}

// DecodeError wraps a malformed JSON response.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
