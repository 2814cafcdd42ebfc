// Package bmrs fetches report windows from the BMRS API and assembles them
// into a single table.
package bmrs

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/bmrs/internal/infra"
	"github.com/seenimoa/bmrs/internal/report"
)

const (
	// DefaultBaseURL is the BMRS API root.
	DefaultBaseURL = "https://api.bmreports.com/BMRS"
	// DefaultAPIVersion is the report endpoint version.
	DefaultAPIVersion = "v1"

	apiKeyParam = "APIKey"
)

// Client issues report requests against the BMRS API.
type Client struct {
	apiKey      string
	baseURL     string
	version     string
	http        infra.Doer
	limiter     infra.Limiter
	concurrency int
	log         zerolog.Logger
}

// Option configures a Client.
type Option func(c *Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(d infra.Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIVersion overrides the endpoint version segment.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// WithRateLimiter throttles outgoing requests.
func WithRateLimiter(l infra.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithConcurrency sets how many windows may be fetched at once. Values
// below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(c *Client) { c.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		version:     DefaultAPIVersion,
		concurrency: 1,
		log:         zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(c)
	}
	if c.http == nil {
		c.http = infra.NewHTTPClient(0)
	}
	if c.limiter == nil {
		c.limiter = infra.NewRateLimiter(0, 1)
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	return c
}

// Concurrency returns the number of windows fetched at once.
func (c *Client) Concurrency() int { return c.concurrency }

// WindowURL returns the request URL for w, including the API key.
func (c *Client) WindowURL(w report.Window) string {
	q := w.Values()
	q.Set(apiKeyParam, c.apiKey)
	q.Set("ServiceType", "csv")
	return c.baseURL + "/" + url.PathEscape(w.Report) + "/" + url.PathEscape(c.version) + "?" + q.Encode()
}

// redacted returns u with the API key hidden, for logs and errors.
func redacted(u string) string {
	return infra.RedactURL(u, apiKeyParam)
}
