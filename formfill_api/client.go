package formfill_api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default timeouts of the two request classes.
const (
	DefaultPreviewTimeout    = 120 * time.Second
	DefaultGenerationTimeout = 600 * time.Second
)

// Client talks to the form-fill backend. Detail lookups use the preview-class
// HTTP client and export downloads the generation-class one.
type Client struct {
	baseURL          *url.URL
	tokens           TokenSource
	detailPath       string
	previewClient    *http.Client
	generationClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDetailPath sets the route prefix used for form-fill detail lookups.
func WithDetailPath(path string) ClientOption {
	return func(c *Client) {
		c.detailPath = path
	}
}

// WithTimeouts overrides the preview-class and generation-class timeouts.
func WithTimeouts(preview, generation time.Duration) ClientOption {
	return func(c *Client) {
		if preview > 0 {
			c.previewClient.Timeout = preview
		}
		if generation > 0 {
			c.generationClient.Timeout = generation
		}
	}
}

// WithHTTPClient makes both request classes use transport from hc. Intended for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.previewClient.Transport = hc.Transport
		c.generationClient.Transport = hc.Transport
	}
}

// NewClient creates a Client for the backend at baseURL (e.g. "https://host/api/v1").
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, InvalidUrlError(err.Error())
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, InvalidUrlError(baseURL)
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL:          parsed,
		tokens:           tokens,
		detailPath:       "/form-fills",
		previewClient:    &http.Client{Timeout: DefaultPreviewTimeout},
		generationClient: &http.Client{Timeout: DefaultGenerationTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BasePath returns the path component of the base URL without a trailing slash.
func (c *Client) BasePath() string {
	return strings.TrimRight(c.baseURL.Path, "/")
}

// buildUrl joins path onto the base URL and attaches query.
func (c *Client) buildUrl(path string, query url.Values) *url.URL {
	u := *c.baseURL
	u.Path = c.BasePath() + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	u.Fragment = ""
	return &u
}

// newRequest builds an authenticated GET request.
func (c *Client) newRequest(ctx context.Context, path string, query url.Values, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildUrl(path, query).String(), nil)
	if err != nil {
		return nil, HttpError(err.Error())
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, HttpError(err.Error())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req, nil
}
