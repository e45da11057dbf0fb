package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Client is a REST client for a single quote endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	// apiKeyHeader and apiKeyQuery choose where the key is sent.
	// With neither set the key goes in "Authorization: Bearer".
	apiKeyHeader string
	apiKeyQuery  string

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   1,
		retryBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewPrimaryClient creates a client for the primary quote schema. The key
// is sent in the X-Finnhub-Token header.
func NewPrimaryClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	return NewClient(baseURL, apiKey, append([]ClientOption{WithAPIKeyHeader("X-Finnhub-Token")}, opts...)...)
}

// NewSecondaryClient creates a client for the Global Quote schema. The key
// is sent as the apikey query parameter.
func NewSecondaryClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	return NewClient(baseURL, apiKey, append([]ClientOption{WithAPIKeyQuery("apikey")}, opts...)...)
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIKeyHeader sends the API key verbatim in the named header.
func WithAPIKeyHeader(name string) ClientOption {
	return func(c *Client) {
		c.apiKeyHeader = name
		c.apiKeyQuery = ""
	}
}

// WithAPIKeyQuery sends the API key as the named query parameter.
func WithAPIKeyQuery(param string) ClientOption {
	return func(c *Client) {
		c.apiKeyQuery = param
		c.apiKeyHeader = ""
	}
}

// BaseURL returns the endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}
