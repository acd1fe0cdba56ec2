package graph

import (
	"net/http"

	"github.com/okian/kpisync/internal/adapters/cache"
	"github.com/okian/kpisync/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the base HTTP client used for token and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Client) {
		if c != nil {
			g.base = c
		}
	}
}

// WithBaseURL overrides the Graph API root, e.g. for tests.
func WithBaseURL(url string) Option {
	return func(g *Client) {
		if url != "" {
			g.baseURL = url
		}
	}
}

// WithCache shares a path cache across clients.
func WithCache(c cache.PathCache) Option {
	return func(g *Client) {
		if c != nil {
			g.paths = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Client) {
		if l != nil {
			g.log = l
		}
	}
}
