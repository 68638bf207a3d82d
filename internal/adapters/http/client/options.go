package client

import (
	"net/http"
	"time"

	"github.com/okian/tdoa/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPollInterval sets the first delay between batch status polls. Later
// polls back off exponentially up to WithMaxPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxPollInterval caps the delay between polls and retries.
func WithMaxPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxPollInterval = d
		}
	}
}

// WithMaxElapsed bounds the total time spent retrying a submission or
// waiting for a batch. Zero waits until the context ends.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.maxElapsed = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
