// Package httputil provides the shared HTTP client used for thumbnail
// fetches, the first-run network probe, and tool bootstrap downloads.
package httputil

import (
	"net/http"
	"time"
)

// userAgent identifies these auxiliary requests; yt-dlp sends its own
// headers for the actual media transfer.
const userAgent = "vidfetch"

type ClientConfig struct {
	Timeout   time.Duration
	KATimeout time.Duration
}

type Client struct {
	client *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 60 * time.Second
	}
	transport := &http.Transport{
		IdleConnTimeout:     cfg.KATimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true,
	}
	return &Client{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return c.client.Do(req)
}
