// Package fetch is the HTTP GET shared by the built-in checker plugins.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"streamrec/internal/checker"
	"streamrec/internal/config"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "streamrec/1.0"
	maxBody          = 1 << 20
)

// Options is embedded in plugin config sections.
type Options struct {
	Timeout   string            `json:"timeout,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type Client struct {
	hc      *http.Client
	ua      string
	headers map[string]string
}

func New(o Options) (*Client, error) {
	timeout, err := config.ParseDurationOrDefault("timeout", o.Timeout, defaultTimeout)
	if err != nil {
		return nil, err
	}
	ua := strings.TrimSpace(o.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{hc: &http.Client{Timeout: timeout}, ua: ua, headers: o.Headers}, nil
}

// Response is a fetched page, body capped at 1 MiB.
type Response struct {
	Status int
	Body   []byte
}

// Get fetches url. Network failures, 429 and 5xx come back wrapped in
// checker.ErrTransient; other statuses are returned for the caller to judge.
func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("User-Agent", c.ua)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return Response{}, checker.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return Response{Status: resp.StatusCode}, checker.Transient(fmt.Errorf("http status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Response{}, checker.Transient(err)
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}
