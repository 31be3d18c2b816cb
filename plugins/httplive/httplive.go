// Package httplive is the catch-all checker: a page is live when it answers
// 2xx and, if configured, its body matches live_regex.
package httplive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"streamrec/internal/checker"
	"streamrec/plugins/internal/fetch"
)

const Name = "httplive"

var match = regexp.MustCompile(`(?i)^https?://`)

type Config struct {
	fetch.Options
	// LiveRegex must match the page body for the target to count as live.
	LiveRegex string `json:"live_regex,omitempty"`
}

type Checker struct {
	c  *fetch.Client
	re *regexp.Regexp
}

func Plugin() checker.Plugin {
	return checker.Plugin{Name: Name, Match: match, New: New}
}

func New(raw json.RawMessage) (checker.Checker, error) {
	var cfg Config
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("httplive config: %w", err)
		}
	}
	c, err := fetch.New(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("httplive config: %w", err)
	}
	h := &Checker{c: c}
	if s := strings.TrimSpace(cfg.LiveRegex); s != "" {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("httplive config: live_regex: %w", err)
		}
		h.re = re
	}
	return h, nil
}

func (h *Checker) Check(ctx context.Context, t checker.Target) (bool, error) {
	resp, err := h.c.Get(ctx, t.URL)
	if err != nil {
		return false, err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return false, nil
	}
	if h.re == nil {
		return true, nil
	}
	return h.re.Match(resp.Body), nil
}
