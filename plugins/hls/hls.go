// Package hls checks HLS playlists: a stream is live while its playlist is
// served and has not been closed with #EXT-X-ENDLIST.
package hls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"streamrec/internal/checker"
	"streamrec/plugins/internal/fetch"
)

const Name = "hls"

var match = regexp.MustCompile(`(?i)^https?://.+\.m3u8(\?.*)?$`)

type Config struct {
	fetch.Options
}

type Checker struct {
	c *fetch.Client
}

// Plugin returns the catalog entry.
func Plugin() checker.Plugin {
	return checker.Plugin{Name: Name, Match: match, New: New}
}

func New(raw json.RawMessage) (checker.Checker, error) {
	var cfg Config
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("hls config: %w", err)
		}
	}
	c, err := fetch.New(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("hls config: %w", err)
	}
	return &Checker{c: c}, nil
}

func (h *Checker) Check(ctx context.Context, t checker.Target) (bool, error) {
	resp, err := h.c.Get(ctx, t.URL)
	if err != nil {
		return false, err
	}
	if resp.Status != http.StatusOK {
		return false, nil
	}
	body := bytes.TrimSpace(resp.Body)
	if !bytes.HasPrefix(body, []byte("#EXTM3U")) {
		return false, nil
	}
	return !bytes.Contains(body, []byte("#EXT-X-ENDLIST")), nil
}
