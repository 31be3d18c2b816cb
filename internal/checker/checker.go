package checker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransient marks a check failure worth retrying on the next round
// (network hiccup, 5xx, rate limiting). Anything else ends the worker.
var ErrTransient = errors.New("transient check failure")

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Target is one streamer URL assigned to a plugin.
type Target struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Checker answers whether a target is live right now.
type Checker interface {
	Check(ctx context.Context, t Target) (live bool, err error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, t Target) (bool, error)

func (f CheckerFunc) Check(ctx context.Context, t Target) (bool, error) { return f(ctx, t) }

// LiveEvent is the payload of eventbus.TypeStreamLive: a target that was not
// live on the previous round is live now and can be downloaded.
type LiveEvent struct {
	Plugin string    `json:"plugin"`
	Target Target    `json:"target"`
	At     time.Time `json:"at"`
}
