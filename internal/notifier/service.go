package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"streamrec/internal/checker"
	"streamrec/internal/eventbus"
	"streamrec/internal/storage"
	logx "streamrec/pkg/logx"
)

var ErrDisabled = errors.New("notifier disabled")

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type Config struct {
	RatePerSec    float64
	DedupWindow   time.Duration
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.DedupWindow < 0 {
		c.DedupWindow = 0
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
}

// DefaultConfig is what the orchestrator uses for the Telegram sink.
func DefaultConfig() Config {
	return Config{RatePerSec: 1, DedupWindow: 10 * time.Minute, RetryMax: 3}
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
	Err  string    `json:"err,omitempty"`
}

type Service struct {
	cfg     Config
	sender  Sender
	store   storage.Store
	log     logx.Logger
	limiter *rate.Limiter

	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender Sender, store storage.Store, log logx.Logger) *Service {
	cfg.applyDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		sender:  sender,
		store:   store,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		dedup:   map[string]time.Time{},
	}
}

// Run consumes events until ctx is done or the channel is closed.
func (s *Service) Run(ctx context.Context, events <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			le, ok := ev.Data.(checker.LiveEvent)
			if !ok {
				continue
			}
			if err := s.Notify(ctx, le); err != nil && ctx.Err() == nil {
				s.log.Warn("live notification failed", logx.String("plugin", le.Plugin), logx.String("target", le.Target.Name), logx.Err(err))
			}
		}
	}
}

// Notify renders and sends one live event unless it is a repeat within the
// dedup window.
func (s *Service) Notify(ctx context.Context, le checker.LiveEvent) error {
	if s.sender == nil {
		return ErrDisabled
	}
	key := dedupKey(le)
	if !s.allow(ctx, key) {
		s.log.Debug("live notification suppressed", logx.String("key", key))
		return nil
	}

	text := Render(le)
	err := s.sendWithRetry(ctx, text)
	item := HistoryItem{At: time.Now(), Text: text}
	if err != nil {
		item.Err = err.Error()
	}
	s.appendHistory(item)
	return err
}

func (s *Service) sendWithRetry(ctx context.Context, text string) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.RetryBase
	eb.MaxInterval = s.cfg.RetryMaxDelay
	eb.MaxElapsedTime = 0
	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(s.cfg.RetryMax))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		cctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()
		err := s.sender.Send(cctx, text)
		if err != nil {
			s.log.Debug("notify send failed", logx.Int("attempt", attempt), logx.Err(err))
		}
		return err
	}, b)
}

// allow reports whether key may be sent now and, if so, records the
// suppression deadline in memory and in storage.
func (s *Service) allow(ctx context.Context, key string) bool {
	if s.cfg.DedupWindow <= 0 {
		return true
	}
	now := time.Now()

	s.dmu.Lock()
	until, ok := s.dedup[key]
	s.dmu.Unlock()
	if !ok && s.store != nil {
		if u, found, err := s.store.GetDedup(ctx, key); err == nil && found {
			until, ok = u, true
		}
	}
	if ok && now.Before(until) {
		return false
	}

	next := now.Add(s.cfg.DedupWindow)
	s.dmu.Lock()
	s.dedup[key] = next
	for k, u := range s.dedup {
		if now.After(u) {
			delete(s.dedup, k)
		}
	}
	s.dmu.Unlock()
	if s.store != nil {
		if err := s.store.PutDedup(ctx, key, next); err != nil {
			s.log.Debug("dedup persist failed", logx.Err(err))
		}
	}
	return true
}

func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > 100 {
		s.history = s.history[len(s.history)-100:]
	}
	s.hmu.Unlock()
}

func dedupKey(le checker.LiveEvent) string {
	return "live|" + le.Plugin + "|" + le.Target.Name + "|" + le.Target.URL
}

// Render formats the operator message for a live event.
func Render(le checker.LiveEvent) string {
	return fmt.Sprintf("🔴 %s is live\n%s\n(plugin %s, %s)", le.Target.Name, le.Target.URL, le.Plugin, le.At.Format("2006-01-02 15:04:05"))
}
