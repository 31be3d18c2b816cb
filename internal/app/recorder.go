package app

import (
	"context"
	"time"

	"streamrec/internal/checker"
	"streamrec/internal/eventbus"
	"streamrec/internal/metrics"
	"streamrec/internal/storage"
	logx "streamrec/pkg/logx"
)

// recorder is the hand-off point to the download pipeline: every live event
// is logged as downloadable and persisted.
type recorder struct {
	store   storage.Store
	metrics *metrics.Metrics
	log     logx.Logger
}

// run drains events until the channel is closed.
func (r *recorder) run(ctx context.Context, events <-chan eventbus.Event) {
	for ev := range events {
		le, ok := ev.Data.(checker.LiveEvent)
		if !ok {
			continue
		}
		r.metrics.LiveEvent(le.Plugin)
		r.log.Info("downloadable",
			logx.String("plugin", le.Plugin),
			logx.String("streamer", le.Target.Name),
			logx.String("url", le.Target.URL),
		)
		if r.store == nil {
			continue
		}
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := r.store.AppendLive(sctx, storage.LiveRecord{At: le.At, Plugin: le.Plugin, Streamer: le.Target.Name, URL: le.Target.URL})
		cancel()
		if err != nil {
			r.log.Warn("persist live event failed", logx.Err(err))
		}
	}
}
