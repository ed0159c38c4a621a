package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired refresh records.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewSweeper(svc *Service, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{svc: svc, interval: interval, log: log, now: time.Now}
}

// Run blocks until ctx is done. A non-positive interval returns immediately.
func (sw *Sweeper) Run(ctx context.Context) {
	if sw.interval <= 0 {
		return
	}
	t := time.NewTicker(sw.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sw.sweepOnce(ctx)
		}
	}
}

func (sw *Sweeper) sweepOnce(ctx context.Context) {
	start := sw.now()
	n, err := sw.svc.Sweep(ctx, start.UTC())
	if err != nil {
		sw.log.Warn("session.sweep.fail", "err", err, "deleted", n)
		return
	}
	if n > 0 {
		sw.log.Info("session.sweep", "deleted", n, "duration_ms", time.Since(start).Milliseconds())
	}
}
