package messaging

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is the unread-badge refresh cadence.
const DefaultPollInterval = 30 * time.Second

// UnreadRefresher is the subset of Store the poller drives.
type UnreadRefresher interface {
	RefreshUnread(ctx context.Context) error
}

// Poller re-derives the unread count on a fixed interval, independent of which
// view is active. No backoff, no jitter: at this scale a flat interval is
// enough, and failures simply wait for the next tick.
type Poller struct {
	Store UnreadRefresher
	// Interval between refreshes; DefaultPollInterval when zero.
	Interval time.Duration
	// Authenticated gates every tick. While it reports false the poller stays
	// idle and no backend call is made.
	Authenticated func() bool
	Logger        *slog.Logger
}

// Run polls until the context is cancelled. Callers own the context: it is
// cancelled at sign-out or teardown so timers never outlive the session.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.Authenticated != nil && !p.Authenticated() {
				continue
			}
			if err := p.Store.RefreshUnread(ctx); err != nil && p.Logger != nil {
				p.Logger.Debug("unread poll failed", "error", err)
			}
		}
	}
}
