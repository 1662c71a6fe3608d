package session

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cofind/internal/retryx"
)

// VisibilitySync re-reads the live session when the client comes back to
// the foreground and adopts it without going through HandleEvent.
type VisibilitySync struct {
	c            *Coordinator
	resume       chan struct{}
	probeTimeout time.Duration
}

func NewVisibilitySync(c *Coordinator) *VisibilitySync {
	return &VisibilitySync{
		c:            c,
		resume:       make(chan struct{}, 1),
		probeTimeout: 3 * time.Second,
	}
}

// Resync fetches the current session and adopts it with its profile, or
// clears the state when there is none. A failed fetch leaves the state as it
// is. Loading always ends false and initialized true.
func (v *VisibilitySync) Resync(ctx context.Context) {
	c := v.c
	log := c.log.With("component", "visibility_sync")
	defer c.update(func() {
		c.loading = false
		c.initialized = true
	})

	if c.provider == nil {
		return
	}

	res := retryx.Execute(ctx, c.exec, "resync_session", c.policy, c.provider.CurrentSession)
	if res.Err != nil {
		log.Warn(ctx, "resync session", "error", res.Err)
		return
	}
	s := res.Value
	if s == nil || s.User == nil {
		c.update(c.clearLocked)
		log.Debug(ctx, "no session on resume")
		return
	}
	if !c.update(func() { c.adoptLocked(s) }) {
		return
	}
	c.refetch(ctx, s.UserID())
}

// Resume requests a Resync from a running Watch loop. It never blocks;
// requests made while one is queued collapse into it.
func (v *VisibilitySync) Resume() {
	select {
	case v.resume <- struct{}{}:
	default:
	}
}

// Watch probes backend reachability every interval and calls Resync on every
// offline to online transition and on every Resume request. It starts out
// assuming the backend is reachable and returns when ctx is done.
func (v *VisibilitySync) Watch(ctx context.Context, probe func(ctx context.Context) error, interval time.Duration) {
	var tick <-chan time.Time
	if probe != nil && interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	online := true
	for {
		select {
		case <-ctx.Done():
			return

		case <-v.resume:
			v.Resync(ctx)

		case <-tick:
			pctx, cancel := context.WithTimeout(ctx, v.probeTimeout)
			err := probe(pctx)
			cancel()

			switch {
			case err != nil && online:
				online = false
				v.c.log.Info(ctx, "backend unreachable", "error", err)
			case err == nil && !online:
				online = true
				v.c.log.Info(ctx, "backend reachable again, resyncing")
				v.Resync(ctx)
			}
		}
	}
}
