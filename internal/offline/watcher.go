package offline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Connectivity reports whether the durable store is reachable.
type Connectivity interface {
	Online() bool
}

// ConnectivityFunc adapts a func to Connectivity.
type ConnectivityFunc func() bool

func (f ConnectivityFunc) Online() bool { return f() }

// Watcher drains the queue on each offline-to-online transition. While online it also drains
// items queued since the last drain, so an entry enqueued across a connectivity flip is not
// stranded. An item whose replay failed is retried only after the next transition.
type Watcher struct {
	queue    *Queue
	replayer Replayer
	conn     Connectivity
	log      zerolog.Logger

	mu         sync.Mutex
	wasOnline  bool
	drainCount int
	tried      map[string]struct{} // offline ids handed to a drain in the current online period
}

func NewWatcher(q *Queue, r Replayer, conn Connectivity, log zerolog.Logger) *Watcher {
	return &Watcher{
		queue:    q,
		replayer: r,
		conn:     conn,
		log:      log.With().Str("component", "offline_watcher").Logger(),
		tried:    map[string]struct{}{},
	}
}

// Run polls connectivity every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Observe(ctx)
		}
	}
}

// Observe samples connectivity once and drains synchronously when online with untried items.
// It reports whether a drain ran.
func (w *Watcher) Observe(ctx context.Context) bool {
	w.mu.Lock()
	online := w.conn.Online()
	if online && !w.wasOnline {
		clear(w.tried)
	}
	w.wasOnline = online
	if !online || !w.markUntried() {
		w.mu.Unlock()
		return false
	}
	w.drainCount++
	w.mu.Unlock()

	res, err := w.queue.Drain(ctx, w.replayer)
	ev := w.log.Info()
	if err != nil {
		ev = w.log.Error().Err(err)
	}
	ev.Int("replayed", len(res.Replayed)).Int("remaining", res.Remaining).Msg("offline queue drained")
	return true
}

// markUntried records every queued id as tried and reports whether any was new.
// Caller holds w.mu.
func (w *Watcher) markUntried() bool {
	fresh := false
	for _, it := range w.queue.Items() {
		if _, ok := w.tried[it.OfflineID]; !ok {
			w.tried[it.OfflineID] = struct{}{}
			fresh = true
		}
	}
	return fresh
}

// Drains returns how many drains have been started.
func (w *Watcher) Drains() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drainCount
}
