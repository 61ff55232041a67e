package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/health"
	"github.com/echovault/echovault/internal/model"
)

// StoreHealthChecker probes store reachability. The offline watcher reads it as the
// connectivity signal, so a failed probe means "offline".
type StoreHealthChecker struct {
	*health.Probe
}

// NewStoreHealthChecker pings stores that implement health.HealthPinger and otherwise
// lists a user that never exists.
func NewStoreHealthChecker(st Store, log zerolog.Logger, probeTimeout time.Duration) *StoreHealthChecker {
	fallback := func(ctx context.Context) error {
		_, err := st.Entries().List(ctx, model.ListEntriesRequest{UserID: "__health_check__", Limit: 1})
		return err
	}
	return &StoreHealthChecker{Probe: health.NewProbe("store", health.PingOr(st, fallback), probeTimeout, log)}
}

// Online is IsHealthy under the name the offline watcher expects.
func (hc *StoreHealthChecker) Online() bool { return hc.IsHealthy() }
