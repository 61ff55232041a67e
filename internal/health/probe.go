package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ProbeFunc returns nil when the probed component is reachable.
type ProbeFunc func(ctx context.Context) error

// Probe is a HealthChecker that caches the outcome of a periodic ProbeFunc. It reports
// unhealthy until the first successful probe and logs only on transitions.
type Probe struct {
	name    string
	fn      ProbeFunc
	timeout time.Duration
	log     zerolog.Logger

	healthy atomic.Bool
	checked atomic.Bool
}

// NewProbe wraps fn. A non-positive timeout defaults to 2s.
func NewProbe(name string, fn ProbeFunc, timeout time.Duration, log zerolog.Logger) *Probe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Probe{name: name, fn: fn, timeout: timeout, log: log.With().Str("checker", name).Logger()}
}

func (p *Probe) Name() string    { return p.name }
func (p *Probe) IsHealthy() bool { return p.healthy.Load() }

// Check runs one probe under the probe timeout and updates the cached flag.
func (p *Probe) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(checkCtx)
	ok := err == nil
	prev := p.healthy.Swap(ok)
	first := !p.checked.Swap(true)

	switch {
	case !ok && (prev || first):
		p.log.Error().Stack().Err(err).Msg("health check failed")
	case ok && !prev && !first:
		p.log.Info().Msg("health check recovered")
	}
	return ok
}

// Start probes immediately, then every interval until ctx is done.
func (p *Probe) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
