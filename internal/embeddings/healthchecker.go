package embeddings

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/health"
)

var errEmptyProbeVector = errors.New("embedder returned an empty vector")

// ProviderHealthChecker probes an embeddings provider. Providers without HealthPing are
// probed with a short Embed call.
type ProviderHealthChecker struct {
	*health.Probe
}

func NewProviderHealthChecker(p Provider, log zerolog.Logger, probeTimeout time.Duration) *ProviderHealthChecker {
	fallback := func(ctx context.Context) error {
		vec, err := p.Embed(ctx, "health check probe")
		if err != nil {
			return err
		}
		if len(vec) == 0 {
			return errEmptyProbeVector
		}
		return nil
	}
	return &ProviderHealthChecker{Probe: health.NewProbe("embedder", health.PingOr(p, fallback), probeTimeout, log)}
}
