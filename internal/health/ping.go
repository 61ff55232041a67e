package health

import "context"

// HealthPinger is implemented by components with a cheaper liveness check than their
// regular API. HealthPing returns nil when the component is reachable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// PingOr returns target's HealthPing when it has one, else fallback.
func PingOr(target any, fallback ProbeFunc) ProbeFunc {
	if p, ok := target.(HealthPinger); ok {
		return p.HealthPing
	}
	return fallback
}
