package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single probe when Run is given no timeout.
const DefaultCheckTimeout = 10 * time.Second

// maxParallelChecks caps the number of probes in flight.
const maxParallelChecks = 4

// Check probes one dependency.
type Check struct {
	Name string
	// Optional checks report degraded instead of unhealthy on failure.
	Optional bool
	Probe    func(ctx context.Context) error
}

// Run executes the checks concurrently, each bounded by timeout, and
// aggregates their statuses under system. Probe failures never abort the
// other probes.
func Run(ctx context.Context, system string, checks []Check, timeout time.Duration) Status {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}

	monitor := NewMonitor()
	var g errgroup.Group
	g.SetLimit(maxParallelChecks)

	for _, check := range checks {
		check := check
		g.Go(func() error {
			monitor.Update(check.Name, runCheck(ctx, check, timeout))
			return nil
		})
	}
	_ = g.Wait()

	return monitor.AggregateHealth(system)
}

func runCheck(ctx context.Context, check Check, timeout time.Duration) Status {
	if check.Probe == nil {
		return NewHealthy(check.Name, "not configured")
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := check.Probe(checkCtx)
	return FromError(check.Name, err, check.Optional).WithLatency(time.Since(start))
}
