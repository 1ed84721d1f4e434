package monitor

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
)

var _ Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	cycles  metrics.Counter
	failed  metrics.Counter
	svc     Service
}

// MetricsMiddleware instruments the monitor service with Prometheus
// metrics: per-method counts and latencies plus per-cycle totals.
func MetricsMiddleware(svc Service, counter metrics.Counter, latency metrics.Histogram, cycles, failed metrics.Counter) Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		cycles:  cycles,
		failed:  failed,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) AddGroup(g Group) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "add_group").Add(1)
		mm.latency.With("method", "add_group").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.AddGroup(g)
}

func (mm *metricsMiddleware) Run(ctx context.Context, handler Handler) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "run").Add(1)
		mm.latency.With("method", "run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	// Count cycles and per-group failures as results flow by.
	wrapped := func(res CycleResult) error {
		mm.cycles.Add(1)
		if n := len(res.Failures); n > 0 {
			mm.failed.Add(float64(n))
		}
		return handler(res)
	}

	return mm.svc.Run(ctx, wrapped)
}

func (mm *metricsMiddleware) Stop() {
	defer func(begin time.Time) {
		mm.counter.With("method", "stop").Add(1)
		mm.latency.With("method", "stop").Observe(time.Since(begin).Seconds())
	}(time.Now())

	mm.svc.Stop()
}
