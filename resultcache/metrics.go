package resultcache

import "time"

// MetricsCollector receives result cache counters and execution timings.
type MetricsCollector interface {
	IncrementCounter(metric string, labels map[string]string)
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
}

const (
	metricHits            = "resultcache_hits_total"
	metricMisses          = "resultcache_misses_total"
	metricRefreshes       = "resultcache_refreshes_total"
	metricFailures        = "resultcache_failures_total"
	metricExecuteDuration = "resultcache_execute_duration"
)

func (c *ResultCache) count(metric string) {
	if c.metrics != nil {
		c.metrics.IncrementCounter(metric, c.labels())
	}
}

func (c *ResultCache) labels() map[string]string {
	return map[string]string{"scope": c.id}
}
