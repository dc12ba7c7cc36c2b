package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittocache/pkg/cache"
)

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	gets        *prometheus.CounterVec
	getDuration prometheus.Histogram
	getBytes    prometheus.Histogram
	sets        prometheus.Counter
	setDuration prometheus.Histogram
	setBytes    prometheus.Histogram
	evictions   prometheus.Counter
	evictedByte prometheus.Counter
	byteCount   prometheus.Gauge
	entryCount  prometheus.Gauge
}

// NewCacheMetrics creates a Prometheus-backed cache.Metrics for the named
// cache. Returns nil when metrics are disabled, which callers pass straight
// through: a nil sink costs nothing.
func NewCacheMetrics(name string) cache.Metrics {
	reg := Registry()
	if reg == nil {
		return nil
	}

	labels := prometheus.Labels{"cache": name}

	durationBuckets := []float64{
		0.0001, // 100us
		0.0005,
		0.001,
		0.005,
		0.01,
		0.05,
		0.1,
		0.5, // large payloads on slow disks
		1,
	}
	sizeBuckets := []float64{
		1024,     // 1KiB
		16384,    // 16KiB
		131072,   // 128KiB
		1048576,  // 1MiB
		10485760, // 10MiB
	}

	return &cacheMetrics{
		gets: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittocache_gets_total",
				Help:        "Total read operations by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"}, // "hit", "miss"
		),
		getDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:        "dittocache_get_duration_seconds",
			Help:        "Duration of read operations",
			ConstLabels: labels,
			Buckets:     durationBuckets,
		}),
		getBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:        "dittocache_get_bytes",
			Help:        "Distribution of payload bytes returned by reads",
			ConstLabels: labels,
			Buckets:     sizeBuckets,
		}),
		sets: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "dittocache_sets_total",
			Help:        "Total write operations",
			ConstLabels: labels,
		}),
		setDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:        "dittocache_set_duration_seconds",
			Help:        "Duration of write operations",
			ConstLabels: labels,
			Buckets:     durationBuckets,
		}),
		setBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:        "dittocache_set_bytes",
			Help:        "Distribution of payload bytes written",
			ConstLabels: labels,
			Buckets:     sizeBuckets,
		}),
		evictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "dittocache_evictions_total",
			Help:        "Total entries removed by eviction or explicit removal",
			ConstLabels: labels,
		}),
		evictedByte: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "dittocache_evicted_bytes_total",
			Help:        "Total payload bytes reclaimed by removals",
			ConstLabels: labels,
		}),
		byteCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "dittocache_byte_count",
			Help:        "Tracked payload bytes in the cache",
			ConstLabels: labels,
		}),
		entryCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "dittocache_entry_count",
			Help:        "Entries in the cache index",
			ConstLabels: labels,
		}),
	}
}

func (m *cacheMetrics) ObserveGet(hit bool, bytes int64, d time.Duration) {
	outcome := "miss"
	if hit {
		outcome = "hit"
		m.getBytes.Observe(float64(bytes))
	}
	m.gets.WithLabelValues(outcome).Inc()
	m.getDuration.Observe(d.Seconds())
}

func (m *cacheMetrics) ObserveSet(bytes int64, d time.Duration) {
	m.sets.Inc()
	m.setBytes.Observe(float64(bytes))
	m.setDuration.Observe(d.Seconds())
}

func (m *cacheMetrics) ObserveEviction(bytes int64) {
	m.evictions.Inc()
	m.evictedByte.Add(float64(bytes))
}

func (m *cacheMetrics) SetByteCount(bytes int64) {
	m.byteCount.Set(float64(bytes))
}

func (m *cacheMetrics) SetEntryCount(n int) {
	m.entryCount.Set(float64(n))
}

// Ensure cacheMetrics implements cache.Metrics.
var _ cache.Metrics = (*cacheMetrics)(nil)
