package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a session counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that ended authenticated.
	MetricLoginSuccess MetricID = iota
	// MetricLoginOTPRequired counts logins that opened an OTP challenge.
	MetricLoginOTPRequired
	// MetricLoginMFARequired counts logins that ended MFA-pending.
	MetricLoginMFARequired
	// MetricLoginFailure counts failed Login and VerifyOTP calls.
	MetricLoginFailure
	// MetricLoginRateLimited counts failures classified as rate limited.
	MetricLoginRateLimited
	// MetricLoginGuarded counts Login calls answered by the in-flight OTP guard.
	MetricLoginGuarded
	MetricOTPVerifySuccess
	MetricOTPVerifyFailure
	MetricLogout
	// MetricLogoutRemoteFailure counts swallowed remote logout errors.
	MetricLogoutRemoteFailure
	MetricSessionCheck
	// MetricSessionCheckFallback counts checks that kept a cached user after an error.
	MetricSessionCheckFallback
	// MetricSessionCheckCleared counts checks that ended anonymous.
	MetricSessionCheckCleared
	MetricPermissionFetch
	MetricPermissionFetchFailure
	MetricPermissionNoFirm
	MetricPermissionDerived
	// MetricFeatureAccessPatched counts bridge events that changed email verification.
	MetricFeatureAccessPatched
	// MetricFeatureAccessIgnored counts bridge events that matched cached values.
	MetricFeatureAccessIgnored
	MetricPersistFailure
	// MetricLoginLatency is the Login/VerifyOTP round-trip histogram.
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sumNs   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil or disabled *Metrics ignores writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time read of every counter. Histograms hold
// per-bucket (non-cumulative) counts; HistogramSums holds the observed total.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricLoginLatency carries a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLoginLatency {
		return
	}
	if d < 0 {
		d = 0
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	atomic.AddUint64(&m.histograms[id].sumNs, uint64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricLoginLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
		s.HistogramSums[MetricLoginLatency] = time.Duration(atomic.LoadUint64(&m.histograms[MetricLoginLatency].sumNs))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
