package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goSession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goSession.MetricsSnapshot{
		Counters:      make(map[goSession.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms:    make(map[goSession.MetricID][]uint64, len(f.snapshot.Histograms)),
		HistogramSums: make(map[goSession.MetricID]time.Duration, len(f.snapshot.HistogramSums)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	for k, v := range f.snapshot.HistogramSums {
		out.HistogramSums[k] = v
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumValue(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := data.(metricdata.Sum[int64])
	if !ok || len(s.DataPoints) != 1 {
		t.Fatalf("expected int64 sum with one point, got %T", data)
	}
	return s.DataPoints[0].Value
}

func gaugeValue(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	g, ok := data.(metricdata.Gauge[int64])
	if !ok || len(g.DataPoints) != 1 {
		t.Fatalf("expected int64 gauge with one point, got %T", data)
	}
	return g.DataPoints[0].Value
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess: 3,
				goSession.MetricLoginGuarded: 2,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
			HistogramSums: map[goSession.MetricID]time.Duration{
				goSession.MetricLoginLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	if v := sumValue(t, got["gosession_login_success_total"]); v != 3 {
		t.Fatalf("login success: want 3, got %d", v)
	}
	if v := sumValue(t, got["gosession_login_guarded_total"]); v != 2 {
		t.Fatalf("login guarded: want 2, got %d", v)
	}
	if v := sumValue(t, got["gosession_audit_dropped_total"]); v != 1 {
		t.Fatalf("audit dropped: want 1, got %d", v)
	}
	if v := gaugeValue(t, got["gosession_login_latency_seconds_bucket_le_0_025"]); v != 3 {
		t.Fatalf("cumulative bucket: want 3, got %d", v)
	}
	if v := gaugeValue(t, got["gosession_login_latency_seconds_count"]); v != 8 {
		t.Fatalf("count: want 8, got %d", v)
	}
	sum, ok := got["gosession_login_latency_seconds_sum"].(metricdata.Gauge[float64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1.5 {
		t.Fatalf("unexpected sum %+v", got["gosession_login_latency_seconds_sum"])
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("gosession-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil manager, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

type noSessionAPI struct{}

func (noSessionAPI) Login(context.Context, goSession.LoginCredentials) (*goSession.AuthResponse, error) {
	return nil, &goSession.APIError{Kind: goSession.ErrAuthFailure, Status: 401}
}

func (noSessionAPI) VerifyOTP(context.Context, goSession.OTPVerification) (*goSession.AuthResponse, error) {
	return nil, goSession.ErrAuthFailure
}

func (noSessionAPI) Logout(context.Context) error { return nil }

func (noSessionAPI) GetCurrentUser(context.Context) (*goSession.User, error) { return nil, nil }

func (noSessionAPI) GetCachedUser() *goSession.User { return nil }

func TestExporterReadsManager(t *testing.T) {
	m, err := goSession.New().WithAuthAPI(noSessionAPI{}).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer m.Close()
	_, _ = m.Login(context.Background(), goSession.LoginCredentials{})
	_, _ = m.Login(context.Background(), goSession.LoginCredentials{})

	reader, provider := newReader()
	exp, err := NewOTelExporter(provider.Meter("gosession-test"), m)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer exp.Close()

	got := collect(t, reader)
	if v := sumValue(t, got["gosession_login_failure_total"]); v != 2 {
		t.Fatalf("login failure: want 2, got %d", v)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess: 1,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goSession.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
