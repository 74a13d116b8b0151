package tcl

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestTierMetricsSnapshotAndReset(t *testing.T) {
	m := NewTierMetrics()
	m.RecordHit()
	m.RecordHit()
	m.RecordMiss()
	m.RecordResponseNS(300)
	m.RecordSize(5)
	m.RecordSize(3)

	snap := m.Snapshot()
	if snap.Hits != 2 || snap.Misses != 1 || snap.Requests != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.PeakSize != 5 {
		t.Fatalf("expected peak size 5, got %d", snap.PeakSize)
	}
	if snap.CurrentSize != 3 {
		t.Fatalf("expected current size 3, got %d", snap.CurrentSize)
	}

	m.Reset()
	snap = m.Snapshot()
	if snap.Hits != 0 || snap.Misses != 0 || snap.Requests != 0 {
		t.Fatalf("expected counters reset to zero, got %+v", snap)
	}
	if snap.PeakSize != 5 || snap.CurrentSize != 3 {
		t.Fatalf("expected size gauges to survive Reset, got %+v", snap)
	}
}

func TestAggregateSnapshotWeightsByRequestCount(t *testing.T) {
	fast := Snapshot{Requests: 100, AvgResponseTime: 10}
	slow := Snapshot{Requests: 1, AvgResponseTime: 10000}

	agg := AggregateSnapshot(fast, slow)
	if agg.Requests != 101 {
		t.Fatalf("expected aggregate requests 101, got %d", agg.Requests)
	}

	// A plain arithmetic mean of the two averages would be ~5005; the
	// request-weighted mean should stay close to the high-volume tier.
	if agg.AvgResponseTime > 110 {
		t.Fatalf("expected weighted average close to the high-volume tier, got %f", agg.AvgResponseTime)
	}
}

func TestAggregateSnapshotPeakSizeIsMax(t *testing.T) {
	a := Snapshot{PeakSize: 10}
	b := Snapshot{PeakSize: 50}
	agg := AggregateSnapshot(a, b)
	if agg.PeakSize != 50 {
		t.Fatalf("expected peak_size to take the max across tiers, got %d", agg.PeakSize)
	}
}

func TestPrometheusCollectorDescribeAndCollect(t *testing.T) {
	m := NewTierMetrics()
	m.RecordHit()
	m.RecordMiss()
	c := NewPrometheusCollector("l1", m)

	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)
	var descCount int
	for range descs {
		descCount++
	}
	if descCount != 6 {
		t.Fatalf("expected 6 descriptors, got %d", descCount)
	}

	metrics := make(chan prometheus.Metric, 16)
	c.Collect(metrics)
	close(metrics)
	var metricCount int
	for range metrics {
		metricCount++
	}
	if metricCount != 6 {
		t.Fatalf("expected 6 collected metrics, got %d", metricCount)
	}
}

func TestPrometheusCollectorImplementsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector("l1", NewTierMetrics())
	if err := reg.Register(c); err != nil {
		t.Fatalf("expected collector to register cleanly: %v", err)
	}
}
