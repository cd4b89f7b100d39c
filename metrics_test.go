package auth

import (
	"sync"
	"testing"
)

func TestMetrics_CountsConcurrently(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(MetricLoginSuccess); got != workers*perWorker {
		t.Fatalf("expected %d, got %d", workers*perWorker, got)
	}
}

func TestMetrics_DisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)
	if m.Get(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics recorded a count")
	}
	if m.Snapshot() != nil {
		t.Fatal("disabled metrics returned a snapshot")
	}
}

func TestMetrics_SnapshotNames(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRefreshReuseDetected)
	m.Add(MetricTokensPurged, 7)

	snap := m.Snapshot()
	if snap["refresh_reuse_detected"] != 1 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
	if snap["tokens_purged"] != 7 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}

