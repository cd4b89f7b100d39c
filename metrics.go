package auth

import "sync/atomic"

// MetricID indexes one in-process counter.
type MetricID uint8

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricAccountLocked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricLogout
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricSessionsRevoked
	MetricTokensPurged
	MetricAuditDropped

	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricAccountLocked:        "account_locked",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshReuseDetected: "refresh_reuse_detected",
	MetricLogout:               "logout",
	MetricRegisterSuccess:      "register_success",
	MetricRegisterDuplicate:    "register_duplicate",
	MetricSessionsRevoked:      "sessions_revoked",
	MetricTokensPurged:         "tokens_purged",
	MetricAuditDropped:         "audit_dropped",
}

// Metrics holds lock-free counters. A disabled instance turns every method
// into a no-op so call sites stay unconditional.
type Metrics struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].Add(delta)
}

func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a point-in-time copy of all counters keyed by name.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil || !m.enabled {
		return nil
	}
	out := make(map[string]uint64, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		out[metricNames[id]] = m.counters[id].Load()
	}
	return out
}
