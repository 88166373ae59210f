package plan

import (
	"sync"

	"tripnav/internal/model"
)

type metricsKey struct {
	Tenant   string
	UserID   string
	Strategy string
}

var (
	metricsMu sync.Mutex
	records   = map[metricsKey]model.StrategyMetrics{}
)

// RecordMetrics keeps the latest assembly metrics for one strategy run,
// queryable through the admin API.
func RecordMetrics(tenant, userID string, m model.StrategyMetrics) {
	metricsMu.Lock()
	records[metricsKey{Tenant: tenant, UserID: userID, Strategy: m.Strategy}] = m
	metricsMu.Unlock()
}

// MetricsFor returns the recorded metrics for one user, keyed by strategy.
func MetricsFor(tenant, userID string) map[string]model.StrategyMetrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := map[string]model.StrategyMetrics{}
	for k, v := range records {
		if k.Tenant == tenant && k.UserID == userID {
			out[k.Strategy] = v
		}
	}
	return out
}
