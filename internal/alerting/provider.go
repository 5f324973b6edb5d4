// internal/alerting/provider.go
package alerting

import (
	"regexp"
	"strings"

	"github.com/FairForge/warden/internal/failover"
)

var metricNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// metricName turns "db-main" + "failed_nodes" into "db_main_failed_nodes"
func metricName(service, suffix string) string {
	base := metricNameSanitizer.ReplaceAllString(strings.ToLower(service), "_")
	return base + "_" + suffix
}

// FailoverMetricsProvider snapshots per-service node health from the
// failover manager. For each registered service it exposes:
//
//	<service>_node_count       total registered nodes
//	<service>_failed_nodes     nodes in the failed state
//	<service>_unhealthy_nodes  nodes failed or unhealthy
//	<service>_failed_ratio     failed nodes / node count
//	<service>_has_primary      1 if a healthy primary is resolvable
func FailoverMetricsProvider(mgr *failover.Manager) MetricsProvider {
	return func() map[string]float64 {
		metrics := make(map[string]float64)
		for _, service := range mgr.ListServices() {
			nodes, err := mgr.ListNodes(service)
			if err != nil {
				continue
			}

			var failed, unhealthy float64
			for _, node := range nodes {
				switch node.Status {
				case failover.StatusFailed:
					failed++
					unhealthy++
				case failover.StatusUnhealthy:
					unhealthy++
				}
			}

			metrics[metricName(service, "node_count")] = float64(len(nodes))
			metrics[metricName(service, "failed_nodes")] = failed
			metrics[metricName(service, "unhealthy_nodes")] = unhealthy
			if len(nodes) > 0 {
				metrics[metricName(service, "failed_ratio")] = failed / float64(len(nodes))
			}

			hasPrimary := 0.0
			if primary, err := mgr.GetPrimary(service); err == nil && primary.Status != failover.StatusFailed {
				hasPrimary = 1
			}
			metrics[metricName(service, "has_primary")] = hasPrimary
		}
		return metrics
	}
}
