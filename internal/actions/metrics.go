package actions

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"notifymanager/internal/policy"
)

var actionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifymanager_actions_received_total",
		Help: "Inbound action events by action id. Ids outside the built-in templates count as \"other\".",
	},
	[]string{"action"},
)

var knownActions = policy.KnownActionIDs()

// metricAction bounds label cardinality.
func metricAction(a string) string {
	if slices.Contains(knownActions, a) {
		return a
	}
	return "other"
}
