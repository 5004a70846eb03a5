package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequests) }

// cache: plan|plan_duration, result: hit|miss|error
var cacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Redis read-through cache lookups by cache and result.",
	},
	[]string{"cache", "result"},
)

func IncCacheRequest(cache, result string) {
	cacheRequests.WithLabelValues(norm(cache), norm(result)).Inc()
}
