package metrics

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolConns, dbPoolAcquires) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_connections",
			Help:      "Connections in the Postgres pool by state.",
		},
		[]string{"state"}, // total|idle|in_use
	)

	dbPoolAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_empty_acquires",
			Help:      "Cumulative acquires that had to wait for a free connection.",
		},
	)
)

// ObserveDBPool copies a pool snapshot into the gauges.
func ObserveDBPool(st *pgxpool.Stat) {
	if st == nil {
		return
	}
	dbPoolConns.WithLabelValues("total").Set(float64(st.TotalConns()))
	dbPoolConns.WithLabelValues("idle").Set(float64(st.IdleConns()))
	dbPoolConns.WithLabelValues("in_use").Set(float64(st.AcquiredConns()))
	dbPoolAcquires.Set(float64(st.EmptyAcquireCount()))
}
