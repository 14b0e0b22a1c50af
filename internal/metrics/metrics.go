package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the refresh cycle and the
// HTTP surface.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal    prometheus.Counter
	RefreshFailures prometheus.Counter
	RefreshDuration prometheus.Histogram
	RowsFetched     *prometheus.CounterVec
	TableRows       prometheus.Gauge
	RawRows         prometheus.Gauge
	SnapshotAge     prometheus.GaugeFunc

	RequestsTotal *prometheus.CounterVec
}

// New builds the collector set on a private registry. snapshotAt reports
// the fetch time of the current snapshot; zero means no snapshot yet.
func New(snapshotAt func() time.Time) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RefreshTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "adboard_refresh_cycles_total",
			Help: "Completed refresh cycles, successful or not.",
		}),
		RefreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "adboard_refresh_failures_total",
			Help: "Refresh cycles that failed and kept the prior snapshot.",
		}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adboard_refresh_duration_seconds",
			Help:    "Wall time of one fetch-aggregate-join pass.",
			Buckets: prometheus.DefBuckets,
		}),
		RowsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adboard_rows_fetched_total",
			Help: "Raw rows fetched from the spreadsheet, per range.",
		}, []string{"range"}),
		TableRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adboard_snapshot_table_rows",
			Help: "Aggregated records in the current snapshot.",
		}),
		RawRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adboard_snapshot_raw_rows",
			Help: "Raw records in the current snapshot.",
		}),
		SnapshotAge: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "adboard_snapshot_age_seconds",
			Help: "Age of the current snapshot, -1 when none exists.",
		}, func() float64 {
			at := snapshotAt()
			if at.IsZero() {
				return -1
			}
			return time.Since(at).Seconds()
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adboard_http_requests_total",
			Help: "HTTP requests by path and status code.",
		}, []string{"path", "status"}),
	}
}

// Handler exposes the registry for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
