package metrics

import (
	"net/http"
	"time"

	"github.com/OFFIS-RIT/netswatch/pkg/common"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector of the sidecar on its own prometheus
// registry. It satisfies the observer interfaces of the etcd client, the
// graph client and the reconciler.
type Registry struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StoreRequestDuration *prometheus.HistogramVec

	TopologyBuildsTotal   *prometheus.CounterVec
	TopologyBuildDuration prometheus.Histogram
	TopologyNodes         *prometheus.GaugeVec

	ReconcileRunsTotal      *prometheus.CounterVec
	ReconcileOrphans        prometheus.Gauge
	ReconcileDeletedTotal   prometheus.Counter
	ReconcileGoneTotal      prometheus.Counter
	ReconcileFailedTotal    prometheus.Counter
	ReconcileLastSuccessful prometheus.Gauge

	registry *prometheus.Registry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	f := promauto.With(reg)

	r.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netswatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	r.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netswatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	r.StoreRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netswatch_store_request_duration_seconds",
			Help:    "Latency of key-value store requests by operation and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)

	r.TopologyBuildsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netswatch_topology_builds_total",
			Help: "Topology documents built, by status",
		},
		[]string{"status"},
	)
	r.TopologyBuildDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netswatch_topology_build_duration_seconds",
			Help:    "Time to fetch and build one topology document",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.TopologyNodes = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netswatch_topology_nodes",
			Help: "Nodes in the last successfully built topology, by type",
		},
		[]string{"type"},
	)

	r.ReconcileRunsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netswatch_reconcile_runs_total",
			Help: "Reconcile passes, by status",
		},
		[]string{"status"},
	)
	r.ReconcileOrphans = f.NewGauge(prometheus.GaugeOpts{
		Name: "netswatch_reconcile_orphans",
		Help: "Orphans found by the last reconcile pass",
	})
	r.ReconcileDeletedTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "netswatch_reconcile_deleted_total",
		Help: "Orphan node entries deleted",
	})
	r.ReconcileGoneTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "netswatch_reconcile_gone_total",
		Help: "Orphan node entries that were already gone on delete",
	})
	r.ReconcileFailedTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "netswatch_reconcile_failed_total",
		Help: "Orphan deletions rejected by the store",
	})
	r.ReconcileLastSuccessful = f.NewGauge(prometheus.GaugeOpts{
		Name: "netswatch_reconcile_last_success_timestamp_seconds",
		Help: "Unix time of the last reconcile pass that finished without error",
	})

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStoreRequest records one etcd round trip, op being "fetch" or
// "delete" and outcome "ok", "transport_error" or "status_<code>".
func (r *Registry) ObserveStoreRequest(op, outcome string, d time.Duration) {
	r.StoreRequestDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (r *Registry) ObserveTopologyBuild(status string, info common.Summary, d time.Duration) {
	r.TopologyBuildsTotal.WithLabelValues(status).Inc()
	r.TopologyBuildDuration.Observe(d.Seconds())
	if status != "ok" {
		return
	}
	r.TopologyNodes.WithLabelValues("total").Set(float64(info.Total))
	r.TopologyNodes.WithLabelValues(string(common.NodeTypeRouter)).Set(float64(info.Router))
	r.TopologyNodes.WithLabelValues(string(common.NodeTypeNode)).Set(float64(info.Node))
	r.TopologyNodes.WithLabelValues(string(common.NodeTypeInternal)).Set(float64(info.Internal))
}

func (r *Registry) ObserveReconcile(report *reconcile.Report, err error) {
	if err != nil {
		r.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return
	}
	r.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	if report == nil {
		return
	}
	r.ReconcileOrphans.Set(float64(len(report.Orphans)))
	r.ReconcileDeletedTotal.Add(float64(len(report.Deleted)))
	r.ReconcileGoneTotal.Add(float64(len(report.Gone)))
	r.ReconcileFailedTotal.Add(float64(len(report.Failed)))
	r.ReconcileLastSuccessful.Set(float64(report.FinishedAt.Unix()))
}
