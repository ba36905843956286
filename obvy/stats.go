package cubeview

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal is the attached prometheus registry for cubeview itself.
// Each View gets its own so tests never collide on registration.
type StatsInternal struct {
	Registry *prometheus.Registry

	Operations   *prometheus.CounterVec
	WWW          *prometheus.CounterVec
	Projection   prometheus.Histogram
	TotalCells   prometheus.Gauge
	VisibleCells prometheus.Gauge
	Clients      prometheus.Gauge
	Exports      *prometheus.CounterVec
}

// NewStatsInternal creates the registry and its collectors
func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &StatsInternal{
		Registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cubeview_operations_total",
			Help: "OLAP operations requested, by operation and whether they applied",
		}, []string{"operation", "applied"}),
		WWW: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cubeview_http_requests_total",
			Help: "HTTP requests served, by status code and method",
		}, []string{"code", "method"}),
		Projection: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cubeview_projection_duration_seconds",
			Help:    "Time spent projecting the cube into cells",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		TotalCells: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cubeview_cells_total",
			Help: "Cells in the current projection",
		}),
		VisibleCells: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cubeview_cells_visible",
			Help: "Cells passing every slice and dice filter",
		}),
		Clients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cubeview_websocket_clients",
			Help: "Connected websocket clients",
		}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cubeview_exports_total",
			Help: "Snapshot exports, by output type and result",
		}, []string{"output", "result"}),
	}
}

// Handler serves this registry on /metrics
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

// RecWWW counts one HTTP response
func (s *StatsInternal) RecWWW(code, method string) {
	s.WWW.WithLabelValues(code, method).Inc()
}

// RecOperation counts one cube operation
func (s *StatsInternal) RecOperation(op string, applied bool) {
	label := "false"
	if applied {
		label = "true"
	}
	s.Operations.WithLabelValues(op, label).Inc()
}

// RecProjection records a projection's duration and cell counts
func (s *StatsInternal) RecProjection(seconds float64, total, visible int) {
	s.Projection.Observe(seconds)
	s.TotalCells.Set(float64(total))
	s.VisibleCells.Set(float64(visible))
}

// RecClients tracks the websocket client count
func (s *StatsInternal) RecClients(n int) {
	s.Clients.Set(float64(n))
}

// RecExport counts one snapshot export
func (s *StatsInternal) RecExport(output string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.Exports.WithLabelValues(output, result).Inc()
}
