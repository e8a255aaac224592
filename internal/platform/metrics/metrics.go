// Package metrics expone los contadores del roster en formato Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patient_roster"

const (
	ResultOK        = "ok"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// Recorder agrupa todas las métricas sobre un registry propio.
type Recorder struct {
	reg *prometheus.Registry

	mutations  *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	sessions   prometheus.Gauge
	storeOps   *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Mutation intents processed by session controllers.",
		}, []string{"op", "result"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_rejections_total",
			Help:      "Writes rejected by the duplicate-detection rule.",
		}, []string{"op"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open presentation sessions.",
		}),
		storeOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_seconds",
			Help:      "Latency of record store calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op", "result"}),
	}

	r.reg.MustRegister(
		r.mutations,
		r.duplicates,
		r.sessions,
		r.storeOps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveStore implementa patients.StoreObserver.
func (r *Recorder) ObserveStore(op string, elapsed time.Duration, err error) {
	r.storeOps.WithLabelValues(op, resultOf(err)).Observe(elapsed.Seconds())
}

func (r *Recorder) Mutation(op, result string) {
	r.mutations.WithLabelValues(op, result).Inc()
	if result == ResultDuplicate {
		r.duplicates.WithLabelValues(op).Inc()
	}
}

func (r *Recorder) SessionOpened() { r.sessions.Inc() }
func (r *Recorder) SessionClosed() { r.sessions.Dec() }

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
