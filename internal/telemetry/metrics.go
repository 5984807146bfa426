// Package telemetry exposes Prometheus collectors for the measurement loop.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tempstation/internal/threshold"
)

const namespace = "tempstation"

type Metrics struct {
	registry *prometheus.Registry

	cycles       *prometheus.CounterVec
	cycleSeconds prometheus.Histogram
	lastCycle    prometheus.Gauge
	reading      *prometheus.GaugeVec
	outOfRange   *prometheus.CounterVec
	reports      *prometheus.CounterVec
	info         *prometheus.GaugeVec
}

// New registers every collector on a private registry together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Measurement cycles by result.",
		}, []string{"result"}),
		cycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a measurement cycle including signalling.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40},
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last finished cycle.",
		}),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Last measured value per metric.",
		}, []string{"metric"}),
		outOfRange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "out_of_range_total",
			Help:      "Readings outside their configured range.",
		}, []string{"metric"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Report attempts by sink and result.",
		}, []string{"sink", "result"}),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "station_info",
			Help:      "Constant 1, labelled with the station identity.",
		}, []string{"station_id", "hardware_id", "board", "version"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.cycleSeconds,
		m.lastCycle,
		m.reading,
		m.outOfRange,
		m.reports,
		m.info,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SetInfo(stationID, hardwareID, board, version string) {
	m.info.Reset()
	m.info.WithLabelValues(stationID, hardwareID, board, version).Set(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCycle records a finished cycle. err is the sensor error, if any.
func (m *Metrics) ObserveCycle(end time.Time, took time.Duration, err error) {
	m.cycles.WithLabelValues(result(err)).Inc()
	m.cycleSeconds.Observe(took.Seconds())
	m.lastCycle.Set(float64(end.Unix()))
}

func (m *Metrics) ObserveVerdicts(vs []threshold.Verdict) {
	for _, v := range vs {
		metric := string(v.Measurement.Metric)
		m.reading.WithLabelValues(metric).Set(v.Measurement.Value)
		if v.Status == threshold.OutOfRange {
			m.outOfRange.WithLabelValues(metric).Inc()
		}
	}
}

func (m *Metrics) ObserveReport(sink string, err error) {
	m.reports.WithLabelValues(sink, result(err)).Inc()
}
