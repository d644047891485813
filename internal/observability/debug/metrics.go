package debug

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"homeworkbot/internal/homework"
)

const namespace = "homeworkbot"

// Metrics holds the poll loop instruments. It satisfies poller.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	cycles     *prometheus.CounterVec
	cycleTime  prometheus.Histogram
	deliveries *prometheus.CounterVec
	watermark  prometheus.Gauge
}

// NewMetrics creates a private registry with Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by outcome; kind is \"ok\" for successful cycles.",
		}, []string{"kind"}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Time spent fetching, validating and extracting one window.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Notification send attempts by result.",
		}, []string{"result"}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_seconds",
			Help:      "Lower bound (epoch seconds) of the next polled window.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.cycleTime, m.deliveries, m.watermark,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) ObserveCycle(kind homework.Kind, took time.Duration) {
	label := string(kind)
	if kind == homework.KindNone {
		label = "ok"
	}
	m.cycles.WithLabelValues(label).Inc()
	m.cycleTime.Observe(took.Seconds())
}

func (m *Metrics) ObserveDelivery(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) SetWatermark(v int64) { m.watermark.Set(float64(v)) }
