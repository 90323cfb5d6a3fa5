package adminapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the broker's Prometheus instrumentation. It is registered
// against its own registry, not the global one, so tests can spin up more
// than one instance without a "duplicate metrics collector" panic.
type Metrics struct {
	AppendsTotal     *prometheus.CounterVec
	AppendBytesTotal *prometheus.CounterVec
	PollsTotal       *prometheus.CounterVec
	SegmentRolls     *prometheus.CounterVec
	PollLatency      *prometheus.HistogramVec
	AppendLatency    *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics builds and registers a fresh set of collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		AppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidelog_appends_total",
				Help: "Total number of messages appended to a partition.",
			},
			[]string{"stream", "topic"},
		),
		AppendBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidelog_append_bytes_total",
				Help: "Total payload bytes appended to a partition.",
			},
			[]string{"stream", "topic"},
		),
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidelog_polls_total",
				Help: "Total number of poll requests served.",
			},
			[]string{"stream", "topic"},
		),
		SegmentRolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidelog_segment_rolls_total",
				Help: "Total number of times a partition rolled to a new segment.",
			},
			[]string{"stream", "topic"},
		),
		PollLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tidelog_poll_duration_seconds",
				Help:    "Latency of poll requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stream", "topic"},
		),
		AppendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tidelog_append_duration_seconds",
				Help:    "Latency of append (send) requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stream", "topic"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.AppendsTotal,
		m.AppendBytesTotal,
		m.PollsTotal,
		m.SegmentRolls,
		m.PollLatency,
		m.AppendLatency,
	)
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// ObserveAppend records one successful Send call.
func (m *Metrics) ObserveAppend(stream, topic string, messages int, bytes int, seconds float64) {
	m.AppendsTotal.WithLabelValues(stream, topic).Add(float64(messages))
	m.AppendBytesTotal.WithLabelValues(stream, topic).Add(float64(bytes))
	m.AppendLatency.WithLabelValues(stream, topic).Observe(seconds)
}

// ObservePoll records one Poll call, successful or empty.
func (m *Metrics) ObservePoll(stream, topic string, seconds float64) {
	m.PollsTotal.WithLabelValues(stream, topic).Inc()
	m.PollLatency.WithLabelValues(stream, topic).Observe(seconds)
}

// ObserveSegmentRoll records a partition starting a new segment.
func (m *Metrics) ObserveSegmentRoll(stream, topic string) {
	m.SegmentRolls.WithLabelValues(stream, topic).Inc()
}

// Handler exposes the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
