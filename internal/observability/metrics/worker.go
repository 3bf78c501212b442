package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docpipe"

// PipelineMetrics implements usecase.ProcessingObserver.
type PipelineMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        prometheus.Histogram
	queueDepth      prometheus.Gauge
	modelAttempts   *prometheus.CounterVec
	recoveryTotal   *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "documents_processed_total",
			Help:        "Total processing attempts by outcome.",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "document_duration_seconds",
			Help:        "Processing attempt duration in seconds by outcome.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "documents_in_flight",
			Help:        "Documents currently being processed.",
			ConstLabels: labels,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "queue_lag_seconds",
			Help:        "Delay between submission and processing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: labels,
		},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "queue_depth",
			Help:        "Document ids waiting in the work queue.",
			ConstLabels: labels,
		},
	)
	modelAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "model",
			Name:        "attempts_total",
			Help:        "Model invocation attempts by operation and result.",
			ConstLabels: labels,
		},
		[]string{"operation", "result"},
	)
	recoveryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "recovery",
			Name:        "resubmitted_total",
			Help:        "Documents resubmitted by the recovery scanner.",
			ConstLabels: labels,
		},
		[]string{"reason"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, queueDepth, modelAttempts, recoveryTotal)

	return &PipelineMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		queueDepth:      queueDepth,
		modelAttempts:   modelAttempts,
		recoveryTotal:   recoveryTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry lets other collectors, such as the HTTP metrics, share the endpoint.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *PipelineMetrics) FinishDocument(outcome string, duration time.Duration) {
	m.processInFlight.Dec()
	if outcome == "" {
		outcome = "unknown"
	}
	m.processTotal.WithLabelValues(outcome).Inc()
	m.processDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func (m *PipelineMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// ObserveModelAttempt matches resilience.Config.OnAttempt.
func (m *PipelineMetrics) ObserveModelAttempt(operation string, _ int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.modelAttempts.WithLabelValues(operation, result).Inc()
}

func (m *PipelineMetrics) AddRecovered(reason string, n int) {
	if n <= 0 {
		return
	}
	m.recoveryTotal.WithLabelValues(reason).Add(float64(n))
}
