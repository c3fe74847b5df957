package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	runTotal       *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runInFlight    prometheus.Gauge
	documentsTotal *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	queueLag       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ingestion_runs_total",
			Help:      "Total processed ingestion runs by outcome.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ingestion_run_duration_seconds",
			Help:      "Ingestion run duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ingestion_runs_in_flight",
			Help:      "Number of in-flight ingestion runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Total documents seen by ingestion runs, by document status.",
		},
		[]string{"service", "status"},
	)
	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "records_written_total",
			Help:      "Total records written to the vector index.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between run creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(runTotal, runDuration, runInFlight, documentsTotal, recordsTotal, queueLag)

	return &WorkerMetrics{
		registry:       registry,
		runTotal:       runTotal,
		runDuration:    runDuration,
		runInFlight:    runInFlight,
		documentsTotal: documentsTotal,
		recordsTotal:   recordsTotal,
		queueLag:       queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRun() {
	m.runInFlight.Inc()
}

// FinishRun records the run outcome. A nil run counts as an error.
func (m *WorkerMetrics) FinishRun(service string, duration time.Duration, run *domain.IngestionRun, err error) {
	m.runInFlight.Dec()

	status := "error"
	if err == nil && run != nil {
		status = string(run.Status)
	}
	m.runTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())

	if run == nil {
		return
	}
	for _, doc := range run.Documents {
		m.documentsTotal.WithLabelValues(service, string(doc.Status)).Inc()
	}
	if run.Records > 0 {
		m.recordsTotal.WithLabelValues(service).Add(float64(run.Records))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
