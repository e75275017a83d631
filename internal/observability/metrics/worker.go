package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// WorkerMetrics exports pipeline counters. It satisfies ports.PipelineObserver.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec

	extractionTotal      *prometheus.CounterVec
	redactedItemsTotal   *prometheus.CounterVec
	classificationTotal  *prometheus.CounterVec
	classificationScores *prometheus.HistogramVec
	batchJobsTotal       *prometheus.CounterVec
	breakerOpen          *prometheus.GaugeVec
}

var _ ports.PipelineObserver = (*WorkerMetrics)(nil)

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between batch ingestion and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "extraction",
			Name:      "results_total",
			Help:      "Extraction results by credited method and outcome.",
		},
		[]string{"service", "method", "success"},
	)
	redactedItemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "redaction",
			Name:      "items_total",
			Help:      "Redacted spans by category.",
		},
		[]string{"service", "category"},
	)
	classificationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "classification",
			Name:      "verdicts_total",
			Help:      "Classification verdicts by document type.",
		},
		[]string{"service", "document_type"},
	)
	classificationScores := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "classification",
			Name:      "confidence",
			Help:      "Distribution of reported classification confidence.",
			Buckets:   []float64{0.1, 0.25, 0.49, 0.5, 0.6, 0.7, 0.8, 0.9, 0.98},
		},
		[]string{"service"},
	)
	batchJobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "batch_jobs_total",
			Help:      "Jobs finished per batch run by outcome.",
		},
		[]string{"service", "outcome"},
	)
	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker for an operation is open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		queueLag,
		extractionTotal,
		redactedItemsTotal,
		classificationTotal,
		classificationScores,
		batchJobsTotal,
		breakerOpen,
	)

	return &WorkerMetrics{
		service:              service,
		registry:             registry,
		processTotal:         processTotal,
		processDuration:      processDuration,
		processInFlight:      processInFlight,
		queueLag:             queueLag,
		extractionTotal:      extractionTotal,
		redactedItemsTotal:   redactedItemsTotal,
		classificationTotal:  classificationTotal,
		classificationScores: classificationScores,
		batchJobsTotal:       batchJobsTotal,
		breakerOpen:          breakerOpen,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveBatch(report domain.BatchReport) {
	m.batchJobsTotal.WithLabelValues(m.service, "completed").Add(float64(report.Completed))
	m.batchJobsTotal.WithLabelValues(m.service, "failed").Add(float64(report.Failed))
}

func (m *WorkerMetrics) ObserveExtraction(result domain.ExtractionResult) {
	method := result.Method
	if method == "" {
		method = "unknown"
	}
	m.extractionTotal.WithLabelValues(m.service, method, strconv.FormatBool(result.Success)).Inc()
}

func (m *WorkerMetrics) ObserveRedaction(result domain.RedactionResult) {
	for _, item := range result.Items {
		m.redactedItemsTotal.WithLabelValues(m.service, item.Category).Add(float64(item.Count))
	}
}

func (m *WorkerMetrics) ObserveClassification(result domain.ClassificationResult) {
	documentType := result.DocumentType
	if documentType == "" {
		documentType = domain.Undetermined
	}
	m.classificationTotal.WithLabelValues(m.service, documentType).Inc()
	m.classificationScores.WithLabelValues(m.service).Observe(result.Confidence)
}

// SetBreakerOpen matches resilience.StateListener.
func (m *WorkerMetrics) SetBreakerOpen(operation string, open bool) {
	value := 0.0
	if open {
		value = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(value)
}

// Instrument wraps a processor with in-flight, duration and outcome metrics.
func (m *WorkerMetrics) Instrument(next ports.DocumentProcessor) ports.DocumentProcessor {
	return instrumentedProcessor{next: next, metrics: m}
}

type instrumentedProcessor struct {
	next    ports.DocumentProcessor
	metrics *WorkerMetrics
}

func (p instrumentedProcessor) ProcessByID(ctx context.Context, jobID string) error {
	p.metrics.StartDocument()
	start := time.Now()
	err := p.next.ProcessByID(ctx, jobID)
	p.metrics.FinishDocument(time.Since(start), err)
	return err
}
