package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// recordDuration tracks the time spent transforming a single record.
	recordDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "record_durations_seconds",
			Help:       "Record transformation duration distributions.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"job", "outcome"},
	)

	recordDurationsHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_durations_histogram_seconds",
			Help:    "Record transformation duration distributions.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"job", "outcome"},
	)

	// recordsTotal counts decoded records by outcome: published or dropped.
	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_total",
			Help: "Number of processed records.",
		},
		[]string{"job", "outcome"},
	)

	deadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadletters_total",
			Help: "Number of malformed records sent to the dead-letter topic.",
		},
		[]string{"job"},
	)

	pipelineFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_errors_total",
			Help: "Number of pipeline errors.",
		},
		[]string{"job", "failure"},
	)
)

// prometheusServer exposes the metrics over HTTP.
type prometheusServer struct {
	server   *http.Server
	registry *prometheus.Registry
	conf     Config
}

// NewPrometheusServer
func NewPrometheusServer(conf Config) (*prometheusServer, error) {
	p := &prometheusServer{
		registry: prometheus.NewRegistry(),
		conf:     conf,
	}

	for _, c := range []prometheus.Collector{
		recordDuration,
		recordDurationsHistogram,
		recordsTotal,
		deadLettersTotal,
		pipelineFailures,
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
	} {
		if err := p.registry.Register(c); err != nil {
			return nil, err
		}
	}

	p.server = &http.Server{
		Addr: p.conf.Addr,
		Handler: promhttp.HandlerFor(
			p.registry,
			promhttp.HandlerOpts{EnableOpenMetrics: true},
		),
	}

	return p, nil
}

// Serve blocks until the server is stopped.
func (p *prometheusServer) Serve() error {
	if err := p.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop
func (p *prometheusServer) Stop(ctx context.Context) error {
	return p.server.Shutdown(ctx)
}

// reporter
type reporter struct {
	info ServiceInfo
}

// NewReporter
func NewReporter(info ServiceInfo) (*reporter, error) {
	return &reporter{info: info}, nil
}

// RecordProcessed
func (r *reporter) RecordProcessed(outcome string, seconds float64) {
	recordDuration.WithLabelValues(r.info.Job, outcome).Observe(seconds)
	recordDurationsHistogram.WithLabelValues(r.info.Job, outcome).Observe(seconds)
	recordsTotal.WithLabelValues(r.info.Job, outcome).Inc()
}

// RecordDeadLettered
func (r *reporter) RecordDeadLettered() {
	deadLettersTotal.WithLabelValues(r.info.Job).Inc()
}

// PipelineFailed
func (r *reporter) PipelineFailed(failure string) {
	pipelineFailures.WithLabelValues(r.info.Job, failure).Inc()
}
