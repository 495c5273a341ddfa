// Package metrics records deployment metrics and exports them in the
// prometheus text format, for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder stores all the metrics of one osdeploy run.
type Recorder struct {
	registry *prometheus.Registry

	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	deploymentsTotal   *prometheus.CounterVec
	deploymentDuration prometheus.Histogram
	packages           *prometheus.GaugeVec
	lastDeployment     prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "osdeploy",
				Name:      "operations_total",
				Help:      "Total number of delegated operations by type and outcome",
			},
			[]string{"type", "outcome"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "osdeploy",
				Name:      "operation_duration_seconds",
				Help:      "Duration of delegated operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
			[]string{"type"},
		),

		deploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "osdeploy",
				Name:      "deployments_total",
				Help:      "Total number of deployments by image and outcome",
			},
			[]string{"image", "outcome"},
		),

		deploymentDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "osdeploy",
				Name:      "deployment_duration_seconds",
				Help:      "Duration of whole deployments in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
		),

		packages: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "osdeploy",
				Name:      "packages",
				Help:      "Number of packages requested by package set",
			},
			[]string{"set"},
		),

		lastDeployment: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "osdeploy",
				Name:      "last_deployment_timestamp_seconds",
				Help:      "Unix time the last deployment finished",
			},
		),
	}

	r.registry.MustRegister(
		r.operationsTotal,
		r.operationDuration,
		r.deploymentsTotal,
		r.deploymentDuration,
		r.packages,
		r.lastDeployment,
	)

	return r
}

// ObserveOperation records one delegated operation.
func (r *Recorder) ObserveOperation(opType, outcome string, d time.Duration) {
	r.operationsTotal.WithLabelValues(opType, outcome).Inc()
	r.operationDuration.WithLabelValues(opType).Observe(d.Seconds())
}

// ObserveDeployment records a finished deployment.
func (r *Recorder) ObserveDeployment(image, outcome string, d time.Duration, finished time.Time) {
	r.deploymentsTotal.WithLabelValues(image, outcome).Inc()
	r.deploymentDuration.Observe(d.Seconds())
	r.lastDeployment.Set(float64(finished.Unix()))
}

// SetPackages records the size of a requested package set.
func (r *Recorder) SetPackages(set string, n int) {
	r.packages.WithLabelValues(set).Set(float64(n))
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Discard is a recorder that drops everything.
type Discard struct{}

func (Discard) ObserveOperation(string, string, time.Duration) {}

func (Discard) ObserveDeployment(string, string, time.Duration, time.Time) {}

func (Discard) SetPackages(string, int) {}
