// Package metrics provides Prometheus metrics instrumentation for the forecaster.
//
// The forecaster is a short-lived job, so metrics are registered on an
// explicit registry and pushed to a Pushgateway once the run ends instead of
// being scraped.
//
// Metrics exposed:
//   - ticketcast_stage_duration_seconds: Histogram of pipeline stage duration by stage
//   - ticketcast_errors_total: Counter of errors by stage and reason
//   - ticketcast_predicted_first_day: Gauge of the first forecast day's count
//   - ticketcast_training_observations: Gauge of observations used for fitting
//   - ticketcast_model_log_likelihood: Gauge of the fitted model's log-likelihood
//   - ticketcast_last_success_timestamp_seconds: Gauge set when a run completes
//
// All metrics carry the model label.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for the forecaster.
type Metrics struct {
	StageSeconds         *prometheus.HistogramVec
	ErrorsTotal          *prometheus.CounterVec
	PredictedFirstDay    prometheus.Gauge
	TrainingObservations prometheus.Gauge
	LogLikelihood        prometheus.Gauge
	LastSuccess          prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a registry and registers all forecaster metrics on it.
func New(model string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"model": model}

	return &Metrics{
		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "ticketcast_stage_duration_seconds",
			Help:        "Time spent in each pipeline stage",
			ConstLabels: labels,
			Buckets:     []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ticketcast_errors_total",
			Help:        "Total number of errors by stage and reason",
			ConstLabels: labels,
		}, []string{"stage", "reason"}),

		PredictedFirstDay: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "ticketcast_predicted_first_day",
			Help:        "Predicted count for the first forecast day",
			ConstLabels: labels,
		}),

		TrainingObservations: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "ticketcast_training_observations",
			Help:        "Number of daily observations the model was fitted on",
			ConstLabels: labels,
		}),

		LogLikelihood: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "ticketcast_model_log_likelihood",
			Help:        "Conditional log-likelihood of the fitted model",
			ConstLabels: labels,
		}),

		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "ticketcast_last_success_timestamp_seconds",
			Help:        "Unix time of the last completed run",
			ConstLabels: labels,
		}),

		registry: reg,
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordStage records the time spent in a pipeline stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(stage, reason string) {
	m.ErrorsTotal.WithLabelValues(stage, reason).Inc()
}

// SetPredictedFirstDay sets the first forecast day's count.
func (m *Metrics) SetPredictedFirstDay(count int) {
	m.PredictedFirstDay.Set(float64(count))
}

// SetFit records statistics of a freshly fitted model.
func (m *Metrics) SetFit(observations int, logLikelihood float64) {
	m.TrainingObservations.Set(float64(observations))
	m.LogLikelihood.Set(logLikelihood)
}

// MarkSuccess records the completion time of a run.
func (m *Metrics) MarkSuccess(t time.Time) {
	m.LastSuccess.Set(float64(t.Unix()))
}

// Push sends every registered metric to the Pushgateway at url under job,
// replacing the job's previous metrics.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
