// Package metrics exposes Prometheus instrumentation for the daily pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "footoracle"

var (
	// FixturesProcessed counts fixtures handled per pipeline stage.
	FixturesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fixtures_processed_total",
		Help:      "Fixtures processed, labelled by pipeline stage.",
	}, []string{"stage"})

	// PredictionsEmitted counts generated prediction records by market.
	PredictionsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_emitted_total",
		Help:      "Prediction records emitted, labelled by market.",
	}, []string{"market"})

	// ValueBets counts predictions that cleared the value threshold.
	ValueBets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "value_bets_total",
		Help:      "Predictions whose expected value cleared the threshold.",
	})

	// ClonePairs counts detected clone pairs.
	ClonePairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clone_pairs_total",
		Help:      "Clone pairs detected across runs.",
	})

	// SkippedMarkets counts (fixture, market) combinations skipped for lack of
	// quotes or other per-item failures.
	SkippedMarkets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skipped_markets_total",
		Help:      "Per-fixture markets skipped during generation.",
	})

	// LastRunTimestamp records when the pipeline last completed.
	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last completed pipeline run.",
	})

	// RunDuration observes full pipeline run durations.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of full pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// ObserveRun records the completion of one pipeline run.
func ObserveRun(started time.Time) {
	RunDuration.Observe(time.Since(started).Seconds())
	LastRunTimestamp.SetToCurrentTime()
}
