package observability

import (
	"strconv"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bolao"

// AggregationMetrics exports aggregation reports and detector decisions to Prometheus.
type AggregationMetrics struct {
	aggregations   *prometheus.CounterVec
	guessesScored  prometheus.Counter
	invalidGuesses prometheus.Counter
	userFailures   prometheus.Counter
	commitAttempts prometheus.Histogram
	duration       *prometheus.HistogramVec
	detections     *prometheus.CounterVec
}

func NewAggregationMetrics(registerer prometheus.Registerer) (*AggregationMetrics, error) {
	m := &AggregationMetrics{
		aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "aggregation_total",
			Help:      "Match aggregation runs by outcome.",
		}, []string{"outcome"}),
		guessesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "aggregation_guesses_scored_total",
			Help:      "Guesses that received points.",
		}),
		invalidGuesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "aggregation_invalid_guesses_total",
			Help:      "Guesses excluded from scoring because their prediction was invalid.",
		}),
		userFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "aggregation_user_failures_total",
			Help:      "User aggregates skipped because the record was unavailable.",
		}),
		commitAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "aggregation_commit_attempts",
			Help:      "Commit attempts needed per aggregation run.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Wall time of aggregation runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "detector_decisions_total",
			Help:      "Match update transitions seen by the result change detector.",
		}, []string{"transition", "triggered"}),
	}

	collectors := []prometheus.Collector{
		m.aggregations,
		m.guessesScored,
		m.invalidGuesses,
		m.userFailures,
		m.commitAttempts,
		m.duration,
		m.detections,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *AggregationMetrics) ObserveAggregation(report usecase.AggregationReport) {
	outcome := string(report.Outcome)
	m.aggregations.WithLabelValues(outcome).Inc()
	m.guessesScored.Add(float64(report.GuessesScored))
	m.invalidGuesses.Add(float64(len(report.InvalidGuesses)))
	m.userFailures.Add(float64(len(report.UserFailures)))
	if report.Attempts > 0 {
		m.commitAttempts.Observe(float64(report.Attempts))
	}
	if report.Duration > 0 {
		m.duration.WithLabelValues(outcome).Observe(report.Duration.Seconds())
	}
}

func (m *AggregationMetrics) ObserveDetection(decision match.Decision) {
	m.detections.WithLabelValues(string(decision.Transition), strconv.FormatBool(decision.Triggered)).Inc()
}
