package prometheus

import (
	"strconv"
	"time"
)

var (
	queryDurationBuckets       = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1}
	enhancementDurationBuckets = []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5}
	candidateCountBuckets      = []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000}
)

// Breaker states as reported by the breaker_state gauge.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// LearningMetrics records what the learning engine does. It satisfies the
// application's MetricsRecorder and the profile cache's CacheMetrics.
type LearningMetrics struct {
	StrategyQueryDuration HistogramVec
	StrategyCandidates    HistogramVec
	StrategyMatches       HistogramVec
	OutcomesSkipped       CounterVec
	OutcomesRecorded      CounterVec
	PatternsDerived       CounterVec
	ChangesTracked        CounterVec
	NotificationFailures  CounterVec
	EnhancementDuration   HistogramVec
	EnhancedMarkets       CounterVec
	ProfileCacheRequests  CounterVec
	BreakerState          GaugeVec
	ChangeEventsConsumed  CounterVec
}

// NewLearningMetrics registers every engine metric on c.
func NewLearningMetrics(c MetricsCollector) *LearningMetrics {
	return &LearningMetrics{
		StrategyQueryDuration: c.RegisterHistogram("strategy_query_duration_seconds",
			"Time spent answering a similar-strategy query.", queryDurationBuckets, "market"),
		StrategyCandidates: c.RegisterHistogram("strategy_query_candidates",
			"Successful outcomes scanned per strategy query.", candidateCountBuckets, "market"),
		StrategyMatches: c.RegisterHistogram("strategy_query_matches",
			"Distinct strategies returned per strategy query.", candidateCountBuckets, "market"),
		OutcomesSkipped: c.RegisterCounter("outcomes_skipped_total",
			"Stored outcomes ignored by a strategy query.", "reason"),
		OutcomesRecorded: c.RegisterCounter("outcomes_recorded_total",
			"Export outcomes recorded.", "successful"),
		PatternsDerived: c.RegisterCounter("patterns_derived_total",
			"Success patterns derived from successful outcomes.", "region"),
		ChangesTracked: c.RegisterCounter("profile_changes_total",
			"Profile changes appended to the change log.", "significance"),
		NotificationFailures: c.RegisterCounter("notification_failures_total",
			"Significant change deliveries that failed.", "subscriber"),
		EnhancementDuration: c.RegisterHistogram("enhancement_duration_seconds",
			"Time spent enhancing a recommendation list.", enhancementDurationBuckets),
		EnhancedMarkets: c.RegisterCounter("enhanced_markets_total",
			"Market recommendations passed through enhancement."),
		ProfileCacheRequests: c.RegisterCounter("profile_cache_requests_total",
			"Profile cache lookups by result.", "result"),
		BreakerState: c.RegisterGauge("breaker_state",
			"Circuit breaker state: 0 closed, 1 half-open, 2 open.", "name"),
		ChangeEventsConsumed: c.RegisterCounter("change_events_consumed_total",
			"Significant change events read from the change topic, by result.", "result"),
	}
}

func (m *LearningMetrics) ObserveStrategyQuery(market string, candidates, matches int, elapsed time.Duration) {
	m.StrategyQueryDuration.WithLabelValues(market).Observe(elapsed.Seconds())
	m.StrategyCandidates.WithLabelValues(market).Observe(float64(candidates))
	m.StrategyMatches.WithLabelValues(market).Observe(float64(matches))
}

func (m *LearningMetrics) IncSkippedOutcome(reason string) {
	m.OutcomesSkipped.WithLabelValues(reason).Inc()
}

func (m *LearningMetrics) IncOutcomeRecorded(successful bool) {
	m.OutcomesRecorded.WithLabelValues(strconv.FormatBool(successful)).Inc()
}

func (m *LearningMetrics) IncPatternDerived(region string) {
	m.PatternsDerived.WithLabelValues(region).Inc()
}

func (m *LearningMetrics) IncChangesTracked(significance string, n int) {
	m.ChangesTracked.WithLabelValues(significance).Add(float64(n))
}

func (m *LearningMetrics) IncNotificationFailure(subscriber string) {
	m.NotificationFailures.WithLabelValues(subscriber).Inc()
}

func (m *LearningMetrics) ObserveEnhancement(markets int, elapsed time.Duration) {
	m.EnhancementDuration.WithLabelValues().Observe(elapsed.Seconds())
	m.EnhancedMarkets.WithLabelValues().Add(float64(markets))
}

// IncProfileCache counts a profile cache hit or miss.
func (m *LearningMetrics) IncProfileCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ProfileCacheRequests.WithLabelValues(result).Inc()
}

// SetBreakerState publishes the state of the named breaker.
func (m *LearningMetrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// IncChangeEventConsumed counts a change event taken off the topic.
func (m *LearningMetrics) IncChangeEventConsumed(ok bool) {
	result := "failed"
	if ok {
		result = "processed"
	}
	m.ChangeEventsConsumed.WithLabelValues(result).Inc()
}
