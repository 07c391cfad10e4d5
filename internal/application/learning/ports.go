// Package learning is the similarity-based export strategy learning engine.
// It tracks business profile changes, records export outcomes with the
// profile that produced them, retrieves strategies that worked for
// comparable businesses and blends that evidence into market
// recommendations. All durable state lives behind the repository ports of
// the business and export domain packages; the services here hold none.
package learning

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
)

// ---------------------------------------------------------------------------
// Port interfaces
// ---------------------------------------------------------------------------

// SimilarityScorer scores two profiles in [0, 1].
type SimilarityScorer interface {
	Similarity(a, b *business.Profile) float64
}

// RegionResolver maps a market to its region.
type RegionResolver interface {
	Region(market string) string
}

// ChangePublisher delivers significant change events to subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, event *business.SignificantChangeEvent)
}

// StrategyFinder retrieves strategies used by similar businesses.
type StrategyFinder interface {
	FindSimilarStrategiesAt(ctx context.Context, profile *business.Profile, market string, now time.Time) ([]export.StrategyRecommendation, error)
}

// MetricsRecorder receives operational measurements. The prometheus
// infrastructure package provides the production implementation.
type MetricsRecorder interface {
	ObserveStrategyQuery(market string, candidates, matches int, elapsed time.Duration)
	IncSkippedOutcome(reason string)
	IncOutcomeRecorded(successful bool)
	IncPatternDerived(region string)
	IncChangesTracked(significance string, n int)
	IncNotificationFailure(subscriber string)
	ObserveEnhancement(markets int, elapsed time.Duration)
}

// Clock returns the current time.
type Clock func() time.Time

// IDGenerator returns a fresh identifier.
type IDGenerator func() string

func systemClock() time.Time { return time.Now().UTC() }

func newUUID() string { return uuid.New().String() }

type noopMetrics struct{}

func (noopMetrics) ObserveStrategyQuery(string, int, int, time.Duration) {}
func (noopMetrics) IncSkippedOutcome(string)                             {}
func (noopMetrics) IncOutcomeRecorded(bool)                              {}
func (noopMetrics) IncPatternDerived(string)                             {}
func (noopMetrics) IncChangesTracked(string, int)                        {}
func (noopMetrics) IncNotificationFailure(string)                        {}
func (noopMetrics) ObserveEnhancement(int, time.Duration)                {}

// NoopMetrics returns a MetricsRecorder that discards everything.
func NoopMetrics() MetricsRecorder { return noopMetrics{} }
