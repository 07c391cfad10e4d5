package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// Recency decay. Ages are measured in 30-day months.
const (
	daysPerMonth      = 30.0
	recencyFreshUntil = 3.0
	recencyStaleAfter = 24.0
	recencyFloor      = 0.3
)

// Defaults for MemoryParams.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultConfidenceCap       = 0.95
	DefaultSimilarityShare     = 0.8
	DefaultRecencyShare        = 0.2
)

// MemoryParams tunes strategy retrieval. Zero values take the defaults.
type MemoryParams struct {
	// SimilarityThreshold is exclusive: a match must score strictly above it.
	SimilarityThreshold float64
	ConfidenceCap       float64
	SimilarityShare     float64
	RecencyShare        float64
}

// DefaultMemoryParams returns threshold 0.7, cap 0.95 and shares 0.8/0.2.
func DefaultMemoryParams() MemoryParams {
	return MemoryParams{
		SimilarityThreshold: DefaultSimilarityThreshold,
		ConfidenceCap:       DefaultConfidenceCap,
		SimilarityShare:     DefaultSimilarityShare,
		RecencyShare:        DefaultRecencyShare,
	}
}

func (p MemoryParams) withDefaults() MemoryParams {
	d := DefaultMemoryParams()
	if p.SimilarityThreshold == 0 {
		p.SimilarityThreshold = d.SimilarityThreshold
	}
	if p.ConfidenceCap == 0 {
		p.ConfidenceCap = d.ConfidenceCap
	}
	if p.SimilarityShare == 0 && p.RecencyShare == 0 {
		p.SimilarityShare, p.RecencyShare = d.SimilarityShare, d.RecencyShare
	}
	return p
}

// MemoryDeps holds the collaborators of an ExportStrategyMemory.
type MemoryDeps struct {
	Outcomes export.OutcomeRepository
	Patterns export.PatternRepository
	Scorer   SimilarityScorer
	Regions  RegionResolver
	Params   MemoryParams
	Logger   logging.Logger
	Metrics  MetricsRecorder
	Clock    Clock
	NewID    IDGenerator
}

// ExportStrategyMemory records export outcomes and answers which strategies
// worked for businesses similar to a given profile.
type ExportStrategyMemory struct {
	outcomes export.OutcomeRepository
	patterns export.PatternRepository
	scorer   SimilarityScorer
	regions  RegionResolver
	params   MemoryParams
	logger   logging.Logger
	metrics  MetricsRecorder
	now      Clock
	newID    IDGenerator

	// appendMu orders timestamping with the outcome append, so stamps never
	// decrease in insertion order. lastStamp guards against a clock stepping
	// backwards.
	appendMu  sync.Mutex
	lastStamp time.Time
}

// NewExportStrategyMemory wires a memory. Outcomes, Patterns and Scorer are
// required; without Regions every market falls into export.RegionOther.
func NewExportStrategyMemory(deps MemoryDeps) (*ExportStrategyMemory, error) {
	if deps.Outcomes == nil || deps.Patterns == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "strategy memory requires outcome and pattern repositories")
	}
	if deps.Scorer == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "strategy memory requires a similarity scorer")
	}
	m := &ExportStrategyMemory{
		outcomes: deps.Outcomes,
		patterns: deps.Patterns,
		scorer:   deps.Scorer,
		regions:  deps.Regions,
		params:   deps.Params.withDefaults(),
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		now:      deps.Clock,
		newID:    deps.NewID,
	}
	if m.logger == nil {
		m.logger = logging.NewNopLogger()
	}
	m.logger = m.logger.Named("strategy_memory")
	if m.metrics == nil {
		m.metrics = NoopMetrics()
	}
	if m.now == nil {
		m.now = systemClock
	}
	if m.newID == nil {
		m.newID = newUUID
	}
	return m, nil
}

// Params returns the effective tuning parameters.
func (m *ExportStrategyMemory) Params() MemoryParams { return m.params }

// RecordOutcome validates o, stamps an ID and the current time, and appends
// it to the outcome log. A successful outcome also yields exactly one
// Pattern. The caller's value is not modified; the stored copy is returned.
func (m *ExportStrategyMemory) RecordOutcome(ctx context.Context, o *export.Outcome) (*export.Outcome, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	rec := *o
	rec.BusinessProfile = o.BusinessProfile.Clone()
	rec.Products = append([]string(nil), o.Products...)
	rec.Results.Challenges = append([]string(nil), o.Results.Challenges...)
	rec.Results.SuccessFactors = append([]string(nil), o.Results.SuccessFactors...)
	if rec.ID == "" {
		rec.ID = m.newID()
	}

	if err := m.appendOutcome(ctx, &rec); err != nil {
		m.logger.Error("failed to append export outcome",
			logging.String("business_id", rec.BusinessID),
			logging.String("market", rec.Market),
			logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeOutcomeWriteFailed, "append export outcome")
	}
	m.metrics.IncOutcomeRecorded(rec.Results.Successful)

	if !rec.Results.Successful {
		return &rec, nil
	}

	region := m.region(rec.Market)
	pattern := export.NewPatternFromOutcome(m.newID(), &rec, region)
	if err := m.patterns.Append(ctx, pattern); err != nil {
		m.logger.Error("outcome stored but pattern append failed",
			logging.String("outcome_id", rec.ID),
			logging.String("market_region", region),
			logging.Err(err))
		return &rec, errors.Wrap(err, errors.ErrCodePatternWriteFailed, "append export pattern").
			WithDetail("outcome " + rec.ID + " was recorded; RebuildPatterns restores the pattern")
	}
	m.metrics.IncPatternDerived(region)

	m.logger.Info("export outcome recorded",
		logging.String("outcome_id", rec.ID),
		logging.String("business_id", rec.BusinessID),
		logging.String("market", rec.Market),
		logging.Bool("successful", rec.Results.Successful))
	return &rec, nil
}

// appendOutcome stamps rec and appends it while holding appendMu.
func (m *ExportStrategyMemory) appendOutcome(ctx context.Context, rec *export.Outcome) error {
	m.appendMu.Lock()
	defer m.appendMu.Unlock()

	ts := m.now().UTC()
	if ts.Before(m.lastStamp) {
		ts = m.lastStamp
	}
	rec.Timestamp = ts
	if err := m.outcomes.Append(ctx, rec); err != nil {
		return err
	}
	m.lastStamp = ts
	return nil
}

// RebuildPatterns derives the missing pattern of every successful outcome
// recorded for market. It repairs the pattern cache after a pattern append
// failed in RecordOutcome and returns how many patterns were added.
func (m *ExportStrategyMemory) RebuildPatterns(ctx context.Context, market string) (int, error) {
	if strings.TrimSpace(market) == "" {
		return 0, errors.New(errors.ErrCodeValidation, "market is required")
	}
	outcomes, err := m.outcomes.FindSuccessfulByMarket(ctx, market)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "query successful outcomes").WithDetail("market=" + market)
	}
	if len(outcomes) == 0 {
		return 0, nil
	}

	region := m.region(market)
	existing, err := m.patterns.Find(ctx, export.PatternQuery{MarketRegion: region})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "query export patterns").WithDetail("region=" + region)
	}
	covered := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		covered[p.OutcomeID] = struct{}{}
	}

	added := 0
	for _, o := range outcomes {
		if o == nil || o.ID == "" {
			continue
		}
		if _, ok := covered[o.ID]; ok {
			continue
		}
		if err := m.patterns.Append(ctx, export.NewPatternFromOutcome(m.newID(), o, region)); err != nil {
			return added, errors.Wrap(err, errors.ErrCodePatternWriteFailed, "append export pattern").WithDetail("outcome " + o.ID)
		}
		covered[o.ID] = struct{}{}
		m.metrics.IncPatternDerived(region)
		added++
	}
	if added > 0 {
		m.logger.Info("export patterns rebuilt",
			logging.String("market", market),
			logging.String("market_region", region),
			logging.Int("added", added))
	}
	return added, nil
}

func (m *ExportStrategyMemory) region(market string) string {
	if m.regions == nil {
		return export.RegionOther
	}
	if r := m.regions.Region(market); r != "" {
		return r
	}
	return export.RegionOther
}

// FindSimilarStrategies is FindSimilarStrategiesAt with the current time.
func (m *ExportStrategyMemory) FindSimilarStrategies(ctx context.Context, profile *business.Profile, market string) ([]export.StrategyRecommendation, error) {
	return m.FindSimilarStrategiesAt(ctx, profile, market, m.now())
}

type scoredOutcome struct {
	outcome    *export.Outcome
	similarity float64
}

// FindSimilarStrategiesAt returns the strategies of successful outcomes in
// market whose business scored above the similarity threshold against
// profile, best match first. Recency is measured against now. No matches is
// an empty result, not an error. Stored outcomes that cannot be matched are
// skipped with a warning.
func (m *ExportStrategyMemory) FindSimilarStrategiesAt(ctx context.Context, profile *business.Profile, market string, now time.Time) ([]export.StrategyRecommendation, error) {
	if profile == nil {
		return nil, errors.New(errors.ErrCodeValidation, "profile is required")
	}
	if strings.TrimSpace(market) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "target market is required")
	}
	start := time.Now()

	candidates, err := m.outcomes.FindSuccessfulByMarket(ctx, market)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query successful outcomes").
			WithDetail("market " + market)
	}

	matches := make([]scoredOutcome, 0, len(candidates))
	for _, o := range candidates {
		if reason := o.Malformed(); reason != "" {
			m.metrics.IncSkippedOutcome(reason)
			fields := []logging.Field{
				logging.String("code", string(errors.CodePartialData)),
				logging.String("market", market),
				logging.String("reason", reason),
			}
			if o != nil {
				fields = append(fields, logging.String("outcome_id", o.ID))
			}
			m.logger.Warn("skipping malformed export outcome", fields...)
			continue
		}
		if !o.Results.Successful {
			continue
		}
		sim := m.scorer.Similarity(profile, o.BusinessProfile)
		if sim > m.params.SimilarityThreshold {
			matches = append(matches, scoredOutcome{outcome: o, similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].outcome.Timestamp.After(matches[j].outcome.Timestamp)
	})

	recs := make([]export.StrategyRecommendation, 0, len(matches))
	for _, sm := range matches {
		recs = append(recs, m.toRecommendation(sm, now))
	}

	m.metrics.ObserveStrategyQuery(market, len(candidates), len(recs), time.Since(start))
	return recs, nil
}

func (m *ExportStrategyMemory) toRecommendation(sm scoredOutcome, now time.Time) export.StrategyRecommendation {
	o := sm.outcome
	return export.StrategyRecommendation{
		StrategyType:            o.EntryStrategy,
		Confidence:              m.Confidence(sm.similarity, RecencyAdjustment(o.Timestamp, now)),
		ReasonForRecommendation: reasonFor(o),
		EstimatedTimelineDays:   o.Results.TimelineDays,
		KeySuccessFactors:       append([]string{}, o.Results.SuccessFactors...),
		Similarity:              sm.similarity,
		MatchedOutcomeID:        o.ID,
		MatchedAt:               o.Timestamp,
	}
}

// Confidence blends similarity and recency and caps the result.
func (m *ExportStrategyMemory) Confidence(similarity, recency float64) float64 {
	c := similarity*m.params.SimilarityShare + recency*m.params.RecencyShare
	c = math.Min(m.params.ConfidenceCap, c)
	if c < 0 || math.IsNaN(c) {
		return 0
	}
	return c
}

// RecencyAdjustment weights evidence by age: 1.0 under 3 months, 0.3 over 24
// months, and 1 - (age-3)*0.7/21 in between. Timestamps after now count as
// fresh.
func RecencyAdjustment(ts, now time.Time) float64 {
	ageMonths := now.Sub(ts).Hours() / 24 / daysPerMonth
	switch {
	case ageMonths < recencyFreshUntil:
		return 1
	case ageMonths > recencyStaleAfter:
		return recencyFloor
	default:
		return 1 - (ageMonths-recencyFreshUntil)*(1-recencyFloor)/(recencyStaleAfter-recencyFreshUntil)
	}
}

func reasonFor(o *export.Outcome) string {
	size := strings.ToLower(strings.TrimSpace(string(o.BusinessProfile.Size)))
	if size == "" {
		size = "comparable"
	}
	return fmt.Sprintf("A %s-sized business with a similar profile succeeded in %s using %s within %d days.",
		size, o.Market, o.EntryStrategy, o.Results.TimelineDays)
}

// FindPatterns returns stored patterns matching q.
func (m *ExportStrategyMemory) FindPatterns(ctx context.Context, q export.PatternQuery) ([]*export.Pattern, error) {
	patterns, err := m.patterns.Find(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query export patterns")
	}
	if patterns == nil {
		patterns = []*export.Pattern{}
	}
	return patterns, nil
}

// OutcomesForBusiness returns every outcome recorded for businessID.
func (m *ExportStrategyMemory) OutcomesForBusiness(ctx context.Context, businessID string) ([]*export.Outcome, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "business id is required")
	}
	outcomes, err := m.outcomes.FindByBusinessID(ctx, businessID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query outcomes by business")
	}
	return outcomes, nil
}
