package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// Score blending and summarisation constants.
const (
	baseScoreShare     = 0.7
	learningScoreShare = 0.3
	topSuccessFactors  = 3

	// NoInsightsMessage is shown when no market has learning evidence.
	NoInsightsMessage = "no insights available"
)

// Visualization types produced by BuildInsights.
const (
	VisualizationBar = "bar"
)

// EngineDeps holds the collaborators of a LearningEngine.
type EngineDeps struct {
	Profiles   business.ProfileRepository
	Strategies StrategyFinder
	Selections export.MarketSelectionRepository
	Logger     logging.Logger
	Metrics    MetricsRecorder
	Clock      Clock
	NewID      IDGenerator
}

// LearningEngine enriches report-generator market recommendations with the
// experience of comparable businesses.
type LearningEngine struct {
	profiles   business.ProfileRepository
	strategies StrategyFinder
	selections export.MarketSelectionRepository
	logger     logging.Logger
	metrics    MetricsRecorder
	now        Clock
	newID      IDGenerator
}

// NewLearningEngine wires an engine. Every repository is required.
func NewLearningEngine(deps EngineDeps) (*LearningEngine, error) {
	if deps.Profiles == nil || deps.Strategies == nil || deps.Selections == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "learning engine is missing a collaborator")
	}
	e := &LearningEngine{
		profiles:   deps.Profiles,
		strategies: deps.Strategies,
		selections: deps.Selections,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        deps.Clock,
		newID:      deps.NewID,
	}
	if e.logger == nil {
		e.logger = logging.NewNopLogger()
	}
	e.logger = e.logger.Named("learning_engine")
	if e.metrics == nil {
		e.metrics = NoopMetrics()
	}
	if e.now == nil {
		e.now = systemClock
	}
	if e.newID == nil {
		e.newID = newUUID
	}
	return e, nil
}

// EnhanceMarketRecommendations loads the profile of businessID and, for each
// base recommendation, blends in the confidence of strategies that worked
// for similar businesses in that market:
//
//	score = original*0.7 + meanConfidence*0.3
//
// Markets without matches keep their score and carry zeroed learning fields.
// The result is sorted by score, highest first, keeping input order on ties.
// A missing profile yields a not-found error so the caller can fall back to
// the unenhanced list.
func (e *LearningEngine) EnhanceMarketRecommendations(ctx context.Context, businessID string, base []export.MarketRecommendation) ([]export.EnhancedMarketRecommendation, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "business id is required")
	}
	start := time.Now()

	profile, err := e.loadProfile(ctx, businessID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make([]export.EnhancedMarketRecommendation, 0, len(base))
	for _, rec := range base {
		strategies, err := e.strategies.FindSimilarStrategiesAt(ctx, profile, rec.Market, now)
		if err != nil {
			e.logger.Error("strategy lookup failed",
				logging.String("business_id", businessID),
				logging.String("market", rec.Market),
				logging.Err(err))
			return nil, err
		}
		out = append(out, enhance(rec, strategies))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	e.metrics.ObserveEnhancement(len(base), time.Since(start))
	return out, nil
}

func (e *LearningEngine) loadProfile(ctx context.Context, businessID string) (*business.Profile, error) {
	profile, err := e.profiles.FindByID(ctx, businessID)
	switch {
	case errors.IsNotFound(err):
		return nil, errors.Wrap(err, errors.ErrCodeProfileNotFound, "business profile not found").
			WithDetail("business " + businessID)
	case err != nil:
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "load business profile")
	case profile == nil:
		return nil, errors.New(errors.ErrCodeProfileNotFound, "business profile not found").
			WithDetail("business " + businessID)
	}
	return profile, nil
}

func enhance(rec export.MarketRecommendation, strategies []export.StrategyRecommendation) export.EnhancedMarketRecommendation {
	out := export.EnhancedMarketRecommendation{
		MarketRecommendation: rec,
		OriginalScore:        rec.Score,
		SuccessPatterns:      []string{},
	}
	if len(strategies) == 0 {
		return out
	}

	var confSum, timelineSum float64
	for _, s := range strategies {
		confSum += s.Confidence
		timelineSum += float64(s.EstimatedTimelineDays)
	}
	n := float64(len(strategies))
	meanConf := confSum / n

	out.SimilarBusinesses = len(strategies)
	out.SuccessPatterns = topFactors(strategies, topSuccessFactors)
	out.EstimatedTimelineDays = timelineSum / n
	out.LearningConfidence = meanConf
	out.Strategies = strategies
	out.Score = rec.Score*baseScoreShare + meanConf*learningScoreShare
	return out
}

// topFactors returns up to limit distinct success factors in order of first
// appearance across the ranked strategies. Duplicates differing only in case
// or surrounding space are collapsed onto the first spelling.
func topFactors(strategies []export.StrategyRecommendation, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, s := range strategies {
		for _, f := range s.KeySuccessFactors {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			key := strings.ToLower(f)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, f)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// RecordMarketSelection stores the markets a business chose so later
// learning can use them. Write failures are returned to the caller.
func (e *LearningEngine) RecordMarketSelection(ctx context.Context, businessID string, profile *business.Profile, markets []string) (*export.MarketSelection, error) {
	sel := &export.MarketSelection{
		ID:              e.newID(),
		BusinessID:      businessID,
		Profile:         profile.Clone(),
		SelectedMarkets: append([]string(nil), markets...),
		Timestamp:       e.now().UTC(),
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if err := e.selections.Append(ctx, sel); err != nil {
		e.logger.Error("failed to record market selection",
			logging.String("business_id", businessID),
			logging.Strings("markets", markets),
			logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeSelectionWriteFailed, "append market selection")
	}
	e.logger.Info("market selection recorded",
		logging.String("business_id", businessID),
		logging.Int("markets", len(markets)))
	return sel, nil
}

// BuildInsights turns enhanced recommendations into report-ready summaries
// and chart data. When no market has matches the result carries only
// NoInsightsMessage.
func BuildInsights(enhanced []export.EnhancedMarketRecommendation) export.LearningInsights {
	insights := make([]export.MarketInsight, 0, len(enhanced))
	for _, r := range enhanced {
		if r.SimilarBusinesses == 0 {
			continue
		}
		insights = append(insights, export.MarketInsight{
			Market:             r.Market,
			Summary:            summarize(r),
			SimilarBusinesses:  r.SimilarBusinesses,
			SuccessPatterns:    r.SuccessPatterns,
			LearningConfidence: r.LearningConfidence,
		})
	}
	if len(insights) == 0 {
		return export.LearningInsights{
			Insights:       []export.MarketInsight{},
			Visualizations: []export.Visualization{},
			Message:        NoInsightsMessage,
		}
	}

	similar := export.Visualization{Type: VisualizationBar, Title: "Similar businesses by market"}
	confidence := export.Visualization{Type: VisualizationBar, Title: "Learning confidence by market"}
	for _, in := range insights {
		similar.Series = append(similar.Series, export.SeriesPoint{Label: in.Market, Value: float64(in.SimilarBusinesses)})
		confidence.Series = append(confidence.Series, export.SeriesPoint{Label: in.Market, Value: in.LearningConfidence})
	}
	return export.LearningInsights{
		Insights:       insights,
		Visualizations: []export.Visualization{similar, confidence},
	}
}

func summarize(r export.EnhancedMarketRecommendation) string {
	noun := "businesses"
	if r.SimilarBusinesses == 1 {
		noun = "business"
	}
	s := fmt.Sprintf("%d similar %s succeeded in %s, typically within %.0f days.",
		r.SimilarBusinesses, noun, r.Market, r.EstimatedTimelineDays)
	if len(r.SuccessPatterns) > 0 {
		s += " Key success factors: " + strings.Join(r.SuccessPatterns, ", ") + "."
	}
	return s
}
