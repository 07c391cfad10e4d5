package export

import (
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
	"github.com/turtacn/ExportReady-Intelligence/pkg/validation"
)

// StrategyRecommendation is computed per query from a matched outcome and
// never persisted.
type StrategyRecommendation struct {
	StrategyType            string    `json:"strategy_type"`
	Confidence              float64   `json:"confidence"`
	ReasonForRecommendation string    `json:"reason_for_recommendation"`
	EstimatedTimelineDays   int       `json:"estimated_timeline_days"`
	KeySuccessFactors       []string  `json:"key_success_factors"`
	Similarity              float64   `json:"similarity"`
	MatchedOutcomeID        string    `json:"matched_outcome_id"`
	MatchedAt               time.Time `json:"matched_at"`
}

// MarketRecommendation is a scored market produced by a report generator.
type MarketRecommendation struct {
	Market    string  `json:"market"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// EnhancedMarketRecommendation is a MarketRecommendation enriched with what
// comparable businesses experienced in the same market. Without matches the
// learning fields are zero and Score equals OriginalScore.
type EnhancedMarketRecommendation struct {
	MarketRecommendation
	OriginalScore         float64                  `json:"original_score"`
	SimilarBusinesses     int                      `json:"similar_businesses"`
	SuccessPatterns       []string                 `json:"success_patterns"`
	EstimatedTimelineDays float64                  `json:"estimated_timeline_days"`
	LearningConfidence    float64                  `json:"learning_confidence"`
	Strategies            []StrategyRecommendation `json:"strategies,omitempty"`
}

// MarketSelection records which markets a business chose to pursue.
type MarketSelection struct {
	ID              string            `json:"id" bson:"_id"`
	BusinessID      string            `json:"business_id" bson:"business_id" validate:"required"`
	Profile         *business.Profile `json:"profile,omitempty" bson:"profile,omitempty"`
	SelectedMarkets []string          `json:"selected_markets" bson:"selected_markets" validate:"required,min=1,dive,required"`
	Timestamp       time.Time         `json:"timestamp" bson:"timestamp"`
}

// Validate checks a selection before it is recorded.
func (s *MarketSelection) Validate() error {
	if s == nil {
		return errors.New(errors.ErrCodeValidation, "market selection is nil")
	}
	return validation.Struct(s, errors.ErrCodeValidation)
}

// MarketInsight is the human-readable learning summary for one market.
type MarketInsight struct {
	Market             string   `json:"market"`
	Summary            string   `json:"summary"`
	SimilarBusinesses  int      `json:"similar_businesses"`
	SuccessPatterns    []string `json:"success_patterns,omitempty"`
	LearningConfidence float64  `json:"learning_confidence"`
}

// SeriesPoint is a single labelled value in a chart series.
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Visualization is chart-ready data for a report renderer.
type Visualization struct {
	Type   string        `json:"type"`
	Title  string        `json:"title"`
	Series []SeriesPoint `json:"series"`
}

// LearningInsights bundles per-market insights with chart data.
type LearningInsights struct {
	Insights       []MarketInsight `json:"insights"`
	Visualizations []Visualization `json:"visualizations"`
	Message        string          `json:"message,omitempty"`
}
