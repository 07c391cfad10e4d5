package export

import (
	"strings"
	"time"
)

// RegionOther is the region assigned to markets missing from the region table.
const RegionOther = "Other"

// Pattern is a generalisation of a successful outcome keyed by industry,
// region and size. Patterns are a derived cache and can be rebuilt from the
// outcome log.
type Pattern struct {
	ID                 string    `json:"id" bson:"_id"`
	OutcomeID          string    `json:"outcome_id" bson:"outcome_id"`
	IndustryType       string    `json:"industry_type" bson:"industry_type"`
	MarketRegion       string    `json:"market_region" bson:"market_region"`
	BusinessSize       string    `json:"business_size" bson:"business_size"`
	EntryStrategy      string    `json:"entry_strategy" bson:"entry_strategy"`
	ComplianceApproach string    `json:"compliance_approach,omitempty" bson:"compliance_approach,omitempty"`
	LogisticsModel     string    `json:"logistics_model,omitempty" bson:"logistics_model,omitempty"`
	SuccessFactors     []string  `json:"success_factors,omitempty" bson:"success_factors,omitempty"`
	TimeToSuccessDays  int       `json:"time_to_success_days" bson:"time_to_success_days"`
	Timestamp          time.Time `json:"timestamp" bson:"timestamp"`
}

// NewPatternFromOutcome derives the pattern for a successful outcome.
func NewPatternFromOutcome(id string, o *Outcome, region string) *Pattern {
	p := &Pattern{
		ID:                 id,
		OutcomeID:          o.ID,
		MarketRegion:       region,
		EntryStrategy:      o.EntryStrategy,
		ComplianceApproach: o.ComplianceApproach,
		LogisticsModel:     o.LogisticsModel,
		SuccessFactors:     append([]string(nil), o.Results.SuccessFactors...),
		TimeToSuccessDays:  o.Results.TimelineDays,
		Timestamp:          o.Timestamp,
	}
	if o.BusinessProfile != nil {
		p.IndustryType = o.BusinessProfile.Industry
		p.BusinessSize = string(o.BusinessProfile.Size)
	}
	return p
}

// PatternQuery selects patterns; empty fields match anything. Matching is
// case-insensitive.
type PatternQuery struct {
	IndustryType string `json:"industry_type,omitempty"`
	MarketRegion string `json:"market_region,omitempty"`
	BusinessSize string `json:"business_size,omitempty"`
}

// Matches reports whether p satisfies q.
func (q PatternQuery) Matches(p *Pattern) bool {
	return fieldMatches(q.IndustryType, p.IndustryType) &&
		fieldMatches(q.MarketRegion, p.MarketRegion) &&
		fieldMatches(q.BusinessSize, p.BusinessSize)
}

func fieldMatches(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}
