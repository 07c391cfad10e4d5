// Package export models export outcomes, the success patterns distilled from
// them, market selections and the recommendation types returned to report
// generators.
package export

import (
	"strings"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
	"github.com/turtacn/ExportReady-Intelligence/pkg/validation"
)

// Results is what happened when the business entered the market.
type Results struct {
	Successful     bool     `json:"successful" bson:"successful"`
	TimelineDays   int      `json:"timeline_days" bson:"timeline_days" validate:"gte=0"`
	Challenges     []string `json:"challenges,omitempty" bson:"challenges,omitempty"`
	SuccessFactors []string `json:"success_factors,omitempty" bson:"success_factors,omitempty"`
}

// Outcome is an append-only record of one export attempt, carrying the
// business profile as it was at the time. Corrections are new outcomes.
type Outcome struct {
	ID                 string            `json:"id" bson:"_id"`
	BusinessID         string            `json:"business_id" bson:"business_id" validate:"required"`
	BusinessProfile    *business.Profile `json:"business_profile" bson:"business_profile" validate:"required"`
	Market             string            `json:"market" bson:"market" validate:"required"`
	Products           []string          `json:"products,omitempty" bson:"products,omitempty"`
	EntryStrategy      string            `json:"entry_strategy" bson:"entry_strategy" validate:"required"`
	ComplianceApproach string            `json:"compliance_approach,omitempty" bson:"compliance_approach,omitempty"`
	LogisticsModel     string            `json:"logistics_model,omitempty" bson:"logistics_model,omitempty"`
	Results            Results           `json:"results" bson:"results"`
	Timestamp          time.Time         `json:"timestamp" bson:"timestamp"`
}

// Validate checks an outcome before it is recorded.
func (o *Outcome) Validate() error {
	if o == nil {
		return errors.New(errors.ErrCodeOutcomeInvalid, "outcome is nil")
	}
	return validation.Struct(o, errors.ErrCodeOutcomeInvalid)
}

// Malformed returns a reason when a stored outcome lacks a field needed to
// match it, or "" when the record is usable.
func (o *Outcome) Malformed() string {
	switch {
	case o == nil:
		return "nil record"
	case o.BusinessProfile == nil:
		return "missing business profile"
	case strings.TrimSpace(o.Market) == "":
		return "missing market"
	case strings.TrimSpace(o.EntryStrategy) == "":
		return "missing entry strategy"
	case o.Results.TimelineDays < 0:
		return "negative timeline"
	case o.Timestamp.IsZero():
		return "missing timestamp"
	}
	return ""
}
