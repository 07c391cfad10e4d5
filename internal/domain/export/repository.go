package export

import "context"

// OutcomeRepository is the append-only outcome log.
type OutcomeRepository interface {
	// Append stores o. Outcomes are never updated.
	Append(ctx context.Context, o *Outcome) error

	// FindSuccessfulByMarket returns successful outcomes whose market equals
	// market exactly, in insertion order.
	FindSuccessfulByMarket(ctx context.Context, market string) ([]*Outcome, error)

	// FindByBusinessID returns every outcome recorded for a business.
	FindByBusinessID(ctx context.Context, businessID string) ([]*Outcome, error)
}

// PatternRepository stores patterns derived from successful outcomes.
type PatternRepository interface {
	Append(ctx context.Context, p *Pattern) error
	Find(ctx context.Context, q PatternQuery) ([]*Pattern, error)
}

// MarketSelectionRepository stores market selections for later learning.
type MarketSelectionRepository interface {
	Append(ctx context.Context, s *MarketSelection) error
	FindByBusinessID(ctx context.Context, businessID string) ([]*MarketSelection, error)
}
