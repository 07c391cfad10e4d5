package business

import (
	"context"
	"time"
)

// ProfileRepository stores the current snapshot of each business.
type ProfileRepository interface {
	// FindByID returns the current snapshot. A missing business yields an
	// error for which errors.IsNotFound is true.
	FindByID(ctx context.Context, id string) (*Profile, error)

	// Save replaces the current snapshot for p.ID.
	Save(ctx context.Context, p *Profile) error
}

// ChangeLog is the append-only store of profile changes.
type ChangeLog interface {
	// AppendChanges persists every change or none of them.
	AppendChanges(ctx context.Context, changes []ProfileChange) error

	// FindByBusinessID returns the business's changes oldest first.
	FindByBusinessID(ctx context.Context, businessID string) ([]ProfileChange, error)

	// FindByTimeRange returns changes with from <= timestamp < to, oldest first.
	FindByTimeRange(ctx context.Context, businessID string, from, to time.Time) ([]ProfileChange, error)
}

// ChangeSubscriber receives significant profile change events. Returned
// errors are logged by the publisher and never affect the tracked update.
type ChangeSubscriber interface {
	OnSignificantChange(ctx context.Context, event *SignificantChangeEvent) error
}

// ChangeSubscriberFunc adapts a plain function to ChangeSubscriber.
type ChangeSubscriberFunc func(ctx context.Context, event *SignificantChangeEvent) error

// OnSignificantChange calls f.
func (f ChangeSubscriberFunc) OnSignificantChange(ctx context.Context, event *SignificantChangeEvent) error {
	return f(ctx, event)
}
