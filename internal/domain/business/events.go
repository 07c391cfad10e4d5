package business

import (
	"github.com/turtacn/ExportReady-Intelligence/pkg/types/common"
)

// EventTypeSignificantChange names the event raised when a profile update
// contains HIGH significance changes.
const EventTypeSignificantChange = "business.profile.significant_change"

// SignificantChangeEvent carries the HIGH significance subset of a tracked
// update. The aggregate ID is the business ID.
type SignificantChangeEvent struct {
	common.BaseEvent
	BusinessID string          `json:"business_id"`
	Changes    []ProfileChange `json:"changes"`
}

// NewSignificantChangeEvent builds the event for businessID.
func NewSignificantChangeEvent(businessID string, changes []ProfileChange) *SignificantChangeEvent {
	return &SignificantChangeEvent{
		BaseEvent:  common.NewBaseEvent(businessID),
		BusinessID: businessID,
		Changes:    changes,
	}
}

// EventType implements common.DomainEvent.
func (e *SignificantChangeEvent) EventType() string { return EventTypeSignificantChange }
