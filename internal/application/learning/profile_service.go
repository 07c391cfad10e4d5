package learning

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
	"github.com/turtacn/ExportReady-Intelligence/pkg/types/common"
)

// ProfileService owns profile updates: it records what changed against the
// stored snapshot, then stores the new one.
type ProfileService struct {
	profiles business.ProfileRepository
	changes  business.ChangeLog
	tracker  *ProfileChangeTracker
	logger   logging.Logger
}

// NewProfileService wires a ProfileService.
func NewProfileService(profiles business.ProfileRepository, changes business.ChangeLog, tracker *ProfileChangeTracker, logger logging.Logger) (*ProfileService, error) {
	if profiles == nil || changes == nil || tracker == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "profile service is missing a collaborator")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ProfileService{
		profiles: profiles,
		changes:  changes,
		tracker:  tracker,
		logger:   logger.Named("profile_service"),
	}, nil
}

// GetProfile returns the current snapshot for id.
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*business.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "business id is required")
	}
	return s.profiles.FindByID(ctx, id)
}

// UpdateProfile stores p and returns the tracked changes. A business seen for
// the first time is diffed against an empty profile.
//
// The change set is appended before the snapshot is saved. A failed append
// leaves the stored profile untouched, so a retry diffs against the same
// previous snapshot and records the whole change set. Subscribers are
// notified only after the save, so they read the new state.
func (s *ProfileService) UpdateProfile(ctx context.Context, p *business.Profile) ([]business.ProfileChange, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	previous, err := s.profiles.FindByID(ctx, p.ID)
	switch {
	case errors.IsNotFound(err):
		previous = nil
	case err != nil:
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "load current profile")
	}

	changes, err := s.tracker.record(ctx, p.ID, previous, p)
	if err != nil {
		return nil, err
	}

	if err := s.profiles.Save(ctx, p); err != nil {
		s.logger.Error("changes recorded but profile save failed",
			logging.String("business_id", p.ID),
			logging.Int("changes", len(changes)),
			logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "save profile")
	}

	s.tracker.announce(ctx, p.ID, changes)
	return changes, nil
}

// ChangeHistory returns the changes for businessID. A zero range returns the
// whole history.
func (s *ProfileService) ChangeHistory(ctx context.Context, businessID string, r common.TimeRange) ([]business.ProfileChange, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "business id is required")
	}
	var (
		changes []business.ProfileChange
		err     error
	)
	if r.From.IsZero() && r.To.IsZero() {
		changes, err = s.changes.FindByBusinessID(ctx, businessID)
	} else {
		if r.To.IsZero() {
			r.To = time.Now().UTC().Add(time.Second)
		}
		if verr := r.Validate(); verr != nil {
			return nil, errors.Wrap(verr, errors.ErrCodeValidation, "invalid change history range")
		}
		changes, err = s.changes.FindByTimeRange(ctx, businessID, r.From, r.To)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query profile changes")
	}
	return changes, nil
}
