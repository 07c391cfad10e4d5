// Package memory is an in-process implementation of every learning store.
// It backs the CLI when no database is configured and keeps tests hermetic.
// Values are cloned on the way in and on the way out so callers never share
// state with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// Store holds all collections behind one lock.
type Store struct {
	mu         sync.RWMutex
	profiles   map[string]*business.Profile
	changes    []business.ProfileChange
	outcomes   []*export.Outcome
	patterns   []*export.Pattern
	selections []*export.MarketSelection
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{profiles: make(map[string]*business.Profile)}
}

// Profiles returns the profile repository view of the store.
func (s *Store) Profiles() business.ProfileRepository { return profileRepo{s} }

// Changes returns the change log view of the store.
func (s *Store) Changes() business.ChangeLog { return changeLog{s} }

// Outcomes returns the outcome repository view of the store.
func (s *Store) Outcomes() export.OutcomeRepository { return outcomeRepo{s} }

// Patterns returns the pattern repository view of the store.
func (s *Store) Patterns() export.PatternRepository { return patternRepo{s} }

// Selections returns the market selection repository view of the store.
func (s *Store) Selections() export.MarketSelectionRepository { return selectionRepo{s} }

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

type profileRepo struct{ s *Store }

func (r profileRepo) FindByID(_ context.Context, id string) (*business.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeProfileNotFound, "business profile not found").WithDetail("id=" + id)
	}
	return p.Clone(), nil
}

func (r profileRepo) Save(_ context.Context, p *business.Profile) error {
	if p == nil {
		return errors.New(errors.ErrCodeProfileInvalid, "profile is nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.profiles[p.ID] = p.Clone()
	return nil
}

// ---------------------------------------------------------------------------
// Change log
// ---------------------------------------------------------------------------

type changeLog struct{ s *Store }

func (r changeLog) AppendChanges(_ context.Context, changes []business.ProfileChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]struct{}, len(r.s.changes))
	for _, c := range r.s.changes {
		seen[c.ID] = struct{}{}
	}
	for _, c := range changes {
		if _, dup := seen[c.ID]; dup {
			return errors.New(errors.ErrCodeConflict, "duplicate change id").WithDetail("id=" + c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	r.s.changes = append(r.s.changes, changes...)
	return nil
}

func (r changeLog) FindByBusinessID(_ context.Context, businessID string) ([]business.ProfileChange, error) {
	return r.filter(func(c business.ProfileChange) bool { return c.BusinessID == businessID }), nil
}

func (r changeLog) FindByTimeRange(_ context.Context, businessID string, from, to time.Time) ([]business.ProfileChange, error) {
	return r.filter(func(c business.ProfileChange) bool {
		return c.BusinessID == businessID && !c.Timestamp.Before(from) && c.Timestamp.Before(to)
	}), nil
}

func (r changeLog) filter(keep func(business.ProfileChange) bool) []business.ProfileChange {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]business.ProfileChange, 0)
	for _, c := range r.s.changes {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// ---------------------------------------------------------------------------
// Outcomes, patterns and selections
// ---------------------------------------------------------------------------

type outcomeRepo struct{ s *Store }

func (r outcomeRepo) Append(_ context.Context, o *export.Outcome) error {
	if o == nil {
		return errors.New(errors.ErrCodeOutcomeInvalid, "outcome is nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outcomes = append(r.s.outcomes, cloneOutcome(o))
	return nil
}

func (r outcomeRepo) FindSuccessfulByMarket(_ context.Context, market string) ([]*export.Outcome, error) {
	return r.filter(func(o *export.Outcome) bool { return o.Market == market && o.Results.Successful }), nil
}

func (r outcomeRepo) FindByBusinessID(_ context.Context, businessID string) ([]*export.Outcome, error) {
	return r.filter(func(o *export.Outcome) bool { return o.BusinessID == businessID }), nil
}

func (r outcomeRepo) filter(keep func(*export.Outcome) bool) []*export.Outcome {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*export.Outcome, 0)
	for _, o := range r.s.outcomes {
		if keep(o) {
			out = append(out, cloneOutcome(o))
		}
	}
	return out
}

func cloneOutcome(o *export.Outcome) *export.Outcome {
	c := *o
	c.BusinessProfile = o.BusinessProfile.Clone()
	c.Products = append([]string(nil), o.Products...)
	c.Results.Challenges = append([]string(nil), o.Results.Challenges...)
	c.Results.SuccessFactors = append([]string(nil), o.Results.SuccessFactors...)
	return &c
}

type patternRepo struct{ s *Store }

func (r patternRepo) Append(_ context.Context, p *export.Pattern) error {
	if p == nil {
		return errors.New(errors.ErrCodeValidation, "pattern is nil")
	}
	c := *p
	c.SuccessFactors = append([]string(nil), p.SuccessFactors...)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.patterns = append(r.s.patterns, &c)
	return nil
}

func (r patternRepo) Find(_ context.Context, q export.PatternQuery) ([]*export.Pattern, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*export.Pattern, 0)
	for _, p := range r.s.patterns {
		if q.Matches(p) {
			c := *p
			c.SuccessFactors = append([]string(nil), p.SuccessFactors...)
			out = append(out, &c)
		}
	}
	return out, nil
}

type selectionRepo struct{ s *Store }

func (r selectionRepo) Append(_ context.Context, sel *export.MarketSelection) error {
	if sel == nil {
		return errors.New(errors.ErrCodeValidation, "market selection is nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.selections = append(r.s.selections, cloneSelection(sel))
	return nil
}

func (r selectionRepo) FindByBusinessID(_ context.Context, businessID string) ([]*export.MarketSelection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*export.MarketSelection, 0)
	for _, sel := range r.s.selections {
		if sel.BusinessID == businessID {
			out = append(out, cloneSelection(sel))
		}
	}
	return out, nil
}

func cloneSelection(sel *export.MarketSelection) *export.MarketSelection {
	c := *sel
	c.Profile = sel.Profile.Clone()
	c.SelectedMarkets = append([]string(nil), sel.SelectedMarkets...)
	return &c
}
