package learning

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockChangeLog struct {
	mu         sync.Mutex
	appendFn   func(ctx context.Context, changes []business.ProfileChange) error
	appended   [][]business.ProfileChange
	byBusiness map[string][]business.ProfileChange
	rangeFn    func(ctx context.Context, businessID string, from, to time.Time) ([]business.ProfileChange, error)
}

func (m *mockChangeLog) AppendChanges(ctx context.Context, changes []business.ProfileChange) error {
	if m.appendFn != nil {
		if err := m.appendFn(ctx, changes); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, changes)
	if m.byBusiness == nil {
		m.byBusiness = make(map[string][]business.ProfileChange)
	}
	for _, c := range changes {
		m.byBusiness[c.BusinessID] = append(m.byBusiness[c.BusinessID], c)
	}
	return nil
}

func (m *mockChangeLog) FindByBusinessID(_ context.Context, businessID string) ([]business.ProfileChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byBusiness[businessID], nil
}

func (m *mockChangeLog) FindByTimeRange(ctx context.Context, businessID string, from, to time.Time) ([]business.ProfileChange, error) {
	if m.rangeFn != nil {
		return m.rangeFn(ctx, businessID, from, to)
	}
	return nil, nil
}

type recordingPublisher struct {
	events []*business.SignificantChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *business.SignificantChangeEvent) {
	p.events = append(p.events, e)
}

type mockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*business.Profile
	findFn   func(ctx context.Context, id string) (*business.Profile, error)
	saveFn   func(ctx context.Context, p *business.Profile) error
}

func newMockProfileRepo(ps ...*business.Profile) *mockProfileRepo {
	m := &mockProfileRepo{profiles: make(map[string]*business.Profile)}
	for _, p := range ps {
		m.profiles[p.ID] = p.Clone()
	}
	return m
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*business.Profile, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeProfileNotFound, "profile not found")
	}
	return p.Clone(), nil
}

func (m *mockProfileRepo) Save(ctx context.Context, p *business.Profile) error {
	if m.saveFn != nil {
		if err := m.saveFn(ctx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p.Clone()
	return nil
}

type mockOutcomeRepo struct {
	mu       sync.Mutex
	outcomes []*export.Outcome
	appendFn func(ctx context.Context, o *export.Outcome) error
	queryFn  func(ctx context.Context, market string) ([]*export.Outcome, error)
}

func (m *mockOutcomeRepo) Append(ctx context.Context, o *export.Outcome) error {
	if m.appendFn != nil {
		if err := m.appendFn(ctx, o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *mockOutcomeRepo) FindSuccessfulByMarket(ctx context.Context, market string) ([]*export.Outcome, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, market)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*export.Outcome
	for _, o := range m.outcomes {
		if o.Market == market && o.Results.Successful {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOutcomeRepo) FindByBusinessID(_ context.Context, businessID string) ([]*export.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*export.Outcome
	for _, o := range m.outcomes {
		if o.BusinessID == businessID {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockPatternRepo struct {
	mu       sync.Mutex
	patterns []*export.Pattern
	appendFn func(ctx context.Context, p *export.Pattern) error
}

func (m *mockPatternRepo) Append(ctx context.Context, p *export.Pattern) error {
	if m.appendFn != nil {
		if err := m.appendFn(ctx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, p)
	return nil
}

func (m *mockPatternRepo) Find(_ context.Context, q export.PatternQuery) ([]*export.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*export.Pattern
	for _, p := range m.patterns {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockSelectionRepo struct {
	selections []*export.MarketSelection
	appendFn   func(ctx context.Context, s *export.MarketSelection) error
}

func (m *mockSelectionRepo) Append(ctx context.Context, s *export.MarketSelection) error {
	if m.appendFn != nil {
		if err := m.appendFn(ctx, s); err != nil {
			return err
		}
	}
	m.selections = append(m.selections, s)
	return nil
}

func (m *mockSelectionRepo) FindByBusinessID(_ context.Context, businessID string) ([]*export.MarketSelection, error) {
	var out []*export.MarketSelection
	for _, s := range m.selections {
		if s.BusinessID == businessID {
			out = append(out, s)
		}
	}
	return out, nil
}

// scorerFunc scores profiles with a function.
type scorerFunc func(a, b *business.Profile) float64

func (f scorerFunc) Similarity(a, b *business.Profile) float64 { return f(a, b) }

// byName scores profiles by the name of the stored profile.
func byName(scores map[string]float64) scorerFunc {
	return func(_, b *business.Profile) float64 { return scores[b.Name] }
}

type regionMap map[string]string

func (r regionMap) Region(market string) string { return r[market] }

type mockStrategyFinder struct {
	fn func(ctx context.Context, p *business.Profile, market string, now time.Time) ([]export.StrategyRecommendation, error)
}

func (m *mockStrategyFinder) FindSimilarStrategiesAt(ctx context.Context, p *business.Profile, market string, now time.Time) ([]export.StrategyRecommendation, error) {
	return m.fn(ctx, p, market, now)
}

type countingMetrics struct {
	noopMetrics
	mu           sync.Mutex
	skipped      map[string]int
	notifyFailed map[string]int
	patterns     map[string]int
	changes      map[string]int
	queries      int
	enhancements int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		skipped:      map[string]int{},
		notifyFailed: map[string]int{},
		patterns:     map[string]int{},
		changes:      map[string]int{},
	}
}

func (c *countingMetrics) IncSkippedOutcome(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped[reason]++
}

func (c *countingMetrics) IncNotificationFailure(sub string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyFailed[sub]++
}

func (c *countingMetrics) IncPatternDerived(region string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns[region]++
}

func (c *countingMetrics) IncChangesTracked(sig string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes[sig] += n
}

func (c *countingMetrics) ObserveStrategyQuery(string, int, int, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries++
}

func (c *countingMetrics) ObserveEnhancement(int, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enhancements++
}
