package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/testutil"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

func TestProfiles_IsolatesCallers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Profiles().FindByID(ctx, "biz-1")
	assert.True(t, errors.IsNotFound(err))

	p := testutil.SnackProfile("biz-1")
	require.NoError(t, s.Profiles().Save(ctx, p))
	p.Products[0].Name = "mutated"

	got, err := s.Profiles().FindByID(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, "Dried Mango", got.Products[0].Name)

	got.Industry = "mutated"
	again, _ := s.Profiles().FindByID(ctx, "biz-1")
	assert.Equal(t, "Food & Beverage", again.Industry)
}

func TestChangeLog_TimeRangeIsHalfOpen(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	t0 := testutil.ReferenceTime
	require.NoError(t, s.Changes().AppendChanges(ctx, []business.ProfileChange{
		{ID: "c2", BusinessID: "biz-1", Timestamp: t0.Add(time.Hour)},
		{ID: "c1", BusinessID: "biz-1", Timestamp: t0},
		{ID: "c3", BusinessID: "biz-2", Timestamp: t0},
	}))

	got, err := s.Changes().FindByTimeRange(ctx, "biz-1", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)

	all, err := s.Changes().FindByBusinessID(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, []string{all[0].ID, all[1].ID})

	none, err := s.Changes().FindByBusinessID(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestChangeLog_AllOrNothing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Changes().AppendChanges(ctx, []business.ProfileChange{{ID: "c1", BusinessID: "biz-1"}}))

	err := s.Changes().AppendChanges(ctx, []business.ProfileChange{
		{ID: "c2", BusinessID: "biz-1"},
		{ID: "c1", BusinessID: "biz-1"},
	})
	assert.Error(t, err)

	all, _ := s.Changes().FindByBusinessID(ctx, "biz-1")
	assert.Len(t, all, 1)
}

func TestOutcomes_ExactMarketMatchInInsertionOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i, market := range []string{"UK", "uk", "UK", "Japan"} {
		o := testutil.Outcome(testutil.SnackProfile("biz"), market, "Distributor", i != 2, 30)
		o.ID = []string{"o1", "o2", "o3", "o4"}[i]
		require.NoError(t, s.Outcomes().Append(ctx, o))
	}

	got, err := s.Outcomes().FindSuccessfulByMarket(ctx, "UK")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].ID)

	got[0].BusinessProfile.Name = "mutated"
	again, _ := s.Outcomes().FindSuccessfulByMarket(ctx, "UK")
	assert.Equal(t, "Sunny Snacks Ltd", again[0].BusinessProfile.Name)

	byBiz, err := s.Outcomes().FindByBusinessID(ctx, "biz")
	require.NoError(t, err)
	assert.Len(t, byBiz, 4)
}

func TestPatterns_CaseInsensitiveQuery(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o := testutil.Outcome(testutil.SnackProfile("biz"), "UK", "Distributor", true, 30)
	require.NoError(t, s.Patterns().Append(ctx, export.NewPatternFromOutcome("p1", o, "Europe")))

	got, err := s.Patterns().Find(ctx, export.PatternQuery{IndustryType: "FOOD & BEVERAGE", MarketRegion: "europe"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Patterns().Find(ctx, export.PatternQuery{BusinessSize: "large"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelections(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Selections().Append(ctx, &export.MarketSelection{ID: "s1", BusinessID: "biz", SelectedMarkets: []string{"UK"}}))
	got, err := s.Selections().FindByBusinessID(ctx, "biz")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"UK"}, got[0].SelectedMarkets)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Outcomes().Append(ctx, testutil.Outcome(testutil.SnackProfile("biz"), "UK", "Distributor", true, 30))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Outcomes().FindSuccessfulByMarket(ctx, "UK")
		}()
	}
	wg.Wait()
	got, _ := s.Outcomes().FindSuccessfulByMarket(ctx, "UK")
	assert.Len(t, got, 20)
}
