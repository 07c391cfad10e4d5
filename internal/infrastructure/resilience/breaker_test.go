package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/memory"
	"github.com/turtacn/ExportReady-Intelligence/internal/testutil"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

type flakyOutcomes struct {
	export.OutcomeRepository
	fail  bool
	calls int
}

func (f *flakyOutcomes) Append(ctx context.Context, o *export.Outcome) error {
	f.calls++
	if f.fail {
		return errors.New(errors.ErrCodeDatabaseError, "connection reset")
	}
	return f.OutcomeRepository.Append(ctx, o)
}

func (f *flakyOutcomes) FindSuccessfulByMarket(ctx context.Context, market string) ([]*export.Outcome, error) {
	f.calls++
	if f.fail {
		return nil, errors.New(errors.ErrCodeDatabaseError, "connection reset")
	}
	return f.OutcomeRepository.FindSuccessfulByMarket(ctx, market)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []int
}

func (s *stateRecorder) SetBreakerState(_ string, state int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}
}

func newFlaky() *flakyOutcomes {
	return &flakyOutcomes{OutcomeRepository: memory.NewStore().Outcomes()}
}

func TestOutcomeRepository_PassesThrough(t *testing.T) {
	inner := newFlaky()
	repo := NewOutcomeRepository(inner, testBreakerConfig(), nil, nil)
	ctx := context.Background()

	o := testutil.Outcome(testutil.SnackProfile("biz-1"), "UK", "Direct Export", true, 90)
	o.ID = "out-1"
	require.NoError(t, repo.Append(ctx, o))

	got, err := repo.FindSuccessfulByMarket(ctx, "UK")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "out-1", got[0].ID)

	byBiz, err := repo.FindByBusinessID(ctx, "biz-1")
	require.NoError(t, err)
	assert.Len(t, byBiz, 1)
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

func TestOutcomeRepository_TripsAndRecovers(t *testing.T) {
	inner := newFlaky()
	inner.fail = true
	states := &stateRecorder{}
	log := testutil.NewMockLogger()
	repo := NewOutcomeRepository(inner, testBreakerConfig(), states, log)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := repo.FindSuccessfulByMarket(ctx, "UK")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	}
	assert.Equal(t, gobreaker.StateOpen, repo.State())

	_, err := repo.FindSuccessfulByMarket(ctx, "UK")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutcomeStoreTripped))
	assert.True(t, errors.IsPersistence(err))
	assert.Equal(t, 2, inner.calls)

	inner.fail = false
	require.Eventually(t, func() bool { return repo.State() == gobreaker.StateHalfOpen }, time.Second, 5*time.Millisecond)
	_, err = repo.FindSuccessfulByMarket(ctx, "UK")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, repo.State())

	states.mu.Lock()
	defer states.mu.Unlock()
	assert.Equal(t, []int{0, 2, 1, 0}, states.states)
	assert.Len(t, log.Find("warn", "circuit breaker state changed"), 3)
}

func TestOutcomeRepository_ValidationErrorsDoNotTrip(t *testing.T) {
	inner := memory.NewStore().Outcomes()
	repo := NewOutcomeRepository(&invalidOutcomes{inner}, testBreakerConfig(), nil, nil)

	for i := 0; i < 5; i++ {
		err := repo.Append(context.Background(), &export.Outcome{})
		assert.True(t, errors.IsValidation(err))
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

type invalidOutcomes struct{ export.OutcomeRepository }

func (invalidOutcomes) Append(context.Context, *export.Outcome) error {
	return errors.New(errors.ErrCodeOutcomeInvalid, "missing business id")
}

func TestCountsAsSuccess(t *testing.T) {
	assert.True(t, countsAsSuccess(nil))
	assert.True(t, countsAsSuccess(context.Canceled))
	assert.True(t, countsAsSuccess(errors.New(errors.ErrCodeNotFound, "gone")))
	assert.False(t, countsAsSuccess(stderrors.New("boom")))
}
