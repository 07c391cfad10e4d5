package bootstrap

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/ExportReady-Intelligence/internal/testutil"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

func testOptions() Options {
	return Options{
		Clock: testutil.NewClock(testutil.ReferenceTime).Now,
		NewID: testutil.SequentialIDs("id"),
	}
}

func TestNew_MemoryBackendEndToEnd(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, config.Default(), testutil.NewMockLogger(), testOptions())
	require.NoError(t, err)
	defer rt.Close(ctx)

	assert.Empty(t, rt.Health(ctx))
	assert.Zero(t, rt.Notifier.SubscriberCount())

	_, err = rt.Profiles.UpdateProfile(ctx, testutil.SnackProfile("me"))
	require.NoError(t, err)
	for _, id := range []string{"peer-1", "peer-2"} {
		_, err := rt.Memory.RecordOutcome(ctx, testutil.Outcome(testutil.SnackProfile(id), "UK", "Direct Export", true, 120, "Online marketplace"))
		require.NoError(t, err)
	}

	out, err := rt.Engine.EnhanceMarketRecommendations(ctx, "me", []export.MarketRecommendation{
		{Market: "Japan", Score: 0.7},
		{Market: "UK", Score: 0.6},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "UK", out[0].Market)
	assert.Equal(t, 2, out[0].SimilarBusinesses)

	patterns, err := rt.Memory.FindPatterns(ctx, export.PatternQuery{MarketRegion: "Europe"})
	require.NoError(t, err)
	assert.Len(t, patterns, 2)
}

func TestNew_BreakerWrapsOutcomes(t *testing.T) {
	cfg := config.Default()
	cfg.Breaker.Enabled = true
	rt, err := New(context.Background(), cfg, nil, testOptions())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	assert.IsType(t, &resilience.OutcomeRepository{}, rt.Stores.Outcomes)
}

func TestNew_RejectsBadLearningConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Learning.ProductAggregation = "median"
	_, err := New(context.Background(), cfg, nil, testOptions())
	assert.True(t, errors.IsValidation(err))

	cfg = config.Default()
	cfg.Learning.LookupTablesPath = "/nonexistent/tables.yaml"
	_, err = New(context.Background(), cfg, nil, testOptions())
	assert.True(t, errors.IsCode(err, errors.ErrCodeLookupTablesInvalid))
}

func TestNew_CacheAndKafkaSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}

	ctx := context.Background()
	rt, err := New(ctx, cfg, nil, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, rt.Notifier.SubscriberCount())
	assert.IsType(t, &redis.CachedProfileRepository{}, rt.Stores.Profiles)

	health := rt.Health(ctx)
	require.Len(t, health, 1)
	assert.Equal(t, "redis", health[0].Name)
	assert.EqualValues(t, "up", health[0].Status)

	require.NoError(t, rt.Close(ctx))
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := New(context.Background(), cfg, nil, testOptions())
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
}

func TestNew_ServesMetricsWhenListenAddrSet(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	ctx := context.Background()
	rt, err := New(ctx, cfg, nil, testOptions())
	require.NoError(t, err)
	require.NotNil(t, rt.MetricsServer)

	_, err = rt.Memory.RecordOutcome(ctx, testutil.Outcome(testutil.SnackProfile("peer-1"), "UK", "Direct Export", true, 90, "Distributor"))
	require.NoError(t, err)

	resp, err := http.Get("http://" + rt.MetricsServer.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `exportready_learning_outcomes_recorded_total{successful="true"} 1`)

	require.NoError(t, rt.Close(ctx))
	_, err = http.Get("http://" + rt.MetricsServer.Addr() + "/metrics")
	assert.Error(t, err)
}

func TestNew_MetricsAddrInUse(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	first, err := New(context.Background(), cfg, nil, testOptions())
	require.NoError(t, err)
	defer first.Close(context.Background())

	cfg = config.Default()
	cfg.Metrics.ListenAddr = first.MetricsServer.Addr()
	_, err = New(context.Background(), cfg, nil, testOptions())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfiguration))
}

func TestNew_CloseStopsTableWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o600))
	cfg := config.Default()
	cfg.Learning.LookupTablesPath = path
	cfg.Learning.WatchLookupTables = true

	rt, err := New(context.Background(), cfg, nil, testOptions())
	require.NoError(t, err)
	require.Equal(t, "v1", rt.Tables.Version())

	require.NoError(t, os.WriteFile(path, []byte("version: v2\n"), 0o600))
	assert.Eventually(t, func() bool { return rt.Tables.Version() == "v2" }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, rt.Close(context.Background()))
	require.NoError(t, os.WriteFile(path, []byte("version: v3\n"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "v2", rt.Tables.Version())
}
