package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/testutil"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

func toDoc(t *testing.T, v interface{}) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func ns(coll string) string { return "test." + coll }

func TestProfiles(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find existing", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		want := testutil.SnackProfile("biz-1")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(CollProfiles), mtest.FirstBatch, toDoc(t, want)))

		got, err := s.Profiles().FindByID(context.Background(), "biz-1")
		require.NoError(mt, err)
		assert.Equal(mt, want, got)
	})

	mt.Run("find missing", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(CollProfiles), mtest.FirstBatch))

		_, err := s.Profiles().FindByID(context.Background(), "missing")
		assert.True(mt, errors.IsNotFound(err))
	})

	mt.Run("save upserts", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		require.NoError(mt, s.Profiles().Save(context.Background(), testutil.SnackProfile("biz-1")))
		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("save failure", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 91, Name: "ShutdownInProgress", Message: "shutting down"}))

		err := s.Profiles().Save(context.Background(), testutil.SnackProfile("biz-1"))
		assert.True(mt, errors.IsPersistence(err))
	})
}

func TestChangeLog(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ts := testutil.ReferenceTime

	mt.Run("append writes one batch document", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := s.Changes().AppendChanges(context.Background(), []business.ProfileChange{
			{ID: "c1", BusinessID: "biz-1", Field: "name", Timestamp: ts},
			{ID: "c2", BusinessID: "biz-1", Field: "size", Timestamp: ts},
		})
		require.NoError(mt, err)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "insert", started.CommandName)
		docs := started.Command.Lookup("documents").Array()
		values, err := docs.Values()
		require.NoError(mt, err)
		assert.Len(mt, values, 1)
	})

	mt.Run("empty append is a no-op", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		require.NoError(mt, s.Changes().AppendChanges(context.Background(), nil))
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("time range query", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		change := business.ProfileChange{
			ID: "c1", BusinessID: "biz-1", Field: "industry", OldValue: "Food", NewValue: "Agriculture",
			ChangeType: business.ChangeModified, Significance: business.SignificanceHigh, Timestamp: ts,
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(CollChanges), mtest.FirstBatch, toDoc(t, change)))

		got, err := s.Changes().FindByTimeRange(context.Background(), "biz-1", ts, ts.Add(time.Hour))
		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, change, got[0])

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "aggregate", started.CommandName)
		stages, err := started.Command.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		assert.Len(mt, stages, 5)
	})

	mt.Run("query failure", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		_, err := s.Changes().FindByBusinessID(context.Background(), "biz-1")
		assert.True(mt, errors.IsPersistence(err))
	})
}

func TestOutcomes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	outcome := func(id string) *export.Outcome {
		o := testutil.Outcome(testutil.SnackProfile("biz-"+id), "UK", "Distributor", true, 90, "Trade fair")
		o.ID = id
		o.Timestamp = testutil.ReferenceTime
		return o
	}

	mt.Run("append", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, s.Outcomes().Append(context.Background(), outcome("o1")))
	})

	mt.Run("duplicate id", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		err := s.Outcomes().Append(context.Background(), outcome("o1"))
		assert.True(mt, errors.IsPersistence(err))
	})

	mt.Run("undecodable documents are skipped", func(mt *mtest.T) {
		log := testutil.NewMockLogger()
		s := NewStoreWithDatabase(mt.DB, log)
		corrupt := bson.D{{Key: "_id", Value: "bad"}, {Key: "timestamp", Value: "not a date"}}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(CollOutcomes), mtest.FirstBatch,
			toDoc(t, outcome("o1")), corrupt, toDoc(t, outcome("o3"))))

		got, err := s.Outcomes().FindSuccessfulByMarket(context.Background(), "UK")
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "o1", got[0].ID)
		assert.Equal(mt, "o3", got[1].ID)
		assert.Equal(mt, []string{"Trade fair"}, got[1].Results.SuccessFactors)
		assert.Equal(mt, 1, log.Count("warn"))
	})
}

func TestPatternsAndSelections(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("pattern query is case-insensitive", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		o := testutil.Outcome(testutil.SnackProfile("biz"), "UK", "Distributor", true, 30)
		p := export.NewPatternFromOutcome("pat-1", o, "Europe")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(CollPatterns), mtest.FirstBatch, toDoc(t, p)))

		got, err := s.Patterns().Find(context.Background(), export.PatternQuery{MarketRegion: "EUROPE"})
		require.NoError(mt, err)
		require.Len(mt, got, 1)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		regex := started.Command.Lookup("filter", "market_region", "$options").StringValue()
		assert.Equal(mt, "i", regex)
	})

	mt.Run("selections round trip", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		sel := &export.MarketSelection{ID: "s1", BusinessID: "biz", SelectedMarkets: []string{"UK"}, Timestamp: testutil.ReferenceTime}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, ns(CollSelections), mtest.FirstBatch, toDoc(t, sel)),
		)

		require.NoError(mt, s.Selections().Append(context.Background(), sel))
		got, err := s.Selections().FindByBusinessID(context.Background(), "biz")
		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, sel.SelectedMarkets, got[0].SelectedMarkets)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		for i := 0; i < 4; i++ {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}
		assert.NoError(mt, s.EnsureIndexes(context.Background()))
	})

	mt.Run("ping", func(mt *mtest.T) {
		s := NewStoreWithDatabase(mt.DB, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(mt, s.Ping(context.Background()))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Message: "unauthorized"}))
		assert.True(mt, errors.IsCode(s.Ping(context.Background()), errors.ErrCodeDatabaseError))
	})
}

func TestNewStore_RequiresURIAndDatabase(t *testing.T) {
	_, err := NewStore(context.Background(), config.MongoConfig{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfiguration))

	_, err = NewStore(context.Background(), config.MongoConfig{URI: "mongodb://localhost"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfiguration))
}
