package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = NewRedisCache(NewClientWithRDB(db, nil), logging.NewNopLogger(), WithPrefix("test:"), WithJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type market struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func (s *CacheTestSuite) TestGet_Hit() {
	val := market{Name: "UK", Score: 0.8}
	raw, _ := json.Marshal(val)
	s.mock.ExpectGet("test:k1").SetVal(string(raw))

	var dest market
	s.NoError(s.cache.Get(context.Background(), "k1", &dest))
	s.Equal(val, dest)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:k1").RedisNil()

	var dest market
	err := s.cache.Get(context.Background(), "k1", &dest)
	s.Equal(ErrCacheMiss, err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:k1").SetVal("{")

	var dest market
	err := s.cache.Get(context.Background(), "k1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_UsesDefaultTTL() {
	raw, _ := json.Marshal(market{Name: "UK"})
	s.mock.ExpectSet("test:k1", raw, 15*time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "k1", market{Name: "UK"}, 0))
}

func (s *CacheTestSuite) TestSet_ConfiguredDefaultTTL() {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(NewClientWithRDB(db, nil), nil, WithPrefix("p:"), WithJitter(0), WithDefaultTTL(2*time.Hour))
	raw, _ := json.Marshal(market{Name: "UK"})
	mock.ExpectSet("p:k1", raw, 2*time.Hour).SetVal("OK")
	mock.ExpectSet("p:k2", raw, time.Minute).SetVal("OK")

	s.NoError(cache.Set(context.Background(), "k1", market{Name: "UK"}, 0))
	s.NoError(cache.Set(context.Background(), "k2", market{Name: "UK"}, time.Minute))
	s.NoError(mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "k1", "k2"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestGetOrSet_MissLoadsAndPopulates() {
	val := market{Name: "Japan", Score: 0.7}
	raw, _ := json.Marshal(&val)
	s.mock.ExpectGet("test:k1").RedisNil()
	s.mock.ExpectSet("test:k1", raw, time.Minute).SetVal("OK")

	calls := 0
	var dest market
	err := s.cache.GetOrSet(context.Background(), "k1", &dest, time.Minute, func(context.Context) (interface{}, error) {
		calls++
		return &val, nil
	})
	s.NoError(err)
	s.Equal(1, calls)
	s.Equal(val, dest)
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	raw, _ := json.Marshal(market{Name: "UK"})
	s.mock.ExpectGet("test:k1").SetVal(string(raw))

	var dest market
	err := s.cache.GetOrSet(context.Background(), "k1", &dest, time.Minute, func(context.Context) (interface{}, error) {
		s.Fail("loader must not run on a hit")
		return nil, nil
	})
	s.NoError(err)
	s.Equal("UK", dest.Name)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderErrorIsNotCached() {
	s.mock.ExpectGet("test:k1").RedisNil()

	var dest market
	err := s.cache.GetOrSet(context.Background(), "k1", &dest, time.Minute, func(context.Context) (interface{}, error) {
		return nil, stderrors.New("not found")
	})
	s.EqualError(err, "not found")
}

func (s *CacheTestSuite) TestGetOrSet_CacheDownStillLoads() {
	val := market{Name: "UK"}
	raw, _ := json.Marshal(val)
	s.mock.ExpectGet("test:k1").SetErr(stderrors.New("connection refused"))
	s.mock.ExpectSet("test:k1", raw, time.Minute).SetErr(stderrors.New("connection refused"))

	var dest market
	err := s.cache.GetOrSet(context.Background(), "k1", &dest, time.Minute, func(context.Context) (interface{}, error) {
		return val, nil
	})
	s.NoError(err)
	s.Equal(val, dest)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}
