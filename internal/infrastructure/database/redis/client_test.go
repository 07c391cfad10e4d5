package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

func TestNewClient_Success(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Underlying().Ping(context.Background()).Err())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(config.RedisConfig{Addr: "localhost:1"}, nil)
	assert.Nil(t, client)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
}
