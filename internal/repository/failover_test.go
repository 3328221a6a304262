package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"bookinggate/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockCache) DeletePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

func TestFailoverCache(t *testing.T) {
	primary := new(mockCache)
	fallback := NewMemoryCache()
	logger := zerolog.New(io.Discard)
	cache := NewFailoverCache(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Get", ctx, "k1").Return([]byte("v1"), true, nil).Once()

		got, ok, err := cache.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v1"), got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackServes", func(t *testing.T) {
		primary.On("Set", ctx, "k2", []byte("v2"), time.Minute).Return(errors.New("conn refused")).Once()

		require.NoError(t, cache.Set(ctx, "k2", []byte("v2"), time.Minute))
		assert.True(t, cache.isDown.Load())

		// primary is bypassed until the recovery interval passes
		got, ok, err := cache.Get(ctx, "k2")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v2"), got)
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("Get", ctx, "k3").Return([]byte("v3"), true, nil).Once()

		got, ok, err := cache.Get(ctx, "k3")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v3"), got)
		assert.False(t, cache.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("DeleteClearsBoth", func(t *testing.T) {
		require.NoError(t, fallback.Set(ctx, "svc:1", []byte("x"), 0))
		primary.On("DeletePrefix", ctx, "svc:").Return(nil).Once()
		primary.On("Delete", ctx, []string{"k4"}).Return(nil).Once()

		require.NoError(t, cache.DeletePrefix(ctx, "svc:"))
		require.NoError(t, cache.Delete(ctx, "k4"))

		_, ok, _ := fallback.Get(ctx, "svc:1")
		assert.False(t, ok)
		primary.AssertExpectations(t)
	})
}

func TestFailoverCacheReplaysDeletesAfterOutage(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	logger := zerolog.New(io.Discard)
	cache := NewFailoverCache(NewRedisCache(client), NewMemoryCache(), &logger)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "resource:name:Studio 1", []byte(`{"id":"res-1"}`), time.Hour))
	require.NoError(t, cache.Set(ctx, "service:svc-1", []byte(`{"id":"svc-1"}`), time.Hour))
	require.True(t, s.Exists(KeyPrefix+"resource:name:Studio 1"))

	s.SetError("ERR simulated outage")
	require.NoError(t, cache.Delete(ctx, "resource:name:Studio 1"))
	require.NoError(t, cache.DeletePrefix(ctx, "service:"))
	assert.True(t, cache.isDown.Load())

	// outage over and recovery interval elapsed
	s.SetError("")
	cache.mu.Lock()
	cache.lastCheck = time.Now().Add(-2 * recoveryInterval)
	cache.mu.Unlock()

	got, ok, err := cache.Get(ctx, "resource:name:Studio 1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, cache.isDown.Load())
	assert.False(t, s.Exists(KeyPrefix+"resource:name:Studio 1"))
	assert.False(t, s.Exists(KeyPrefix+"service:svc-1"))
	assert.Empty(t, cache.pendingKeys)
	assert.Empty(t, cache.pendingPrefixes)
}

func TestFailoverCacheKeepsDeletesWhileReplayFails(t *testing.T) {
	primary := new(mockCache)
	logger := zerolog.New(io.Discard)
	cache := NewFailoverCache(primary, NewMemoryCache(), &logger)
	ctx := context.Background()

	primary.On("Delete", ctx, []string{"k1"}).Return(errors.New("conn refused")).Once()
	require.NoError(t, cache.Delete(ctx, "k1"))
	assert.Equal(t, []string{"k1"}, cache.pendingKeys)

	cache.lastCheck = time.Now().Add(-2 * recoveryInterval)
	primary.On("Delete", ctx, []string{"k1"}).Return(errors.New("conn refused")).Once()

	_, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, cache.isDown.Load())
	assert.Equal(t, []string{"k1"}, cache.pendingKeys)
	primary.AssertExpectations(t)
}
